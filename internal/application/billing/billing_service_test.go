package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/payment"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/rentledger/backend/internal/domain/tenancy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockChargeRepositoryForBilling is a mock implementation of billing.ChargeRepository
type MockChargeRepositoryForBilling struct {
	mock.Mock
}

func (m *MockChargeRepositoryForBilling) FindByID(ctx context.Context, id uuid.UUID) (*billing.Charge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Charge), args.Error(1)
}

func (m *MockChargeRepositoryForBilling) FindByStay(ctx context.Context, stayID uuid.UUID, filter billing.ChargeFilter) ([]billing.Charge, error) {
	args := m.Called(ctx, stayID, filter)
	return args.Get(0).([]billing.Charge), args.Error(1)
}

func (m *MockChargeRepositoryForBilling) FindByStayAndPeriod(ctx context.Context, stayID uuid.UUID, period valueobject.Period) ([]billing.Charge, error) {
	args := m.Called(ctx, stayID, period)
	return args.Get(0).([]billing.Charge), args.Error(1)
}

func (m *MockChargeRepositoryForBilling) FindOutstandingByStay(ctx context.Context, stayID uuid.UUID) ([]billing.Charge, error) {
	args := m.Called(ctx, stayID)
	return args.Get(0).([]billing.Charge), args.Error(1)
}

func (m *MockChargeRepositoryForBilling) FindOutstandingByStayForUpdate(ctx context.Context, stayID uuid.UUID) ([]billing.Charge, error) {
	args := m.Called(ctx, stayID)
	return args.Get(0).([]billing.Charge), args.Error(1)
}

func (m *MockChargeRepositoryForBilling) ExistsForPeriod(ctx context.Context, stayID uuid.UUID, kind billing.ChargeKind, period valueobject.Period, providerID *uuid.UUID) (bool, error) {
	args := m.Called(ctx, stayID, kind, period, providerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChargeRepositoryForBilling) Save(ctx context.Context, charge *billing.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockChargeRepositoryForBilling) SaveWithLock(ctx context.Context, charge *billing.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockChargeRepositoryForBilling) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockChargeRepositoryForBilling) Count(ctx context.Context, filter billing.ChargeFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockPaymentRepositoryForBilling is a mock implementation of payment.PaymentRepository
type MockPaymentRepositoryForBilling struct {
	mock.Mock
}

func (m *MockPaymentRepositoryForBilling) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepositoryForBilling) FindByStay(ctx context.Context, stayID uuid.UUID, filter payment.PaymentFilter) ([]payment.Payment, error) {
	args := m.Called(ctx, stayID, filter)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepositoryForBilling) FindPending(ctx context.Context, filter payment.PaymentFilter) ([]payment.Payment, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepositoryForBilling) FindWithCredit(ctx context.Context, stayID uuid.UUID) ([]payment.Payment, error) {
	args := m.Called(ctx, stayID)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepositoryForBilling) FindAllocatedToCharge(ctx context.Context, chargeID uuid.UUID) ([]payment.Payment, error) {
	args := m.Called(ctx, chargeID)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepositoryForBilling) Save(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepositoryForBilling) SaveWithLock(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepositoryForBilling) Count(ctx context.Context, filter payment.PaymentFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockStayRepositoryForBilling is a mock implementation of tenancy.StayRepository
type MockStayRepositoryForBilling struct {
	mock.Mock
}

func (m *MockStayRepositoryForBilling) FindByID(ctx context.Context, id uuid.UUID) (*tenancy.Stay, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.Stay), args.Error(1)
}

func (m *MockStayRepositoryForBilling) FindActiveByUnit(ctx context.Context, unitID uuid.UUID) (*tenancy.Stay, error) {
	args := m.Called(ctx, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.Stay), args.Error(1)
}

func (m *MockStayRepositoryForBilling) FindAll(ctx context.Context, filter tenancy.StayFilter) ([]tenancy.Stay, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]tenancy.Stay), args.Error(1)
}

func (m *MockStayRepositoryForBilling) FindActive(ctx context.Context) ([]tenancy.Stay, error) {
	args := m.Called(ctx)
	return args.Get(0).([]tenancy.Stay), args.Error(1)
}

func (m *MockStayRepositoryForBilling) Save(ctx context.Context, stay *tenancy.Stay) error {
	args := m.Called(ctx, stay)
	return args.Error(0)
}

func (m *MockStayRepositoryForBilling) SaveWithLock(ctx context.Context, stay *tenancy.Stay) error {
	args := m.Called(ctx, stay)
	return args.Error(0)
}

func (m *MockStayRepositoryForBilling) Count(ctx context.Context, filter tenancy.StayFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// =============================================================================
// Infrastructure Fakes
// =============================================================================

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (c *capturingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	return nil
}

func (c *capturingPublisher) byType(eventType string) []shared.DomainEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []shared.DomainEvent
	for _, e := range c.events {
		if e.EventType() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

type passthroughTx struct{}

func (passthroughTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// =============================================================================
// Test Helpers
// =============================================================================

type billingFixture struct {
	chargeRepo  *MockChargeRepositoryForBilling
	paymentRepo *MockPaymentRepositoryForBilling
	stayRepo    *MockStayRepositoryForBilling
	eventBus    *capturingPublisher
	service     *BillingService
}

func newBillingFixture() *billingFixture {
	f := &billingFixture{
		chargeRepo:  new(MockChargeRepositoryForBilling),
		paymentRepo: new(MockPaymentRepositoryForBilling),
		stayRepo:    new(MockStayRepositoryForBilling),
		eventBus:    &capturingPublisher{},
	}
	f.service = NewBillingService(
		f.chargeRepo,
		f.paymentRepo,
		f.stayRepo,
		payment.NewAllocationService(),
		passthroughTx{},
		f.eventBus,
		zap.NewNop(),
	)
	return f
}

func testStay(t *testing.T) *tenancy.Stay {
	t.Helper()
	stay, err := tenancy.NewStay(
		uuid.New(),
		"Lenina 10, apt 5",
		"Ivan Petrov",
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		valueobject.NewMoneyRUBFromFloat(30000),
		5,
		10,
		decimal.NewFromFloat(0.04),
	)
	require.NoError(t, err)
	stay.ClearDomainEvents()
	return stay
}

func testRentCharge(t *testing.T, stayID uuid.UUID, year int, month time.Month, base float64) *billing.Charge {
	t.Helper()
	period, err := valueobject.NewPeriod(year, month)
	require.NoError(t, err)
	charge, err := billing.NewRentCharge(stayID, period,
		valueobject.NewMoneyRUBFromFloat(base), decimal.Zero, billing.ChargeSourceScheduled)
	require.NoError(t, err)
	charge.ClearDomainEvents()
	return charge
}

func creditPayment(t *testing.T, stayID uuid.UUID, amount float64, paidAt time.Time) payment.Payment {
	t.Helper()
	p, err := payment.NewPayment(stayID, payment.KindUnspecified,
		valueobject.NewMoneyRUBFromFloat(amount), payment.MethodSBP, paidAt, "")
	require.NoError(t, err)
	require.NoError(t, p.Confirm(uuid.New()))
	p.ClearDomainEvents()
	return *p
}

func mustPeriod(t *testing.T, year int, month time.Month) valueobject.Period {
	t.Helper()
	period, err := valueobject.NewPeriod(year, month)
	require.NoError(t, err)
	return period
}

// =============================================================================
// EnsureRentCharge
// =============================================================================

func TestBillingService_EnsureRentCharge_CreatesWithTaxSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stay := testStay(t)
	march := mustPeriod(t, 2025, time.March)

	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("ExistsForPeriod", ctx, stay.ID, billing.ChargeKindRent, march, (*uuid.UUID)(nil)).Return(false, nil)
	f.chargeRepo.On("Save", ctx, mock.AnythingOfType("*billing.Charge")).Return(nil)

	charge, err := f.service.EnsureRentCharge(ctx, stay.ID, march)

	require.NoError(t, err)
	require.NotNil(t, charge)
	assert.Equal(t, billing.ChargeKindRent, charge.Kind)
	assert.Equal(t, "30000", charge.BaseAmount.String())
	assert.Equal(t, "1200", charge.TaxAmount.String())
	assert.Equal(t, "31200", charge.Amount.String())
	assert.Equal(t, "0.04", charge.TaxRate.String())
	assert.Len(t, f.eventBus.byType(billing.EventTypeChargeCreated), 1)
}

func TestBillingService_EnsureRentCharge_IdempotentPerPeriod(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stay := testStay(t)
	march := mustPeriod(t, 2025, time.March)
	existing := testRentCharge(t, stay.ID, 2025, time.March, 30000)

	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("ExistsForPeriod", ctx, stay.ID, billing.ChargeKindRent, march, (*uuid.UUID)(nil)).Return(true, nil)
	f.chargeRepo.On("FindByStayAndPeriod", ctx, stay.ID, march).Return([]billing.Charge{*existing}, nil)

	charge, err := f.service.EnsureRentCharge(ctx, stay.ID, march)

	require.NoError(t, err)
	require.NotNil(t, charge)
	assert.Equal(t, existing.ID, charge.ID)
	f.chargeRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestBillingService_EnsureRentCharge_SkipsSupersededWhenResolving(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stay := testStay(t)
	march := mustPeriod(t, 2025, time.March)

	retired := testRentCharge(t, stay.ID, 2025, time.March, 28000)
	require.NoError(t, retired.Supersede())
	live := testRentCharge(t, stay.ID, 2025, time.March, 30000)

	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("ExistsForPeriod", ctx, stay.ID, billing.ChargeKindRent, march, (*uuid.UUID)(nil)).Return(true, nil)
	f.chargeRepo.On("FindByStayAndPeriod", ctx, stay.ID, march).Return([]billing.Charge{*retired, *live}, nil)

	charge, err := f.service.EnsureRentCharge(ctx, stay.ID, march)

	require.NoError(t, err)
	require.NotNil(t, charge)
	assert.Equal(t, live.ID, charge.ID)
}

func TestBillingService_EnsureRentCharge_ArchivedStay(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stay := testStay(t)
	require.NoError(t, stay.Archive())
	stay.ClearDomainEvents()

	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)

	_, err := f.service.EnsureRentCharge(ctx, stay.ID, mustPeriod(t, 2025, time.March))

	assert.Error(t, err)
	assert.True(t, shared.IsInvalidState(err))
}

// =============================================================================
// EnsureUtilityCharge
// =============================================================================

func TestBillingService_EnsureUtilityCharge_ScopedPerProvider(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stay := testStay(t)
	providerID := uuid.New()
	february := mustPeriod(t, 2025, time.February)

	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("ExistsForPeriod", ctx, stay.ID, billing.ChargeKindUtility, february, &providerID).Return(false, nil)
	f.chargeRepo.On("Save", ctx, mock.AnythingOfType("*billing.Charge")).Return(nil)

	charge, err := f.service.EnsureUtilityCharge(ctx, EnsureUtilityChargeRequest{
		StayID:     stay.ID,
		ProviderID: providerID,
		Period:     february,
		Amount:     decimal.NewFromFloat(3450.50),
	})

	require.NoError(t, err)
	require.NotNil(t, charge)
	assert.Equal(t, billing.ChargeKindUtility, charge.Kind)
	assert.Equal(t, "3450.5", charge.Amount.String())
	require.NotNil(t, charge.ProviderID)
	assert.Equal(t, providerID, *charge.ProviderID)
}

// =============================================================================
// RunBillingCycle
// =============================================================================

func TestBillingService_RunBillingCycle_AppliesCarriedCredit(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stay := testStay(t)
	april := mustPeriod(t, 2025, time.April)

	// A confirmed payment from March still carries 31200 of credit
	credit := creditPayment(t, stay.ID, 31200, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	aprilCharge := testRentCharge(t, stay.ID, 2025, time.April, 31200)

	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("ExistsForPeriod", ctx, stay.ID, billing.ChargeKindRent, april, (*uuid.UUID)(nil)).Return(true, nil)
	f.paymentRepo.On("FindWithCredit", ctx, stay.ID).Return([]payment.Payment{credit}, nil)
	f.chargeRepo.On("FindOutstandingByStayForUpdate", ctx, stay.ID).Return([]billing.Charge{*aprilCharge}, nil)
	f.paymentRepo.On("SaveWithLock", ctx, mock.AnythingOfType("*payment.Payment")).Return(nil)
	f.chargeRepo.On("SaveWithLock", ctx, mock.AnythingOfType("*billing.Charge")).Return(nil)

	result, err := f.service.RunBillingCycle(ctx, stay.ID, april)

	require.NoError(t, err)
	assert.False(t, result.ChargeIssued)
	assert.Equal(t, "31200", result.CreditApplied.String())
	assert.Equal(t, 1, result.PaymentsDrawn)
	assert.Equal(t, 1, result.ChargesCovered)
	assert.Len(t, f.eventBus.byType(billing.EventTypeChargePaid), 1)
}

func TestBillingService_RunBillingCycle_DrawsOldestCreditFirst(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stay := testStay(t)
	may := mustPeriod(t, 2025, time.May)

	older := creditPayment(t, stay.ID, 20000, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	newer := creditPayment(t, stay.ID, 20000, time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC))
	mayCharge := testRentCharge(t, stay.ID, 2025, time.May, 30000)

	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("ExistsForPeriod", ctx, stay.ID, billing.ChargeKindRent, may, (*uuid.UUID)(nil)).Return(true, nil)
	f.paymentRepo.On("FindWithCredit", ctx, stay.ID).Return([]payment.Payment{older, newer}, nil)
	f.chargeRepo.On("FindOutstandingByStayForUpdate", ctx, stay.ID).Return([]billing.Charge{*mayCharge}, nil)
	f.paymentRepo.On("SaveWithLock", ctx, mock.AnythingOfType("*payment.Payment")).Return(nil)
	f.chargeRepo.On("SaveWithLock", ctx, mock.AnythingOfType("*billing.Charge")).Return(nil)

	result, err := f.service.RunBillingCycle(ctx, stay.ID, may)

	require.NoError(t, err)
	assert.Equal(t, "30000", result.CreditApplied.String())
	assert.Equal(t, 2, result.PaymentsDrawn)

	// The repository returns payments oldest first; the service drains
	// them in that order, so the newer payment keeps the remainder.
	saved := f.paymentRepo.Calls
	var savedPayments []*payment.Payment
	for _, call := range saved {
		if call.Method == "SaveWithLock" {
			savedPayments = append(savedPayments, call.Arguments.Get(1).(*payment.Payment))
		}
	}
	require.Len(t, savedPayments, 2)
	assert.True(t, savedPayments[0].UnallocatedAmount.IsZero())
	assert.Equal(t, "10000", savedPayments[1].UnallocatedAmount.String())
}

func TestBillingService_RunBillingCycle_NoCreditNoCharges(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stay := testStay(t)
	june := mustPeriod(t, 2025, time.June)

	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("ExistsForPeriod", ctx, stay.ID, billing.ChargeKindRent, june, (*uuid.UUID)(nil)).Return(false, nil)
	f.chargeRepo.On("Save", ctx, mock.AnythingOfType("*billing.Charge")).Return(nil)
	f.paymentRepo.On("FindWithCredit", ctx, stay.ID).Return([]payment.Payment{}, nil)

	result, err := f.service.RunBillingCycle(ctx, stay.ID, june)

	require.NoError(t, err)
	assert.True(t, result.ChargeIssued)
	assert.True(t, result.CreditApplied.IsZero())
	f.chargeRepo.AssertNotCalled(t, "FindOutstandingByStayForUpdate", mock.Anything, mock.Anything)
}

func TestBillingService_RunBillingCycleForAll_ContinuesOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stayA := testStay(t)
	stayB := testStay(t)
	july := mustPeriod(t, 2025, time.July)

	f.stayRepo.On("FindActive", ctx).Return([]tenancy.Stay{*stayA, *stayB}, nil)
	f.stayRepo.On("FindByID", ctx, stayA.ID).Return(nil, errors.New("connection reset"))
	f.stayRepo.On("FindByID", ctx, stayB.ID).Return(stayB, nil)
	f.chargeRepo.On("ExistsForPeriod", ctx, stayB.ID, billing.ChargeKindRent, july, (*uuid.UUID)(nil)).Return(true, nil)
	f.paymentRepo.On("FindWithCredit", ctx, stayB.ID).Return([]payment.Payment{}, nil)

	results, err := f.service.RunBillingCycleForAll(ctx, july)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, stayB.ID, results[0].StayID)
}

// =============================================================================
// RecalculateRent
// =============================================================================

func TestBillingService_RecalculateRent_ReplacesChargesAndReappliesCredit(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stay := testStay(t)
	march := mustPeriod(t, 2025, time.March)

	// Old charge issued before a rent change, fully paid
	oldCharge := testRentCharge(t, stay.ID, 2025, time.March, 28000)
	payer := creditPayment(t, stay.ID, 28000, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	amount := valueobject.NewMoneyRUBFromFloat(28000)
	require.NoError(t, payer.Allocate(oldCharge.ID, oldCharge.Kind, amount))
	require.NoError(t, oldCharge.ApplyAllocation(amount))
	oldCharge.RecomputeStatus()
	payer.ClearDomainEvents()
	oldCharge.ClearDomainEvents()

	kind := billing.ChargeKindRent
	filter := billing.ChargeFilter{Kind: &kind, FromPeriod: &march, ToPeriod: &march}

	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("FindByStay", ctx, stay.ID, filter).Return([]billing.Charge{*oldCharge}, nil)
	f.paymentRepo.On("FindAllocatedToCharge", ctx, oldCharge.ID).Return([]payment.Payment{payer}, nil)
	f.paymentRepo.On("SaveWithLock", ctx, mock.AnythingOfType("*payment.Payment")).Return(nil)
	f.chargeRepo.On("Save", ctx, mock.AnythingOfType("*billing.Charge")).Return(nil)
	f.paymentRepo.On("FindWithCredit", ctx, stay.ID).Return([]payment.Payment{}, nil)

	result, err := f.service.RecalculateRent(ctx, RecalculateRentRequest{
		StayID:     stay.ID,
		FromPeriod: march,
		ToPeriod:   march,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.ChargesReplaced)
	assert.Equal(t, "28000", result.CreditReleased.String())

	// The old charge is retired in place, never deleted: its reversed
	// allocation rows still reference it. The replacement carries the
	// stay's current terms and is marked as a recalculation.
	var superseded, replacement *billing.Charge
	for _, call := range f.chargeRepo.Calls {
		if call.Method != "Save" {
			continue
		}
		saved := call.Arguments.Get(1).(*billing.Charge)
		if saved.ID == oldCharge.ID {
			superseded = saved
		} else {
			replacement = saved
		}
	}
	f.chargeRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	require.NotNil(t, superseded)
	assert.Equal(t, billing.ChargeStatusSuperseded, superseded.Status)
	assert.True(t, superseded.AllocatedAmount.IsZero())
	require.NotNil(t, replacement)
	assert.Equal(t, billing.ChargeSourceRecalculation, replacement.Source)
	assert.Equal(t, "31200", replacement.Amount.String())
	assert.Equal(t, march, replacement.Period)
}

func TestBillingService_RecalculateRent_InvalidRange(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()

	_, err := f.service.RecalculateRent(ctx, RecalculateRentRequest{
		StayID:     uuid.New(),
		FromPeriod: mustPeriod(t, 2025, time.April),
		ToPeriod:   mustPeriod(t, 2025, time.March),
	})

	assert.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

// =============================================================================
// MarkChargePaid
// =============================================================================

func TestBillingService_MarkChargePaid_SynthesizesTrustedPayment(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stay := testStay(t)
	adminID := uuid.New()
	charge := testRentCharge(t, stay.ID, 2025, time.March, 31200)

	f.chargeRepo.On("FindByID", ctx, charge.ID).Return(charge, nil)
	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.paymentRepo.On("Save", ctx, mock.AnythingOfType("*payment.Payment")).Return(nil)
	f.chargeRepo.On("SaveWithLock", ctx, charge).Return(nil)

	p, err := f.service.MarkChargePaid(ctx, charge.ID, adminID, "paid in cash")

	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.IsConfirmed())
	assert.Equal(t, payment.KindRent, p.Kind)
	assert.Equal(t, "31200", p.TotalAmount.String())
	assert.True(t, p.UnallocatedAmount.IsZero())
	assert.True(t, charge.IsPaid())
	assert.Len(t, f.eventBus.byType(billing.EventTypeChargePaid), 1)
}

func TestBillingService_MarkChargePaid_SettlesOnlyOutstanding(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stay := testStay(t)
	charge := testRentCharge(t, stay.ID, 2025, time.March, 30000)

	// Partially covered already
	require.NoError(t, charge.ApplyAllocation(valueobject.NewMoneyRUBFromFloat(12000)))
	charge.RecomputeStatus()
	charge.ClearDomainEvents()

	f.chargeRepo.On("FindByID", ctx, charge.ID).Return(charge, nil)
	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.paymentRepo.On("Save", ctx, mock.AnythingOfType("*payment.Payment")).Return(nil)
	f.chargeRepo.On("SaveWithLock", ctx, charge).Return(nil)

	p, err := f.service.MarkChargePaid(ctx, charge.ID, uuid.New(), "")

	require.NoError(t, err)
	assert.Equal(t, "18000", p.TotalAmount.String())
	assert.True(t, charge.IsPaid())
}

func TestBillingService_MarkChargePaid_AlreadyPaid(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture()
	stay := testStay(t)
	charge := testRentCharge(t, stay.ID, 2025, time.March, 30000)
	require.NoError(t, charge.ApplyAllocation(valueobject.NewMoneyRUBFromFloat(30000)))
	charge.RecomputeStatus()
	charge.ClearDomainEvents()

	f.chargeRepo.On("FindByID", ctx, charge.ID).Return(charge, nil)

	_, err := f.service.MarkChargePaid(ctx, charge.ID, uuid.New(), "")

	assert.Error(t, err)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "ALREADY_PAID", domainErr.Code)
	f.paymentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
