package balance

import (
	"context"
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

// MockChargeRepositoryForBalance is a mock implementation of billing.ChargeRepository
type MockChargeRepositoryForBalance struct {
	mock.Mock
}

func (m *MockChargeRepositoryForBalance) FindByID(ctx context.Context, id uuid.UUID) (*billing.Charge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Charge), args.Error(1)
}

func (m *MockChargeRepositoryForBalance) FindByStay(ctx context.Context, stayID uuid.UUID, filter billing.ChargeFilter) ([]billing.Charge, error) {
	args := m.Called(ctx, stayID, filter)
	return args.Get(0).([]billing.Charge), args.Error(1)
}

func (m *MockChargeRepositoryForBalance) FindByStayAndPeriod(ctx context.Context, stayID uuid.UUID, period valueobject.Period) ([]billing.Charge, error) {
	args := m.Called(ctx, stayID, period)
	return args.Get(0).([]billing.Charge), args.Error(1)
}

func (m *MockChargeRepositoryForBalance) FindOutstandingByStay(ctx context.Context, stayID uuid.UUID) ([]billing.Charge, error) {
	args := m.Called(ctx, stayID)
	return args.Get(0).([]billing.Charge), args.Error(1)
}

func (m *MockChargeRepositoryForBalance) FindOutstandingByStayForUpdate(ctx context.Context, stayID uuid.UUID) ([]billing.Charge, error) {
	args := m.Called(ctx, stayID)
	return args.Get(0).([]billing.Charge), args.Error(1)
}

func (m *MockChargeRepositoryForBalance) ExistsForPeriod(ctx context.Context, stayID uuid.UUID, kind billing.ChargeKind, period valueobject.Period, providerID *uuid.UUID) (bool, error) {
	args := m.Called(ctx, stayID, kind, period, providerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChargeRepositoryForBalance) Save(ctx context.Context, charge *billing.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockChargeRepositoryForBalance) SaveWithLock(ctx context.Context, charge *billing.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockChargeRepositoryForBalance) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockChargeRepositoryForBalance) Count(ctx context.Context, filter billing.ChargeFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockPaymentRepositoryForBalance is a mock implementation of payment.PaymentRepository
type MockPaymentRepositoryForBalance struct {
	mock.Mock
}

func (m *MockPaymentRepositoryForBalance) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepositoryForBalance) FindByStay(ctx context.Context, stayID uuid.UUID, filter payment.PaymentFilter) ([]payment.Payment, error) {
	args := m.Called(ctx, stayID, filter)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepositoryForBalance) FindPending(ctx context.Context, filter payment.PaymentFilter) ([]payment.Payment, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepositoryForBalance) FindWithCredit(ctx context.Context, stayID uuid.UUID) ([]payment.Payment, error) {
	args := m.Called(ctx, stayID)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepositoryForBalance) FindAllocatedToCharge(ctx context.Context, chargeID uuid.UUID) ([]payment.Payment, error) {
	args := m.Called(ctx, chargeID)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepositoryForBalance) Save(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepositoryForBalance) SaveWithLock(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepositoryForBalance) Count(ctx context.Context, filter payment.PaymentFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockStayRepositoryForBalance is a mock implementation of tenancy.StayRepository
type MockStayRepositoryForBalance struct {
	mock.Mock
}

func (m *MockStayRepositoryForBalance) FindByID(ctx context.Context, id uuid.UUID) (*tenancy.Stay, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.Stay), args.Error(1)
}

func (m *MockStayRepositoryForBalance) FindActiveByUnit(ctx context.Context, unitID uuid.UUID) (*tenancy.Stay, error) {
	args := m.Called(ctx, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.Stay), args.Error(1)
}

func (m *MockStayRepositoryForBalance) FindAll(ctx context.Context, filter tenancy.StayFilter) ([]tenancy.Stay, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]tenancy.Stay), args.Error(1)
}

func (m *MockStayRepositoryForBalance) FindActive(ctx context.Context) ([]tenancy.Stay, error) {
	args := m.Called(ctx)
	return args.Get(0).([]tenancy.Stay), args.Error(1)
}

func (m *MockStayRepositoryForBalance) Save(ctx context.Context, stay *tenancy.Stay) error {
	args := m.Called(ctx, stay)
	return args.Error(0)
}

func (m *MockStayRepositoryForBalance) SaveWithLock(ctx context.Context, stay *tenancy.Stay) error {
	args := m.Called(ctx, stay)
	return args.Error(0)
}

func (m *MockStayRepositoryForBalance) Count(ctx context.Context, filter tenancy.StayFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// =============================================================================
// Test Helpers
// =============================================================================

type balanceFixture struct {
	chargeRepo  *MockChargeRepositoryForBalance
	paymentRepo *MockPaymentRepositoryForBalance
	stayRepo    *MockStayRepositoryForBalance
	service     *BalanceService
}

func newBalanceFixture() *balanceFixture {
	f := &balanceFixture{
		chargeRepo:  new(MockChargeRepositoryForBalance),
		paymentRepo: new(MockPaymentRepositoryForBalance),
		stayRepo:    new(MockStayRepositoryForBalance),
	}
	f.service = NewBalanceService(f.chargeRepo, f.paymentRepo, f.stayRepo, zap.NewNop())
	return f
}

func balanceTestStay(t *testing.T) *tenancy.Stay {
	t.Helper()
	stay, err := tenancy.NewStay(
		uuid.New(),
		"Lenina 10, apt 5",
		"Ivan Petrov",
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		valueobject.NewMoneyRUBFromFloat(30000),
		5,
		10,
		decimal.Zero,
	)
	require.NoError(t, err)
	stay.ClearDomainEvents()
	return stay
}

func chargeFor(t *testing.T, stayID uuid.UUID, year int, month time.Month, amount float64) *billing.Charge {
	t.Helper()
	period, err := valueobject.NewPeriod(year, month)
	require.NoError(t, err)
	charge, err := billing.NewRentCharge(stayID, period,
		valueobject.NewMoneyRUBFromFloat(amount), decimal.Zero, billing.ChargeSourceScheduled)
	require.NoError(t, err)
	charge.ClearDomainEvents()
	return charge
}

func utilityChargeFor(t *testing.T, stayID uuid.UUID, year int, month time.Month, amount float64) *billing.Charge {
	t.Helper()
	period, err := valueobject.NewPeriod(year, month)
	require.NoError(t, err)
	charge, err := billing.NewUtilityCharge(stayID, uuid.New(), period,
		valueobject.NewMoneyRUBFromFloat(amount), billing.ChargeSourceManual, "")
	require.NoError(t, err)
	charge.ClearDomainEvents()
	return charge
}

func confirmedPaymentCovering(t *testing.T, charge *billing.Charge, amount float64) payment.Payment {
	t.Helper()
	p, err := payment.NewPayment(charge.StayID, payment.KindUnspecified,
		valueobject.NewMoneyRUBFromFloat(amount), payment.MethodSBP, time.Now(), "")
	require.NoError(t, err)
	require.NoError(t, p.Confirm(uuid.New()))
	covered := valueobject.NewMoneyRUB(decimal.Min(p.UnallocatedAmount, charge.OutstandingAmount()))
	require.NoError(t, p.Allocate(charge.ID, charge.Kind, covered))
	require.NoError(t, charge.ApplyAllocation(covered))
	charge.RecomputeStatus()
	p.ClearDomainEvents()
	charge.ClearDomainEvents()
	return *p
}

// =============================================================================
// Test Cases
// =============================================================================

func TestBalanceService_ComputeBalance_DebtAndAdvances(t *testing.T) {
	ctx := context.Background()
	f := newBalanceFixture()
	stay := balanceTestStay(t)

	january := chargeFor(t, stay.ID, 2025, time.January, 30000)
	february := chargeFor(t, stay.ID, 2025, time.February, 30000)
	water := utilityChargeFor(t, stay.ID, 2025, time.January, 2500)

	// January rent fully covered with 5000 to spare as advance
	payer := confirmedPaymentCovering(t, january, 35000)

	confirmed := payment.StatusConfirmed
	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("FindByStay", ctx, stay.ID, billing.ChargeFilter{}).Return([]billing.Charge{*january, *february, *water}, nil)
	f.paymentRepo.On("FindByStay", ctx, stay.ID, payment.PaymentFilter{Status: &confirmed}).Return([]payment.Payment{payer}, nil)

	balance, err := f.service.ComputeBalance(ctx, stay.ID)

	require.NoError(t, err)
	assert.Equal(t, "62500", balance.TotalCharged.String())
	assert.Equal(t, "30000", balance.TotalPaid.String())
	assert.Equal(t, "5000", balance.Advances.String())
	// 62500 charged − 30000 paid − 5000 advances = 27500 debt
	assert.Equal(t, "27500", balance.Balance.String())

	assert.Equal(t, "60000", balance.RentCharged.String())
	assert.Equal(t, "2500", balance.UtilityCharged.String())
	assert.Equal(t, "30000", balance.RentPaid.String())
	assert.True(t, balance.UtilityPaid.IsZero())

	require.Len(t, balance.UnpaidCharges, 2)
	ids := []uuid.UUID{balance.UnpaidCharges[0].ChargeID, balance.UnpaidCharges[1].ChargeID}
	assert.Contains(t, ids, february.ID)
	assert.Contains(t, ids, water.ID)
}

func TestBalanceService_ComputeBalance_NoActivity(t *testing.T) {
	ctx := context.Background()
	f := newBalanceFixture()
	stay := balanceTestStay(t)

	confirmed := payment.StatusConfirmed
	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("FindByStay", ctx, stay.ID, billing.ChargeFilter{}).Return([]billing.Charge{}, nil)
	f.paymentRepo.On("FindByStay", ctx, stay.ID, payment.PaymentFilter{Status: &confirmed}).Return([]payment.Payment{}, nil)

	balance, err := f.service.ComputeBalance(ctx, stay.ID)

	require.NoError(t, err)
	assert.True(t, balance.TotalCharged.IsZero())
	assert.True(t, balance.Balance.IsZero())
	assert.Empty(t, balance.UnpaidCharges)
}

func TestBalanceService_ComputeBalance_PureOverpayment(t *testing.T) {
	ctx := context.Background()
	f := newBalanceFixture()
	stay := balanceTestStay(t)

	january := chargeFor(t, stay.ID, 2025, time.January, 30000)
	payer := confirmedPaymentCovering(t, january, 50000)

	confirmed := payment.StatusConfirmed
	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("FindByStay", ctx, stay.ID, billing.ChargeFilter{}).Return([]billing.Charge{*january}, nil)
	f.paymentRepo.On("FindByStay", ctx, stay.ID, payment.PaymentFilter{Status: &confirmed}).Return([]payment.Payment{payer}, nil)

	balance, err := f.service.ComputeBalance(ctx, stay.ID)

	require.NoError(t, err)
	assert.Equal(t, "20000", balance.Advances.String())
	// Negative balance means carried credit
	assert.Equal(t, "-20000", balance.Balance.String())
	assert.Empty(t, balance.UnpaidCharges)
}

func TestBalanceService_ComputeBalance_IgnoresSupersededCharges(t *testing.T) {
	ctx := context.Background()
	f := newBalanceFixture()
	stay := balanceTestStay(t)

	// A recalculated period: the retired charge stays on record but only
	// the replacement counts
	retired := chargeFor(t, stay.ID, 2025, time.January, 28000)
	require.NoError(t, retired.Supersede())
	replacement := chargeFor(t, stay.ID, 2025, time.January, 30000)

	confirmed := payment.StatusConfirmed
	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("FindByStay", ctx, stay.ID, billing.ChargeFilter{}).Return([]billing.Charge{*retired, *replacement}, nil)
	f.paymentRepo.On("FindByStay", ctx, stay.ID, payment.PaymentFilter{Status: &confirmed}).Return([]payment.Payment{}, nil)

	balance, err := f.service.ComputeBalance(ctx, stay.ID)

	require.NoError(t, err)
	assert.Equal(t, "30000", balance.TotalCharged.String())
	assert.Equal(t, "30000", balance.Balance.String())
	require.Len(t, balance.UnpaidCharges, 1)
	assert.Equal(t, replacement.ID, balance.UnpaidCharges[0].ChargeID)
}

func TestBalanceService_ComputeBalance_DivergedTalliesAbort(t *testing.T) {
	ctx := context.Background()
	f := newBalanceFixture()
	stay := balanceTestStay(t)

	// Charge claims it received money but no payment records support it
	january := chargeFor(t, stay.ID, 2025, time.January, 30000)
	require.NoError(t, january.ApplyAllocation(valueobject.NewMoneyRUBFromFloat(10000)))
	january.ClearDomainEvents()

	confirmed := payment.StatusConfirmed
	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("FindByStay", ctx, stay.ID, billing.ChargeFilter{}).Return([]billing.Charge{*january}, nil)
	f.paymentRepo.On("FindByStay", ctx, stay.ID, payment.PaymentFilter{Status: &confirmed}).Return([]payment.Payment{}, nil)

	_, err := f.service.ComputeBalance(ctx, stay.ID)

	assert.Error(t, err)
	assert.True(t, shared.IsConsistencyViolation(err))
}

func TestBalanceService_ComputeBalanceForUnit(t *testing.T) {
	ctx := context.Background()
	f := newBalanceFixture()
	stay := balanceTestStay(t)

	confirmed := payment.StatusConfirmed
	f.stayRepo.On("FindActiveByUnit", ctx, stay.UnitID).Return(stay, nil)
	f.stayRepo.On("FindByID", ctx, stay.ID).Return(stay, nil)
	f.chargeRepo.On("FindByStay", ctx, stay.ID, billing.ChargeFilter{}).Return([]billing.Charge{}, nil)
	f.paymentRepo.On("FindByStay", ctx, stay.ID, payment.PaymentFilter{Status: &confirmed}).Return([]payment.Payment{}, nil)

	balance, err := f.service.ComputeBalanceForUnit(ctx, stay.UnitID)

	require.NoError(t, err)
	assert.Equal(t, stay.ID, balance.StayID)
}

func TestBalanceService_TotalOutstanding_SumsDebtOnly(t *testing.T) {
	ctx := context.Background()
	f := newBalanceFixture()
	debtor := balanceTestStay(t)
	creditor := balanceTestStay(t)

	debt := chargeFor(t, debtor.ID, 2025, time.January, 30000)
	covered := chargeFor(t, creditor.ID, 2025, time.January, 30000)
	overpayer := confirmedPaymentCovering(t, covered, 45000)

	confirmed := payment.StatusConfirmed
	f.stayRepo.On("FindActive", ctx).Return([]tenancy.Stay{*debtor, *creditor}, nil)
	f.stayRepo.On("FindByID", ctx, debtor.ID).Return(debtor, nil)
	f.stayRepo.On("FindByID", ctx, creditor.ID).Return(creditor, nil)
	f.chargeRepo.On("FindByStay", ctx, debtor.ID, billing.ChargeFilter{}).Return([]billing.Charge{*debt}, nil)
	f.chargeRepo.On("FindByStay", ctx, creditor.ID, billing.ChargeFilter{}).Return([]billing.Charge{*covered}, nil)
	f.paymentRepo.On("FindByStay", ctx, debtor.ID, payment.PaymentFilter{Status: &confirmed}).Return([]payment.Payment{}, nil)
	f.paymentRepo.On("FindByStay", ctx, creditor.ID, payment.PaymentFilter{Status: &confirmed}).Return([]payment.Payment{overpayer}, nil)

	total, err := f.service.TotalOutstanding(ctx)

	require.NoError(t, err)
	// Only the debtor counts; the creditor's carried credit does not
	// offset another stay's debt
	assert.Equal(t, "30000", total.String())
}
