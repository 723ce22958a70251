package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/payment"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/rentledger/backend/internal/domain/tenancy"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockPaymentRepository is a mock implementation of payment.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByStay(ctx context.Context, stayID uuid.UUID, filter payment.PaymentFilter) ([]payment.Payment, error) {
	args := m.Called(ctx, stayID, filter)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindPending(ctx context.Context, filter payment.PaymentFilter) ([]payment.Payment, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindWithCredit(ctx context.Context, stayID uuid.UUID) ([]payment.Payment, error) {
	args := m.Called(ctx, stayID)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindAllocatedToCharge(ctx context.Context, chargeID uuid.UUID) ([]payment.Payment, error) {
	args := m.Called(ctx, chargeID)
	return args.Get(0).([]payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) SaveWithLock(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) Count(ctx context.Context, filter payment.PaymentFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockReceiptRepository is a mock implementation of payment.ReceiptRepository
type MockReceiptRepository struct {
	mock.Mock
}

func (m *MockReceiptRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Receipt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Receipt), args.Error(1)
}

func (m *MockReceiptRepository) FindByIdempotencyKey(ctx context.Context, key string) (*payment.Receipt, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Receipt), args.Error(1)
}

func (m *MockReceiptRepository) FindByStay(ctx context.Context, stayID uuid.UUID, filter shared.Filter) ([]payment.Receipt, error) {
	args := m.Called(ctx, stayID, filter)
	return args.Get(0).([]payment.Receipt), args.Error(1)
}

func (m *MockReceiptRepository) Save(ctx context.Context, r *payment.Receipt) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

// MockChargeRepository is a mock implementation of billing.ChargeRepository
type MockChargeRepository struct {
	mock.Mock
}

func (m *MockChargeRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Charge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Charge), args.Error(1)
}

func (m *MockChargeRepository) FindByStay(ctx context.Context, stayID uuid.UUID, filter billing.ChargeFilter) ([]billing.Charge, error) {
	args := m.Called(ctx, stayID, filter)
	return args.Get(0).([]billing.Charge), args.Error(1)
}

func (m *MockChargeRepository) FindByStayAndPeriod(ctx context.Context, stayID uuid.UUID, period valueobject.Period) ([]billing.Charge, error) {
	args := m.Called(ctx, stayID, period)
	return args.Get(0).([]billing.Charge), args.Error(1)
}

func (m *MockChargeRepository) FindOutstandingByStay(ctx context.Context, stayID uuid.UUID) ([]billing.Charge, error) {
	args := m.Called(ctx, stayID)
	return args.Get(0).([]billing.Charge), args.Error(1)
}

func (m *MockChargeRepository) FindOutstandingByStayForUpdate(ctx context.Context, stayID uuid.UUID) ([]billing.Charge, error) {
	args := m.Called(ctx, stayID)
	return args.Get(0).([]billing.Charge), args.Error(1)
}

func (m *MockChargeRepository) ExistsForPeriod(ctx context.Context, stayID uuid.UUID, kind billing.ChargeKind, period valueobject.Period, providerID *uuid.UUID) (bool, error) {
	args := m.Called(ctx, stayID, kind, period, providerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChargeRepository) Save(ctx context.Context, charge *billing.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockChargeRepository) SaveWithLock(ctx context.Context, charge *billing.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockChargeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockChargeRepository) Count(ctx context.Context, filter billing.ChargeFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockStayRepository is a mock implementation of tenancy.StayRepository
type MockStayRepository struct {
	mock.Mock
}

func (m *MockStayRepository) FindByID(ctx context.Context, id uuid.UUID) (*tenancy.Stay, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.Stay), args.Error(1)
}

func (m *MockStayRepository) FindActiveByUnit(ctx context.Context, unitID uuid.UUID) (*tenancy.Stay, error) {
	args := m.Called(ctx, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenancy.Stay), args.Error(1)
}

func (m *MockStayRepository) FindAll(ctx context.Context, filter tenancy.StayFilter) ([]tenancy.Stay, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]tenancy.Stay), args.Error(1)
}

func (m *MockStayRepository) FindActive(ctx context.Context) ([]tenancy.Stay, error) {
	args := m.Called(ctx)
	return args.Get(0).([]tenancy.Stay), args.Error(1)
}

func (m *MockStayRepository) Save(ctx context.Context, stay *tenancy.Stay) error {
	args := m.Called(ctx, stay)
	return args.Error(0)
}

func (m *MockStayRepository) SaveWithLock(ctx context.Context, stay *tenancy.Stay) error {
	args := m.Called(ctx, stay)
	return args.Error(0)
}

func (m *MockStayRepository) Count(ctx context.Context, filter tenancy.StayFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// =============================================================================
// Infrastructure Fakes
// =============================================================================

// MockEventPublisher collects published events for assertions
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []shared.DomainEvent
	for _, e := range m.events {
		if e.EventType() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// fakeTxManager runs the function directly, no transaction semantics
type fakeTxManager struct{}

func (fakeTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeIdempotencyStore is a map-backed shared.IdempotencyStore
type fakeIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{seen: make(map[string]bool)}
}

func (f *fakeIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[key], nil
}

func (f *fakeIdempotencyStore) Close() error { return nil }
