package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
)

// PaymentFilter defines filtering options for payment queries
type PaymentFilter struct {
	shared.Filter
	StayID     *uuid.UUID  // Filter by stay
	Kind       *Kind       // Filter by kind
	Status     *Status     // Filter by status
	Provenance *Provenance // Filter by provenance
	FromDate   *time.Time  // Paid on or after
	ToDate     *time.Time  // Paid on or before
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByID finds a payment by ID, allocations included
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByStay finds payments for a stay with filtering
	FindByStay(ctx context.Context, stayID uuid.UUID, filter PaymentFilter) ([]Payment, error)

	// FindPending finds payments awaiting manual confirmation
	FindPending(ctx context.Context, filter PaymentFilter) ([]Payment, error)

	// FindWithCredit finds confirmed payments for a stay with an
	// unallocated balance, oldest paid-at first. Billing cycles re-run
	// allocation over these.
	FindWithCredit(ctx context.Context, stayID uuid.UUID) ([]Payment, error)

	// FindAllocatedToCharge finds confirmed payments holding active
	// allocations against the given charge
	FindAllocatedToCharge(ctx context.Context, chargeID uuid.UUID) ([]Payment, error)

	// Save creates or updates a payment together with its allocation records
	Save(ctx context.Context, p *Payment) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, p *Payment) error

	// Count counts payments matching the filter
	Count(ctx context.Context, filter PaymentFilter) (int64, error)
}

// ReceiptRepository defines the interface for receipt persistence
type ReceiptRepository interface {
	// FindByID finds a receipt by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Receipt, error)

	// FindByIdempotencyKey finds a receipt by its intake idempotency key
	FindByIdempotencyKey(ctx context.Context, key string) (*Receipt, error)

	// FindByStay finds receipts uploaded for a stay
	FindByStay(ctx context.Context, stayID uuid.UUID, filter shared.Filter) ([]Receipt, error)

	// Save creates or updates a receipt
	Save(ctx context.Context, r *Receipt) error
}
