package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

// ChargeFilter defines filtering options for charge queries
type ChargeFilter struct {
	shared.Filter
	StayID     *uuid.UUID          // Filter by stay
	Kind       *ChargeKind         // Filter by kind
	Status     *ChargeStatus       // Filter by status
	Source     *ChargeSource       // Filter by source
	ProviderID *uuid.UUID          // Filter by utility provider
	FromPeriod *valueobject.Period // Periods on or after
	ToPeriod   *valueobject.Period // Periods on or before
}

// ChargeRepository defines the interface for charge persistence
type ChargeRepository interface {
	// FindByID finds a charge by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Charge, error)

	// FindByStay finds charges for a stay with filtering
	FindByStay(ctx context.Context, stayID uuid.UUID, filter ChargeFilter) ([]Charge, error)

	// FindByStayAndPeriod finds charges for a stay in a given period
	FindByStayAndPeriod(ctx context.Context, stayID uuid.UUID, period valueobject.Period) ([]Charge, error)

	// FindOutstandingByStay finds all charges with outstanding balance for a
	// stay, oldest period first
	FindOutstandingByStay(ctx context.Context, stayID uuid.UUID) ([]Charge, error)

	// FindOutstandingByStayForUpdate locks (SELECT ... FOR UPDATE) and
	// returns outstanding charges for a stay. Must run inside a
	// transaction; the row locks serialize concurrent allocation runs
	// against the same stay.
	FindOutstandingByStayForUpdate(ctx context.Context, stayID uuid.UUID) ([]Charge, error)

	// ExistsForPeriod reports whether a charge of the given kind already
	// exists for the stay and period. Utility charges are scoped per
	// provider (nil providerID matches rent charges).
	ExistsForPeriod(ctx context.Context, stayID uuid.UUID, kind ChargeKind, period valueobject.Period, providerID *uuid.UUID) (bool, error)

	// Save creates or updates a charge
	Save(ctx context.Context, charge *Charge) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, charge *Charge) error

	// Delete removes a charge. Fails with a constraint violation if any
	// active allocation references it.
	Delete(ctx context.Context, id uuid.UUID) error

	// Count counts charges matching the filter
	Count(ctx context.Context, filter ChargeFilter) (int64, error)
}
