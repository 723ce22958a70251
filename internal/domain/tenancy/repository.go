package tenancy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
)

// StayFilter defines filtering options for stay queries
type StayFilter struct {
	shared.Filter
	UnitID   *uuid.UUID  // Filter by unit
	Status   *StayStatus // Filter by status
	FromDate *time.Time  // Stays starting on or after
	ToDate   *time.Time  // Stays starting on or before
}

// StayRepository defines the interface for stay persistence
type StayRepository interface {
	// FindByID finds a stay by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Stay, error)

	// FindActiveByUnit finds the currently active stay for a unit, if any
	FindActiveByUnit(ctx context.Context, unitID uuid.UUID) (*Stay, error)

	// FindAll finds stays with filtering
	FindAll(ctx context.Context, filter StayFilter) ([]Stay, error)

	// FindActive finds all active stays (billing cycle input)
	FindActive(ctx context.Context) ([]Stay, error)

	// Save creates or updates a stay
	Save(ctx context.Context, stay *Stay) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, stay *Stay) error

	// Count counts stays matching the filter
	Count(ctx context.Context, filter StayFilter) (int64, error)
}
