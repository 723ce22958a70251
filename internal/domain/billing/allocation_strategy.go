package billing

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/strategy"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// AllocationStrategyType defines the type of allocation strategy
type AllocationStrategyType string

const (
	AllocationStrategyTypeFIFO   AllocationStrategyType = "FIFO"   // Oldest outstanding charge first
	AllocationStrategyTypeManual AllocationStrategyType = "MANUAL" // Explicit target list
)

// IsValid checks if the strategy type is valid
func (t AllocationStrategyType) IsValid() bool {
	return t == AllocationStrategyTypeFIFO || t == AllocationStrategyTypeManual
}

// String returns the string representation
func (t AllocationStrategyType) String() string {
	return string(t)
}

// AllocationTarget represents a charge eligible for allocation
type AllocationTarget struct {
	ID                uuid.UUID          // Charge ID
	Kind              ChargeKind         // Charge kind, carried into allocation records
	Period            valueobject.Period // Billing month, primary FIFO key
	OutstandingAmount decimal.Decimal    // Amount still unpaid
	CreatedAt         time.Time          // Tie-break within a period
}

// AllocationResult represents the result of a single allocation
type AllocationResult struct {
	TargetID uuid.UUID       // Charge ID
	Kind     ChargeKind      // Charge kind
	Amount   decimal.Decimal // Amount to allocate
}

// AllocationPlan represents the complete result of an allocation strategy.
// It is a pure computation: applying it to the aggregates is the
// caller's job, inside a transaction.
type AllocationPlan struct {
	Allocations          []AllocationResult // List of allocations to make, in order
	TotalAllocated       decimal.Decimal    // Total amount allocated
	RemainingAmount      decimal.Decimal    // Amount left unallocated (carried credit)
	FullyAllocated       bool               // True if the whole amount found a target
	TargetsFullyPaid     []uuid.UUID        // Charges that will become fully paid
	TargetsPartiallyPaid []uuid.UUID        // Charges that will be partially covered
}

// AllocationStrategy decides how a payment amount is distributed over
// outstanding charges
type AllocationStrategy interface {
	strategy.Strategy
	// StrategyType returns the allocation strategy type
	StrategyType() AllocationStrategyType
	// Allocate calculates how to allocate the given amount across targets
	Allocate(amount valueobject.Money, targets []AllocationTarget) (*AllocationPlan, error)
}

// FIFOAllocationStrategy allocates to the oldest outstanding charges
// first: billing period ascending, then creation time, then ID as a
// stable tie-break. Identical inputs always produce an identical plan.
type FIFOAllocationStrategy struct {
	strategy.BaseStrategy
}

// NewFIFOAllocationStrategy creates a new FIFO allocation strategy
func NewFIFOAllocationStrategy() *FIFOAllocationStrategy {
	return &FIFOAllocationStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fifo_allocation",
			strategy.StrategyTypeAllocation,
			"FIFO allocation strategy - pays the oldest outstanding charges first by billing period, then creation time",
		),
	}
}

// StrategyType returns the allocation strategy type
func (s *FIFOAllocationStrategy) StrategyType() AllocationStrategyType {
	return AllocationStrategyTypeFIFO
}

// Allocate allocates the amount to targets oldest-first
func (s *FIFOAllocationStrategy) Allocate(amount valueobject.Money, targets []AllocationTarget) (*AllocationPlan, error) {
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if len(targets) == 0 {
		return emptyPlan(amount.Amount()), nil
	}

	sorted := make([]AllocationTarget, len(targets))
	copy(sorted, targets)
	sort.Slice(sorted, func(i, j int) bool {
		if cmp := sorted[i].Period.Compare(sorted[j].Period); cmp != 0 {
			return cmp < 0
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	allocations := make([]AllocationResult, 0)
	fullyPaid := make([]uuid.UUID, 0)
	partiallyPaid := make([]uuid.UUID, 0)
	remaining := amount.Amount()
	totalAllocated := decimal.Zero

	for _, target := range sorted {
		if remaining.IsZero() {
			break
		}
		if target.OutstandingAmount.LessThanOrEqual(decimal.Zero) {
			continue
		}

		allocAmount := decimal.Min(remaining, target.OutstandingAmount)

		allocations = append(allocations, AllocationResult{
			TargetID: target.ID,
			Kind:     target.Kind,
			Amount:   allocAmount,
		})

		totalAllocated = totalAllocated.Add(allocAmount)
		remaining = remaining.Sub(allocAmount)

		if allocAmount.GreaterThanOrEqual(target.OutstandingAmount) {
			fullyPaid = append(fullyPaid, target.ID)
		} else {
			partiallyPaid = append(partiallyPaid, target.ID)
		}
	}

	return &AllocationPlan{
		Allocations:          allocations,
		TotalAllocated:       totalAllocated,
		RemainingAmount:      remaining,
		FullyAllocated:       remaining.IsZero(),
		TargetsFullyPaid:     fullyPaid,
		TargetsPartiallyPaid: partiallyPaid,
	}, nil
}

// ManualAllocationRequest represents a request to allocate to a specific charge
type ManualAllocationRequest struct {
	TargetID uuid.UUID       // Charge ID
	Amount   decimal.Decimal // Amount to allocate (zero means full outstanding)
}

// ManualAllocationStrategy allocates to explicitly listed charges in
// order. Used when an admin marks a specific charge as paid.
type ManualAllocationStrategy struct {
	strategy.BaseStrategy
	requests []ManualAllocationRequest
}

// NewManualAllocationStrategy creates a new manual allocation strategy
func NewManualAllocationStrategy(requests []ManualAllocationRequest) *ManualAllocationStrategy {
	return &ManualAllocationStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"manual_allocation",
			strategy.StrategyTypeAllocation,
			"Manual allocation strategy - allocates to admin-specified charges in order",
		),
		requests: requests,
	}
}

// StrategyType returns the allocation strategy type
func (s *ManualAllocationStrategy) StrategyType() AllocationStrategyType {
	return AllocationStrategyTypeManual
}

// Allocate allocates the amount to the requested charges in order
func (s *ManualAllocationStrategy) Allocate(amount valueobject.Money, targets []AllocationTarget) (*AllocationPlan, error) {
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if len(targets) == 0 {
		return emptyPlan(amount.Amount()), nil
	}

	targetMap := make(map[uuid.UUID]*AllocationTarget)
	for i := range targets {
		targetMap[targets[i].ID] = &targets[i]
	}

	allocations := make([]AllocationResult, 0)
	fullyPaid := make([]uuid.UUID, 0)
	partiallyPaid := make([]uuid.UUID, 0)
	remaining := amount.Amount()
	totalAllocated := decimal.Zero

	for _, req := range s.requests {
		if remaining.IsZero() {
			break
		}

		target, exists := targetMap[req.TargetID]
		if !exists {
			continue
		}
		if target.OutstandingAmount.LessThanOrEqual(decimal.Zero) {
			continue
		}

		var allocAmount decimal.Decimal
		if req.Amount.IsZero() {
			allocAmount = decimal.Min(remaining, target.OutstandingAmount)
		} else {
			allocAmount = decimal.Min(req.Amount, remaining)
			allocAmount = decimal.Min(allocAmount, target.OutstandingAmount)
		}
		if allocAmount.LessThanOrEqual(decimal.Zero) {
			continue
		}

		allocations = append(allocations, AllocationResult{
			TargetID: target.ID,
			Kind:     target.Kind,
			Amount:   allocAmount,
		})

		totalAllocated = totalAllocated.Add(allocAmount)
		remaining = remaining.Sub(allocAmount)

		if allocAmount.GreaterThanOrEqual(target.OutstandingAmount) {
			fullyPaid = append(fullyPaid, target.ID)
		} else {
			partiallyPaid = append(partiallyPaid, target.ID)
		}

		target.OutstandingAmount = target.OutstandingAmount.Sub(allocAmount)
	}

	return &AllocationPlan{
		Allocations:          allocations,
		TotalAllocated:       totalAllocated,
		RemainingAmount:      remaining,
		FullyAllocated:       remaining.IsZero(),
		TargetsFullyPaid:     fullyPaid,
		TargetsPartiallyPaid: partiallyPaid,
	}, nil
}

// TargetFromCharge converts a charge into an allocation target
func TargetFromCharge(charge *Charge) AllocationTarget {
	return AllocationTarget{
		ID:                charge.ID,
		Kind:              charge.Kind,
		Period:            charge.Period,
		OutstandingAmount: charge.OutstandingAmount(),
		CreatedAt:         charge.CreatedAt,
	}
}

func emptyPlan(amount decimal.Decimal) *AllocationPlan {
	return &AllocationPlan{
		Allocations:          make([]AllocationResult, 0),
		TotalAllocated:       decimal.Zero,
		RemainingAmount:      amount,
		FullyAllocated:       false,
		TargetsFullyPaid:     make([]uuid.UUID, 0),
		TargetsPartiallyPaid: make([]uuid.UUID, 0),
	}
}
