package payment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// AllocationService is a domain service that distributes a confirmed
// payment over the stay's outstanding charges using an allocation
// strategy. It ensures that:
//  1. Only confirmed payments are allocated
//  2. Kind-restricted payments only touch matching charges
//  3. Payment tallies and charge tallies move together, so the sum of
//     active allocations always equals the payment's allocated amount
//
// The service itself is pure coordination over in-memory aggregates;
// the caller runs it inside a transaction and persists the results.
type AllocationService struct {
	defaultStrategyType billing.AllocationStrategyType
}

// AllocationServiceOption is a functional option for configuring AllocationService
type AllocationServiceOption func(*AllocationService)

// WithDefaultStrategy sets the default allocation strategy type
func WithDefaultStrategy(strategyType billing.AllocationStrategyType) AllocationServiceOption {
	return func(s *AllocationService) {
		if strategyType.IsValid() {
			s.defaultStrategyType = strategyType
		}
	}
}

// NewAllocationService creates a new allocation service
func NewAllocationService(opts ...AllocationServiceOption) *AllocationService {
	s := &AllocationService{
		defaultStrategyType: billing.AllocationStrategyTypeFIFO,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllocateRequest represents a request to allocate a payment over charges
type AllocateRequest struct {
	Payment *Payment
	Charges []*billing.Charge
	// StrategyType defaults to the service's configured strategy
	StrategyType billing.AllocationStrategyType
	// ManualRequests is only used when StrategyType is MANUAL
	ManualRequests []billing.ManualAllocationRequest
}

// AllocateResult represents the outcome of an allocation run
type AllocateResult struct {
	Payment              *Payment          // Payment with updated tallies and records
	UpdatedCharges       []*billing.Charge // Charges that received allocations
	Allocations          []Allocation      // Allocation records created in this run
	TotalAllocated       decimal.Decimal   // Total moved onto charges
	RemainingUnallocated decimal.Decimal   // Credit carried forward on the payment
	FullyAllocated       bool              // True if nothing was carried forward
}

// AllocatePayment runs one allocation pass. A payment with no
// unallocated balance, or with no eligible charges, produces an empty
// result rather than an error: the payment simply stays as carried
// credit until later charges appear.
func (s *AllocationService) AllocatePayment(req AllocateRequest) (*AllocateResult, error) {
	if req.Payment == nil {
		return nil, shared.NewValidationError("INVALID_PAYMENT", "Payment cannot be nil")
	}
	if !req.Payment.Status.CanAllocate() {
		return nil, shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Cannot allocate payment in %s status, must be CONFIRMED", req.Payment.Status))
	}

	result := &AllocateResult{
		Payment:              req.Payment,
		UpdatedCharges:       make([]*billing.Charge, 0),
		Allocations:          make([]Allocation, 0),
		TotalAllocated:       decimal.Zero,
		RemainingUnallocated: req.Payment.UnallocatedAmount,
		FullyAllocated:       req.Payment.UnallocatedAmount.IsZero(),
	}
	if !req.Payment.HasUnallocated() {
		return result, nil
	}

	// Candidate selection: kind filter plus outstanding balance
	chargeByID := make(map[uuid.UUID]*billing.Charge, len(req.Charges))
	targets := make([]billing.AllocationTarget, 0, len(req.Charges))
	for _, charge := range req.Charges {
		if charge == nil {
			continue
		}
		chargeByID[charge.ID] = charge
		if !req.Payment.Kind.Matches(charge.Kind) {
			continue
		}
		if !charge.HasOutstanding() {
			continue
		}
		if charge.StayID != req.Payment.StayID {
			return nil, shared.NewConsistencyViolation("STAY_MISMATCH",
				fmt.Sprintf("Charge %s belongs to stay %s, payment %s to stay %s",
					charge.ID, charge.StayID, req.Payment.ID, req.Payment.StayID))
		}
		targets = append(targets, billing.TargetFromCharge(charge))
	}
	if len(targets) == 0 {
		return result, nil
	}

	strategy, err := s.resolveStrategy(req)
	if err != nil {
		return nil, err
	}

	plan, err := strategy.Allocate(req.Payment.UnallocatedMoney(), targets)
	if err != nil {
		return nil, err
	}

	// Apply the plan to both sides. Each step is guarded by the
	// aggregates' own invariants; any failure aborts the whole run.
	for _, alloc := range plan.Allocations {
		charge, ok := chargeByID[alloc.TargetID]
		if !ok {
			return nil, shared.NewConsistencyViolation("UNKNOWN_TARGET",
				fmt.Sprintf("Allocation plan references unknown charge %s", alloc.TargetID))
		}
		amount := valueobject.NewMoneyRUB(alloc.Amount)

		if err := req.Payment.Allocate(charge.ID, charge.Kind, amount); err != nil {
			return nil, err
		}
		if err := charge.ApplyAllocation(amount); err != nil {
			return nil, err
		}

		result.UpdatedCharges = append(result.UpdatedCharges, charge)
	}

	records := req.Payment.ActiveAllocations()
	if len(records) >= len(plan.Allocations) {
		result.Allocations = records[len(records)-len(plan.Allocations):]
	}
	result.TotalAllocated = plan.TotalAllocated
	result.RemainingUnallocated = req.Payment.UnallocatedAmount
	result.FullyAllocated = req.Payment.UnallocatedAmount.IsZero()

	return result, nil
}

// ReverseRequest represents a request to compensate a payment's allocations
type ReverseRequest struct {
	Payment *Payment
	// Charges must contain every charge referenced by the allocations
	// being reversed
	Charges []*billing.Charge
	// ChargeIDs limits the reversal to allocations against these
	// charges; nil reverses everything
	ChargeIDs map[uuid.UUID]bool
	Reason    string
}

// ReverseResult represents the outcome of a reversal
type ReverseResult struct {
	Payment        *Payment
	UpdatedCharges []*billing.Charge
	Reversed       []Allocation
	ReversedTotal  decimal.Decimal
}

// ReverseAllocations compensates allocations back onto the payment and
// releases the matching amounts from the charges. History is kept:
// reversed records remain on the payment.
func (s *AllocationService) ReverseAllocations(req ReverseRequest) (*ReverseResult, error) {
	if req.Payment == nil {
		return nil, shared.NewValidationError("INVALID_PAYMENT", "Payment cannot be nil")
	}

	chargeByID := make(map[uuid.UUID]*billing.Charge, len(req.Charges))
	for _, charge := range req.Charges {
		if charge != nil {
			chargeByID[charge.ID] = charge
		}
	}

	reversed, err := req.Payment.ReverseAllocationsForCharges(req.ChargeIDs, req.Reason)
	if err != nil {
		return nil, err
	}

	result := &ReverseResult{
		Payment:        req.Payment,
		UpdatedCharges: make([]*billing.Charge, 0, len(reversed)),
		Reversed:       reversed,
		ReversedTotal:  decimal.Zero,
	}

	for _, alloc := range reversed {
		charge, ok := chargeByID[alloc.ChargeID]
		if !ok {
			return nil, shared.NewConsistencyViolation("UNKNOWN_TARGET",
				fmt.Sprintf("Reversal references charge %s that was not loaded", alloc.ChargeID))
		}
		if err := charge.ReleaseAllocation(alloc.AmountMoney()); err != nil {
			return nil, err
		}
		result.UpdatedCharges = append(result.UpdatedCharges, charge)
		result.ReversedTotal = result.ReversedTotal.Add(alloc.Amount)
	}

	return result, nil
}

func (s *AllocationService) resolveStrategy(req AllocateRequest) (billing.AllocationStrategy, error) {
	strategyType := req.StrategyType
	if strategyType == "" {
		strategyType = s.defaultStrategyType
	}

	switch strategyType {
	case billing.AllocationStrategyTypeFIFO:
		return billing.NewFIFOAllocationStrategy(), nil
	case billing.AllocationStrategyTypeManual:
		if len(req.ManualRequests) == 0 {
			return nil, shared.NewValidationError("INVALID_ALLOCATIONS", "Manual strategy requires allocation requests")
		}
		return billing.NewManualAllocationStrategy(req.ManualRequests), nil
	default:
		return nil, shared.NewValidationError("INVALID_STRATEGY", "Unknown allocation strategy type")
	}
}
