package billing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ChargeKind represents what a charge bills for
type ChargeKind string

const (
	ChargeKindRent    ChargeKind = "RENT"    // Monthly rent, tax grossed up
	ChargeKindUtility ChargeKind = "UTILITY" // Utility bill for a provider
)

// IsValid checks if the charge kind is valid
func (k ChargeKind) IsValid() bool {
	return k == ChargeKindRent || k == ChargeKindUtility
}

// String returns the string representation of ChargeKind
func (k ChargeKind) String() string {
	return string(k)
}

// ChargeStatus represents the payment status of a charge
type ChargeStatus string

const (
	ChargeStatusPending    ChargeStatus = "PENDING"    // Outstanding balance > 0 (includes partially covered)
	ChargeStatusPaid       ChargeStatus = "PAID"       // Fully covered by allocations
	ChargeStatusSuperseded ChargeStatus = "SUPERSEDED" // Replaced by recalculation, out of the books
)

// IsValid checks if the status is a valid ChargeStatus
func (s ChargeStatus) IsValid() bool {
	return s == ChargeStatusPending || s == ChargeStatusPaid || s == ChargeStatusSuperseded
}

// String returns the string representation of ChargeStatus
func (s ChargeStatus) String() string {
	return string(s)
}

// ChargeSource represents how a charge came into existence
type ChargeSource string

const (
	ChargeSourceScheduled     ChargeSource = "SCHEDULED"     // Created by the billing cycle
	ChargeSourceManual        ChargeSource = "MANUAL"        // Created by an admin
	ChargeSourceRecalculation ChargeSource = "RECALCULATION" // Replacement created by recalculation
)

// IsValid checks if the charge source is valid
func (s ChargeSource) IsValid() bool {
	switch s {
	case ChargeSourceScheduled, ChargeSourceManual, ChargeSourceRecalculation:
		return true
	}
	return false
}

// Charge represents a single debt owed by the tenant for a billing
// period. Amounts are frozen at creation; only the allocation tally
// and the derived status change afterwards.
type Charge struct {
	shared.BaseAggregateRoot
	StayID          uuid.UUID          `json:"stay_id"`
	Kind            ChargeKind         `json:"kind"`
	Period          valueobject.Period `json:"period"`
	Amount          decimal.Decimal    `json:"amount"`      // Total due (base + tax for rent)
	BaseAmount      decimal.Decimal    `json:"base_amount"` // Pre-tax amount
	TaxAmount       decimal.Decimal    `json:"tax_amount"`
	TaxRate         decimal.Decimal    `json:"tax_rate"` // Snapshot of the stay's rate at creation
	ProviderID      *uuid.UUID         `json:"provider_id"`
	AllocatedAmount decimal.Decimal    `json:"allocated_amount"`
	Status          ChargeStatus       `json:"status"`
	Source          ChargeSource       `json:"source"`
	Description     string             `json:"description"`
}

// NewRentCharge creates a rent charge for the given period. The stay's
// tax rate is applied and snapshotted on the charge, so later rate
// changes never rewrite issued charges.
func NewRentCharge(
	stayID uuid.UUID,
	period valueobject.Period,
	baseAmount valueobject.Money,
	taxRate decimal.Decimal,
	source ChargeSource,
) (*Charge, error) {
	if stayID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_STAY", "Stay ID cannot be empty")
	}
	if period.IsZero() {
		return nil, shared.NewValidationError("INVALID_PERIOD", "Charge period cannot be empty")
	}
	if baseAmount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Charge amount must be positive")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, shared.NewValidationError("INVALID_TAX_RATE", "Tax rate must be between 0 and 1")
	}
	if !source.IsValid() {
		return nil, shared.NewValidationError("INVALID_SOURCE", "Charge source is not valid")
	}

	taxAmount := baseAmount.Amount().Mul(taxRate).Round(2)

	charge := &Charge{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		StayID:            stayID,
		Kind:              ChargeKindRent,
		Period:            period,
		Amount:            baseAmount.Amount().Add(taxAmount),
		BaseAmount:        baseAmount.Amount(),
		TaxAmount:         taxAmount,
		TaxRate:           taxRate,
		AllocatedAmount:   decimal.Zero,
		Status:            ChargeStatusPending,
		Source:            source,
		Description:       fmt.Sprintf("Rent %s", period),
	}

	charge.AddDomainEvent(NewChargeCreatedEvent(charge))

	return charge, nil
}

// NewUtilityCharge creates a utility charge for the given provider and period
func NewUtilityCharge(
	stayID uuid.UUID,
	providerID uuid.UUID,
	period valueobject.Period,
	amount valueobject.Money,
	source ChargeSource,
	description string,
) (*Charge, error) {
	if stayID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_STAY", "Stay ID cannot be empty")
	}
	if providerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PROVIDER", "Provider ID cannot be empty")
	}
	if period.IsZero() {
		return nil, shared.NewValidationError("INVALID_PERIOD", "Charge period cannot be empty")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Charge amount must be positive")
	}
	if !source.IsValid() {
		return nil, shared.NewValidationError("INVALID_SOURCE", "Charge source is not valid")
	}
	if description == "" {
		description = fmt.Sprintf("Utilities %s", period)
	}

	charge := &Charge{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		StayID:            stayID,
		Kind:              ChargeKindUtility,
		Period:            period,
		Amount:            amount.Amount(),
		BaseAmount:        amount.Amount(),
		TaxAmount:         decimal.Zero,
		TaxRate:           decimal.Zero,
		ProviderID:        &providerID,
		AllocatedAmount:   decimal.Zero,
		Status:            ChargeStatusPending,
		Source:            source,
		Description:       description,
	}

	charge.AddDomainEvent(NewChargeCreatedEvent(charge))

	return charge, nil
}

// AmountMoney returns the total due as Money
func (c *Charge) AmountMoney() valueobject.Money {
	return valueobject.NewMoneyRUB(c.Amount)
}

// OutstandingAmount returns the amount not yet covered by allocations
func (c *Charge) OutstandingAmount() decimal.Decimal {
	return c.Amount.Sub(c.AllocatedAmount)
}

// OutstandingMoney returns the outstanding amount as Money
func (c *Charge) OutstandingMoney() valueobject.Money {
	return valueobject.NewMoneyRUB(c.OutstandingAmount())
}

// IsPaid returns true if the charge is fully covered
func (c *Charge) IsPaid() bool {
	return c.Status == ChargeStatusPaid
}

// HasOutstanding returns true if any amount remains unpaid
func (c *Charge) HasOutstanding() bool {
	return c.OutstandingAmount().GreaterThan(decimal.Zero)
}

// ApplyAllocation records money allocated to this charge. The tally can
// never exceed the charge amount; an attempt to do so is a broken
// invariant, not a recoverable input error.
func (c *Charge) ApplyAllocation(amount valueobject.Money) error {
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_AMOUNT", "Allocation amount must be positive")
	}

	newAllocated := c.AllocatedAmount.Add(amount.Amount())
	if newAllocated.GreaterThan(c.Amount) {
		return shared.NewConsistencyViolation("OVER_ALLOCATION",
			fmt.Sprintf("Allocating %s to charge %s would exceed its amount %s (already allocated %s)",
				amount.StringFixed(), c.ID, c.Amount.StringFixed(2), c.AllocatedAmount.StringFixed(2)))
	}

	c.AllocatedAmount = newAllocated
	c.Touch()
	c.IncrementVersion()
	c.RecomputeStatus()

	return nil
}

// ReleaseAllocation takes back money previously allocated to this
// charge (payment reversal, recalculation). The tally can never go
// negative.
func (c *Charge) ReleaseAllocation(amount valueobject.Money) error {
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_AMOUNT", "Release amount must be positive")
	}

	newAllocated := c.AllocatedAmount.Sub(amount.Amount())
	if newAllocated.IsNegative() {
		return shared.NewConsistencyViolation("NEGATIVE_ALLOCATION",
			fmt.Sprintf("Releasing %s from charge %s would drop its allocated tally below zero (currently %s)",
				amount.StringFixed(), c.ID, c.AllocatedAmount.StringFixed(2)))
	}

	c.AllocatedAmount = newAllocated
	c.Touch()
	c.IncrementVersion()
	c.RecomputeStatus()

	return nil
}

// Supersede retires a charge replaced by recalculation. Only a charge
// whose allocations have all been reversed can be superseded; the
// state is terminal. Its allocation history stays on record, so the
// reversed rows keep their reference.
func (c *Charge) Supersede() error {
	if c.Status == ChargeStatusSuperseded {
		return nil
	}
	if !c.AllocatedAmount.IsZero() {
		return shared.NewInvalidStateError("CHARGE_STILL_ALLOCATED",
			fmt.Sprintf("Charge %s still carries %s allocated and cannot be superseded",
				c.ID, c.AllocatedAmount.StringFixed(2)))
	}

	c.Status = ChargeStatusSuperseded
	c.Touch()
	c.IncrementVersion()

	return nil
}

// RecomputeStatus derives the status from the allocation tally: PAID
// if and only if the charge is fully covered. Idempotent; repeated
// calls never flip the status without a tally change. Events fire only
// on actual transitions. A superseded charge never comes back.
func (c *Charge) RecomputeStatus() {
	if c.Status == ChargeStatusSuperseded {
		return
	}

	covered := c.AllocatedAmount.GreaterThanOrEqual(c.Amount)

	switch {
	case covered && c.Status != ChargeStatusPaid:
		c.Status = ChargeStatusPaid
		c.AddDomainEvent(NewChargePaidEvent(c))
	case !covered && c.Status != ChargeStatusPending:
		c.Status = ChargeStatusPending
		c.AddDomainEvent(NewChargeReopenedEvent(c))
	}
}
