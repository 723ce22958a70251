package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Kind restricts which charges a payment may cover
type Kind string

const (
	KindRent        Kind = "RENT"        // Covers rent charges only
	KindUtility     Kind = "UTILITY"     // Covers utility charges only
	KindUnspecified Kind = "UNSPECIFIED" // Covers any outstanding charge
)

// IsValid checks if the payment kind is valid
func (k Kind) IsValid() bool {
	switch k {
	case KindRent, KindUtility, KindUnspecified:
		return true
	}
	return false
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// Matches reports whether a charge of the given kind is an eligible
// allocation target for this payment kind
func (k Kind) Matches(chargeKind billing.ChargeKind) bool {
	switch k {
	case KindUnspecified:
		return true
	case KindRent:
		return chargeKind == billing.ChargeKindRent
	case KindUtility:
		return chargeKind == billing.ChargeKindUtility
	}
	return false
}

// KindFor returns the payment kind matching a charge kind
func KindFor(chargeKind billing.ChargeKind) Kind {
	if chargeKind == billing.ChargeKindUtility {
		return KindUtility
	}
	return KindRent
}

// Status represents the lifecycle status of a payment
type Status string

const (
	StatusPendingManual Status = "PENDING_MANUAL" // Awaiting admin confirmation
	StatusConfirmed     Status = "CONFIRMED"      // Money acknowledged; allocations allowed
	StatusRejected      Status = "REJECTED"       // Declined; never allocated
)

// IsValid checks if the status is a valid payment Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingManual, StatusConfirmed, StatusRejected:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the payment is in a terminal state
func (s Status) IsTerminal() bool {
	return s == StatusRejected
}

// CanConfirm returns true if the payment can be confirmed from this status
func (s Status) CanConfirm() bool {
	return s == StatusPendingManual
}

// CanAllocate returns true if allocations are allowed in this status
func (s Status) CanAllocate() bool {
	return s == StatusConfirmed
}

// Provenance records how the payment entered the system
type Provenance string

const (
	ProvenanceManual  Provenance = "MANUAL"  // Entered by an admin
	ProvenanceReceipt Provenance = "RECEIPT" // Derived from an uploaded receipt
)

// IsValid checks if the provenance is valid
func (p Provenance) IsValid() bool {
	return p == ProvenanceManual || p == ProvenanceReceipt
}

// Method represents how the money was transferred
type Method string

const (
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodSBP          Method = "SBP" // Fast payment system transfer
	MethodCard         Method = "CARD"
	MethodCash         Method = "CASH"
	MethodOther        Method = "OTHER"
)

// IsValid checks if the payment method is valid
func (m Method) IsValid() bool {
	switch m {
	case MethodBankTransfer, MethodSBP, MethodCard, MethodCash, MethodOther:
		return true
	}
	return false
}

// AllocationStatus represents the status of an allocation record
type AllocationStatus string

const (
	AllocationStatusActive   AllocationStatus = "ACTIVE"   // Counts toward the charge
	AllocationStatusReversed AllocationStatus = "REVERSED" // Compensated; kept for audit
)

// IsValid checks if the allocation status is valid
func (s AllocationStatus) IsValid() bool {
	return s == AllocationStatusActive || s == AllocationStatusReversed
}

// Allocation links a slice of a payment to one charge. Records are
// immutable history: reversal flips the status and keeps the row.
type Allocation struct {
	ID             uuid.UUID          `json:"id"`
	PaymentID      uuid.UUID          `json:"payment_id"`
	ChargeID       uuid.UUID          `json:"charge_id"`
	ChargeKind     billing.ChargeKind `json:"charge_kind"`
	Amount         decimal.Decimal    `json:"amount"`
	AllocatedAt    time.Time          `json:"allocated_at"`
	Status         AllocationStatus   `json:"status"`
	ReversedAt     *time.Time         `json:"reversed_at,omitempty"`
	ReversalReason string             `json:"reversal_reason,omitempty"`
}

// IsActive returns true if the allocation still counts toward its charge
func (a *Allocation) IsActive() bool {
	return a.Status == AllocationStatusActive
}

// AmountMoney returns the allocated amount as Money
func (a *Allocation) AmountMoney() valueobject.Money {
	return valueobject.NewMoneyRUB(a.Amount)
}

// Payment represents money received from the tenant. The tallies obey
// allocated + unallocated == total at every observable point; any
// breach is a consistency violation that aborts the operation.
type Payment struct {
	shared.BaseAggregateRoot
	StayID            uuid.UUID       `json:"stay_id"`
	Kind              Kind            `json:"kind"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	AllocatedAmount   decimal.Decimal `json:"allocated_amount"`
	UnallocatedAmount decimal.Decimal `json:"unallocated_amount"`
	Status            Status          `json:"status"`
	Provenance        Provenance      `json:"provenance"`
	Method            Method          `json:"method"`
	PaidAt            time.Time       `json:"paid_at"` // When the money actually moved
	ReceiptID         *uuid.UUID      `json:"receipt_id"`
	ConfirmedAt       *time.Time      `json:"confirmed_at"`
	ConfirmedBy       *uuid.UUID      `json:"confirmed_by"`
	RejectedAt        *time.Time      `json:"rejected_at"`
	RejectedBy        *uuid.UUID      `json:"rejected_by"`
	RejectReason      string          `json:"reject_reason"`
	Allocations       []Allocation    `json:"allocations"`
	Note              string          `json:"note"`
}

// NewPayment creates a manually recorded payment awaiting confirmation
func NewPayment(
	stayID uuid.UUID,
	kind Kind,
	total valueobject.Money,
	method Method,
	paidAt time.Time,
	note string,
) (*Payment, error) {
	if stayID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_STAY", "Stay ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewValidationError("INVALID_KIND", "Payment kind is not valid")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("INVALID_METHOD", "Payment method is not valid")
	}
	if total.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		StayID:            stayID,
		Kind:              kind,
		TotalAmount:       total.Amount(),
		AllocatedAmount:   decimal.Zero,
		UnallocatedAmount: total.Amount(),
		Status:            StatusPendingManual,
		Provenance:        ProvenanceManual,
		Method:            method,
		PaidAt:            paidAt,
		Allocations:       []Allocation{},
		Note:              note,
	}

	p.AddDomainEvent(NewPaymentRecordedEvent(p))

	return p, nil
}

// NewReceiptPayment creates a payment derived from an uploaded receipt.
// A zero total is allowed here: when the parser could not read the
// amount, the payment is recorded as a placeholder that cannot be
// confirmed until an admin corrects the amount.
func NewReceiptPayment(
	stayID uuid.UUID,
	kind Kind,
	total valueobject.Money,
	receiptID uuid.UUID,
	paidAt time.Time,
) (*Payment, error) {
	if stayID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_STAY", "Stay ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewValidationError("INVALID_KIND", "Payment kind is not valid")
	}
	if receiptID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_RECEIPT", "Receipt ID cannot be empty")
	}
	if total.Amount().IsNegative() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Payment amount cannot be negative")
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		StayID:            stayID,
		Kind:              kind,
		TotalAmount:       total.Amount(),
		AllocatedAmount:   decimal.Zero,
		UnallocatedAmount: total.Amount(),
		Status:            StatusPendingManual,
		Provenance:        ProvenanceReceipt,
		Method:            MethodBankTransfer,
		PaidAt:            paidAt,
		ReceiptID:         &receiptID,
		Allocations:       []Allocation{},
	}

	p.AddDomainEvent(NewPaymentRecordedEvent(p))

	return p, nil
}

// NewTrustedPayment creates a payment that starts out confirmed. Used
// when an admin marks a charge as paid: the admin's word is the
// confirmation.
func NewTrustedPayment(
	stayID uuid.UUID,
	kind Kind,
	total valueobject.Money,
	markedBy uuid.UUID,
	note string,
) (*Payment, error) {
	if markedBy == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ADMIN", "Marking admin ID cannot be empty")
	}

	p, err := NewPayment(stayID, kind, total, MethodOther, time.Now(), note)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p.Status = StatusConfirmed
	p.ConfirmedAt = &now
	p.ConfirmedBy = &markedBy

	p.AddDomainEvent(NewPaymentConfirmedEvent(p))

	return p, nil
}

// TotalMoney returns the total amount as Money
func (p *Payment) TotalMoney() valueobject.Money {
	return valueobject.NewMoneyRUB(p.TotalAmount)
}

// AllocatedMoney returns the allocated amount as Money
func (p *Payment) AllocatedMoney() valueobject.Money {
	return valueobject.NewMoneyRUB(p.AllocatedAmount)
}

// UnallocatedMoney returns the unallocated amount as Money
func (p *Payment) UnallocatedMoney() valueobject.Money {
	return valueobject.NewMoneyRUB(p.UnallocatedAmount)
}

// IsPending returns true if the payment awaits confirmation
func (p *Payment) IsPending() bool {
	return p.Status == StatusPendingManual
}

// IsConfirmed returns true if the payment is confirmed
func (p *Payment) IsConfirmed() bool {
	return p.Status == StatusConfirmed
}

// IsRejected returns true if the payment was rejected
func (p *Payment) IsRejected() bool {
	return p.Status == StatusRejected
}

// HasUnallocated returns true if carried credit remains on the payment
func (p *Payment) HasUnallocated() bool {
	return p.UnallocatedAmount.GreaterThan(decimal.Zero)
}

// ActiveAllocations returns the allocations that still count
func (p *Payment) ActiveAllocations() []Allocation {
	active := make([]Allocation, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		if a.IsActive() {
			active = append(active, a)
		}
	}
	return active
}

// CorrectAmount fixes the amount of a pending receipt-derived payment
// whose OCR parse failed. Only possible before confirmation and before
// any allocation exists.
func (p *Payment) CorrectAmount(total valueobject.Money) error {
	if p.Status != StatusPendingManual {
		return shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Cannot correct amount of payment in %s status", p.Status))
	}
	if len(p.Allocations) > 0 {
		return shared.NewInvalidStateError("INVALID_STATE", "Cannot correct amount after allocations exist")
	}
	if total.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	p.TotalAmount = total.Amount()
	p.UnallocatedAmount = total.Amount()
	p.Touch()
	p.IncrementVersion()

	return p.checkInvariant()
}

// Confirm transitions the payment to CONFIRMED. Confirming twice is an
// explicit error, never a silent second allocation run.
func (p *Payment) Confirm(confirmedBy uuid.UUID) error {
	if p.Status == StatusConfirmed {
		return shared.NewInvalidStateError("ALREADY_CONFIRMED", "Payment is already confirmed")
	}
	if !p.Status.CanConfirm() {
		return shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Cannot confirm payment in %s status", p.Status))
	}
	if confirmedBy == uuid.Nil {
		return shared.NewValidationError("INVALID_ADMIN", "Confirming admin ID cannot be empty")
	}
	if p.TotalAmount.LessThanOrEqual(decimal.Zero) {
		return shared.NewInvalidStateError("AMOUNT_NOT_SET",
			"Payment amount must be corrected before confirmation")
	}

	now := time.Now()
	p.Status = StatusConfirmed
	p.ConfirmedAt = &now
	p.ConfirmedBy = &confirmedBy
	p.UpdatedAt = now
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentConfirmedEvent(p))

	return nil
}

// Reject declines a pending payment
func (p *Payment) Reject(rejectedBy uuid.UUID, reason string) error {
	if !p.Status.CanConfirm() {
		return shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Cannot reject payment in %s status", p.Status))
	}
	if rejectedBy == uuid.Nil {
		return shared.NewValidationError("INVALID_ADMIN", "Rejecting admin ID cannot be empty")
	}

	now := time.Now()
	p.Status = StatusRejected
	p.RejectedAt = &now
	p.RejectedBy = &rejectedBy
	p.RejectReason = reason
	p.UpdatedAt = now
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentRejectedEvent(p))

	return nil
}

// Allocate records a slice of this payment against a charge. The
// payment must be confirmed and the amount must fit in the
// unallocated balance.
func (p *Payment) Allocate(chargeID uuid.UUID, chargeKind billing.ChargeKind, amount valueobject.Money) error {
	if !p.Status.CanAllocate() {
		return shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Cannot allocate payment in %s status", p.Status))
	}
	if chargeID == uuid.Nil {
		return shared.NewValidationError("INVALID_CHARGE", "Charge ID cannot be empty")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if amount.Amount().GreaterThan(p.UnallocatedAmount) {
		return shared.NewConsistencyViolation("OVER_ALLOCATION",
			fmt.Sprintf("Allocating %s exceeds the payment's unallocated balance %s",
				amount.StringFixed(), p.UnallocatedAmount.StringFixed(2)))
	}
	if !p.Kind.Matches(chargeKind) {
		return shared.NewValidationError("KIND_MISMATCH",
			fmt.Sprintf("Payment of kind %s cannot cover a %s charge", p.Kind, chargeKind))
	}

	p.Allocations = append(p.Allocations, Allocation{
		ID:          uuid.New(),
		PaymentID:   p.ID,
		ChargeID:    chargeID,
		ChargeKind:  chargeKind,
		Amount:      amount.Amount(),
		AllocatedAt: time.Now(),
		Status:      AllocationStatusActive,
	})
	p.AllocatedAmount = p.AllocatedAmount.Add(amount.Amount())
	p.UnallocatedAmount = p.UnallocatedAmount.Sub(amount.Amount())
	p.Touch()
	p.IncrementVersion()

	if err := p.checkInvariant(); err != nil {
		return err
	}

	p.AddDomainEvent(NewPaymentAllocatedEvent(p, chargeID, amount.Amount()))

	return nil
}

// ReverseAllocations reverses every active allocation on the payment,
// restoring its unallocated balance. The records stay on the payment
// as reversed history. Returns the reversed allocations so the caller
// can release the matching charges.
func (p *Payment) ReverseAllocations(reason string) ([]Allocation, error) {
	return p.ReverseAllocationsForCharges(nil, reason)
}

// ReverseAllocationsForCharges reverses active allocations targeting
// the given charges (all of them when chargeIDs is nil)
func (p *Payment) ReverseAllocationsForCharges(chargeIDs map[uuid.UUID]bool, reason string) ([]Allocation, error) {
	if reason == "" {
		return nil, shared.NewValidationError("INVALID_REASON", "Reversal reason cannot be empty")
	}

	now := time.Now()
	reversed := make([]Allocation, 0)
	for i := range p.Allocations {
		a := &p.Allocations[i]
		if !a.IsActive() {
			continue
		}
		if chargeIDs != nil && !chargeIDs[a.ChargeID] {
			continue
		}

		a.Status = AllocationStatusReversed
		a.ReversedAt = &now
		a.ReversalReason = reason

		p.AllocatedAmount = p.AllocatedAmount.Sub(a.Amount)
		p.UnallocatedAmount = p.UnallocatedAmount.Add(a.Amount)
		reversed = append(reversed, *a)
	}

	if len(reversed) == 0 {
		return reversed, nil
	}

	p.UpdatedAt = now
	p.IncrementVersion()

	if err := p.checkInvariant(); err != nil {
		return nil, err
	}

	p.AddDomainEvent(NewPaymentAllocationsReversedEvent(p, reversed, reason))

	return reversed, nil
}

// checkInvariant verifies the money-conservation invariant on the
// payment's tallies
func (p *Payment) checkInvariant() error {
	if p.AllocatedAmount.IsNegative() || p.UnallocatedAmount.IsNegative() {
		return shared.NewConsistencyViolation("TALLY_MISMATCH",
			fmt.Sprintf("Payment %s has a negative tally (allocated %s, unallocated %s)",
				p.ID, p.AllocatedAmount.StringFixed(2), p.UnallocatedAmount.StringFixed(2)))
	}
	if !p.AllocatedAmount.Add(p.UnallocatedAmount).Equal(p.TotalAmount) {
		return shared.NewConsistencyViolation("TALLY_MISMATCH",
			fmt.Sprintf("Payment %s tallies do not sum to its total: %s + %s != %s",
				p.ID, p.AllocatedAmount.StringFixed(2), p.UnallocatedAmount.StringFixed(2), p.TotalAmount.StringFixed(2)))
	}
	return nil
}
