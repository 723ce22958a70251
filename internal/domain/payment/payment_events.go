package payment

import (
	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypePayment = "Payment"

// Event type constants
const (
	EventTypePaymentRecorded            = "PaymentRecorded"
	EventTypePaymentConfirmed           = "PaymentConfirmed"
	EventTypePaymentRejected            = "PaymentRejected"
	EventTypePaymentAllocated           = "PaymentAllocated"
	EventTypePaymentAllocationsReversed = "PaymentAllocationsReversed"
)

// PaymentRecordedEvent is published when a payment enters the system
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID  uuid.UUID       `json:"payment_id"`
	StayID     uuid.UUID       `json:"stay_id"`
	Kind       Kind            `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	Provenance Provenance      `json:"provenance"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		StayID:          p.StayID,
		Kind:            p.Kind,
		Amount:          p.TotalAmount,
		Provenance:      p.Provenance,
	}
}

// PaymentConfirmedEvent is published when a payment is confirmed.
// The notification collaborator subscribes to this.
type PaymentConfirmedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	StayID    uuid.UUID       `json:"stay_id"`
	Kind      Kind            `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
}

// NewPaymentConfirmedEvent creates a new PaymentConfirmedEvent
func NewPaymentConfirmedEvent(p *Payment) *PaymentConfirmedEvent {
	return &PaymentConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentConfirmed, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		StayID:          p.StayID,
		Kind:            p.Kind,
		Amount:          p.TotalAmount,
	}
}

// PaymentRejectedEvent is published when a pending payment is declined
type PaymentRejectedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID `json:"payment_id"`
	StayID    uuid.UUID `json:"stay_id"`
	Reason    string    `json:"reason"`
}

// NewPaymentRejectedEvent creates a new PaymentRejectedEvent
func NewPaymentRejectedEvent(p *Payment) *PaymentRejectedEvent {
	return &PaymentRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRejected, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		StayID:          p.StayID,
		Reason:          p.RejectReason,
	}
}

// PaymentAllocatedEvent is published for each allocation made from a payment
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	PaymentID   uuid.UUID       `json:"payment_id"`
	StayID      uuid.UUID       `json:"stay_id"`
	ChargeID    uuid.UUID       `json:"charge_id"`
	Amount      decimal.Decimal `json:"amount"`
	Unallocated decimal.Decimal `json:"unallocated"`
}

// NewPaymentAllocatedEvent creates a new PaymentAllocatedEvent
func NewPaymentAllocatedEvent(p *Payment, chargeID uuid.UUID, amount decimal.Decimal) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentAllocated, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		StayID:          p.StayID,
		ChargeID:        chargeID,
		Amount:          amount,
		Unallocated:     p.UnallocatedAmount,
	}
}

// PaymentAllocationsReversedEvent is published when allocations are
// compensated back onto the payment
type PaymentAllocationsReversedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID       `json:"payment_id"`
	StayID        uuid.UUID       `json:"stay_id"`
	ReversedCount int             `json:"reversed_count"`
	ReversedTotal decimal.Decimal `json:"reversed_total"`
	Reason        string          `json:"reason"`
}

// NewPaymentAllocationsReversedEvent creates a new PaymentAllocationsReversedEvent
func NewPaymentAllocationsReversedEvent(p *Payment, reversed []Allocation, reason string) *PaymentAllocationsReversedEvent {
	total := decimal.Zero
	for _, a := range reversed {
		total = total.Add(a.Amount)
	}
	return &PaymentAllocationsReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentAllocationsReversed, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		StayID:          p.StayID,
		ReversedCount:   len(reversed),
		ReversedTotal:   total,
		Reason:          reason,
	}
}
