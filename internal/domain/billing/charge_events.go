package billing

import (
	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeCharge = "Charge"

// Event type constants
const (
	EventTypeChargeCreated  = "ChargeCreated"
	EventTypeChargePaid     = "ChargePaid"
	EventTypeChargeReopened = "ChargeReopened"
)

// ChargeCreatedEvent is published when a new charge is issued
type ChargeCreatedEvent struct {
	shared.BaseDomainEvent
	ChargeID uuid.UUID          `json:"charge_id"`
	StayID   uuid.UUID          `json:"stay_id"`
	Kind     ChargeKind         `json:"kind"`
	Period   valueobject.Period `json:"period"`
	Amount   decimal.Decimal    `json:"amount"`
	Source   ChargeSource       `json:"source"`
}

// NewChargeCreatedEvent creates a new ChargeCreatedEvent
func NewChargeCreatedEvent(charge *Charge) *ChargeCreatedEvent {
	return &ChargeCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeChargeCreated, AggregateTypeCharge, charge.ID),
		ChargeID:        charge.ID,
		StayID:          charge.StayID,
		Kind:            charge.Kind,
		Period:          charge.Period,
		Amount:          charge.Amount,
		Source:          charge.Source,
	}
}

// ChargePaidEvent is published when a charge becomes fully covered.
// The notification collaborator subscribes to this to tell the tenant.
type ChargePaidEvent struct {
	shared.BaseDomainEvent
	ChargeID uuid.UUID          `json:"charge_id"`
	StayID   uuid.UUID          `json:"stay_id"`
	Kind     ChargeKind         `json:"kind"`
	Period   valueobject.Period `json:"period"`
	Amount   decimal.Decimal    `json:"amount"`
}

// NewChargePaidEvent creates a new ChargePaidEvent
func NewChargePaidEvent(charge *Charge) *ChargePaidEvent {
	return &ChargePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeChargePaid, AggregateTypeCharge, charge.ID),
		ChargeID:        charge.ID,
		StayID:          charge.StayID,
		Kind:            charge.Kind,
		Period:          charge.Period,
		Amount:          charge.Amount,
	}
}

// ChargeReopenedEvent is published when a paid charge loses coverage
// (payment reversal or recalculation)
type ChargeReopenedEvent struct {
	shared.BaseDomainEvent
	ChargeID    uuid.UUID       `json:"charge_id"`
	StayID      uuid.UUID       `json:"stay_id"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// NewChargeReopenedEvent creates a new ChargeReopenedEvent
func NewChargeReopenedEvent(charge *Charge) *ChargeReopenedEvent {
	return &ChargeReopenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeChargeReopened, AggregateTypeCharge, charge.ID),
		ChargeID:        charge.ID,
		StayID:          charge.StayID,
		Outstanding:     charge.OutstandingAmount(),
	}
}
