package tenancy

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeStay = "Stay"

// Event type constants
const (
	EventTypeStayCreated     = "StayCreated"
	EventTypeStayRentChanged = "StayRentChanged"
	EventTypeStayArchived    = "StayArchived"
)

// StayCreatedEvent is published when a new stay is created
type StayCreatedEvent struct {
	shared.BaseDomainEvent
	StayID     uuid.UUID       `json:"stay_id"`
	UnitID     uuid.UUID       `json:"unit_id"`
	TenantName string          `json:"tenant_name"`
	DateFrom   time.Time       `json:"date_from"`
	RentAmount decimal.Decimal `json:"rent_amount"`
}

// NewStayCreatedEvent creates a new StayCreatedEvent
func NewStayCreatedEvent(stay *Stay) *StayCreatedEvent {
	return &StayCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStayCreated, AggregateTypeStay, stay.ID),
		StayID:          stay.ID,
		UnitID:          stay.UnitID,
		TenantName:      stay.TenantName,
		DateFrom:        stay.DateFrom,
		RentAmount:      stay.RentAmount,
	}
}

// StayRentChangedEvent is published when the stay's rent terms change
type StayRentChangedEvent struct {
	shared.BaseDomainEvent
	StayID  uuid.UUID       `json:"stay_id"`
	OldRent decimal.Decimal `json:"old_rent"`
	NewRent decimal.Decimal `json:"new_rent"`
}

// NewStayRentChangedEvent creates a new StayRentChangedEvent
func NewStayRentChangedEvent(stay *Stay, oldRent, newRent decimal.Decimal) *StayRentChangedEvent {
	return &StayRentChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStayRentChanged, AggregateTypeStay, stay.ID),
		StayID:          stay.ID,
		OldRent:         oldRent,
		NewRent:         newRent,
	}
}

// StayArchivedEvent is published when a stay is archived
type StayArchivedEvent struct {
	shared.BaseDomainEvent
	StayID     uuid.UUID `json:"stay_id"`
	UnitID     uuid.UUID `json:"unit_id"`
	TenantName string    `json:"tenant_name"`
}

// NewStayArchivedEvent creates a new StayArchivedEvent
func NewStayArchivedEvent(stay *Stay) *StayArchivedEvent {
	return &StayArchivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStayArchived, AggregateTypeStay, stay.ID),
		StayID:          stay.ID,
		UnitID:          stay.UnitID,
		TenantName:      stay.TenantName,
	}
}
