package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/tenancy"
	"github.com/shopspring/decimal"
)

// StayModel is the persistence model for the Stay aggregate root.
// Occupants are stored inline as JSONB; they have no identity outside
// their stay.
type StayModel struct {
	AggregateModel
	UnitID        uuid.UUID          `gorm:"type:uuid;not null;index"`
	UnitLabel     string             `gorm:"type:varchar(200);not null"`
	TenantName    string             `gorm:"type:varchar(200);not null"`
	DateFrom      time.Time          `gorm:"not null;index"`
	DateTo        *time.Time         `gorm:"index"`
	RentAmount    decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	RentDueDay    int                `gorm:"not null"`
	UtilityDueDay int                `gorm:"not null"`
	TaxRate       decimal.Decimal    `gorm:"type:decimal(6,4);not null"`
	Status        tenancy.StayStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	Occupants     tenancy.Occupants  `gorm:"type:jsonb;default:'[]'"`
	ArchivedAt    *time.Time
	Note          string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (StayModel) TableName() string {
	return "stays"
}

// ToDomain converts the persistence model to a domain Stay entity.
func (m *StayModel) ToDomain() *tenancy.Stay {
	return &tenancy.Stay{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		UnitID:            m.UnitID,
		UnitLabel:         m.UnitLabel,
		TenantName:        m.TenantName,
		DateFrom:          m.DateFrom,
		DateTo:            m.DateTo,
		RentAmount:        m.RentAmount,
		RentDueDay:        m.RentDueDay,
		UtilityDueDay:     m.UtilityDueDay,
		TaxRate:           m.TaxRate,
		Status:            m.Status,
		Occupants:         m.Occupants,
		ArchivedAt:        m.ArchivedAt,
		Note:              m.Note,
	}
}

// FromDomain populates the persistence model from a domain Stay entity.
func (m *StayModel) FromDomain(s *tenancy.Stay) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.UnitID = s.UnitID
	m.UnitLabel = s.UnitLabel
	m.TenantName = s.TenantName
	m.DateFrom = s.DateFrom
	m.DateTo = s.DateTo
	m.RentAmount = s.RentAmount
	m.RentDueDay = s.RentDueDay
	m.UtilityDueDay = s.UtilityDueDay
	m.TaxRate = s.TaxRate
	m.Status = s.Status
	m.Occupants = s.Occupants
	m.ArchivedAt = s.ArchivedAt
	m.Note = s.Note
}

// StayModelFromDomain creates a new persistence model from a domain Stay.
func StayModelFromDomain(s *tenancy.Stay) *StayModel {
	m := &StayModel{}
	m.FromDomain(s)
	return m
}
