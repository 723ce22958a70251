package models

import (
	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ChargeModel is the persistence model for the Charge aggregate root.
// The period is stored as a DATE (first of the month); Period's
// Valuer/Scanner handle the conversion. Uniqueness of "one rent charge
// per stay and period" and "one utility charge per stay, period and
// provider" is enforced by partial unique indexes in the migrations,
// since a NULL provider would defeat a plain composite unique index.
type ChargeModel struct {
	AggregateModel
	StayID          uuid.UUID            `gorm:"type:uuid;not null;index"`
	Kind            billing.ChargeKind   `gorm:"type:varchar(20);not null"`
	Period          valueobject.Period   `gorm:"type:date;not null;index"`
	ProviderID      *uuid.UUID           `gorm:"type:uuid;index"`
	Amount          decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	BaseAmount      decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	TaxAmount       decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	TaxRate         decimal.Decimal      `gorm:"type:decimal(6,4);not null"`
	AllocatedAmount decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Status          billing.ChargeStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Source          billing.ChargeSource `gorm:"type:varchar(20);not null"`
	Description     string               `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (ChargeModel) TableName() string {
	return "charges"
}

// ToDomain converts the persistence model to a domain Charge entity.
func (m *ChargeModel) ToDomain() *billing.Charge {
	return &billing.Charge{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		StayID:            m.StayID,
		Kind:              m.Kind,
		Period:            m.Period,
		Amount:            m.Amount,
		BaseAmount:        m.BaseAmount,
		TaxAmount:         m.TaxAmount,
		TaxRate:           m.TaxRate,
		ProviderID:        m.ProviderID,
		AllocatedAmount:   m.AllocatedAmount,
		Status:            m.Status,
		Source:            m.Source,
		Description:       m.Description,
	}
}

// FromDomain populates the persistence model from a domain Charge entity.
func (m *ChargeModel) FromDomain(c *billing.Charge) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.StayID = c.StayID
	m.Kind = c.Kind
	m.Period = c.Period
	m.ProviderID = c.ProviderID
	m.Amount = c.Amount
	m.BaseAmount = c.BaseAmount
	m.TaxAmount = c.TaxAmount
	m.TaxRate = c.TaxRate
	m.AllocatedAmount = c.AllocatedAmount
	m.Status = c.Status
	m.Source = c.Source
	m.Description = c.Description
}

// ChargeModelFromDomain creates a new persistence model from a domain Charge.
func ChargeModelFromDomain(c *billing.Charge) *ChargeModel {
	m := &ChargeModel{}
	m.FromDomain(c)
	return m
}
