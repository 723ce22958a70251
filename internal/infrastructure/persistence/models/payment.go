package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for the Payment aggregate root.
// Allocation records live in their own table: they are the audit trail
// the balance calculator reads, and the FK to charges keeps a charge
// from being deleted while an allocation still references it.
type PaymentModel struct {
	AggregateModel
	StayID            uuid.UUID                `gorm:"type:uuid;not null;index"`
	Kind              payment.Kind             `gorm:"type:varchar(20);not null"`
	TotalAmount       decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	AllocatedAmount   decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	UnallocatedAmount decimal.Decimal          `gorm:"type:decimal(18,2);not null;index"`
	Status            payment.Status           `gorm:"type:varchar(20);not null;default:'PENDING_MANUAL';index"`
	Provenance        payment.Provenance       `gorm:"type:varchar(20);not null"`
	Method            payment.Method           `gorm:"type:varchar(20);not null"`
	PaidAt            time.Time                `gorm:"not null;index"`
	ReceiptID         *uuid.UUID               `gorm:"type:uuid;index"`
	ConfirmedAt       *time.Time
	ConfirmedBy       *uuid.UUID               `gorm:"type:uuid"`
	RejectedAt        *time.Time
	RejectedBy        *uuid.UUID               `gorm:"type:uuid"`
	RejectReason      string                   `gorm:"type:varchar(500)"`
	Allocations       []PaymentAllocationModel `gorm:"foreignKey:PaymentID;references:ID"`
	Note              string                   `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *payment.Payment {
	p := &payment.Payment{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		StayID:            m.StayID,
		Kind:              m.Kind,
		TotalAmount:       m.TotalAmount,
		AllocatedAmount:   m.AllocatedAmount,
		UnallocatedAmount: m.UnallocatedAmount,
		Status:            m.Status,
		Provenance:        m.Provenance,
		Method:            m.Method,
		PaidAt:            m.PaidAt,
		ReceiptID:         m.ReceiptID,
		ConfirmedAt:       m.ConfirmedAt,
		ConfirmedBy:       m.ConfirmedBy,
		RejectedAt:        m.RejectedAt,
		RejectedBy:        m.RejectedBy,
		RejectReason:      m.RejectReason,
		Note:              m.Note,
		Allocations:       make([]payment.Allocation, len(m.Allocations)),
	}
	for i, a := range m.Allocations {
		p.Allocations[i] = *a.ToDomain()
	}
	return p
}

// FromDomain populates the persistence model from a domain Payment entity.
func (m *PaymentModel) FromDomain(p *payment.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.StayID = p.StayID
	m.Kind = p.Kind
	m.TotalAmount = p.TotalAmount
	m.AllocatedAmount = p.AllocatedAmount
	m.UnallocatedAmount = p.UnallocatedAmount
	m.Status = p.Status
	m.Provenance = p.Provenance
	m.Method = p.Method
	m.PaidAt = p.PaidAt
	m.ReceiptID = p.ReceiptID
	m.ConfirmedAt = p.ConfirmedAt
	m.ConfirmedBy = p.ConfirmedBy
	m.RejectedAt = p.RejectedAt
	m.RejectedBy = p.RejectedBy
	m.RejectReason = p.RejectReason
	m.Note = p.Note
	m.Allocations = make([]PaymentAllocationModel, len(p.Allocations))
	for i, a := range p.Allocations {
		m.Allocations[i] = *PaymentAllocationModelFromDomain(&a)
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *payment.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// PaymentAllocationModel is the persistence model for allocation
// records. Rows are immutable except for the reversal fields.
type PaymentAllocationModel struct {
	ID             uuid.UUID                `gorm:"type:uuid;primary_key"`
	PaymentID      uuid.UUID                `gorm:"type:uuid;not null;index"`
	ChargeID       uuid.UUID                `gorm:"type:uuid;not null;index"`
	ChargeKind     billing.ChargeKind       `gorm:"type:varchar(20);not null"`
	Amount         decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	AllocatedAt    time.Time                `gorm:"not null"`
	Status         payment.AllocationStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	ReversedAt     *time.Time
	ReversalReason string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PaymentAllocationModel) TableName() string {
	return "payment_allocations"
}

// ToDomain converts the persistence model to a domain Allocation.
func (m *PaymentAllocationModel) ToDomain() *payment.Allocation {
	return &payment.Allocation{
		ID:             m.ID,
		PaymentID:      m.PaymentID,
		ChargeID:       m.ChargeID,
		ChargeKind:     m.ChargeKind,
		Amount:         m.Amount,
		AllocatedAt:    m.AllocatedAt,
		Status:         m.Status,
		ReversedAt:     m.ReversedAt,
		ReversalReason: m.ReversalReason,
	}
}

// PaymentAllocationModelFromDomain creates a persistence model from a domain Allocation.
func PaymentAllocationModelFromDomain(a *payment.Allocation) *PaymentAllocationModel {
	return &PaymentAllocationModel{
		ID:             a.ID,
		PaymentID:      a.PaymentID,
		ChargeID:       a.ChargeID,
		ChargeKind:     a.ChargeKind,
		Amount:         a.Amount,
		AllocatedAt:    a.AllocatedAt,
		Status:         a.Status,
		ReversedAt:     a.ReversedAt,
		ReversalReason: a.ReversalReason,
	}
}

// ReceiptModel is the persistence model for uploaded receipts.
type ReceiptModel struct {
	BaseModel
	StayID         uuid.UUID               `gorm:"type:uuid;not null;index"`
	FileID         string                  `gorm:"type:varchar(200);not null"`
	IdempotencyKey string                  `gorm:"type:varchar(200);not null;uniqueIndex"`
	OCRText        string                  `gorm:"type:text"`
	OCRConfidence  float64                 `gorm:"type:decimal(5,4)"`
	ParsedAmount   *decimal.Decimal        `gorm:"type:decimal(18,2)"`
	ParsedDate     *time.Time
	ParsedReceiver string                  `gorm:"type:varchar(300)"`
	ParsedPurpose  string                  `gorm:"type:varchar(500)"`
	Decision       payment.ReceiptDecision `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	DecisionReason string                  `gorm:"type:varchar(500)"`
	PaymentID      *uuid.UUID              `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (ReceiptModel) TableName() string {
	return "receipts"
}

// ToDomain converts the persistence model to a domain Receipt entity.
func (m *ReceiptModel) ToDomain() *payment.Receipt {
	return &payment.Receipt{
		BaseEntity:     m.BaseModel.ToDomain(),
		StayID:         m.StayID,
		FileID:         m.FileID,
		IdempotencyKey: m.IdempotencyKey,
		OCRText:        m.OCRText,
		OCRConfidence:  m.OCRConfidence,
		ParsedAmount:   m.ParsedAmount,
		ParsedDate:     m.ParsedDate,
		ParsedReceiver: m.ParsedReceiver,
		ParsedPurpose:  m.ParsedPurpose,
		Decision:       m.Decision,
		DecisionReason: m.DecisionReason,
		PaymentID:      m.PaymentID,
	}
}

// FromDomain populates the persistence model from a domain Receipt entity.
func (m *ReceiptModel) FromDomain(r *payment.Receipt) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.StayID = r.StayID
	m.FileID = r.FileID
	m.IdempotencyKey = r.IdempotencyKey
	m.OCRText = r.OCRText
	m.OCRConfidence = r.OCRConfidence
	m.ParsedAmount = r.ParsedAmount
	m.ParsedDate = r.ParsedDate
	m.ParsedReceiver = r.ParsedReceiver
	m.ParsedPurpose = r.ParsedPurpose
	m.Decision = r.Decision
	m.DecisionReason = r.DecisionReason
	m.PaymentID = r.PaymentID
}

// ReceiptModelFromDomain creates a new persistence model from a domain Receipt.
func ReceiptModelFromDomain(r *payment.Receipt) *ReceiptModel {
	m := &ReceiptModel{}
	m.FromDomain(r)
	return m
}
