package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReceiptDecision represents the intake decision for an uploaded receipt
type ReceiptDecision string

const (
	ReceiptDecisionPending  ReceiptDecision = "PENDING"  // Parsed, payment not yet created
	ReceiptDecisionAccepted ReceiptDecision = "ACCEPTED" // Payment created from this receipt
	ReceiptDecisionRejected ReceiptDecision = "REJECTED" // Discarded (duplicate, unreadable, wrong chat)
)

// IsValid checks if the decision is valid
func (d ReceiptDecision) IsValid() bool {
	switch d {
	case ReceiptDecisionPending, ReceiptDecisionAccepted, ReceiptDecisionRejected:
		return true
	}
	return false
}

// Receipt is an uploaded payment document. The OCR/parsing collaborator
// lives outside this core; the receipt stores whatever triple
// (amount, date, confidence) it produced. The binary itself stays in
// the messenger's file storage, referenced by FileID.
type Receipt struct {
	shared.BaseEntity
	StayID         uuid.UUID        `json:"stay_id"`
	FileID         string           `json:"file_id"`
	IdempotencyKey string           `json:"idempotency_key"` // Deduplicates repeated deliveries
	OCRText        string           `json:"ocr_text"`
	OCRConfidence  float64          `json:"ocr_confidence"`
	ParsedAmount   *decimal.Decimal `json:"parsed_amount"`
	ParsedDate     *time.Time       `json:"parsed_date"`
	ParsedReceiver string           `json:"parsed_receiver"`
	ParsedPurpose  string           `json:"parsed_purpose"`
	Decision       ReceiptDecision  `json:"decision"`
	DecisionReason string           `json:"decision_reason"`
	PaymentID      *uuid.UUID       `json:"payment_id"`
}

// NewReceipt creates a receipt awaiting intake
func NewReceipt(stayID uuid.UUID, fileID, idempotencyKey string) (*Receipt, error) {
	if stayID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_STAY", "Stay ID cannot be empty")
	}
	if fileID == "" {
		return nil, shared.NewValidationError("INVALID_FILE", "Receipt file reference cannot be empty")
	}
	if idempotencyKey == "" {
		return nil, shared.NewValidationError("INVALID_IDEMPOTENCY_KEY", "Idempotency key cannot be empty")
	}

	return &Receipt{
		BaseEntity:     shared.NewBaseEntity(),
		StayID:         stayID,
		FileID:         fileID,
		IdempotencyKey: idempotencyKey,
		Decision:       ReceiptDecisionPending,
	}, nil
}

// ApplyParse stores the parser collaborator's output on the receipt
func (r *Receipt) ApplyParse(text string, confidence float64, amount *decimal.Decimal, date *time.Time, receiver, purpose string) {
	r.OCRText = text
	r.OCRConfidence = confidence
	r.ParsedAmount = amount
	r.ParsedDate = date
	r.ParsedReceiver = receiver
	r.ParsedPurpose = purpose
	r.Touch()
}

// ParseSucceeded reports whether the parser produced a usable amount
func (r *Receipt) ParseSucceeded() bool {
	return r.ParsedAmount != nil && r.ParsedAmount.IsPositive()
}

// Accept links the receipt to the payment created from it
func (r *Receipt) Accept(paymentID uuid.UUID) error {
	if r.Decision != ReceiptDecisionPending {
		return shared.NewInvalidStateError("INVALID_STATE", "Receipt has already been decided")
	}
	if paymentID == uuid.Nil {
		return shared.NewValidationError("INVALID_PAYMENT", "Payment ID cannot be empty")
	}

	r.Decision = ReceiptDecisionAccepted
	r.PaymentID = &paymentID
	r.Touch()
	return nil
}

// Reject discards the receipt with a reason
func (r *Receipt) Reject(reason string) error {
	if r.Decision != ReceiptDecisionPending {
		return shared.NewInvalidStateError("INVALID_STATE", "Receipt has already been decided")
	}

	r.Decision = ReceiptDecisionRejected
	r.DecisionReason = reason
	r.Touch()
	return nil
}
