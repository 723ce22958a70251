package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/payment"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/rentledger/backend/internal/domain/tenancy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// intakeKeyTTL bounds how long a receipt idempotency key blocks
// re-processing. Long enough to cover messenger webhook retries.
const intakeKeyTTL = 72 * time.Hour

// PaymentService orchestrates payment intake, confirmation and
// reversal. Confirmation and allocation run in one transaction: the
// payment status change and every allocation record commit together or
// not at all.
type PaymentService struct {
	paymentRepo payment.PaymentRepository
	receiptRepo payment.ReceiptRepository
	chargeRepo  billing.ChargeRepository
	stayRepo    tenancy.StayRepository
	allocator   *payment.AllocationService
	txManager   shared.TransactionManager
	idempotency shared.IdempotencyStore
	eventBus    shared.EventPublisher
	logger      *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	paymentRepo payment.PaymentRepository,
	receiptRepo payment.ReceiptRepository,
	chargeRepo billing.ChargeRepository,
	stayRepo tenancy.StayRepository,
	allocator *payment.AllocationService,
	txManager shared.TransactionManager,
	idempotency shared.IdempotencyStore,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		receiptRepo: receiptRepo,
		chargeRepo:  chargeRepo,
		stayRepo:    stayRepo,
		allocator:   allocator,
		txManager:   txManager,
		idempotency: idempotency,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// RecordPaymentRequest represents a manual payment entry
type RecordPaymentRequest struct {
	StayID uuid.UUID
	Kind   payment.Kind
	Amount decimal.Decimal
	Method payment.Method
	PaidAt time.Time
	Note   string
}

// RecordPayment registers a manually entered payment awaiting confirmation
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*payment.Payment, error) {
	stay, err := s.stayRepo.FindByID(ctx, req.StayID)
	if err != nil {
		return nil, err
	}
	if err := stay.EnsureActive(); err != nil {
		return nil, err
	}

	p, err := payment.NewPayment(req.StayID, req.Kind,
		valueobject.NewMoneyRUB(req.Amount), req.Method, req.PaidAt, req.Note)
	if err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", p.ID.String()),
		zap.String("stay_id", p.StayID.String()),
		zap.String("amount", p.TotalAmount.String()))

	s.publishEvents(ctx, p)
	return p, nil
}

// IntakeReceiptRequest carries an uploaded receipt plus whatever the
// parsing collaborator extracted from it
type IntakeReceiptRequest struct {
	StayID         uuid.UUID
	FileID         string
	IdempotencyKey string
	Kind           payment.Kind
	OCRText        string
	OCRConfidence  float64
	ParsedAmount   *decimal.Decimal
	ParsedDate     *time.Time
	ParsedReceiver string
	ParsedPurpose  string
}

// IntakeReceiptResult represents the outcome of receipt intake
type IntakeReceiptResult struct {
	Receipt   *payment.Receipt `json:"receipt"`
	Payment   *payment.Payment `json:"payment"`
	Duplicate bool             `json:"duplicate"` // True when the key was already processed
}

// IntakeReceipt turns an uploaded receipt into a pending payment.
// Duplicate deliveries (same idempotency key) return the original
// receipt instead of creating a second payment. A receipt whose parse
// produced no amount still creates a payment: a zero-amount
// placeholder that an admin must correct before confirming.
func (s *PaymentService) IntakeReceipt(ctx context.Context, req IntakeReceiptRequest) (*IntakeReceiptResult, error) {
	stay, err := s.stayRepo.FindByID(ctx, req.StayID)
	if err != nil {
		return nil, err
	}
	if err := stay.EnsureActive(); err != nil {
		return nil, err
	}

	// The receipts table is the authority on duplicates; its unique key
	// index backs this lookup. The cache key is only claimed after the
	// transaction commits, so a failed intake never blocks its own retry.
	if existing, err := s.receiptRepo.FindByIdempotencyKey(ctx, req.IdempotencyKey); err == nil && existing != nil {
		var existingPayment *payment.Payment
		if existing.PaymentID != nil {
			existingPayment, _ = s.paymentRepo.FindByID(ctx, *existing.PaymentID)
		}
		return &IntakeReceiptResult{Receipt: existing, Payment: existingPayment, Duplicate: true}, nil
	}

	receipt, err := payment.NewReceipt(req.StayID, req.FileID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	receipt.ApplyParse(req.OCRText, req.OCRConfidence, req.ParsedAmount, req.ParsedDate, req.ParsedReceiver, req.ParsedPurpose)

	amount := valueobject.ZeroRUB()
	paidAt := time.Time{}
	if receipt.ParseSucceeded() {
		amount = valueobject.NewMoneyRUB(*req.ParsedAmount)
	}
	if req.ParsedDate != nil {
		paidAt = *req.ParsedDate
	}

	kind := req.Kind
	if kind == "" {
		kind = payment.KindUnspecified
	}

	var p *payment.Payment
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.receiptRepo.Save(ctx, receipt); err != nil {
			return err
		}

		p, err = payment.NewReceiptPayment(req.StayID, kind, amount, receipt.ID, paidAt)
		if err != nil {
			return err
		}
		if err := receipt.Accept(p.ID); err != nil {
			return err
		}
		if err := s.paymentRepo.Save(ctx, p); err != nil {
			return err
		}
		return s.receiptRepo.Save(ctx, receipt)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.idempotency.MarkProcessed(ctx, req.IdempotencyKey, intakeKeyTTL); err != nil {
		// Best effort: the receipt row already guards against duplicates.
		s.logger.Warn("failed to claim processed idempotency key",
			zap.String("idempotency_key", req.IdempotencyKey), zap.Error(err))
	}

	if !receipt.ParseSucceeded() {
		s.logger.Warn("receipt parse produced no amount, created placeholder payment",
			zap.String("receipt_id", receipt.ID.String()),
			zap.String("payment_id", p.ID.String()))
	}

	s.publishEvents(ctx, p)
	return &IntakeReceiptResult{Receipt: receipt, Payment: p, Duplicate: false}, nil
}

// ConfirmPaymentResult represents the outcome of confirm-and-allocate
type ConfirmPaymentResult struct {
	Payment              *payment.Payment `json:"payment"`
	AllocatedTotal       decimal.Decimal  `json:"allocated_total"`
	CarriedCredit        decimal.Decimal  `json:"carried_credit"`
	ChargesFullyPaid     int              `json:"charges_fully_paid"`
	ChargesPartiallyPaid int              `json:"charges_partially_paid"`
}

// ConfirmPayment confirms a pending payment and immediately allocates
// it over the stay's outstanding charges, oldest first. The whole
// operation is one transaction; the stay's outstanding charges are
// row-locked so concurrent confirmations against the same stay
// serialize instead of over-allocating.
func (s *PaymentService) ConfirmPayment(ctx context.Context, paymentID, adminID uuid.UUID) (*ConfirmPaymentResult, error) {
	var result *ConfirmPaymentResult
	var toPublish []shared.AggregateRoot

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := s.paymentRepo.FindByID(ctx, paymentID)
		if err != nil {
			return err
		}

		stay, err := s.stayRepo.FindByID(ctx, p.StayID)
		if err != nil {
			return err
		}
		if err := stay.EnsureActive(); err != nil {
			return err
		}

		if err := p.Confirm(adminID); err != nil {
			return err
		}

		// Row locks serialize allocation runs per stay
		charges, err := s.chargeRepo.FindOutstandingByStayForUpdate(ctx, p.StayID)
		if err != nil {
			return err
		}
		chargePtrs := make([]*billing.Charge, len(charges))
		for i := range charges {
			chargePtrs[i] = &charges[i]
		}

		allocResult, err := s.allocator.AllocatePayment(payment.AllocateRequest{
			Payment: p,
			Charges: chargePtrs,
		})
		if err != nil {
			return err
		}

		for _, charge := range allocResult.UpdatedCharges {
			if err := s.chargeRepo.SaveWithLock(ctx, charge); err != nil {
				return err
			}
			toPublish = append(toPublish, charge)
		}
		if err := s.paymentRepo.SaveWithLock(ctx, p); err != nil {
			return err
		}
		toPublish = append(toPublish, p)

		fullyPaid := 0
		for _, charge := range allocResult.UpdatedCharges {
			if charge.IsPaid() {
				fullyPaid++
			}
		}
		result = &ConfirmPaymentResult{
			Payment:              p,
			AllocatedTotal:       allocResult.TotalAllocated,
			CarriedCredit:        allocResult.RemainingUnallocated,
			ChargesFullyPaid:     fullyPaid,
			ChargesPartiallyPaid: len(allocResult.UpdatedCharges) - fullyPaid,
		}
		return nil
	})
	if err != nil {
		if shared.IsConsistencyViolation(err) {
			s.logger.Error("allocation aborted on consistency violation",
				zap.String("payment_id", paymentID.String()), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("payment confirmed and allocated",
		zap.String("payment_id", paymentID.String()),
		zap.String("allocated", result.AllocatedTotal.String()),
		zap.String("carried", result.CarriedCredit.String()))

	s.publishEvents(ctx, toPublish...)
	return result, nil
}

// RejectPayment declines a pending payment
func (s *PaymentService) RejectPayment(ctx context.Context, paymentID, adminID uuid.UUID, reason string) (*payment.Payment, error) {
	p, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := p.Reject(adminID, reason); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.SaveWithLock(ctx, p); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, p)
	return p, nil
}

// CorrectPaymentAmount fixes the amount of a pending placeholder payment
func (s *PaymentService) CorrectPaymentAmount(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal) (*payment.Payment, error) {
	p, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := p.CorrectAmount(valueobject.NewMoneyRUB(amount)); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.SaveWithLock(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReversePayment compensates all active allocations of a payment back
// onto it and reopens the affected charges. The payment keeps its
// credit; use RejectPayment before confirmation instead.
func (s *PaymentService) ReversePayment(ctx context.Context, paymentID uuid.UUID, reason string) (*payment.Payment, error) {
	var p *payment.Payment
	var toPublish []shared.AggregateRoot

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.paymentRepo.FindByID(ctx, paymentID)
		if err != nil {
			return err
		}

		charges := make([]*billing.Charge, 0)
		for _, alloc := range p.ActiveAllocations() {
			charge, err := s.chargeRepo.FindByID(ctx, alloc.ChargeID)
			if err != nil {
				return fmt.Errorf("loading charge %s for reversal: %w", alloc.ChargeID, err)
			}
			charges = append(charges, charge)
		}

		result, err := s.allocator.ReverseAllocations(payment.ReverseRequest{
			Payment: p,
			Charges: charges,
			Reason:  reason,
		})
		if err != nil {
			return err
		}

		for _, charge := range result.UpdatedCharges {
			if err := s.chargeRepo.SaveWithLock(ctx, charge); err != nil {
				return err
			}
			toPublish = append(toPublish, charge)
		}
		if err := s.paymentRepo.SaveWithLock(ctx, p); err != nil {
			return err
		}
		toPublish = append(toPublish, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, toPublish...)
	return p, nil
}

// GetPayment returns a payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*payment.Payment, error) {
	return s.paymentRepo.FindByID(ctx, paymentID)
}

// ListPayments returns payments for a stay
func (s *PaymentService) ListPayments(ctx context.Context, stayID uuid.UUID, filter payment.PaymentFilter) ([]payment.Payment, error) {
	return s.paymentRepo.FindByStay(ctx, stayID, filter)
}

// ListPending returns payments awaiting confirmation
func (s *PaymentService) ListPending(ctx context.Context, filter payment.PaymentFilter) ([]payment.Payment, error) {
	return s.paymentRepo.FindPending(ctx, filter)
}

// GetReceipt returns a receipt by ID
func (s *PaymentService) GetReceipt(ctx context.Context, receiptID uuid.UUID) (*payment.Receipt, error) {
	return s.receiptRepo.FindByID(ctx, receiptID)
}

// ListReceipts returns receipts for a stay
func (s *PaymentService) ListReceipts(ctx context.Context, stayID uuid.UUID, filter shared.Filter) ([]payment.Receipt, error) {
	return s.receiptRepo.FindByStay(ctx, stayID, filter)
}

// publishEvents drains and publishes domain events after a successful
// commit. Publication failures are logged, never surfaced: the state
// change already happened.
func (s *PaymentService) publishEvents(ctx context.Context, aggregates ...shared.AggregateRoot) {
	for _, agg := range aggregates {
		events := agg.GetDomainEvents()
		if len(events) > 0 {
			if err := s.eventBus.Publish(ctx, events...); err != nil {
				s.logger.Warn("failed to publish domain events", zap.Error(err))
			}
		}
		agg.ClearDomainEvents()
	}
}
