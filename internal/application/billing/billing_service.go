package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/payment"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/rentledger/backend/internal/domain/tenancy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BillingService issues periodic charges and keeps allocations in step
// with them. Charge issuance is idempotent per stay, kind and period:
// running a cycle twice never duplicates a charge.
type BillingService struct {
	chargeRepo  billing.ChargeRepository
	paymentRepo payment.PaymentRepository
	stayRepo    tenancy.StayRepository
	allocator   *payment.AllocationService
	txManager   shared.TransactionManager
	eventBus    shared.EventPublisher
	logger      *zap.Logger
}

// NewBillingService creates a new BillingService
func NewBillingService(
	chargeRepo billing.ChargeRepository,
	paymentRepo payment.PaymentRepository,
	stayRepo tenancy.StayRepository,
	allocator *payment.AllocationService,
	txManager shared.TransactionManager,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *BillingService {
	return &BillingService{
		chargeRepo:  chargeRepo,
		paymentRepo: paymentRepo,
		stayRepo:    stayRepo,
		allocator:   allocator,
		txManager:   txManager,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// EnsureRentCharge creates the rent charge for a stay and period if it
// does not exist yet. Idempotent: when the period was already charged
// the existing charge is returned instead of a duplicate.
func (s *BillingService) EnsureRentCharge(ctx context.Context, stayID uuid.UUID, period valueobject.Period) (*billing.Charge, error) {
	stay, err := s.stayRepo.FindByID(ctx, stayID)
	if err != nil {
		return nil, err
	}
	if err := stay.EnsureActive(); err != nil {
		return nil, err
	}

	exists, err := s.chargeRepo.ExistsForPeriod(ctx, stayID, billing.ChargeKindRent, period, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return s.findLiveCharge(ctx, stayID, billing.ChargeKindRent, period, nil)
	}

	charge, err := billing.NewRentCharge(stayID, period, stay.RentAmountMoney(), stay.TaxRate, billing.ChargeSourceScheduled)
	if err != nil {
		return nil, err
	}
	if err := s.chargeRepo.Save(ctx, charge); err != nil {
		return nil, err
	}

	s.logger.Info("rent charge issued",
		zap.String("stay_id", stayID.String()),
		zap.String("period", period.String()),
		zap.String("amount", charge.Amount.String()))

	s.publishEvents(ctx, charge)
	return charge, nil
}

// EnsureUtilityChargeRequest represents a utility charge entry
type EnsureUtilityChargeRequest struct {
	StayID      uuid.UUID
	ProviderID  uuid.UUID
	Period      valueobject.Period
	Amount      decimal.Decimal
	Description string
}

// EnsureUtilityCharge creates a utility charge for a stay, period and
// provider if one does not exist yet, otherwise returns the existing
// charge
func (s *BillingService) EnsureUtilityCharge(ctx context.Context, req EnsureUtilityChargeRequest) (*billing.Charge, error) {
	stay, err := s.stayRepo.FindByID(ctx, req.StayID)
	if err != nil {
		return nil, err
	}
	if err := stay.EnsureActive(); err != nil {
		return nil, err
	}

	exists, err := s.chargeRepo.ExistsForPeriod(ctx, req.StayID, billing.ChargeKindUtility, req.Period, &req.ProviderID)
	if err != nil {
		return nil, err
	}
	if exists {
		return s.findLiveCharge(ctx, req.StayID, billing.ChargeKindUtility, req.Period, &req.ProviderID)
	}

	charge, err := billing.NewUtilityCharge(req.StayID, req.ProviderID, req.Period,
		valueobject.NewMoneyRUB(req.Amount), billing.ChargeSourceManual, req.Description)
	if err != nil {
		return nil, err
	}
	if err := s.chargeRepo.Save(ctx, charge); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, charge)
	return charge, nil
}

// BillingCycleResult represents the outcome of one cycle run for a stay
type BillingCycleResult struct {
	StayID         uuid.UUID       `json:"stay_id"`
	Period         string          `json:"period"`
	ChargeIssued   bool            `json:"charge_issued"`
	CreditApplied  decimal.Decimal `json:"credit_applied"`
	PaymentsDrawn  int             `json:"payments_drawn"`
	ChargesCovered int             `json:"charges_covered"`
}

// RunBillingCycle issues the rent charge for a stay and period, then
// re-runs allocation over confirmed payments that still carry credit,
// oldest paid-at first. Overpayments from earlier months land on the
// new charge without any manual step.
func (s *BillingService) RunBillingCycle(ctx context.Context, stayID uuid.UUID, period valueobject.Period) (*BillingCycleResult, error) {
	result := &BillingCycleResult{
		StayID:        stayID,
		Period:        period.String(),
		CreditApplied: decimal.Zero,
	}
	var toPublish []shared.AggregateRoot

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		stay, err := s.stayRepo.FindByID(ctx, stayID)
		if err != nil {
			return err
		}
		if err := stay.EnsureActive(); err != nil {
			return err
		}

		exists, err := s.chargeRepo.ExistsForPeriod(ctx, stayID, billing.ChargeKindRent, period, nil)
		if err != nil {
			return err
		}
		if !exists {
			charge, err := billing.NewRentCharge(stayID, period, stay.RentAmountMoney(), stay.TaxRate, billing.ChargeSourceScheduled)
			if err != nil {
				return err
			}
			if err := s.chargeRepo.Save(ctx, charge); err != nil {
				return err
			}
			toPublish = append(toPublish, charge)
			result.ChargeIssued = true
		}

		applied, drawn, covered, published, err := s.drawCredit(ctx, stayID)
		if err != nil {
			return err
		}
		result.CreditApplied = applied
		result.PaymentsDrawn = drawn
		result.ChargesCovered = covered
		toPublish = append(toPublish, published...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("billing cycle completed",
		zap.String("stay_id", stayID.String()),
		zap.String("period", period.String()),
		zap.Bool("charge_issued", result.ChargeIssued),
		zap.String("credit_applied", result.CreditApplied.String()))

	s.publishEvents(ctx, toPublish...)
	return result, nil
}

// RunBillingCycleForAll runs the billing cycle for every active stay.
// A failure on one stay is logged and does not stop the others.
func (s *BillingService) RunBillingCycleForAll(ctx context.Context, period valueobject.Period) ([]BillingCycleResult, error) {
	stays, err := s.stayRepo.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]BillingCycleResult, 0, len(stays))
	for i := range stays {
		result, err := s.RunBillingCycle(ctx, stays[i].ID, period)
		if err != nil {
			s.logger.Error("billing cycle failed for stay",
				zap.String("stay_id", stays[i].ID.String()),
				zap.String("period", period.String()),
				zap.Error(err))
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// RecalculateRentRequest represents a rent recalculation over a period range
type RecalculateRentRequest struct {
	StayID     uuid.UUID
	FromPeriod valueobject.Period
	ToPeriod   valueobject.Period
}

// RecalculateRentResult represents the outcome of a recalculation
type RecalculateRentResult struct {
	ChargesReplaced int             `json:"charges_replaced"`
	CreditReleased  decimal.Decimal `json:"credit_released"`
	CreditReapplied decimal.Decimal `json:"credit_reapplied"`
}

// RecalculateRent replaces the rent charges of a period range with
// charges computed from the stay's current terms. Allocations held by
// the old charges are reversed back onto their payments first, then the
// freed credit is re-run over the new charges. Money is conserved
// throughout: every ruble released from an old charge ends up either on
// a new charge or as carried credit on its payment.
func (s *BillingService) RecalculateRent(ctx context.Context, req RecalculateRentRequest) (*RecalculateRentResult, error) {
	if req.ToPeriod.Before(req.FromPeriod) {
		return nil, shared.NewValidationError("INVALID_PERIOD_RANGE", "To-period cannot precede from-period")
	}

	result := &RecalculateRentResult{
		CreditReleased:  decimal.Zero,
		CreditReapplied: decimal.Zero,
	}
	var toPublish []shared.AggregateRoot

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		stay, err := s.stayRepo.FindByID(ctx, req.StayID)
		if err != nil {
			return err
		}
		if err := stay.EnsureActive(); err != nil {
			return err
		}

		kind := billing.ChargeKindRent
		charges, err := s.chargeRepo.FindByStay(ctx, req.StayID, billing.ChargeFilter{
			Kind:       &kind,
			FromPeriod: &req.FromPeriod,
			ToPeriod:   &req.ToPeriod,
		})
		if err != nil {
			return err
		}

		// Release old allocations, then replace each charge
		for i := range charges {
			old := &charges[i]

			payments, err := s.paymentRepo.FindAllocatedToCharge(ctx, old.ID)
			if err != nil {
				return err
			}
			for j := range payments {
				p := &payments[j]
				reverseResult, err := s.allocator.ReverseAllocations(payment.ReverseRequest{
					Payment:   p,
					Charges:   []*billing.Charge{old},
					ChargeIDs: map[uuid.UUID]bool{old.ID: true},
					Reason:    fmt.Sprintf("Rent recalculation for %s", old.Period),
				})
				if err != nil {
					return err
				}
				if err := s.paymentRepo.SaveWithLock(ctx, p); err != nil {
					return err
				}
				result.CreditReleased = result.CreditReleased.Add(reverseResult.ReversedTotal)
				toPublish = append(toPublish, p)
			}

			// The old charge is retired, not deleted: its reversed
			// allocation rows still reference it.
			if err := old.Supersede(); err != nil {
				return err
			}
			if err := s.chargeRepo.Save(ctx, old); err != nil {
				return err
			}

			replacement, err := billing.NewRentCharge(req.StayID, old.Period,
				stay.RentAmountMoney(), stay.TaxRate, billing.ChargeSourceRecalculation)
			if err != nil {
				return err
			}
			if err := s.chargeRepo.Save(ctx, replacement); err != nil {
				return err
			}
			toPublish = append(toPublish, replacement)
			result.ChargesReplaced++
		}

		// Re-run the freed credit over the new charges
		applied, _, _, published, err := s.drawCredit(ctx, req.StayID)
		if err != nil {
			return err
		}
		result.CreditReapplied = applied
		toPublish = append(toPublish, published...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("rent recalculated",
		zap.String("stay_id", req.StayID.String()),
		zap.Int("charges_replaced", result.ChargesReplaced),
		zap.String("credit_released", result.CreditReleased.String()),
		zap.String("credit_reapplied", result.CreditReapplied.String()))

	s.publishEvents(ctx, toPublish...)
	return result, nil
}

// MarkChargePaid settles a specific charge on an admin's word. A
// confirmed payment for exactly the outstanding amount is synthesized
// and allocated to that charge alone, so the books still show where the
// money came from.
func (s *BillingService) MarkChargePaid(ctx context.Context, chargeID, adminID uuid.UUID, note string) (*payment.Payment, error) {
	var p *payment.Payment
	var toPublish []shared.AggregateRoot

	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		charge, err := s.chargeRepo.FindByID(ctx, chargeID)
		if err != nil {
			return err
		}
		if !charge.HasOutstanding() {
			return shared.NewInvalidStateError("ALREADY_PAID", "Charge has no outstanding balance")
		}

		stay, err := s.stayRepo.FindByID(ctx, charge.StayID)
		if err != nil {
			return err
		}
		if err := stay.EnsureActive(); err != nil {
			return err
		}

		p, err = payment.NewTrustedPayment(charge.StayID, payment.KindFor(charge.Kind),
			charge.OutstandingMoney(), adminID, note)
		if err != nil {
			return err
		}

		allocResult, err := s.allocator.AllocatePayment(payment.AllocateRequest{
			Payment:      p,
			Charges:      []*billing.Charge{charge},
			StrategyType: billing.AllocationStrategyTypeManual,
			ManualRequests: []billing.ManualAllocationRequest{
				{TargetID: charge.ID},
			},
		})
		if err != nil {
			return err
		}
		if !allocResult.FullyAllocated {
			return shared.NewConsistencyViolation("PARTIAL_SETTLEMENT",
				fmt.Sprintf("Marking charge %s paid left %s unallocated", chargeID, allocResult.RemainingUnallocated))
		}

		if err := s.paymentRepo.Save(ctx, p); err != nil {
			return err
		}
		if err := s.chargeRepo.SaveWithLock(ctx, charge); err != nil {
			return err
		}
		toPublish = append(toPublish, p, charge)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("charge marked paid",
		zap.String("charge_id", chargeID.String()),
		zap.String("admin_id", adminID.String()),
		zap.String("amount", p.TotalAmount.String()))

	s.publishEvents(ctx, toPublish...)
	return p, nil
}

// GetCharge returns a charge by ID
func (s *BillingService) GetCharge(ctx context.Context, chargeID uuid.UUID) (*billing.Charge, error) {
	return s.chargeRepo.FindByID(ctx, chargeID)
}

// ListCharges returns charges for a stay
func (s *BillingService) ListCharges(ctx context.Context, stayID uuid.UUID, filter billing.ChargeFilter) ([]billing.Charge, error) {
	return s.chargeRepo.FindByStay(ctx, stayID, filter)
}

// findLiveCharge returns the non-superseded charge already issued for
// the stay, kind and period. Utility charges match on provider.
func (s *BillingService) findLiveCharge(ctx context.Context, stayID uuid.UUID, kind billing.ChargeKind, period valueobject.Period, providerID *uuid.UUID) (*billing.Charge, error) {
	charges, err := s.chargeRepo.FindByStayAndPeriod(ctx, stayID, period)
	if err != nil {
		return nil, err
	}
	for i := range charges {
		charge := &charges[i]
		if charge.Kind != kind || charge.Status == billing.ChargeStatusSuperseded {
			continue
		}
		if providerID != nil && (charge.ProviderID == nil || *charge.ProviderID != *providerID) {
			continue
		}
		return charge, nil
	}
	return nil, shared.NewNotFoundError("CHARGE_NOT_FOUND",
		fmt.Sprintf("No %s charge found for stay %s in %s", kind, stayID, period))
}

// drawCredit re-runs allocation over confirmed payments that still
// carry unallocated credit, oldest paid-at first. Must run inside a
// transaction. Returns the applied total, the number of payments drawn
// from, the number of charges touched and the aggregates to publish.
func (s *BillingService) drawCredit(ctx context.Context, stayID uuid.UUID) (decimal.Decimal, int, int, []shared.AggregateRoot, error) {
	applied := decimal.Zero
	drawn := 0
	touched := make(map[uuid.UUID]bool)
	var toPublish []shared.AggregateRoot

	creditPayments, err := s.paymentRepo.FindWithCredit(ctx, stayID)
	if err != nil {
		return applied, 0, 0, nil, err
	}
	if len(creditPayments) == 0 {
		return applied, 0, 0, nil, nil
	}

	charges, err := s.chargeRepo.FindOutstandingByStayForUpdate(ctx, stayID)
	if err != nil {
		return applied, 0, 0, nil, err
	}
	chargePtrs := make([]*billing.Charge, len(charges))
	for i := range charges {
		chargePtrs[i] = &charges[i]
	}

	for i := range creditPayments {
		p := &creditPayments[i]
		allocResult, err := s.allocator.AllocatePayment(payment.AllocateRequest{
			Payment: p,
			Charges: chargePtrs,
		})
		if err != nil {
			return applied, 0, 0, nil, err
		}
		if allocResult.TotalAllocated.IsZero() {
			continue
		}

		if err := s.paymentRepo.SaveWithLock(ctx, p); err != nil {
			return applied, 0, 0, nil, err
		}
		for _, charge := range allocResult.UpdatedCharges {
			if err := s.chargeRepo.SaveWithLock(ctx, charge); err != nil {
				return applied, 0, 0, nil, err
			}
			if !touched[charge.ID] {
				touched[charge.ID] = true
				toPublish = append(toPublish, charge)
			}
		}
		applied = applied.Add(allocResult.TotalAllocated)
		drawn++
		toPublish = append(toPublish, p)
	}

	return applied, drawn, len(touched), toPublish, nil
}

// publishEvents drains and publishes domain events after a successful
// commit
func (s *BillingService) publishEvents(ctx context.Context, aggregates ...shared.AggregateRoot) {
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
