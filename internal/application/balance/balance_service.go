package balance

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

// ChargeInfo describes a single not-fully-paid charge
type ChargeInfo struct {
	ChargeID    uuid.UUID          `json:"charge_id"`
	Kind        billing.ChargeKind `json:"kind"`
	Period      valueobject.Period `json:"period"`
	Amount      decimal.Decimal    `json:"amount"`
	PaidAmount  decimal.Decimal    `json:"paid_amount"`
	Outstanding decimal.Decimal    `json:"outstanding"`
	Description string             `json:"description"`
}

// StayBalance is the complete financial picture of a stay. Balance is
// positive when the tenant owes money and negative when carried credit
// exceeds the debt.
type StayBalance struct {
	StayID       uuid.UUID       `json:"stay_id"`
	TotalCharged decimal.Decimal `json:"total_charged"`
	TotalPaid    decimal.Decimal `json:"total_paid"` // Allocated, advances excluded
	Advances     decimal.Decimal `json:"advances"`   // Unallocated credit on confirmed payments
	Balance      decimal.Decimal `json:"balance"`    // charged − paid − advances

	RentCharged    decimal.Decimal `json:"rent_charged"`
	UtilityCharged decimal.Decimal `json:"utility_charged"`
	RentPaid       decimal.Decimal `json:"rent_paid"`
	UtilityPaid    decimal.Decimal `json:"utility_paid"`

	UnpaidCharges []ChargeInfo `json:"unpaid_charges"`
	ComputedAt    time.Time    `json:"computed_at"`
}

// BalanceService computes stay balances from charges and allocation
// records. Strictly read-only.
type BalanceService struct {
	chargeRepo  billing.ChargeRepository
	paymentRepo payment.PaymentRepository
	stayRepo    tenancy.StayRepository
	logger      *zap.Logger
}

// NewBalanceService creates a new BalanceService
func NewBalanceService(
	chargeRepo billing.ChargeRepository,
	paymentRepo payment.PaymentRepository,
	stayRepo tenancy.StayRepository,
	logger *zap.Logger,
) *BalanceService {
	return &BalanceService{
		chargeRepo:  chargeRepo,
		paymentRepo: paymentRepo,
		stayRepo:    stayRepo,
		logger:      logger,
	}
}

// ComputeBalance calculates the balance for a stay. Allocation records
// on confirmed payments are the source of truth for paid amounts; the
// per-charge tallies are cross-checked against them and any divergence
// aborts with a consistency violation instead of reporting wrong
// numbers.
func (s *BalanceService) ComputeBalance(ctx context.Context, stayID uuid.UUID) (*StayBalance, error) {
	if _, err := s.stayRepo.FindByID(ctx, stayID); err != nil {
		return nil, err
	}

	charges, err := s.chargeRepo.FindByStay(ctx, stayID, billing.ChargeFilter{})
	if err != nil {
		return nil, err
	}

	confirmed := payment.StatusConfirmed
	payments, err := s.paymentRepo.FindByStay(ctx, stayID, payment.PaymentFilter{Status: &confirmed})
	if err != nil {
		return nil, err
	}

	balance := &StayBalance{
		StayID:         stayID,
		TotalCharged:   decimal.Zero,
		TotalPaid:      decimal.Zero,
		Advances:       decimal.Zero,
		RentCharged:    decimal.Zero,
		UtilityCharged: decimal.Zero,
		RentPaid:       decimal.Zero,
		UtilityPaid:    decimal.Zero,
		UnpaidCharges:  make([]ChargeInfo, 0),
		ComputedAt:     time.Now(),
	}

	// Paid amounts from allocation records
	allocatedByCharge := make(map[uuid.UUID]decimal.Decimal)
	for i := range payments {
		p := &payments[i]
		for _, alloc := range p.ActiveAllocations() {
			allocatedByCharge[alloc.ChargeID] = allocatedByCharge[alloc.ChargeID].Add(alloc.Amount)
			switch alloc.ChargeKind {
			case billing.ChargeKindRent:
				balance.RentPaid = balance.RentPaid.Add(alloc.Amount)
			case billing.ChargeKindUtility:
				balance.UtilityPaid = balance.UtilityPaid.Add(alloc.Amount)
			}
		}
		balance.Advances = balance.Advances.Add(p.UnallocatedAmount)
	}

	for i := range charges {
		charge := &charges[i]

		// Superseded charges were replaced by recalculation; their
		// reversed allocations no longer count toward anything.
		if charge.Status == billing.ChargeStatusSuperseded {
			continue
		}

		switch charge.Kind {
		case billing.ChargeKindRent:
			balance.RentCharged = balance.RentCharged.Add(charge.Amount)
		case billing.ChargeKindUtility:
			balance.UtilityCharged = balance.UtilityCharged.Add(charge.Amount)
		}

		paid := allocatedByCharge[charge.ID]
		if !paid.Equal(charge.AllocatedAmount) {
			err := shared.NewConsistencyViolation("TALLY_MISMATCH",
				fmt.Sprintf("Charge %s records %s allocated but payment records sum to %s",
					charge.ID, charge.AllocatedAmount.StringFixed(2), paid.StringFixed(2)))
			s.logger.Error("balance computation found diverged tallies",
				zap.String("stay_id", stayID.String()),
				zap.String("charge_id", charge.ID.String()),
				zap.Error(err))
			return nil, err
		}

		if charge.HasOutstanding() {
			balance.UnpaidCharges = append(balance.UnpaidCharges, ChargeInfo{
				ChargeID:    charge.ID,
				Kind:        charge.Kind,
				Period:      charge.Period,
				Amount:      charge.Amount,
				PaidAmount:  paid,
				Outstanding: charge.OutstandingAmount(),
				Description: charge.Description,
			})
		}
	}

	balance.TotalCharged = balance.RentCharged.Add(balance.UtilityCharged)
	balance.TotalPaid = balance.RentPaid.Add(balance.UtilityPaid)
	balance.Balance = balance.TotalCharged.Sub(balance.TotalPaid).Sub(balance.Advances)

	return balance, nil
}

// ComputeBalanceForUnit resolves the unit's active stay and computes
// its balance
func (s *BalanceService) ComputeBalanceForUnit(ctx context.Context, unitID uuid.UUID) (*StayBalance, error) {
	stay, err := s.stayRepo.FindActiveByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if stay == nil {
		return nil, shared.NewNotFoundError("NO_ACTIVE_STAY",
			fmt.Sprintf("Unit %s has no active stay", unitID))
	}
	return s.ComputeBalance(ctx, stay.ID)
}

// TotalOutstanding sums positive balances across every active stay
func (s *BalanceService) TotalOutstanding(ctx context.Context) (decimal.Decimal, error) {
	stays, err := s.stayRepo.FindActive(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for i := range stays {
		balance, err := s.ComputeBalance(ctx, stays[i].ID)
		if err != nil {
			return decimal.Zero, err
		}
		if balance.Balance.IsPositive() {
			total = total.Add(balance.Balance)
		}
	}
	return total, nil
}
