package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPeriod(t *testing.T, year int, month time.Month) valueobject.Period {
	t.Helper()
	p, err := valueobject.NewPeriod(year, month)
	require.NoError(t, err)
	return p
}

func TestFIFOAllocationStrategy_OldestFirst(t *testing.T) {
	strategy := NewFIFOAllocationStrategy()

	jan := AllocationTarget{
		ID:                uuid.New(),
		Kind:              ChargeKindRent,
		Period:            mustPeriod(t, 2025, time.January),
		OutstandingAmount: decimal.NewFromInt(100),
		CreatedAt:         time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	feb := AllocationTarget{
		ID:                uuid.New(),
		Kind:              ChargeKindRent,
		Period:            mustPeriod(t, 2025, time.February),
		OutstandingAmount: decimal.NewFromInt(100),
		CreatedAt:         time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
	}

	// Pass targets newest-first; ordering must not depend on input order
	plan, err := strategy.Allocate(valueobject.NewMoneyRUBFromFloat(150), []AllocationTarget{feb, jan})
	require.NoError(t, err)

	// 150 over Jan 100 + Feb 100: Jan fully paid, Feb gets 50
	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, jan.ID, plan.Allocations[0].TargetID)
	assert.Equal(t, "100", plan.Allocations[0].Amount.String())
	assert.Equal(t, feb.ID, plan.Allocations[1].TargetID)
	assert.Equal(t, "50", plan.Allocations[1].Amount.String())

	assert.Equal(t, "150", plan.TotalAllocated.String())
	assert.True(t, plan.RemainingAmount.IsZero())
	assert.True(t, plan.FullyAllocated)
	assert.Equal(t, []uuid.UUID{jan.ID}, plan.TargetsFullyPaid)
	assert.Equal(t, []uuid.UUID{feb.ID}, plan.TargetsPartiallyPaid)
}

func TestFIFOAllocationStrategy_ExactCoverage(t *testing.T) {
	strategy := NewFIFOAllocationStrategy()

	target := AllocationTarget{
		ID:                uuid.New(),
		Kind:              ChargeKindRent,
		Period:            mustPeriod(t, 2025, time.March),
		OutstandingAmount: decimal.NewFromInt(31200),
		CreatedAt:         time.Now(),
	}

	plan, err := strategy.Allocate(valueobject.NewMoneyRUBFromFloat(31200), []AllocationTarget{target})
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 1)
	assert.True(t, plan.FullyAllocated)
	assert.True(t, plan.RemainingAmount.IsZero())
	assert.Equal(t, []uuid.UUID{target.ID}, plan.TargetsFullyPaid)
	assert.Empty(t, plan.TargetsPartiallyPaid)
}

func TestFIFOAllocationStrategy_Overpayment(t *testing.T) {
	strategy := NewFIFOAllocationStrategy()

	target := AllocationTarget{
		ID:                uuid.New(),
		Kind:              ChargeKindRent,
		Period:            mustPeriod(t, 2025, time.March),
		OutstandingAmount: decimal.NewFromInt(100),
		CreatedAt:         time.Now(),
	}

	plan, err := strategy.Allocate(valueobject.NewMoneyRUBFromFloat(250), []AllocationTarget{target})
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, "100", plan.TotalAllocated.String())
	// Leftover is carried as the payment's unallocated credit
	assert.Equal(t, "150", plan.RemainingAmount.String())
	assert.False(t, plan.FullyAllocated)
}

func TestFIFOAllocationStrategy_NoTargets(t *testing.T) {
	strategy := NewFIFOAllocationStrategy()

	plan, err := strategy.Allocate(valueobject.NewMoneyRUBFromFloat(500), nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Allocations)
	assert.Equal(t, "500", plan.RemainingAmount.String())
	assert.False(t, plan.FullyAllocated)
}

func TestFIFOAllocationStrategy_SkipsCoveredTargets(t *testing.T) {
	strategy := NewFIFOAllocationStrategy()

	covered := AllocationTarget{
		ID:                uuid.New(),
		Kind:              ChargeKindRent,
		Period:            mustPeriod(t, 2025, time.January),
		OutstandingAmount: decimal.Zero,
		CreatedAt:         time.Now(),
	}
	open := AllocationTarget{
		ID:                uuid.New(),
		Kind:              ChargeKindRent,
		Period:            mustPeriod(t, 2025, time.February),
		OutstandingAmount: decimal.NewFromInt(80),
		CreatedAt:         time.Now(),
	}

	plan, err := strategy.Allocate(valueobject.NewMoneyRUBFromFloat(80), []AllocationTarget{covered, open})
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, open.ID, plan.Allocations[0].TargetID)
}

func TestFIFOAllocationStrategy_SamePeriodTieBreak(t *testing.T) {
	strategy := NewFIFOAllocationStrategy()
	period := mustPeriod(t, 2025, time.April)

	older := AllocationTarget{
		ID:                uuid.New(),
		Kind:              ChargeKindUtility,
		Period:            period,
		OutstandingAmount: decimal.NewFromInt(40),
		CreatedAt:         time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC),
	}
	newer := AllocationTarget{
		ID:                uuid.New(),
		Kind:              ChargeKindUtility,
		Period:            period,
		OutstandingAmount: decimal.NewFromInt(40),
		CreatedAt:         time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
	}

	plan, err := strategy.Allocate(valueobject.NewMoneyRUBFromFloat(50), []AllocationTarget{newer, older})
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, older.ID, plan.Allocations[0].TargetID)
	assert.Equal(t, "40", plan.Allocations[0].Amount.String())
	assert.Equal(t, newer.ID, plan.Allocations[1].TargetID)
	assert.Equal(t, "10", plan.Allocations[1].Amount.String())
}

func TestFIFOAllocationStrategy_Deterministic(t *testing.T) {
	strategy := NewFIFOAllocationStrategy()
	createdAt := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	period := mustPeriod(t, 2025, time.April)

	// Identical period and creation time: ID decides, stably
	a := AllocationTarget{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Kind: ChargeKindRent, Period: period, OutstandingAmount: decimal.NewFromInt(30), CreatedAt: createdAt}
	b := AllocationTarget{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Kind: ChargeKindRent, Period: period, OutstandingAmount: decimal.NewFromInt(30), CreatedAt: createdAt}

	first, err := strategy.Allocate(valueobject.NewMoneyRUBFromFloat(40), []AllocationTarget{b, a})
	require.NoError(t, err)
	second, err := strategy.Allocate(valueobject.NewMoneyRUBFromFloat(40), []AllocationTarget{a, b})
	require.NoError(t, err)

	require.Len(t, first.Allocations, 2)
	assert.Equal(t, first.Allocations[0].TargetID, second.Allocations[0].TargetID)
	assert.Equal(t, a.ID, first.Allocations[0].TargetID)
}

func TestFIFOAllocationStrategy_InvalidAmount(t *testing.T) {
	strategy := NewFIFOAllocationStrategy()

	_, err := strategy.Allocate(valueobject.ZeroRUB(), nil)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestManualAllocationStrategy(t *testing.T) {
	jan := AllocationTarget{
		ID:                uuid.New(),
		Kind:              ChargeKindRent,
		Period:            mustPeriod(t, 2025, time.January),
		OutstandingAmount: decimal.NewFromInt(100),
		CreatedAt:         time.Now(),
	}
	feb := AllocationTarget{
		ID:                uuid.New(),
		Kind:              ChargeKindRent,
		Period:            mustPeriod(t, 2025, time.February),
		OutstandingAmount: decimal.NewFromInt(100),
		CreatedAt:         time.Now(),
	}

	// Manual strategy targets February even though January is older
	strategy := NewManualAllocationStrategy([]ManualAllocationRequest{
		{TargetID: feb.ID},
	})

	plan, err := strategy.Allocate(valueobject.NewMoneyRUBFromFloat(100), []AllocationTarget{jan, feb})
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, feb.ID, plan.Allocations[0].TargetID)
	assert.Equal(t, "100", plan.Allocations[0].Amount.String())
	assert.True(t, plan.FullyAllocated)
}

func TestManualAllocationStrategy_CapsAtOutstanding(t *testing.T) {
	target := AllocationTarget{
		ID:                uuid.New(),
		Kind:              ChargeKindUtility,
		Period:            mustPeriod(t, 2025, time.March),
		OutstandingAmount: decimal.NewFromInt(60),
		CreatedAt:         time.Now(),
	}

	strategy := NewManualAllocationStrategy([]ManualAllocationRequest{
		{TargetID: target.ID, Amount: decimal.NewFromInt(500)},
	})

	plan, err := strategy.Allocate(valueobject.NewMoneyRUBFromFloat(200), []AllocationTarget{target})
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, "60", plan.Allocations[0].Amount.String())
	assert.Equal(t, "140", plan.RemainingAmount.String())
}

func TestTargetFromCharge(t *testing.T) {
	charge := createTestRentCharge(t)
	require.NoError(t, charge.ApplyAllocation(valueobject.NewMoneyRUBFromFloat(1200)))

	target := TargetFromCharge(charge)
	assert.Equal(t, charge.ID, target.ID)
	assert.Equal(t, charge.Kind, target.Kind)
	assert.True(t, target.Period.Equals(charge.Period))
	assert.Equal(t, "30000", target.OutstandingAmount.String())
}
