package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	balanceapp "github.com/rentledger/backend/internal/application/balance"
	billingapp "github.com/rentledger/backend/internal/application/billing"
	paymentapp "github.com/rentledger/backend/internal/application/payment"
	tenancyapp "github.com/rentledger/backend/internal/application/tenancy"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/payment"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/rentledger/backend/internal/infrastructure/cache"
	"github.com/rentledger/backend/internal/infrastructure/event"
	"github.com/rentledger/backend/internal/infrastructure/persistence"
)

// ledgerEnv wires the full application stack over a real database.
type ledgerEnv struct {
	stays    *tenancyapp.StayService
	billing  *billingapp.BillingService
	payments *paymentapp.PaymentService
	balances *balanceapp.BalanceService
}

func newLedgerEnv(t *testing.T, tdb *TestDB) *ledgerEnv {
	t.Helper()

	log := zap.NewNop()

	stayRepo := persistence.NewGormStayRepository(tdb.DB)
	chargeRepo := persistence.NewGormChargeRepository(tdb.DB)
	paymentRepo := persistence.NewGormPaymentRepository(tdb.DB)
	receiptRepo := persistence.NewGormReceiptRepository(tdb.DB)
	txManager := persistence.NewGormTransactionManager(tdb.DB)

	bus := event.NewInMemoryEventBus(log)
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { bus.Stop(context.Background()) })

	allocator := payment.NewAllocationService()
	idempotency := cache.NewInMemoryIdempotencyStore()

	return &ledgerEnv{
		stays:   tenancyapp.NewStayService(stayRepo, bus, log),
		billing: billingapp.NewBillingService(chargeRepo, paymentRepo, stayRepo, allocator, txManager, bus, log),
		payments: paymentapp.NewPaymentService(
			paymentRepo, receiptRepo, chargeRepo, stayRepo, allocator, txManager, idempotency, bus, log),
		balances: balanceapp.NewBalanceService(chargeRepo, paymentRepo, stayRepo, log),
	}
}

func (env *ledgerEnv) createStay(t *testing.T, rent string) uuid.UUID {
	t.Helper()

	stay, err := env.stays.CreateStay(context.Background(), tenancyapp.CreateStayRequest{
		UnitID:        uuid.New(),
		UnitLabel:     "Apt 12, Tverskaya 7",
		TenantName:    "Ivan Petrov",
		DateFrom:      time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		RentAmount:    decimal.RequireFromString(rent),
		RentDueDay:    5,
		UtilityDueDay: 10,
		TaxRate:       decimal.Zero,
	})
	require.NoError(t, err)
	return stay.ID
}

func mustPeriod(t *testing.T, year int, month time.Month) valueobject.Period {
	t.Helper()
	p, err := valueobject.NewPeriod(year, month)
	require.NoError(t, err)
	return p
}

func TestRentPaymentLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	env := newLedgerEnv(t, tdb)
	ctx := context.Background()

	stayID := env.createStay(t, "50000")
	jan := mustPeriod(t, 2026, time.January)

	charge, err := env.billing.EnsureRentCharge(ctx, stayID, jan)
	require.NoError(t, err)
	assert.Equal(t, billing.ChargeStatusPending, charge.Status)
	assert.True(t, charge.Amount.Equal(decimal.RequireFromString("50000")))

	// Ensuring the same period again returns the existing charge
	again, err := env.billing.EnsureRentCharge(ctx, stayID, jan)
	require.NoError(t, err)
	assert.Equal(t, charge.ID, again.ID)

	p, err := env.payments.RecordPayment(ctx, paymentapp.RecordPaymentRequest{
		StayID: stayID,
		Kind:   payment.KindRent,
		Amount: decimal.RequireFromString("50000"),
		Method: payment.MethodBankTransfer,
		PaidAt: time.Date(2026, time.January, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPendingManual, p.Status)

	result, err := env.payments.ConfirmPayment(ctx, p.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, payment.StatusConfirmed, result.Payment.Status)
	assert.True(t, result.AllocatedTotal.Equal(decimal.RequireFromString("50000")))
	assert.True(t, result.CarriedCredit.IsZero())
	assert.Equal(t, 1, result.ChargesFullyPaid)
	require.Len(t, result.Payment.Allocations, 1)
	assert.Equal(t, charge.ID, result.Payment.Allocations[0].ChargeID)

	settled, err := env.billing.GetCharge(ctx, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ChargeStatusPaid, settled.Status)
	assert.True(t, settled.AllocatedAmount.Equal(settled.Amount))

	bal, err := env.balances.ComputeBalance(ctx, stayID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.IsZero(), "expected settled balance, got %s", bal.Balance)
	assert.Empty(t, bal.UnpaidCharges)
}

func TestAllocationCoversOldestChargeFirst(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	env := newLedgerEnv(t, tdb)
	ctx := context.Background()

	stayID := env.createStay(t, "30000")
	jan := mustPeriod(t, 2026, time.January)
	feb := mustPeriod(t, 2026, time.February)

	janCharge, err := env.billing.EnsureRentCharge(ctx, stayID, jan)
	require.NoError(t, err)
	febCharge, err := env.billing.EnsureRentCharge(ctx, stayID, feb)
	require.NoError(t, err)

	// 40000 covers January fully and 10000 of February
	p, err := env.payments.RecordPayment(ctx, paymentapp.RecordPaymentRequest{
		StayID: stayID,
		Kind:   payment.KindRent,
		Amount: decimal.RequireFromString("40000"),
		Method: payment.MethodSBP,
		PaidAt: time.Now(),
	})
	require.NoError(t, err)

	result, err := env.payments.ConfirmPayment(ctx, p.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChargesFullyPaid)
	assert.Equal(t, 1, result.ChargesPartiallyPaid)

	janAfter, err := env.billing.GetCharge(ctx, janCharge.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ChargeStatusPaid, janAfter.Status)

	febAfter, err := env.billing.GetCharge(ctx, febCharge.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ChargeStatusPending, febAfter.Status)
	assert.True(t, febAfter.AllocatedAmount.Equal(decimal.RequireFromString("10000")))

	bal, err := env.balances.ComputeBalance(ctx, stayID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(decimal.RequireFromString("20000")))
}

func TestOverpaymentCarriesCreditForward(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	env := newLedgerEnv(t, tdb)
	ctx := context.Background()

	stayID := env.createStay(t, "30000")
	jan := mustPeriod(t, 2026, time.January)
	feb := mustPeriod(t, 2026, time.February)

	_, err := env.billing.EnsureRentCharge(ctx, stayID, jan)
	require.NoError(t, err)

	// Tenant pays two months at once
	p, err := env.payments.RecordPayment(ctx, paymentapp.RecordPaymentRequest{
		StayID: stayID,
		Kind:   payment.KindRent,
		Amount: decimal.RequireFromString("60000"),
		Method: payment.MethodBankTransfer,
		PaidAt: time.Now(),
	})
	require.NoError(t, err)

	result, err := env.payments.ConfirmPayment(ctx, p.ID, uuid.New())
	require.NoError(t, err)
	assert.True(t, result.CarriedCredit.Equal(decimal.RequireFromString("30000")))
	assert.True(t, result.Payment.UnallocatedAmount.Equal(decimal.RequireFromString("30000")))

	// The February charge draws down the carried credit on creation
	cycle, err := env.billing.RunBillingCycle(ctx, stayID, feb)
	require.NoError(t, err)
	assert.True(t, cycle.ChargeIssued)
	assert.True(t, cycle.CreditApplied.Equal(decimal.RequireFromString("30000")))

	kind := billing.ChargeKindRent
	charges, err := env.billing.ListCharges(ctx, stayID, billing.ChargeFilter{
		Kind:       &kind,
		FromPeriod: &feb,
		ToPeriod:   &feb,
	})
	require.NoError(t, err)
	require.Len(t, charges, 1)
	assert.Equal(t, billing.ChargeStatusPaid, charges[0].Status)

	confirmed, err := env.payments.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.UnallocatedAmount.IsZero())
	assert.True(t, confirmed.AllocatedAmount.Equal(confirmed.TotalAmount))
}

func TestReceiptIntakeIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	env := newLedgerEnv(t, tdb)
	ctx := context.Background()

	stayID := env.createStay(t, "50000")
	amount := decimal.RequireFromString("50000")

	req := paymentapp.IntakeReceiptRequest{
		StayID:         stayID,
		FileID:         "tg-file-001",
		IdempotencyKey: "receipt-2026-01-petrov-001",
		Kind:           payment.KindRent,
		OCRText:        "Перевод 50000.00 RUB",
		OCRConfidence:  0.97,
		ParsedAmount:   &amount,
	}

	first, err := env.payments.IntakeReceipt(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	require.NotNil(t, first.Payment)
	assert.Equal(t, payment.ProvenanceReceipt, first.Payment.Provenance)

	// Redelivery of the same upload returns the original receipt
	second, err := env.payments.IntakeReceipt(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Receipt.ID, second.Receipt.ID)

	pending, err := env.payments.ListPending(ctx, payment.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestConcurrentConfirmationsNeverOverAllocate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	env := newLedgerEnv(t, tdb)
	ctx := context.Background()

	stayID := env.createStay(t, "100000")
	jan := mustPeriod(t, 2026, time.January)

	charge, err := env.billing.EnsureRentCharge(ctx, stayID, jan)
	require.NoError(t, err)

	// Two payments of 60000 against a single 100000 charge
	const workers = 2
	paymentIDs := make([]uuid.UUID, workers)
	for i := range paymentIDs {
		p, err := env.payments.RecordPayment(ctx, paymentapp.RecordPaymentRequest{
			StayID: stayID,
			Kind:   payment.KindRent,
			Amount: decimal.RequireFromString("60000"),
			Method: payment.MethodBankTransfer,
			PaidAt: time.Now(),
			Note:   fmt.Sprintf("installment %d", i+1),
		})
		require.NoError(t, err)
		paymentIDs[i] = p.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i, id := range paymentIDs {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = env.payments.ConfirmPayment(ctx, id, uuid.New())
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "confirmation %d failed", i)
	}

	// Row locking serializes the allocations: the charge is covered
	// exactly once, the surplus stays on whichever payment came second.
	after, err := env.billing.GetCharge(ctx, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ChargeStatusPaid, after.Status)
	assert.True(t, after.AllocatedAmount.Equal(after.Amount),
		"allocated %s, want exactly %s", after.AllocatedAmount, after.Amount)

	totalAllocated := decimal.Zero
	totalUnallocated := decimal.Zero
	for _, id := range paymentIDs {
		p, err := env.payments.GetPayment(ctx, id)
		require.NoError(t, err)
		assert.True(t, p.AllocatedAmount.Add(p.UnallocatedAmount).Equal(p.TotalAmount),
			"payment %s breaks conservation", p.ID)
		totalAllocated = totalAllocated.Add(p.AllocatedAmount)
		totalUnallocated = totalUnallocated.Add(p.UnallocatedAmount)
	}
	assert.True(t, totalAllocated.Equal(decimal.RequireFromString("100000")))
	assert.True(t, totalUnallocated.Equal(decimal.RequireFromString("20000")))
}

func TestReversePaymentRestoresDebt(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	env := newLedgerEnv(t, tdb)
	ctx := context.Background()

	stayID := env.createStay(t, "50000")
	jan := mustPeriod(t, 2026, time.January)

	charge, err := env.billing.EnsureRentCharge(ctx, stayID, jan)
	require.NoError(t, err)

	p, err := env.payments.RecordPayment(ctx, paymentapp.RecordPaymentRequest{
		StayID: stayID,
		Kind:   payment.KindRent,
		Amount: decimal.RequireFromString("50000"),
		Method: payment.MethodCash,
		PaidAt: time.Now(),
	})
	require.NoError(t, err)

	_, err = env.payments.ConfirmPayment(ctx, p.ID, uuid.New())
	require.NoError(t, err)

	reversed, err := env.payments.ReversePayment(ctx, p.ID, "duplicate entry")
	require.NoError(t, err)
	assert.True(t, reversed.AllocatedAmount.IsZero())
	for _, a := range reversed.Allocations {
		assert.Equal(t, payment.AllocationStatusReversed, a.Status)
	}

	after, err := env.billing.GetCharge(ctx, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ChargeStatusPending, after.Status)
	assert.True(t, after.AllocatedAmount.IsZero())

	bal, err := env.balances.ComputeBalance(ctx, stayID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(decimal.RequireFromString("50000")))
}

func TestRecalculationReplacesAllocatedCharge(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	env := newLedgerEnv(t, tdb)
	ctx := context.Background()

	stayID := env.createStay(t, "28000")
	jan := mustPeriod(t, 2026, time.January)

	oldCharge, err := env.billing.EnsureRentCharge(ctx, stayID, jan)
	require.NoError(t, err)

	p, err := env.payments.RecordPayment(ctx, paymentapp.RecordPaymentRequest{
		StayID: stayID,
		Kind:   payment.KindRent,
		Amount: decimal.RequireFromString("28000"),
		Method: payment.MethodBankTransfer,
		PaidAt: time.Now(),
	})
	require.NoError(t, err)
	_, err = env.payments.ConfirmPayment(ctx, p.ID, uuid.New())
	require.NoError(t, err)

	// A retroactive rent change makes January's charge wrong
	_, err = env.stays.UpdateRentTerms(ctx, tenancyapp.UpdateRentTermsRequest{
		StayID:     stayID,
		RentAmount: decimal.RequireFromString("30000"),
		TaxRate:    decimal.Zero,
	})
	require.NoError(t, err)

	// Recalculation must succeed even though the old charge holds
	// allocation records
	result, err := env.billing.RecalculateRent(ctx, billingapp.RecalculateRentRequest{
		StayID:     stayID,
		FromPeriod: jan,
		ToPeriod:   jan,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChargesReplaced)
	assert.True(t, result.CreditReleased.Equal(decimal.RequireFromString("28000")))
	assert.True(t, result.CreditReapplied.Equal(decimal.RequireFromString("28000")))

	// The old charge is retired in place, its allocation history intact
	retired, err := env.billing.GetCharge(ctx, oldCharge.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ChargeStatusSuperseded, retired.Status)
	assert.True(t, retired.AllocatedAmount.IsZero())

	// The freed credit landed on the replacement
	kind := billing.ChargeKindRent
	pending := billing.ChargeStatusPending
	charges, err := env.billing.ListCharges(ctx, stayID, billing.ChargeFilter{
		Kind:   &kind,
		Status: &pending,
	})
	require.NoError(t, err)
	require.Len(t, charges, 1)
	assert.Equal(t, billing.ChargeSourceRecalculation, charges[0].Source)
	assert.True(t, charges[0].Amount.Equal(decimal.RequireFromString("30000")))
	assert.True(t, charges[0].AllocatedAmount.Equal(decimal.RequireFromString("28000")))

	// Money is conserved: the tenant now owes exactly the difference
	bal, err := env.balances.ComputeBalance(ctx, stayID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(decimal.RequireFromString("2000")),
		"expected 2000 owed after recalculation, got %s", bal.Balance)
}

func TestReceiptParseFailureCreatesPlaceholder(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	env := newLedgerEnv(t, tdb)
	ctx := context.Background()

	stayID := env.createStay(t, "50000")
	jan := mustPeriod(t, 2026, time.January)

	_, err := env.billing.EnsureRentCharge(ctx, stayID, jan)
	require.NoError(t, err)

	// OCR produced nothing usable; the zero-amount placeholder must
	// still persist
	result, err := env.payments.IntakeReceipt(ctx, paymentapp.IntakeReceiptRequest{
		StayID:         stayID,
		FileID:         "tg-file-blurry",
		IdempotencyKey: "receipt-2026-01-petrov-blurry",
		OCRText:        "???",
		OCRConfidence:  0.08,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Payment)
	assert.True(t, result.Payment.TotalAmount.IsZero())

	stored, err := env.payments.GetPayment(ctx, result.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPendingManual, stored.Status)
	assert.True(t, stored.TotalAmount.IsZero())

	// Confirmation is blocked until an admin corrects the amount
	_, err = env.payments.ConfirmPayment(ctx, stored.ID, uuid.New())
	require.Error(t, err)

	corrected, err := env.payments.CorrectPaymentAmount(ctx, stored.ID, decimal.RequireFromString("50000"))
	require.NoError(t, err)
	assert.True(t, corrected.TotalAmount.Equal(decimal.RequireFromString("50000")))

	confirmResult, err := env.payments.ConfirmPayment(ctx, stored.ID, uuid.New())
	require.NoError(t, err)
	assert.True(t, confirmResult.AllocatedTotal.Equal(decimal.RequireFromString("50000")))
}

func TestRejectedPaymentNeverAllocates(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	env := newLedgerEnv(t, tdb)
	ctx := context.Background()

	stayID := env.createStay(t, "50000")
	jan := mustPeriod(t, 2026, time.January)

	charge, err := env.billing.EnsureRentCharge(ctx, stayID, jan)
	require.NoError(t, err)

	p, err := env.payments.RecordPayment(ctx, paymentapp.RecordPaymentRequest{
		StayID: stayID,
		Kind:   payment.KindRent,
		Amount: decimal.RequireFromString("50000"),
		Method: payment.MethodBankTransfer,
		PaidAt: time.Now(),
	})
	require.NoError(t, err)

	rejected, err := env.payments.RejectPayment(ctx, p.ID, uuid.New(), "unrecognized sender")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRejected, rejected.Status)
	assert.Empty(t, rejected.Allocations)

	after, err := env.billing.GetCharge(ctx, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ChargeStatusPending, after.Status)
	assert.True(t, after.AllocatedAmount.IsZero())
}
