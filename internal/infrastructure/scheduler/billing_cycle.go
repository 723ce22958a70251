package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rentledger/backend/internal/application/billing"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

// BillingCycleExecutor runs a billing cycle job against the billing service
type BillingCycleExecutor struct {
	service *billing.BillingService
	logger  *zap.Logger
}

// NewBillingCycleExecutor creates a new billing cycle executor
func NewBillingCycleExecutor(service *billing.BillingService, logger *zap.Logger) *BillingCycleExecutor {
	return &BillingCycleExecutor{
		service: service,
		logger:  logger,
	}
}

// Execute runs the billing cycle described by the job
func (e *BillingCycleExecutor) Execute(ctx context.Context, job *Job) error {
	if job.StayID != nil {
		result, err := e.service.RunBillingCycle(ctx, *job.StayID, job.Period)
		if err != nil {
			return fmt.Errorf("billing cycle for stay %s: %w", job.StayID, err)
		}
		e.logger.Info("Billing cycle completed for stay",
			zap.String("stay_id", job.StayID.String()),
			zap.String("period", job.Period.String()),
			zap.Bool("charge_issued", result.ChargeIssued),
			zap.String("credit_applied", result.CreditApplied.String()),
		)
		return nil
	}

	results, err := e.service.RunBillingCycleForAll(ctx, job.Period)
	if err != nil {
		return fmt.Errorf("billing cycle for period %s: %w", job.Period, err)
	}

	issued := 0
	for _, r := range results {
		if r.ChargeIssued {
			issued++
		}
	}
	e.logger.Info("Billing cycle completed",
		zap.String("period", job.Period.String()),
		zap.Int("stays_processed", len(results)),
		zap.Int("charges_issued", issued),
	)
	return nil
}

// BillingCycleTriggerConfig holds configuration for the monthly trigger
type BillingCycleTriggerConfig struct {
	// RunDay is the day of month (1-28) the cycle fires
	RunDay int
	// RunHour is the hour (0-23) the cycle fires
	RunHour int
	// CheckInterval is how often to check whether the cycle is due
	CheckInterval time.Duration
}

// DefaultBillingCycleTriggerConfig returns default trigger configuration
func DefaultBillingCycleTriggerConfig() BillingCycleTriggerConfig {
	return BillingCycleTriggerConfig{
		RunDay:        1,
		RunHour:       3,
		CheckInterval: time.Minute,
	}
}

// Validate checks the trigger configuration
func (c BillingCycleTriggerConfig) Validate() error {
	if c.RunDay < 1 || c.RunDay > 28 {
		return fmt.Errorf("%w: run day must be 1-28, got %d", ErrInvalidConfig, c.RunDay)
	}
	if c.RunHour < 0 || c.RunHour > 23 {
		return fmt.Errorf("%w: run hour must be 0-23, got %d", ErrInvalidConfig, c.RunHour)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// BillingCycleTrigger submits one billing cycle job per month. The
// trigger remembers the last period it ran, so restarts within the
// same month do not double-submit.
type BillingCycleTrigger struct {
	config    BillingCycleTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   string // period string of the last submitted cycle
}

// NewBillingCycleTrigger creates a new monthly billing cycle trigger
func NewBillingCycleTrigger(
	config BillingCycleTriggerConfig,
	scheduler *Scheduler,
	logger *zap.Logger,
) *BillingCycleTrigger {
	return &BillingCycleTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Start begins watching the clock
func (t *BillingCycleTrigger) Start(ctx context.Context) error {
	if err := t.config.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.loop(ctx)

	t.logger.Info("Billing cycle trigger started",
		zap.Int("run_day", t.config.RunDay),
		zap.Int("run_hour", t.config.RunHour),
	)
	return nil
}

// Stop stops the trigger
func (t *BillingCycleTrigger) Stop() {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
}

func (t *BillingCycleTrigger) loop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.maybeRun(now)
		}
	}
}

// TriggerNow submits a billing cycle job for the given period
// regardless of the schedule
func (t *BillingCycleTrigger) TriggerNow(period valueobject.Period) error {
	job := NewJob(nil, period, DefaultConfig().RetryAttempts)
	return t.scheduler.SubmitJob(job)
}

func (t *BillingCycleTrigger) maybeRun(now time.Time) {
	if now.Day() < t.config.RunDay || now.Hour() < t.config.RunHour {
		return
	}

	period, err := valueobject.NewPeriod(now.Year(), now.Month())
	if err != nil {
		t.logger.Error("Billing cycle period invalid", zap.Error(err))
		return
	}

	t.mu.Lock()
	if t.lastRun == period.String() {
		t.mu.Unlock()
		return
	}
	t.lastRun = period.String()
	t.mu.Unlock()

	if err := t.TriggerNow(period); err != nil {
		t.logger.Error("Billing cycle could not be scheduled",
			zap.String("period", period.String()),
			zap.Error(err),
		)
		// Allow the next tick to try again
		t.mu.Lock()
		t.lastRun = ""
		t.mu.Unlock()
		return
	}

	t.logger.Info("Billing cycle scheduled", zap.String("period", period.String()))
}
