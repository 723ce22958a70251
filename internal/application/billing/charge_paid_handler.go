package billing

import (
	"context"

	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// TenantNotifier is the interface for telling the tenant about payment
// outcomes. Implementations can support different channels (Telegram,
// email, in-app).
type TenantNotifier interface {
	// NotifyChargePaid tells the tenant a charge has been fully covered
	NotifyChargePaid(ctx context.Context, notice ChargePaidNotice) error
}

// NoopTenantNotifier discards notices. Used until a real notification
// channel is wired up.
type NoopTenantNotifier struct{}

// NotifyChargePaid implements TenantNotifier by doing nothing
func (NoopTenantNotifier) NotifyChargePaid(ctx context.Context, notice ChargePaidNotice) error {
	return nil
}

// ChargePaidNotice represents a settled-charge notification
type ChargePaidNotice struct {
	StayID   string `json:"stay_id"`
	ChargeID string `json:"charge_id"`
	Kind     string `json:"kind"`
	Period   string `json:"period"`
	Amount   string `json:"amount"`
}

// ChargePaidHandler handles ChargePaid events and notifies the tenant
// that the charge has been settled
type ChargePaidHandler struct {
	notifier TenantNotifier
	logger   *zap.Logger
}

// NewChargePaidHandler creates a new handler for charge paid events
func NewChargePaidHandler(notifier TenantNotifier, logger *zap.Logger) *ChargePaidHandler {
	return &ChargePaidHandler{
		notifier: notifier,
		logger:   logger,
	}
}

// EventTypes returns the event types this handler responds to
func (h *ChargePaidHandler) EventTypes() []string {
	return []string{billing.EventTypeChargePaid}
}

// Handle processes a ChargePaid event. Notification failures are logged
// but do not fail the handler: the settlement itself already happened.
func (h *ChargePaidHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	paidEvent, ok := event.(*billing.ChargePaidEvent)
	if !ok {
		h.logger.Warn("unexpected event payload",
			zap.String("event_type", event.EventType()))
		return nil
	}

	notice := ChargePaidNotice{
		StayID:   paidEvent.StayID.String(),
		ChargeID: paidEvent.ChargeID.String(),
		Kind:     string(paidEvent.Kind),
		Period:   paidEvent.Period.String(),
		Amount:   paidEvent.Amount.String(),
	}

	if h.notifier == nil {
		h.logger.Debug("no tenant notifier configured, skipping notice",
			zap.String("charge_id", notice.ChargeID))
		return nil
	}

	if err := h.notifier.NotifyChargePaid(ctx, notice); err != nil {
		h.logger.Error("failed to notify tenant about settled charge",
			zap.String("charge_id", notice.ChargeID),
			zap.String("stay_id", notice.StayID),
			zap.Error(err))
		return nil
	}

	h.logger.Info("tenant notified about settled charge",
		zap.String("charge_id", notice.ChargeID),
		zap.String("period", notice.Period))
	return nil
}
