package event

import (
	"context"
	"time"

	"github.com/rentledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultEventDedupeTTL bounds how long a processed event ID is
// remembered. Long enough to cover any realistic redelivery window.
const DefaultEventDedupeTTL = 24 * time.Hour

// IdempotentHandler wraps an EventHandler with duplicate detection so a
// re-published event is processed exactly once.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	ttl     time.Duration
	logger  *zap.Logger
}

// NewIdempotentHandler creates an idempotent wrapper around handler
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
) *IdempotentHandler {
	return &IdempotentHandler{
		handler: handler,
		store:   store,
		ttl:     DefaultEventDedupeTTL,
		logger:  logger,
	}
}

// EventTypes returns the event types of the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle processes the event unless its ID has been seen before.
// When the store is unreachable the event is processed anyway; a
// duplicate side effect beats a dropped event.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	eventID := event.EventID().String()

	isNew, err := h.store.MarkProcessed(ctx, eventID, h.ttl)
	if err != nil {
		h.logger.Warn("failed to check idempotency, processing anyway",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	} else if !isNew {
		h.logger.Debug("duplicate event detected, skipping",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType()),
		)
		return nil
	}

	// The idempotency key is kept on failure; the TTL acts as a
	// retry cooldown.
	return h.handler.Handle(ctx, event)
}

// Ensure IdempotentHandler implements EventHandler
var _ shared.EventHandler = (*IdempotentHandler)(nil)
