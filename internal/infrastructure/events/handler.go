// Package events consumes reconciliation events from the transactional outbox.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"supplyledger/internal/domain/reconciliation"
	"supplyledger/internal/infrastructure/storage/postgres"
	"supplyledger/pkg/logger"
)

// Dispatcher is implemented by reconciliation.Dispatcher.
type Dispatcher interface {
	HandleOrderChanged(ctx context.Context, ev reconciliation.OrderChanged) (reconciliation.Outcome, error)
	HandleInvoiceChanged(ctx context.Context, ev reconciliation.InvoiceChanged) (reconciliation.Outcome, error)
}

var _ postgres.OutboxHandler = (*Handler)(nil)

// Handler decodes outbox payloads and routes them to the dispatcher.
type Handler struct {
	dispatcher Dispatcher
}

// NewHandler creates a new outbox handler.
func NewHandler(dispatcher Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// Handle implements postgres.OutboxHandler. Unknown event types are
// acknowledged and dropped so they do not block the queue.
func (h *Handler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	ctx = logger.WithMessage(ctx, msg.ID, msg.EventType)

	var (
		outcome reconciliation.Outcome
		err     error
	)

	switch msg.EventType {
	case reconciliation.EventOrderChanged:
		var ev reconciliation.OrderChanged
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		outcome, err = h.dispatcher.HandleOrderChanged(ctx, ev)

	case reconciliation.EventInvoiceChanged:
		var ev reconciliation.InvoiceChanged
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		outcome, err = h.dispatcher.HandleInvoiceChanged(ctx, ev)

	default:
		logger.Warn(ctx, "unknown outbox event type, dropping")
		return nil
	}

	if err != nil {
		return err
	}

	logger.Debug(ctx, "outbox event handled",
		"requisitions", len(outcome.Requisitions),
		"orders", len(outcome.Orders),
		"lots", len(outcome.Lots),
		"missing", len(outcome.Missing))
	return nil
}
