package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"supplyledger/internal/core/apperror"
	"supplyledger/internal/domain/reconciliation"
	"supplyledger/internal/infrastructure/events"
	"supplyledger/internal/infrastructure/http/v1/dto"
	"supplyledger/internal/infrastructure/storage/postgres"
)

// EventPublisher is satisfied by *postgres.OutboxPublisher.
type EventPublisher interface {
	Enqueue(ctx context.Context, event postgres.DomainEvent) error
}

// EventsHandler receives document-mutation hooks from CRUD collaborators.
// With ?async=true the event is queued to the outbox instead of handled inline.
type EventsHandler struct {
	*BaseHandler
	dispatcher events.Dispatcher
	publisher  EventPublisher
}

// NewEventsHandler creates a new events handler. publisher may be nil, in
// which case async requests are rejected.
func NewEventsHandler(base *BaseHandler, dispatcher events.Dispatcher, publisher EventPublisher) *EventsHandler {
	return &EventsHandler{
		BaseHandler: base,
		dispatcher:  dispatcher,
		publisher:   publisher,
	}
}

// OrderChanged handles POST /events/order-changed
func (h *EventsHandler) OrderChanged(c *gin.Context) {
	var req dto.OrderChangedRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ev, err := req.ToEvent()
	if err != nil {
		h.Error(c, err)
		return
	}

	if c.Query("async") == "true" {
		h.enqueue(c, postgres.DomainEvent{
			AggregateType: "purchase_order",
			AggregateID:   ev.OrderID,
			EventType:     reconciliation.EventOrderChanged,
			Payload:       ev,
		})
		return
	}

	outcome, err := h.dispatcher.HandleOrderChanged(c.Request.Context(), ev)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "order change reconciled", outcome)
}

// InvoiceChanged handles POST /events/invoice-changed
func (h *EventsHandler) InvoiceChanged(c *gin.Context) {
	var req dto.InvoiceChangedRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ev, err := req.ToEvent()
	if err != nil {
		h.Error(c, err)
		return
	}

	if c.Query("async") == "true" {
		h.enqueue(c, postgres.DomainEvent{
			AggregateType: "invoice",
			AggregateID:   ev.InvoiceID,
			EventType:     reconciliation.EventInvoiceChanged,
			Payload:       ev,
		})
		return
	}

	outcome, err := h.dispatcher.HandleInvoiceChanged(c.Request.Context(), ev)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, "invoice change reconciled", outcome)
}

func (h *EventsHandler) enqueue(c *gin.Context, event postgres.DomainEvent) {
	if h.publisher == nil {
		h.Error(c, apperror.NewValidation("asynchronous processing is not enabled"))
		return
	}
	if err := h.publisher.Enqueue(c.Request.Context(), event); err != nil {
		h.Error(c, err)
		return
	}
	h.Accepted(c, "event queued", dto.QueuedResponse{EventType: event.EventType, Queued: true})
}
