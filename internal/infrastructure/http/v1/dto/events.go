package dto

import (
	"supplyledger/internal/core/id"
	"supplyledger/internal/domain/reconciliation"
	"supplyledger/internal/domain/registers/stock"
)

// OrderChangedRequest is posted by the order CRUD collaborator after a mutation.
type OrderChangedRequest struct {
	OrderID        string   `json:"order_id"`
	RequisitionIDs []string `json:"requisition_ids"`
}

// ToEvent validates the request.
func (r OrderChangedRequest) ToEvent() (reconciliation.OrderChanged, error) {
	orderID, err := parseID("order_id", r.OrderID)
	if err != nil {
		return reconciliation.OrderChanged{}, err
	}
	reqIDs, err := parseIDs("requisition_ids", r.RequisitionIDs)
	if err != nil {
		return reconciliation.OrderChanged{}, err
	}
	return reconciliation.OrderChanged{OrderID: orderID, RequisitionIDs: reqIDs}, nil
}

// InvoiceChangedRequest is posted by the invoice CRUD collaborator after a mutation.
type InvoiceChangedRequest struct {
	InvoiceID string         `json:"invoice_id"`
	OrderIDs  []string       `json:"order_ids"`
	Scopes    []ScopeRequest `json:"scopes"`
}

// ToEvent validates the request.
func (r InvoiceChangedRequest) ToEvent() (reconciliation.InvoiceChanged, error) {
	invoiceID, err := parseID("invoice_id", r.InvoiceID)
	if err != nil {
		return reconciliation.InvoiceChanged{}, err
	}
	orderIDs, err := parseIDs("order_ids", r.OrderIDs)
	if err != nil {
		return reconciliation.InvoiceChanged{}, err
	}
	scopes := make([]stock.Scope, 0, len(r.Scopes))
	for _, s := range r.Scopes {
		scope, err := s.ToScope()
		if err != nil {
			return reconciliation.InvoiceChanged{}, err
		}
		scopes = append(scopes, scope)
	}
	return reconciliation.InvoiceChanged{InvoiceID: invoiceID, OrderIDs: orderIDs, Scopes: scopes}, nil
}

// QueuedResponse acknowledges an event accepted for asynchronous processing.
type QueuedResponse struct {
	EventType string `json:"event_type"`
	Queued    bool   `json:"queued"`
}

func parseIDs(field string, values []string) ([]id.ID, error) {
	out := make([]id.ID, 0, len(values))
	for _, v := range values {
		parsed, err := parseID(field, v)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}
