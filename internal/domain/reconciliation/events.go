// Package reconciliation turns document-mutation events into the recomputes
// they require.
package reconciliation

import (
	"supplyledger/internal/core/id"
	"supplyledger/internal/domain/documents/invoice"
	"supplyledger/internal/domain/documents/purchase_order"
	"supplyledger/internal/domain/registers/stock"
)

// Event type names as stored in the outbox.
const (
	EventOrderChanged   = "order.changed"
	EventInvoiceChanged = "invoice.changed"
)

// OrderChanged is emitted after an order is created, updated or deleted.
// RequisitionIDs carries both the previous and the current link.
type OrderChanged struct {
	OrderID        id.ID   `json:"order_id"`
	RequisitionIDs []id.ID `json:"requisition_ids"`
}

// InvoiceChanged is emitted after an invoice is created, updated or deleted.
// OrderIDs carries both the previous and the current order link; Scopes the
// stock lots touched by either version of the lines.
type InvoiceChanged struct {
	InvoiceID id.ID         `json:"invoice_id"`
	OrderIDs  []id.ID       `json:"order_ids"`
	Scopes    []stock.Scope `json:"scopes"`
}

// OrderChangedFrom builds the event for an order transition. Either side
// may be nil (create or delete).
func OrderChangedFrom(before, after *purchase_order.PurchaseOrder) OrderChanged {
	var ev OrderChanged
	for _, o := range []*purchase_order.PurchaseOrder{before, after} {
		if o == nil {
			continue
		}
		ev.OrderID = o.ID
		if o.RequisitionID != nil {
			ev.RequisitionIDs = append(ev.RequisitionIDs, *o.RequisitionID)
		}
	}
	ev.RequisitionIDs = uniqueIDs(ev.RequisitionIDs)
	return ev
}

// InvoiceChangedFrom builds the event for an invoice transition. Either side
// may be nil (create or delete). An order link is listed only from a version
// that counts as a receipt (posted and inbound): a draft never moved the
// order's received quantities, while un-posting one must undo them.
func InvoiceChangedFrom(before, after *invoice.Invoice) InvoiceChanged {
	var ev InvoiceChanged
	for _, inv := range []*invoice.Invoice{before, after} {
		if inv == nil {
			continue
		}
		ev.InvoiceID = inv.ID
		if inv.OrderID != nil && inv.IsInbound() && inv.IsPosted() {
			ev.OrderIDs = append(ev.OrderIDs, *inv.OrderID)
		}
		if !inv.IsInbound() || inv.WarehouseID == nil {
			continue
		}
		for _, line := range inv.Lines {
			if line.GenericProductID == nil {
				continue
			}
			ev.Scopes = append(ev.Scopes, stock.NewScope(*inv.WarehouseID, *line.GenericProductID, line.Lot, line.ExpiryDate))
		}
	}
	ev.OrderIDs = uniqueIDs(ev.OrderIDs)
	ev.Scopes = uniqueScopes(ev.Scopes)
	return ev
}

func uniqueIDs(ids []id.ID) []id.ID {
	seen := make(map[id.ID]struct{}, len(ids))
	out := ids[:0]
	for _, v := range ids {
		if id.IsNil(v) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func uniqueScopes(scopes []stock.Scope) []stock.Scope {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]stock.Scope, 0, len(scopes))
	for _, s := range scopes {
		s = stock.NewScope(s.WarehouseID, s.ProductID, &s.Lot, s.ExpiryDate)
		if _, ok := seen[s.Key()]; ok {
			continue
		}
		seen[s.Key()] = struct{}{}
		out = append(out, s)
	}
	return out
}
