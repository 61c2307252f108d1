// Package purchase_order derives the fulfillment status of a purchase order
// from the quantities recorded on its posted inbound invoices.
package purchase_order

import (
	"fmt"
	"time"

	"supplyledger/internal/core/id"
	"supplyledger/internal/core/types"
)

// Status is the lifecycle state of a purchase order.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusApproved  Status = "approved"
	StatusSent      Status = "sent"
	StatusConfirmed Status = "confirmed"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusPartial   Status = "partial"
	StatusFinalized Status = "finalized"
	StatusCancelled Status = "cancelled"
)

// receiptActive holds the statuses in which an order is expecting goods.
var receiptActive = map[Status]struct{}{
	StatusApproved:  {},
	StatusSent:      {},
	StatusConfirmed: {},
	StatusInTransit: {},
	StatusDelivered: {},
	StatusPartial:   {},
}

// IsReceiptActive reports whether invoices against an order in this status
// may move it forward.
func (s Status) IsReceiptActive() bool {
	_, ok := receiptActive[s]
	return ok
}

// IsCancelled reports whether the order no longer consumes requisition quantities.
func (s Status) IsCancelled() bool {
	return s == StatusCancelled
}

// PurchaseOrder is the header of a purchase order.
type PurchaseOrder struct {
	ID            id.ID     `db:"id"`
	Number        string    `db:"number"`
	RequisitionID *id.ID    `db:"requisition_id"`
	Status        Status    `db:"status"`
	Version       int       `db:"version"`
	UpdatedAt     time.Time `db:"updated_at"`

	Items []Item `db:"-"`
}

// Item is an order line.
type Item struct {
	ID                id.ID          `db:"id"`
	ProductID         id.ID          `db:"product_id"`
	ProductCode       string         `db:"product_code"`
	RequisitionItemID *id.ID         `db:"requisition_item_id"`
	QuantityOrdered   types.Quantity `db:"quantity_ordered"`
}

// Receipt is one line of a posted inbound invoice linked to the order.
type Receipt struct {
	InvoiceID        id.ID          `db:"invoice_id"`
	LineID           id.ID          `db:"line_id"`
	ProductCode      string         `db:"product_code"`
	GenericProductID *id.ID         `db:"generic_product_id"`
	Quantity         types.Quantity `db:"quantity"`
}

// Policy controls whether a finalized order may be re-evaluated.
type Policy string

const (
	// PolicyFreeze never reopens a finalized order and never moves an order
	// backwards when receipts disappear.
	PolicyFreeze Policy = "freeze"
	// PolicyLive re-evaluates finalized orders and returns partial or
	// finalized orders with nothing received to approved.
	PolicyLive Policy = "live"
)

// ParsePolicy validates a configured policy name. Empty means PolicyFreeze.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFreeze:
		return PolicyFreeze, nil
	case PolicyLive:
		return PolicyLive, nil
	default:
		return "", fmt.Errorf("unknown order status policy %q", s)
	}
}

// Eligible reports whether an order in status s is recomputed under the policy.
func (p Policy) Eligible(s Status) bool {
	if s.IsReceiptActive() {
		return true
	}
	return p == PolicyLive && s == StatusFinalized
}
