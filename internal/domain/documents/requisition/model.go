// Package requisition derives the status of a purchase requisition from the
// quantities its non-cancelled purchase orders have committed.
package requisition

import (
	"time"

	"supplyledger/internal/core/id"
	"supplyledger/internal/core/types"
	"supplyledger/internal/domain/documents/purchase_order"
)

// Status is the fulfillment state of a requisition.
type Status string

const (
	StatusOpen      Status = "open"
	StatusPartial   Status = "partial"
	StatusFinalized Status = "finalized"
)

// Requisition is a request for goods.
type Requisition struct {
	ID        id.ID     `db:"id"`
	Number    string    `db:"number"`
	Status    Status    `db:"status"`
	Version   int       `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`

	Items []Item `db:"-"`
}

// Item is a requested product and quantity.
type Item struct {
	ID                id.ID          `db:"id"`
	ProductID         id.ID          `db:"product_id"`
	QuantityRequested types.Quantity `db:"quantity_requested"`
}

// Allocation is an order item that references a requisition item.
type Allocation struct {
	OrderID           id.ID                 `db:"order_id"`
	OrderStatus       purchase_order.Status `db:"order_status"`
	RequisitionItemID *id.ID                `db:"requisition_item_id"`
	QuantityOrdered   types.Quantity        `db:"quantity_ordered"`
}
