// Package invoice describes fiscal invoices as seen by the reconciliation
// engine: read-only documents whose lines drive order receipts and stock costing.
package invoice

import (
	"time"

	"supplyledger/internal/core/id"
	"supplyledger/internal/core/types"
)

// Type is the goods-movement direction of an invoice.
type Type string

const (
	TypeInbound  Type = "INBOUND"
	TypeOutbound Type = "OUTBOUND"
)

// Status values. Only posted invoices count as receipts against an order.
const (
	StatusPosted = "posted"
)

// Invoice is a posted or draft fiscal document.
type Invoice struct {
	ID           id.ID     `db:"id"`
	Number       string    `db:"number"`
	Type         Type      `db:"type"`
	OrderID      *id.ID    `db:"order_id"`
	WarehouseID  *id.ID    `db:"warehouse_id"`
	EmissionDate time.Time `db:"emission_date"`
	Status       string    `db:"status"`

	Lines []Line `db:"-"`
}

// Line is an invoice item.
type Line struct {
	ID               id.ID          `db:"id"`
	LineNo           int            `db:"line_no"`
	ProductCode      string         `db:"product_code"`
	GenericProductID *id.ID         `db:"generic_product_id"`
	Quantity         types.Quantity `db:"quantity"`
	UnitValue        types.Money    `db:"unit_value"`
	Lot              *string        `db:"lot"`
	ExpiryDate       *time.Time     `db:"expiry_date"`
}

// IsInbound reports whether the invoice records goods entering a warehouse.
func (inv *Invoice) IsInbound() bool {
	return inv.Type == TypeInbound
}

// IsPosted reports whether the invoice counts as a receipt.
func (inv *Invoice) IsPosted() bool {
	return inv.Status == StatusPosted
}
