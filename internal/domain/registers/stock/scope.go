package stock

import (
	"fmt"
	"strings"
	"time"

	"supplyledger/internal/core/apperror"
	"supplyledger/internal/core/id"
)

// NamespaceKey guards costing as a whole. Batches hold it exclusively,
// single-scope recomputes hold it shared.
const NamespaceKey = "stock-cost"

// Scope identifies one stock lot. An empty Lot means "no lot" and a nil
// ExpiryDate means "no expiry"; neither is a wildcard.
type Scope struct {
	WarehouseID id.ID      `json:"warehouse_id"`
	ProductID   id.ID      `json:"product_id"`
	Lot         string     `json:"lot,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

// NewScope builds a normalized scope: the lot is trimmed and the expiry is
// reduced to a UTC calendar date.
func NewScope(warehouseID, productID id.ID, lot *string, expiry *time.Time) Scope {
	s := Scope{WarehouseID: warehouseID, ProductID: productID}
	if lot != nil {
		s.Lot = strings.TrimSpace(*lot)
	}
	if expiry != nil && !expiry.IsZero() {
		y, m, d := expiry.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		s.ExpiryDate = &day
	}
	return s
}

// HasLot reports whether the scope is narrowed to a lot number.
func (s Scope) HasLot() bool { return s.Lot != "" }

// HasExpiry reports whether the scope is narrowed to an expiry date.
func (s Scope) HasExpiry() bool { return s.ExpiryDate != nil }

// Validate checks the identifying references.
func (s Scope) Validate() error {
	if id.IsNil(s.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouse_id")
	}
	if id.IsNil(s.ProductID) {
		return apperror.NewValidation("product is required").WithDetail("field", "product_id")
	}
	return nil
}

// Key is the lock key of the scope.
func (s Scope) Key() string {
	expiry := "-"
	if s.ExpiryDate != nil {
		expiry = s.ExpiryDate.Format(time.DateOnly)
	}
	return fmt.Sprintf("%s:%s:%s:%q:%s", NamespaceKey, s.WarehouseID, s.ProductID, s.Lot, expiry)
}

// String implements fmt.Stringer.
func (s Scope) String() string {
	return s.Key()
}
