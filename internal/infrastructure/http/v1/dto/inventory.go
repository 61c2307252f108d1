package dto

import (
	"supplyledger/internal/domain/registers/stock"
)

// ScopeRequest identifies a stock lot.
type ScopeRequest struct {
	WarehouseID string  `json:"warehouse_id"`
	ProductID   string  `json:"product_id"`
	Lot         *string `json:"lot"`
	ExpiryDate  *string `json:"expiry_date"`
}

// ToScope validates the request and builds a normalized scope.
func (r ScopeRequest) ToScope() (stock.Scope, error) {
	warehouseID, err := parseID("warehouse_id", r.WarehouseID)
	if err != nil {
		return stock.Scope{}, err
	}
	productID, err := parseID("product_id", r.ProductID)
	if err != nil {
		return stock.Scope{}, err
	}
	expiry, err := parseDate("expiry_date", r.ExpiryDate)
	if err != nil {
		return stock.Scope{}, err
	}
	return stock.NewScope(warehouseID, productID, r.Lot, expiry), nil
}

// RecalculateAveragesRequest narrows a batch recalculation.
type RecalculateAveragesRequest struct {
	WarehouseID *string `json:"warehouse_id"`
	ProductID   *string `json:"product_id"`
}

// ToFilter validates the request.
func (r RecalculateAveragesRequest) ToFilter() (stock.ScopeFilter, error) {
	warehouseID, err := parseOptionalID("warehouse_id", r.WarehouseID)
	if err != nil {
		return stock.ScopeFilter{}, err
	}
	productID, err := parseOptionalID("product_id", r.ProductID)
	if err != nil {
		return stock.ScopeFilter{}, err
	}
	return stock.ScopeFilter{WarehouseID: warehouseID, ProductID: productID}, nil
}

// BatchResponse reports a batch recalculation.
type BatchResponse struct {
	stock.BatchResult
	DurationMs int64 `json:"duration_ms"`
}

// FromBatchResult converts the domain result.
func FromBatchResult(r stock.BatchResult) BatchResponse {
	return BatchResponse{BatchResult: r, DurationMs: r.Duration.Milliseconds()}
}
