// Package stock recomputes the weighted-average unit cost of stock lots by
// replaying the inbound invoice lines that fed them.
package stock

import (
	"time"

	"supplyledger/internal/core/id"
	"supplyledger/internal/core/types"
)

// LotStatusActive is the only status resolved for costing.
const LotStatusActive = "active"

// Lot is a stock register row. CurrentQuantity belongs to inventory
// movement logic and is read here only for reporting.
type Lot struct {
	ID                      id.ID          `db:"id"`
	WarehouseID             id.ID          `db:"warehouse_id"`
	ProductID               id.ID          `db:"product_id"`
	Lot                     *string        `db:"lot"`
	ExpiryDate              *time.Time     `db:"expiry_date"`
	CurrentQuantity         types.Quantity `db:"current_quantity"`
	WeightedAverageUnitCost types.Money    `db:"weighted_average_unit_cost"`
	Status                  string         `db:"status"`
	Version                 int            `db:"version"`
	UpdatedAt               time.Time      `db:"updated_at"`
}
