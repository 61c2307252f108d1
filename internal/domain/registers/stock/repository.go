package stock

import (
	"context"

	"supplyledger/internal/core/id"
	"supplyledger/internal/core/types"
)

// Repository reads the costing inputs and writes the average cost.
type Repository interface {
	// FindActiveLot resolves the active lot of a scope.
	// Returns apperror.NotFound when there is none.
	FindActiveLot(ctx context.Context, scope Scope) (*Lot, error)

	// ListLedgerEntries returns every inbound invoice line of the scope.
	ListLedgerEntries(ctx context.Context, scope Scope) ([]LedgerEntry, error)

	// UpdateAverageCost writes the average if the lot still has expectedVersion.
	UpdateAverageCost(ctx context.Context, lotID id.ID, expectedVersion int, average types.Money) error

	// ListScopes enumerates distinct scopes among inbound invoice lines,
	// in a stable order.
	ListScopes(ctx context.Context, filter ScopeFilter) ([]Scope, error)
}

// ScopeFilter narrows a batch.
type ScopeFilter struct {
	WarehouseID *id.ID `json:"warehouse_id,omitempty"`
	ProductID   *id.ID `json:"product_id,omitempty"`
}
