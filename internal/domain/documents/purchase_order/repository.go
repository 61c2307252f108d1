package purchase_order

import (
	"context"

	"supplyledger/internal/core/id"
)

// Repository loads purchase orders and writes their derived status.
type Repository interface {
	// GetForUpdate returns the order with its items and locks the header row
	// until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, orderID id.ID) (*PurchaseOrder, error)

	// GetReceipts returns lines of posted inbound invoices linked to the order.
	GetReceipts(ctx context.Context, orderID id.ID) ([]Receipt, error)

	// UpdateStatus writes status if the row still has expectedVersion.
	// Returns apperror.ConcurrentModification otherwise.
	UpdateStatus(ctx context.Context, orderID id.ID, expectedVersion int, status Status) error
}
