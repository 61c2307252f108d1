package requisition

import (
	"context"

	"supplyledger/internal/core/id"
)

// Repository loads requisitions and writes their derived status.
type Repository interface {
	// GetForUpdate returns the requisition with its items and locks the
	// header row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, requisitionID id.ID) (*Requisition, error)

	// GetAllocations returns every order item linked to one of the
	// requisition's items, regardless of order status.
	GetAllocations(ctx context.Context, requisitionID id.ID) ([]Allocation, error)

	// UpdateStatus writes status if the row still has expectedVersion.
	UpdateStatus(ctx context.Context, requisitionID id.ID, expectedVersion int, status Status) error
}
