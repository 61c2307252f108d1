package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"supplyledger/internal/core/id"
	"supplyledger/internal/domain/documents/requisition"
	"supplyledger/internal/infrastructure/storage/postgres"
)

const (
	requisitionsTable     = "doc_requisitions"
	requisitionItemsTable = "doc_requisition_items"
	orderItemsTable       = "doc_purchase_order_items"
	ordersTable           = "doc_purchase_orders"
)

var _ requisition.Repository = (*RequisitionRepo)(nil)

// RequisitionRepo implements requisition.Repository.
type RequisitionRepo struct {
	txManager *postgres.TxManager
}

// NewRequisitionRepo creates a new requisition repository.
func NewRequisitionRepo(txManager *postgres.TxManager) *RequisitionRepo {
	return &RequisitionRepo{txManager: txManager}
}

// GetForUpdate implements requisition.Repository.
func (r *RequisitionRepo) GetForUpdate(ctx context.Context, requisitionID id.ID) (*requisition.Requisition, error) {
	doc, err := getForUpdate[requisition.Requisition](ctx, r.txManager,
		requisitionHeaderQuery(requisitionID), "requisition", requisitionID)
	if err != nil {
		return nil, err
	}

	items, err := selectAll[requisition.Item](ctx, r.txManager, requisitionItemsQuery(requisitionID), "requisition items")
	if err != nil {
		return nil, err
	}
	doc.Items = items
	return doc, nil
}

// GetAllocations implements requisition.Repository.
func (r *RequisitionRepo) GetAllocations(ctx context.Context, requisitionID id.ID) ([]requisition.Allocation, error) {
	return selectAll[requisition.Allocation](ctx, r.txManager, allocationsQuery(requisitionID), "allocations")
}

// UpdateStatus implements requisition.Repository.
func (r *RequisitionRepo) UpdateStatus(ctx context.Context, requisitionID id.ID, expectedVersion int, status requisition.Status) error {
	return execVersioned(ctx, r.txManager,
		statusUpdate(requisitionsTable, requisitionID, expectedVersion, string(status)),
		"requisition", requisitionID)
}

func requisitionHeaderQuery(requisitionID id.ID) squirrel.SelectBuilder {
	return newBuilder().
		Select(postgres.ExtractDBColumns[requisition.Requisition]()...).
		From(requisitionsTable).
		Where(squirrel.Eq{"id": requisitionID}).
		Suffix("FOR UPDATE")
}

func requisitionItemsQuery(requisitionID id.ID) squirrel.SelectBuilder {
	return newBuilder().
		Select(postgres.ExtractDBColumns[requisition.Item]()...).
		From(requisitionItemsTable).
		Where(squirrel.Eq{"requisition_id": requisitionID}).
		OrderBy("line_no", "id")
}

// allocationsQuery joins order lines to the requisition through their item link.
// Cancelled orders are returned too; the aggregator decides what counts.
func allocationsQuery(requisitionID id.ID) squirrel.SelectBuilder {
	return newBuilder().
		Select(
			"o.id AS order_id",
			"o.status AS order_status",
			"oi.requisition_item_id",
			"oi.quantity_ordered",
		).
		From(orderItemsTable + " oi").
		Join(ordersTable + " o ON o.id = oi.order_id").
		Join(requisitionItemsTable + " ri ON ri.id = oi.requisition_item_id").
		Where(squirrel.Eq{"ri.requisition_id": requisitionID}).
		OrderBy("o.id", "oi.id")
}
