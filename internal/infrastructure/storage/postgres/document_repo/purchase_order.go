package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"supplyledger/internal/core/id"
	"supplyledger/internal/domain/documents/invoice"
	"supplyledger/internal/domain/documents/purchase_order"
	"supplyledger/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable     = "doc_invoices"
	invoiceLinesTable = "doc_invoice_lines"
)

var _ purchase_order.Repository = (*PurchaseOrderRepo)(nil)

// PurchaseOrderRepo implements purchase_order.Repository.
type PurchaseOrderRepo struct {
	txManager *postgres.TxManager
}

// NewPurchaseOrderRepo creates a new purchase order repository.
func NewPurchaseOrderRepo(txManager *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{txManager: txManager}
}

// GetForUpdate implements purchase_order.Repository.
func (r *PurchaseOrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*purchase_order.PurchaseOrder, error) {
	order, err := getForUpdate[purchase_order.PurchaseOrder](ctx, r.txManager,
		orderHeaderQuery(orderID), "purchase_order", orderID)
	if err != nil {
		return nil, err
	}

	items, err := selectAll[purchase_order.Item](ctx, r.txManager, orderItemsQuery(orderID), "order items")
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// GetReceipts implements purchase_order.Repository.
func (r *PurchaseOrderRepo) GetReceipts(ctx context.Context, orderID id.ID) ([]purchase_order.Receipt, error) {
	return selectAll[purchase_order.Receipt](ctx, r.txManager, receiptsQuery(orderID), "receipts")
}

// UpdateStatus implements purchase_order.Repository.
func (r *PurchaseOrderRepo) UpdateStatus(ctx context.Context, orderID id.ID, expectedVersion int, status purchase_order.Status) error {
	return execVersioned(ctx, r.txManager,
		statusUpdate(ordersTable, orderID, expectedVersion, string(status)),
		"purchase_order", orderID)
}

func orderHeaderQuery(orderID id.ID) squirrel.SelectBuilder {
	return newBuilder().
		Select(postgres.ExtractDBColumns[purchase_order.PurchaseOrder]()...).
		From(ordersTable).
		Where(squirrel.Eq{"id": orderID}).
		Suffix("FOR UPDATE")
}

func orderItemsQuery(orderID id.ID) squirrel.SelectBuilder {
	return newBuilder().
		Select(postgres.ExtractDBColumns[purchase_order.Item]()...).
		From(orderItemsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no", "id")
}

func receiptsQuery(orderID id.ID) squirrel.SelectBuilder {
	return newBuilder().
		Select(
			"i.id AS invoice_id",
			"l.id AS line_id",
			"l.product_code",
			"l.generic_product_id",
			"l.quantity",
		).
		From(invoiceLinesTable + " l").
		Join(invoicesTable + " i ON i.id = l.invoice_id").
		Where(squirrel.Eq{
			"i.order_id": orderID,
			"i.type":     string(invoice.TypeInbound),
			"i.status":   invoice.StatusPosted,
		}).
		OrderBy("i.emission_date", "i.id", "l.id")
}
