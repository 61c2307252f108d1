// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"supplyledger/internal/core/apperror"
	"supplyledger/internal/core/id"
	"supplyledger/internal/core/types"
	"supplyledger/internal/domain/documents/invoice"
	"supplyledger/internal/domain/registers/stock"
	"supplyledger/internal/infrastructure/storage/postgres"
)

const (
	stockLotsTable    = "reg_stock_lots"
	invoicesTable     = "doc_invoices"
	invoiceLinesTable = "doc_invoice_lines"
)

var _ stock.Repository = (*StockLotRepo)(nil)

// StockLotRepo implements stock.Repository.
type StockLotRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockLotRepo creates a new stock lot repository.
func NewStockLotRepo(txManager *postgres.TxManager) *StockLotRepo {
	return &StockLotRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindActiveLot implements stock.Repository.
func (r *StockLotRepo) FindActiveLot(ctx context.Context, scope stock.Scope) (*stock.Lot, error) {
	sql, args, err := r.activeLotQuery(scope).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var lot stock.Lot
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &lot, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock_lot", scope.Key())
		}
		return nil, fmt.Errorf("get stock lot: %w", err)
	}
	return &lot, nil
}

// ListLedgerEntries implements stock.Repository.
func (r *StockLotRepo) ListLedgerEntries(ctx context.Context, scope stock.Scope) ([]stock.LedgerEntry, error) {
	sql, args, err := r.ledgerQuery(scope).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var entries []stock.LedgerEntry
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select ledger entries: %w", err)
	}
	return entries, nil
}

// UpdateAverageCost implements stock.Repository. Only the average, version
// and updated_at are written.
func (r *StockLotRepo) UpdateAverageCost(ctx context.Context, lotID id.ID, expectedVersion int, average types.Money) error {
	sql, args, err := r.updateAverageQuery(lotID, expectedVersion, average).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update stock lot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("stock_lot", lotID)
	}
	return nil
}

type scopeRow struct {
	WarehouseID id.ID      `db:"warehouse_id"`
	ProductID   id.ID      `db:"product_id"`
	Lot         string     `db:"lot"`
	ExpiryDate  *time.Time `db:"expiry_date"`
}

// ListScopes implements stock.Repository.
func (r *StockLotRepo) ListScopes(ctx context.Context, filter stock.ScopeFilter) ([]stock.Scope, error) {
	sql, args, err := r.scopesQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rows []scopeRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select scopes: %w", err)
	}

	scopes := make([]stock.Scope, 0, len(rows))
	for _, row := range rows {
		scopes = append(scopes, stock.NewScope(row.WarehouseID, row.ProductID, &row.Lot, row.ExpiryDate))
	}
	return scopes, nil
}

func (r *StockLotRepo) activeLotQuery(scope stock.Scope) squirrel.SelectBuilder {
	return r.builder.
		Select(postgres.ExtractDBColumns[stock.Lot]()...).
		From(stockLotsTable).
		Where(squirrel.Eq{
			"warehouse_id": scope.WarehouseID,
			"product_id":   scope.ProductID,
			"status":       stock.LotStatusActive,
		}).
		Where(lotCondition("lot", scope)).
		Where(expiryCondition("expiry_date", scope)).
		OrderBy("id").
		Limit(1)
}

func (r *StockLotRepo) ledgerQuery(scope stock.Scope) squirrel.SelectBuilder {
	return r.builder.
		Select(
			"i.id AS invoice_id",
			"l.id AS line_id",
			"i.emission_date",
			"l.quantity",
			"l.unit_value",
		).
		From(invoiceLinesTable + " l").
		Join(invoicesTable + " i ON i.id = l.invoice_id").
		Where(squirrel.Eq{
			"i.type":               string(invoice.TypeInbound),
			"i.warehouse_id":       scope.WarehouseID,
			"l.generic_product_id": scope.ProductID,
		}).
		Where(lotCondition("l.lot", scope)).
		Where(expiryCondition("l.expiry_date", scope)).
		OrderBy("i.emission_date", "i.id", "l.id")
}

func (r *StockLotRepo) updateAverageQuery(lotID id.ID, expectedVersion int, average types.Money) squirrel.UpdateBuilder {
	return r.builder.
		Update(stockLotsTable).
		Set("weighted_average_unit_cost", average).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": lotID}).
		Where(squirrel.Eq{"version": expectedVersion})
}

// scopesQuery enumerates the distinct scopes fed by inbound lines that can
// affect an average.
func (r *StockLotRepo) scopesQuery(filter stock.ScopeFilter) squirrel.SelectBuilder {
	q := r.builder.
		Select(
			"i.warehouse_id",
			"l.generic_product_id AS product_id",
			"COALESCE(btrim(l.lot), '') AS lot",
			"l.expiry_date",
		).
		Distinct().
		From(invoiceLinesTable + " l").
		Join(invoicesTable + " i ON i.id = l.invoice_id").
		Where(squirrel.Eq{"i.type": string(invoice.TypeInbound)}).
		Where(squirrel.NotEq{"i.warehouse_id": nil}).
		Where(squirrel.NotEq{"l.generic_product_id": nil}).
		Where(squirrel.Gt{"l.quantity": 0})

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"i.warehouse_id": *filter.WarehouseID})
	}
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"l.generic_product_id": *filter.ProductID})
	}

	return q.OrderBy("i.warehouse_id", "product_id", "lot", "l.expiry_date NULLS FIRST")
}

// lotCondition matches the trimmed lot exactly. An empty scope lot matches
// only rows without a lot.
func lotCondition(column string, scope stock.Scope) squirrel.Sqlizer {
	if scope.HasLot() {
		return squirrel.Expr("btrim("+column+") = ?", scope.Lot)
	}
	return squirrel.Expr("(" + column + " IS NULL OR btrim(" + column + ") = '')")
}

// expiryCondition matches the expiry date exactly. A scope without expiry
// matches only rows without one.
func expiryCondition(column string, scope stock.Scope) squirrel.Sqlizer {
	if scope.HasExpiry() {
		return squirrel.Eq{column: *scope.ExpiryDate}
	}
	return squirrel.Eq{column: nil}
}
