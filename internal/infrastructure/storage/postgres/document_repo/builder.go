// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"supplyledger/internal/core/apperror"
	"supplyledger/internal/core/id"
	"supplyledger/internal/infrastructure/storage/postgres"
)

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// getForUpdate loads one header row and locks it.
func getForUpdate[T any](ctx context.Context, txm *postgres.TxManager, q squirrel.SelectBuilder, entity string, entityID id.ID) (*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var row T
	if err := pgxscan.Get(ctx, txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(entity, entityID)
		}
		return nil, fmt.Errorf("get %s: %w", entity, err)
	}
	return &row, nil
}

func selectAll[T any](ctx context.Context, txm *postgres.TxManager, q squirrel.SelectBuilder, what string) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rows []T
	if err := pgxscan.Select(ctx, txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", what, err)
	}
	return rows, nil
}

// execVersioned runs an optimistic update and reports a lost race as a
// concurrent modification.
func execVersioned(ctx context.Context, txm *postgres.TxManager, q squirrel.UpdateBuilder, entity string, entityID id.ID) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", entity, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(entity, entityID)
	}
	return nil
}

// statusUpdate bumps version and updated_at along with the new status.
func statusUpdate(table string, entityID id.ID, expectedVersion int, status string) squirrel.UpdateBuilder {
	return newBuilder().
		Update(table).
		Set("status", status).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": entityID}).
		Where(squirrel.Eq{"version": expectedVersion})
}
