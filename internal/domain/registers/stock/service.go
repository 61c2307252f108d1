package stock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"supplyledger/internal/core/apperror"
	"supplyledger/internal/core/id"
	"supplyledger/internal/core/tx"
	"supplyledger/internal/core/types"
	"supplyledger/internal/domain/audit"
	"supplyledger/pkg/logger"
)

var tracer = otel.Tracer("supplyledger/stock")

// Config tunes batch recomputation.
type Config struct {
	// Workers is the number of scopes replayed concurrently in a batch.
	Workers int
	// BatchTimeout bounds a whole batch. Zero means no deadline.
	BatchTimeout time.Duration
	// LockWait bounds each wait in Locker.Acquire. Defaults to 10s.
	LockWait time.Duration
}

// Recalculation reports a single-scope replay.
type Recalculation struct {
	Scope           Scope          `json:"scope"`
	LotID           id.ID          `json:"lot_id"`
	CurrentQuantity types.Quantity `json:"current_quantity"`
	PreviousAverage types.Money    `json:"previous_average"`
	NewAverage      types.Money    `json:"new_average"`
	LinesProcessed  int            `json:"lines_processed"`
	LinesIncluded   int            `json:"lines_included"`
	LinesSkipped    int            `json:"lines_skipped"`
	Changed         bool           `json:"changed"`
}

// FailedScope is a batch scope that could not be recomputed.
type FailedScope struct {
	Scope Scope  `json:"scope"`
	Error string `json:"error"`
}

// BatchResult aggregates a batch run.
type BatchResult struct {
	ScopesProcessed int           `json:"scopes_processed"`
	ScopesUpdated   int           `json:"scopes_updated"`
	ScopesChanged   int           `json:"scopes_changed"`
	ScopesMissing   int           `json:"scopes_missing"`
	ScopesFailed    int           `json:"scopes_failed"`
	FailedScopes    []FailedScope `json:"failed_scopes"`
	LinesSkipped    int           `json:"lines_skipped"`
	Partial         bool          `json:"partial"`
	Duration        time.Duration `json:"duration"`
}

// Service replays inbound invoice lines into stock lot average costs.
type Service struct {
	repo      Repository
	txManager tx.Manager
	locker    Locker
	recorder  audit.Recorder
	cfg       Config
}

// NewService creates a new costing service.
func NewService(repo Repository, txManager tx.Manager, locker Locker, recorder audit.Recorder, cfg Config) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 10 * time.Second
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		locker:    locker,
		recorder:  recorder,
		cfg:       cfg,
	}
}

// RecalculateOne replays a single scope. It waits for a running batch to finish.
// With a TxLocker both locks are taken inside the replay transaction, so the
// call occupies a single connection.
func (s *Service) RecalculateOne(ctx context.Context, scope Scope) (Recalculation, error) {
	ctx, span := tracer.Start(ctx, "stock.recalculate_one",
		trace.WithAttributes(attribute.String("stock.scope", scope.Key())))
	defer span.End()

	if err := scope.Validate(); err != nil {
		return Recalculation{}, err
	}
	ctx = logger.WithScope(ctx, scope.Key())

	var (
		rec Recalculation
		err error
	)
	if txLocker, ok := s.locker.(TxLocker); ok {
		rec, err = s.recalculate(ctx, scope, func(ctx context.Context) error {
			if err := lockInTx(ctx, txLocker, NamespaceKey, LockShared); err != nil {
				return err
			}
			return lockInTx(ctx, txLocker, scope.Key(), LockExclusive)
		})
	} else {
		rec, err = s.recalculateHeld(ctx, scope)
	}
	if err != nil {
		span.RecordError(err)
		return Recalculation{}, err
	}

	logger.Info(ctx, "stock lot average recalculated",
		"previous_average", rec.PreviousAverage,
		"new_average", rec.NewAverage,
		"lines_processed", rec.LinesProcessed,
		"lines_skipped", rec.LinesSkipped)

	return rec, nil
}

// recalculateHeld takes both locks through Locker.Acquire and replays under them.
func (s *Service) recalculateHeld(ctx context.Context, scope Scope) (Recalculation, error) {
	releaseNamespace, err := s.acquire(ctx, NamespaceKey, LockShared)
	if err != nil {
		return Recalculation{}, err
	}
	defer releaseNamespace()

	releaseScope, err := s.acquire(ctx, scope.Key(), LockExclusive)
	if err != nil {
		return Recalculation{}, err
	}
	defer releaseScope()

	return s.recalculate(ctx, scope, nil)
}

// RecalculateBatch replays every scope matching filter. Per-scope failures
// are reported in the result; an error is returned only when the batch
// could not start.
func (s *Service) RecalculateBatch(ctx context.Context, filter ScopeFilter) (BatchResult, error) {
	ctx, span := tracer.Start(ctx, "stock.recalculate_batch")
	defer span.End()

	started := time.Now()
	if s.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BatchTimeout)
		defer cancel()
	}

	release, err := s.acquire(ctx, NamespaceKey, LockExclusive)
	if err != nil {
		return BatchResult{}, err
	}
	defer release()

	scopes, err := s.repo.ListScopes(ctx, filter)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list scopes: %w", err)
	}

	var (
		mu     sync.Mutex
		result = BatchResult{FailedScopes: []FailedScope{}}
		g      errgroup.Group
	)
	g.SetLimit(s.cfg.Workers)

	for _, scope := range scopes {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			scopeCtx := logger.WithScope(ctx, scope.Key())
			rec, err := s.recalculate(scopeCtx, scope, nil)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				result.ScopesProcessed++
				result.ScopesUpdated++
				result.LinesSkipped += rec.LinesSkipped
				if rec.Changed {
					result.ScopesChanged++
				}
			case apperror.IsNotFound(err):
				result.ScopesProcessed++
				result.ScopesMissing++
			case ctx.Err() != nil && errors.Is(err, ctx.Err()):
				// interrupted, neither processed nor failed
			default:
				result.ScopesProcessed++
				result.ScopesFailed++
				result.FailedScopes = append(result.FailedScopes, FailedScope{Scope: scope, Error: err.Error()})
				logger.Error(scopeCtx, "stock lot recalculation failed", "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Partial = ctx.Err() != nil
	result.Duration = time.Since(started)
	slices.SortFunc(result.FailedScopes, func(a, b FailedScope) int {
		return strings.Compare(a.Scope.Key(), b.Scope.Key())
	})

	s.recordBatch(ctx, filter, len(scopes), result)

	logger.Info(ctx, "stock cost batch finished",
		"scopes_total", len(scopes),
		"scopes_processed", result.ScopesProcessed,
		"scopes_updated", result.ScopesUpdated,
		"scopes_missing", result.ScopesMissing,
		"scopes_failed", result.ScopesFailed,
		"partial", result.Partial,
		"duration", result.Duration)

	return result, nil
}

// recalculate replays one scope in its own transaction. lock, when set, runs
// first inside the transaction; otherwise the caller holds the locks.
func (s *Service) recalculate(ctx context.Context, scope Scope, lock func(ctx context.Context) error) (Recalculation, error) {
	var rec Recalculation
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if lock != nil {
			if err := lock(ctx); err != nil {
				return err
			}
		}

		lot, err := s.repo.FindActiveLot(ctx, scope)
		if err != nil {
			return err
		}

		entries, err := s.repo.ListLedgerEntries(ctx, scope)
		if err != nil {
			return fmt.Errorf("list ledger entries: %w", err)
		}

		replayed := Replay(entries)
		for _, e := range replayed.Skipped {
			logger.Warn(ctx, "invoice line excluded from average cost",
				"invoice_id", e.InvoiceID,
				"line_id", e.LineID,
				"quantity", e.Quantity,
				"unit_value", e.UnitValue)
		}

		rec = Recalculation{
			Scope:           scope,
			LotID:           lot.ID,
			CurrentQuantity: lot.CurrentQuantity,
			PreviousAverage: lot.WeightedAverageUnitCost,
			NewAverage:      replayed.Average,
			LinesProcessed:  replayed.LinesProcessed,
			LinesIncluded:   replayed.LinesIncluded,
			LinesSkipped:    replayed.LinesSkipped,
		}

		if replayed.Average.Equal(lot.WeightedAverageUnitCost) {
			return nil
		}

		if err := s.repo.UpdateAverageCost(ctx, lot.ID, lot.Version, replayed.Average); err != nil {
			return err
		}
		rec.Changed = true

		return s.recorder.Record(ctx, audit.Entry{
			EntityType: "stock_lot",
			EntityID:   lot.ID.String(),
			Action:     audit.ActionAverageChange,
			Changes: map[string]any{
				"weighted_average_unit_cost": audit.Change(
					lot.WeightedAverageUnitCost.String(), replayed.Average.String()),
				"lines_included": replayed.LinesIncluded,
				"lines_skipped":  replayed.LinesSkipped,
			},
		})
	})
	return rec, err
}

func (s *Service) recordBatch(ctx context.Context, filter ScopeFilter, total int, result BatchResult) {
	failed := make([]string, 0, len(result.FailedScopes))
	for _, f := range result.FailedScopes {
		failed = append(failed, f.Scope.Key())
	}

	err := s.recorder.Record(context.WithoutCancel(ctx), audit.Entry{
		EntityType: "stock_cost_batch",
		EntityID:   id.New().String(),
		Action:     audit.ActionBatchRecompute,
		Changes: map[string]any{
			"filter":           filter,
			"scopes_total":     total,
			"scopes_processed": result.ScopesProcessed,
			"scopes_updated":   result.ScopesUpdated,
			"scopes_missing":   result.ScopesMissing,
			"scopes_failed":    result.ScopesFailed,
			"failed_scopes":    failed,
			"partial":          result.Partial,
		},
	})
	if err != nil {
		logger.Warn(ctx, "failed to record batch audit entry", "error", err)
	}
}

func (s *Service) acquire(ctx context.Context, key string, mode LockMode) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()

	release, err := s.locker.Acquire(waitCtx, key, mode)
	if err != nil {
		return nil, apperror.NewLockTimeout(key, err)
	}
	return release, nil
}

func lockInTx(ctx context.Context, locker TxLocker, key string, mode LockMode) error {
	if err := locker.LockInTx(ctx, key, mode); err != nil {
		return apperror.NewLockTimeout(key, err)
	}
	return nil
}
