package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"supplyledger/internal/domain/registers/stock"
	"supplyledger/pkg/logger"
)

var (
	_ stock.Locker   = (*AdvisoryLocker)(nil)
	_ stock.TxLocker = (*AdvisoryLocker)(nil)
)

const (
	advisoryUnlockTimeout = 5 * time.Second
	defaultAdvisoryWait   = 10 * time.Second
)

// AdvisoryLocker implements stock.Locker and stock.TxLocker with Postgres
// advisory locks. Session and transaction advisory locks share one lock
// space, so a batch holding the namespace through Acquire excludes
// single-scope recomputes locking it through LockInTx.
type AdvisoryLocker struct {
	txManager *TxManager
	wait      time.Duration
}

// NewAdvisoryLocker creates a locker. wait bounds every lock wait; zero uses 10s.
func NewAdvisoryLocker(txManager *TxManager, wait time.Duration) *AdvisoryLocker {
	if wait <= 0 {
		wait = defaultAdvisoryWait
	}
	return &AdvisoryLocker{txManager: txManager, wait: wait}
}

func advisoryFuncs(mode stock.LockMode) (lock, unlock string) {
	if mode == stock.LockExclusive {
		return "pg_advisory_lock", "pg_advisory_unlock"
	}
	return "pg_advisory_lock_shared", "pg_advisory_unlock_shared"
}

func advisoryXactFunc(mode stock.LockMode) string {
	if mode == stock.LockExclusive {
		return "pg_advisory_xact_lock"
	}
	return "pg_advisory_xact_lock_shared"
}

// Acquire implements stock.Locker with a session lock. The hold pins one
// pooled connection until released; the connection wait and the lock wait
// are both bounded by the locker's wait.
func (l *AdvisoryLocker) Acquire(ctx context.Context, key string, mode stock.LockMode) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	conn, err := l.txManager.Pool().Acquire(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for lock %q: %w", key, err)
	}

	lockFn, unlockFn := advisoryFuncs(mode)
	if _, err := conn.Exec(waitCtx, "SELECT "+lockFn+"(hashtextextended($1, 0))", key); err != nil {
		// The lock may have been granted just before cancellation reached the
		// server; closing the session drops it either way.
		_ = conn.Hijack().Close(context.Background())
		return nil, fmt.Errorf("%s %q: %w", lockFn, key, err)
	}

	logger.Debug(ctx, "advisory lock acquired", "key", key, "mode", mode.String())

	var once sync.Once
	return func() {
		once.Do(func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), advisoryUnlockTimeout)
			defer cancel()

			if _, err := conn.Exec(unlockCtx, "SELECT "+unlockFn+"(hashtextextended($1, 0))", key); err != nil {
				logger.Warn(ctx, "advisory unlock failed, closing session", "key", key, "error", err)
				_ = conn.Hijack().Close(unlockCtx)
				return
			}
			conn.Release()
		})
	}, nil
}

// LockInTx implements stock.TxLocker. The lock is taken on the transaction's
// own connection and released at commit or rollback. lock_timeout is set for
// the rest of the transaction so the wait cannot outlive the locker's bound.
func (l *AdvisoryLocker) LockInTx(ctx context.Context, key string, mode stock.LockMode) error {
	tx := l.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("advisory lock %q requires transaction context", key)
	}

	timeout := fmt.Sprintf("%dms", l.wait.Milliseconds())
	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", timeout); err != nil {
		return fmt.Errorf("set lock_timeout: %w", err)
	}

	lockFn := advisoryXactFunc(mode)
	if _, err := tx.Exec(ctx, "SELECT "+lockFn+"(hashtextextended($1, 0))", key); err != nil {
		return fmt.Errorf("%s %q: %w", lockFn, key, err)
	}

	logger.Debug(ctx, "advisory xact lock acquired", "key", key, "mode", mode.String())
	return nil
}
