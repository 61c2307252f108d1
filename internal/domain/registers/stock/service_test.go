package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyledger/internal/core/apperror"
	"supplyledger/internal/core/id"
	"supplyledger/internal/core/tx"
	"supplyledger/internal/core/types"
	"supplyledger/internal/domain/audit"
)

type fakeRepo struct {
	mu       sync.Mutex
	lots     map[string]*Lot
	entries  map[string][]LedgerEntry
	scopes   []Scope
	failures map[string]error
	updates  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		lots:     make(map[string]*Lot),
		entries:  make(map[string][]LedgerEntry),
		failures: make(map[string]error),
	}
}

func (r *fakeRepo) addLot(scope Scope, avg string) *Lot {
	lot := &Lot{
		ID:                      id.New(),
		WarehouseID:             scope.WarehouseID,
		ProductID:               scope.ProductID,
		CurrentQuantity:         types.MustQuantity("42"),
		WeightedAverageUnitCost: types.MustMoney(avg),
		Status:                  LotStatusActive,
		Version:                 1,
	}
	r.lots[scope.Key()] = lot
	return lot
}

func (r *fakeRepo) FindActiveLot(_ context.Context, scope Scope) (*Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures[scope.Key()]; err != nil {
		return nil, err
	}
	lot, ok := r.lots[scope.Key()]
	if !ok {
		return nil, apperror.NewNotFound("stock_lot", scope.Key())
	}
	cp := *lot
	return &cp, nil
}

func (r *fakeRepo) ListLedgerEntries(_ context.Context, scope Scope) ([]LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[scope.Key()], nil
}

func (r *fakeRepo) UpdateAverageCost(_ context.Context, lotID id.ID, expectedVersion int, average types.Money) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lot := range r.lots {
		if lot.ID != lotID {
			continue
		}
		if lot.Version != expectedVersion {
			return apperror.NewConcurrentModification("stock_lot", lotID)
		}
		lot.WeightedAverageUnitCost = average
		lot.Version++
		r.updates++
		return nil
	}
	return apperror.NewNotFound("stock_lot", lotID)
}

func (r *fakeRepo) ListScopes(_ context.Context, filter ScopeFilter) ([]Scope, error) {
	var out []Scope
	for _, s := range r.scopes {
		if filter.WarehouseID != nil && *filter.WarehouseID != s.WarehouseID {
			continue
		}
		if filter.ProductID != nil && *filter.ProductID != s.ProductID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type lockCall struct {
	key  string
	mode LockMode
}

type fakeLocker struct {
	mu       sync.Mutex
	calls    []lockCall
	released int
	err      error
}

func (l *fakeLocker) Acquire(_ context.Context, key string, mode LockMode) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.calls = append(l.calls, lockCall{key, mode})
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *recordingAudit) Record(_ context.Context, e audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func newScope() Scope {
	return NewScope(id.New(), id.New(), nil, nil)
}

func TestRecalculateOne_WritesAverageAndLeavesQuantity(t *testing.T) {
	repo := newFakeRepo()
	locker := &fakeLocker{}
	scope := newScope()
	lot := repo.addLot(scope, "9.99")
	repo.entries[scope.Key()] = []LedgerEntry{
		entry(1, "10", "2.00"),
		entry(2, "5", "3.00"),
		entry(3, "0", "5.00"),
	}

	svc := NewService(repo, tx.Passthrough, locker, nil, Config{})

	rec, err := svc.RecalculateOne(context.Background(), scope)
	require.NoError(t, err)

	assert.Equal(t, lot.ID, rec.LotID)
	assert.True(t, rec.PreviousAverage.Equal(types.MustMoney("9.99")))
	assert.Equal(t, "2.3333333333333333", rec.NewAverage.String())
	assert.Equal(t, 3, rec.LinesProcessed)
	assert.Equal(t, 1, rec.LinesSkipped)
	assert.True(t, rec.Changed)
	assert.True(t, lot.CurrentQuantity.Equal(types.MustQuantity("42")))
	assert.True(t, lot.WeightedAverageUnitCost.Equal(rec.NewAverage))

	assert.Equal(t, []lockCall{
		{NamespaceKey, LockShared},
		{scope.Key(), LockExclusive},
	}, locker.calls)
	assert.Equal(t, 2, locker.released)
}

func TestRecalculateOne_Idempotent(t *testing.T) {
	repo := newFakeRepo()
	scope := newScope()
	repo.addLot(scope, "0")
	repo.entries[scope.Key()] = []LedgerEntry{entry(1, "4", "2.5")}

	svc := NewService(repo, tx.Passthrough, &fakeLocker{}, nil, Config{})

	first, err := svc.RecalculateOne(context.Background(), scope)
	require.NoError(t, err)
	second, err := svc.RecalculateOne(context.Background(), scope)
	require.NoError(t, err)

	assert.True(t, first.NewAverage.Equal(second.NewAverage))
	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, 1, repo.updates)
}

func TestRecalculateOne_MissingLot(t *testing.T) {
	svc := NewService(newFakeRepo(), tx.Passthrough, &fakeLocker{}, nil, Config{})

	_, err := svc.RecalculateOne(context.Background(), newScope())

	assert.True(t, apperror.IsNotFound(err))
}

func TestRecalculateOne_InvalidScope(t *testing.T) {
	locker := &fakeLocker{}
	svc := NewService(newFakeRepo(), tx.Passthrough, locker, nil, Config{})

	_, err := svc.RecalculateOne(context.Background(), Scope{})

	assert.Error(t, err)
	assert.Empty(t, locker.calls)
}

func TestRecalculateOne_LockFailure(t *testing.T) {
	locker := &fakeLocker{err: context.DeadlineExceeded}
	svc := NewService(newFakeRepo(), tx.Passthrough, locker, nil, Config{})

	_, err := svc.RecalculateOne(context.Background(), newScope())

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeLockTimeout, appErr.Code)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRecalculateBatch_CountsOutcomes(t *testing.T) {
	repo := newFakeRepo()
	rec := &recordingAudit{}
	locker := &fakeLocker{}

	withLines := newScope()
	repo.addLot(withLines, "1")
	repo.entries[withLines.Key()] = []LedgerEntry{entry(1, "2", "5"), entry(2, "1", "-1")}

	noLines := newScope()
	repo.addLot(noLines, "3.5")

	unchanged := newScope()
	repo.addLot(unchanged, "0")

	missing := newScope()

	broken := newScope()
	repo.addLot(broken, "0")
	repo.failures[broken.Key()] = errors.New("connection reset")

	repo.scopes = []Scope{withLines, noLines, unchanged, missing, broken}

	svc := NewService(repo, tx.Passthrough, locker, rec, Config{Workers: 2})

	res, err := svc.RecalculateBatch(context.Background(), ScopeFilter{})
	require.NoError(t, err)

	assert.Equal(t, 5, res.ScopesProcessed)
	assert.Equal(t, 3, res.ScopesUpdated)
	assert.Equal(t, 2, res.ScopesChanged)
	assert.Equal(t, 1, res.ScopesMissing)
	assert.Equal(t, 1, res.ScopesFailed)
	assert.Equal(t, 1, res.LinesSkipped)
	assert.False(t, res.Partial)
	require.Len(t, res.FailedScopes, 1)
	assert.Equal(t, broken, res.FailedScopes[0].Scope)
	assert.Contains(t, res.FailedScopes[0].Error, "connection reset")

	assert.True(t, repo.lots[noLines.Key()].WeightedAverageUnitCost.IsZero())
	assert.True(t, repo.lots[withLines.Key()].WeightedAverageUnitCost.Equal(types.MustMoney("5")))

	assert.Equal(t, []lockCall{{NamespaceKey, LockExclusive}}, locker.calls)
	assert.Equal(t, 1, locker.released)

	var batchEntries int
	for _, e := range rec.entries {
		if e.Action == audit.ActionBatchRecompute {
			batchEntries++
			assert.Equal(t, []string{broken.Key()}, e.Changes["failed_scopes"])
		}
	}
	assert.Equal(t, 1, batchEntries)
}

func TestRecalculateBatch_Filter(t *testing.T) {
	repo := newFakeRepo()
	a, b := newScope(), newScope()
	repo.addLot(a, "0")
	repo.addLot(b, "0")
	repo.scopes = []Scope{a, b}

	svc := NewService(repo, tx.Passthrough, &fakeLocker{}, nil, Config{})

	res, err := svc.RecalculateBatch(context.Background(), ScopeFilter{WarehouseID: &a.WarehouseID})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ScopesProcessed)
}

func TestRecalculateBatch_CancelledMarksPartial(t *testing.T) {
	repo := newFakeRepo()
	for i := 0; i < 3; i++ {
		s := newScope()
		repo.addLot(s, "0")
		repo.scopes = append(repo.scopes, s)
	}

	svc := NewService(repo, tx.Passthrough, &fakeLocker{}, nil, Config{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.RecalculateBatch(ctx, ScopeFilter{})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Zero(t, res.ScopesProcessed)
}

func TestRecalculateBatch_TimeoutMarksPartial(t *testing.T) {
	repo := newFakeRepo()
	s := newScope()
	repo.addLot(s, "0")
	repo.scopes = []Scope{s}

	slow := tx.Func(func(ctx context.Context, fn func(ctx context.Context) error) error {
		<-ctx.Done()
		return ctx.Err()
	})

	svc := NewService(repo, slow, &fakeLocker{}, nil, Config{BatchTimeout: 20 * time.Millisecond})

	res, err := svc.RecalculateBatch(context.Background(), ScopeFilter{})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Zero(t, res.ScopesFailed)
}

type inTxKey struct{}

var markingTx = tx.Func(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(context.WithValue(ctx, inTxKey{}, true))
})

type fakeTxLocker struct {
	fakeLocker
	txCalls []lockCall
	outside int
	txErr   error
}

func (l *fakeTxLocker) LockInTx(ctx context.Context, key string, mode LockMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ctx.Value(inTxKey{}) == nil {
		l.outside++
	}
	if l.txErr != nil {
		return l.txErr
	}
	l.txCalls = append(l.txCalls, lockCall{key, mode})
	return nil
}

func TestRecalculateOne_TxLockerLocksInsideTransaction(t *testing.T) {
	repo := newFakeRepo()
	scope := newScope()
	repo.addLot(scope, "0")
	repo.entries[scope.Key()] = []LedgerEntry{entry(1, "2", "3")}

	locker := &fakeTxLocker{}
	svc := NewService(repo, markingTx, locker, nil, Config{})

	rec, err := svc.RecalculateOne(context.Background(), scope)
	require.NoError(t, err)
	assert.True(t, rec.Changed)

	assert.Equal(t, []lockCall{
		{NamespaceKey, LockShared},
		{scope.Key(), LockExclusive},
	}, locker.txCalls)
	assert.Zero(t, locker.outside)
	assert.Empty(t, locker.calls, "session locks must not be taken")
}

func TestRecalculateOne_TxLockerFailure(t *testing.T) {
	repo := newFakeRepo()
	scope := newScope()
	repo.addLot(scope, "1")
	repo.entries[scope.Key()] = []LedgerEntry{entry(1, "2", "3")}

	locker := &fakeTxLocker{txErr: errors.New("canceling statement due to lock timeout")}
	svc := NewService(repo, markingTx, locker, nil, Config{})

	_, err := svc.RecalculateOne(context.Background(), scope)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeLockTimeout, appErr.Code)
	assert.True(t, apperror.IsRetryable(err))
	assert.Zero(t, repo.updates)
}

func TestRecalculateBatch_TxLockerUsesSessionNamespaceLock(t *testing.T) {
	repo := newFakeRepo()
	s := newScope()
	repo.addLot(s, "0")
	repo.scopes = []Scope{s}

	locker := &fakeTxLocker{}
	svc := NewService(repo, markingTx, locker, nil, Config{})

	_, err := svc.RecalculateBatch(context.Background(), ScopeFilter{})
	require.NoError(t, err)

	assert.Equal(t, []lockCall{{NamespaceKey, LockExclusive}}, locker.calls)
	assert.Empty(t, locker.txCalls)
}

type blockingLocker struct{}

func (blockingLocker) Acquire(ctx context.Context, _ string, _ LockMode) (func(), error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRecalculateOne_LockWaitIsBounded(t *testing.T) {
	svc := NewService(newFakeRepo(), tx.Passthrough, blockingLocker{}, nil, Config{LockWait: 20 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		_, err := svc.RecalculateOne(context.Background(), newScope())
		done <- err
	}()

	select {
	case err := <-done:
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeLockTimeout, appErr.Code)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	case <-time.After(2 * time.Second):
		t.Fatal("lock wait did not time out")
	}
}
