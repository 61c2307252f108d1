package purchase_order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyledger/internal/core/apperror"
	"supplyledger/internal/core/id"
	"supplyledger/internal/core/tx"
	"supplyledger/internal/domain/audit"
)

type fakeRepo struct {
	orders   map[id.ID]*PurchaseOrder
	receipts map[id.ID][]Receipt
	updates  int
	conflict bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:   make(map[id.ID]*PurchaseOrder),
		receipts: make(map[id.ID][]Receipt),
	}
}

func (r *fakeRepo) GetForUpdate(_ context.Context, orderID id.ID) (*PurchaseOrder, error) {
	o, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("purchase_order", orderID)
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	return &cp, nil
}

func (r *fakeRepo) GetReceipts(_ context.Context, orderID id.ID) ([]Receipt, error) {
	return r.receipts[orderID], nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, orderID id.ID, expectedVersion int, status Status) error {
	o := r.orders[orderID]
	if r.conflict || o.Version != expectedVersion {
		return apperror.NewConcurrentModification("purchase_order", orderID)
	}
	o.Status = status
	o.Version++
	r.updates++
	return nil
}

type recordingAudit struct {
	entries []audit.Entry
}

func (a *recordingAudit) Record(_ context.Context, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

func TestService_Recompute_PersistsChangeOnce(t *testing.T) {
	repo := newFakeRepo()
	rec := &recordingAudit{}
	order := orderWith(StatusSent, item("P-1", "10"), item("P-2", "20"))
	repo.orders[order.ID] = order
	repo.receipts[order.ID] = []Receipt{receipt("P-1", "10"), receipt("P-2", "10")}

	svc := NewService(repo, tx.Passthrough, rec, Config{})

	first, err := svc.Recompute(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, StatusSent, first.PreviousStatus)
	assert.Equal(t, StatusPartial, first.Status)

	second, err := svc.Recompute(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, StatusPartial, second.Status)

	assert.Equal(t, 1, repo.updates)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.ActionStatusChange, rec.entries[0].Action)
}

func TestService_Recompute_SkipsIneligible(t *testing.T) {
	repo := newFakeRepo()
	order := orderWith(StatusFinalized, item("P-1", "10"))
	repo.orders[order.ID] = order

	svc := NewService(repo, tx.Passthrough, nil, Config{})

	res, err := svc.Recompute(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, StatusFinalized, res.Status)
	assert.Zero(t, repo.updates)
}

func TestService_Recompute_NotFound(t *testing.T) {
	svc := NewService(newFakeRepo(), tx.Passthrough, nil, Config{})

	_, err := svc.Recompute(context.Background(), id.New())

	assert.True(t, apperror.IsNotFound(err))
}

func TestService_Recompute_ZeroInvoicesIsNoError(t *testing.T) {
	repo := newFakeRepo()
	order := orderWith(StatusApproved, item("P-1", "10"))
	repo.orders[order.ID] = order

	svc := NewService(repo, tx.Passthrough, nil, Config{})

	res, err := svc.Recompute(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, StatusApproved, res.Status)
}

func TestService_Recompute_ConflictIsRetryable(t *testing.T) {
	repo := newFakeRepo()
	repo.conflict = true
	order := orderWith(StatusSent, item("P-1", "10"))
	repo.orders[order.ID] = order
	repo.receipts[order.ID] = []Receipt{receipt("P-1", "10")}

	svc := NewService(repo, tx.Passthrough, nil, Config{})

	_, err := svc.Recompute(context.Background(), order.ID)
	appErr, ok := apperror.AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, apperror.CodeConcurrentModification, appErr.Code)
	assert.True(t, apperror.IsRetryable(err))
}
