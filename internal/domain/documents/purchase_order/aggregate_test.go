package purchase_order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyledger/internal/core/id"
	"supplyledger/internal/core/tolerance"
	"supplyledger/internal/core/types"
)

func q(s string) types.Quantity { return types.MustQuantity(s) }

func orderWith(status Status, items ...Item) *PurchaseOrder {
	return &PurchaseOrder{ID: id.New(), Status: status, Version: 1, Items: items}
}

func item(code string, ordered string) Item {
	return Item{ID: id.New(), ProductID: id.New(), ProductCode: code, QuantityOrdered: q(ordered)}
}

func receipt(code string, qty string) Receipt {
	return Receipt{InvoiceID: id.New(), LineID: id.New(), ProductCode: code, Quantity: q(qty)}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ABC-1", "abc-1"},
		{"  abc-1 ", "abc-1"},
		{"CAFÉ", "cafe"},
		{"Ação", "acao"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCode(tt.in), tt.in)
	}
}

func TestDerive_OneFullOneHalf_IsPartial(t *testing.T) {
	order := orderWith(StatusSent, item("P-1", "10"), item("P-2", "20"))
	receipts := []Receipt{receipt("p-1", "10"), receipt("P-2", "10")}

	got := Derive(order, receipts, PolicyFreeze, tolerance.Default())

	assert.Equal(t, StatusPartial, got.Status)
	require.Len(t, got.Items, 2)
	assert.True(t, got.Items[0].Fulfilled)
	assert.False(t, got.Items[1].Fulfilled)
	assert.True(t, got.Items[1].Received.Equal(q("10")))
}

func TestDerive_AllReceivedWithinEpsilon_IsFinalized(t *testing.T) {
	order := orderWith(StatusPartial, item("P-1", "10"), item("P-2", "5"))
	receipts := []Receipt{
		receipt("P-1", "4"),
		receipt("P-1", "5.9995"),
		receipt("P-2", "5"),
	}

	got := Derive(order, receipts, PolicyFreeze, tolerance.Default())

	assert.Equal(t, StatusFinalized, got.Status)
}

func TestDerive_NothingReceived_LeavesStatus(t *testing.T) {
	order := orderWith(StatusConfirmed, item("P-1", "10"))

	got := Derive(order, nil, PolicyFreeze, tolerance.Default())

	assert.Equal(t, StatusConfirmed, got.Status)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Received.IsZero())
}

func TestDerive_GenericProductFallback(t *testing.T) {
	it := item("P-1", "3")
	line := receipt("SUPPLIER-XYZ", "3")
	line.GenericProductID = &it.ProductID
	order := orderWith(StatusApproved, it)

	got := Derive(order, []Receipt{line}, PolicyFreeze, tolerance.Default())

	assert.Equal(t, StatusFinalized, got.Status)
}

func TestDerive_AccentInsensitiveMatch(t *testing.T) {
	order := orderWith(StatusApproved, item("FEIJÃO-1KG", "2"))

	got := Derive(order, []Receipt{receipt("feijao-1kg", "2")}, PolicyFreeze, tolerance.Default())

	assert.Equal(t, StatusFinalized, got.Status)
}

func TestDerive_UnmatchedLinesIgnored(t *testing.T) {
	order := orderWith(StatusApproved, item("P-1", "2"))

	got := Derive(order, []Receipt{receipt("P-9", "2")}, PolicyFreeze, tolerance.Default())

	assert.Equal(t, StatusApproved, got.Status)
}

func TestDerive_Freeze_IneligibleStatusesUntouched(t *testing.T) {
	for _, status := range []Status{StatusDraft, StatusFinalized, StatusCancelled} {
		order := orderWith(status, item("P-1", "10"))

		got := Derive(order, []Receipt{receipt("P-1", "4")}, PolicyFreeze, tolerance.Default())

		assert.Equal(t, status, got.Status)
		assert.Nil(t, got.Items)
	}
}

func TestDerive_Freeze_PartialNotDowngraded(t *testing.T) {
	order := orderWith(StatusPartial, item("P-1", "10"))

	got := Derive(order, nil, PolicyFreeze, tolerance.Default())

	assert.Equal(t, StatusPartial, got.Status)
}

func TestDerive_Live(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		receipts []Receipt
		want     Status
	}{
		{"finalized reopened to partial", StatusFinalized, []Receipt{receipt("P-1", "4")}, StatusPartial},
		{"finalized with nothing back to approved", StatusFinalized, nil, StatusApproved},
		{"partial with nothing back to approved", StatusPartial, nil, StatusApproved},
		{"sent with nothing stays sent", StatusSent, nil, StatusSent},
		{"finalized stays finalized", StatusFinalized, []Receipt{receipt("P-1", "10")}, StatusFinalized},
		{"cancelled untouched", StatusCancelled, []Receipt{receipt("P-1", "10")}, StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := orderWith(tt.status, item("P-1", "10"))

			got := Derive(order, tt.receipts, PolicyLive, tolerance.Default())

			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestDerive_NoItems_LeavesStatus(t *testing.T) {
	order := orderWith(StatusApproved)

	got := Derive(order, []Receipt{receipt("P-1", "1")}, PolicyFreeze, tolerance.Default())

	assert.Equal(t, StatusApproved, got.Status)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyFreeze, p)

	p, err = ParsePolicy("live")
	require.NoError(t, err)
	assert.Equal(t, PolicyLive, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}
