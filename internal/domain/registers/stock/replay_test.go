package stock

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyledger/internal/core/id"
	"supplyledger/internal/core/types"
)

func entry(day int, qty, price string) LedgerEntry {
	return LedgerEntry{
		InvoiceID:    id.New(),
		LineID:       id.New(),
		EmissionDate: time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC),
		Quantity:     types.MustQuantity(qty),
		UnitValue:    types.MustMoney(price),
	}
}

func TestReplay_SkipsNonPositiveLines(t *testing.T) {
	entries := []LedgerEntry{
		entry(1, "10", "2.00"),
		entry(2, "5", "3.00"),
		entry(3, "0", "5.00"),
	}

	res := Replay(entries)

	assert.Equal(t, 3, res.LinesProcessed)
	assert.Equal(t, 2, res.LinesIncluded)
	assert.Equal(t, 1, res.LinesSkipped)
	assert.True(t, res.QuantitySum.Equal(types.MustQuantity("15")))
	assert.True(t, res.CostSum.Equal(types.MustMoney("35")))
	assert.Equal(t, "2.3333333333333333", res.Average.String())
}

func TestReplay_NoLines_AverageZero(t *testing.T) {
	res := Replay(nil)

	assert.True(t, res.Average.IsZero())
	assert.Zero(t, res.LinesProcessed)
}

func TestReplay_OnlyInvalidLines_AverageZero(t *testing.T) {
	res := Replay([]LedgerEntry{entry(1, "-3", "2"), entry(2, "4", "0")})

	assert.True(t, res.Average.IsZero())
	assert.Equal(t, 2, res.LinesSkipped)
	require.Len(t, res.Skipped, 2)
}

func TestReplay_DeterministicUnderPermutation(t *testing.T) {
	entries := []LedgerEntry{
		entry(1, "10", "2.10"),
		entry(1, "3.5", "7.77"),
		entry(2, "1", "0"),
		entry(4, "8.25", "1.03"),
		entry(4, "100", "0.015"),
		entry(9, "2", "19.99"),
	}
	want := Replay(entries)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]LedgerEntry(nil), entries...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := Replay(shuffled)

		assert.True(t, want.Average.Equal(got.Average))
		assert.Equal(t, want.Skipped, got.Skipped)
	}
}

func TestReplay_DoesNotReorderInput(t *testing.T) {
	entries := []LedgerEntry{entry(5, "1", "1"), entry(1, "1", "1")}
	first := entries[0]

	Replay(entries)

	assert.Equal(t, first, entries[0])
}

func TestReplay_AverageTimesQuantityMatchesCost(t *testing.T) {
	entries := []LedgerEntry{
		entry(1, "3", "1.1111"),
		entry(2, "7", "2.7183"),
		entry(3, "11", "3.1416"),
	}

	res := Replay(entries)

	diff := res.Average.Mul(res.QuantitySum).Sub(res.CostSum).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.000001")), diff.String())
}

func TestReplay_TieBreakByInvoiceThenLine(t *testing.T) {
	day := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	invA := id.MustParse("00000000-0000-7000-8000-00000000000a")
	invB := id.MustParse("00000000-0000-7000-8000-00000000000b")
	lineLow := id.MustParse("00000000-0000-7000-8000-000000000001")
	lineHigh := id.MustParse("00000000-0000-7000-8000-000000000002")

	entries := []LedgerEntry{
		{InvoiceID: invB, LineID: lineLow, EmissionDate: day, Quantity: types.MustQuantity("0"), UnitValue: types.MustMoney("1")},
		{InvoiceID: invA, LineID: lineHigh, EmissionDate: day, Quantity: types.MustQuantity("0"), UnitValue: types.MustMoney("1")},
		{InvoiceID: invA, LineID: lineLow, EmissionDate: day, Quantity: types.MustQuantity("0"), UnitValue: types.MustMoney("1")},
	}

	res := Replay(entries)

	require.Len(t, res.Skipped, 3)
	assert.Equal(t, invA, res.Skipped[0].InvoiceID)
	assert.Equal(t, lineLow, res.Skipped[0].LineID)
	assert.Equal(t, lineHigh, res.Skipped[1].LineID)
	assert.Equal(t, invB, res.Skipped[2].InvoiceID)
}
