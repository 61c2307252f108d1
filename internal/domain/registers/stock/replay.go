package stock

import (
	"slices"
	"time"

	"supplyledger/internal/core/id"
	"supplyledger/internal/core/types"
)

// averagePrecision is the number of fractional digits kept in the average.
const averagePrecision = 16

// LedgerEntry is an inbound invoice line that touched a scope.
type LedgerEntry struct {
	InvoiceID    id.ID          `db:"invoice_id"`
	LineID       id.ID          `db:"line_id"`
	EmissionDate time.Time      `db:"emission_date"`
	Quantity     types.Quantity `db:"quantity"`
	UnitValue    types.Money    `db:"unit_value"`
}

// ReplayResult is the outcome of Replay.
type ReplayResult struct {
	QuantitySum    types.Quantity
	CostSum        types.Money
	Average        types.Money
	LinesProcessed int
	LinesIncluded  int
	LinesSkipped   int

	// Skipped lists the entries with non-positive quantity or unit value,
	// in replay order.
	Skipped []LedgerEntry
}

// Replay walks entries in (emission date, invoice, line) order and computes
// the weighted-average unit cost. The input slice is not modified.
func Replay(entries []LedgerEntry) ReplayResult {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, compareEntries)

	res := ReplayResult{
		QuantitySum:    types.Zero(),
		CostSum:        types.Zero(),
		Average:        types.Zero(),
		LinesProcessed: len(sorted),
	}

	for _, e := range sorted {
		if !e.Quantity.IsPositive() || !e.UnitValue.IsPositive() {
			res.LinesSkipped++
			res.Skipped = append(res.Skipped, e)
			continue
		}
		res.QuantitySum = res.QuantitySum.Add(e.Quantity)
		res.CostSum = res.CostSum.Add(e.Quantity.Mul(e.UnitValue))
		res.LinesIncluded++
	}

	if res.QuantitySum.IsPositive() {
		res.Average = res.CostSum.DivRound(res.QuantitySum, averagePrecision)
	}

	return res
}

func compareEntries(a, b LedgerEntry) int {
	if c := a.EmissionDate.Compare(b.EmissionDate); c != 0 {
		return c
	}
	if c := id.Compare(a.InvoiceID, b.InvoiceID); c != 0 {
		return c
	}
	return id.Compare(a.LineID, b.LineID)
}
