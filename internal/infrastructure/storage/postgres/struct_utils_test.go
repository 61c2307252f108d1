package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"supplyledger/internal/domain/registers/stock"
)

type embedded struct {
	ID string `db:"id"`
}

type sample struct {
	embedded
	Name    string `db:"name"`
	Ignored string `db:"-"`
	NoTag   string
}

func TestExtractDBColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "name"}, ExtractDBColumns[sample]())
	assert.Equal(t, []string{"id", "name"}, ExtractDBColumns[*sample]())
	assert.Nil(t, ExtractDBColumns[int]())
}

func TestExtractDBColumns_StockLot(t *testing.T) {
	cols := ExtractDBColumns[stock.Lot]()

	assert.Contains(t, cols, "weighted_average_unit_cost")
	assert.Contains(t, cols, "current_quantity")
	assert.Contains(t, cols, "version")
}
