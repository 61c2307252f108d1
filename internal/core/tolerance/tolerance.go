// Package tolerance compares accumulated decimal quantities against targets
// with a small absolute margin.
//
// Quantities entered on documents come from rounded sources (spreadsheets,
// supplier XML), so a sum of order lines may land a hair below the requested
// amount while being fulfilled in practice.
package tolerance

import (
	"github.com/shopspring/decimal"
)

// DefaultEpsilon is the margin used when none is configured.
var DefaultEpsilon = decimal.RequireFromString("0.001")

// Comparator applies a fixed epsilon. The zero value uses DefaultEpsilon.
type Comparator struct {
	epsilon decimal.Decimal
	set     bool
}

// New returns a Comparator with the given epsilon. Negative values are
// taken by absolute value.
func New(epsilon decimal.Decimal) Comparator {
	return Comparator{epsilon: epsilon.Abs(), set: true}
}

// Default returns a Comparator using DefaultEpsilon.
func Default() Comparator {
	return New(DefaultEpsilon)
}

// Epsilon returns the margin in effect.
func (c Comparator) Epsilon() decimal.Decimal {
	if !c.set {
		return DefaultEpsilon
	}
	return c.epsilon
}

// AtLeast reports whether a >= b - epsilon.
func (c Comparator) AtLeast(a, b decimal.Decimal) bool {
	return a.GreaterThanOrEqual(b.Sub(c.Epsilon()))
}

// Positive reports whether a is strictly greater than zero.
// No margin is applied: any recorded quantity counts.
func (c Comparator) Positive(a decimal.Decimal) bool {
	return a.IsPositive()
}

// AtLeast compares with DefaultEpsilon.
func AtLeast(a, b decimal.Decimal) bool {
	return Default().AtLeast(a, b)
}
