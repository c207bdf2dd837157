// Package dec fixes the numeric representation used across every
// accounting path in the engine: prices, sizes, spreads and fees are
// all decimal.Decimal, never float64. The grid/segment math here
// cannot tolerate binary rounding error, so every quantity that
// crosses a position, order or spread boundary goes through this
// package.
package dec

import (
	"github.com/shopspring/decimal"
)

// D is the fixed-point type used everywhere in accounting paths.
type D = decimal.Decimal

// Epsilon is the single "near zero" threshold used for all accounting
// comparisons. Grid-threshold comparisons do not use it — those are
// raw Decimal comparisons.
var Epsilon = decimal.New(1, -8) // 1e-8

// Zero, One, Hundred are convenience constants.
var (
	Zero    = decimal.Zero
	One     = decimal.New(1, 0)
	Hundred = decimal.New(100, 0)
)

// New builds a Decimal from an int64 mantissa and base-10 exponent,
// mirroring decimal.New so callers don't need the shopspring import.
func New(value int64, exp int32) D {
	return decimal.New(value, exp)
}

// FromFloat is an explicit, narrow escape hatch for values that
// genuinely originate as float64 (e.g. a JSON payload decoded by
// encoding/json before a schema migration). Accounting code should
// prefer FromString on the raw wire token.
func FromFloat(f float64) D {
	return decimal.NewFromFloat(f)
}

// FromString parses a decimal literal, returning zero on failure. Wire
// decoders should check the error with decimal.NewFromString directly
// when they need to surface a parse failure.
func FromString(s string) D {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero
	}
	return d
}

// Parse is FromString with the error surfaced, for callers (config
// loaders) that must fall back to a default rather than silently
// accept zero on a malformed literal.
func Parse(s string) (D, error) {
	return decimal.NewFromString(s)
}

// IsZero reports whether d is within Epsilon of zero.
func IsZero(d D) bool {
	return d.Abs().LessThanOrEqual(Epsilon)
}

// IsPositive reports whether d exceeds Epsilon.
func IsPositive(d D) bool {
	return d.GreaterThan(Epsilon)
}

// LessEq/GreaterEq with epsilon tolerance, for segment accounting
// (ActualGridLevel uses LessEq) where "≤"/"≥" must tolerate rounding
// noise rather than reject a value that is equal up to 1e-8.
func LessEq(a, b D) bool {
	return a.Sub(b).LessThanOrEqual(Epsilon)
}

func GreaterEq(a, b D) bool {
	return b.Sub(a).LessThanOrEqual(Epsilon)
}

// Quantize rounds d down to precision fractional digits ("round-down"
// quantization, used by order_quantity per the design).
func Quantize(d D, precision int32) D {
	return d.Truncate(precision)
}

// Max/Min helpers, used throughout the grid math.
func Max(a, b D) D {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func Min(a, b D) D {
	if a.LessThan(b) {
		return a
	}
	return b
}
