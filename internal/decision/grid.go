package decision

import (
	"arbitrage/internal/dec"
	"arbitrage/internal/gridcfg"
)

// CurrentGrid computes the uncapped grid index for a spread_pct
// ("current_grid"): 0 below T1, otherwise floor((spread_pct-T1)/Δ)+1.
// Callers clamp to MaxSegments when converting a grid index into a
// target quantity - current_grid itself stays uncapped so callers can
// tell "deep in the grid" apart from "exactly at N".
func CurrentGrid(cfg *gridcfg.GridConfig, spreadPct dec.D) int {
	t1 := cfg.InitialSpreadThreshold
	if spreadPct.LessThan(t1) {
		return 0
	}
	if dec.IsZero(cfg.GridStep) {
		return 1
	}
	steps := spreadPct.Sub(t1).Div(cfg.GridStep).Floor()
	return int(steps.IntPart()) + 1
}

// TargetPosition computes target_position(symbol, grid):
// effective_grid = min(grid, N), then either effective_grid*base_quantity
// (fixed mode) or effective_grid*(target_value_usdc/reference_price)
// (value mode). referencePrice is the latest open_price_buy of the
// position, or zero if none - in value mode with no reference price yet
// the target is zero.
func TargetPosition(grid *gridcfg.GridConfig, qty *gridcfg.QuantityConfig, effectiveGridRaw int, referencePrice dec.D) dec.D {
	effectiveGrid := effectiveGridRaw
	if effectiveGrid > grid.MaxSegments {
		effectiveGrid = grid.MaxSegments
	}
	if effectiveGrid < 0 {
		effectiveGrid = 0
	}
	n := dec.New(int64(effectiveGrid), 0)

	switch qty.Mode {
	case gridcfg.QuantityValue:
		if !referencePrice.IsPositive() {
			return dec.Zero
		}
		perSegment := qty.TargetValueUSDC.Div(referencePrice)
		return n.Mul(perSegment)
	default: // fixed
		return n.Mul(qty.BaseQuantity)
	}
}

// OrderQuantity sizes and quantizes an order from a delta and a carried
// shortfall. It returns the sized, quantized order quantity and the
// shortfall to carry into the next cycle (zero when the computed
// quantity clears the minimum).
func OrderQuantity(delta, carry dec.D, qty *gridcfg.QuantityConfig, grid *gridcfg.GridConfig) (orderQty, shortfall dec.D) {
	absDelta := delta.Abs()
	needed := absDelta.Add(carry)
	if !needed.IsPositive() {
		return dec.Zero, dec.Zero
	}

	var baseSplit dec.D
	switch {
	case grid.SplitOrderSize.IsPositive() && grid.SplitOrderSize.GreaterThanOrEqual(qty.BaseQuantity):
		baseSplit = needed
	case grid.SplitOrderSize.IsPositive():
		baseSplit = dec.Min(grid.SplitOrderSize, needed)
	default:
		// split_order_size not configured: fall back to
		// segment_partial_order_ratio / min_partial_order_quantity.
		candidate := needed.Mul(grid.SegmentPartialOrderRatio)
		if candidate.LessThan(grid.MinPartialOrderQuantity) {
			candidate = grid.MinPartialOrderQuantity
		}
		baseSplit = dec.Min(candidate, needed)
	}

	result := dec.Quantize(baseSplit, qty.QuantityPrecision)
	if result.LessThan(qty.MinOrderSize) {
		return dec.Zero, needed
	}
	return result, dec.Zero
}

// ActualGridLevel resolves the grid level a pair's filled quantity
// currently occupies by walking target_position's ladder from N down
// to 1 and returning the first level whose target is at or below the
// actual quantity (within Epsilon). A single fill can cross more than
// one rung at once (Scenario B: 0.003 total lands on level 3
// even though only two segments were ever recorded), so this is keyed on
// quantity, not on the number of recorded segments. Returns 0 if actual
// is at or below zero.
func ActualGridLevel(grid *gridcfg.GridConfig, qty *gridcfg.QuantityConfig, actual, referencePrice dec.D) int {
	if !actual.IsPositive() {
		return 0
	}
	for i := grid.MaxSegments; i >= 1; i-- {
		target := TargetPosition(grid, qty, i, referencePrice)
		if dec.LessEq(target, actual) {
			return i
		}
	}
	return 1
}

// IsLastSplit reports whether an order is the final split of a grid
// action: is_last_split = (remaining after this order) <
// min_partial_order_quantity, driven off the exact planned remainder
// rather than a fixed multiple of min_partial_order_quantity.
func IsLastSplit(target, actualAfterThisOrder dec.D, grid *gridcfg.GridConfig) bool {
	remaining := target.Sub(actualAfterThisOrder)
	return remaining.LessThan(grid.MinPartialOrderQuantity)
}
