// Package gridcfg is the per-symbol configuration surface the decision
// engine, executor and risk controllers read from. Builds on a flat
// entry/exit spread config shape
// (db+json struct tags), generalized from "one entry/exit spread" to
// the full segmented grid ladder plus quantity/risk/system-mode
// sub-configs.
package gridcfg

import (
	"fmt"

	"arbitrage/internal/dec"
)

// QuantityMode selects how target_position scales with grid level.
type QuantityMode string

const (
	QuantityFixed QuantityMode = "fixed"
	QuantityValue QuantityMode = "value"
)

// GridConfig is the per-symbol grid ladder and gating configuration.
type GridConfig struct {
	Symbol string `json:"symbol" db:"symbol"`

	InitialSpreadThreshold dec.D `json:"initial_spread_threshold" db:"initial_spread_threshold"` // T1, in %
	GridStep               dec.D `json:"grid_step" db:"grid_step"`                               // Δ, in %
	MaxSegments            int   `json:"max_segments" db:"max_segments"`                          // N

	BaseQuantity             dec.D `json:"base_quantity" db:"base_quantity"`
	SplitOrderSize           dec.D `json:"split_order_size" db:"split_order_size"`
	SegmentPartialOrderRatio dec.D `json:"segment_partial_order_ratio" db:"segment_partial_order_ratio"`
	MinPartialOrderQuantity  dec.D `json:"min_partial_order_quantity" db:"min_partial_order_quantity"`

	// T0CloseRatio defines close_threshold[1] = T1 * T0CloseRatio.
	// LoadGridConfig falls back to 0.4 when the ratio is not set in the
	// environment; nothing requires it to be set explicitly, and
	// RiskConfig.MaxLossPercent plays no part in that fallback.
	T0CloseRatio dec.D `json:"t0_close_ratio" db:"t0_close_ratio"`

	ProfitPerSegment dec.D `json:"profit_per_segment" db:"profit_per_segment"`
	UseSymmetricClose bool `json:"use_symmetric_close" db:"use_symmetric_close"`

	ScalpingEnabled          bool  `json:"scalping_enabled" db:"scalping_enabled"`
	ScalpingTriggerSegment   int   `json:"scalping_trigger_segment" db:"scalping_trigger_segment"`
	ScalpingProfitThreshold  dec.D `json:"scalping_profit_threshold" db:"scalping_profit_threshold"`

	SpreadPersistenceSeconds int  `json:"spread_persistence_seconds" db:"spread_persistence_seconds"`
	StrictPersistenceCheck   bool `json:"strict_persistence_check" db:"strict_persistence_check"`

	RequireOrderbookLiquidity bool  `json:"require_orderbook_liquidity" db:"require_orderbook_liquidity"`
	MinOrderbookQuantity      dec.D `json:"min_orderbook_quantity" db:"min_orderbook_quantity"`
	SlippageTolerance         dec.D `json:"slippage_tolerance" db:"slippage_tolerance"`

	PriceStabilityWindowSeconds int   `json:"price_stability_window_seconds" db:"price_stability_window_seconds"`
	PriceStabilityThresholdPct  dec.D `json:"price_stability_threshold_pct" db:"price_stability_threshold_pct"`

	LimitPriceOffset         dec.D `json:"limit_price_offset" db:"limit_price_offset"`
	MaxLocalOrderbookSpreadPct dec.D `json:"max_local_orderbook_spread_pct" db:"max_local_orderbook_spread_pct"`
}

// OpenThreshold returns T(i) = T1 + (i-1)*Δ for i = 1..MaxSegments
// (derived). i is 1-indexed; callers pass current_grid.
func (g *GridConfig) OpenThreshold(i int) dec.D {
	if i < 1 {
		i = 1
	}
	step := dec.New(int64(i-1), 0).Mul(g.GridStep)
	return g.InitialSpreadThreshold.Add(step)
}

// CloseThreshold returns close_threshold[i]: T(i-1) for i >= 2, and
// T1 * T0CloseRatio for i == 1.
func (g *GridConfig) CloseThreshold(i int) dec.D {
	if i <= 1 {
		return g.InitialSpreadThreshold.Mul(g.T0CloseRatio)
	}
	return g.OpenThreshold(i - 1)
}

// Validate checks the structural invariants the derived thresholds
// depend on (: thresholds must be strictly monotonic).
func (g *GridConfig) Validate() error {
	if g.MaxSegments < 1 {
		return fmt.Errorf("gridcfg: max_segments must be >= 1 for %s", g.Symbol)
	}
	if !g.GridStep.IsPositive() {
		return fmt.Errorf("gridcfg: grid_step must be positive for %s", g.Symbol)
	}
	if !g.InitialSpreadThreshold.IsPositive() {
		return fmt.Errorf("gridcfg: initial_spread_threshold must be positive for %s", g.Symbol)
	}
	if g.T0CloseRatio.Sign() <= 0 || g.T0CloseRatio.GreaterThanOrEqual(dec.One) {
		return fmt.Errorf("gridcfg: t0_close_ratio must be in (0, 1) for %s", g.Symbol)
	}
	return nil
}

// QuantityConfig is the per-symbol sizing configuration.
type QuantityConfig struct {
	BaseQuantity        dec.D
	Mode                QuantityMode
	TargetValueUSDC     dec.D
	QuantityPrecision   int32
	MinOrderSize        dec.D
	MinExchangeOrderQty map[string]dec.D
}

// RiskConfig is the per-symbol risk configuration.
type RiskConfig struct {
	MaxPositionValue         dec.D
	MaxLossPercent           dec.D
	EnableFundingRateRisk    bool
	MaxUnfavorableFundingHrs int
	FundingRateDiffThreshold dec.D
}

// SystemMode is the global execution mode surface.
type SystemMode struct {
	MonitorOnly          bool
	DataFreshnessSeconds int
}
