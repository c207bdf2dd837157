// Package decision is the unified decision engine: grid
// math, persistence gating, direction memory, shortfall carry and the
// scalping state machine that together decide should_open/should_close
// and record the resulting fills. A segmented, total-quantity-driven
// grid engine, shaped in Go as a set of per-symbol maps (not guarded
// by a lock) mutated by a handful of exported verbs, the way a state
// machine drives per-pair runtime transitions.
package decision

import (
	"arbitrage/internal/gridcfg"
	"arbitrage/internal/venue"
)

// SymbolConfig pairs the grid ladder config with the sizing config the
// original engine reads from two separate config sub-objects
// (config.grid_config / config.quantity_config).
type SymbolConfig struct {
	Grid     *gridcfg.GridConfig
	Quantity *gridcfg.QuantityConfig
}

// BackoffChecker reports whether a venue is currently paused by the
// error-backoff controller (ErrorBackoffController). Decision
// depends on this only through the interface, so internal/risk can
// depend on internal/decision without a cycle.
type BackoffChecker interface {
	IsPaused(v venue.ID) bool
}
