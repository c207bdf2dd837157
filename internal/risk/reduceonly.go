package risk

import (
	"sync"
	"time"

	"arbitrage/internal/position"
)

// ReduceOnlyGuard is the manual-override circuit breaker: an operator
// can force a pair into reduce-only mode (no new opens, closes still
// allowed) or fully blocked (neither opens nor closes), independent of
// the decision engine's own gating. A blocked pair is re-probed for
// recovery at most once per wall-clock minute rather than every tick,
// so a stuck venue doesn't spin the orchestrator's hot loop.
type ReduceOnlyGuard struct {
	mu sync.Mutex

	reduceOnly map[position.PairKey]bool
	blocked    map[position.PairKey]bool
	probedAt   map[position.PairKey]int64 // unix minute of last probe

	globalReduceOnly bool

	now func() time.Time
}

// NewReduceOnlyGuard builds an empty guard (nothing blocked).
func NewReduceOnlyGuard() *ReduceOnlyGuard {
	return &ReduceOnlyGuard{
		reduceOnly: make(map[position.PairKey]bool),
		blocked:    make(map[position.PairKey]bool),
		probedAt:   make(map[position.PairKey]int64),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source for deterministic tests.
func (g *ReduceOnlyGuard) SetClock(now func() time.Time) { g.now = now }

// SetReduceOnly toggles reduce-only mode for a pair.
func (g *ReduceOnlyGuard) SetReduceOnly(key position.PairKey, on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if on {
		g.reduceOnly[key] = true
	} else {
		delete(g.reduceOnly, key)
	}
}

// SetBlocked toggles fully-blocked mode for a pair.
func (g *ReduceOnlyGuard) SetBlocked(key position.PairKey, on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if on {
		g.blocked[key] = true
	} else {
		delete(g.blocked, key)
		delete(g.probedAt, key)
	}
}

// IsPairOpenBlocked reports whether new opens on key must be refused
// (is_pair_blocked): either reduce-only or fully blocked.
func (g *ReduceOnlyGuard) IsPairOpenBlocked(key position.PairKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reduceOnly[key] || g.blocked[key]
}

// SetGlobalReduceOnly toggles the system-wide reduce-only switch, the
// counterpart of SetReduceOnly for an operator halting all new opens
// (e.g. ahead of planned maintenance) without touching any pair's own
// override.
func (g *ReduceOnlyGuard) SetGlobalReduceOnly(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.globalReduceOnly = on
}

// IsGlobalReduceOnly reports the system-wide reduce-only switch.
func (g *ReduceOnlyGuard) IsGlobalReduceOnly() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.globalReduceOnly
}

// IsPairClosingBlocked reports whether closes on key must be refused
// (is_pair_closing_blocked): only the fully-blocked state
// prevents closes - reduce-only exists precisely so closes can still
// run down an existing position.
func (g *ReduceOnlyGuard) IsPairClosingBlocked(key position.PairKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocked[key]
}

// ShouldProbeRecovery reports whether the orchestrator should attempt
// a recovery check for a blocked pair this cycle, rate-limited to once
// per wall-clock minute. Returns false for pairs that aren't blocked.
func (g *ReduceOnlyGuard) ShouldProbeRecovery(key position.PairKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.blocked[key] {
		return false
	}
	minute := g.now().Unix() / 60
	if last, ok := g.probedAt[key]; ok && last == minute {
		return false
	}
	g.probedAt[key] = minute
	return true
}
