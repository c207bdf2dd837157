package risk

import (
	"sync"
	"time"

	"arbitrage/internal/corelog"
	"arbitrage/internal/dec"
	"arbitrage/internal/venue"
)

// GlobalRiskController enforces the system-wide risk gates: a manual
// system-wide pause switch, a critical-balance emergency stop per
// venue, and a daily trade-count cap that resets at UTC midnight.
// Shaped after balance-driven margin gating plus a notification
// side-channel, generalized from per-pair margin checks to a single
// process-wide gate the orchestrator consults once per cycle.
type GlobalRiskController struct {
	mu sync.Mutex

	criticalBalance dec.D
	maxDailyTrades  int

	balances    map[venue.ID]dec.D
	manualPause bool

	tradeDate  string
	tradeCount int

	now    func() time.Time
	logger *corelog.Throttler
}

// NewGlobalRiskController builds a controller. maxDailyTrades <= 0
// disables the daily cap. logger may be nil.
func NewGlobalRiskController(criticalBalance dec.D, maxDailyTrades int, logger *corelog.Throttler) *GlobalRiskController {
	return &GlobalRiskController{
		criticalBalance: criticalBalance,
		maxDailyTrades:  maxDailyTrades,
		balances:        make(map[venue.ID]dec.D),
		now:             func() time.Time { return time.Now().UTC() },
		logger:          logger,
	}
}

// SetClock overrides the time source for deterministic tests.
func (g *GlobalRiskController) SetClock(now func() time.Time) { g.now = now }

// UpdateBalance records a venue's latest available balance, as
// observed by the orchestrator's periodic balance sweep.
func (g *GlobalRiskController) UpdateBalance(v venue.ID, balance dec.D) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[v] = balance
}

// SetManualPause flips the system-wide manual pause switch, typically
// driven by an operator command.
func (g *GlobalRiskController) SetManualPause(paused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.manualPause = paused
}

// IsPaused reports whether new opens must be refused system-wide:
// either the manual switch is on, or any tracked venue has fallen at
// or below the critical balance floor.
func (g *GlobalRiskController) IsPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.manualPause {
		return true
	}
	if !g.criticalBalance.IsPositive() {
		return false
	}
	for _, bal := range g.balances {
		if bal.LessThanOrEqual(g.criticalBalance) {
			return true
		}
	}
	return false
}

// BreachedVenues lists venues currently at or below the critical
// balance floor, for the emergency-close sweep and status logging.
func (g *GlobalRiskController) BreachedVenues() []venue.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.criticalBalance.IsPositive() {
		return nil
	}
	var out []venue.ID
	for v, bal := range g.balances {
		if bal.LessThanOrEqual(g.criticalBalance) {
			out = append(out, v)
		}
	}
	return out
}

// CanOpenNewTrade reports whether today's trade count is still under
// the configured daily cap (daily_trade_count).
func (g *GlobalRiskController) CanOpenNewTrade() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollDateLocked()
	if g.maxDailyTrades <= 0 {
		return true
	}
	return g.tradeCount < g.maxDailyTrades
}

// RecordTrade increments today's trade count (called once per
// successfully opened pair).
func (g *GlobalRiskController) RecordTrade() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollDateLocked()
	g.tradeCount++
}

// TradeCountToday reports the running count for the current UTC date.
func (g *GlobalRiskController) TradeCountToday() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollDateLocked()
	return g.tradeCount
}

func (g *GlobalRiskController) rollDateLocked() {
	today := g.now().Format("2006-01-02")
	if today != g.tradeDate {
		g.tradeDate = today
		g.tradeCount = 0
	}
}
