package risk

import (
	"testing"
	"time"

	"arbitrage/internal/dec"
	"arbitrage/internal/position"
	"arbitrage/internal/venue"
	"arbitrage/pkg/retry"
)

func TestErrorBackoffController_EscalatesAndClears(t *testing.T) {
	c := NewErrorBackoffController(retry.Config{
		InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2, JitterFactor: 0,
	})
	cur := time.Unix(0, 0)
	c.SetClock(func() time.Time { return cur })

	if c.IsPaused("bybit") {
		t.Fatalf("fresh venue must not be paused")
	}

	first := c.RecordFailure("bybit", "transport")
	if !first.Equal(cur.Add(time.Second)) {
		t.Fatalf("expected first pause = now+1s, got %s", first)
	}
	if !c.IsPaused("bybit") {
		t.Fatalf("expected venue paused immediately after failure")
	}

	second := c.RecordFailure("bybit", "transport")
	if !second.Equal(cur.Add(2 * time.Second)) {
		t.Fatalf("expected second pause = now+2s, got %s", second)
	}

	c.RecordSuccess("bybit")
	if c.IsPaused("bybit") {
		t.Fatalf("expected pause lifted after success")
	}
	if c.Failures("bybit") != 0 {
		t.Fatalf("expected failure streak reset")
	}
}

func TestGlobalRiskController_CriticalBalanceAndDailyCap(t *testing.T) {
	g := NewGlobalRiskController(dec.FromString("50"), 2, nil)
	cur := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g.SetClock(func() time.Time { return cur })

	g.UpdateBalance("bybit", dec.FromString("1000"))
	if g.IsPaused() {
		t.Fatalf("expected not paused above critical balance")
	}

	g.UpdateBalance("okx", dec.FromString("40"))
	if !g.IsPaused() {
		t.Fatalf("expected paused once a venue falls at/below critical balance")
	}
	breached := g.BreachedVenues()
	if len(breached) != 1 || breached[0] != "okx" {
		t.Fatalf("expected okx flagged breached, got %v", breached)
	}

	g.UpdateBalance("okx", dec.FromString("1000"))
	if g.IsPaused() {
		t.Fatalf("expected unpaused once balance recovers")
	}

	if !g.CanOpenNewTrade() {
		t.Fatalf("expected fresh day to allow trades")
	}
	g.RecordTrade()
	g.RecordTrade()
	if g.CanOpenNewTrade() {
		t.Fatalf("expected daily cap reached after 2 trades")
	}

	cur = cur.Add(25 * time.Hour)
	if !g.CanOpenNewTrade() {
		t.Fatalf("expected daily cap to reset on a new UTC date")
	}
}

func TestReduceOnlyGuard_ReduceOnlyAllowsClosesNotOpens(t *testing.T) {
	g := NewReduceOnlyGuard()
	key := position.PairKey("BTC-USDC-PERP:bybit->okx:BTC-USDC-PERP->BTC-USDC-PERP")

	g.SetReduceOnly(key, true)
	if !g.IsPairOpenBlocked(key) {
		t.Fatalf("expected opens blocked in reduce-only mode")
	}
	if g.IsPairClosingBlocked(key) {
		t.Fatalf("expected closes still allowed in reduce-only mode")
	}

	g.SetReduceOnly(key, false)
	g.SetBlocked(key, true)
	if !g.IsPairOpenBlocked(key) || !g.IsPairClosingBlocked(key) {
		t.Fatalf("expected both opens and closes blocked once fully blocked")
	}
}

func TestReduceOnlyGuard_RecoveryProbeOncePerMinute(t *testing.T) {
	g := NewReduceOnlyGuard()
	cur := time.Unix(0, 0)
	g.SetClock(func() time.Time { return cur })
	key := position.PairKey("k")

	if g.ShouldProbeRecovery(key) {
		t.Fatalf("unblocked pair should never be probed")
	}

	g.SetBlocked(key, true)
	if !g.ShouldProbeRecovery(key) {
		t.Fatalf("expected first probe to fire immediately")
	}
	if g.ShouldProbeRecovery(key) {
		t.Fatalf("expected second probe in the same minute to be suppressed")
	}

	cur = cur.Add(61 * time.Second)
	if !g.ShouldProbeRecovery(key) {
		t.Fatalf("expected a new probe once a minute has elapsed")
	}
}

func TestSymbolStateManager_Transitions(t *testing.T) {
	m := NewSymbolStateManager()
	sym := venue.Symbol("BTC-USDC-PERP")

	if m.State(sym) != SymbolIdle {
		t.Fatalf("expected unobserved symbol to default to idle")
	}
	if got := m.Observe(sym, 0, false); got != SymbolIdle {
		t.Fatalf("expected idle below grid 1, got %s", got)
	}
	if got := m.Observe(sym, 1, false); got != SymbolWaiting {
		t.Fatalf("expected waiting once grid reached without a position, got %s", got)
	}
	if got := m.Observe(sym, 1, true); got != SymbolActive {
		t.Fatalf("expected active once a position is held, got %s", got)
	}
}
