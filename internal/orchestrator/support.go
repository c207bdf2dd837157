package orchestrator

import (
	"context"
	"fmt"
	"time"

	"arbitrage/internal/dec"
	"arbitrage/internal/spread"
	"arbitrage/internal/venue"
)

// stabilityWindow tracks a symbol's recent closing-direction spread_pct
// samples so checkAndClose can debounce a close against a single noisy
// tick ("price-stability debouncing"). Shaped after an
// order-book-analyzer(levels, freshness) window, generalized from a
// fixed 5-level/5s window to a configurable time window of raw spread
// samples.
type stabilityWindow struct {
	samples []sample
}

// stabilityKey separates a symbol's open-direction and close-direction
// price-stability windows.
type stabilityKey struct {
	symbol venue.Symbol
	action string
}

type sample struct {
	at    time.Time
	value dec.D
}

// priceStable reports whether data's spread has stayed within
// price_stability_threshold_pct of its own recent range over
// price_stability_window_seconds (GridConfig). A window of 0
// disables the check. action ("open" or "close") keys a separate
// window per direction - open and close spreads run in opposite
// directions and mixing their samples into one window would read as
// spurious instability.
func (o *Orchestrator) priceStable(route *Route, data *spread.Data, action string) bool {
	window := route.Grid.PriceStabilityWindowSeconds
	if window <= 0 {
		return true
	}
	k := stabilityKey{symbol: route.Symbol, action: action}
	w, ok := o.stability[k]
	if !ok {
		w = &stabilityWindow{}
		o.stability[k] = w
	}

	now := o.now()
	w.samples = append(w.samples, sample{at: now, value: data.SpreadPct})
	cutoff := now.Add(-time.Duration(window) * time.Second)
	kept := w.samples[:0]
	for _, s := range w.samples {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	w.samples = kept
	if len(w.samples) < 2 {
		return true
	}

	lo, hi := w.samples[0].value, w.samples[0].value
	for _, s := range w.samples[1:] {
		lo = dec.Min(lo, s.value)
		hi = dec.Max(hi, s.value)
	}
	return hi.Sub(lo).Abs().LessThanOrEqual(route.Grid.PriceStabilityThresholdPct)
}

// selfHealCheck runs step 4: if one leg's book has gone
// missing for selfHealMissingThreshold while another leg is fresh, and
// selfHealCooldown has elapsed since the last attempt, reconnect just
// the stalled venue and re-subscribe its streams. Gates reconnect
// attempts the same way a WS reconnect manager would: backoff since
// the last attempt rather than retrying every tick.
func (o *Orchestrator) selfHealCheck(route *Route, liveLegs []spread.Leg) {
	if len(liveLegs) >= len(route.Legs) {
		return
	}
	live := make(map[venue.ID]bool, len(liveLegs))
	for _, l := range liveLegs {
		live[l.Venue] = true
	}

	now := o.now()
	anyFresh := len(liveLegs) > 0
	if !anyFresh {
		return
	}

	for _, l := range route.Legs {
		if live[l.Venue] {
			continue
		}
		ts, ok := o.proc.GetLastOrderBookReceivedTimestamp(l.Venue, l.Symbol)
		if ok && now.Sub(ts) < selfHealMissingThreshold {
			continue
		}

		state, ok := o.selfHeal[l.Venue]
		if !ok {
			state = &selfHealState{}
			o.selfHeal[l.Venue] = state
		}
		if !state.lastReconnect.IsZero() && now.Sub(state.lastReconnect) < selfHealCooldown {
			continue
		}
		state.lastReconnect = now
		o.reconnectVenue(l.Venue)
	}
}

func (o *Orchestrator) reconnectVenue(v venue.ID) {
	a, ok := o.adapters.Lookup(v)
	if !ok {
		return
	}
	o.log.Warnf("self-heal: reconnecting stalled venue=%s", v)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Disconnect(ctx); err != nil {
		o.log.Warnf("self-heal: disconnect venue=%s err=%v", v, err)
	}
	if err := a.Connect(ctx, "", "", ""); err != nil {
		o.log.Errorf("self-heal: reconnect failed venue=%s err=%v", v, err)
		if o.backoff != nil {
			o.backoff.RecordFailure(v, "transport")
			recordBackoffPause(string(v), "transport")
		}
		if o.reporter != nil {
			o.reporter.Notify("ERROR", "warning", fmt.Sprintf("self-heal reconnect failed venue=%s: %v", v, err))
		}
		return
	}
	if o.backoff != nil {
		o.backoff.RecordSuccess(v)
	}
	a.ResetMarketCallbacks()

	o.adapters.mu.RLock()
	symbols := o.adapters.symbols[v]
	o.adapters.mu.RUnlock()
	if err := o.recv.RegisterAdapter(v, a, symbols); err != nil {
		o.log.Errorf("self-heal: re-subscribe failed venue=%s err=%v", v, err)
		return
	}
	o.recv.NoteReconnect(v)
}

// scheduleReconciliation runs its immediate-plus-1s-delayed
// reconciliation audit after every completed open/close.
func (o *Orchestrator) scheduleReconciliation() {
	go o.reconcileOnce()
	time.AfterFunc(reconcileDelay, o.reconcileOnce)
}

// reconcileOnce maps every non-zero decision-engine position to
// (venue, symbol, signed_size) and compares it against each venue
// adapter's own GetPositions view, logging any mismatch beyond
// dec.Epsilon ("position reconciliation"). It never
// auto-corrects - a mismatch is a manual-intervention surface, the
// same report-don't-repair contract a position-verification sweep
// provides.
func (o *Orchestrator) reconcileOnce() {
	for symbol, route := range o.routes {
		pos := o.dec.Position(symbol)
		if pos == nil || !pos.IsOpen() {
			continue
		}
		for _, pr := range pos.Pairs {
			if !pr.IsOpen() {
				continue
			}
			o.reconcileLeg(route, pr.BuyVenue, pr.BuySymbol, pr.TotalQty)
			o.reconcileLeg(route, pr.SellVenue, pr.SellSymbol, pr.TotalQty)
		}
	}
}

func (o *Orchestrator) reconcileLeg(route *Route, v venue.ID, symbol venue.Symbol, expected dec.D) {
	a, ok := o.adapters.Lookup(v)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	positions, err := a.GetPositions(ctx)
	if err != nil {
		return
	}
	var actual dec.D
	for _, p := range positions {
		if p.Symbol == symbol {
			actual = p.Size
		}
	}
	if expected.Sub(actual).Abs().GreaterThan(dec.Epsilon) {
		o.log.Warnf("⚠️ 不一致 venue=%s symbol=%s expected=%s actual=%s", v, symbol, expected, actual)
	}
}

// logStatusSummary emits the throttled per-60s summary line: positions,
// best spreads, reduce-only-blocked pairs and stream-age deltas.
func (o *Orchestrator) logStatusSummary() {
	open := 0
	for symbol := range o.routes {
		if pos := o.dec.Position(symbol); pos != nil && pos.IsOpen() {
			open++
		}
	}
	o.log.Infof("status: symbols=%d open_positions=%d daily_trades=%d", len(o.routes), open, o.dailyTrades())
}

func (o *Orchestrator) dailyTrades() int {
	if o.globalRisk == nil {
		return 0
	}
	return o.globalRisk.TradeCountToday()
}
