// Package orchestrator is the control loop that sequences everything
// else: it drives the spread pipeline off the processor's
// snapshots, walks each symbol's gates, acquires the pair/close locks,
// calls the decision engine and the executor, and runs reconciliation
// and self-heal in the background. Shaped after a spawn-workers-
// then-block-then-shutdown run loop with periodic background
// tickers, an open/close sequencer that makes a single decision call
// per pass, and a position-verification sweep generalized here into
// reconcileOnce.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"arbitrage/internal/corelog"
	"arbitrage/internal/dec"
	"arbitrage/internal/decision"
	"arbitrage/internal/executor"
	"arbitrage/internal/gridcfg"
	"arbitrage/internal/position"
	"arbitrage/internal/processor"
	"arbitrage/internal/receiver"
	"arbitrage/internal/risk"
	"arbitrage/internal/spread"
	"arbitrage/internal/venue"
)

const (
	tickInterval    = 100 * time.Millisecond
	statusInterval  = 60 * time.Second
	balanceInterval = 30 * time.Second

	selfHealMissingThreshold = 30 * time.Second
	selfHealCooldown         = 300 * time.Second

	reconcileDelay = time.Second

	// processorDrainTick is how often the orderbook/ticker loops drain
	// the receiver's queues, matching the processor's own iteration
	// budget so neither loop lags the tick loop it feeds.
	processorDrainTick = 5 * time.Millisecond

	// dualLimitBackoffWindow is how long opens stay blocked on a symbol
	// after a double-limit no-fill (neither leg filled).
	dualLimitBackoffWindow = 10 * time.Second
)

// VenueLeg names one venue's side of a symbol's cross-venue route. The
// orchestrator fills in live order books each tick; routes themselves
// are static configuration.
type VenueLeg struct {
	Venue  venue.ID
	Symbol venue.Symbol
}

// Route is one logical symbol's cross-venue arbitrage configuration
// (grid_config is keyed by symbol; Legs is the set of venues
// this symbol trades on, at least two of which must be live for a
// spread to exist).
type Route struct {
	Symbol venue.Symbol
	Legs   []VenueLeg

	Grid     *gridcfg.GridConfig
	Quantity *gridcfg.QuantityConfig

	// MarketHoursGated instruments ("instruments encoding a
	// closed-weekend, e.g. gold") only accept opens Mon 07:00 CST - Sat
	// 05:59 CST.
	MarketHoursGated bool
}

// AdapterSet is the orchestrator's view of live venue adapters, shared
// with the executor via Lookup.
type AdapterSet struct {
	mu       sync.RWMutex
	adapters map[venue.ID]venue.Adapter
	symbols  map[venue.ID][]venue.Symbol
}

func NewAdapterSet() *AdapterSet {
	return &AdapterSet{adapters: make(map[venue.ID]venue.Adapter), symbols: make(map[venue.ID][]venue.Symbol)}
}

// Register records an adapter and the native symbols it was subscribed
// for, so self-heal can re-subscribe after a reconnect.
func (s *AdapterSet) Register(v venue.ID, a venue.Adapter, symbols []venue.Symbol) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[v] = a
	s.symbols[v] = symbols
}

func (s *AdapterSet) Lookup(v venue.ID) (venue.Adapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adapters[v]
	return a, ok
}

// venues lists every registered venue id, for the balance sweep.
func (s *AdapterSet) venues() []venue.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]venue.ID, 0, len(s.adapters))
	for v := range s.adapters {
		out = append(out, v)
	}
	return out
}

// Orchestrator wires the spread pipeline, decision engine, risk
// controllers and executor into the single control loop. One
// Orchestrator instance owns every symbol; per-symbol state (locks,
// persistence, direction memory) is the decision engine's and this
// struct's own maps, both consulted only from the tick loop and its
// reconciliation goroutines.
type Orchestrator struct {
	routes   map[venue.Symbol]*Route
	adapters *AdapterSet

	recv *receiver.Receiver
	proc *processor.Processor
	dec  *decision.Engine
	exec executor.Executor
	log  *corelog.Throttler

	backoff    *risk.ErrorBackoffController
	globalRisk *risk.GlobalRiskController
	reduceOnly *risk.ReduceOnlyGuard
	symState   *risk.SymbolStateManager

	mu           sync.Mutex
	pendingOpen  map[position.PairKey]bool
	pendingClose map[venue.Symbol]bool

	manualWaitGrid map[venue.Symbol]int

	dualLimitBackoff map[venue.Symbol]time.Time

	stability map[stabilityKey]*stabilityWindow

	selfHeal map[venue.ID]*selfHealState

	reporter Reporter

	now func() time.Time
}

type selfHealState struct {
	lastReconnect time.Time
}

// Reporter receives trade and connection lifecycle events for
// persistence and the dashboard activity feed. A nil Reporter is valid:
// the engine runs standalone without a dashboard attached.
type Reporter interface {
	RecordTrade(symbol string, buyVenue, sellVenue string, pnl float64, wasStopLoss, wasLiquidation bool)
	RecordBalance(v string, balance float64, connected bool, lastErr string)
	Notify(notifType, severity, message string)
}

// SetReporter attaches the dashboard reporting bridge. Call before Run.
func (o *Orchestrator) SetReporter(r Reporter) {
	o.reporter = r
}

// New builds an Orchestrator. Every dependency is constructed and
// wired by the caller (cmd/server) - the orchestrator only sequences
// calls across them, per its "sequencing, gating, locks"
// framing; it does not own adapter connection setup.
func New(
	recv *receiver.Receiver,
	proc *processor.Processor,
	engine *decision.Engine,
	exec executor.Executor,
	adapters *AdapterSet,
	backoff *risk.ErrorBackoffController,
	globalRisk *risk.GlobalRiskController,
	reduceOnly *risk.ReduceOnlyGuard,
	symState *risk.SymbolStateManager,
	log *corelog.Throttler,
) *Orchestrator {
	return &Orchestrator{
		routes:           make(map[venue.Symbol]*Route),
		adapters:         adapters,
		recv:             recv,
		proc:             proc,
		dec:              engine,
		exec:             exec,
		log:              log,
		backoff:          backoff,
		globalRisk:       globalRisk,
		reduceOnly:       reduceOnly,
		symState:         symState,
		pendingOpen:      make(map[position.PairKey]bool),
		pendingClose:     make(map[venue.Symbol]bool),
		manualWaitGrid:   make(map[venue.Symbol]int),
		dualLimitBackoff: make(map[venue.Symbol]time.Time),
		stability:        make(map[stabilityKey]*stabilityWindow),
		selfHeal:         make(map[venue.ID]*selfHealState),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source for deterministic tests.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// AddRoute registers a symbol's cross-venue configuration and installs
// its grid/quantity config into the decision engine.
func (o *Orchestrator) AddRoute(r *Route) {
	o.routes[r.Symbol] = r
	o.dec.Configure(r.Symbol, &decision.SymbolConfig{Grid: r.Grid, Quantity: r.Quantity})
}

// Run drives the 100ms tick loop and the 60s status summary until ctx
// is cancelled: spawn background loops, block on ctx.Done, return.
func (o *Orchestrator) Run(ctx context.Context) error {
	stop := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()
	go o.proc.RunOrderBookLoop(stop, processorDrainTick)
	go o.proc.RunTickerLoop(stop, processorDrainTick)

	tick := time.NewTicker(tickInterval)
	defer tick.Stop()
	status := time.NewTicker(statusInterval)
	defer status.Stop()
	balance := time.NewTicker(balanceInterval)
	defer balance.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			o.tickOnce(ctx)
		case <-status.C:
			o.logStatusSummary()
		case <-balance.C:
			o.balanceSweep(ctx)
		}
	}
}

// balanceSweep polls every registered adapter's balance, feeding the
// global risk controller's critical-balance gate and the exchange
// connection/balance gauges.
func (o *Orchestrator) balanceSweep(ctx context.Context) {
	venues := o.adapters.venues()
	for _, v := range venues {
		a, ok := o.adapters.Lookup(v)
		if !ok {
			continue
		}
		sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		bal, err := a.GetBalance(sweepCtx)
		cancel()
		if err != nil {
			updateExchangeStatus(string(v), false, 0)
			if o.reporter != nil {
				o.reporter.RecordBalance(string(v), 0, false, err.Error())
			}
			continue
		}
		if o.globalRisk != nil {
			o.globalRisk.UpdateBalance(v, bal)
		}
		updateExchangeStatus(string(v), true, bal.InexactFloat64())
		if o.reporter != nil {
			o.reporter.RecordBalance(string(v), bal.InexactFloat64(), true, "")
		}
	}
}

// tickOnce runs one full pass over every configured symbol: build
// spreads from the processor's latest snapshots, run the open gate,
// and - for symbols already carrying a position - the close gate.
func (o *Orchestrator) tickOnce(ctx context.Context) {
	for symbol, route := range o.routes {
		legs := o.liveLegs(route)
		o.selfHealCheck(route, legs)
		if len(legs) < 2 {
			continue
		}

		directions := spread.CalculateSpreadsMultiExchangeDirections(symbol, legs)
		best := spread.BestOpeningSpread(directions)

		pos := o.dec.Position(symbol)
		hasPosition := pos != nil && pos.IsOpen()

		grid := 0
		if best != nil {
			grid = decision.CurrentGrid(route.Grid, best.SpreadPct)
			recordSpread(string(symbol), best.SpreadPct.InexactFloat64())
		}
		o.symState.Observe(symbol, grid, hasPosition)
		updateActiveArbitrages(o.openPositionCount())

		if hasPosition {
			pr := pos.NonZeroPair()
			opening := &spread.Data{
				Symbol: symbol, ExchangeBuy: pr.BuyVenue, ExchangeSell: pr.SellVenue,
				BuySymbol: pr.BuySymbol, SellSymbol: pr.SellSymbol,
			}
			closing := spread.BuildClosingSpreadFromOrderbooks(opening, legs)
			if closing != nil {
				o.checkAndClose(ctx, route, closing, decision.Funding{})
			}
		}

		if best != nil && dec.IsPositive(best.SpreadPct) {
			o.checkAndOpen(ctx, route, best, decision.Funding{})
		}
	}
}

// openPositionCount reports how many routes currently carry an open
// position, feeding the active_arbitrages gauge.
func (o *Orchestrator) openPositionCount() int {
	count := 0
	for symbol := range o.routes {
		if pos := o.dec.Position(symbol); pos != nil && pos.IsOpen() {
			count++
		}
	}
	return count
}

// liveLegs resolves each route leg's current order book from the
// processor, dropping legs with no fresh book.
func (o *Orchestrator) liveLegs(route *Route) []spread.Leg {
	var out []spread.Leg
	for _, l := range route.Legs {
		ob := o.proc.GetOrderBook(l.Venue, l.Symbol, processor.DefaultFreshness)
		if ob == nil {
			continue
		}
		out = append(out, spread.Leg{Venue: l.Venue, Symbol: l.Symbol, Book: ob})
	}
	return out
}
