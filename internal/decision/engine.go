// Package decision is the unified decision engine: grid
// math, persistence gating, direction memory, shortfall carry and the
// scalping state machine that together decide should_open/should_close
// and record the resulting fills. A segmented, total-quantity-driven
// grid engine, shaped in Go as a set of per-symbol maps (not guarded
// by a lock) mutated by a handful of exported verbs, the way a state
// machine drives per-pair runtime transitions.
package decision

import (
	"fmt"
	"time"

	"arbitrage/internal/dec"
	"arbitrage/internal/gridcfg"
	"arbitrage/internal/position"
	"arbitrage/internal/spread"
	"arbitrage/internal/venue"
)

// Funding carries the per-leg funding rates a tick observes. The close
// branch receives it but does not consume it: it is stored on the
// segment for analytics only.
type Funding struct {
	Buy  dec.D
	Sell dec.D
}

// Engine is the per-process unified decision engine. One Engine
// instance is shared across all symbols; callers (the orchestrator)
// are responsible for serializing should_open/should_close/record_*
// calls. The Engine holds no lock of its own: its internal maps are
// shared by all symbols, so calls for different symbols are not safe
// to run concurrently either.
type Engine struct {
	backoff BackoffChecker

	positions map[venue.Symbol]*position.Position
	configs   map[venue.Symbol]*SymbolConfig

	directionMemory map[position.PairKey]int8 // +1 or -1

	persistOpen  map[venue.Symbol]*persistenceState
	persistClose map[venue.Symbol]*persistenceState

	shortfall map[venue.Symbol]dec.D

	scalpingActive      map[venue.Symbol]bool
	reverseOpenDetected map[venue.Symbol]bool

	now func() time.Time
}

// New builds an Engine. backoff may be nil in tests that don't exercise
// the venue-pause gate.
func New(backoff BackoffChecker) *Engine {
	return &Engine{
		backoff:             backoff,
		positions:           make(map[venue.Symbol]*position.Position),
		configs:             make(map[venue.Symbol]*SymbolConfig),
		directionMemory:     make(map[position.PairKey]int8),
		persistOpen:         make(map[venue.Symbol]*persistenceState),
		persistClose:        make(map[venue.Symbol]*persistenceState),
		shortfall:           make(map[venue.Symbol]dec.D),
		scalpingActive:      make(map[venue.Symbol]bool),
		reverseOpenDetected: make(map[venue.Symbol]bool),
		now:                 func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source for deterministic tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Configure installs or replaces a symbol's grid/quantity configuration.
func (e *Engine) Configure(symbol venue.Symbol, cfg *SymbolConfig) {
	e.configs[symbol] = cfg
}

func (e *Engine) positionFor(symbol venue.Symbol) *position.Position {
	p, ok := e.positions[symbol]
	if !ok {
		p = position.NewPosition(symbol)
		e.positions[symbol] = p
	}
	return p
}

// Position exposes the symbol's current position for read-only callers
// (the orchestrator's reconciliation pass, UI summaries).
func (e *Engine) Position(symbol venue.Symbol) *position.Position {
	return e.positions[symbol]
}

// PendingShortfall reports the carried shortfall for a symbol.
func (e *Engine) PendingShortfall(symbol venue.Symbol) dec.D {
	return e.shortfall[symbol]
}

// ReverseOpenDetected reports and consumes the latch set by ShouldOpen
// when a contradictory opening direction was observed - true exactly
// once until consumed.
func (e *Engine) ReverseOpenDetected(symbol venue.Symbol) bool {
	if e.reverseOpenDetected[symbol] {
		delete(e.reverseOpenDetected, symbol)
		return true
	}
	return false
}

// ScalpingActive reports whether the scalping branch is currently
// governing closes for symbol.
func (e *Engine) ScalpingActive(symbol venue.Symbol) bool {
	return e.scalpingActive[symbol]
}

func pairKeyOf(d *spread.Data) position.PairKey {
	return position.BuildPairKey(d.Symbol, d.ExchangeBuy, d.ExchangeSell, d.BuySymbol, d.SellSymbol)
}

func reversePairKeyOf(d *spread.Data) position.PairKey {
	return position.ReversePairKey(d.Symbol, d.ExchangeBuy, d.ExchangeSell, d.BuySymbol, d.SellSymbol)
}

// OpenDecision is ShouldOpen's result, carrying the pair_key the caller
// needs for RecordOpen without re-deriving it from the spread.
type OpenDecision struct {
	ShouldOpen bool
	Quantity   dec.D
	PairKey    position.PairKey
	Grid       int
}

// ShouldOpen implements should_open. It refuses to open while either
// leg's venue is paused by the error-backoff controller (step 1).
func (e *Engine) ShouldOpen(symbol venue.Symbol, sp *spread.Data, funding Funding) OpenDecision {
	cfg := e.configs[symbol]
	if cfg == nil {
		return OpenDecision{}
	}

	if e.backoff != nil && (e.backoff.IsPaused(sp.ExchangeBuy) || e.backoff.IsPaused(sp.ExchangeSell)) {
		return OpenDecision{}
	}

	grid := CurrentGrid(cfg.Grid, sp.SpreadPct)
	if grid == 0 {
		e.resetPersistOpen(symbol)
		return OpenDecision{}
	}

	threshold := cfg.Grid.OpenThreshold(grid)
	if sp.SpreadPct.LessThan(threshold) {
		e.resetPersistOpen(symbol)
		return OpenDecision{}
	}

	now := e.now()
	if !e.persistenceCheck(e.openState(symbol), sp.SpreadPct, threshold, cfg.Grid, cmpGE, now) {
		return OpenDecision{}
	}

	e.scalpingTick(symbol, cfg, grid)

	pos := e.positionFor(symbol)
	key := pairKeyOf(sp)

	if violated := e.checkDirectionAndUniqueness(pos, key, sp); violated {
		return OpenDecision{}
	}

	referencePrice := dec.Zero
	if pr, ok := pos.Pairs[key]; ok {
		if len(pr.Segments) > 0 {
			referencePrice = pr.Segments[len(pr.Segments)-1].OpenPriceBuy
		}
	}
	target := TargetPosition(cfg.Grid, cfg.Quantity, grid, referencePrice)

	actual := pos.TotalQty
	carry := e.shortfall[symbol]

	delta := target.Sub(actual.Add(carry))
	if !delta.IsPositive() || dec.IsZero(delta) {
		return OpenDecision{}
	}

	orderQty, newShortfall := OrderQuantity(delta, carry, cfg.Quantity, cfg.Grid)
	e.shortfall[symbol] = newShortfall
	if !orderQty.IsPositive() {
		return OpenDecision{}
	}

	return OpenDecision{ShouldOpen: true, Quantity: orderQty, PairKey: key, Grid: grid}
}

// checkDirectionAndUniqueness applies the direction-memory and
// pair-uniqueness rules. It returns true if the open
// attempt must be refused (and sets the reverse-open latch when
// applicable).
func (e *Engine) checkDirectionAndUniqueness(pos *position.Position, key position.PairKey, sp *spread.Data) bool {
	if !pos.IsOpen() {
		return false
	}

	if mem, ok := e.directionMemory[key]; ok {
		sign := sign(sp.SpreadPct)
		if sign != 0 && sign != mem {
			e.reverseOpenDetected[sp.Symbol] = true
			return true
		}
		return false
	}

	// No memory for this exact key: check the reverse pair_key
	// (same two venues, opposite direction) for an open position -
	// the pair-uniqueness rule.
	reverse := reversePairKeyOf(sp)
	if pr, ok := pos.Pairs[reverse]; ok && pr.IsOpen() {
		e.reverseOpenDetected[sp.Symbol] = true
		return true
	}
	return false
}

func sign(d dec.D) int8 {
	switch {
	case d.IsPositive():
		return 1
	case d.IsNegative():
		return -1
	default:
		return 0
	}
}

// scalpingTick runs the Inactive->Active scalping state machine
// transition.
func (e *Engine) scalpingTick(symbol venue.Symbol, cfg *SymbolConfig, grid int) {
	if !cfg.Grid.ScalpingEnabled || e.scalpingActive[symbol] {
		return
	}
	if grid >= cfg.Grid.ScalpingTriggerSegment {
		e.scalpingActive[symbol] = true
	}
}

// CloseDecisionFull is should_close's full result, including the
// pair_key resolved so RecordClose doesn't need to re-derive it.
type CloseDecisionFull struct {
	ShouldClose bool
	Quantity    dec.D
	Reason      string
	PairKey     position.PairKey
	Grid        int
}

// ShouldClose implements should_close.
func (e *Engine) ShouldClose(symbol venue.Symbol, sp *spread.Data, funding Funding) CloseDecisionFull {
	cfg := e.configs[symbol]
	if cfg == nil {
		return CloseDecisionFull{}
	}

	if e.backoff != nil && (e.backoff.IsPaused(sp.ExchangeBuy) || e.backoff.IsPaused(sp.ExchangeSell)) {
		return CloseDecisionFull{}
	}

	pos := e.positions[symbol]
	if pos == nil || !dec.IsPositive(pos.TotalQty) {
		return CloseDecisionFull{}
	}

	pr := pos.NonZeroPair()
	if pr == nil {
		return CloseDecisionFull{}
	}

	direction := e.directionMemory[pr.Key]
	if direction == 0 {
		direction = 1
	}

	relativeSign := dec.One
	if direction < 0 {
		relativeSign = dec.New(-1, 0)
	}
	relativeSpread := sp.SpreadPct.Neg().Mul(relativeSign)

	now := e.now()

	if e.scalpingActive[symbol] {
		profitPct := pr.AvgOpenSpreadPct.Sub(sp.SpreadPct)
		if profitPct.GreaterThanOrEqual(cfg.Grid.ScalpingProfitThreshold) {
			grid := CurrentGrid(cfg.Grid, sp.SpreadPct)
			reason := fmt.Sprintf("剥头皮止盈T%d", grid)
			qty := pr.TotalQty
			return CloseDecisionFull{ShouldClose: true, Quantity: qty, Reason: reason, PairKey: pr.Key, Grid: grid}
		}
	}

	desiredSegments := gridFromRelativeSpread(cfg.Grid, relativeSpread)
	if desiredSegments > cfg.Grid.MaxSegments {
		desiredSegments = cfg.Grid.MaxSegments
	}

	targetQty := TargetPosition(cfg.Grid, cfg.Quantity, desiredSegments, referencePriceFor(pr))
	closeDelta := pr.TotalQty.Sub(targetQty)
	if !closeDelta.IsPositive() || dec.IsZero(closeDelta) {
		e.resetPersistClose(symbol)
		return CloseDecisionFull{}
	}

	// The close-threshold ladder index is keyed by the grid level the
	// pair's *actual* filled quantity currently occupies, not the raw
	// segment count (a single fill can jump more than one grid level,
	// as in Scenario B). ActualGridLevel resolves that level by
	// walking target_position's inverse.
	actualLevel := ActualGridLevel(cfg.Grid, cfg.Quantity, pr.TotalQty, referencePriceFor(pr))
	if actualLevel < 1 {
		actualLevel = 1
	}
	closeThreshold := cfg.Grid.CloseThreshold(actualLevel)
	if !e.persistenceCheck(e.closeState(symbol), relativeSpread, closeThreshold, cfg.Grid, cmpLE, now) {
		return CloseDecisionFull{}
	}

	orderQty, _ := OrderQuantity(closeDelta, dec.Zero, cfg.Quantity, cfg.Grid)
	if !orderQty.IsPositive() {
		return CloseDecisionFull{}
	}

	reason := fmt.Sprintf("网格平仓T%d(%s->%s)", actualLevel, pr.BuyVenue, pr.SellVenue)
	return CloseDecisionFull{ShouldClose: true, Quantity: orderQty, Reason: reason, PairKey: pr.Key, Grid: actualLevel}
}

func referencePriceFor(pr *position.Pair) dec.D {
	if len(pr.Segments) == 0 {
		return dec.Zero
	}
	return pr.Segments[len(pr.Segments)-1].OpenPriceBuy
}

// gridFromRelativeSpread mirrors CurrentGrid's ladder walk against the
// relative (closing-favorable) spread, used to size the close target.
func gridFromRelativeSpread(cfg *gridcfg.GridConfig, relativeSpread dec.D) int {
	return CurrentGrid(cfg, relativeSpread)
}

// RecordOpenParams mirrors position.RecordOpenParams but at the engine
// level, where direction memory and shortfall bookkeeping also need
// updating (record_open).
type RecordOpenParams struct {
	Symbol     venue.Symbol
	Key        position.PairKey
	BuyVenue   venue.ID
	SellVenue  venue.ID
	BuySymbol  venue.Symbol
	SellSymbol venue.Symbol

	Quantity       dec.D
	FilledQuantity dec.D
	SpreadPct      dec.D
	Funding        Funding
	BuyOrderID     string
	SellOrderID    string
	PriceBuy       dec.D
	PriceSell      dec.D
}

// RecordOpen implements record_open: appends a segment,
// updates totals/averages, and installs direction memory if this is
// the pair's first fill (or its first fill after fully closing).
func (e *Engine) RecordOpen(p RecordOpenParams) *position.Segment {
	pos := e.positionFor(p.Symbol)

	wasPairEmpty := true
	if pr, ok := pos.Pairs[p.Key]; ok {
		wasPairEmpty = !pr.IsOpen()
	}

	seg := pos.RecordOpen(position.RecordOpenParams{
		Key: p.Key, BuyVenue: p.BuyVenue, SellVenue: p.SellVenue,
		BuySymbol: p.BuySymbol, SellSymbol: p.SellSymbol,
		Quantity: p.Quantity, FilledQuantity: p.FilledQuantity,
		SpreadPct: p.SpreadPct, FundingBuy: p.Funding.Buy, FundingSell: p.Funding.Sell,
		BuyOrderID: p.BuyOrderID, SellOrderID: p.SellOrderID,
		PriceBuy: p.PriceBuy, PriceSell: p.PriceSell,
		Now: e.now(),
	})

	if wasPairEmpty {
		e.directionMemory[p.Key] = sign(p.SpreadPct)
		if e.directionMemory[p.Key] == 0 {
			e.directionMemory[p.Key] = 1
		}
	}

	return seg
}

// RecordClose implements record_close: FIFO-consumes segments
// under key (or the symbol's single open pair if key is empty), then
// clears direction memory/scalping/persistence/shortfall once the
// symbol's total collapses to zero.
func (e *Engine) RecordClose(symbol venue.Symbol, key position.PairKey, quantity, spreadPct, priceBuy, priceSell dec.D) []*position.Segment {
	pos := e.positions[symbol]
	if pos == nil {
		return nil
	}

	var pairKey position.PairKey
	if key != "" {
		pairKey = key
	} else if pr := pos.NonZeroPair(); pr != nil {
		pairKey = pr.Key
	}

	touched := pos.RecordClose(key, quantity, spreadPct, priceBuy, priceSell, e.now())

	if pairKey != "" {
		if _, stillOpen := pos.Pairs[pairKey]; !stillOpen {
			delete(e.directionMemory, pairKey)
		}
	}

	if !dec.IsPositive(pos.TotalQty) {
		delete(e.shortfall, symbol)
		delete(e.scalpingActive, symbol)
		e.resetPersistOpen(symbol)
		e.resetPersistClose(symbol)
		for k, pr := range pos.Pairs {
			if !pr.IsOpen() {
				delete(e.directionMemory, k)
			}
		}
	}

	return touched
}

// ReportOpenShortfall implements report_open_shortfall.
func (e *Engine) ReportOpenShortfall(symbol venue.Symbol, requested, actual dec.D) {
	diff := requested.Sub(actual)
	if diff.IsPositive() {
		e.shortfall[symbol] = diff
	} else {
		delete(e.shortfall, symbol)
	}
}

func (e *Engine) openState(symbol venue.Symbol) *persistenceState {
	s, ok := e.persistOpen[symbol]
	if !ok {
		s = &persistenceState{}
		e.persistOpen[symbol] = s
	}
	return s
}

func (e *Engine) closeState(symbol venue.Symbol) *persistenceState {
	s, ok := e.persistClose[symbol]
	if !ok {
		s = &persistenceState{}
		e.persistClose[symbol] = s
	}
	return s
}

func (e *Engine) resetPersistOpen(symbol venue.Symbol)  { e.openState(symbol).reset() }
func (e *Engine) resetPersistClose(symbol venue.Symbol) { e.closeState(symbol).reset() }

func (e *Engine) persistenceCheck(state *persistenceState, value, threshold dec.D, cfg *gridcfg.GridConfig, cmp comparison, now time.Time) bool {
	return check(state, value, threshold, cfg, cmp, now)
}
