package orchestrator

import (
	"context"
	"fmt"
	"time"

	"arbitrage/internal/dec"
	"arbitrage/internal/decision"
	"arbitrage/internal/executor"
	"arbitrage/internal/position"
	"arbitrage/internal/processor"
	"arbitrage/internal/spread"
	"arbitrage/internal/venue"
)

// closedSegmentsPnl sums the buy-leg and sell-leg price delta across
// every segment a close consumed: the short leg profits as its price
// falls from open to close, the long leg profits as its price rises.
func closedSegmentsPnl(segments []*position.Segment) float64 {
	var total dec.D
	for _, seg := range segments {
		sellLeg := seg.OpenPriceSell.Sub(seg.ClosePriceSell)
		buyLeg := seg.ClosePriceBuy.Sub(seg.OpenPriceBuy)
		total = total.Add(sellLeg.Add(buyLeg).Mul(seg.OpenQty))
	}
	return total.InexactFloat64()
}

// Rejection codes: stable identifiers for log_signal_reject
// and for tests asserting which gate fired. OPEN_BLOCK_GLOBAL_RISK and
// OPEN_BLOCK_DAILY_CAP are this module's own additions, covering the
// gates GlobalRiskController adds on top of the standard open/close
// gate sequence.
const (
	OpenBlockReduceOnly       = "OPEN_BLOCK_REDUCE_ONLY"
	OpenBlockGlobalRisk       = "OPEN_BLOCK_GLOBAL_RISK"
	OpenBlockDailyCap         = "OPEN_BLOCK_DAILY_CAP"
	OpenBlockDualLimitBackoff = "OPEN_BLOCK_DUAL_LIMIT_BACKOFF"
	OpenBlockMarketClosed     = "OPEN_BLOCK_MARKET_CLOSED"
	OpenBlockDecisionFalse    = "OPEN_BLOCK_DECISION_FALSE"
	OpenBlockPriceUnstable    = "OPEN_BLOCK_PRICE_UNSTABLE"
	OpenBlockLocalSpread      = "OPEN_BLOCK_LOCAL_SPREAD"
	OpenBlockManualState      = "OPEN_BLOCK_MANUAL_STATE"
	OpenBlockLiquidity        = "OPEN_BLOCK_LIQUIDITY"
	OpenBlockLockHeld         = "OPEN_BLOCK_LOCK_HELD"

	CloseBlockReduceOnlyClosing = "CLOSE_BLOCK_REDUCE_ONLY_CLOSING"
	CloseBlockReduceOnlyGlobal  = "CLOSE_BLOCK_REDUCE_ONLY_GLOBAL"
	CloseBlockDecisionFalse     = "CLOSE_BLOCK_DECISION_FALSE"
	CloseBlockPriceUnstable     = "CLOSE_BLOCK_PRICE_UNSTABLE"
	CloseBlockLocalSpread       = "CLOSE_BLOCK_LOCAL_SPREAD"
	CloseBlockNoPosition        = "CLOSE_BLOCK_NO_POSITION"
	CloseBlockDirectionMismatch = "CLOSE_BLOCK_DIRECTION_MISMATCH"
	CloseBlockLiquidity         = "CLOSE_BLOCK_LIQUIDITY"
	CloseBlockLockHeld          = "CLOSE_BLOCK_LOCK_HELD"
)

func (o *Orchestrator) reject(action string, symbol venue.Symbol, code string) {
	o.log.Throttled(action, string(symbol)+"|"+code, 30*time.Second, func() {
		o.log.Warnf("reject action=%s symbol=%s code=%s", action, symbol, code)
	})
}

// logEmergencyCloses surfaces every reverse-close the executor had to
// perform on a naked surviving leg, so a partial fill never goes
// unnoticed in the logs.
func (o *Orchestrator) logEmergencyCloses(symbol venue.Symbol, closes []executor.EmergencyClose) {
	for _, c := range closes {
		o.log.Warnf("🧯 紧急平仓反馈 symbol=%s venue=%s qty=%s status=%s context=%s", symbol, c.Venue, c.Quantity, c.Status, c.Context)
		if o.reporter != nil {
			o.reporter.Notify("EMERGENCY_CLOSE", "warning", fmt.Sprintf("emergency close %s venue=%s qty=%s status=%s", symbol, c.Venue, c.Quantity, c.Status))
		}
	}
}

// localSpreadOK applies the per-leg local-orderbook-spread gate:
// |ask-bid|/ask*100 <= max_local_orderbook_spread_pct.
func localSpreadOK(legs []spread.Leg, maxPct dec.D) bool {
	if !maxPct.IsPositive() {
		return true
	}
	for _, l := range legs {
		if l.Book == nil {
			continue
		}
		ask := l.Book.BestAsk()
		bid := l.Book.BestBid()
		if !ask.Price.IsPositive() {
			continue
		}
		localPct := ask.Price.Sub(bid.Price).Abs().Div(ask.Price).Mul(dec.Hundred)
		if localPct.GreaterThan(maxPct) {
			return false
		}
	}
	return true
}

// marketOpen implements the Mon 07:00 CST - Sat 05:59 CST trading
// window for market-hours-gated instruments. CST here is
// China Standard Time, UTC+8, matching the original system's gold
// schedule.
func marketOpen(now time.Time) bool {
	cst := now.In(time.FixedZone("CST", 8*3600))
	wd := cst.Weekday()
	switch wd {
	case time.Sunday:
		return false
	case time.Monday:
		return cst.Hour() >= 7
	case time.Saturday:
		return cst.Hour() < 6
	default:
		return true
	}
}

// checkAndOpen implements check_and_open.
func (o *Orchestrator) checkAndOpen(ctx context.Context, route *Route, best *spread.Data, funding decision.Funding) {
	symbol := route.Symbol

	if o.globalRisk != nil && o.globalRisk.IsPaused() {
		o.reject("open", symbol, OpenBlockGlobalRisk)
		return
	}
	if o.globalRisk != nil && !o.globalRisk.CanOpenNewTrade() {
		o.reject("open", symbol, OpenBlockDailyCap)
		return
	}

	pairKey := position.BuildPairKey(best.Symbol, best.ExchangeBuy, best.ExchangeSell, best.BuySymbol, best.SellSymbol)

	if o.reduceOnly != nil && (o.reduceOnly.IsGlobalReduceOnly() || o.reduceOnly.IsPairOpenBlocked(pairKey)) {
		o.reject("open", symbol, OpenBlockReduceOnly)
		return
	}

	if until, blocked := o.dualLimitBackoff[symbol]; blocked && o.now().Before(until) {
		o.reject("open", symbol, OpenBlockDualLimitBackoff)
		return
	}

	if route.MarketHoursGated && !marketOpen(o.now()) {
		o.reject("open", symbol, OpenBlockMarketClosed)
		return
	}

	if !o.priceStable(route, best, "open") {
		o.reject("open", symbol, OpenBlockPriceUnstable)
		return
	}

	openLegs := []spread.Leg{
		{Venue: best.ExchangeBuy, Symbol: best.BuySymbol, Book: o.proc.GetOrderBook(best.ExchangeBuy, best.BuySymbol, processor.DefaultFreshness)},
		{Venue: best.ExchangeSell, Symbol: best.SellSymbol, Book: o.proc.GetOrderBook(best.ExchangeSell, best.SellSymbol, processor.DefaultFreshness)},
	}
	if !localSpreadOK(openLegs, route.Grid.MaxLocalOrderbookSpreadPct) {
		o.reject("open", symbol, OpenBlockLocalSpread)
		return
	}

	grid := decision.CurrentGrid(route.Grid, best.SpreadPct)
	if g, waiting := o.manualWaitGrid[symbol]; waiting && g == grid {
		o.reject("open", symbol, OpenBlockManualState)
		return
	}

	if route.Grid.RequireOrderbookLiquidity {
		minSize := dec.Min(best.SizeBuy, best.SizeSell)
		if minSize.LessThan(route.Grid.MinOrderbookQuantity) {
			o.reject("open", symbol, OpenBlockLiquidity)
			return
		}
	}

	if !o.tryLockOpen(pairKey) {
		o.reject("open", symbol, OpenBlockLockHeld)
		return
	}
	defer o.unlockOpen(pairKey)

	decisionResult := o.dec.ShouldOpen(symbol, best, funding)
	if !decisionResult.ShouldOpen {
		if o.dec.ReverseOpenDetected(symbol) {
			if pos := o.dec.Position(symbol); pos != nil {
				if pr := pos.NonZeroPair(); pr != nil {
					opening := &spread.Data{Symbol: symbol, ExchangeBuy: pr.BuyVenue, ExchangeSell: pr.SellVenue, BuySymbol: pr.BuySymbol, SellSymbol: pr.SellSymbol}
					closingLegs := o.liveLegs(route)
					if closing := spread.BuildClosingSpreadFromOrderbooks(opening, closingLegs); closing != nil {
						o.checkAndClose(ctx, route, closing, funding)
					}
				}
			}
			return
		}
		recordOpportunity(string(symbol), false)
		o.reject("open", symbol, OpenBlockDecisionFalse)
		return
	}

	recordOpportunity(string(symbol), true)

	req := executor.ExecutionRequest{
		Buy:      executor.Leg{Venue: best.ExchangeBuy, Symbol: best.BuySymbol, Side: venue.SideBuy},
		Sell:     executor.Leg{Venue: best.ExchangeSell, Symbol: best.SellSymbol, Side: venue.SideSell},
		Quantity: decisionResult.Quantity,
	}
	openStart := o.now()
	result := o.exec.ExecuteArbitrage(ctx, req)
	recordTickToOrder(string(symbol), "open", float64(o.now().Sub(openStart).Milliseconds()))
	o.logEmergencyCloses(symbol, result.EmergencyCloses)
	if !result.Success {
		o.manualWaitGrid[symbol] = grid
		recordTrade(string(symbol), "failed", 0)
		if result.Buy.Err != nil && result.Sell.Err != nil {
			o.dualLimitBackoff[symbol] = o.now().Add(dualLimitBackoffWindow)
		}
		o.reject("open", symbol, "OPEN_EXECUTION_FAILED")
		return
	}
	delete(o.manualWaitGrid, symbol)
	delete(o.dualLimitBackoff, symbol)
	recordTrade(string(symbol), "success", 0)

	filled := result.SuccessQuantity
	if !filled.IsPositive() {
		filled = decisionResult.Quantity
	}

	o.dec.RecordOpen(decision.RecordOpenParams{
		Symbol: symbol, Key: decisionResult.PairKey,
		BuyVenue: best.ExchangeBuy, SellVenue: best.ExchangeSell,
		BuySymbol: best.BuySymbol, SellSymbol: best.SellSymbol,
		Quantity: decisionResult.Quantity, FilledQuantity: filled,
		SpreadPct: best.SpreadPct, Funding: funding,
		PriceBuy: best.PriceBuy, PriceSell: best.PriceSell,
	})
	o.dec.ReportOpenShortfall(symbol, decisionResult.Quantity, filled)
	if o.globalRisk != nil {
		o.globalRisk.RecordTrade()
	}
	if o.backoff != nil {
		o.backoff.RecordSuccess(best.ExchangeBuy)
		o.backoff.RecordSuccess(best.ExchangeSell)
	}
	if o.reporter != nil {
		o.reporter.Notify("OPEN", "info", fmt.Sprintf("opened %s %s/%s qty=%s", symbol, best.ExchangeBuy, best.ExchangeSell, filled))
	}

	o.scheduleReconciliation()
}

// checkAndClose implements check_and_close.
func (o *Orchestrator) checkAndClose(ctx context.Context, route *Route, closing *spread.Data, funding decision.Funding) {
	symbol := route.Symbol

	if o.reduceOnly != nil && o.reduceOnly.IsGlobalReduceOnly() {
		pos := o.dec.Position(symbol)
		if pos == nil || !pos.IsOpen() {
			o.reject("close", symbol, CloseBlockReduceOnlyGlobal)
			return
		}
	}

	pos := o.dec.Position(symbol)
	if pos == nil || !pos.IsOpen() {
		o.reject("close", symbol, CloseBlockNoPosition)
		return
	}
	pr := pos.NonZeroPair()
	if pr == nil {
		o.reject("close", symbol, CloseBlockNoPosition)
		return
	}

	if o.reduceOnly != nil && o.reduceOnly.IsPairClosingBlocked(pr.Key) {
		o.reject("close", symbol, CloseBlockReduceOnlyClosing)
		return
	}

	if closing.ExchangeBuy != pr.SellVenue || closing.ExchangeSell != pr.BuyVenue {
		// Direction mismatch repair: rebuild from memory
		// rather than trust the caller's venue pair.
		legs := o.liveLegs(route)
		opening := &spread.Data{Symbol: symbol, ExchangeBuy: pr.BuyVenue, ExchangeSell: pr.SellVenue, BuySymbol: pr.BuySymbol, SellSymbol: pr.SellSymbol}
		rebuilt := spread.BuildClosingSpreadFromOrderbooks(opening, legs)
		if rebuilt == nil {
			o.reject("close", symbol, CloseBlockDirectionMismatch)
			return
		}
		closing = rebuilt
	}

	if !o.priceStable(route, closing, "close") {
		o.reject("close", symbol, CloseBlockPriceUnstable)
		return
	}

	legs := []spread.Leg{{Venue: closing.ExchangeBuy, Symbol: closing.BuySymbol}, {Venue: closing.ExchangeSell, Symbol: closing.SellSymbol}}
	if !localSpreadOK(legs, route.Grid.MaxLocalOrderbookSpreadPct) {
		o.reject("close", symbol, CloseBlockLocalSpread)
		return
	}

	if route.Grid.RequireOrderbookLiquidity {
		minSize := dec.Min(closing.SizeBuy, closing.SizeSell)
		if minSize.LessThan(route.Grid.MinOrderbookQuantity) {
			o.reject("close", symbol, CloseBlockLiquidity)
			return
		}
	}

	if !o.tryLockClose(symbol) {
		o.reject("close", symbol, CloseBlockLockHeld)
		return
	}
	defer o.unlockClose(symbol)

	closeResult := o.dec.ShouldClose(symbol, closing, funding)
	if !closeResult.ShouldClose {
		o.reject("close", symbol, CloseBlockDecisionFalse)
		return
	}

	req := executor.ExecutionRequest{
		Buy:      executor.Leg{Venue: pr.BuyVenue, Symbol: pr.BuySymbol, Side: venue.SideBuy},
		Sell:     executor.Leg{Venue: pr.SellVenue, Symbol: pr.SellSymbol, Side: venue.SideSell},
		Quantity: closeResult.Quantity,
	}
	closeStart := o.now()
	result := o.exec.CloseArbitrage(ctx, req)
	recordTickToOrder(string(symbol), "close", float64(o.now().Sub(closeStart).Milliseconds()))
	o.logEmergencyCloses(symbol, result.EmergencyCloses)
	if !result.Success {
		recordTrade(string(symbol), "failed", 0)
		o.reject("close", symbol, "CLOSE_EXECUTION_FAILED")
		return
	}
	recordTrade(string(symbol), "success", 0)

	closedSegments := o.dec.RecordClose(symbol, closeResult.PairKey, closeResult.Quantity, closing.SpreadPct, closing.PriceBuy, closing.PriceSell)
	if o.reporter != nil {
		pnl := closedSegmentsPnl(closedSegments)
		o.reporter.RecordTrade(string(symbol), string(pr.BuyVenue), string(pr.SellVenue), pnl, false, false)
		o.reporter.Notify("CLOSE", "info", fmt.Sprintf("closed %s %s/%s pnl=%.6f", symbol, pr.BuyVenue, pr.SellVenue, pnl))
	}
	o.scheduleReconciliation()
}

func (o *Orchestrator) tryLockOpen(key position.PairKey) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pendingOpen[key] {
		return false
	}
	o.pendingOpen[key] = true
	return true
}

func (o *Orchestrator) unlockOpen(key position.PairKey) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.pendingOpen, key)
}

func (o *Orchestrator) tryLockClose(symbol venue.Symbol) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pendingClose[symbol] {
		return false
	}
	o.pendingClose[symbol] = true
	return true
}

func (o *Orchestrator) unlockClose(symbol venue.Symbol) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.pendingClose, symbol)
}
