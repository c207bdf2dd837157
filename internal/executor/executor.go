// Package executor is the arbitrage executor contract: a
// black box that takes an open or close request naming two venue legs
// and returns what actually filled. Shaped after a parallel-leg
// executor - send both legs as goroutines, wait on both channels at
// once so wall-clock time is max(leg_a, leg_b) not their sum, and
// unwind the filled leg if its twin fails - generalized from float64
// market orders against a fixed exchange map to Decimal orders against
// the venue.Adapter contract, and narrowed to
// the black-box surface its Non-goals leave this layer: no
// order-level retry/cancel ladder lives here, since a real venue
// adapter is expected to absorb its own transient failures before
// CreateOrder returns.
package executor

import (
	"context"
	"fmt"

	"arbitrage/internal/dec"
	"arbitrage/internal/venue"
)

// Leg names one side of a two-venue arbitrage order.
type Leg struct {
	Venue  venue.ID
	Symbol venue.Symbol
	Side   venue.Side
}

// ExecutionRequest is an open or close instruction spanning both legs
// (ExecutionRequest).
type ExecutionRequest struct {
	Buy      Leg
	Sell     Leg
	Quantity dec.D
}

// LegFill is one leg's outcome.
type LegFill struct {
	Order *venue.Order
	Err   error
}

// EmergencyClose records one reverse-close attempt taken against a
// leg that filled while its twin did not, so the orchestrator can
// surface what the executor had to clean up on its own.
type EmergencyClose struct {
	Venue    venue.ID
	Symbol   venue.Symbol
	Quantity dec.D
	Context  string
	Status   string // "closed" or "failed"
}

// ExecutionResult is ExecuteArbitrage's outcome. A partial fill (one
// leg succeeded, the other failed) is reported as Success=false with
// RolledBack set and an EmergencyCloses entry recorded once the
// surviving leg's reverse close has been attempted. SuccessQuantity is
// the minimum of the two legs' filled sizes - the quantity actually
// hedged - and is zero unless both legs filled.
type ExecutionResult struct {
	Success         bool
	SuccessQuantity dec.D
	Buy             LegFill
	Sell            LegFill
	RolledBack      bool
	EmergencyCloses []EmergencyClose
	Err             error
}

// Executor is the arbitrage executor contract: both
// methods must dispatch both legs concurrently and return only once
// both have settled (or ctx has been cancelled).
type Executor interface {
	ExecuteArbitrage(ctx context.Context, req ExecutionRequest) *ExecutionResult
	CloseArbitrage(ctx context.Context, req ExecutionRequest) *ExecutionResult
}

// AdapterLookup resolves a venue.ID to its live Adapter. The
// orchestrator owns adapter lifecycle; the executor only borrows them
// per call.
type AdapterLookup func(v venue.ID) (venue.Adapter, bool)

// DefaultExecutor is the default Executor implementation.
type DefaultExecutor struct {
	adapters AdapterLookup
}

// New builds a DefaultExecutor.
func New(adapters AdapterLookup) *DefaultExecutor {
	return &DefaultExecutor{adapters: adapters}
}

// ExecuteArbitrage opens both legs in parallel: CreateOrder(buy side)
// on req.Buy.Venue and CreateOrder(sell side) on req.Sell.Venue. If
// exactly one leg fills, the filled leg is immediately unwound with a
// market ClosePosition so the account doesn't carry a naked single-leg
// position ("never leave one leg open").
func (e *DefaultExecutor) ExecuteArbitrage(ctx context.Context, req ExecutionRequest) *ExecutionResult {
	buyAdapter, ok := e.adapters(req.Buy.Venue)
	if !ok {
		return &ExecutionResult{Err: fmt.Errorf("executor: no adapter for venue %s", req.Buy.Venue)}
	}
	sellAdapter, ok := e.adapters(req.Sell.Venue)
	if !ok {
		return &ExecutionResult{Err: fmt.Errorf("executor: no adapter for venue %s", req.Sell.Venue)}
	}

	buyCh := make(chan LegFill, 1)
	sellCh := make(chan LegFill, 1)

	go func() {
		order, err := buyAdapter.CreateOrder(ctx, req.Buy.Symbol, venue.SideBuy, "market", req.Quantity, nil)
		buyCh <- LegFill{Order: order, Err: err}
	}()
	go func() {
		order, err := sellAdapter.CreateOrder(ctx, req.Sell.Symbol, venue.SideSell, "market", req.Quantity, nil)
		sellCh <- LegFill{Order: order, Err: err}
	}()

	var buyFill, sellFill LegFill
	var buyDone, sellDone bool
	for !buyDone || !sellDone {
		select {
		case buyFill = <-buyCh:
			buyDone = true
		case sellFill = <-sellCh:
			sellDone = true
		case <-ctx.Done():
			return &ExecutionResult{Err: ctx.Err()}
		}
	}

	if buyFill.Err == nil && sellFill.Err == nil {
		successQty := req.Quantity
		if buyFill.Order != nil && sellFill.Order != nil {
			successQty = dec.Min(buyFill.Order.FilledQty, sellFill.Order.FilledQty)
		}
		return &ExecutionResult{
			Success:         true,
			SuccessQuantity: successQty,
			Buy:             buyFill,
			Sell:            sellFill,
		}
	}

	var rolledBack bool
	var emergency []EmergencyClose
	switch {
	case buyFill.Err == nil && sellFill.Err != nil:
		rolledBack, emergency = e.unwind(ctx, buyAdapter, req.Buy.Venue, req.Buy.Symbol, venue.SideBuy, buyFill.Order, "sell leg failed to fill")
	case sellFill.Err == nil && buyFill.Err != nil:
		rolledBack, emergency = e.unwind(ctx, sellAdapter, req.Sell.Venue, req.Sell.Symbol, venue.SideSell, sellFill.Order, "buy leg failed to fill")
	}

	return &ExecutionResult{
		Success:         false,
		Buy:             buyFill,
		Sell:            sellFill,
		RolledBack:      rolledBack,
		EmergencyCloses: emergency,
		Err:             fmt.Errorf("executor: leg failure buy=%v sell=%v", buyFill.Err, sellFill.Err),
	}
}

// CloseArbitrage closes both legs in parallel with the opposite side
// of their open. Unlike ExecuteArbitrage, a partial close
// failure is NOT rolled back - reducing one leg while the other is
// stuck open is still closer to flat than doing nothing. Nothing
// retries the stuck leg automatically; its failure is reported in the
// returned ExecutionResult.
func (e *DefaultExecutor) CloseArbitrage(ctx context.Context, req ExecutionRequest) *ExecutionResult {
	buyAdapter, ok := e.adapters(req.Buy.Venue)
	if !ok {
		return &ExecutionResult{Err: fmt.Errorf("executor: no adapter for venue %s", req.Buy.Venue)}
	}
	sellAdapter, ok := e.adapters(req.Sell.Venue)
	if !ok {
		return &ExecutionResult{Err: fmt.Errorf("executor: no adapter for venue %s", req.Sell.Venue)}
	}

	buyCh := make(chan LegFill, 1)
	sellCh := make(chan LegFill, 1)

	go func() {
		err := buyAdapter.ClosePosition(ctx, req.Buy.Symbol, venue.SideSell, req.Quantity)
		buyCh <- LegFill{Err: err}
	}()
	go func() {
		err := sellAdapter.ClosePosition(ctx, req.Sell.Symbol, venue.SideBuy, req.Quantity)
		sellCh <- LegFill{Err: err}
	}()

	var buyFill, sellFill LegFill
	var buyDone, sellDone bool
	for !buyDone || !sellDone {
		select {
		case buyFill = <-buyCh:
			buyDone = true
		case sellFill = <-sellCh:
			sellDone = true
		case <-ctx.Done():
			return &ExecutionResult{Err: ctx.Err()}
		}
	}

	if buyFill.Err == nil && sellFill.Err == nil {
		return &ExecutionResult{Success: true, Buy: buyFill, Sell: sellFill}
	}
	return &ExecutionResult{
		Success: false,
		Buy:     buyFill,
		Sell:    sellFill,
		Err:     fmt.Errorf("executor: close failure buy=%v sell=%v", buyFill.Err, sellFill.Err),
	}
}

// unwind closes out a single surviving leg after its twin failed to
// fill, and reports the attempt as an EmergencyClose so the
// orchestrator can surface it rather than silently swallow it. A
// failure here is still returned as a bool rather than propagated as
// the primary error - the caller already has a primary error to
// report, and a stuck single leg is exactly what the orchestrator's
// reconciliation pass exists to catch.
func (e *DefaultExecutor) unwind(ctx context.Context, a venue.Adapter, v venue.ID, symbol venue.Symbol, openSide venue.Side, order *venue.Order, reason string) (bool, []EmergencyClose) {
	if order == nil || !order.FilledQty.IsPositive() {
		return true, nil
	}
	closeSide := venue.SideSell
	if openSide == venue.SideSell {
		closeSide = venue.SideBuy
	}
	err := a.ClosePosition(ctx, symbol, closeSide, order.FilledQty)
	status := "closed"
	if err != nil {
		status = "failed"
	}
	return err == nil, []EmergencyClose{{
		Venue:    v,
		Symbol:   symbol,
		Quantity: order.FilledQty,
		Context:  reason,
		Status:   status,
	}}
}
