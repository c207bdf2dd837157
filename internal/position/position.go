// Package position holds the segment-level position model. Builds on a
// runtime-state-plus-per-leg-entry-price model and FIFO accounting,
// generalized from "one flat entry/exit position per pair" to ordered,
// independently-closeable segments with size-weighted average spread.
package position

import (
	"fmt"
	"time"

	"arbitrage/internal/dec"
	"arbitrage/internal/venue"
)

// PairKey is the stable identifier of one opening direction between
// two venues for a (buy_symbol, sell_symbol) pair.
type PairKey string

// BuildPairKey derives the deterministic pair key from (symbol,
// buy_venue, sell_venue, buy_symbol, sell_symbol).
func BuildPairKey(symbol venue.Symbol, buyVenue, sellVenue venue.ID, buySymbol, sellSymbol venue.Symbol) PairKey {
	return PairKey(fmt.Sprintf("%s:%s->%s:%s->%s", symbol, buyVenue, sellVenue, buySymbol, sellSymbol))
}

// ReversePairKey swaps buy/sell venues and symbols, used by the
// pair-uniqueness rule to detect a contradictory opening direction.
func ReversePairKey(symbol venue.Symbol, buyVenue, sellVenue venue.ID, buySymbol, sellSymbol venue.Symbol) PairKey {
	return BuildPairKey(symbol, sellVenue, buyVenue, sellSymbol, buySymbol)
}

// Segment is one recorded increment of a pair position.
type Segment struct {
	SegmentID    int64
	TargetQty    dec.D
	OpenQty      dec.D
	OpenSpreadPct dec.D
	OpenTime     time.Time
	OpenPriceBuy  dec.D
	OpenPriceSell dec.D
	OpenFundingBuy  dec.D
	OpenFundingSell dec.D
	BuyOrderID   string
	SellOrderID  string

	IsClosed      bool
	CloseTime     time.Time
	CloseSpreadPct dec.D
	ClosePriceBuy  dec.D
	ClosePriceSell dec.D
}

// Pair holds the segments opened under one specific pair key.
type Pair struct {
	Key        PairKey
	BuyVenue   venue.ID
	SellVenue  venue.ID
	BuySymbol  venue.Symbol
	SellSymbol venue.Symbol

	Segments []*Segment

	TotalQty       dec.D
	AvgOpenSpreadPct dec.D
}

// IsOpen reports whether the pair still carries size (open iff total
// quantity exceeds epsilon).
func (p *Pair) IsOpen() bool {
	return dec.IsPositive(p.TotalQty)
}

// Position is the symbol-level, pair-keyed aggregate.
type Position struct {
	Symbol venue.Symbol

	Pairs map[PairKey]*Pair

	TotalQty         dec.D
	AvgOpenSpreadPct dec.D
	CreateTime       time.Time
	LastUpdateTime   time.Time

	nextSegmentID int64
}

// NewPosition builds an empty symbol-level position.
func NewPosition(symbol venue.Symbol) *Position {
	return &Position{
		Symbol: symbol,
		Pairs:  make(map[PairKey]*Pair),
	}
}

// IsOpen reports whether the symbol carries any size (invariant).
func (p *Position) IsOpen() bool {
	return dec.IsPositive(p.TotalQty)
}

// NonZeroPair returns the single pair currently holding size > ε, if
// any. The decision engine falls back to this when a close signal
// arrives without an explicit pair_key (should_close step 3).
func (p *Position) NonZeroPair() *Pair {
	for _, pr := range p.Pairs {
		if pr.IsOpen() {
			return pr
		}
	}
	return nil
}

func (p *Position) pairFor(key PairKey, buyVenue, sellVenue venue.ID, buySymbol, sellSymbol venue.Symbol) *Pair {
	pr, ok := p.Pairs[key]
	if !ok {
		pr = &Pair{Key: key, BuyVenue: buyVenue, SellVenue: sellVenue, BuySymbol: buySymbol, SellSymbol: sellSymbol}
		p.Pairs[key] = pr
	}
	return pr
}

// RecordOpenParams carries every field record_open needs.
type RecordOpenParams struct {
	Key        PairKey
	BuyVenue   venue.ID
	SellVenue  venue.ID
	BuySymbol  venue.Symbol
	SellSymbol venue.Symbol

	Quantity       dec.D
	FilledQuantity dec.D // if positive, overrides Quantity ("actual_quantity")
	SpreadPct      dec.D
	FundingBuy     dec.D
	FundingSell    dec.D
	BuyOrderID     string
	SellOrderID    string
	PriceBuy       dec.D
	PriceSell      dec.D
	Now            time.Time
}

// RecordOpen appends a new segment under the pair, updates the
// symbol-level and pair-level totals and size-weighted average spread
// (record_open).
func (p *Position) RecordOpen(params RecordOpenParams) *Segment {
	qty := params.FilledQuantity
	if !dec.IsPositive(qty) {
		qty = params.Quantity
	}

	pr := p.pairFor(params.Key, params.BuyVenue, params.SellVenue, params.BuySymbol, params.SellSymbol)
	wasPairEmpty := !pr.IsOpen()

	p.nextSegmentID++
	seg := &Segment{
		SegmentID:       p.nextSegmentID,
		TargetQty:       qty,
		OpenQty:         qty,
		OpenSpreadPct:   params.SpreadPct,
		OpenTime:        params.Now,
		OpenPriceBuy:    params.PriceBuy,
		OpenPriceSell:   params.PriceSell,
		OpenFundingBuy:  params.FundingBuy,
		OpenFundingSell: params.FundingSell,
		BuyOrderID:      params.BuyOrderID,
		SellOrderID:     params.SellOrderID,
	}
	pr.Segments = append(pr.Segments, seg)

	pr.AvgOpenSpreadPct = weightedAvg(pr.AvgOpenSpreadPct, pr.TotalQty, params.SpreadPct, qty)
	pr.TotalQty = pr.TotalQty.Add(qty)

	p.AvgOpenSpreadPct = weightedAvg(p.AvgOpenSpreadPct, p.TotalQty, params.SpreadPct, qty)
	p.TotalQty = p.TotalQty.Add(qty)
	p.LastUpdateTime = params.Now
	if p.CreateTime.IsZero() {
		p.CreateTime = params.Now
	}

	_ = wasPairEmpty // direction memory install is the caller's (decision engine's) responsibility
	return seg
}

// RecordClose consumes open_quantity FIFO across non-closed segments of
// pair until quantity is exhausted (record_close). Returns
// the segments that were touched (fully or partially closed).
func (pr *Pair) RecordClose(quantity dec.D, spreadPct, priceBuy, priceSell dec.D, now time.Time) []*Segment {
	remaining := quantity
	var touched []*Segment

	for _, seg := range pr.Segments {
		if dec.IsZero(remaining) || !remaining.IsPositive() {
			break
		}
		if seg.IsClosed || dec.IsZero(seg.OpenQty) {
			continue
		}
		take := dec.Min(seg.OpenQty, remaining)
		seg.OpenQty = seg.OpenQty.Sub(take)
		remaining = remaining.Sub(take)
		touched = append(touched, seg)

		if dec.IsZero(seg.OpenQty) {
			seg.IsClosed = true
			seg.CloseTime = now
			seg.CloseSpreadPct = spreadPct
			seg.ClosePriceBuy = priceBuy
			seg.ClosePriceSell = priceSell
		}
	}

	pr.TotalQty = pr.TotalQty.Sub(quantity.Sub(remaining))
	if pr.TotalQty.IsNegative() {
		pr.TotalQty = dec.Zero
	}
	return touched
}

// RecordClose consumes quantity from the position's non-zero pair
// (record_close). If key is empty, the single open pair is
// used. The position's TotalQty is reduced (floored at zero) and a pair
// whose quantity reaches zero is removed from Pairs.
func (p *Position) RecordClose(key PairKey, quantity dec.D, spreadPct, priceBuy, priceSell dec.D, now time.Time) []*Segment {
	var pr *Pair
	if key != "" {
		pr = p.Pairs[key]
	} else {
		pr = p.NonZeroPair()
	}
	if pr == nil {
		return nil
	}

	touched := pr.RecordClose(quantity, spreadPct, priceBuy, priceSell, now)

	p.TotalQty = p.TotalQty.Sub(quantity)
	if p.TotalQty.IsNegative() {
		p.TotalQty = dec.Zero
	}
	p.LastUpdateTime = now

	if dec.IsZero(pr.TotalQty) {
		delete(p.Pairs, pr.Key)
	}
	return touched
}

func weightedAvg(prevAvg, prevQty, addSpread, addQty dec.D) dec.D {
	totalQty := prevQty.Add(addQty)
	if dec.IsZero(totalQty) {
		return dec.Zero
	}
	weighted := prevAvg.Mul(prevQty).Add(addSpread.Mul(addQty))
	return weighted.Div(totalQty)
}
