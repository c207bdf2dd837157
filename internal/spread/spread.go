// Package spread computes directional arbitrage spreads across venue
// order books (Spread Calculator). Shaped after a best-ask-
// vs-best-bid-across-exchanges, fee-aware net spread calculator,
// generalized from "one best opportunity per symbol" to enumerating
// every ordered (buy_venue, sell_venue) direction and rebuilding
// closing spreads on the inverse leg, all on Decimal instead of
// float64.
package spread

import (
	"arbitrage/internal/dec"
	"arbitrage/internal/venue"
)

// Data is one directional spread observation (SpreadData).
// Positive SpreadPct means buying at ExchangeBuy and selling at
// ExchangeSell is profitable, ignoring fees.
type Data struct {
	Symbol       venue.Symbol
	ExchangeBuy  venue.ID
	ExchangeSell venue.ID
	BuySymbol    venue.Symbol
	SellSymbol   venue.Symbol

	PriceBuy  dec.D
	PriceSell dec.D
	SizeBuy   dec.D
	SizeSell  dec.D

	SpreadAbs dec.D
	SpreadPct dec.D
}

func build(symbol venue.Symbol, buyVenue, sellVenue venue.ID, buySymbol, sellSymbol venue.Symbol, priceBuy, priceSell, sizeBuy, sizeSell dec.D) *Data {
	if !priceBuy.IsPositive() || !priceSell.IsPositive() {
		return nil
	}
	spreadAbs := priceSell.Sub(priceBuy)
	spreadPct := spreadAbs.Div(priceBuy).Mul(dec.Hundred)
	return &Data{
		Symbol:       symbol,
		ExchangeBuy:  buyVenue,
		ExchangeSell: sellVenue,
		BuySymbol:    buySymbol,
		SellSymbol:   sellSymbol,
		PriceBuy:     priceBuy,
		PriceSell:    priceSell,
		SizeBuy:      sizeBuy,
		SizeSell:     sizeSell,
		SpreadAbs:    spreadAbs,
		SpreadPct:    spreadPct,
	}
}

// Leg is one venue's side of a spread computation: its native symbol
// and the order book snapshot to read best_ask/best_bid from.
type Leg struct {
	Venue  venue.ID
	Symbol venue.Symbol
	Book   *venue.OrderBookSnapshot
}

// CalculateSpreadsMultiExchangeDirections enumerates every ordered
// (buy_venue, sell_venue) pair among legs, building SpreadData from
// buy_venue.best_ask and sell_venue.best_bid. The result
// includes negative-spread directions so callers can pick the max.
func CalculateSpreadsMultiExchangeDirections(symbol venue.Symbol, legs []Leg) []*Data {
	var out []*Data
	for _, buy := range legs {
		if buy.Book == nil || !buy.Book.Valid() {
			continue
		}
		bestAsk := buy.Book.BestAsk()
		if !bestAsk.Price.IsPositive() {
			continue
		}
		for _, sell := range legs {
			if sell.Venue == buy.Venue {
				continue
			}
			if sell.Book == nil || !sell.Book.Valid() {
				continue
			}
			bestBid := sell.Book.BestBid()
			if !bestBid.Price.IsPositive() {
				continue
			}
			d := build(symbol, buy.Venue, sell.Venue, buy.Symbol, sell.Symbol,
				bestAsk.Price, bestBid.Price, bestAsk.Volume, bestBid.Volume)
			if d != nil {
				out = append(out, d)
			}
		}
	}
	return out
}

// BestOpeningSpread returns the direction with the highest spread_pct,
// or nil if directions is empty.
func BestOpeningSpread(directions []*Data) *Data {
	var best *Data
	for _, d := range directions {
		if best == nil || d.SpreadPct.GreaterThan(best.SpreadPct) {
			best = d
		}
	}
	return best
}

// BuildClosingSpreadFromOrderbooks constructs the inverse-direction
// SpreadData for an open position: current best_ask at the prior sell
// venue, current best_bid at the prior buy venue. Returns
// nil if either leg's book is absent or stale.
func BuildClosingSpreadFromOrderbooks(opening *Data, legs []Leg) *Data {
	var closeBuyLeg, closeSellLeg *Leg
	for i := range legs {
		if legs[i].Venue == opening.ExchangeSell {
			closeBuyLeg = &legs[i]
		}
		if legs[i].Venue == opening.ExchangeBuy {
			closeSellLeg = &legs[i]
		}
	}
	if closeBuyLeg == nil || closeSellLeg == nil {
		return nil
	}
	if closeBuyLeg.Book == nil || !closeBuyLeg.Book.Valid() || closeSellLeg.Book == nil || !closeSellLeg.Book.Valid() {
		return nil
	}
	bestAsk := closeBuyLeg.Book.BestAsk()
	bestBid := closeSellLeg.Book.BestBid()
	if !bestAsk.Price.IsPositive() || !bestBid.Price.IsPositive() {
		return nil
	}
	return build(opening.Symbol, opening.ExchangeSell, opening.ExchangeBuy, opening.SellSymbol, opening.BuySymbol,
		bestAsk.Price, bestBid.Price, bestAsk.Volume, bestBid.Volume)
}

// MultiLegBasket is one leg of a 2-leg cross-pair basket used by the
// multi-leg (cross-pair) arbitrage calculations.
type MultiLegBasket struct {
	Venue  venue.ID
	Symbol venue.Symbol
	Book   *venue.OrderBookSnapshot
}

// CalculateMultiLegSpread computes the spread for a 2-leg cross-pair
// basket identified by pairID, in the primary->secondary direction and
// (if allowReverse) the reverse direction too. The returned
// Data's Symbol field is set to pairID rather than either leg's native
// symbol.
func CalculateMultiLegSpread(pairID venue.Symbol, primary, secondary MultiLegBasket, allowReverse bool) []*Data {
	var out []*Data

	if primary.Book != nil && secondary.Book != nil && primary.Book.Valid() && secondary.Book.Valid() {
		primaryAsk := primary.Book.BestAsk()
		secondaryBid := secondary.Book.BestBid()
		if d := build(pairID, primary.Venue, secondary.Venue, primary.Symbol, secondary.Symbol,
			primaryAsk.Price, secondaryBid.Price, primaryAsk.Volume, secondaryBid.Volume); d != nil {
			out = append(out, d)
		}

		if allowReverse {
			secondaryAsk := secondary.Book.BestAsk()
			primaryBid := primary.Book.BestBid()
			if d := build(pairID, secondary.Venue, primary.Venue, secondary.Symbol, primary.Symbol,
				secondaryAsk.Price, primaryBid.Price, secondaryAsk.Volume, primaryBid.Volume); d != nil {
				out = append(out, d)
			}
		}
	}
	return out
}

// CalculateMultiLegClosingSpread builds the inverse-direction spread
// for an open multi-leg basket position, analogous to
// BuildClosingSpreadFromOrderbooks but over a 2-leg basket.
func CalculateMultiLegClosingSpread(opening *Data, primary, secondary MultiLegBasket) *Data {
	var closeBuy, closeSell MultiLegBasket
	switch opening.ExchangeSell {
	case primary.Venue:
		closeBuy = primary
	case secondary.Venue:
		closeBuy = secondary
	default:
		return nil
	}
	switch opening.ExchangeBuy {
	case primary.Venue:
		closeSell = primary
	case secondary.Venue:
		closeSell = secondary
	default:
		return nil
	}
	if closeBuy.Book == nil || !closeBuy.Book.Valid() || closeSell.Book == nil || !closeSell.Book.Valid() {
		return nil
	}
	bestAsk := closeBuy.Book.BestAsk()
	bestBid := closeSell.Book.BestBid()
	if !bestAsk.Price.IsPositive() || !bestBid.Price.IsPositive() {
		return nil
	}
	return build(opening.Symbol, opening.ExchangeSell, opening.ExchangeBuy, opening.SellSymbol, opening.BuySymbol,
		bestAsk.Price, bestBid.Price, bestAsk.Volume, bestBid.Volume)
}

// NetSpreadPct subtracts the round-trip taker fee cost (both legs, open
// and close) from a gross spread percentage, on Decimal and expressed
// in fee fractions rather than already-scaled percentages.
func NetSpreadPct(spreadPct, feeBuy, feeSell dec.D) dec.D {
	roundTrip := feeBuy.Add(feeSell).Mul(dec.New(2, 0)).Mul(dec.Hundred)
	return spreadPct.Sub(roundTrip)
}
