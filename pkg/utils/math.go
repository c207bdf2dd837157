package utils

// math.go - математические утилиты для оценки и симуляции сделок.
//
// Эти функции работают с float64, а не с dec.D: они служат быстрой,
// приблизительной прикидкой (спред на глаз, прогон стакана) для
// дашбордов и бэктестов, а не путём учёта позиций - тот идёт через
// internal/dec.

import "math"

// decimalsForLotSize infers how many fractional digits a lot size
// implies, so RoundToLotSize doesn't leave floating point noise behind
// (e.g. 0.1*3 != 0.3 in binary float64).
func decimalsForLotSize(lotSize float64) int {
	if lotSize <= 0 || lotSize >= 1 {
		return 0
	}
	return int(math.Round(-math.Log10(lotSize)))
}

func roundTo(value float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(value*p) / p
}

// RoundToLotSize rounds value down to the nearest multiple of lotSize
// (an exchange's minimum order increment).
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	if value == 0 {
		return 0
	}
	steps := math.Floor(value/lotSize + 1e-9)
	return roundTo(steps*lotSize, decimalsForLotSize(lotSize))
}

// RoundToLotSizeUp rounds value up to the nearest multiple of lotSize.
func RoundToLotSizeUp(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	if value == 0 {
		return 0
	}
	steps := math.Ceil(value/lotSize - 1e-9)
	return roundTo(steps*lotSize, decimalsForLotSize(lotSize))
}

// RoundToLotSizeNearest rounds value to the closest multiple of
// lotSize, halves rounding away from zero.
func RoundToLotSizeNearest(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	steps := math.Round(value / lotSize)
	return roundTo(steps*lotSize, decimalsForLotSize(lotSize))
}

// CalculateSpread returns the percentage spread of priceHigh over
// priceLow: (priceHigh - priceLow) / priceLow * 100.
func CalculateSpread(priceHigh, priceLow float64) float64 {
	if priceLow <= 0 {
		return 0
	}
	return (priceHigh - priceLow) / priceLow * 100
}

// CalculateSpreadFromPrices computes the spread between two prices
// without assuming which one is higher.
func CalculateSpreadFromPrices(priceA, priceB float64) float64 {
	high, low := priceA, priceB
	if low > high {
		high, low = low, high
	}
	return CalculateSpread(high, low)
}

// CalculateNetSpread subtracts the round-trip fee cost (both legs,
// open and close) from a gross spread percentage.
func CalculateNetSpread(spreadPct, feeA, feeB float64) float64 {
	return spreadPct - 2*(feeA+feeB)*100
}

// CalculateNetSpreadDirect computes the net spread straight from raw
// prices and per-leg fee fractions.
func CalculateNetSpreadDirect(priceHigh, priceLow, feeA, feeB float64) float64 {
	return CalculateNetSpread(CalculateSpread(priceHigh, priceLow), feeA, feeB)
}

// CalculateWeightedAverage computes a volume-weighted average price,
// ignoring any entry with a non-positive weight.
func CalculateWeightedAverage(values, weights []float64) float64 {
	if len(values) != len(weights) || len(values) == 0 {
		return 0
	}
	var sumWeighted, sumWeights float64
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		sumWeighted += values[i] * w
		sumWeights += w
	}
	if sumWeights <= 0 {
		return 0
	}
	return sumWeighted / sumWeights
}

// OrderBookLevel is one side-level used by the SimulateMarket* walkers.
type OrderBookLevel struct {
	Price  float64
	Volume float64
}

// simulateMarketOrder walks levels in the order given, filling up to
// targetVolume, and reports the volume-weighted fill price, how much
// actually filled, and the slippage percent versus the first level's
// price.
func simulateMarketOrder(levels []OrderBookLevel, targetVolume float64) (avgPrice, filled, slippagePct float64) {
	if len(levels) == 0 || targetVolume <= 0 {
		return 0, 0, 0
	}

	var notional float64
	remaining := targetVolume
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := lvl.Volume
		if take > remaining {
			take = remaining
		}
		notional += lvl.Price * take
		filled += take
		remaining -= take
	}

	if filled == 0 {
		return 0, 0, 0
	}
	avgPrice = notional / filled
	best := levels[0].Price
	if best > 0 {
		slippagePct = (avgPrice - best) / best * 100
	}
	return avgPrice, filled, slippagePct
}

// SimulateMarketBuy walks asks (ascending) to estimate the average
// fill price, filled quantity and slippage for a market buy.
func SimulateMarketBuy(asks []OrderBookLevel, targetVolume float64) (avgPrice, filled, slippagePct float64) {
	return simulateMarketOrder(asks, targetVolume)
}

// SimulateMarketSell walks bids (descending) to estimate the average
// fill price, filled quantity and slippage for a market sell.
func SimulateMarketSell(bids []OrderBookLevel, targetVolume float64) (avgPrice, filled, slippagePct float64) {
	return simulateMarketOrder(bids, targetVolume)
}

// CalculatePNL computes unrealized PNL for a single leg.
func CalculatePNL(side string, entryPrice, currentPrice, quantity float64) float64 {
	switch side {
	case "long":
		return (currentPrice - entryPrice) * quantity
	case "short":
		return (entryPrice - currentPrice) * quantity
	default:
		return 0
	}
}

// CalculateTotalPNL sums the long and short legs of a hedged arbitrage
// position.
func CalculateTotalPNL(longEntry, longExit, shortEntry, shortExit, quantity float64) float64 {
	return CalculatePNL("long", longEntry, longExit, quantity) +
		CalculatePNL("short", shortEntry, shortExit, quantity)
}

// SplitVolume divides totalVolume into nParts equal, lot-size-rounded
// chunks.
func SplitVolume(totalVolume float64, nParts int, lotSize float64) []float64 {
	if nParts <= 0 || totalVolume <= 0 {
		return nil
	}
	part := RoundToLotSizeNearest(totalVolume/float64(nParts), lotSize)
	parts := make([]float64, nParts)
	for i := range parts {
		parts[i] = part
	}
	return parts
}

// IsSpreadSufficient reports whether spread clears the entry threshold.
func IsSpreadSufficient(spread, threshold float64) bool {
	return spread >= threshold
}

// ShouldExit reports whether spread has compressed to the exit
// threshold.
func ShouldExit(spread, exitThreshold float64) bool {
	return spread <= exitThreshold
}

// IsStopLossHit reports whether pnl has breached a configured stop
// loss. stopLoss <= 0 means the stop loss is disabled.
func IsStopLossHit(pnl, stopLoss float64) bool {
	if stopLoss <= 0 {
		return false
	}
	return pnl <= -stopLoss
}

// Clamp restricts value to [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
