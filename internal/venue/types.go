package venue

import (
	"time"

	"arbitrage/internal/dec"
)

// ID is a lowercase short venue identifier (VenueId), e.g. "bybit".
type ID string

// Symbol is the exchange-neutral identifier BASE-QUOTE-KIND, e.g.
// "BTC-USDC-PERP". Venue-native forms never leak past internal/symbolconv.
type Symbol string

// Kind enumerates the KIND component of a neutral Symbol.
type Kind string

const (
	KindPerp Kind = "PERP"
	KindSpot Kind = "SPOT"
)

// Side of an order or position.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PriceLevel is one level of a book side.
type PriceLevel struct {
	Price  dec.D
	Volume dec.D
}

// OrderBookSnapshot is the neutral, venue-tagged book for one symbol.
// Bids are descending, asks ascending (invariant).
type OrderBookSnapshot struct {
	Symbol             Symbol
	Venue              ID
	Bids               []PriceLevel
	Asks               []PriceLevel
	ExchangeTimestamp  time.Time
	ReceivedTimestamp  time.Time
	ProcessedTimestamp time.Time
}

// BestBid returns the top bid level, or a zero level if the book side
// is empty (a venue may legitimately send a cleared book).
func (ob *OrderBookSnapshot) BestBid() PriceLevel {
	if len(ob.Bids) == 0 {
		return PriceLevel{}
	}
	return ob.Bids[0]
}

// BestAsk returns the top ask level, or a zero level if empty.
func (ob *OrderBookSnapshot) BestAsk() PriceLevel {
	if len(ob.Asks) == 0 {
		return PriceLevel{}
	}
	return ob.Asks[0]
}

// Valid checks the book-crossing invariant: best_bid.price ≤ best_ask.price,
// and that both sides are non-empty (unless the venue explicitly cleared
// the book, represented as both sides empty).
func (ob *OrderBookSnapshot) Valid() bool {
	if len(ob.Bids) == 0 && len(ob.Asks) == 0 {
		return true
	}
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return false
	}
	return ob.BestBid().Price.LessThanOrEqual(ob.BestAsk().Price)
}

// IsStale reports whether the snapshot is older than freshness at the
// given instant.
func (ob *OrderBookSnapshot) IsStale(now time.Time, freshness time.Duration) bool {
	return now.Sub(ob.ReceivedTimestamp) > freshness
}

// TickerSnapshot is the neutral ticker/mark/funding view for one symbol.
type TickerSnapshot struct {
	Symbol            Symbol
	Venue             ID
	Bid               dec.D
	Ask               dec.D
	Last              dec.D
	MarkPrice         dec.D
	IndexPrice        dec.D
	FundingRate       dec.D // fraction per funding interval
	NextFundingTime   time.Time
	ReceivedTimestamp time.Time
}

// AnnualizedFunding multiplies the per-interval funding fraction by the
// number of funding intervals per year (invariant).
func (t *TickerSnapshot) AnnualizedFunding(intervalsPerYear int64) dec.D {
	return t.FundingRate.Mul(dec.New(intervalsPerYear, 0))
}

// Order mirrors each venue client's own order shape, rebuilt on
// Decimal and tagged with the neutral Symbol/Venue instead of
// venue-native strings.
type Order struct {
	ID           string
	ClientID     string
	Symbol       Symbol
	Venue        ID
	Side         Side
	Type         string // "market" or "limit"
	Quantity     dec.D
	FilledQty    dec.D
	AvgFillPrice dec.D
	Status       OrderStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type OrderStatus string

const (
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// PositionSide mirrors each venue's long/short position side.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// Position is the venue's own view of an open position, read by the
// orchestrator's reconciliation pass (_position_cache).
type Position struct {
	Symbol        Symbol
	Venue         ID
	Side          PositionSide
	Size          dec.D
	EntryPrice    dec.D
	MarkPrice     dec.D
	Leverage      int
	UnrealizedPnl dec.D
	Liquidated    bool
	UpdatedAt     time.Time
}

// Limits are the venue's trading limits for a symbol.
type Limits struct {
	Symbol      Symbol
	MinOrderQty dec.D
	MaxOrderQty dec.D
	QtyStep     dec.D
	MinNotional dec.D
	PriceStep   dec.D
	MaxLeverage int
}

// Balance is a USDC-equivalent account balance snapshot used by the
// global risk controller.
type Balance struct {
	Venue     ID
	Available dec.D
	Equity    dec.D
	UpdatedAt time.Time
}
