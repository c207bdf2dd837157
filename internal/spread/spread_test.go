package spread

import (
	"testing"

	"arbitrage/internal/dec"
	"arbitrage/internal/venue"
)

func book(bidPrice, bidVol, askPrice, askVol string) *venue.OrderBookSnapshot {
	return &venue.OrderBookSnapshot{
		Bids: []venue.PriceLevel{{Price: dec.FromString(bidPrice), Volume: dec.FromString(bidVol)}},
		Asks: []venue.PriceLevel{{Price: dec.FromString(askPrice), Volume: dec.FromString(askVol)}},
	}
}

func TestCalculateSpreadsMultiExchangeDirections_EnumeratesOrderedPairs(t *testing.T) {
	legs := []Leg{
		{Venue: "bybit", Symbol: "BTCUSDT", Book: book("100", "5", "100.1", "5")},
		{Venue: "okx", Symbol: "BTC-USDT-SWAP", Book: book("100.5", "5", "100.6", "5")},
	}

	dirs := CalculateSpreadsMultiExchangeDirections("BTC-USDC-PERP", legs)
	if len(dirs) != 2 {
		t.Fatalf("expected 2 directions for 2 venues, got %d", len(dirs))
	}

	best := BestOpeningSpread(dirs)
	if best.ExchangeBuy != "bybit" || best.ExchangeSell != "okx" {
		t.Fatalf("expected best direction to buy bybit/sell okx, got buy=%s sell=%s", best.ExchangeBuy, best.ExchangeSell)
	}
	// buy ask 100.1, sell bid 100.5 -> spread_abs 0.4, spread_pct ~0.3996
	if !best.SpreadAbs.Equal(dec.FromString("0.4")) {
		t.Fatalf("expected spread_abs 0.4, got %s", best.SpreadAbs)
	}
}

func TestBuildClosingSpreadFromOrderbooks_InvertsDirection(t *testing.T) {
	opening := &Data{
		Symbol: "BTC-USDC-PERP", ExchangeBuy: "bybit", ExchangeSell: "okx",
		BuySymbol: "BTCUSDT", SellSymbol: "BTC-USDT-SWAP",
	}
	legs := []Leg{
		{Venue: "bybit", Symbol: "BTCUSDT", Book: book("99", "5", "99.2", "5")},
		{Venue: "okx", Symbol: "BTC-USDT-SWAP", Book: book("99.5", "5", "99.7", "5")},
	}

	closing := BuildClosingSpreadFromOrderbooks(opening, legs)
	if closing == nil {
		t.Fatalf("expected a closing spread")
	}
	if closing.ExchangeBuy != "okx" || closing.ExchangeSell != "bybit" {
		t.Fatalf("expected closing direction to reverse venues, got buy=%s sell=%s", closing.ExchangeBuy, closing.ExchangeSell)
	}
	if !closing.PriceBuy.Equal(dec.FromString("99.7")) {
		t.Fatalf("expected closing buy price to be okx's current ask 99.7, got %s", closing.PriceBuy)
	}
	if !closing.PriceSell.Equal(dec.FromString("99")) {
		t.Fatalf("expected closing sell price to be bybit's current bid 99, got %s", closing.PriceSell)
	}
}

func TestBuildClosingSpreadFromOrderbooks_MissingLegReturnsNil(t *testing.T) {
	opening := &Data{Symbol: "BTC-USDC-PERP", ExchangeBuy: "bybit", ExchangeSell: "okx"}
	legs := []Leg{{Venue: "bybit", Symbol: "BTCUSDT", Book: book("99", "5", "99.2", "5")}}

	if got := BuildClosingSpreadFromOrderbooks(opening, legs); got != nil {
		t.Fatalf("expected nil when the prior sell venue's book is absent, got %+v", got)
	}
}

func TestCalculateMultiLegSpread_ReverseDirection(t *testing.T) {
	primary := MultiLegBasket{Venue: "bybit", Symbol: "BTCUSDT", Book: book("100", "5", "100.2", "5")}
	secondary := MultiLegBasket{Venue: "okx", Symbol: "ETH-USDT-SWAP", Book: book("100.5", "5", "100.7", "5")}

	dirs := CalculateMultiLegSpread("basket-1", primary, secondary, true)
	if len(dirs) != 2 {
		t.Fatalf("expected forward and reverse directions, got %d", len(dirs))
	}
	for _, d := range dirs {
		if d.Symbol != "basket-1" {
			t.Fatalf("expected pair_id to stamp the Symbol field, got %s", d.Symbol)
		}
	}
}

func TestCalculateMultiLegSpread_NoReverseWhenDisallowed(t *testing.T) {
	primary := MultiLegBasket{Venue: "bybit", Symbol: "BTCUSDT", Book: book("100", "5", "100.2", "5")}
	secondary := MultiLegBasket{Venue: "okx", Symbol: "ETH-USDT-SWAP", Book: book("100.5", "5", "100.7", "5")}

	dirs := CalculateMultiLegSpread("basket-1", primary, secondary, false)
	if len(dirs) != 1 {
		t.Fatalf("expected only the forward direction, got %d", len(dirs))
	}
}

func TestNetSpreadPct_SubtractsRoundTripFees(t *testing.T) {
	got := NetSpreadPct(dec.FromString("0.5"), dec.FromString("0.0005"), dec.FromString("0.0005"))
	// round trip = 2 * (0.0005+0.0005) * 100 = 0.2
	want := dec.FromString("0.3")
	if !got.Equal(want) {
		t.Fatalf("expected net spread 0.3, got %s", got)
	}
}
