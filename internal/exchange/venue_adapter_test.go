package exchange

import (
	"context"
	"testing"
	"time"

	"arbitrage/internal/dec"
	"arbitrage/internal/symbolconv"
	"arbitrage/internal/venue"
)

type fakeExchange struct {
	balance float64
	book    *OrderBook
	limits  *Limits
	order   *Order
}

func (f *fakeExchange) Connect(apiKey, secret, passphrase string) error { return nil }
func (f *fakeExchange) GetName() string                                { return "fake" }
func (f *fakeExchange) GetBalance(ctx context.Context) (float64, error) { return f.balance, nil }
func (f *fakeExchange) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	return &Ticker{Symbol: symbol, BidPrice: 100, AskPrice: 101, LastPrice: 100.5, Timestamp: time.Now()}, nil
}
func (f *fakeExchange) GetOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	return f.book, nil
}
func (f *fakeExchange) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*Order, error) {
	return f.order, nil
}
func (f *fakeExchange) GetOpenPositions(ctx context.Context) ([]*Position, error) {
	return []*Position{{Symbol: "BTCUSDT", Side: SideLong, Size: 1, EntryPrice: 100}}, nil
}
func (f *fakeExchange) ClosePosition(ctx context.Context, symbol, side string, qty float64) error {
	return nil
}
func (f *fakeExchange) SubscribeTicker(symbol string, callback func(*Ticker)) error {
	callback(&Ticker{Symbol: symbol, BidPrice: 100, AskPrice: 101})
	return nil
}
func (f *fakeExchange) SubscribePositions(callback func(*Position)) error {
	callback(&Position{Symbol: "BTCUSDT", Side: SideShort, Size: 2})
	return nil
}
func (f *fakeExchange) GetTradingFee(ctx context.Context, symbol string) (float64, error) {
	return 0.001, nil
}
func (f *fakeExchange) GetLimits(ctx context.Context, symbol string) (*Limits, error) {
	return f.limits, nil
}
func (f *fakeExchange) Close() error { return nil }

func newTestAdapter() (*VenueAdapter, *fakeExchange) {
	conv := symbolconv.New()
	conv.AddMapping("fake", "BTC-USDT-PERP", "BTCUSDT")
	fe := &fakeExchange{
		balance: 500,
		book: &OrderBook{
			Symbol: "BTCUSDT",
			Bids:   []PriceLevel{{Price: 100, Volume: 1}},
			Asks:   []PriceLevel{{Price: 101, Volume: 1}},
		},
		limits: &Limits{Symbol: "BTCUSDT", MinOrderQty: 0.001, MaxLeverage: 20},
		order:  &Order{ID: "1", Symbol: "BTCUSDT", Quantity: 1, FilledQty: 1, AvgFillPrice: 100.5, Status: OrderStatusFilled},
	}
	return NewVenueAdapter("fake", fe, conv), fe
}

func TestVenueAdapter_GetBalanceConvertsToDecimal(t *testing.T) {
	a, _ := newTestAdapter()
	bal, err := a.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bal.Equal(bal.Truncate(8)) || bal.InexactFloat64() != 500 {
		t.Fatalf("expected balance 500, got %s", bal)
	}
}

func TestVenueAdapter_GetOrderBookTranslatesSymbol(t *testing.T) {
	a, _ := newTestAdapter()
	ob, err := a.GetOrderBook(context.Background(), "BTC-USDT-PERP", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ob.Symbol != "BTC-USDT-PERP" || ob.Venue != "fake" {
		t.Fatalf("unexpected snapshot: %+v", ob)
	}
	if len(ob.Bids) != 1 || len(ob.Asks) != 1 {
		t.Fatalf("expected one level each side, got bids=%d asks=%d", len(ob.Bids), len(ob.Asks))
	}
}

func TestVenueAdapter_CreateOrder(t *testing.T) {
	a, _ := newTestAdapter()
	order, err := a.CreateOrder(context.Background(), "BTC-USDT-PERP", venue.SideBuy, "market", dec.New(1, 0), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Symbol != "BTC-USDT-PERP" || order.Status != venue.OrderStatus(OrderStatusFilled) {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestVenueAdapter_CancelOrderUnsupported(t *testing.T) {
	a, _ := newTestAdapter()
	if err := a.CancelOrder(context.Background(), "BTC-USDT-PERP", "1"); err == nil {
		t.Fatalf("expected unsupported error")
	}
	if _, err := a.GetOpenOrders(context.Background(), "BTC-USDT-PERP"); err == nil {
		t.Fatalf("expected unsupported error")
	}
}

func TestVenueAdapter_SubscribePositionsConvertsSymbol(t *testing.T) {
	a, _ := newTestAdapter()
	received := make(chan *venue.Position, 1)
	if err := a.SubscribePositions(func(p *venue.Position) { received <- p }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case p := <-received:
		if p.Symbol != "BTC-USDT-PERP" || p.Side != venue.PositionShort {
			t.Fatalf("unexpected position: %+v", p)
		}
	default:
		t.Fatalf("expected callback to fire synchronously")
	}
}

func TestVenueAdapter_SetLeverageIsNoop(t *testing.T) {
	a, _ := newTestAdapter()
	if err := a.SetLeverage(context.Background(), "BTC-USDT-PERP", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
