package venue

import (
	"context"

	"arbitrage/internal/dec"
)

// Adapter is the uniform per-venue capability contract.
// Each concrete venue (internal/venue/bybit, .../okx, ...) implements
// this without any shared base type — "no inheritance tree; variants
// of failure are explicit tagged values".
type Adapter interface {
	// Connect establishes REST/WS sessions. Authenticate is folded in:
	// an empty apiKey/secret degrades to public-only mode rather than
	// failing, per the design
	Connect(ctx context.Context, apiKey, secret, passphrase string) error

	// Name returns the venue's lowercase short id.
	Name() ID

	// Disconnect releases WS sessions and REST clients, and must close
	// any listenKey this adapter created.
	Disconnect(ctx context.Context) error

	// Market data (pull).
	GetOrderBook(ctx context.Context, symbol Symbol, depth int) (*OrderBookSnapshot, error)
	GetTicker(ctx context.Context, symbol Symbol) (*TickerSnapshot, error)
	GetTradingFee(ctx context.Context, symbol Symbol) (dec.D, error)
	GetLimits(ctx context.Context, symbol Symbol) (*Limits, error)
	GetBalance(ctx context.Context) (dec.D, error)

	// Market data (push). Callbacks are invoked in arrival order per
	// stream; implementations may coalesce but must not drop the final
	// state before idle (callback discipline).
	SubscribeOrderBook(symbol Symbol, cb func(*OrderBookSnapshot)) error
	SubscribeTicker(symbol Symbol, cb func(*TickerSnapshot)) error
	SubscribePositions(cb func(*Position)) error

	// ResetMarketCallbacks re-arms subscriptions after a controlled
	// reconnect (self-heal, ) without duplicating handlers.
	ResetMarketCallbacks()

	// Trading.
	CreateOrder(ctx context.Context, symbol Symbol, side Side, orderType string, qty dec.D, price *dec.D) (*Order, error)
	CancelOrder(ctx context.Context, symbol Symbol, orderID string) error
	CancelAllOrders(ctx context.Context, symbol Symbol) error
	GetOpenOrders(ctx context.Context, symbol Symbol) ([]*Order, error)
	GetPositions(ctx context.Context) ([]*Position, error)
	ClosePosition(ctx context.Context, symbol Symbol, side Side, qty dec.D) error

	// Setup.
	SetLeverage(ctx context.Context, symbol Symbol, leverage int) error
	SetMarginMode(ctx context.Context, symbol Symbol, isolated bool) error
}
