package executor

import (
	"context"
	"errors"
	"testing"

	"arbitrage/internal/dec"
	"arbitrage/internal/venue"
)

// stubAdapter implements venue.Adapter with only CreateOrder/ClosePosition
// wired; every other method panics if called, which is fine since the
// executor never reaches them.
type stubAdapter struct {
	venue.Adapter
	name        venue.ID
	createErr   error
	closeErr    error
	closeCalled bool
	closeQty    dec.D
	fillQty     dec.D
}

func (s *stubAdapter) CreateOrder(ctx context.Context, symbol venue.Symbol, side venue.Side, orderType string, qty dec.D, price *dec.D) (*venue.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	fill := qty
	if s.fillQty.IsPositive() {
		fill = s.fillQty
	}
	return &venue.Order{Symbol: symbol, Venue: s.name, Side: side, Quantity: qty, FilledQty: fill, Status: venue.OrderStatusFilled}, nil
}

func (s *stubAdapter) ClosePosition(ctx context.Context, symbol venue.Symbol, side venue.Side, qty dec.D) error {
	s.closeCalled = true
	s.closeQty = qty
	return s.closeErr
}

func lookupFor(buy, sell *stubAdapter) AdapterLookup {
	return func(v venue.ID) (venue.Adapter, bool) {
		switch v {
		case buy.name:
			return buy, true
		case sell.name:
			return sell, true
		default:
			return nil, false
		}
	}
}

func TestExecuteArbitrage_BothLegsFill(t *testing.T) {
	buy := &stubAdapter{name: "bybit"}
	sell := &stubAdapter{name: "okx"}
	e := New(lookupFor(buy, sell))

	req := ExecutionRequest{
		Buy:      Leg{Venue: "bybit", Symbol: "BTC-USDC-PERP", Side: venue.SideBuy},
		Sell:     Leg{Venue: "okx", Symbol: "BTC-USDC-PERP", Side: venue.SideSell},
		Quantity: dec.FromString("0.001"),
	}
	res := e.ExecuteArbitrage(context.Background(), req)
	if !res.Success {
		t.Fatalf("expected success, got err=%v", res.Err)
	}
	if buy.closeCalled || sell.closeCalled {
		t.Fatalf("expected no rollback when both legs fill")
	}
}

func TestExecuteArbitrage_OneLegFailsRollsBackTheOther(t *testing.T) {
	buy := &stubAdapter{name: "bybit"}
	sell := &stubAdapter{name: "okx", createErr: errors.New("rejected")}
	e := New(lookupFor(buy, sell))

	req := ExecutionRequest{
		Buy:      Leg{Venue: "bybit", Symbol: "BTC-USDC-PERP", Side: venue.SideBuy},
		Sell:     Leg{Venue: "okx", Symbol: "BTC-USDC-PERP", Side: venue.SideSell},
		Quantity: dec.FromString("0.001"),
	}
	res := e.ExecuteArbitrage(context.Background(), req)
	if res.Success {
		t.Fatalf("expected failure when one leg is rejected")
	}
	if !res.RolledBack {
		t.Fatalf("expected the filled leg to be rolled back")
	}
	if !buy.closeCalled {
		t.Fatalf("expected ClosePosition called on the filled buy leg")
	}
	if !buy.closeQty.Equal(dec.FromString("0.001")) {
		t.Fatalf("expected rollback qty to match the filled qty, got %s", buy.closeQty)
	}
}

func TestExecuteArbitrage_BothLegsFill_ReportsSuccessQuantity(t *testing.T) {
	buy := &stubAdapter{name: "bybit", fillQty: dec.FromString("0.0008")}
	sell := &stubAdapter{name: "okx", fillQty: dec.FromString("0.001")}
	e := New(lookupFor(buy, sell))

	req := ExecutionRequest{
		Buy:      Leg{Venue: "bybit", Symbol: "BTC-USDC-PERP", Side: venue.SideBuy},
		Sell:     Leg{Venue: "okx", Symbol: "BTC-USDC-PERP", Side: venue.SideSell},
		Quantity: dec.FromString("0.001"),
	}
	res := e.ExecuteArbitrage(context.Background(), req)
	if !res.Success {
		t.Fatalf("expected success, got err=%v", res.Err)
	}
	if !res.SuccessQuantity.Equal(dec.FromString("0.0008")) {
		t.Fatalf("expected success_quantity to be the minimum filled leg, got %s", res.SuccessQuantity)
	}
}

func TestExecuteArbitrage_OneLegFailsReportsEmergencyClose(t *testing.T) {
	buy := &stubAdapter{name: "bybit"}
	sell := &stubAdapter{name: "okx", createErr: errors.New("rejected")}
	e := New(lookupFor(buy, sell))

	req := ExecutionRequest{
		Buy:      Leg{Venue: "bybit", Symbol: "BTC-USDC-PERP", Side: venue.SideBuy},
		Sell:     Leg{Venue: "okx", Symbol: "BTC-USDC-PERP", Side: venue.SideSell},
		Quantity: dec.FromString("0.001"),
	}
	res := e.ExecuteArbitrage(context.Background(), req)
	if len(res.EmergencyCloses) != 1 {
		t.Fatalf("expected one emergency close, got %d", len(res.EmergencyCloses))
	}
	ec := res.EmergencyCloses[0]
	if ec.Venue != "bybit" || ec.Status != "closed" {
		t.Fatalf("unexpected emergency close record: %+v", ec)
	}
	if !ec.Quantity.Equal(dec.FromString("0.001")) {
		t.Fatalf("expected emergency close qty to match the filled leg, got %s", ec.Quantity)
	}
}

func TestExecuteArbitrage_BothLegsFailNoEmergencyClose(t *testing.T) {
	buy := &stubAdapter{name: "bybit", createErr: errors.New("timeout")}
	sell := &stubAdapter{name: "okx", createErr: errors.New("rejected")}
	e := New(lookupFor(buy, sell))

	req := ExecutionRequest{
		Buy:      Leg{Venue: "bybit", Symbol: "BTC-USDC-PERP", Side: venue.SideBuy},
		Sell:     Leg{Venue: "okx", Symbol: "BTC-USDC-PERP", Side: venue.SideSell},
		Quantity: dec.FromString("0.001"),
	}
	res := e.ExecuteArbitrage(context.Background(), req)
	if res.Success {
		t.Fatalf("expected failure when both legs fail")
	}
	if len(res.EmergencyCloses) != 0 {
		t.Fatalf("expected no emergency close when neither leg filled, got %+v", res.EmergencyCloses)
	}
	if buy.closeCalled || sell.closeCalled {
		t.Fatalf("expected no unwind attempt when neither leg filled")
	}
}

func TestExecuteArbitrage_UnknownVenue(t *testing.T) {
	buy := &stubAdapter{name: "bybit"}
	sell := &stubAdapter{name: "okx"}
	e := New(lookupFor(buy, sell))

	req := ExecutionRequest{
		Buy:      Leg{Venue: "bitget", Symbol: "BTC-USDC-PERP", Side: venue.SideBuy},
		Sell:     Leg{Venue: "okx", Symbol: "BTC-USDC-PERP", Side: venue.SideSell},
		Quantity: dec.FromString("0.001"),
	}
	res := e.ExecuteArbitrage(context.Background(), req)
	if res.Success || res.Err == nil {
		t.Fatalf("expected an unknown-venue error")
	}
}

func TestCloseArbitrage_BothLegsSucceed(t *testing.T) {
	buy := &stubAdapter{name: "bybit"}
	sell := &stubAdapter{name: "okx"}
	e := New(lookupFor(buy, sell))

	req := ExecutionRequest{
		Buy:      Leg{Venue: "bybit", Symbol: "BTC-USDC-PERP", Side: venue.SideBuy},
		Sell:     Leg{Venue: "okx", Symbol: "BTC-USDC-PERP", Side: venue.SideSell},
		Quantity: dec.FromString("0.001"),
	}
	res := e.CloseArbitrage(context.Background(), req)
	if !res.Success {
		t.Fatalf("expected close success, got err=%v", res.Err)
	}
	if !buy.closeCalled || !sell.closeCalled {
		t.Fatalf("expected ClosePosition called on both legs")
	}
}
