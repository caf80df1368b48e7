package trade

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"kitetrader/pkg/kiteconnect"
)

func paperOrder(side string, qty int64, price float64) kiteconnect.OrderParams {
	return kiteconnect.OrderParams{
		Exchange:        "NSE",
		TradingSymbol:   "INFY",
		TransactionType: side,
		Quantity:        qty,
		Product:         "MIS",
		OrderType:       "LIMIT",
		Price:           price,
	}
}

func TestPaperBrokerFlattenShort(t *testing.T) {
	b := NewPaperBroker()
	ctx := context.Background()

	if _, err := b.PlaceOrder(ctx, "regular", paperOrder("SELL", 5, 100)); err != nil {
		t.Fatal(err)
	}
	// A priced buy that exactly covers the short leaves a flat position.
	if _, err := b.PlaceOrder(ctx, "regular", paperOrder("BUY", 5, 110)); err != nil {
		t.Fatal(err)
	}

	pos, err := b.Positions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pos.Net) != 1 {
		t.Fatalf("expected 1 position row, got %d", len(pos.Net))
	}
	p := pos.Net[0]
	if p.Quantity != 0 {
		t.Errorf("quantity = %d, want 0", p.Quantity)
	}
	if math.IsInf(p.AveragePrice, 0) || math.IsNaN(p.AveragePrice) {
		t.Fatalf("average price after flattening = %v", p.AveragePrice)
	}
	// The positions response must stay JSON-encodable for the REST layer.
	if _, err := json.Marshal(pos); err != nil {
		t.Errorf("positions not encodable: %v", err)
	}
}

func TestPaperBrokerAveragePrice(t *testing.T) {
	b := NewPaperBroker()
	ctx := context.Background()

	if _, err := b.PlaceOrder(ctx, "regular", paperOrder("BUY", 2, 100)); err != nil {
		t.Fatal(err)
	}
	if _, err := b.PlaceOrder(ctx, "regular", paperOrder("BUY", 2, 200)); err != nil {
		t.Fatal(err)
	}

	pos, err := b.Positions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p := pos.Net[0]
	if p.Quantity != 4 || p.AveragePrice != 150 {
		t.Errorf("position = qty %d avg %v, want qty 4 avg 150", p.Quantity, p.AveragePrice)
	}
}
