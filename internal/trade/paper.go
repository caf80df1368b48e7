package trade

import (
	"context"
	"fmt"
	"sync"

	"kitetrader/pkg/kiteconnect"
)

// PaperBroker simulates the brokerage in memory: every valid order is
// accepted and tracked as a net position. It lets the gateway run with
// no Kite credentials and backs the facade tests.
type PaperBroker struct {
	mu        sync.Mutex
	orderSeq  int64
	positions map[string]*kiteconnect.Position
}

// NewPaperBroker creates an empty paper brokerage.
func NewPaperBroker() *PaperBroker {
	return &PaperBroker{positions: make(map[string]*kiteconnect.Position)}
}

// SetAccessToken is a no-op; paper trading needs no session token.
func (b *PaperBroker) SetAccessToken(string) {}

// PlaceOrder accepts the order unconditionally and adjusts the tracked
// position. Order ids are PAPER-<seq>.
func (b *PaperBroker) PlaceOrder(_ context.Context, _ string, p kiteconnect.OrderParams) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", b.orderSeq)

	key := p.Exchange + ":" + p.TradingSymbol + ":" + p.Product
	pos, ok := b.positions[key]
	if !ok {
		pos = &kiteconnect.Position{
			TradingSymbol: p.TradingSymbol,
			Exchange:      p.Exchange,
			Product:       p.Product,
		}
		b.positions[key] = pos
	}

	qty := p.Quantity
	if p.TransactionType == "SELL" {
		qty = -qty
	}
	// Fill at the limit price when one is given; market fills keep the
	// previous average (no market data in paper mode). A fill that
	// flattens the position has no average to compute.
	switch {
	case pos.Quantity+qty == 0:
		pos.AveragePrice = 0
	case qty > 0 && p.Price > 0:
		total := pos.AveragePrice*float64(pos.Quantity) + p.Price*float64(qty)
		pos.AveragePrice = total / float64(pos.Quantity+qty)
	}
	pos.Quantity += qty
	if p.Price > 0 {
		pos.LastPrice = p.Price
	}
	return orderID, nil
}

// Positions returns the simulated net book.
func (b *PaperBroker) Positions(context.Context) (*kiteconnect.Positions, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	net := make([]kiteconnect.Position, 0, len(b.positions))
	for _, p := range b.positions {
		net = append(net, *p)
	}
	return &kiteconnect.Positions{Net: net, Day: nil}, nil
}

// InvalidateAccessToken is a no-op for paper trading.
func (b *PaperBroker) InvalidateAccessToken(context.Context) error { return nil }

var _ Broker = (*PaperBroker)(nil)
