package trade

import (
	"context"

	"kitetrader/pkg/kiteconnect"
)

// Broker abstracts the brokerage operations the facade needs, so tests
// and paper mode can substitute the live Kite client.
type Broker interface {
	// SetAccessToken installs the session token used on subsequent calls.
	SetAccessToken(token string)

	// PlaceOrder submits one order and returns the brokerage order id.
	PlaceOrder(ctx context.Context, variety string, p kiteconnect.OrderParams) (string, error)

	// Positions returns the day and net position books.
	Positions(ctx context.Context) (*kiteconnect.Positions, error)

	// InvalidateAccessToken revokes the session at the brokerage.
	InvalidateAccessToken(ctx context.Context) error
}

var _ Broker = (*kiteconnect.Client)(nil)
