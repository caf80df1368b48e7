package kiteconnect

import "time"

// UserSession is the payload returned by the token exchange.
type UserSession struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
	PublicToken string `json:"public_token"`
	LoginTime   string `json:"login_time"`
}

// UserProfile is the payload of GET /user/profile. Fetching it is the
// cheapest way to probe whether an access token is still valid.
type UserProfile struct {
	UserID    string   `json:"user_id"`
	UserName  string   `json:"user_name"`
	Email     string   `json:"email"`
	UserType  string   `json:"user_type"`
	Broker    string   `json:"broker"`
	Exchanges []string `json:"exchanges"`
}

// OrderParams are the fields of a Kite order placement request.
// Zero-valued optional fields are omitted from the wire request.
type OrderParams struct {
	Exchange        string
	TradingSymbol   string
	TransactionType string // BUY, SELL
	Quantity        int64
	Product         string // CNC, MIS, NRML
	OrderType       string // MARKET, LIMIT, SL, SL-M
	Validity        string // DAY, IOC
	Price           float64
	TriggerPrice    float64
	Tag             string
}

// Position is one row of the positions response.
type Position struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Exchange      string  `json:"exchange"`
	Product       string  `json:"product"`
	Quantity      int64   `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	PnL           float64 `json:"pnl"`
}

// Positions groups the day and net position books.
type Positions struct {
	Day []Position `json:"day"`
	Net []Position `json:"net"`
}

// Order varieties accepted by PlaceOrder.
const (
	VarietyRegular = "regular"
	VarietyAMO     = "amo"
	VarietyCO      = "co"
	VarietyIceberg = "iceberg"
)

// DefaultTimeout bounds each HTTP round trip to the Kite API.
const DefaultTimeout = 7 * time.Second
