// Package kiteconnect is a minimal Go client for the Zerodha Kite Connect
// v3 HTTP API. It covers login/token handling, order placement, and the
// portfolio endpoints used by the trading gateway.
//
// Usage example:
//
//	kc := kiteconnect.New(kiteconnect.Config{APIKey: "your_api_key"})
//	fmt.Println("Login at:", kc.LoginURL())
//	sess, err := kc.GenerateSession(ctx, requestToken, apiSecret)
//	if err != nil { log.Fatal(err) }
//	kc.SetAccessToken(sess.AccessToken)
//	orderID, err := kc.PlaceOrder(ctx, kiteconnect.VarietyRegular, kiteconnect.OrderParams{
//	    Exchange: "NSE", TradingSymbol: "RELIANCE", TransactionType: "BUY",
//	    Quantity: 1, Product: "CNC", OrderType: "MARKET", Validity: "DAY",
//	})
package kiteconnect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultRoot  = "https://api.kite.trade"
	defaultLogin = "https://kite.zerodha.com/connect/login"
	kiteVersion  = "3"
)

var routes = map[string]string{
	"session.token":       "/session/token",
	"session.invalidate":  "/session/token",
	"user.profile":        "/user/profile",
	"orders.place":        "/orders/%s", // variety
	"orders.list":         "/orders",
	"portfolio.positions": "/portfolio/positions",
	"portfolio.holdings":  "/portfolio/holdings",
}

// Config configures a Client.
type Config struct {
	APIKey      string
	AccessToken string

	RootURL  string        // default: https://api.kite.trade
	LoginURL string        // default: https://kite.zerodha.com/connect/login
	Timeout  time.Duration // default: 7s
	Debug    bool
}

// Client talks to the Kite Connect REST API. It is safe for concurrent
// use; the access token may be swapped while requests are in flight.
type Client struct {
	apiKey string

	mu          sync.RWMutex // guards accessToken
	accessToken string

	rootURL  string
	loginURL string
	debug    bool

	httpClient *http.Client

	// SessionExpiryHook, if set, fires once per request that fails with a
	// TokenException, so the owner can invalidate its persisted session.
	SessionExpiryHook func()
}

// New creates a Kite Connect client.
func New(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = defaultLogin
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		apiKey:      cfg.APIKey,
		accessToken: cfg.AccessToken,
		rootURL:     strings.TrimRight(cfg.RootURL, "/"),
		loginURL:    cfg.LoginURL,
		debug:       cfg.Debug,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// SetAccessToken sets the token sent on authenticated requests.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// token reads the current access token.
func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// APIKey returns the configured API key.
func (c *Client) APIKey() string { return c.apiKey }

// LoginURL returns the interactive login URL the user must visit to
// start the OAuth handshake.
func (c *Client) LoginURL() string {
	return fmt.Sprintf("%s?v=%s&api_key=%s", c.loginURL, kiteVersion, url.QueryEscape(c.apiKey))
}

// GenerateSession exchanges a one-time request token (captured from the
// login redirect) plus the API secret for an access token. The checksum
// is SHA-256 over api_key + request_token + api_secret, per the Kite docs.
func (c *Client) GenerateSession(ctx context.Context, requestToken, apiSecret string) (*UserSession, error) {
	sum := sha256.Sum256([]byte(c.apiKey + requestToken + apiSecret))
	params := url.Values{
		"api_key":       {c.apiKey},
		"request_token": {requestToken},
		"checksum":      {hex.EncodeToString(sum[:])},
	}

	data, err := c.do(ctx, http.MethodPost, "session.token", params, nil)
	if err != nil {
		return nil, err
	}
	var sess UserSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, &Error{Type: GeneralException, Message: fmt.Sprintf("decode session: %v", err)}
	}
	if sess.AccessToken == "" {
		return nil, &Error{Type: GeneralException, Message: "token exchange returned no access_token"}
	}
	c.SetAccessToken(sess.AccessToken)
	return &sess, nil
}

// InvalidateAccessToken logs the session out at the brokerage.
func (c *Client) InvalidateAccessToken(ctx context.Context) error {
	params := url.Values{
		"api_key":      {c.apiKey},
		"access_token": {c.token()},
	}
	_, err := c.do(ctx, http.MethodDelete, "session.invalidate", params, nil)
	return err
}

// Profile fetches the user profile. A TokenException here means the
// access token is no longer valid.
func (c *Client) Profile(ctx context.Context) (*UserProfile, error) {
	data, err := c.do(ctx, http.MethodGet, "user.profile", nil, nil)
	if err != nil {
		return nil, err
	}
	var p UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &Error{Type: GeneralException, Message: fmt.Sprintf("decode profile: %v", err)}
	}
	return &p, nil
}

// PlaceOrder submits one order and returns the brokerage order id.
// Rejections (margin, symbol, market closed) come back as *Error with the
// brokerage message intact; they are never retried here.
func (c *Client) PlaceOrder(ctx context.Context, variety string, p OrderParams) (string, error) {
	params := url.Values{
		"exchange":         {p.Exchange},
		"tradingsymbol":    {p.TradingSymbol},
		"transaction_type": {p.TransactionType},
		"quantity":         {strconv.FormatInt(p.Quantity, 10)},
		"product":          {p.Product},
		"order_type":       {p.OrderType},
	}
	if p.Validity != "" {
		params.Set("validity", p.Validity)
	}
	if p.Price > 0 {
		params.Set("price", formatPrice(p.Price))
	}
	if p.TriggerPrice > 0 {
		params.Set("trigger_price", formatPrice(p.TriggerPrice))
	}
	if p.Tag != "" {
		params.Set("tag", p.Tag)
	}

	data, err := c.do(ctx, http.MethodPost, "orders.place", params, []any{variety})
	if err != nil {
		return "", err
	}
	var resp struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil || resp.OrderID == "" {
		return "", &Error{Type: GeneralException, Message: fmt.Sprintf("unexpected place order response: %s", data)}
	}
	return resp.OrderID, nil
}

// Positions returns the day and net position books.
func (c *Client) Positions(ctx context.Context) (*Positions, error) {
	data, err := c.do(ctx, http.MethodGet, "portfolio.positions", nil, nil)
	if err != nil {
		return nil, err
	}
	var pos Positions
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, &Error{Type: GeneralException, Message: fmt.Sprintf("decode positions: %v", err)}
	}
	return &pos, nil
}

// ---- request plumbing ----

// envelope is the uniform Kite response wrapper.
type envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, route string, params url.Values, pathArgs []any) (json.RawMessage, error) {
	uri, ok := routes[route]
	if !ok {
		return nil, &Error{Type: GeneralException, Message: "unknown route: " + route}
	}
	if len(pathArgs) > 0 {
		uri = fmt.Sprintf(uri, pathArgs...)
	}
	reqURL := c.rootURL + uri

	var body io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		if len(params) > 0 {
			reqURL += "?" + params.Encode()
		}
	} else if params != nil {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, &Error{Type: GeneralException, Message: err.Error()}
	}
	req.Header.Set("X-Kite-Version", kiteVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "token "+c.apiKey+":"+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Type: NetworkException, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Type: NetworkException, Message: err.Error(), Code: resp.StatusCode}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &Error{
			Type:    GeneralException,
			Message: fmt.Sprintf("couldn't parse JSON response (HTTP %d): %.200s", resp.StatusCode, raw),
			Code:    resp.StatusCode,
		}
	}

	if env.Status == "error" || env.ErrorType != "" {
		et := env.ErrorType
		if et == "" {
			et = GeneralException
		}
		if et == TokenException && c.SessionExpiryHook != nil {
			c.SessionExpiryHook()
		}
		return nil, &Error{Type: et, Message: env.Message, Code: resp.StatusCode}
	}
	return env.Data, nil
}

// formatPrice renders a price without trailing float noise; Kite accepts
// up to two decimal places for equity.
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
