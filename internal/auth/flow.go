// Package auth implements the one-time Kite Connect login flow as an
// explicit state machine:
//
//	StateNoSession → StateAwaitingLogin → StateExchangePending → StateAuthenticated
//
// and back to StateNoSession on expiry, exchange failure, or logout.
// The flow is interactive by design and always runs out-of-band from
// request handling (cmd/kiteauth, or the explicit /auth/login endpoint
// in TOTP mode) — never inline inside a trade request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"kitetrader/internal/metrics"
	"kitetrader/internal/model"
	"kitetrader/internal/session"
	"kitetrader/pkg/kiteconnect"
)

// State is a position in the login state machine.
type State int

const (
	StateNoSession State = iota
	StateAwaitingLogin
	StateExchangePending
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateNoSession:
		return "NO_SESSION"
	case StateAwaitingLogin:
		return "AWAITING_BROWSER_LOGIN"
	case StateExchangePending:
		return "TOKEN_EXCHANGE_PENDING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	}
	return "UNKNOWN"
}

// TokenExchanger is the brokerage side of the handshake: it provides the
// login URL and swaps a one-time request token for an access token.
type TokenExchanger interface {
	APIKey() string
	LoginURL() string
	GenerateSession(ctx context.Context, requestToken, apiSecret string) (*kiteconnect.UserSession, error)
}

var _ TokenExchanger = (*kiteconnect.Client)(nil)

// Config wires a Flow.
type Config struct {
	Exchanger   TokenExchanger
	Store       session.Store
	APISecret   string
	RedirectURI string        // must match the app's registered redirect
	Timeout     time.Duration // browser login wait, default 5m
	Metrics     *metrics.Metrics

	// OpenBrowser launches the system browser; tests override it.
	OpenBrowser func(url string) error

	// KiteBaseURL is the login origin for headless TOTP login
	// (default https://kite.zerodha.com); tests point it elsewhere.
	KiteBaseURL string
}

// Flow runs the login handshake and persists the resulting session.
type Flow struct {
	cfg Config

	mu    sync.Mutex
	state State
}

// NewFlow creates a Flow in StateNoSession.
func NewFlow(cfg Config) *Flow {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.OpenBrowser == nil {
		cfg.OpenBrowser = openBrowser
	}
	if cfg.KiteBaseURL == "" {
		cfg.KiteBaseURL = "https://kite.zerodha.com"
	}
	return &Flow{cfg: cfg}
}

// State returns the current machine state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// Login runs the browser-assisted handshake: it listens on the redirect
// URI, opens the system browser at the Kite login page, waits for the
// one-time request token, exchanges it, and persists the session.
// Failure (timeout, user cancel via ctx, bad exchange) leaves the
// machine in StateNoSession.
func (f *Flow) Login(ctx context.Context) (model.Session, error) {
	f.setState(StateAwaitingLogin)

	token, err := f.captureRequestToken(ctx)
	if err != nil {
		f.setState(StateNoSession)
		return model.Session{}, err
	}
	return f.Exchange(ctx, token)
}

// Exchange swaps a request token for an access token and persists the
// session. Exposed separately so headless login and manual token entry
// share the same tail of the machine.
func (f *Flow) Exchange(ctx context.Context, requestToken string) (model.Session, error) {
	f.setState(StateExchangePending)

	us, err := f.cfg.Exchanger.GenerateSession(ctx, requestToken, f.cfg.APISecret)
	if err != nil {
		f.setState(StateNoSession)
		return model.Session{}, fmt.Errorf("token exchange: %w", err)
	}

	sess := model.Session{
		AccessToken: us.AccessToken,
		APIKey:      f.cfg.Exchanger.APIKey(),
		UserID:      us.UserID,
		UserName:    us.UserName,
		CreatedAt:   time.Now(),
	}
	if err := f.cfg.Store.Save(sess); err != nil {
		f.setState(StateNoSession)
		return model.Session{}, fmt.Errorf("save session: %w", err)
	}

	if f.cfg.Metrics != nil {
		f.cfg.Metrics.SessionRefreshes.Inc()
	}
	f.setState(StateAuthenticated)
	log.Printf("[auth] session saved for %s (%s)", us.UserName, us.UserID)
	return sess, nil
}

// Invalidate drops back to StateNoSession (expiry or logout observed
// elsewhere).
func (f *Flow) Invalidate() { f.setState(StateNoSession) }

// captureRequestToken serves the OAuth redirect on the configured URI
// and returns the request_token query parameter from the first valid
// callback.
func (f *Flow) captureRequestToken(ctx context.Context) (string, error) {
	ru, err := url.Parse(f.cfg.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("parse redirect URI: %w", err)
	}
	port := ru.Port()
	if port == "" {
		port = "8080"
	}
	expectedPath := ru.Path
	if expectedPath == "" {
		expectedPath = "/"
	}

	ln, err := net.Listen("tcp", "127.0.0.1:"+port)
	if err != nil {
		return "", fmt.Errorf("callback listener: %w", err)
	}

	tokenCh := make(chan string, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != expectedPath {
			http.NotFound(w, r)
			return
		}
		token := r.URL.Query().Get("request_token")
		w.Header().Set("Content-Type", "text/html")
		if token == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, callbackFailurePage)
			return
		}
		fmt.Fprint(w, callbackSuccessPage)
		select {
		case tokenCh <- token:
		default: // already captured
		}
	})}
	go srv.Serve(ln)
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	loginURL := f.cfg.Exchanger.LoginURL()
	if err := f.cfg.OpenBrowser(loginURL); err != nil {
		log.Printf("[auth] could not open browser (%v); visit manually: %s", err, loginURL)
	} else {
		log.Printf("[auth] browser opened at %s, waiting for login...", loginURL)
	}

	select {
	case token := <-tokenCh:
		log.Printf("[auth] request token captured")
		return token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(f.cfg.Timeout):
		return "", errors.New("login timed out waiting for the browser redirect")
	}
}

const callbackSuccessPage = `<!DOCTYPE html>
<html><head><title>Login Successful</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 100px;">
<h1>Login successful</h1>
<p>The access token is being saved. You can close this window.</p>
</body></html>`

const callbackFailurePage = `<!DOCTYPE html>
<html><head><title>Login Failed</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 100px;">
<h1>Login failed</h1>
<p>No request token received. Please try again.</p>
</body></html>`
