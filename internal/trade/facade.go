// Package trade is the trading facade: it validates order requests,
// enforces the session precondition, issues exactly one brokerage call
// per operation, and records the outcome. No retries — brokerage
// rejections surface verbatim.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"kitetrader/internal/metrics"
	"kitetrader/internal/model"
	"kitetrader/internal/notify"
	"kitetrader/internal/session"
	"kitetrader/internal/tradelog"
	"kitetrader/pkg/kiteconnect"
)

const reauthHint = "Not authenticated. Run kiteauth to login, or POST /auth/login when TOTP auto-login is configured."

// Config wires a Facade. Store, Broker, and OrderLog are required;
// Journal, Metrics, and Notifier are optional.
type Config struct {
	Store         session.Store
	Broker        Broker
	OrderLog      *tradelog.Log
	Journal       *tradelog.Journal
	Metrics       *metrics.Metrics
	Notifier      notify.Notifier
	SessionMaxAge time.Duration

	// PaperMode skips the session precondition; the paper broker needs
	// no brokerage credentials.
	PaperMode bool
}

// Facade is the single entry point for trading operations. The session
// is loaded fresh from the store on every call — never cached
// process-wide — so expiry and out-of-band re-login are always observed.
type Facade struct {
	cfg Config
}

// NewFacade creates the trading facade.
func NewFacade(cfg Config) *Facade {
	if cfg.SessionMaxAge <= 0 {
		cfg.SessionMaxAge = 24 * time.Hour
	}
	return &Facade{cfg: cfg}
}

// PlaceOrder validates the request, requires a live session, and issues
// exactly one brokerage order call. side is model.SideBuy or
// model.SideSell.
func (f *Facade) PlaceOrder(ctx context.Context, side string, req model.OrderRequest) (model.OrderResult, error) {
	req.ApplyDefaults()

	if err := Validate(req); err != nil {
		if f.cfg.Metrics != nil {
			f.cfg.Metrics.ValidationRejects.Inc()
		}
		return model.OrderResult{}, err
	}

	if !f.cfg.PaperMode {
		sess, err := f.requireSession()
		if err != nil {
			return model.OrderResult{}, err
		}
		f.cfg.Broker.SetAccessToken(sess.AccessToken)
	}

	params := kiteconnect.OrderParams{
		Exchange:        req.Exchange,
		TradingSymbol:   req.Stock,
		TransactionType: side,
		Quantity:        req.Qty,
		Product:         req.Product,
		OrderType:       req.OrderType,
		Validity:        req.Validity,
	}
	if req.Price != nil {
		params.Price = *req.Price
	}
	if req.TriggerPrice != nil {
		params.TriggerPrice = *req.TriggerPrice
	}

	start := time.Now()
	orderID, err := f.cfg.Broker.PlaceOrder(ctx, req.Variety, params)
	if f.cfg.Metrics != nil {
		f.cfg.Metrics.BrokerCallDur.Observe(time.Since(start).Seconds())
	}

	entry := tradelog.Entry{
		Time:         time.Now(),
		Side:         side,
		Stock:        req.Stock,
		Qty:          req.Qty,
		Exchange:     req.Exchange,
		Product:      req.Product,
		OrderType:    req.OrderType,
		Price:        req.Price,
		TriggerPrice: req.TriggerPrice,
	}

	if err != nil {
		entry.Status = "FAILED"
		entry.ErrMsg = err.Error()
		f.record(entry)
		f.count(side, "failed")
		f.announce(notify.Event{Side: side, Stock: req.Stock, Qty: req.Qty, Message: err.Error()})

		if kiteconnect.IsTokenError(err) {
			// Failure-based invalidation: the brokerage says the token is
			// dead, so the persisted session is cleared before reporting.
			if cerr := f.cfg.Store.Clear(); cerr != nil {
				log.Printf("[trade] clearing stale session: %v", cerr)
			}
			if f.cfg.Metrics != nil {
				f.cfg.Metrics.AuthFailures.Inc()
			}
			return model.OrderResult{}, &AuthError{Msg: "access token expired or invalid. " + reauthHint}
		}
		return model.OrderResult{}, err
	}

	entry.Status = "SUCCESS"
	entry.OrderID = orderID
	f.record(entry)
	f.count(side, "success")
	f.announce(notify.Event{Side: side, Stock: req.Stock, Qty: req.Qty, OrderID: orderID, Success: true})

	return model.OrderResult{
		Success: true,
		Message: fmt.Sprintf("%s order placed: %d units of %s", side, req.Qty, req.Stock),
		OrderID: orderID,
		Details: model.OrderDetails{
			Stock:        req.Stock,
			Qty:          req.Qty,
			Side:         side,
			Exchange:     req.Exchange,
			Product:      req.Product,
			OrderType:    req.OrderType,
			Price:        req.Price,
			TriggerPrice: req.TriggerPrice,
		},
	}, nil
}

// Positions returns the net position book. Same auth precondition as
// PlaceOrder, one brokerage call, no transformation beyond pass-through.
func (f *Facade) Positions(ctx context.Context) ([]kiteconnect.Position, error) {
	if !f.cfg.PaperMode {
		sess, err := f.requireSession()
		if err != nil {
			return nil, err
		}
		f.cfg.Broker.SetAccessToken(sess.AccessToken)
	}

	start := time.Now()
	pos, err := f.cfg.Broker.Positions(ctx)
	if f.cfg.Metrics != nil {
		f.cfg.Metrics.BrokerCallDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if kiteconnect.IsTokenError(err) {
			if cerr := f.cfg.Store.Clear(); cerr != nil {
				log.Printf("[trade] clearing stale session: %v", cerr)
			}
			if f.cfg.Metrics != nil {
				f.cfg.Metrics.AuthFailures.Inc()
			}
			return nil, &AuthError{Msg: "access token expired or invalid. " + reauthHint}
		}
		return nil, err
	}
	return pos.Net, nil
}

// AuthStatus reports whether a usable session exists, without touching
// the brokerage.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	UserName      string `json:"user_name,omitempty"`
	SessionAge    string `json:"session_age,omitempty"`
}

// Status returns the current authentication state.
func (f *Facade) Status(now time.Time) AuthStatus {
	if f.cfg.PaperMode {
		return AuthStatus{Authenticated: true, UserName: "paper"}
	}
	sess, err := f.cfg.Store.Load()
	if err != nil {
		return AuthStatus{Authenticated: false}
	}
	if session.IsExpired(sess, now, f.cfg.SessionMaxAge) {
		return AuthStatus{Authenticated: false}
	}
	return AuthStatus{
		Authenticated: true,
		UserID:        sess.UserID,
		UserName:      sess.UserName,
		SessionAge:    sess.Age(now).Truncate(time.Second).String(),
	}
}

// Logout revokes the token at the brokerage (best effort) and clears the
// session store.
func (f *Facade) Logout(ctx context.Context) error {
	sess, err := f.cfg.Store.Load()
	if err == nil && sess.AccessToken != "" {
		f.cfg.Broker.SetAccessToken(sess.AccessToken)
		if ierr := f.cfg.Broker.InvalidateAccessToken(ctx); ierr != nil {
			log.Printf("[trade] brokerage logout: %v", ierr)
		}
	} else if err != nil && !errors.Is(err, session.ErrNoSession) {
		return &IOError{Msg: "load session", Err: err}
	}
	if err := f.cfg.Store.Clear(); err != nil {
		return &IOError{Msg: "clear session", Err: err}
	}
	return nil
}

// requireSession loads a fresh session and enforces the expiry policy.
func (f *Facade) requireSession() (model.Session, error) {
	sess, err := f.cfg.Store.Load()
	if errors.Is(err, session.ErrNoSession) {
		if f.cfg.Metrics != nil {
			f.cfg.Metrics.AuthFailures.Inc()
		}
		return model.Session{}, &AuthError{Msg: reauthHint}
	}
	if err != nil {
		return model.Session{}, &IOError{Msg: "load session", Err: err}
	}
	if session.IsExpired(sess, time.Now(), f.cfg.SessionMaxAge) {
		if f.cfg.Metrics != nil {
			f.cfg.Metrics.AuthFailures.Inc()
		}
		return model.Session{}, &AuthError{Msg: "session expired. " + reauthHint}
	}
	return sess, nil
}

// record writes the order log line and journal row. Failures are logged,
// never fatal — the order outcome already belongs to the caller.
func (f *Facade) record(e tradelog.Entry) {
	if f.cfg.OrderLog != nil {
		if err := f.cfg.OrderLog.Append(e); err != nil {
			log.Printf("[trade] order log write failed: %v", err)
		}
	}
	if f.cfg.Journal != nil {
		if err := f.cfg.Journal.Record(e); err != nil {
			log.Printf("[trade] journal write failed: %v", err)
		}
	}
}

func (f *Facade) count(side, status string) {
	if f.cfg.Metrics != nil {
		f.cfg.Metrics.OrdersTotal.WithLabelValues(side, status).Inc()
	}
}

// announce pushes the outcome to notifiers without blocking the request.
func (f *Facade) announce(ev notify.Event) {
	if f.cfg.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := f.cfg.Notifier.Send(ctx, ev); err != nil {
			log.Printf("[trade] notify: %v", err)
		}
	}()
}
