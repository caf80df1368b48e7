package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"kitetrader/internal/session"
	"kitetrader/pkg/kiteconnect"
)

type fakeExchanger struct {
	gotToken  string
	gotSecret string
	err       error
}

func (f *fakeExchanger) APIKey() string { return "test_key" }

func (f *fakeExchanger) LoginURL() string {
	return "https://kite.zerodha.com/connect/login?v=3&api_key=test_key"
}

func (f *fakeExchanger) GenerateSession(_ context.Context, token, secret string) (*kiteconnect.UserSession, error) {
	f.gotToken = token
	f.gotSecret = secret
	if f.err != nil {
		return nil, f.err
	}
	return &kiteconnect.UserSession{
		UserID:      "AB1234",
		UserName:    "Test User",
		AccessToken: "access-" + token,
	}, nil
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func newTestFlow(t *testing.T, ex *fakeExchanger, port int) (*Flow, session.Store) {
	t.Helper()
	store, err := session.NewFileStore(filepath.Join(t.TempDir(), "kite_session.json"))
	if err != nil {
		t.Fatal(err)
	}
	flow := NewFlow(Config{
		Exchanger:   ex,
		Store:       store,
		APISecret:   "test_secret",
		RedirectURI: fmt.Sprintf("http://127.0.0.1:%d/callback", port),
		Timeout:     5 * time.Second,
		OpenBrowser: func(string) error { return nil },
	})
	return flow, store
}

func TestBrowserLoginFlow(t *testing.T) {
	port := freePort(t)
	ex := &fakeExchanger{}
	flow, store := newTestFlow(t, ex, port)

	// Stand in for the user: once the "browser" opens, hit the callback
	// with the one-time request token like Kite's redirect would.
	flow.cfg.OpenBrowser = func(loginURL string) error {
		if loginURL != ex.LoginURL() {
			t.Errorf("browser opened at %q", loginURL)
		}
		go func() {
			url := fmt.Sprintf("http://127.0.0.1:%d/callback?request_token=req-abc&action=login&status=success", port)
			for i := 0; i < 50; i++ {
				resp, err := http.Get(url)
				if err == nil {
					resp.Body.Close()
					return
				}
				time.Sleep(20 * time.Millisecond)
			}
		}()
		return nil
	}

	sess, err := flow.Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.AccessToken != "access-req-abc" || sess.UserID != "AB1234" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if ex.gotToken != "req-abc" || ex.gotSecret != "test_secret" {
		t.Errorf("exchange saw token=%q secret=%q", ex.gotToken, ex.gotSecret)
	}
	if flow.State() != StateAuthenticated {
		t.Errorf("state = %v, want AUTHENTICATED", flow.State())
	}

	saved, err := store.Load()
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if saved.AccessToken != "access-req-abc" || saved.APIKey != "test_key" {
		t.Errorf("persisted session: %+v", saved)
	}
	if saved.CreatedAt.IsZero() {
		t.Error("persisted session has zero CreatedAt")
	}
}

func TestBrowserLoginTimeout(t *testing.T) {
	port := freePort(t)
	flow, _ := newTestFlow(t, &fakeExchanger{}, port)
	flow.cfg.Timeout = 50 * time.Millisecond

	_, err := flow.Login(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if flow.State() != StateNoSession {
		t.Errorf("state after timeout = %v, want NO_SESSION", flow.State())
	}
}

func TestExchangeFailureResetsState(t *testing.T) {
	port := freePort(t)
	ex := &fakeExchanger{err: &kiteconnect.Error{Type: kiteconnect.TokenException, Message: "invalid checksum"}}
	flow, store := newTestFlow(t, ex, port)

	_, err := flow.Exchange(context.Background(), "req-bad")
	if err == nil {
		t.Fatal("expected exchange error")
	}
	if flow.State() != StateNoSession {
		t.Errorf("state after failed exchange = %v, want NO_SESSION", flow.State())
	}
	if _, lerr := store.Load(); !errors.Is(lerr, session.ErrNoSession) {
		t.Errorf("no session should be persisted, got %v", lerr)
	}
}

func TestHeadlessLogin(t *testing.T) {
	// Fake Kite web login: password, twofa, then the connect redirect
	// carrying the request token.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("user_id") != "AB1234" || r.FormValue("password") != "secret" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"status":"error","message":"bad credentials"}`)
			return
		}
		fmt.Fprint(w, `{"status":"success","data":{"request_id":"rid-1","twofa_type":"totp"}}`)
	})
	mux.HandleFunc("/api/twofa", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("request_id") != "rid-1" || r.FormValue("twofa_value") == "" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"status":"error","message":"bad code"}`)
			return
		}
		fmt.Fprint(w, `{"status":"success","data":{}}`)
	})
	mux.HandleFunc("/connect/login", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/redirect?request_token=req-headless&status=success", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ex := &fakeExchanger{}
	flow, _ := newTestFlow(t, ex, freePort(t))
	flow.cfg.KiteBaseURL = srv.URL

	sess, err := flow.LoginHeadless(context.Background(), Credentials{
		UserID:     "AB1234",
		Password:   "secret",
		TOTPSecret: "JBSWY3DPEHPK3PXP",
	})
	if err != nil {
		t.Fatalf("LoginHeadless: %v", err)
	}
	if sess.AccessToken != "access-req-headless" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if flow.State() != StateAuthenticated {
		t.Errorf("state = %v, want AUTHENTICATED", flow.State())
	}
}

func TestHeadlessLoginBadPassword(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"status":"error","message":"Invalid username or password"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	flow, _ := newTestFlow(t, &fakeExchanger{}, freePort(t))
	flow.cfg.KiteBaseURL = srv.URL

	_, err := flow.LoginHeadless(context.Background(), Credentials{
		UserID: "AB1234", Password: "wrong", TOTPSecret: "JBSWY3DPEHPK3PXP",
	})
	if err == nil {
		t.Fatal("expected login failure")
	}
	if flow.State() != StateNoSession {
		t.Errorf("state = %v, want NO_SESSION", flow.State())
	}
}
