package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kitetrader/internal/model"
	"kitetrader/internal/session"
	"kitetrader/internal/trade"
	"kitetrader/internal/tradelog"
	"kitetrader/pkg/kiteconnect"
)

type stubBroker struct {
	placeCalls int
	orderID    string
	placeErr   error
	positions  *kiteconnect.Positions
}

func (s *stubBroker) SetAccessToken(string) {}

func (s *stubBroker) PlaceOrder(context.Context, string, kiteconnect.OrderParams) (string, error) {
	s.placeCalls++
	if s.placeErr != nil {
		return "", s.placeErr
	}
	return s.orderID, nil
}

func (s *stubBroker) Positions(context.Context) (*kiteconnect.Positions, error) {
	if s.positions == nil {
		return &kiteconnect.Positions{}, nil
	}
	return s.positions, nil
}

func (s *stubBroker) InvalidateAccessToken(context.Context) error { return nil }

type apiEnv struct {
	ts      *httptest.Server
	broker  *stubBroker
	store   *session.FileStore
	logPath string
}

func newAPIEnv(t *testing.T, journal *tradelog.Journal) *apiEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := session.NewFileStore(filepath.Join(dir, "kite_session.json"))
	if err != nil {
		t.Fatal(err)
	}
	logPath := filepath.Join(dir, "order.log")
	orderLog, err := tradelog.NewLog(logPath)
	if err != nil {
		t.Fatal(err)
	}

	broker := &stubBroker{orderID: "230823000042"}
	facade := trade.NewFacade(trade.Config{
		Store:         store,
		Broker:        broker,
		OrderLog:      orderLog,
		Journal:       journal,
		SessionMaxAge: 24 * time.Hour,
	})

	srv := NewServer(Config{Addr: ":0", Facade: facade, Journal: journal})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &apiEnv{ts: ts, broker: broker, store: store, logPath: logPath}
}

func (e *apiEnv) login(t *testing.T) {
	t.Helper()
	err := e.store.Save(model.Session{
		AccessToken: "tok-live",
		UserID:      "AB1234",
		UserName:    "Test User",
		CreatedAt:   time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (e *apiEnv) postJSON(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(e.ts.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp, out
}

func (e *apiEnv) getJSON(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.ts.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t, nil)
	resp, body := env.getJSON(t, "/")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health: %d %v", resp.StatusCode, body)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("health missing CORS header, got %q", got)
	}
}

func TestBuyEndToEnd(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.login(t)

	resp, body := env.postJSON(t, "/trade/buy", map[string]any{"stock": "RELIANCE", "qty": 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, body)
	}
	if body["success"] != true || body["order_id"] != "230823000042" {
		t.Errorf("unexpected body: %v", body)
	}
	if env.broker.placeCalls != 1 {
		t.Errorf("broker calls = %d", env.broker.placeCalls)
	}

	raw, err := os.ReadFile(env.logPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one order log line, got %d", len(lines))
	}
	for _, part := range []string{"SUCCESS", "BUY", "RELIANCE", "Qty: 1"} {
		if !strings.Contains(lines[0], part) {
			t.Errorf("log line missing %q: %s", part, lines[0])
		}
	}
}

func TestBuyWithoutSession(t *testing.T) {
	env := newAPIEnv(t, nil)

	resp, body := env.postJSON(t, "/trade/buy", map[string]any{"stock": "RELIANCE", "qty": 1})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if body["success"] != false {
		t.Errorf("expected success=false: %v", body)
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "kiteauth") {
		t.Errorf("message should say how to re-authenticate: %q", msg)
	}
	if env.broker.placeCalls != 0 {
		t.Errorf("brokerage reached without a session")
	}
}

func TestBuyValidation(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.login(t)

	resp, body := env.postJSON(t, "/trade/buy", map[string]any{
		"stock": "RELIANCE", "qty": 1, "order_type": "LIMIT",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if body["error_type"] != "ValidationError" {
		t.Errorf("error_type = %v", body["error_type"])
	}
	if env.broker.placeCalls != 0 {
		t.Errorf("brokerage reached despite invalid request")
	}
}

func TestSellBrokerageRejectionVerbatim(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.login(t)
	env.broker.placeErr = &kiteconnect.Error{
		Type:    kiteconnect.InputException,
		Message: "Insufficient holdings for SELL",
		Code:    http.StatusBadRequest,
	}

	resp, body := env.postJSON(t, "/trade/sell", map[string]any{"stock": "INFY", "qty": 5})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "Insufficient holdings for SELL") {
		t.Errorf("brokerage message rewritten: %q", msg)
	}
	if body["error_type"] != kiteconnect.InputException {
		t.Errorf("error_type = %v", body["error_type"])
	}
}

func TestPositionsEndpoint(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.login(t)
	env.broker.positions = &kiteconnect.Positions{
		Net: []kiteconnect.Position{
			{TradingSymbol: "RELIANCE", Exchange: "NSE", Product: "CNC", Quantity: 5},
		},
	}

	resp, body := env.getJSON(t, "/trade/positions")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, body)
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v", body["count"])
	}
}

func TestAuthStatusAndLogout(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.login(t)

	_, body := env.getJSON(t, "/auth/status")
	if body["authenticated"] != true || body["user_id"] != "AB1234" {
		t.Errorf("status before logout: %v", body)
	}

	resp, _ := env.postJSON(t, "/auth/logout", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("logout status = %d", resp.StatusCode)
	}

	_, body = env.getJSON(t, "/auth/status")
	if body["authenticated"] != false {
		t.Errorf("status after logout: %v", body)
	}
}

func TestLoginWithoutTOTPConfig(t *testing.T) {
	env := newAPIEnv(t, nil)

	resp, body := env.postJSON(t, "/auth/login", map[string]any{})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "kiteauth") {
		t.Errorf("message should point at the browser flow: %q", msg)
	}
}

func TestOrderMethodNotAllowed(t *testing.T) {
	env := newAPIEnv(t, nil)
	resp, err := http.Get(env.ts.URL + "/trade/buy")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestJournalEndpoint(t *testing.T) {
	journal, err := tradelog.NewJournal(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer journal.Close()
	env := newAPIEnv(t, journal)
	env.login(t)

	for _, stock := range []string{"RELIANCE", "INFY", "TCS"} {
		resp, _ := env.postJSON(t, "/trade/buy", map[string]any{"stock": stock, "qty": 1})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("buy %s failed: %d", stock, resp.StatusCode)
		}
	}

	resp, body := env.getJSON(t, "/trade/journal?limit=2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("journal status %d", resp.StatusCode)
	}
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}

	resp, _ = env.getJSON(t, "/trade/journal?limit=0")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", resp.StatusCode)
	}
}

func TestRouteLabelBoundsCardinality(t *testing.T) {
	cases := []struct{ path, want string }{
		{"/", "/"},
		{"/trade/buy", "/trade/buy"},
		{"/trade/journal", "/trade/journal"},
		{"/favicon.ico", "other"},
		{"/trade/buy/extra", "other"},
		{"/scanned-by-a-bot-12345", "other"},
	}
	for _, tc := range cases {
		if got := routeLabel(tc.path); got != tc.want {
			t.Errorf("routeLabel(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestMarketStatusEndpoint(t *testing.T) {
	env := newAPIEnv(t, nil)
	resp, body := env.getJSON(t, "/market/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if _, ok := body["open"].(bool); !ok {
		t.Errorf("open not a bool: %v", body)
	}
	if s, _ := body["status"].(string); s == "" {
		t.Error("empty status string")
	}
}
