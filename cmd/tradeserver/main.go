// cmd/tradeserver — REST trade gateway over Kite Connect.
//
// Serves order placement, positions, and session endpoints on
// SERVER_ADDR, with Prometheus metrics on METRICS_ADDR. Sessions come
// from a one-time login (cmd/kiteauth, or POST /auth/login when TOTP
// credentials are configured); the server never opens a browser itself.
//
// Config (env vars, .env supported):
//
//	KITE_API_KEY / KITE_API_SECRET — Kite Connect app credentials
//	KITE_USER_ID / KITE_PASSWORD / KITE_TOTP_SECRET — optional headless login
//	SESSION_BACKEND — "file" (default) or "redis"
//	PAPER_MODE      — "true" to accept orders locally, no Kite calls
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kitetrader/config"
	"kitetrader/internal/api"
	"kitetrader/internal/auth"
	"kitetrader/internal/logger"
	"kitetrader/internal/metrics"
	"kitetrader/internal/notify"
	"kitetrader/internal/session"
	"kitetrader/internal/trade"
	"kitetrader/internal/tradelog"
	"kitetrader/pkg/kiteconnect"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[tradeserver] starting...")

	cfg := config.Load()
	logger.Init("tradeserver", logger.ParseLevel(cfg.LogLevel))

	// ---- Session store ----
	var store session.Store
	switch cfg.SessionBackend {
	case "redis":
		rs, err := session.NewRedisStore(session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("[tradeserver] redis session store: %v", err)
		}
		defer rs.Close()
		store = rs
	case "file":
		fs, err := session.NewFileStore(cfg.SessionFile)
		if err != nil {
			log.Fatalf("[tradeserver] file session store: %v", err)
		}
		store = fs
	default:
		log.Fatalf("[tradeserver] unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}

	// ---- Order log + journal ----
	orderLog, err := tradelog.NewLog(cfg.OrderLogFile)
	if err != nil {
		log.Fatalf("[tradeserver] order log: %v", err)
	}
	journal, err := tradelog.NewJournal(cfg.JournalPath)
	if err != nil {
		log.Fatalf("[tradeserver] order journal: %v", err)
	}
	defer journal.Close()

	// ---- Metrics ----
	m := metrics.New()
	go metrics.Serve(cfg.MetricsAddr)

	// ---- Notifiers ----
	var notifiers notify.Multi
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	var notifier notify.Notifier
	if len(notifiers) > 0 {
		notifier = notifiers
	}

	// ---- Broker ----
	var broker trade.Broker
	var flow *auth.Flow
	var creds auth.Credentials
	if cfg.PaperMode {
		log.Println("[tradeserver] *** PAPER MODE — orders are simulated, no Kite calls ***")
		broker = trade.NewPaperBroker()
	} else {
		kc := kiteconnect.New(kiteconnect.Config{APIKey: cfg.KiteAPIKey})
		broker = kc
		flow = auth.NewFlow(auth.Config{
			Exchanger:   kc,
			Store:       store,
			APISecret:   cfg.KiteAPISecret,
			RedirectURI: cfg.RedirectURI,
			Metrics:     m,
		})
		if cfg.TOTPLoginEnabled() {
			creds = auth.Credentials{
				UserID:     cfg.KiteUserID,
				Password:   cfg.KitePassword,
				TOTPSecret: cfg.KiteTOTPSecret,
			}
			log.Println("[tradeserver] TOTP auto-login enabled (POST /auth/login)")
		}
	}

	facade := trade.NewFacade(trade.Config{
		Store:         store,
		Broker:        broker,
		OrderLog:      orderLog,
		Journal:       journal,
		Metrics:       m,
		Notifier:      notifier,
		SessionMaxAge: cfg.SessionMaxAge,
		PaperMode:     cfg.PaperMode,
	})

	if st := facade.Status(time.Now()); st.Authenticated {
		log.Printf("[tradeserver] active session for %s (%s), age %s", st.UserName, st.UserID, st.SessionAge)
	} else {
		log.Println("[tradeserver] no active session — trading endpoints return 401 until login")
	}

	srv := api.NewServer(api.Config{
		Addr:    cfg.ServerAddr,
		Facade:  facade,
		Flow:    flow,
		Creds:   creds,
		Journal: journal,
		Metrics: m,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// ---- Wait for shutdown signal ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("[tradeserver] received %v, shutting down...", sig)
	case err := <-errCh:
		log.Printf("[tradeserver] server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[tradeserver] shutdown: %v", err)
	}
	log.Println("[tradeserver] stopped")
}
