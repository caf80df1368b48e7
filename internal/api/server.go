package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"kitetrader/internal/auth"
	"kitetrader/internal/metrics"
	"kitetrader/internal/trade"
	"kitetrader/internal/tradelog"
)

// Config wires the API server. Facade is required; Flow and Creds
// enable POST /auth/login (headless TOTP), Journal enables
// /trade/journal, Metrics enables per-path latency observation.
type Config struct {
	Addr    string
	Facade  *trade.Facade
	Flow    *auth.Flow
	Creds   auth.Credentials
	Journal *tradelog.Journal
	Metrics *metrics.Metrics
}

// Version is reported by the health endpoint; overridden at build time
// with -ldflags "-X kitetrader/internal/api.Version=...".
var Version = "dev"

// Server is the HTTP front of the trade gateway.
type Server struct {
	cfg     Config
	httpSrv *http.Server
}

// NewServer builds the server and its routes.
func NewServer(cfg Config) *Server {
	s := &Server{cfg: cfg}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.instrument(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the routed handler (tests drive it directly).
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	log.Printf("[api] listening on %s", s.cfg.Addr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// instrument observes request latency per route when metrics are wired.
func (s *Server) instrument(next http.Handler) http.Handler {
	if s.cfg.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.cfg.Metrics.HTTPRequestDur.WithLabelValues(routeLabel(r.URL.Path)).Observe(time.Since(start).Seconds())
	})
}

// registeredRoutes is the closed label set for the latency metric.
var registeredRoutes = map[string]bool{
	"/":                true,
	"/auth/status":     true,
	"/auth/login":      true,
	"/auth/logout":     true,
	"/trade/buy":       true,
	"/trade/sell":      true,
	"/trade/positions": true,
	"/trade/journal":   true,
	"/market/status":   true,
}

// routeLabel maps a request path onto a registered route. Unknown paths
// collapse into "other" so arbitrary URLs cannot blow up the metric's
// label cardinality.
func routeLabel(path string) string {
	if registeredRoutes[path] {
		return path
	}
	return "other"
}
