// Package metrics exposes Prometheus metrics for the trading gateway.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	OrdersTotal       *prometheus.CounterVec // labels: side, status
	ValidationRejects prometheus.Counter
	AuthFailures      prometheus.Counter
	SessionRefreshes  prometheus.Counter
	BrokerCallDur     prometheus.Histogram
	HTTPRequestDur    *prometheus.HistogramVec // labels: path
}

// New registers and returns all gateway metrics.
func New() *Metrics {
	m := &Metrics{
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeserver_orders_total",
			Help: "Order placements by side and outcome",
		}, []string{"side", "status"}),
		ValidationRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeserver_validation_rejects_total",
			Help: "Order requests rejected before any brokerage call",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeserver_auth_failures_total",
			Help: "Requests refused for missing or expired session",
		}),
		SessionRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeserver_session_refreshes_total",
			Help: "Successful login flows that persisted a new session",
		}),
		BrokerCallDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradeserver_broker_call_duration_seconds",
			Help:    "Kite API round-trip latency",
			Buckets: prometheus.DefBuckets,
		}),
		HTTPRequestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradeserver_http_request_duration_seconds",
			Help:    "HTTP handler latency by path",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}

	prometheus.MustRegister(
		m.OrdersTotal,
		m.ValidationRejects,
		m.AuthFailures,
		m.SessionRefreshes,
		m.BrokerCallDur,
		m.HTTPRequestDur,
	)

	return m
}

// Serve starts the /metrics listener on addr. Blocks; run in a goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("[metrics] serving on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("[metrics] listener stopped: %v", err)
	}
}
