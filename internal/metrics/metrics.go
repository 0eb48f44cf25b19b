// Package metrics provides Prometheus instrumentation for the
// leaderboard engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts recorded trades, partitioned by result.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaderboard_trades_total",
		Help: "Total number of trades recorded",
	}, []string{"result"})

	// UserUpdatesTotal counts user profile/balance updates.
	UserUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaderboard_user_updates_total",
		Help: "Total number of user update writes",
	})

	// MonthsClosedTotal counts monthly podium snapshots recorded.
	MonthsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leaderboard_months_closed_total",
		Help: "Monthly podium snapshots recorded",
	})

	// UsersTracked tracks the number of users in the ledger document.
	UsersTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leaderboard_users",
		Help: "Number of users in the ledger",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leaderboard_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaderboard_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leaderboard_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Raw path as the label: the API surface is a handful of routes,
		// only the user routes grow with user count.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
