// Package telemetry provides application-level observability for the dotfile
// service.
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<DF_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// HTTP metrics use c.FullPath() (route template such as
// /api/v1/collections/:id/archive) rather than the raw request URL to prevent
// unbounded label cardinality from user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):  sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:  histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Domain metrics for the collection and quota surface.
//
// ArchiveDownloadsTotal counts served collection archives, by the account
// tier of the requesting user. A rising free-tier share is early warning for
// quota pressure.
//
// QuotaRejectionsTotal counts retrievals denied by the quota ledger.
// An alert on increase(quota_rejections_total[1h]) catching a spike often
// means one client is polling archives in a loop.
//
// LicenseRedemptionsTotal counts redemption attempts by outcome
// ("upgraded", "rejected"). The rejected series includes invalid, reused,
// and wrong-tier attempts.
var (
	ArchiveDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_downloads_total",
			Help: "Total number of collection archives served, by account tier.",
		},
		[]string{"tier"},
	)

	QuotaRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_rejections_total",
			Help: "Total number of archive retrievals rejected by the quota ledger.",
		},
	)

	LicenseRedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "license_redemptions_total",
			Help: "Total number of license key redemption attempts, by outcome.",
		},
		[]string{"outcome"},
	)
)

// DBOpenConnections tracks the number of open connections currently held by
// the sql.DB pool. Sampled every 30 seconds by StartDBStatsCollector rather
// than per-request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates DBOpenConnections.
// The goroutine exits when the database becomes unreachable, which happens
// automatically when the application shuts down and closes the pool.
//
// Call this once, immediately after the database connection succeeds.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
