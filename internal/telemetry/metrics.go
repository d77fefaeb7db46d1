// Package telemetry provides application-level observability for the training registry.
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<DTR_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Metric groups:
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Approval workflow transitions for partners and trainings
//   - Login outcomes
//   - Upload proxy results and bytes
//   - Certificates issued
//   - Rate limiter rejections
//   - Database connection pool gauge (polled every 30 s)
//
// HTTP metrics use c.FullPath() (route template such as /api/trainings/:id)
// so record ids never become label values.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/disaster-training/training-registry/internal/safego"
)

// HTTP metrics, labelled by method, route template and status code.
//
// Example PromQL queries:
//   - Error rate (%):  sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 per route:   histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
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

// WorkflowTransitionsTotal counts approval decisions, labelled by entity
// ("partner" or "training") and the target status.
//
// Example PromQL queries:
//   - Approvals per day:  sum by (entity) (increase(workflow_transitions_total{status="approved"}[1d]))
//   - Pending backlog growth vs decisions: rate(trainings_submitted_total[1h]) - sum(rate(workflow_transitions_total{entity="training"}[1h]))
var (
	WorkflowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Total number of approval workflow transitions, by entity and target status.",
		},
		[]string{"entity", "status"},
	)

	TrainingsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainings_submitted_total",
			Help: "Total number of training events submitted by partners.",
		},
	)

	PartnerRegistrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "partner_registrations_total",
			Help: "Total number of partner organization registrations.",
		},
	)
)

// LoginAttemptsTotal counts authentication attempts by result
// ("success", "invalid_credentials", "account_inactive", "error").
// A sudden rise in invalid_credentials is a credential stuffing signal.
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// Upload proxy metrics.
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Total number of files sent to the media host, by result.",
		},
		[]string{"result"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_upload_bytes_total",
			Help: "Total bytes successfully stored on the media host.",
		},
	)
)

// CertificatesIssuedTotal counts certificates issued for approved trainings.
var CertificatesIssuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "certificates_issued_total",
		Help: "Total number of training certificates issued.",
	},
)

// RateLimitRejectionsTotal counts requests refused by a rate limiter, by limiter scope.
var RateLimitRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Total number of requests rejected by rate limiting, by scope.",
	},
	[]string{"scope"},
)

// DBOpenConnections tracks the number of open connections held by the
// sql.DB pool. It is sampled every 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every 30 seconds until ctx is
// cancelled or the database becomes unreachable.
func StartDBStatsCollector(ctx context.Context, db *sql.DB) {
	safego.Go("db-stats-collector", func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	})
}
