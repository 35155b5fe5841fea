// Package metrics provides Prometheus instrumentation for Skyhook.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skyhook",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "skyhook",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ProvisionsTotal counts provisioning attempts by outcome
	// (provisioned, denied, validation_failed, apply_failed).
	ProvisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skyhook",
			Name:      "provisions_total",
			Help:      "Total tenant provisioning attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// LifecycleTransitionsTotal counts suspend/resume/upgrade/deprovision
	// transitions by kind.
	LifecycleTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skyhook",
			Name:      "lifecycle_transitions_total",
			Help:      "Total tenant lifecycle transitions by kind.",
		},
		[]string{"transition"},
	)

	// ActiveTenants tracks tenants currently metered.
	ActiveTenants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "skyhook",
			Name:      "active_tenants",
			Help:      "Number of tenants currently in the active state.",
		},
	)

	// SettlementsTotal counts individual credit settlements.
	SettlementsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "skyhook",
		Name:      "settlements_total",
		Help:      "Total credit settlements performed.",
	})

	// SweepDuration observes how long a full settlement sweep takes.
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "skyhook",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of credit settlement sweeps in seconds.",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
	})

	// ClusterApplyTotal counts manifest document applications by outcome.
	ClusterApplyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skyhook",
			Name:      "cluster_apply_total",
			Help:      "Total manifest documents applied by outcome.",
		},
		[]string{"outcome"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "skyhook", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "skyhook", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "skyhook", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "skyhook", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProvisionsTotal,
		LifecycleTransitionsTotal,
		ActiveTenants,
		SettlementsTotal,
		SweepDuration,
		ClusterApplyTotal,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime
// goroutine count into Prometheus gauges. Call in a goroutine; exits when
// ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
