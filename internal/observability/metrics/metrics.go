package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	metricPrefix = "spectral_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	operationsTotal   *prometheus.CounterVec
	operationsLatency *prometheus.HistogramVec

	rateLimitRejections *prometheus.CounterVec
	rateLimitFailOpen   prometheus.Counter

	conflictsDetected *prometheus.CounterVec
	cascadeBlocked    *prometheus.CounterVec
	cascadeDeletes    *prometheus.CounterVec

	auditWriteFailures prometheus.Counter

	loginTotal *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	importRows *prometheus.CounterVec
)

// Init registers service metrics and DB-backed gauges.
func Init(db *sql.DB, logger *logrus.Logger) {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		operationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "operations_total",
				Help: "Total catalog write operations by resource, operation and result",
			},
			[]string{"resource", "operation", "result"},
		)
		operationsLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "operation_latency_seconds",
				Help:    "Catalog write operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource", "operation"},
		)

		rateLimitRejections = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rate_limit_rejections_total",
				Help: "Admin operations rejected by the rate limiter by action",
			},
			[]string{"action"},
		)
		rateLimitFailOpen = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "rate_limit_fail_open_total",
				Help: "Rate limit checks that failed and let the operation through",
			},
		)

		conflictsDetected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "conflicts_detected_total",
				Help: "Unique conflicts reported by resource and source",
			},
			[]string{"resource", "source"},
		)
		cascadeBlocked = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cascade_blocked_total",
				Help: "Deletes blocked pending cascade confirmation by resource",
			},
			[]string{"resource"},
		)
		cascadeDeletes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cascade_deleted_rows_total",
				Help: "Descendant rows removed by confirmed cascades by kind",
			},
			[]string{"kind"},
		)

		auditWriteFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "audit_write_failures_total",
				Help: "Audit entries that fell back to local logging",
			},
		)

		loginTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "login_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total station exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Station export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		importRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_rows_total",
				Help: "Bulk import rows by kind and result",
			},
			[]string{"kind", "result"},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			operationsTotal,
			operationsLatency,
			rateLimitRejections,
			rateLimitFailOpen,
			conflictsDetected,
			cascadeBlocked,
			cascadeDeletes,
			auditWriteFailures,
			loginTotal,
			exportTotal,
			exportLatency,
			importRows,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

// ObserveOperation records a catalog write.
func ObserveOperation(resource, operation, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if operationsTotal != nil {
		operationsTotal.WithLabelValues(resource, operation, result).Inc()
	}
	if operationsLatency != nil {
		operationsLatency.WithLabelValues(resource, operation).Observe(duration.Seconds())
	}
}

// IncRateLimitRejected counts a 429.
func IncRateLimitRejected(action string) {
	if action == "" {
		action = "unknown"
	}
	if rateLimitRejections != nil {
		rateLimitRejections.WithLabelValues(action).Inc()
	}
}

// IncRateLimitFailOpen counts a rate limit check that could not run.
func IncRateLimitFailOpen() {
	if rateLimitFailOpen != nil {
		rateLimitFailOpen.Inc()
	}
}

// IncConflict counts a reported unique conflict. source is "check" for the
// pre-write check and "constraint" for the storage backstop.
func IncConflict(resource, source string) {
	if conflictsDetected != nil {
		conflictsDetected.WithLabelValues(resource, source).Inc()
	}
}

// IncCascadeBlocked counts a delete rejected for missing force_cascade.
func IncCascadeBlocked(resource string) {
	if cascadeBlocked != nil {
		cascadeBlocked.WithLabelValues(resource).Inc()
	}
}

// AddCascadeDeleted adds the descendants removed by a confirmed cascade.
func AddCascadeDeleted(summary map[string]int) {
	if cascadeDeletes == nil {
		return
	}
	for kind, n := range summary {
		if n > 0 {
			cascadeDeletes.WithLabelValues(kind).Add(float64(n))
		}
	}
}

// IncAuditWriteFailure counts an audit entry that could not be persisted.
func IncAuditWriteFailure() {
	if auditWriteFailures != nil {
		auditWriteFailures.Inc()
	}
}

// IncLogin counts a login attempt.
func IncLogin(result string) {
	if result == "" {
		result = resultSuccess
	}
	if loginTotal != nil {
		loginTotal.WithLabelValues(result).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// AddImportRows counts bulk import rows.
func AddImportRows(kind, result string, count int) {
	if count <= 0 {
		return
	}
	if importRows != nil {
		importRows.WithLabelValues(kind, result).Add(float64(count))
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
