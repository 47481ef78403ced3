package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access control metrics
	PolicyDecisionsTotal     *prometheus.CounterVec
	RoleSwitchesTotal        *prometheus.CounterVec
	RedirectsTotal           prometheus.Counter
	InvariantViolationsTotal *prometheus.CounterVec

	// Backend metrics
	BackendOperationsTotal   *prometheus.CounterVec
	BackendOperationDuration *prometheus.HistogramVec

	// Business metrics
	AuditEventsTotal *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PolicyDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_policy_decisions_total",
				Help: "Capability checks enforced by the server",
			},
			[]string{"capability", "allowed"},
		),
		RoleSwitchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_role_switches_total",
				Help: "Session role switches by target role",
			},
			[]string{"role"},
		),
		RedirectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hub_view_gate_redirects_total",
				Help: "Redirects to the landing route caused by role switches",
			},
		),
		InvariantViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_invariant_violations_total",
				Help: "Operations rejected because they would break an invariant",
			},
			[]string{"code"},
		),
		BackendOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_backend_operations_total",
				Help: "Entity backend operations by outcome",
			},
			[]string{"entity", "operation", "outcome"},
		),
		BackendOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hub_backend_operation_duration_seconds",
				Help:    "Entity backend operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity", "operation"},
		),
		AuditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_audit_events_total",
				Help: "Audit events recorded by action",
			},
			[]string{"action"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hub_active_sessions",
				Help: "Console sessions currently held in memory",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PolicyDecisionsTotal,
		m.RoleSwitchesTotal,
		m.RedirectsTotal,
		m.InvariantViolationsTotal,
		m.BackendOperationsTotal,
		m.BackendOperationDuration,
		m.AuditEventsTotal,
		m.ActiveSessions,
	)

	return m
}

// Recorders are no-ops on a nil *Metrics.

// RecordPolicyDecision counts a capability check
func (m *Metrics) RecordPolicyDecision(capability string, allowed bool) {
	if m == nil {
		return
	}
	m.PolicyDecisionsTotal.WithLabelValues(capability, strconv.FormatBool(allowed)).Inc()
}

// RecordRoleSwitch counts a role switch
func (m *Metrics) RecordRoleSwitch(role string) {
	if m == nil {
		return
	}
	m.RoleSwitchesTotal.WithLabelValues(role).Inc()
}

// RecordRedirect counts a redirect forced by a role switch
func (m *Metrics) RecordRedirect() {
	if m == nil {
		return
	}
	m.RedirectsTotal.Inc()
}

// SetActiveSessions sets the live console session gauge
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// RecordInvariantViolation counts a rejected invariant-breaking operation
func (m *Metrics) RecordInvariantViolation(code string) {
	if m == nil {
		return
	}
	m.InvariantViolationsTotal.WithLabelValues(code).Inc()
}

// RecordBackendOperation records the outcome and duration of an entity backend call
func (m *Metrics) RecordBackendOperation(entity, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.BackendOperationsTotal.WithLabelValues(entity, operation, outcome).Inc()
	m.BackendOperationDuration.WithLabelValues(entity, operation).Observe(duration.Seconds())
}

// RecordAuditEvent counts an audit event
func (m *Metrics) RecordAuditEvent(action string) {
	if m == nil {
		return
	}
	m.AuditEventsTotal.WithLabelValues(action).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel returns the mux route template so metrics do not carry entity ids
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
