package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordPolicyDecision("access-users", false)
	m.RecordPolicyDecision("access-users", false)
	m.RecordPolicyDecision("access-users", true)
	m.RecordRoleSwitch("business-viewer")
	m.RecordInvariantViolation("last_admin")
	m.RecordAuditEvent("user.invite")
	m.RecordBackendOperation("users", "list", 10*time.Millisecond, nil)
	m.RecordBackendOperation("users", "list", 10*time.Millisecond, errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PolicyDecisionsTotal.WithLabelValues("access-users", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PolicyDecisionsTotal.WithLabelValues("access-users", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoleSwitchesTotal.WithLabelValues("business-viewer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvariantViolationsTotal.WithLabelValues("last_admin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditEventsTotal.WithLabelValues("user.invite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendOperationsTotal.WithLabelValues("users", "list", "error")))
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/users/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/users/{id}", "404")))
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.RecordRoleSwitch("developer-external")

	rr := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `hub_role_switches_total{role="developer-external"} 1`))
}
