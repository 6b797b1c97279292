package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRegistererAcceptsCustomCollectors(t *testing.T) {
	m := NewMetrics()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gemin_test_gauge",
		Help: "test gauge",
	})
	require.NoError(t, m.Registerer().Register(gauge))
	gauge.Set(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "gemin_test_gauge 42"))
}

func TestRegistererNilReceiverFallsBack(t *testing.T) {
	var m *Metrics
	require.Equal(t, prometheus.DefaultRegisterer, m.Registerer())
}

func TestAuthzDecisionCounts(t *testing.T) {
	m := NewMetrics()
	m.AuthzDecision("allow")
	m.AuthzDecision("deny")
	m.ScopeViolation()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	require.True(t, strings.Contains(body, `gemin_authz_checks_total{decision="allow"} 1`))
	require.True(t, strings.Contains(body, `gemin_authz_checks_total{decision="deny"} 1`))
	require.True(t, strings.Contains(body, "gemin_tenancy_scope_violations_total 1"))
}
