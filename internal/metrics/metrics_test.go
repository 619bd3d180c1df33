package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAuthEvent(t *testing.T) {
	m := New()
	m.AuthEvent("login", "success")
	m.AuthEvent("login", "success")
	m.AuthEvent("login", "failure")

	if got := testutil.ToFloat64(m.AuthEventsTotal.WithLabelValues("login", "success")); got != 2 {
		t.Errorf("expected 2 successful logins, got %v", got)
	}
	if got := testutil.ToFloat64(m.AuthEventsTotal.WithLabelValues("login", "failure")); got != 1 {
		t.Errorf("expected 1 failed login, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.AuthEvent("login", "success")
	m.AccessDenied("forbidden")
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.AccessDenied("ownership")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `docshelf_access_denied_total{reason="ownership"} 1`) {
		t.Errorf("metric not exposed:\n%s", body)
	}
}
