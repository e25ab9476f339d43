package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountersAndHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.ObserveAdmissionLatency(3 * time.Millisecond)
	m.IncRequestAccepted("OPEN")
	m.IncRequestRejected("INSUFFICIENT_MONEY")
	m.IncTrade("sim-01")
	m.IncCancel("sim-01")
	m.IncReconcileFailure("fill")
	m.SetEngineStatus(2)

	if got := testutil.ToFloat64(m.RequestsAccepted.WithLabelValues("OPEN")); got != 1 {
		t.Fatalf("expected accepted counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.RequestsRejected.WithLabelValues("INSUFFICIENT_MONEY")); got != 1 {
		t.Fatalf("expected rejected counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.Trades.WithLabelValues("sim-01")); got != 1 {
		t.Fatalf("expected trade counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.Cancels.WithLabelValues("sim-01")); got != 1 {
		t.Fatalf("expected cancel counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.ReconcileFailures.WithLabelValues("fill")); got != 1 {
		t.Fatalf("expected reconcile failure counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.EngineStatus); got != 2 {
		t.Fatalf("expected engine status gauge 2, got %v", got)
	}
	if got := testutil.CollectAndCount(m.AdmissionLatency); got != 1 {
		t.Fatalf("expected admission latency histogram collect count 1, got %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.IncRequestAccepted("CLOSE")
	m.IncTrade("sim-01")
	m.SetEngineStatus(2)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "requests_accepted_total") {
		t.Fatalf("expected requests_accepted_total in response")
	}
	if !strings.Contains(body, "trades_total") {
		t.Fatalf("expected trades_total in response")
	}
	if !strings.Contains(body, "engine_status") {
		t.Fatalf("expected engine_status in response")
	}
}

func TestNewNilRegistry(t *testing.T) {
	m := New(nil)
	m.IncRequestAccepted("CANCEL")
	if got := testutil.ToFloat64(m.RequestsAccepted.WithLabelValues("CANCEL")); got != 1 {
		t.Fatalf("expected accepted counter 1, got %v", got)
	}
	if m.Handler() == nil {
		t.Fatal("expected handler")
	}
}
