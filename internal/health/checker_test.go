package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ErlanBelekov/safejob-auth/internal/health"
	"github.com/prometheus/client_golang/prometheus"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

func newTestChecker(deps map[string]health.Pinger) (*health.Checker, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	logger := slog.Default()
	return health.NewChecker("safe-job-auth", deps, logger, reg), reg
}

func TestLiveness_AlwaysUp(t *testing.T) {
	c, _ := newTestChecker(map[string]health.Pinger{"postgres": &mockPinger{err: errors.New("db down")}})

	result := c.Liveness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	if result.Service != "safe-job-auth" {
		t.Fatalf("expected service name, got %q", result.Service)
	}
	if result.Checks != nil {
		t.Fatalf("expected no checks, got %v", result.Checks)
	}
}

func TestReadiness_AllUp(t *testing.T) {
	c, reg := newTestChecker(map[string]health.Pinger{
		"postgres":     &mockPinger{},
		"auth_service": &mockPinger{},
	})

	result := c.Readiness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	for _, dep := range []string{"postgres", "auth_service"} {
		if got := result.Checks[dep].Status; got != "up" {
			t.Fatalf("expected %s up, got %q", dep, got)
		}
		if gauge := testGauge(t, reg, "safejob_health_check_up", dep); gauge != 1 {
			t.Fatalf("expected %s gauge 1, got %f", dep, gauge)
		}
	}
}

func TestReadiness_OneDown(t *testing.T) {
	c, reg := newTestChecker(map[string]health.Pinger{
		"postgres":     &mockPinger{err: errors.New("connection refused")},
		"auth_service": &mockPinger{},
	})

	result := c.Readiness(context.Background())
	if result.Status != "down" {
		t.Fatalf("expected status down, got %s", result.Status)
	}
	pg := result.Checks["postgres"]
	if pg.Status != "down" || pg.Error == "" {
		t.Fatalf("expected postgres down with error, got %+v", pg)
	}
	if gauge := testGauge(t, reg, "safejob_health_check_up", "postgres"); gauge != 0 {
		t.Fatalf("expected gauge 0, got %f", gauge)
	}
}

func TestServeHTTP(t *testing.T) {
	c, _ := newTestChecker(map[string]health.Pinger{"postgres": &mockPinger{err: errors.New("down")}})

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", w.Code)
	}
	var body health.HealthResult
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "down" {
		t.Errorf("body status = %q", body.Status)
	}

	w = httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", w.Code)
	}
}

func testGauge(t *testing.T, reg *prometheus.Registry, name, depLabel string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "dependency" && lp.GetValue() == depLabel {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{dependency=%q} not found", name, depLabel)
	return 0
}
