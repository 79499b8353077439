package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape returned %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.Scan("ok")
	m.Scan("ok")
	m.Scan("invalid_size")
	m.Prediction("Apple", "Organic")
	m.OutOfRange(2)
	m.Gauge("ws_clients", "Connected websocket clients.", func() float64 { return 3 })
	m.Counter("cache_hits_total", "Prediction cache hits.", func() float64 { return 5 })

	handler := m.WrapHandler("/api/scan", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/scan", nil))

	body := scrape(t, m)
	for _, want := range []string{
		`organicscan_scans_total{outcome="ok"} 2`,
		`organicscan_scans_total{outcome="invalid_size"} 1`,
		`organicscan_predictions_total{fruit="Apple",organic_status="Organic"} 1`,
		`organicscan_out_of_range_values_total 2`,
		`organicscan_ws_clients 3`,
		`organicscan_cache_hits_total 5`,
		`organicscan_http_requests_total{route="/api/scan",status="400"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.Scan("ok")
	m.Prediction("Apple", "Organic")
	m.OutOfRange(1)
	rec := httptest.NewRecorder()
	m.WrapHandler("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestSeparateRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.Scan("ok")
	if strings.Contains(scrape(t, b), `organicscan_scans_total{outcome="ok"}`) {
		t.Fatal("metrics leaked between registries")
	}
}
