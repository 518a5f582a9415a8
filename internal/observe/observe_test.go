package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// --- Metrics ---

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	// Verify all metrics are registered by using them
	m.RequestsTotal.WithLabelValues("200", "GET").Inc()
	m.RequestDuration.WithLabelValues("GET").Observe(0.05)
	m.RouteOutcomes.WithLabelValues("found").Inc()
	m.ContractViolations.Inc()
	m.RateLimitedTotal.WithLabelValues("192.168.1.1").Inc()
	m.CircuitState.WithLabelValues("GET /users/{id}").Set(0)
	m.RouteReloads.WithLabelValues("ok").Inc()

	expected := `
# HELP kernel_requests_total Total number of requests processed.
# TYPE kernel_requests_total counter
kernel_requests_total{method="GET",status="200"} 1
`
	if err := testutil.CollectAndCompare(m.RequestsTotal, strings.NewReader(expected)); err != nil {
		t.Fatalf("metrics mismatch: %v", err)
	}

	count, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatal(err)
	}
	if count != 7 {
		t.Fatalf("expected 7 series, got %d", count)
	}
}

func TestMetricsHistogramBuckets(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	// Record some latencies
	m.RequestDuration.WithLabelValues("GET").Observe(0.001) // 1ms
	m.RequestDuration.WithLabelValues("GET").Observe(0.05)  // 50ms
	m.RequestDuration.WithLabelValues("GET").Observe(0.5)   // 500ms
	m.RequestDuration.WithLabelValues("GET").Observe(2.0)   // 2s

	if n := testutil.CollectAndCount(m.RequestDuration); n != 1 {
		t.Fatalf("expected 1 histogram series, got %d", n)
	}
}

func TestMetricsGaugeUpDown(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CircuitState.WithLabelValues("GET /").Set(1)
	val := testutil.ToFloat64(m.CircuitState.WithLabelValues("GET /"))
	if val != 1 {
		t.Fatalf("expected 1, got %.0f", val)
	}

	m.CircuitState.WithLabelValues("GET /").Set(0)
	val = testutil.ToFloat64(m.CircuitState.WithLabelValues("GET /"))
	if val != 0 {
		t.Fatalf("expected 0 after close, got %.0f", val)
	}
}

func TestMetricsHandlerFor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RouteOutcomes.WithLabelValues("not_found").Add(3)

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `kernel_route_outcomes_total{outcome="not_found"} 3`) {
		t.Fatalf("missing outcome series in output:\n%s", rec.Body.String())
	}
}

// --- Structured Logging ---

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LevelInfo)

	logger.Info("test message", "key", "value")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if entry["msg"] != "test message" {
		t.Fatalf("expected msg 'test message', got %v", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Fatalf("expected key 'value', got %v", entry["key"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LevelWarn)

	logger.Info("should be filtered")
	if buf.Len() > 0 {
		t.Fatal("info message should be filtered at warn level")
	}

	logger.Warn("should appear")
	if buf.Len() == 0 {
		t.Fatal("warn message should appear at warn level")
	}
}

func TestRequestLoggerAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	reqLogger := RequestLogger(base, "POST", "/api/users", "192.168.1.1", "trace-abc")
	reqLogger.Info("request completed", "status", 200)

	var entry map[string]interface{}
	json.Unmarshal(buf.Bytes(), &entry)

	if entry["method"] != "POST" {
		t.Errorf("expected method POST, got %v", entry["method"])
	}
	if entry["path"] != "/api/users" {
		t.Errorf("expected path /api/users, got %v", entry["path"])
	}
	if entry["client_ip"] != "192.168.1.1" {
		t.Errorf("expected client_ip 192.168.1.1, got %v", entry["client_ip"])
	}
	if entry["trace_id"] != "trace-abc" {
		t.Errorf("expected trace_id trace-abc, got %v", entry["trace_id"])
	}
}

func TestLoggerContext(t *testing.T) {
	logger := slog.Default()
	ctx := WithLogger(context.Background(), logger)

	got := LoggerFrom(ctx)
	if got != logger {
		t.Fatal("should retrieve same logger from context")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", LevelDebug},
		{"", LevelInfo},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("%q: expected %v, got %v", tc.in, tc.want, got)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("should reject unknown level")
	}
}

func TestLoggerContextFallback(t *testing.T) {
	// No logger in context → should return default
	got := LoggerFrom(context.Background())
	if got == nil {
		t.Fatal("should return default logger when none in context")
	}
}

// --- Request Tracing ---

func TestGenerateTraceIDUnique(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateTraceID()
		if ids[id] {
			t.Fatalf("duplicate trace ID: %s", id)
		}
		ids[id] = true
	}
}

func TestGenerateTraceIDLength(t *testing.T) {
	id := GenerateTraceID()
	// UUID without dashes = 32 hex characters
	if len(id) != 32 {
		t.Fatalf("expected 32 char hex string, got %d chars: %s", len(id), id)
	}
}

func TestTraceIDFromRequestReusesExisting(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "existing-trace-id")

	got := TraceIDFromRequest(req)
	if got != "existing-trace-id" {
		t.Fatalf("expected existing-trace-id, got %s", got)
	}
}

func TestTraceIDFromRequestGeneratesNew(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	got := TraceIDFromRequest(req)
	if got == "" {
		t.Fatal("should generate a trace ID")
	}
	if len(got) != 32 {
		t.Fatalf("expected 32 char hex string, got %s", got)
	}
}

func TestTraceIDContext(t *testing.T) {
	ctx := WithTraceID(context.Background(), "my-trace")
	got := TraceIDFrom(ctx)
	if got != "my-trace" {
		t.Fatalf("expected my-trace, got %s", got)
	}
}

func TestTraceIDFromRequestReplacesUnusableIDs(t *testing.T) {
	tests := map[string]string{
		"blank":          "   ",
		"too long":       strings.Repeat("a", 129),
		"control chars":  "abc\x01def",
		"embedded space": "abc def",
	}
	for name, in := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceHeader, in)

		got := TraceIDFromRequest(req)
		if got == in || len(got) != 32 {
			t.Errorf("%s: expected a generated ID, got %q", name, got)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, " edge-7f3a ")
	if got := TraceIDFromRequest(req); got != "edge-7f3a" {
		t.Fatalf("expected trimmed inbound ID, got %q", got)
	}
}
