package instrumentation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestAllMetricsExposedViaPrometheus verifies that every metric defined in
// metrics.go is recorded and exposed by the Provider's Prometheus handler.
//
// It catches metrics that are defined but never recorded, and exporter
// registrations that fail silently.
func TestAllMetricsExposedViaPrometheus(t *testing.T) {
	config := Config{
		ServiceName:     "test-metrics-integration",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
		DetailedLabels:  true,
	}

	ctx := context.Background()
	provider, err := NewProvider(ctx, config)
	if err != nil {
		t.Fatalf("Failed to create instrumentation provider: %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	metrics := provider.Metrics()
	if metrics == nil {
		t.Fatal("Metrics should not be nil")
	}

	recordAllMetrics(ctx, metrics)

	metricsOutput := scrape(t, provider)

	expectedMetrics := []struct {
		name        string
		isHistogram bool
	}{
		{"http_requests_total", false},
		{"http_request_duration_seconds", true},
		{"kubedash_context_resolutions_total", false},
		{"kubedash_context_resolution_duration_seconds", true},
		{"kubedash_credential_cache_hits_total", false},
		{"kubedash_credential_cache_misses_total", false},
		{"kubedash_credential_cache_evictions_total", false},
		{"kubedash_credential_cache_entries", false},
		{"kubedash_patches_total", false},
		{"kubedash_patch_duration_seconds", true},
		{"kubedash_cluster_checks_total", false},
		{"kubedash_cluster_check_duration_seconds", true},
	}

	for _, m := range expectedMetrics {
		found := false
		if m.isHistogram {
			for _, suffix := range []string{"_bucket", "_sum", "_count"} {
				if containsMetric(metricsOutput, m.name+suffix) {
					found = true
					break
				}
			}
		} else {
			found = containsMetric(metricsOutput, m.name)
		}

		if !found {
			t.Errorf("Missing metric %s", m.name)
		}
	}

	if t.Failed() && len(metricsOutput) > 2000 {
		t.Log(metricsOutput[:2000])
	}
}

// recordAllMetrics calls every Record* function once.
func recordAllMetrics(ctx context.Context, m *Metrics) {
	m.RecordHTTPRequest(ctx, "GET", "/healthz", 200, 50*time.Millisecond)
	m.RecordHTTPRequest(ctx, "POST", "/mcp", 500, 200*time.Millisecond)

	m.RecordResolve(ctx, "gke", StatusSuccess, 300*time.Millisecond)
	m.RecordResolve(ctx, "eks", StatusError, 30*time.Second)
	m.RecordResolve(ctx, "static", StatusSuccess, time.Millisecond)

	m.RecordCacheHit(ctx)
	m.RecordCacheMiss(ctx)
	m.RecordCacheEviction(ctx, "expired")
	m.SetCacheSize(ctx, 4)

	m.RecordPatch(ctx, "Deployment", PatchOutcomeSuccess, 800*time.Millisecond)
	m.RecordPatch(ctx, "Service", "DryRunRejected", 400*time.Millisecond)

	m.RecordClusterCheck(ctx, "gke", true, time.Second)
	m.RecordClusterCheck(ctx, "static", false, 2*time.Second)
}

func scrape(t *testing.T, provider *Provider) string {
	t.Helper()

	server := httptest.NewServer(provider.PrometheusHandler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("Failed to fetch metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read metrics body: %v", err)
	}
	return string(body)
}

// containsMetric checks if the metrics output contains a metric line
// that starts with the given metric name (accounting for labels).
func containsMetric(metricsOutput, metricName string) bool {
	for _, line := range strings.Split(metricsOutput, "\n") {
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "# TYPE "+metricName+" ") ||
			strings.HasPrefix(line, "# HELP "+metricName+" ") {
			return true
		}

		if strings.HasPrefix(line, metricName+"{") || strings.HasPrefix(line, metricName+" ") {
			return true
		}
	}
	return false
}

func TestMetricLabelsAreRecorded(t *testing.T) {
	ctx := context.Background()
	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-metrics-labels",
		Enabled:         true,
		MetricsExporter: "prometheus",
		DetailedLabels:  true,
	})
	if err != nil {
		t.Fatalf("Failed to create instrumentation provider: %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	provider.Metrics().RecordPatch(ctx, "Widget", "UnsupportedKind", time.Millisecond)
	provider.Metrics().RecordResolve(ctx, "eks", StatusSuccess, time.Millisecond)

	output := scrape(t, provider)

	for _, want := range []string{
		`resource_kind="other"`,
		`outcome="UnsupportedKind"`,
		`provider="eks"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected label %s in metrics output", want)
		}
	}
	if strings.Contains(output, `resource_kind="Widget"`) {
		t.Error("Unknown resource kinds must not become label values")
	}
}

func TestProviderDisabled(t *testing.T) {
	ctx := context.Background()
	provider, err := NewProvider(ctx, Config{Enabled: false})
	if err != nil {
		t.Fatalf("Failed to create disabled provider: %v", err)
	}

	if provider.Enabled() {
		t.Error("Expected provider to be disabled")
	}
	if provider.Metrics() == nil {
		t.Fatal("Disabled provider should still return metrics")
	}

	// Recording into no-op instruments must not panic
	recordAllMetrics(ctx, provider.Metrics())

	rec := httptest.NewRecorder()
	provider.PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 from disabled provider, got %d", rec.Code)
	}

	if err := provider.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown of disabled provider failed: %v", err)
	}
}

func TestProviderRejectsInvalidConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, TraceSamplingRate: 2})
	if err == nil {
		t.Error("Expected error for invalid sampling rate")
	}
}

func TestProviderStdoutTracing(t *testing.T) {
	ctx := context.Background()
	provider, err := NewProvider(ctx, Config{
		ServiceName:       "test-tracing",
		Enabled:           true,
		MetricsExporter:   "prometheus",
		TracingExporter:   "stdout",
		TraceSamplingRate: 1,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	spanCtx, span := StartToolSpan(ctx, "resource_get")
	if GetTraceID(spanCtx) == "" {
		t.Error("Expected a sampled span with a trace ID")
	}
	span.End()

	if err := provider.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestNilProvider(t *testing.T) {
	var provider *Provider
	if provider.Enabled() {
		t.Error("nil provider should not be enabled")
	}
	if provider.Metrics() != nil {
		t.Error("nil provider should return nil metrics")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("nil provider Shutdown returned %v", err)
	}
}
