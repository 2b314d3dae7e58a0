package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrMethod   = "method"
	attrPath     = "path"
	attrStatus   = "status"
	attrProvider = "provider"
	attrKind     = "resource_kind"
	attrOutcome  = "outcome"
	attrReason   = "reason"
	attrResult   = "result"
)

var durationBuckets = []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

// Metrics provides methods for recording observability metrics.
//
// It implements the recorder interfaces of the kubeauth, patch and clusters
// packages, so a single instance is handed to all of them.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Context resolution metrics
	resolutionsTotal   metric.Int64Counter
	resolutionDuration metric.Float64Histogram

	// Credential cache metrics
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	cacheEvictions metric.Int64Counter
	cacheEntries   metric.Int64Gauge

	// Patch metrics
	patchesTotal  metric.Int64Counter
	patchDuration metric.Float64Histogram

	// Cluster check metrics
	clusterChecksTotal   metric.Int64Counter
	clusterCheckDuration metric.Float64Histogram

	// detailedLabels adds the resource kind to patch metrics. Kinds are
	// bounded by NormalizeResourceKind either way.
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether per-kind labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	// Context resolution
	m.resolutionsTotal, err = meter.Int64Counter(
		"kubedash_context_resolutions_total",
		metric.WithDescription("Total number of kubeconfig context resolutions"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubedash_context_resolutions_total counter: %w", err)
	}

	m.resolutionDuration, err = meter.Float64Histogram(
		"kubedash_context_resolution_duration_seconds",
		metric.WithDescription("Context resolution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubedash_context_resolution_duration_seconds histogram: %w", err)
	}

	// Credential cache
	m.cacheHits, err = meter.Int64Counter(
		"kubedash_credential_cache_hits_total",
		metric.WithDescription("Total number of credential cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubedash_credential_cache_hits_total counter: %w", err)
	}

	m.cacheMisses, err = meter.Int64Counter(
		"kubedash_credential_cache_misses_total",
		metric.WithDescription("Total number of credential cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubedash_credential_cache_misses_total counter: %w", err)
	}

	m.cacheEvictions, err = meter.Int64Counter(
		"kubedash_credential_cache_evictions_total",
		metric.WithDescription("Total number of credential cache evictions by reason"),
		metric.WithUnit("{eviction}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubedash_credential_cache_evictions_total counter: %w", err)
	}

	m.cacheEntries, err = meter.Int64Gauge(
		"kubedash_credential_cache_entries",
		metric.WithDescription("Current number of cached credentials"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubedash_credential_cache_entries gauge: %w", err)
	}

	// Patches
	m.patchesTotal, err = meter.Int64Counter(
		"kubedash_patches_total",
		metric.WithDescription("Total number of resource patch requests by outcome"),
		metric.WithUnit("{patch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubedash_patches_total counter: %w", err)
	}

	m.patchDuration, err = meter.Float64Histogram(
		"kubedash_patch_duration_seconds",
		metric.WithDescription("Resource patch duration in seconds, dry run included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubedash_patch_duration_seconds histogram: %w", err)
	}

	// Cluster checks
	m.clusterChecksTotal, err = meter.Int64Counter(
		"kubedash_cluster_checks_total",
		metric.WithDescription("Total number of cluster reachability checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubedash_cluster_checks_total counter: %w", err)
	}

	m.clusterCheckDuration, err = meter.Float64Histogram(
		"kubedash_cluster_check_duration_seconds",
		metric.WithDescription("Cluster reachability check duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubedash_cluster_check_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)

	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordResolve records one context resolution by provider and status.
func (m *Metrics) RecordResolve(ctx context.Context, provider, status string, duration time.Duration) {
	if m == nil || m.resolutionsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrStatus, status),
	)

	m.resolutionsTotal.Add(ctx, 1, attrs)
	m.resolutionDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCacheHit records a credential cache hit.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	if m == nil || m.cacheHits == nil {
		return
	}
	m.cacheHits.Add(ctx, 1)
}

// RecordCacheMiss records a credential cache miss.
func (m *Metrics) RecordCacheMiss(ctx context.Context) {
	if m == nil || m.cacheMisses == nil {
		return
	}
	m.cacheMisses.Add(ctx, 1)
}

// RecordCacheEviction records a credential cache eviction. reason is
// "expired" or "lru".
func (m *Metrics) RecordCacheEviction(ctx context.Context, reason string) {
	if m == nil || m.cacheEvictions == nil {
		return
	}
	m.cacheEvictions.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// SetCacheSize records the current number of cached credentials.
func (m *Metrics) SetCacheSize(ctx context.Context, size int) {
	if m == nil || m.cacheEntries == nil {
		return
	}
	m.cacheEntries.Record(ctx, int64(size))
}

// RecordPatch records one patch request. outcome is "success" or the
// failure kind.
//
// CARDINALITY NOTE: the resource kind comes from user-supplied YAML, so it is
// folded through NormalizeResourceKind and only added when detailedLabels is on.
func (m *Metrics) RecordPatch(ctx context.Context, resourceKind, outcome string, duration time.Duration) {
	if m == nil || m.patchesTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOutcome, outcome),
	}
	if m.detailedLabels {
		attrs = append(attrs, attribute.String(attrKind, NormalizeResourceKind(resourceKind)))
	}

	m.patchesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.patchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordClusterCheck records one cluster reachability check.
func (m *Metrics) RecordClusterCheck(ctx context.Context, provider string, reachable bool, duration time.Duration) {
	if m == nil || m.clusterChecksTotal == nil {
		return
	}

	result := CheckResultUnreachable
	if reachable {
		result = CheckResultReachable
	}
	attrs := metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrResult, result),
	)

	m.clusterChecksTotal.Add(ctx, 1, attrs)
	m.clusterCheckDuration.Record(ctx, duration.Seconds(), attrs)
}
