// Package instrumentation provides OpenTelemetry metrics, tracing and the
// tool audit log for kubedash.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Context Resolution Metrics:
//   - kubedash_context_resolutions_total: Counter by provider and status
//   - kubedash_context_resolution_duration_seconds: Histogram of resolution durations
//
// Credential Cache Metrics:
//   - kubedash_credential_cache_hits_total / _misses_total
//   - kubedash_credential_cache_evictions_total: Counter by reason (expired, lru)
//   - kubedash_credential_cache_entries: Gauge of cached credentials
//
// Patch Metrics:
//   - kubedash_patches_total: Counter by outcome and, with detailed labels, resource kind
//   - kubedash_patch_duration_seconds: Histogram of patch durations, dry run included
//
// Cluster Check Metrics:
//   - kubedash_cluster_checks_total: Counter by provider and result
//   - kubedash_cluster_check_duration_seconds: Histogram of check durations
//
// *Metrics satisfies kubeauth.ResolveRecorder, kubeauth.CacheMetricsRecorder,
// patch.Recorder and clusters.CheckRecorder.
//
// # Cardinality Considerations
//
// Resource kinds arrive in user-supplied YAML and are folded into "other"
// unless the patch registry knows them. Context names never become metric
// labels; spans and audit records carry them, with ClassifyClusterName
// providing a bounded cluster type.
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: false)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: kubedash)
//   - METRICS_DETAILED_LABELS: Add the resource kind to patch metrics (default: true)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	resolver := kubeauth.NewResolver(kubeauth.WithRecorder(provider.Metrics()))
package instrumentation
