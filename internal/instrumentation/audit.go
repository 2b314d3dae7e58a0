package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// ToolInvocation collects what is known about one tool call for the audit log.
type ToolInvocation struct {
	Tool        string
	ContextName string
	Provider    string

	Namespace    string
	ResourceKind string
	ResourceName string
	DryRun       bool
	ChangeCount  int

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	ErrorKind string
	Error     string

	TraceID string
	SpanID  string
}

// NewToolInvocation starts timing a tool call.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithContext sets the kubeconfig context and its provider.
func (ti *ToolInvocation) WithContext(contextName, provider string) *ToolInvocation {
	ti.ContextName = contextName
	ti.Provider = provider
	return ti
}

// WithResource sets the targeted resource.
func (ti *ToolInvocation) WithResource(namespace, kind, name string) *ToolInvocation {
	ti.Namespace = namespace
	ti.ResourceKind = kind
	ti.ResourceName = name
	return ti
}

// WithDryRun marks the call as a dry run.
func (ti *ToolInvocation) WithDryRun(dryRun bool) *ToolInvocation {
	ti.DryRun = dryRun
	return ti
}

// WithChanges records how many fields a patch changed.
func (ti *ToolInvocation) WithChanges(count int) *ToolInvocation {
	ti.ChangeCount = count
	return ti
}

// WithSpanContext copies the trace and span ids from ctx, if any.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID = GetTraceID(ctx)
	ti.SpanID = GetSpanID(ctx)
	return ti
}

// Complete stops the timer and records the result.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// CompleteSuccess completes a successful invocation.
func (ti *ToolInvocation) CompleteSuccess() *ToolInvocation {
	return ti.Complete(true, nil)
}

// CompleteWithError completes a failed invocation.
func (ti *ToolInvocation) CompleteWithError(err error) *ToolInvocation {
	return ti.Complete(false, err)
}

// CompleteWithFailure completes an invocation that failed with a kind and a
// user-facing message rather than an error.
func (ti *ToolInvocation) CompleteWithFailure(kind, message string) *ToolInvocation {
	ti.Complete(false, nil)
	ti.ErrorKind = kind
	ti.Error = message
	return ti
}

// ClusterType returns the classified cluster type of the context.
func (ti *ToolInvocation) ClusterType() string {
	return ClassifyClusterName(ti.ContextName)
}

// Status returns "success" or "error".
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns low-cardinality attributes suitable for operational logs.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("provider", ti.Provider),
		slog.String("cluster_type", ti.ClusterType()),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if ti.ErrorKind != "" {
		attrs = append(attrs, slog.String("error_kind", ti.ErrorKind))
	}
	return attrs
}

// LogAuditAttrs returns the full audit record, including the context and
// resource identity.
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.String("context", ti.ContextName),
		slog.String("provider", ti.Provider),
		slog.String("namespace", ti.Namespace),
		slog.String("resource_kind", ti.ResourceKind),
		slog.String("resource_name", ti.ResourceName),
		slog.Bool("dry_run", ti.DryRun),
		slog.Int("change_count", ti.ChangeCount),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if ti.ErrorKind != "" {
		attrs = append(attrs, slog.String("error_kind", ti.ErrorKind))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	return attrs
}

// AuditLogger writes tool invocations to a dedicated audit stream.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates an AuditLogger. A nil logger uses slog.Default().
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger}
}

// LogToolInvocation writes one audit record.
func (a *AuditLogger) LogToolInvocation(ctx context.Context, ti *ToolInvocation) {
	if a == nil || ti == nil {
		return
	}
	level := slog.LevelInfo
	if !ti.Success {
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(ctx, level, "tool invocation", ti.LogAuditAttrs()...)
}

// TraceIDFromContext returns the trace id of the span in ctx, if any.
func TraceIDFromContext(ctx context.Context) string {
	return GetTraceID(ctx)
}
