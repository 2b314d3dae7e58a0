package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/giantswarm/kubedash/internal/instrumentation"
	"github.com/giantswarm/kubedash/internal/server"
)

// ToolHandler is the signature for MCP tool handler functions that take ServerContext.
type ToolHandler func(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error)

type invocationKey struct{}

// InvocationFromContext returns the audit record of the running tool call so
// handlers can add what only they know (dry run, change count, failure kind).
// It returns nil outside WrapWithAuditLogging.
func InvocationFromContext(ctx context.Context) *instrumentation.ToolInvocation {
	ti, _ := ctx.Value(invocationKey{}).(*instrumentation.ToolInvocation)
	return ti
}

// Annotate runs fn on the current invocation, if any.
func Annotate(ctx context.Context, fn func(*instrumentation.ToolInvocation)) {
	if ti := InvocationFromContext(ctx); ti != nil {
		fn(ti)
	}
}

// WrapWithAuditLogging wraps a tool handler with tracing and audit logging.
// The wrapper:
//   - starts a tool span carrying the cluster and resource attributes
//   - resolves the cluster argument to its context name and provider
//   - records success, error results and handler-reported failure kinds
//   - writes one audit record per call when an audit logger is configured
func WrapWithAuditLogging(
	toolName string,
	handler ToolHandler,
	sc *server.ServerContext,
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		invocation := instrumentation.NewToolInvocation(toolName)
		extractAuditInfoFromArgs(sc, invocation, args)

		ctx, span := instrumentation.StartToolSpan(ctx, toolName, spanAttributes(invocation)...)
		defer span.End()

		invocation.WithSpanContext(ctx)
		ctx = context.WithValue(ctx, invocationKey{}, invocation)

		result, err := handler(ctx, request, sc)

		switch {
		case err != nil:
			invocation.CompleteWithError(err)
			instrumentation.SetSpanError(span, err)
		case result != nil && result.IsError:
			kind := invocation.ErrorKind
			invocation.CompleteWithFailure(kind, resultText(result))
			if kind == "" {
				kind = instrumentation.StatusError
			}
			instrumentation.SetSpanFailure(span, kind, invocation.Error)
		default:
			invocation.CompleteSuccess()
			instrumentation.SetSpanSuccess(span)
		}

		if invocation.ChangeCount > 0 {
			span.SetAttributes(attribute.Int(instrumentation.SpanAttrChangeCount, invocation.ChangeCount))
		}

		sc.AuditLogger().LogToolInvocation(ctx, invocation)

		return result, err
	}
}

// extractAuditInfoFromArgs fills the context and resource fields from the
// tool arguments. Unknown clusters keep the raw name as the context.
func extractAuditInfoFromArgs(sc *server.ServerContext, invocation *instrumentation.ToolInvocation, args map[string]any) {
	if cluster := StringArg(args, ArgCluster); cluster != "" {
		if cred, err := sc.Credential(cluster); err == nil {
			invocation.WithContext(cred.ContextName, cred.Provider().String())
		} else {
			invocation.WithContext(cluster, "")
		}
	}

	namespace := StringArg(args, ArgNamespace)
	kind := StringArg(args, ArgKind)
	name := StringArg(args, ArgName)
	if namespace != "" || kind != "" || name != "" {
		invocation.WithResource(namespace, kind, name)
	}
}

func spanAttributes(ti *instrumentation.ToolInvocation) []attribute.KeyValue {
	b := instrumentation.NewSpanAttributeBuilder()
	if ti.ContextName != "" {
		b.WithContext(ti.ContextName).WithProvider(ti.Provider)
	}
	return b.WithNamespace(ti.Namespace).
		WithResource(ti.ResourceKind, ti.ResourceName).
		Build()
}

// resultText returns the first text content of a result.
func resultText(result *mcp.CallToolResult) string {
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}
