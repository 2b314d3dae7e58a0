// Package resource registers the MCP tools that load, compare and patch
// Kubernetes resources through the patch engine.
package resource

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/kubedash/internal/server"
	"github.com/giantswarm/kubedash/internal/tools"
)

// Tool names.
const (
	ToolGet   = "resource_get"
	ToolPatch = "resource_patch"
	ToolDiff  = "resource_diff"
	ToolKinds = "resource_kinds"
)

func kindParam() mcp.ToolOption {
	return mcp.WithString(tools.ArgKind,
		mcp.Required(),
		mcp.Description("Resource kind as written in a manifest (e.g. Deployment, ConfigMap). See resource_kinds for the supported kinds."),
	)
}

func nameParam() mcp.ToolOption {
	return mcp.WithString(tools.ArgName,
		mcp.Required(),
		mcp.Description("Name of the resource"),
	)
}

func namespaceParam() mcp.ToolOption {
	return mcp.WithString(tools.ArgNamespace,
		mcp.Description("Namespace of the resource (optional, ignored for cluster-scoped kinds, defaults to the document's namespace or \"default\")"),
	)
}

// RegisterResourceTools registers all resource tools with the MCP server.
func RegisterResourceTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	getTool := mcp.NewTool(ToolGet,
		mcp.WithDescription("Load a live resource as YAML suitable for editing. Pass the result back unchanged as old_yaml when patching."),
		tools.ClusterParam(true),
		kindParam(),
		nameParam(),
		namespaceParam(),
	)
	s.AddTool(getTool, tools.WrapWithAuditLogging(ToolGet, handleGetResource, sc))

	patchTool := mcp.NewTool(ToolPatch,
		mcp.WithDescription(`Apply an edited resource to the cluster.
The edit is validated with a server-side dry run first and only applied when the dry run passes.
Returns the outcome and the list of changed fields compared to old_yaml.`),
		tools.ClusterParam(true),
		kindParam(),
		nameParam(),
		namespaceParam(),
		mcp.WithString(tools.ArgOldYAML,
			mcp.Required(),
			mcp.Description("The YAML the edit started from, as returned by resource_get"),
		),
		mcp.WithString(tools.ArgNewYAML,
			mcp.Required(),
			mcp.Description("The edited resource YAML"),
		),
	)
	s.AddTool(patchTool, tools.WrapWithAuditLogging(ToolPatch, handlePatchResource, sc))

	diffTool := mcp.NewTool(ToolDiff,
		mcp.WithDescription("Compare two resource YAML documents field by field without contacting a cluster. resourceVersion and managedFields are ignored."),
		mcp.WithString(tools.ArgOldYAML,
			mcp.Required(),
			mcp.Description("The original YAML"),
		),
		mcp.WithString(tools.ArgNewYAML,
			mcp.Required(),
			mcp.Description("The edited YAML"),
		),
	)
	s.AddTool(diffTool, tools.WrapWithAuditLogging(ToolDiff, handleDiffResource, sc))

	kindsTool := mcp.NewTool(ToolKinds,
		mcp.WithDescription("List the resource kinds that can be loaded and patched"),
	)
	s.AddTool(kindsTool, tools.WrapWithAuditLogging(ToolKinds, handleListKinds, sc))

	return nil
}
