// Package cluster registers the MCP tools that list registered clusters and
// check that their credentials resolve and their API servers answer.
package cluster

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/kubedash/internal/server"
	"github.com/giantswarm/kubedash/internal/tools"
)

// Tool names.
const (
	ToolList  = "cluster_list"
	ToolCheck = "cluster_check"
)

// RegisterClusterTools registers all cluster tools with the MCP server.
func RegisterClusterTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listTool := mcp.NewTool(ToolList,
		mcp.WithDescription("List the registered clusters with their kubeconfig context and credential provider"),
	)
	s.AddTool(listTool, tools.WrapWithAuditLogging(ToolList, handleListClusters, sc))

	checkTool := mcp.NewTool(ToolCheck,
		mcp.WithDescription(`Check that cluster credentials resolve and the API server answers.
Without a cluster, every registered cluster is checked concurrently.`),
		tools.ClusterParam(false),
	)
	s.AddTool(checkTool, tools.WrapWithAuditLogging(ToolCheck, handleCheckClusters, sc))

	return nil
}
