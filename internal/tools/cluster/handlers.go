package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/kubedash/internal/clusters"
	"github.com/giantswarm/kubedash/internal/logging"
	"github.com/giantswarm/kubedash/internal/server"
	"github.com/giantswarm/kubedash/internal/tools"
)

// versionProber asks the API server for its version. Tests replace it.
var versionProber clusters.VersionProber = clusters.DiscoveryVersion

// clusterInfo is one entry of the cluster_list response.
type clusterInfo struct {
	Name       string `json:"name"`
	Context    string `json:"context"`
	Provider   string `json:"provider"`
	Kubeconfig string `json:"kubeconfig,omitempty"`
}

// checkResponse is the cluster_check response.
type checkResponse struct {
	Clusters  []clusters.Status `json:"clusters"`
	Total     int               `json:"total"`
	Reachable int               `json:"reachable"`
}

// handleListClusters lists the registered clusters.
func handleListClusters(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	creds := sc.Clusters().List()
	infos := make([]clusterInfo, 0, len(creds))
	for _, cred := range creds {
		infos = append(infos, clusterInfo{
			Name:       cred.Name,
			Context:    cred.ContextName,
			Provider:   cred.Provider().String(),
			Kubeconfig: cred.KubeconfigPath,
		})
	}

	return jsonResult(map[string]any{
		"clusters": infos,
		"total":    len(infos),
	})
}

// handleCheckClusters checks one cluster, or every registered cluster when
// no cluster is given.
func handleCheckClusters(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	opts := []clusters.CheckOption{
		clusters.WithVersionProber(versionProber),
		clusters.WithCheckRecorder(sc.Metrics()),
	}
	if adapter, ok := sc.Logger().(*logging.SlogAdapter); ok {
		opts = append(opts, clusters.WithCheckLogger(adapter.Logger()))
	}

	var statuses []clusters.Status
	if name := tools.StringArg(args, tools.ArgCluster); name != "" {
		cred, err := sc.Credential(name)
		if err != nil {
			if errors.Is(err, clusters.ErrClusterNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("cluster %q is not registered", name)), nil
			}
			return mcp.NewToolResultError(err.Error()), nil
		}
		statuses = []clusters.Status{clusters.Check(ctx, sc.Resolver(), cred, opts...)}
	} else {
		statuses = sc.Clusters().CheckAll(ctx, sc.Resolver(), sc.Config().CheckConcurrency, opts...)
	}

	response := checkResponse{Clusters: statuses, Total: len(statuses)}
	for _, status := range statuses {
		if status.Reachable {
			response.Reachable++
		}
	}

	return jsonResult(response)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
