package tools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Argument names shared by the cluster and resource tools.
const (
	ArgCluster   = "cluster"
	ArgKind      = "kind"
	ArgName      = "name"
	ArgNamespace = "namespace"
	ArgOldYAML   = "old_yaml"
	ArgNewYAML   = "new_yaml"
)

// ClusterParam returns the cluster tool parameter.
func ClusterParam(required bool) mcp.ToolOption {
	opts := []mcp.PropertyOption{
		mcp.Description(`Registered cluster name, or a kubeconfig context name.
Context names select the credential provider: "gke_<project>_<location>_<cluster>" uses Google credentials,
"arn:aws:eks:<region>:<account>:cluster/<name>" uses AWS credentials, anything else is read from the kubeconfig.`),
	}
	if required {
		opts = append(opts, mcp.Required())
	}
	return mcp.WithString(ArgCluster, opts...)
}

// StringArg returns a string argument, or "" when it is absent or not a string.
func StringArg(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return value
}

// RequiredStringArg returns a non-empty string argument or an error result.
func RequiredStringArg(args map[string]any, key string) (string, *mcp.CallToolResult) {
	value := StringArg(args, key)
	if value == "" {
		return "", mcp.NewToolResultError(fmt.Sprintf("%s is required", key))
	}
	return value, nil
}
