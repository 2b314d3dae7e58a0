package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/kubedash/internal/clusters"
	"github.com/giantswarm/kubedash/internal/instrumentation"
	"github.com/giantswarm/kubedash/internal/kubeauth"
	"github.com/giantswarm/kubedash/internal/patch"
	"github.com/giantswarm/kubedash/internal/server"
	"github.com/giantswarm/kubedash/internal/tools"
)

// operationPatch is the operation name checked against the safety settings.
const operationPatch = "patch"

// credentialFor maps the cluster argument to a credential, or returns an
// error result for unknown clusters.
func credentialFor(sc *server.ServerContext, args map[string]any) (kubeauth.ClusterCredential, *mcp.CallToolResult) {
	name, errResult := tools.RequiredStringArg(args, tools.ArgCluster)
	if errResult != nil {
		return kubeauth.ClusterCredential{}, errResult
	}
	cred, err := sc.Credential(name)
	if err != nil {
		if errors.Is(err, clusters.ErrClusterNotFound) {
			return kubeauth.ClusterCredential{}, mcp.NewToolResultError(fmt.Sprintf("cluster %q is not registered", name))
		}
		return kubeauth.ClusterCredential{}, mcp.NewToolResultError(err.Error())
	}
	return cred, nil
}

// handleGetResource loads a live object as editable YAML.
func handleGetResource(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	cred, errResult := credentialFor(sc, args)
	if errResult != nil {
		return errResult, nil
	}
	kind, errResult := tools.RequiredStringArg(args, tools.ArgKind)
	if errResult != nil {
		return errResult, nil
	}
	name, errResult := tools.RequiredStringArg(args, tools.ArgName)
	if errResult != nil {
		return errResult, nil
	}
	namespace := tools.StringArg(args, tools.ArgNamespace)

	rendered, err := sc.Engine().Get(ctx, cred, kind, name, namespace)
	if err != nil {
		return failureResult(ctx, err), nil
	}

	return mcp.NewToolResultText(rendered), nil
}

// handlePatchResource dry-runs and, unless the server is in dry-run mode,
// applies an edited resource.
func handlePatchResource(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	if errResult := tools.CheckMutatingOperation(sc, operationPatch); errResult != nil {
		return errResult, nil
	}

	cred, errResult := credentialFor(sc, args)
	if errResult != nil {
		return errResult, nil
	}
	kind, errResult := tools.RequiredStringArg(args, tools.ArgKind)
	if errResult != nil {
		return errResult, nil
	}
	name, errResult := tools.RequiredStringArg(args, tools.ArgName)
	if errResult != nil {
		return errResult, nil
	}
	oldYAML, errResult := tools.RequiredStringArg(args, tools.ArgOldYAML)
	if errResult != nil {
		return errResult, nil
	}
	newYAML, errResult := tools.RequiredStringArg(args, tools.ArgNewYAML)
	if errResult != nil {
		return errResult, nil
	}

	req := patch.PatchRequest{
		Kind:      kind,
		Name:      name,
		Namespace: tools.StringArg(args, tools.ArgNamespace),
		OldYAML:   oldYAML,
		NewYAML:   newYAML,
	}

	if errResult := tools.CheckNamespaceAllowed(sc, operationPatch, patch.TargetNamespace(req)); errResult != nil {
		return errResult, nil
	}

	dryRun := sc.Config().DryRun
	var result patch.PatchResult
	if dryRun {
		result = sc.Engine().Validate(ctx, cred, req)
	} else {
		result = sc.Engine().Patch(ctx, cred, req)
	}

	tools.Annotate(ctx, func(ti *instrumentation.ToolInvocation) {
		ti.WithDryRun(dryRun).WithChanges(patch.CountChanges(result.Changes))
		ti.ErrorKind = string(result.ErrorKind)
	})

	if !result.Success {
		return mcp.NewToolResultError(result.Message), nil
	}
	return jsonResult(result)
}

// handleDiffResource compares two documents locally.
func handleDiffResource(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	oldYAML, errResult := tools.RequiredStringArg(args, tools.ArgOldYAML)
	if errResult != nil {
		return errResult, nil
	}
	newYAML, errResult := tools.RequiredStringArg(args, tools.ArgNewYAML)
	if errResult != nil {
		return errResult, nil
	}

	changes, err := patch.Diff(oldYAML, newYAML)
	if err != nil {
		return failureResult(ctx, err), nil
	}

	tools.Annotate(ctx, func(ti *instrumentation.ToolInvocation) {
		ti.WithChanges(patch.CountChanges(changes))
	})

	return jsonResult(map[string]any{"changes": changes})
}

// handleListKinds lists the kinds the patch engine supports.
func handleListKinds(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"kinds": patch.Kinds()})
}

// failureResult turns an engine error into a tool error result, keeping
// internal causes out of the message.
func failureResult(ctx context.Context, err error) *mcp.CallToolResult {
	var patchErr *patch.Error
	if errors.As(err, &patchErr) {
		tools.Annotate(ctx, func(ti *instrumentation.ToolInvocation) {
			ti.ErrorKind = string(patchErr.Kind)
		})
		return mcp.NewToolResultError(patchErr.UserFacingError())
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
