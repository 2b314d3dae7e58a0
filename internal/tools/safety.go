// Package tools provides shared utilities for MCP tool handlers.
package tools

import (
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/giantswarm/kubedash/internal/server"
)

// CheckMutatingOperation verifies if a mutating operation is allowed given the current
// server configuration. Returns an error result if blocked, nil if allowed.
//
// Operations are allowed if:
//   - NonDestructiveMode is disabled, OR
//   - DryRun mode is enabled (patches are dry-run on the server but not applied), OR
//   - The operation is explicitly listed in AllowedOperations
func CheckMutatingOperation(sc *server.ServerContext, operation string) *mcp.CallToolResult {
	config := sc.Config()
	if !config.NonDestructiveMode || config.DryRun {
		return nil
	}

	if slices.Contains(config.AllowedOperations, operation) {
		return nil
	}

	return mcp.NewToolResultError(fmt.Sprintf(
		"%s operations are not allowed in non-destructive mode (use --dry-run to validate without applying, or --allow-patch)",
		cases.Title(language.English).String(operation),
	))
}

// CheckNamespaceAllowed blocks mutating operations on restricted namespaces
// while non-destructive mode is on. An empty namespace is always allowed.
func CheckNamespaceAllowed(sc *server.ServerContext, operation, namespace string) *mcp.CallToolResult {
	config := sc.Config()
	if !config.NonDestructiveMode || namespace == "" {
		return nil
	}

	if !slices.Contains(config.RestrictedNamespaces, namespace) {
		return nil
	}

	return mcp.NewToolResultError(fmt.Sprintf(
		"%s operations on namespace %q are not allowed in non-destructive mode",
		cases.Title(language.English).String(operation), namespace,
	))
}
