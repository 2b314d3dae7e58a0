// Package cmd provides the command-line interface for kubedash.
//
// This package implements a Cobra-based CLI with these subcommands:
//   - serve: Starts the MCP server (default behavior when no subcommand is provided)
//   - resolve: Resolves a cluster or kubeconfig context and prints the result
//   - clusters list|check: Lists the clusters file and checks reachability
//   - get: Prints a live resource as editable YAML
//   - patch: Applies an edited resource after a server-side dry run
//   - diff: Compares two resource YAML files offline
//   - version: Displays the application version
//   - self-update: Updates the binary to the latest version from GitHub releases
//
// Global flags are bound to viper, so every one of them can also be set
// through a KUBEDASH_ prefixed environment variable:
//
//	kubedash --clusters-file clusters.yaml clusters check
//	KUBEDASH_CLUSTERS_FILE=clusters.yaml kubedash clusters check
//
// The serve command supports two transports:
//   - stdio: Standard input/output (default) - for command-line integration
//   - streamable-http: Streamable HTTP transport - for HTTP-based integration
//
// Transport Configuration Examples:
//
//	kubedash serve --transport stdio
//	kubedash serve --transport streamable-http --http-addr :9000 --http-endpoint /mcp
//
// The server starts in non-destructive mode. One-shot commands run by an
// operator at a terminal are not restricted.
package cmd
