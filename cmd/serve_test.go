package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/kubedash/internal/tools/cluster"
	"github.com/giantswarm/kubedash/internal/tools/resource"
)

func TestServeCmdProperties(t *testing.T) {
	cmd := newServeCmd()

	assert.Equal(t, "serve", cmd.Use)
	assert.Equal(t, "Start the kubedash MCP server", cmd.Short)
	assert.Contains(t, cmd.Long, "Model Context Protocol")
	assert.Contains(t, cmd.Long, "stdio")
	assert.Contains(t, cmd.Long, "streamable-http")
}

func TestServeCmdFlagDefaults(t *testing.T) {
	cmd := newServeCmd()

	tests := []struct {
		flagName string
		expected string
	}{
		{"transport", "stdio"},
		{"http-addr", ":8080"},
		{"http-endpoint", "/mcp"},
		{"disable-streaming", "false"},
		{"allowed-origins", ""},
		{"enable-hsts", "false"},
		{"max-request-size", "0"},
		{"metrics-enabled", "true"},
		{"metrics-addr", ":9090"},
		{"non-destructive", "true"},
		{"allow-patch", "false"},
		{"dry-run", "false"},
		{"restricted-namespaces", "[kube-system,kube-public]"},
		{"in-cluster", "false"},
		{"allow-unregistered-contexts", "true"},
		{"check-concurrency", "5"},
	}

	for _, tt := range tests {
		flag := cmd.Flags().Lookup(tt.flagName)
		require.NotNil(t, flag, "flag %s should exist", tt.flagName)
		assert.Equal(t, tt.expected, flag.DefValue, "flag %s default", tt.flagName)
	}
}

func TestServeConfigValidate(t *testing.T) {
	valid := ServeConfig{
		Transport:        transportStreamableHTTP,
		HTTPAddr:         ":8080",
		HTTPEndpoint:     "/mcp",
		CheckConcurrency: 5,
	}

	tests := []struct {
		name          string
		mutate        func(*ServeConfig)
		errorContains string
	}{
		{name: "valid streamable-http", mutate: func(*ServeConfig) {}},
		{
			name:   "stdio ignores HTTP settings",
			mutate: func(c *ServeConfig) { c.Transport = transportStdio; c.HTTPAddr = "" },
		},
		{
			name:          "sse is not supported",
			mutate:        func(c *ServeConfig) { c.Transport = "sse" },
			errorContains: "unsupported transport type: sse",
		},
		{
			name:          "missing address",
			mutate:        func(c *ServeConfig) { c.HTTPAddr = "" },
			errorContains: "--http-addr is required",
		},
		{
			name:          "relative endpoint",
			mutate:        func(c *ServeConfig) { c.HTTPEndpoint = "mcp" },
			errorContains: "must start with '/'",
		},
		{
			name:          "zero concurrency",
			mutate:        func(c *ServeConfig) { c.CheckConcurrency = 0 },
			errorContains: "--check-concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)

			err := config.validate()
			if tt.errorContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestServeConfigAllowedOperations(t *testing.T) {
	assert.NotContains(t, ServeConfig{}.allowedOperations(), "patch")
	assert.Contains(t, ServeConfig{AllowPatch: true}.allowedOperations(), "patch")
}

func TestNewMCPServerRegistersTools(t *testing.T) {
	setGlobalFlags(t, map[string]string{})
	session, err := newCLISession(t.Context(), newServeCmd())
	require.NoError(t, err)
	t.Cleanup(session.close)

	mcpSrv, err := newMCPServer(session.sc)
	require.NoError(t, err)

	tools := mcpSrv.ListTools()
	for _, name := range []string{
		resource.ToolGet, resource.ToolPatch, resource.ToolDiff, resource.ToolKinds,
		cluster.ToolList, cluster.ToolCheck,
	} {
		assert.Contains(t, tools, name)
	}
}
