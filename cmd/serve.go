package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/giantswarm/kubedash/internal/clusters"
	"github.com/giantswarm/kubedash/internal/instrumentation"
	"github.com/giantswarm/kubedash/internal/logging"
	"github.com/giantswarm/kubedash/internal/server"
	"github.com/giantswarm/kubedash/internal/tools/cluster"
	"github.com/giantswarm/kubedash/internal/tools/resource"
)

// Transport type constants for the MCP server.
const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

// envValueTrue is the string value used to enable boolean environment variables.
const envValueTrue = "true"

// ServeConfig holds the flags of the serve command.
type ServeConfig struct {
	Transport string

	// Streamable HTTP
	HTTPAddr         string
	HTTPEndpoint     string
	DisableStreaming bool
	AllowedOrigins   string
	EnableHSTS       bool
	MaxRequestSize   int64

	// Metrics server
	Metrics MetricsServeConfig

	// Safety
	NonDestructiveMode   bool
	AllowPatch           bool
	DryRun               bool
	RestrictedNamespaces []string

	// Clusters
	InCluster                 bool
	AllowUnregisteredContexts bool
	CheckConcurrency          int
}

// MetricsServeConfig configures the dedicated metrics listener.
type MetricsServeConfig struct {
	Enabled bool
	Addr    string
}

// validate rejects flag combinations the server cannot run with.
func (c ServeConfig) validate() error {
	switch c.Transport {
	case transportStdio, transportStreamableHTTP:
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: %s, %s)", c.Transport, transportStdio, transportStreamableHTTP)
	}
	if c.Transport == transportStreamableHTTP {
		if c.HTTPAddr == "" {
			return fmt.Errorf("--http-addr is required for the %s transport", transportStreamableHTTP)
		}
		if !strings.HasPrefix(c.HTTPEndpoint, "/") {
			return fmt.Errorf("--http-endpoint must start with '/', got %q", c.HTTPEndpoint)
		}
	}
	if c.CheckConcurrency < 1 {
		return fmt.Errorf("--check-concurrency must be at least 1, got %d", c.CheckConcurrency)
	}
	return nil
}

// allowedOperations returns the operations permitted in non-destructive mode.
func (c ServeConfig) allowedOperations() []string {
	operations := server.NewDefaultConfig().AllowedOperations
	if c.AllowPatch {
		operations = append(operations, "patch")
	}
	return operations
}

// newServeCmd creates the Cobra command for starting the MCP server.
func newServeCmd() *cobra.Command {
	config := ServeConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the kubedash MCP server",
		Long: `Start the kubedash server to expose context resolution and resource
patching as tools of the Model Context Protocol.

Supports two transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport with /healthz and /readyz probes

Safety:
  By default the server runs in non-destructive mode and rejects patches.
  Use --allow-patch to permit them, or --non-destructive=false to lift all
  restrictions. With --dry-run patches stop after the server-side dry run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadEnvIfEmpty(&config.AllowedOrigins, "ALLOWED_ORIGINS")
			if !cmd.Flags().Changed("enable-hsts") && os.Getenv("ENABLE_HSTS") == envValueTrue {
				config.EnableHSTS = true
			}
			return runServe(cmd, config)
		},
	}

	cmd.Flags().StringVar(&config.Transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&config.HTTPAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().StringVar(&config.HTTPEndpoint, "http-endpoint", server.DefaultMCPEndpoint, "HTTP endpoint path (for streamable-http transport)")
	cmd.Flags().BoolVar(&config.DisableStreaming, "disable-streaming", false, "Disable server-sent event streams on the HTTP endpoint")
	cmd.Flags().StringVar(&config.AllowedOrigins, "allowed-origins", "", "Comma-separated browser origins allowed by CORS (env ALLOWED_ORIGINS)")
	cmd.Flags().BoolVar(&config.EnableHSTS, "enable-hsts", false, "Send Strict-Transport-Security headers (env ENABLE_HSTS)")
	cmd.Flags().Int64Var(&config.MaxRequestSize, "max-request-size", 0, "Maximum request body size in bytes (0 uses the default, negative disables the limit)")

	cmd.Flags().BoolVar(&config.Metrics.Enabled, "metrics-enabled", true, "Serve Prometheus metrics on a dedicated listener when instrumentation is enabled")
	cmd.Flags().StringVar(&config.Metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address")

	cmd.Flags().BoolVar(&config.NonDestructiveMode, "non-destructive", true, "Only allow read operations and diffs")
	cmd.Flags().BoolVar(&config.AllowPatch, "allow-patch", false, "Allow patches in non-destructive mode")
	cmd.Flags().BoolVar(&config.DryRun, "dry-run", false, "Validate patches with a server-side dry run without applying them")
	cmd.Flags().StringSliceVar(&config.RestrictedNamespaces, "restricted-namespaces", server.NewDefaultConfig().RestrictedNamespaces, "Namespaces patches may not target in non-destructive mode")

	cmd.Flags().BoolVar(&config.InCluster, "in-cluster", false, "Register the pod's service account as the \"in-cluster\" cluster")
	cmd.Flags().BoolVar(&config.AllowUnregisteredContexts, "allow-unregistered-contexts", true, "Accept kubeconfig context names that are not in the clusters file")
	cmd.Flags().IntVar(&config.CheckConcurrency, "check-concurrency", clusters.DefaultCheckConcurrency, "Maximum number of clusters checked concurrently")

	return cmd
}

// runServe wires the resolver, engine and registry into an MCP server and
// blocks until the transport stops.
func runServe(cmd *cobra.Command, config ServeConfig) error {
	if err := config.validate(); err != nil {
		return err
	}

	opts := loadGlobalOptions(globalConfig)
	logger, err := opts.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instrumentationConfig := instrumentation.DefaultConfig()
	instrumentationConfig.ServiceVersion = rootCmd.Version
	instrumentationProvider, err := instrumentation.NewProvider(shutdownCtx, instrumentationConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if shutdownErr := instrumentationProvider.Shutdown(context.Background()); shutdownErr != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(shutdownErr))
		}
	}()

	if instrumentationProvider.Enabled() {
		logger.Info("OpenTelemetry instrumentation enabled",
			slog.String("metrics_exporter", instrumentationConfig.MetricsExporter),
			slog.String("tracing_exporter", instrumentationConfig.TracingExporter))
	}

	registry, err := opts.loadRegistry(config.InCluster)
	if err != nil {
		return err
	}
	logger.Info("cluster registry loaded", slog.Int("clusters", registry.Len()))

	metrics := instrumentationProvider.Metrics()
	resolver := opts.newResolver(logger, metrics)

	serverConfig := server.NewDefaultConfig()
	serverConfig.Version = rootCmd.Version
	serverConfig.KubeConfigPath = opts.Kubeconfig
	serverConfig.InCluster = config.InCluster
	serverConfig.AllowUnregisteredContexts = config.AllowUnregisteredContexts
	serverConfig.CheckConcurrency = config.CheckConcurrency
	serverConfig.NonDestructiveMode = config.NonDestructiveMode
	serverConfig.DryRun = config.DryRun
	serverConfig.LogLevel = opts.logLevel()
	serverConfig.LogFormat = opts.LogFormat
	serverConfig.AllowedOperations = config.allowedOperations()
	serverConfig.RestrictedNamespaces = config.RestrictedNamespaces

	serverContext, err := server.NewServerContext(shutdownCtx,
		server.WithResolver(resolver),
		server.WithEngine(opts.newEngine(resolver, logger, metrics)),
		server.WithClusters(registry),
		server.WithLogger(logging.NewSlogAdapter(logger)),
		server.WithConfig(serverConfig),
		server.WithInstrumentationProvider(instrumentationProvider),
		server.WithAuditLogger(instrumentation.NewAuditLogger(logger)),
	)
	if err != nil {
		resolver.Close()
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}()

	mcpSrv, err := newMCPServer(serverContext)
	if err != nil {
		return err
	}

	logger.Info("starting kubedash server",
		slog.String("transport", config.Transport),
		slog.Bool("non_destructive", config.NonDestructiveMode),
		slog.Bool("dry_run", config.DryRun))

	switch config.Transport {
	case transportStreamableHTTP:
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, config, logger)
	default:
		return runStdioServer(mcpSrv, logger)
	}
}

// newMCPServer creates the MCP server and registers every tool.
func newMCPServer(sc *server.ServerContext) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("kubedash", rootCmd.Version,
		mcpserver.WithToolCapabilities(true),
	)

	if err := resource.RegisterResourceTools(mcpSrv, sc); err != nil {
		return nil, fmt.Errorf("failed to register resource tools: %w", err)
	}
	if err := cluster.RegisterClusterTools(mcpSrv, sc); err != nil {
		return nil, fmt.Errorf("failed to register cluster tools: %w", err)
	}

	return mcpSrv, nil
}
