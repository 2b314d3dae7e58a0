package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/kubedash/internal/server/middleware"
)

const (
	// DefaultMCPEndpoint is the path the streamable HTTP transport serves.
	DefaultMCPEndpoint = "/mcp"

	// DefaultReadHeaderTimeout is the default timeout for reading request headers
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultWriteTimeout is the default timeout for writing responses. A patch
	// resolves credentials and makes two API calls, each with its own timeout.
	DefaultWriteTimeout = 120 * time.Second

	// DefaultIdleTimeout is the default idle timeout for keepalive connections
	DefaultIdleTimeout = 120 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown
	DefaultShutdownTimeout = 30 * time.Second
)

// HTTPConfig holds configuration for the streamable HTTP transport.
type HTTPConfig struct {
	// Endpoint is the MCP path (default: /mcp).
	Endpoint string

	// DisableStreaming turns off server-sent event streams on the endpoint.
	DisableStreaming bool

	// EnableHSTS sets Strict-Transport-Security for plain HTTP behind a TLS proxy.
	EnableHSTS bool

	// AllowedOrigins is a comma-separated list of browser origins allowed by CORS.
	AllowedOrigins string

	// MaxRequestSize bounds request bodies (default: middleware.DefaultMaxRequestSize).
	// Zero uses the default, a negative value disables the limit.
	MaxRequestSize int64
}

// HTTPServer serves the MCP endpoint and the health probes over HTTP.
type HTTPServer struct {
	mcpServer  *mcpserver.MCPServer
	sc         *ServerContext
	config     HTTPConfig
	origins    []string
	health     *HealthChecker
	httpServer *http.Server
}

// NewHTTPServer validates config and prepares an HTTPServer.
func NewHTTPServer(mcpServer *mcpserver.MCPServer, sc *ServerContext, config HTTPConfig) (*HTTPServer, error) {
	if mcpServer == nil {
		return nil, fmt.Errorf("MCP server is required")
	}
	if sc == nil {
		return nil, fmt.Errorf("server context is required")
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultMCPEndpoint
	}
	if config.MaxRequestSize == 0 {
		config.MaxRequestSize = middleware.DefaultMaxRequestSize
	}

	origins, err := middleware.ValidateAllowedOrigins(config.AllowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("invalid allowed origins: %w", err)
	}

	return &HTTPServer{
		mcpServer: mcpServer,
		sc:        sc,
		config:    config,
		origins:   origins,
		health:    NewHealthChecker(sc),
	}, nil
}

// Endpoint returns the MCP path.
func (s *HTTPServer) Endpoint() string {
	return s.config.Endpoint
}

// HealthChecker returns the checker backing /healthz and /readyz.
func (s *HTTPServer) HealthChecker() *HealthChecker {
	return s.health
}

// Handler builds the full handler chain: metrics, security headers, CORS and
// the request size limit around the MCP and health routes.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	opts := []mcpserver.StreamableHTTPOption{mcpserver.WithEndpointPath(s.config.Endpoint)}
	if s.config.DisableStreaming {
		opts = append(opts, mcpserver.WithDisableStreaming(true))
	}
	mux.Handle(s.config.Endpoint, mcpserver.NewStreamableHTTPServer(s.mcpServer, opts...))

	s.health.RegisterHealthEndpoints(mux)

	var handler http.Handler = mux
	handler = middleware.MaxRequestSize(s.config.MaxRequestSize)(handler)
	handler = middleware.CORS(s.origins)(handler)
	handler = middleware.SecurityHeaders(middleware.SecurityHeadersConfig{EnableHSTS: s.config.EnableHSTS})(handler)
	handler = middleware.HTTPMetrics(s.sc.InstrumentationProvider())(handler)
	return handler
}

// Start listens on addr and blocks until the server stops.
func (s *HTTPServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server not ready and drains connections.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
