package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/giantswarm/kubedash/internal/clusters"
	"github.com/giantswarm/kubedash/internal/instrumentation"
	"github.com/giantswarm/kubedash/internal/kubeauth"
	"github.com/giantswarm/kubedash/internal/logging"
	"github.com/giantswarm/kubedash/internal/patch"
)

// Resolver turns a kubeconfig context into a live client configuration.
// *kubeauth.Resolver is the production implementation.
type Resolver interface {
	Resolve(ctx context.Context, path, contextName string) (*kubeauth.LiveClientConfig, error)
}

// cacheSizer is implemented by resolvers that cache credentials.
type cacheSizer interface {
	CacheSize() int
}

// closer is implemented by resolvers that own background goroutines.
type closer interface {
	Close()
}

// ServerContext encapsulates all dependencies needed by the MCP server
// and provides a clean abstraction for dependency injection and lifecycle management.
type ServerContext struct {
	// Core dependencies
	resolver Resolver
	engine   *patch.Engine
	clusters *clusters.Registry
	logger   logging.Logger
	config   *Config

	// Observability
	instrumentationProvider *instrumentation.Provider
	auditLogger             *instrumentation.AuditLogger

	// Context management
	ctx    context.Context
	cancel context.CancelFunc

	// Lifecycle management
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new ServerContext with default values.
// Use the provided functional options to customize the context.
func NewServerContext(ctx context.Context, opts ...Option) (*ServerContext, error) {
	serverCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:    serverCtx,
		cancel: cancel,
		config: NewDefaultConfig(),
		logger: logging.DefaultLogger(),
	}

	for _, opt := range opts {
		if err := opt(sc); err != nil {
			cancel()
			return nil, err
		}
	}

	if err := sc.validate(); err != nil {
		cancel()
		return nil, err
	}

	if sc.engine == nil {
		sc.engine = patch.NewEngine(sc.resolver)
	}
	if sc.clusters == nil {
		registry, err := clusters.NewRegistry()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create empty cluster registry: %w", err)
		}
		sc.clusters = registry
	}

	return sc, nil
}

// Context returns the server context for cancellation and deadlines.
func (sc *ServerContext) Context() context.Context {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.ctx
}

// Resolver returns the context resolver.
func (sc *ServerContext) Resolver() Resolver {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.resolver
}

// Engine returns the patch engine.
func (sc *ServerContext) Engine() *patch.Engine {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.engine
}

// Clusters returns the cluster registry.
func (sc *ServerContext) Clusters() *clusters.Registry {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.clusters
}

// Credential returns the credential for a cluster. Registered names win.
// Any other name is treated as a context in the default kubeconfig.
func (sc *ServerContext) Credential(name string) (kubeauth.ClusterCredential, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	cred, err := sc.clusters.Get(name)
	if err == nil {
		return cred, nil
	}
	if !errors.Is(err, clusters.ErrClusterNotFound) {
		return kubeauth.ClusterCredential{}, err
	}
	if name == "" {
		return kubeauth.ClusterCredential{}, fmt.Errorf("%w: a cluster or context name is required", clusters.ErrClusterNotFound)
	}
	if !sc.config.AllowUnregisteredContexts {
		return kubeauth.ClusterCredential{}, err
	}

	return kubeauth.ClusterCredential{
		Name:           name,
		KubeconfigPath: sc.config.KubeConfigPath,
		ContextName:    name,
	}, nil
}

// CachedCredentials reports how many credentials the resolver holds, or
// zero when it does not cache.
func (sc *ServerContext) CachedCredentials() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if sizer, ok := sc.resolver.(cacheSizer); ok {
		return sizer.CacheSize()
	}
	return 0
}

// Logger returns the logger interface.
func (sc *ServerContext) Logger() logging.Logger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.logger
}

// Config returns the server configuration.
func (sc *ServerContext) Config() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config
}

// InstrumentationProvider returns the instrumentation provider, which may be nil.
func (sc *ServerContext) InstrumentationProvider() *instrumentation.Provider {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.instrumentationProvider
}

// Metrics returns the metrics recorder, or nil without instrumentation.
// All *instrumentation.Metrics methods accept a nil receiver.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.InstrumentationProvider().Metrics()
}

// AuditLogger returns the audit logger, which may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// InClusterMode reports whether the server runs with the pod's service account.
func (sc *ServerContext) InClusterMode() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.InCluster
}

// Shutdown gracefully shuts down the server context.
// This cancels the context and releases any resources.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.logger.Info("Shutting down server context")

	if c, ok := sc.resolver.(closer); ok {
		c.Close()
	}

	if sc.cancel != nil {
		sc.cancel()
	}

	sc.shutdown = true

	sc.logger.Info("Server context shutdown complete")
	return nil
}

// IsShutdown returns true if the server context has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// validate ensures all required dependencies are set.
func (sc *ServerContext) validate() error {
	if sc.resolver == nil {
		return ErrMissingResolver
	}
	if sc.logger == nil {
		return ErrMissingLogger
	}
	if sc.config == nil {
		return ErrMissingConfig
	}
	return nil
}

// Config holds the server configuration.
type Config struct {
	// Server settings
	ServerName string `json:"serverName"`
	Version    string `json:"version"`

	// Kubernetes settings
	KubeConfigPath            string `json:"kubeConfigPath"`
	InCluster                 bool   `json:"inCluster"`
	AllowUnregisteredContexts bool   `json:"allowUnregisteredContexts"`
	CheckConcurrency          int    `json:"checkConcurrency"`

	// Non-destructive mode settings
	NonDestructiveMode bool `json:"nonDestructiveMode"`
	DryRun             bool `json:"dryRun"`

	// Logging settings
	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"`

	// Security settings
	AllowedOperations    []string `json:"allowedOperations"`
	RestrictedNamespaces []string `json:"restrictedNamespaces"`
}

// NewDefaultConfig creates a configuration with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		ServerName:                "kubedash",
		Version:                   "0.1.0",
		AllowUnregisteredContexts: true,
		CheckConcurrency:          clusters.DefaultCheckConcurrency,
		NonDestructiveMode:        true,
		DryRun:                    false,
		LogLevel:                  "info",
		LogFormat:                 "text",
		AllowedOperations:         []string{"get", "list", "diff", "check"},
		RestrictedNamespaces:      []string{"kube-system", "kube-public"},
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	clone := *c

	// Deep copy slices
	if c.AllowedOperations != nil {
		clone.AllowedOperations = make([]string, len(c.AllowedOperations))
		copy(clone.AllowedOperations, c.AllowedOperations)
	}

	if c.RestrictedNamespaces != nil {
		clone.RestrictedNamespaces = make([]string, len(c.RestrictedNamespaces))
		copy(clone.RestrictedNamespaces, c.RestrictedNamespaces)
	}

	return &clone
}
