package server

import (
	"errors"

	"github.com/giantswarm/kubedash/internal/clusters"
	"github.com/giantswarm/kubedash/internal/instrumentation"
	"github.com/giantswarm/kubedash/internal/logging"
	"github.com/giantswarm/kubedash/internal/patch"
)

// Option is a functional option for configuring ServerContext.
type Option func(*ServerContext) error

// WithResolver sets the context resolver for the ServerContext.
func WithResolver(resolver Resolver) Option {
	return func(sc *ServerContext) error {
		if resolver == nil {
			return ErrMissingResolver
		}
		sc.resolver = resolver
		return nil
	}
}

// WithEngine sets the patch engine. Without it the ServerContext builds an
// engine on top of its resolver.
func WithEngine(engine *patch.Engine) Option {
	return func(sc *ServerContext) error {
		sc.engine = engine
		return nil
	}
}

// WithClusters sets the registry of named clusters.
func WithClusters(registry *clusters.Registry) Option {
	return func(sc *ServerContext) error {
		sc.clusters = registry
		return nil
	}
}

// WithLogger sets the logger for the ServerContext.
func WithLogger(logger logging.Logger) Option {
	return func(sc *ServerContext) error {
		if logger == nil {
			return ErrMissingLogger
		}
		sc.logger = logger
		return nil
	}
}

// WithConfig sets the configuration for the ServerContext.
func WithConfig(config *Config) Option {
	return func(sc *ServerContext) error {
		if config == nil {
			return ErrMissingConfig
		}
		sc.config = config.Clone()
		return nil
	}
}

// WithServerName sets the server name in the configuration.
func WithServerName(name string) Option {
	return func(sc *ServerContext) error {
		if sc.config == nil {
			sc.config = NewDefaultConfig()
		}
		sc.config.ServerName = name
		return nil
	}
}

// WithNonDestructiveMode enables or disables non-destructive mode.
func WithNonDestructiveMode(enabled bool) Option {
	return func(sc *ServerContext) error {
		if sc.config == nil {
			sc.config = NewDefaultConfig()
		}
		sc.config.NonDestructiveMode = enabled
		return nil
	}
}

// WithDryRun enables or disables dry-run mode. In dry-run mode patches stop
// after the server-side dry run.
func WithDryRun(enabled bool) Option {
	return func(sc *ServerContext) error {
		if sc.config == nil {
			sc.config = NewDefaultConfig()
		}
		sc.config.DryRun = enabled
		return nil
	}
}

// WithAllowedOperations replaces the operations permitted in non-destructive mode.
func WithAllowedOperations(operations []string) Option {
	return func(sc *ServerContext) error {
		if sc.config == nil {
			sc.config = NewDefaultConfig()
		}
		if operations != nil {
			sc.config.AllowedOperations = make([]string, len(operations))
			copy(sc.config.AllowedOperations, operations)
		}
		return nil
	}
}

// WithRestrictedNamespaces sets the list of restricted namespaces.
func WithRestrictedNamespaces(namespaces []string) Option {
	return func(sc *ServerContext) error {
		if sc.config == nil {
			sc.config = NewDefaultConfig()
		}
		if namespaces != nil {
			sc.config.RestrictedNamespaces = make([]string, len(namespaces))
			copy(sc.config.RestrictedNamespaces, namespaces)
		}
		return nil
	}
}

// WithInstrumentationProvider sets the OpenTelemetry instrumentation provider.
func WithInstrumentationProvider(provider *instrumentation.Provider) Option {
	return func(sc *ServerContext) error {
		sc.instrumentationProvider = provider
		return nil
	}
}

// WithAuditLogger sets the logger that records every tool invocation.
func WithAuditLogger(logger *instrumentation.AuditLogger) Option {
	return func(sc *ServerContext) error {
		sc.auditLogger = logger
		return nil
	}
}

// Error definitions for ServerContext validation and operations.
var (
	ErrMissingResolver = errors.New("context resolver is required")
	ErrMissingLogger   = errors.New("logger is required")
	ErrMissingConfig   = errors.New("configuration is required")
	ErrServerShutdown  = errors.New("server context has been shutdown")
)
