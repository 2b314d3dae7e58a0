package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/giantswarm/kubedash/internal/clusters"
	"github.com/giantswarm/kubedash/internal/instrumentation"
	"github.com/giantswarm/kubedash/internal/kubeauth"
	"github.com/giantswarm/kubedash/internal/logging"
	"github.com/giantswarm/kubedash/internal/patch"
	"github.com/giantswarm/kubedash/internal/server"
)

// envPrefix is the prefix of every environment override of a global flag,
// e.g. KUBEDASH_CLUSTERS_FILE for --clusters-file.
const envPrefix = "KUBEDASH"

// Global flag names.
const (
	flagKubeconfig      = "kubeconfig"
	flagClustersFile    = "clusters-file"
	flagLogLevel        = "log-level"
	flagLogFormat       = "log-format"
	flagDebug           = "debug"
	flagTimeout         = "timeout"
	flagCacheTTL        = "cache-ttl"
	flagCacheMaxEntries = "cache-max-entries"
	flagQPS             = "qps"
	flagBurst           = "burst"
)

// globalOptions holds the flags shared by every command that talks to a
// cluster.
type globalOptions struct {
	Kubeconfig      string
	ClustersFile    string
	LogLevel        string
	LogFormat       string
	Debug           bool
	Timeout         time.Duration
	CacheTTL        time.Duration
	CacheMaxEntries int
	QPS             float32
	Burst           int
}

// globalConfig resolves global flags against KUBEDASH_* environment variables.
// Explicit flags win over the environment.
var globalConfig = newConfig()

func newConfig() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// addGlobalFlags registers the global flags on flags and binds them to v.
func addGlobalFlags(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String(flagKubeconfig, "", "Kubeconfig used for contexts that are not in the clusters file (default: $KUBECONFIG or ~/.kube/config)")
	flags.String(flagClustersFile, "", "YAML file of named clusters (env KUBEDASH_CLUSTERS_FILE)")
	flags.String(flagLogLevel, "info", "Log level: debug, info, warn or error")
	flags.String(flagLogFormat, logging.FormatText, "Log format: text or json")
	flags.Bool(flagDebug, false, "Shorthand for --log-level=debug")
	flags.Duration(flagTimeout, kubeauth.DefaultCallTimeout, "Timeout of each call to a cloud provider or Kubernetes API server")
	flags.Duration(flagCacheTTL, 0, "Cache resolved credentials for this long (0 disables the cache)")
	flags.Int(flagCacheMaxEntries, kubeauth.DefaultCacheMaxEntries, "Maximum number of cached credentials")
	flags.Float32(flagQPS, kubeauth.DefaultQPSLimit, "QPS limit of Kubernetes API clients")
	flags.Int(flagBurst, kubeauth.DefaultBurstLimit, "Burst limit of Kubernetes API clients")

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
}

// loadGlobalOptions reads the bound global flags.
func loadGlobalOptions(v *viper.Viper) globalOptions {
	return globalOptions{
		Kubeconfig:      v.GetString(flagKubeconfig),
		ClustersFile:    v.GetString(flagClustersFile),
		LogLevel:        v.GetString(flagLogLevel),
		LogFormat:       v.GetString(flagLogFormat),
		Debug:           v.GetBool(flagDebug),
		Timeout:         v.GetDuration(flagTimeout),
		CacheTTL:        v.GetDuration(flagCacheTTL),
		CacheMaxEntries: v.GetInt(flagCacheMaxEntries),
		QPS:             float32(v.GetFloat64(flagQPS)),
		Burst:           v.GetInt(flagBurst),
	}
}

// logLevel returns the effective log level.
func (o globalOptions) logLevel() string {
	if o.Debug {
		return "debug"
	}
	return o.LogLevel
}

// newLogger builds the process logger. Logs always go to w, which is stderr
// outside tests because the stdio transport owns stdout.
func (o globalOptions) newLogger(w io.Writer) (*slog.Logger, error) {
	return logging.New(w, o.logLevel(), o.LogFormat)
}

// newResolver builds the context resolver. metrics may be nil.
func (o globalOptions) newResolver(logger *slog.Logger, metrics *instrumentation.Metrics) *kubeauth.Resolver {
	opts := []kubeauth.Option{
		kubeauth.WithCallTimeout(o.Timeout),
		kubeauth.WithRateLimits(o.QPS, o.Burst),
		kubeauth.WithLogger(logger),
	}
	if metrics != nil {
		opts = append(opts, kubeauth.WithRecorder(metrics))
	}
	if o.CacheTTL > 0 {
		var cacheMetrics kubeauth.CacheMetricsRecorder
		if metrics != nil {
			cacheMetrics = metrics
		}
		opts = append(opts, kubeauth.WithCache(kubeauth.CacheConfig{
			TTL:        o.CacheTTL,
			MaxEntries: o.CacheMaxEntries,
		}, cacheMetrics))
	}
	return kubeauth.NewResolver(opts...)
}

// newEngine builds the patch engine on top of resolver. metrics may be nil.
func (o globalOptions) newEngine(resolver patch.ContextResolver, logger *slog.Logger, metrics *instrumentation.Metrics) *patch.Engine {
	opts := []patch.EngineOption{
		patch.WithCallTimeout(o.Timeout),
		patch.WithLogger(logger),
	}
	if metrics != nil {
		opts = append(opts, patch.WithRecorder(metrics))
	}
	return patch.NewEngine(resolver, opts...)
}

// loadRegistry loads the clusters file, or returns an empty registry when no
// file is configured. With inCluster the service account is registered as
// the "in-cluster" cluster unless the file already names one.
func (o globalOptions) loadRegistry(inCluster bool) (*clusters.Registry, error) {
	var creds []kubeauth.ClusterCredential
	if o.ClustersFile != "" {
		registry, err := clusters.Load(o.ClustersFile)
		if err != nil {
			return nil, err
		}
		creds = registry.List()
	}

	if inCluster {
		registered := false
		for _, cred := range creds {
			if cred.Name == kubeauth.InClusterContext {
				registered = true
				break
			}
		}
		if !registered {
			creds = append(creds, kubeauth.ClusterCredential{
				Name:        kubeauth.InClusterContext,
				ContextName: kubeauth.InClusterContext,
			})
		}
	}

	return clusters.NewRegistry(creds...)
}

// cliSession bundles what a one-shot command needs to reach a cluster.
type cliSession struct {
	logger *slog.Logger
	sc     *server.ServerContext
}

// newCLISession wires a resolver, engine and registry for a one-shot command.
// The caller must call close.
func newCLISession(ctx context.Context, cmd *cobra.Command) (*cliSession, error) {
	opts := loadGlobalOptions(globalConfig)

	logger, err := opts.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	registry, err := opts.loadRegistry(false)
	if err != nil {
		return nil, err
	}

	resolver := opts.newResolver(logger, nil)
	serverConfig := server.NewDefaultConfig()
	serverConfig.Version = rootCmd.Version
	serverConfig.KubeConfigPath = opts.Kubeconfig
	serverConfig.LogLevel = opts.logLevel()
	serverConfig.LogFormat = opts.LogFormat
	// The operator at the terminal is trusted with patches.
	serverConfig.NonDestructiveMode = false

	sc, err := server.NewServerContext(ctx,
		server.WithResolver(resolver),
		server.WithEngine(opts.newEngine(resolver, logger, nil)),
		server.WithClusters(registry),
		server.WithLogger(logging.NewSlogAdapter(logger)),
		server.WithConfig(serverConfig),
	)
	if err != nil {
		resolver.Close()
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}

	return &cliSession{logger: logger, sc: sc}, nil
}

func (s *cliSession) close() {
	if err := s.sc.Shutdown(); err != nil {
		s.logger.Warn("error during shutdown", logging.Err(err))
	}
}

// loadEnvIfEmpty loads an environment variable into a string pointer if it's empty.
func loadEnvIfEmpty(target *string, envKey string) {
	if *target == "" {
		*target = os.Getenv(envKey)
	}
}
