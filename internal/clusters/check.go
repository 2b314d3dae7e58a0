package clusters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/giantswarm/kubedash/internal/kubeauth"
	"github.com/giantswarm/kubedash/internal/logging"
)

// DefaultCheckConcurrency bounds concurrent cluster checks.
const DefaultCheckConcurrency = 5

// KindAPIServerUnreachable marks a cluster whose credentials resolved but
// whose API server did not answer.
const KindAPIServerUnreachable = "APIServerUnreachable"

// ContextResolver is the part of *kubeauth.Resolver the checks use.
type ContextResolver interface {
	Resolve(ctx context.Context, path, contextName string) (*kubeauth.LiveClientConfig, error)
}

// VersionProber asks an API server for its version.
type VersionProber func(ctx context.Context, config *rest.Config) (string, error)

// CheckRecorder receives one observation per checked cluster.
type CheckRecorder interface {
	RecordClusterCheck(ctx context.Context, provider string, reachable bool, duration time.Duration)
}

type noopCheckRecorder struct{}

func (noopCheckRecorder) RecordClusterCheck(context.Context, string, bool, time.Duration) {}

// Status is the result of checking one cluster.
type Status struct {
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	Host      string `json:"host,omitempty"`
	Reachable bool   `json:"reachable"`
	Version   string `json:"version,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

type checkOptions struct {
	prober   VersionProber
	logger   *slog.Logger
	recorder CheckRecorder
}

func newCheckOptions(opts []CheckOption) checkOptions {
	o := checkOptions{
		prober:   DiscoveryVersion,
		logger:   slog.Default(),
		recorder: noopCheckRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CheckOption configures CheckAll.
type CheckOption func(*checkOptions)

// WithVersionProber replaces the discovery-based version probe.
func WithVersionProber(prober VersionProber) CheckOption {
	return func(o *checkOptions) {
		o.prober = prober
	}
}

// WithCheckLogger sets the logger.
func WithCheckLogger(logger *slog.Logger) CheckOption {
	return func(o *checkOptions) {
		o.logger = logger
	}
}

// WithCheckRecorder sets the metrics recorder.
func WithCheckRecorder(recorder CheckRecorder) CheckOption {
	return func(o *checkOptions) {
		if recorder != nil {
			o.recorder = recorder
		}
	}
}

// CheckAll resolves every cluster and asks its API server for a version, at
// most concurrency at a time. Results are sorted by cluster name. A failing
// cluster never affects the others.
func (r *Registry) CheckAll(ctx context.Context, resolver ContextResolver, concurrency int, opts ...CheckOption) []Status {
	o := newCheckOptions(opts)
	if concurrency <= 0 {
		concurrency = DefaultCheckConcurrency
	}

	creds := r.List()
	statuses := make([]Status, len(creds))

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for i, cred := range creds {
		g.Go(func() error {
			statuses[i] = check(ctx, resolver, o, cred)
			return nil
		})
	}
	_ = g.Wait()

	return statuses
}

// Check resolves one cluster and probes its API server.
func Check(ctx context.Context, resolver ContextResolver, cred kubeauth.ClusterCredential, opts ...CheckOption) Status {
	return check(ctx, resolver, newCheckOptions(opts), cred)
}

func check(ctx context.Context, resolver ContextResolver, o checkOptions, cred kubeauth.ClusterCredential) Status {
	start := time.Now()
	status := probe(ctx, resolver, o, cred)
	o.recorder.RecordClusterCheck(ctx, status.Provider, status.Reachable, time.Since(start))
	return status
}

func probe(ctx context.Context, resolver ContextResolver, o checkOptions, cred kubeauth.ClusterCredential) Status {
	status := Status{Name: cred.Name, Provider: cred.Provider().String()}
	logger := logging.WithCluster(o.logger, cred.Name)

	live, err := resolver.Resolve(ctx, cred.KubeconfigPath, cred.ContextName)
	if err != nil {
		status.ErrorKind = string(kubeauth.KindOf(err))
		status.Message = userMessage(err)
		logger.Debug("cluster check failed to resolve", logging.SanitizedErr(err))
		return status
	}
	defer func() { _ = live.Close() }()

	status.Host = logging.SanitizeHost(live.Host)

	version, err := o.prober(ctx, live.RESTConfig())
	if err != nil {
		status.ErrorKind = KindAPIServerUnreachable
		status.Message = "the API server did not answer: " + logging.SanitizeHost(err.Error())
		logger.Debug("cluster check failed to reach API server", logging.SanitizedErr(err))
		return status
	}

	status.Reachable = true
	status.Version = version
	return status
}

func userMessage(err error) string {
	var resolveErr *kubeauth.Error
	if errors.As(err, &resolveErr) {
		return resolveErr.UserFacingError()
	}
	return "cluster unreachable"
}

// DiscoveryVersion is the default VersionProber. The discovery client takes
// no context, so the probe is bounded by the config's Timeout.
func DiscoveryVersion(_ context.Context, config *rest.Config) (string, error) {
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return "", fmt.Errorf("failed to create clientset: %w", err)
	}
	return serverVersion(clientset.Discovery())
}

func serverVersion(d discovery.ServerVersionInterface) (string, error) {
	info, err := d.ServerVersion()
	if err != nil {
		return "", err
	}
	return info.GitVersion, nil
}
