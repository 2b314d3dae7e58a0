package kubeauth

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/client-go/rest"

	"github.com/giantswarm/kubedash/internal/logging"
)

// ResolveRecorder receives one observation per Resolve call.
type ResolveRecorder interface {
	RecordResolve(ctx context.Context, provider, status string, duration time.Duration)
}

type noopResolveRecorder struct{}

func (noopResolveRecorder) RecordResolve(context.Context, string, string, time.Duration) {}

// credential is the provider-independent result of a resolution, before any
// file is staged. It is immutable once built and is what the cache stores.
type credential struct {
	provider    ProviderKind
	contextName string
	host        string
	caData      []byte
	token       string
	expiresAt   time.Time
	// rest is nil for GKE; its config is built once the CA file is staged.
	rest *rest.Config
}

// Resolver turns a (kubeconfig path, context name) pair into a LiveClientConfig.
// It is safe for concurrent use.
type Resolver struct {
	gkeCredentials GKECredentialSource
	gkeClusters    GKEClusterGetter
	eksClusters    EKSClusterDescriber
	eksTokens      EKSTokenGenerator

	timeout time.Duration
	qps     float32
	burst   int
	tempDir string

	cacheConfig  CacheConfig
	cacheMetrics CacheMetricsRecorder
	cache        *credentialCache
	group        singleflight.Group

	logger   *slog.Logger
	recorder ResolveRecorder
	now      func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithGKECredentials replaces the Application Default Credentials source.
func WithGKECredentials(source GKECredentialSource) Option {
	return func(r *Resolver) {
		r.gkeCredentials = source
	}
}

// WithGKEClusterGetter replaces the GKE API client.
func WithGKEClusterGetter(getter GKEClusterGetter) Option {
	return func(r *Resolver) {
		r.gkeClusters = getter
	}
}

// WithEKSClusterDescriber replaces the EKS API client.
func WithEKSClusterDescriber(describer EKSClusterDescriber) Option {
	return func(r *Resolver) {
		r.eksClusters = describer
	}
}

// WithEKSTokenGenerator replaces the STS token generator.
func WithEKSTokenGenerator(generator EKSTokenGenerator) Option {
	return func(r *Resolver) {
		r.eksTokens = generator
	}
}

// WithCallTimeout bounds every network call. Zero disables the bound.
func WithCallTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = timeout
	}
}

// WithRateLimits sets QPS and Burst on every resolved rest.Config.
func WithRateLimits(qps float32, burst int) Option {
	return func(r *Resolver) {
		r.qps = qps
		r.burst = burst
	}
}

// WithTempDir sets the directory GKE CA certificates are staged in.
func WithTempDir(dir string) Option {
	return func(r *Resolver) {
		r.tempDir = dir
	}
}

// WithCache enables the credential cache. A zero TTL leaves it disabled.
func WithCache(config CacheConfig, metrics CacheMetricsRecorder) Option {
	return func(r *Resolver) {
		r.cacheConfig = config
		r.cacheMetrics = metrics
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithRecorder sets the resolve metrics recorder.
func WithRecorder(recorder ResolveRecorder) Option {
	return func(r *Resolver) {
		r.recorder = recorder
	}
}

// withClock sets the clock function for testing.
func withClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a Resolver. Cloud clients default to the SDKs' ambient
// credential chains and are only contacted for gke_/arn:aws:eks: contexts.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		timeout:  DefaultCallTimeout,
		qps:      DefaultQPSLimit,
		burst:    DefaultBurstLimit,
		logger:   slog.Default(),
		recorder: noopResolveRecorder{},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.gkeCredentials == nil {
		r.gkeCredentials = NewGoogleCredentialSource()
	}
	if r.gkeClusters == nil {
		r.gkeClusters = NewContainerClusterGetter()
	}
	if r.eksClusters == nil {
		r.eksClusters = NewAWSClusterDescriber()
	}
	if r.eksTokens == nil {
		r.eksTokens = NewSTSTokenGenerator()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.recorder == nil {
		r.recorder = noopResolveRecorder{}
	}

	if r.cacheConfig.TTL > 0 {
		r.cache = newCredentialCache(r.cacheConfig, r.cacheMetrics, r.now)
		r.logger.Info("credential cache enabled",
			"ttl", r.cache.ttl,
			"max_entries", r.cache.maxSize)
	}

	return r
}

// Resolve produces a LiveClientConfig for the context. Exactly one provider
// branch runs, chosen by Classify; there is no fallback between branches and
// no retry. Failures are *Error values.
//
// The caller owns the result and must Close it when the request is done.
func (r *Resolver) Resolve(ctx context.Context, path, contextName string) (*LiveClientConfig, error) {
	provider := Classify(contextName)
	logger := r.logger.With(logging.Context(contextName), logging.Provider(provider.String()))
	start := r.now()

	cred, err := r.credentialFor(ctx, path, contextName, provider)
	var live *LiveClientConfig
	if err == nil {
		live, err = r.materialize(cred)
	}

	duration := r.now().Sub(start)
	if err != nil {
		r.recorder.RecordResolve(ctx, provider.String(), logging.StatusError, duration)
		logger.Warn("context resolution failed",
			logging.ErrorKind(string(KindOf(err))),
			logging.SanitizedErr(err),
			logging.Duration(duration))
		return nil, err
	}

	r.recorder.RecordResolve(ctx, provider.String(), logging.StatusSuccess, duration)
	logger.Debug("context resolved",
		logging.Host(live.Host),
		logging.Duration(duration))
	return live, nil
}

// Close stops the credential cache, if any.
func (r *Resolver) Close() {
	if r.cache != nil {
		r.cache.Close()
	}
}

// CacheSize returns the number of cached credentials, or 0 when caching is off.
func (r *Resolver) CacheSize() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Size()
}

// credentialFor consults the cache, then resolves. Concurrent misses for the
// same key share one resolution. It keeps the first caller's values but not
// its cancellation, so a caller that gives up does not fail the others. Each
// network call is still bounded by the call timeout.
func (r *Resolver) credentialFor(ctx context.Context, path, contextName string, provider ProviderKind) (*credential, error) {
	if r.cache == nil {
		return r.resolveCredential(ctx, path, contextName, provider)
	}

	key := cacheKey(path, contextName)
	if cred := r.cache.Get(ctx, key); cred != nil {
		return cred, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		sharedCtx := context.WithoutCancel(ctx)
		cred, err := r.resolveCredential(sharedCtx, path, contextName, provider)
		if err != nil {
			return nil, err
		}
		r.cache.Set(sharedCtx, key, cred)
		return cred, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*credential), nil
}

func (r *Resolver) resolveCredential(ctx context.Context, path, contextName string, provider ProviderKind) (*credential, error) {
	switch provider {
	case ProviderGKE:
		return r.resolveGKE(ctx, contextName)
	case ProviderEKS:
		return r.resolveEKS(ctx, contextName)
	default:
		return r.resolveStatic(path, contextName)
	}
}

// materialize builds the request-scoped configuration. GKE credentials get a
// freshly staged CA file owned by the returned value.
func (r *Resolver) materialize(cred *credential) (*LiveClientConfig, error) {
	live := &LiveClientConfig{
		Provider:    cred.provider,
		ContextName: cred.contextName,
		Host:        cred.host,
		CAData:      cred.caData,
		BearerToken: cred.token,
		ExpiresAt:   cred.expiresAt,
	}

	if cred.provider != ProviderGKE {
		live.rest = rest.CopyConfig(cred.rest)
		r.applyLimits(live.rest)
		return live, nil
	}

	staged, err := stageCACertificate(r.tempDir, cred.caData)
	if err != nil {
		return nil, newError(KindClusterLookupFailed, ProviderGKE, cred.contextName,
			"could not stage the GKE cluster CA certificate", err)
	}
	live.CAFile = staged.path
	live.cleanup = staged.remove
	live.rest = &rest.Config{
		Host:        cred.host,
		BearerToken: cred.token,
		TLSClientConfig: rest.TLSClientConfig{
			CAFile: staged.path,
		},
	}
	r.applyLimits(live.rest)

	return live, nil
}

func (r *Resolver) applyLimits(cfg *rest.Config) {
	cfg.QPS = r.qps
	cfg.Burst = r.burst
	if r.timeout > 0 {
		cfg.Timeout = r.timeout
	}
}

// callContext derives the context for one network call.
func (r *Resolver) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
