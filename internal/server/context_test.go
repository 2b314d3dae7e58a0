package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/kubedash/internal/clusters"
	"github.com/giantswarm/kubedash/internal/kubeauth"
)

// stubResolver satisfies Resolver and the optional cache and close hooks.
type stubResolver struct {
	cached int
	closed bool
}

func (s *stubResolver) Resolve(context.Context, string, string) (*kubeauth.LiveClientConfig, error) {
	return nil, errors.New("not reachable in tests")
}

func (s *stubResolver) CacheSize() int { return s.cached }

func (s *stubResolver) Close() { s.closed = true }

func newTestServerContext(t *testing.T, opts ...Option) *ServerContext {
	t.Helper()
	opts = append([]Option{WithResolver(&stubResolver{})}, opts...)
	sc, err := NewServerContext(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func testRegistry(t *testing.T) *clusters.Registry {
	t.Helper()
	registry, err := clusters.NewRegistry(
		kubeauth.ClusterCredential{Name: "prod", KubeconfigPath: "/etc/kubedash/prod", ContextName: "gke_acme_europe-west1_prod"},
		kubeauth.ClusterCredential{Name: "dev", ContextName: "kind-dev"},
	)
	require.NoError(t, err)
	return registry
}

func TestNewServerContextRequiresResolver(t *testing.T) {
	_, err := NewServerContext(context.Background())
	assert.ErrorIs(t, err, ErrMissingResolver)

	_, err = NewServerContext(context.Background(), WithResolver(nil))
	assert.ErrorIs(t, err, ErrMissingResolver)
}

func TestNewServerContextRejectsNilDependencies(t *testing.T) {
	_, err := NewServerContext(context.Background(), WithResolver(&stubResolver{}), WithLogger(nil))
	assert.ErrorIs(t, err, ErrMissingLogger)

	_, err = NewServerContext(context.Background(), WithResolver(&stubResolver{}), WithConfig(nil))
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestNewServerContextDefaults(t *testing.T) {
	sc := newTestServerContext(t)

	assert.NotNil(t, sc.Engine(), "an engine is built on top of the resolver")
	require.NotNil(t, sc.Clusters())
	assert.Equal(t, 0, sc.Clusters().Len())
	assert.NotNil(t, sc.Logger())
	assert.Nil(t, sc.InstrumentationProvider())
	assert.Nil(t, sc.Metrics())
	assert.Nil(t, sc.AuditLogger())

	config := sc.Config()
	assert.Equal(t, "kubedash", config.ServerName)
	assert.True(t, config.NonDestructiveMode)
	assert.False(t, config.DryRun)
	assert.Equal(t, clusters.DefaultCheckConcurrency, config.CheckConcurrency)
}

func TestConfigOptions(t *testing.T) {
	sc := newTestServerContext(t,
		WithServerName("dash"),
		WithNonDestructiveMode(false),
		WithDryRun(true),
		WithAllowedOperations([]string{"get", "patch"}),
		WithRestrictedNamespaces([]string{"vault"}),
	)

	config := sc.Config()
	assert.Equal(t, "dash", config.ServerName)
	assert.False(t, config.NonDestructiveMode)
	assert.True(t, config.DryRun)
	assert.Equal(t, []string{"get", "patch"}, config.AllowedOperations)
	assert.Equal(t, []string{"vault"}, config.RestrictedNamespaces)
}

func TestWithConfigClones(t *testing.T) {
	config := NewDefaultConfig()
	sc := newTestServerContext(t, WithConfig(config))

	config.AllowedOperations[0] = "patch"
	config.ServerName = "changed"

	assert.Equal(t, "get", sc.Config().AllowedOperations[0])
	assert.Equal(t, "kubedash", sc.Config().ServerName)
}

func TestCredential(t *testing.T) {
	config := NewDefaultConfig()
	config.KubeConfigPath = "/home/dev/.kube/config"

	tests := []struct {
		name         string
		allowAdHoc   bool
		lookup       string
		want         kubeauth.ClusterCredential
		wantNotFound bool
	}{
		{
			name:   "registered cluster",
			lookup: "prod",
			want:   kubeauth.ClusterCredential{Name: "prod", KubeconfigPath: "/etc/kubedash/prod", ContextName: "gke_acme_europe-west1_prod"},
		},
		{
			name:       "unregistered context uses the default kubeconfig",
			allowAdHoc: true,
			lookup:     "arn:aws:eks:us-east-1:123456789012:cluster/web",
			want: kubeauth.ClusterCredential{
				Name:           "arn:aws:eks:us-east-1:123456789012:cluster/web",
				KubeconfigPath: "/home/dev/.kube/config",
				ContextName:    "arn:aws:eks:us-east-1:123456789012:cluster/web",
			},
		},
		{
			name:         "unregistered context rejected",
			allowAdHoc:   false,
			lookup:       "kind-other",
			wantNotFound: true,
		},
		{
			name:         "empty name",
			allowAdHoc:   true,
			lookup:       "",
			wantNotFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Clone()
			cfg.AllowUnregisteredContexts = tt.allowAdHoc
			sc := newTestServerContext(t, WithConfig(cfg), WithClusters(testRegistry(t)))

			got, err := sc.Credential(tt.lookup)
			if tt.wantNotFound {
				assert.ErrorIs(t, err, clusters.ErrClusterNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCachedCredentials(t *testing.T) {
	resolver := &stubResolver{cached: 3}
	sc, err := NewServerContext(context.Background(), WithResolver(resolver))
	require.NoError(t, err)

	assert.Equal(t, 3, sc.CachedCredentials())
}

func TestShutdown(t *testing.T) {
	resolver := &stubResolver{}
	sc, err := NewServerContext(context.Background(), WithResolver(resolver))
	require.NoError(t, err)

	assert.False(t, sc.IsShutdown())
	require.NoError(t, sc.Shutdown())

	assert.True(t, sc.IsShutdown())
	assert.True(t, resolver.closed, "the resolver's cache must be closed")
	assert.ErrorIs(t, sc.Context().Err(), context.Canceled)

	// A second shutdown is a no-op.
	require.NoError(t, sc.Shutdown())
}

func TestConfigCloneNil(t *testing.T) {
	var config *Config
	assert.Nil(t, config.Clone())
}
