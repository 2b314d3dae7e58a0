package clusters

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/version"
	fakediscovery "k8s.io/client-go/discovery/fake"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/rest"

	"github.com/giantswarm/kubedash/internal/kubeauth"
)

type fakeResolver struct {
	mu      sync.Mutex
	failing map[string]error
	closed  int
}

func (f *fakeResolver) Resolve(ctx context.Context, path, contextName string) (*kubeauth.LiveClientConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failing[contextName]; ok {
		return nil, err
	}
	return &kubeauth.LiveClientConfig{ContextName: contextName, Host: "https://10.0.0.1:6443"}, nil
}

func TestCheckAll(t *testing.T) {
	reg, err := NewRegistry(
		kubeauth.ClusterCredential{Name: "c-static", ContextName: "kind-dev"},
		kubeauth.ClusterCredential{Name: "a-gke", ContextName: "gke_p_z_c"},
		kubeauth.ClusterCredential{Name: "b-eks", ContextName: "arn:aws:eks:us-west-2:1:cluster/prod"},
		kubeauth.ClusterCredential{Name: "d-down", ContextName: "kind-down"},
	)
	require.NoError(t, err)

	resolver := &fakeResolver{failing: map[string]error{
		"gke_p_z_c": &kubeauth.Error{Kind: kubeauth.KindCredentialAcquisitionFailed, Provider: kubeauth.ProviderGKE, Message: "no ADC"},
	}}
	prober := func(ctx context.Context, cfg *rest.Config) (string, error) {
		return "v1.30.2", nil
	}

	statuses := reg.CheckAll(context.Background(), resolver, 2, WithVersionProber(prober))

	require.Len(t, statuses, 4)
	names := []string{statuses[0].Name, statuses[1].Name, statuses[2].Name, statuses[3].Name}
	assert.Equal(t, []string{"a-gke", "b-eks", "c-static", "d-down"}, names)

	assert.False(t, statuses[0].Reachable)
	assert.Equal(t, "gke", statuses[0].Provider)
	assert.Equal(t, string(kubeauth.KindCredentialAcquisitionFailed), statuses[0].ErrorKind)
	assert.NotContains(t, statuses[0].Message, "ADC")

	assert.True(t, statuses[1].Reachable)
	assert.Equal(t, "eks", statuses[1].Provider)
	assert.Equal(t, "v1.30.2", statuses[1].Version)
	assert.Equal(t, "https://<redacted-ip>:6443", statuses[1].Host)
}

func TestCheckAllProbeFailure(t *testing.T) {
	reg, err := NewRegistry(kubeauth.ClusterCredential{Name: "dev", ContextName: "kind-dev"})
	require.NoError(t, err)

	prober := func(ctx context.Context, cfg *rest.Config) (string, error) {
		return "", errors.New("dial tcp 10.0.0.1:6443: connect: connection refused")
	}

	statuses := reg.CheckAll(context.Background(), &fakeResolver{}, 1, WithVersionProber(prober))

	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Reachable)
	assert.Equal(t, KindAPIServerUnreachable, statuses[0].ErrorKind)
	assert.NotContains(t, statuses[0].Message, "10.0.0.1")
}

func TestCheckAllRespectsConcurrency(t *testing.T) {
	var creds []kubeauth.ClusterCredential
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		creds = append(creds, kubeauth.ClusterCredential{Name: name, ContextName: "ctx-" + name})
	}
	reg, err := NewRegistry(creds...)
	require.NoError(t, err)

	var inFlight, peak atomic.Int32
	prober := func(ctx context.Context, cfg *rest.Config) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return "v1", nil
	}

	statuses := reg.CheckAll(context.Background(), &fakeResolver{}, 2, WithVersionProber(prober))

	assert.Len(t, statuses, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	for _, s := range statuses {
		assert.True(t, s.Reachable, s.Name)
	}
}

func TestServerVersion(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	disco, ok := clientset.Discovery().(*fakediscovery.FakeDiscovery)
	require.True(t, ok)
	disco.FakedServerVersion = &version.Info{GitVersion: "v1.31.0"}

	v, err := serverVersion(disco)
	require.NoError(t, err)
	assert.Equal(t, "v1.31.0", v)
}

type countingCheckRecorder struct {
	mu        sync.Mutex
	reachable map[string]int
	failed    map[string]int
}

func (r *countingCheckRecorder) RecordClusterCheck(_ context.Context, provider string, reachable bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reachable {
		r.reachable[provider]++
		return
	}
	r.failed[provider]++
}

func TestCheckAllRecordsEveryCluster(t *testing.T) {
	reg, err := NewRegistry(
		kubeauth.ClusterCredential{Name: "dev", ContextName: "kind-dev"},
		kubeauth.ClusterCredential{Name: "gke", ContextName: "gke_p_z_c"},
	)
	require.NoError(t, err)

	resolver := &fakeResolver{failing: map[string]error{
		"gke_p_z_c": &kubeauth.Error{Kind: kubeauth.KindClusterLookupFailed, Provider: kubeauth.ProviderGKE},
	}}
	recorder := &countingCheckRecorder{reachable: map[string]int{}, failed: map[string]int{}}
	prober := func(ctx context.Context, cfg *rest.Config) (string, error) {
		return "v1.31.0", nil
	}

	reg.CheckAll(context.Background(), resolver, 0, WithVersionProber(prober), WithCheckRecorder(recorder))

	assert.Equal(t, map[string]int{"static": 1}, recorder.reachable)
	assert.Equal(t, map[string]int{"gke": 1}, recorder.failed)
}
