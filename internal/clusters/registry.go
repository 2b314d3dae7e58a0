package clusters

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/giantswarm/kubedash/internal/kubeauth"
)

// EnvPrefix is the prefix for environment overrides of the clusters file.
const EnvPrefix = "KUBEDASH"

var (
	// ErrClusterNotFound indicates a cluster name with no registry entry.
	ErrClusterNotFound = errors.New("cluster not found")

	// ErrInvalidRegistry indicates a clusters file that fails validation.
	ErrInvalidRegistry = errors.New("invalid cluster registry")
)

// entry is one cluster as written in the clusters file.
type entry struct {
	Name       string `mapstructure:"name"`
	Kubeconfig string `mapstructure:"kubeconfig"`
	Context    string `mapstructure:"context"`
}

// Registry holds the registered clusters by name. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	byName map[string]kubeauth.ClusterCredential
	names  []string
}

// Load reads a clusters file:
//
//	default_kubeconfig: /etc/kubedash/kubeconfig
//	clusters:
//	  - name: prod-gke
//	    kubeconfig: /etc/kubedash/kc
//	    context: gke_proj_europe-west1-b_prod
//
// Entries without a kubeconfig use default_kubeconfig, which can also be set
// with KUBEDASH_DEFAULT_KUBECONFIG.
func Load(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read clusters file %s: %w", path, err)
	}

	var entries []entry
	if err := v.UnmarshalKey("clusters", &entries); err != nil {
		return nil, fmt.Errorf("failed to parse clusters file %s: %w", path, err)
	}

	defaultKubeconfig := v.GetString("default_kubeconfig")
	creds := make([]kubeauth.ClusterCredential, 0, len(entries))
	for _, e := range entries {
		kubeconfig := e.Kubeconfig
		if kubeconfig == "" {
			kubeconfig = defaultKubeconfig
		}
		creds = append(creds, kubeauth.ClusterCredential{
			Name:           strings.TrimSpace(e.Name),
			KubeconfigPath: kubeconfig,
			ContextName:    strings.TrimSpace(e.Context),
		})
	}

	return NewRegistry(creds...)
}

// NewRegistry validates creds and builds a Registry. Names must be non-empty
// and unique, and every cluster needs a context name.
func NewRegistry(creds ...kubeauth.ClusterCredential) (*Registry, error) {
	r := &Registry{byName: make(map[string]kubeauth.ClusterCredential, len(creds))}

	var problems []string
	for i, cred := range creds {
		switch {
		case cred.Name == "":
			problems = append(problems, fmt.Sprintf("cluster #%d has no name", i+1))
			continue
		case cred.ContextName == "":
			problems = append(problems, fmt.Sprintf("cluster %q has no context", cred.Name))
			continue
		}
		if _, dup := r.byName[cred.Name]; dup {
			problems = append(problems, fmt.Sprintf("cluster %q is defined more than once", cred.Name))
			continue
		}
		r.byName[cred.Name] = cred
		r.names = append(r.names, cred.Name)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRegistry, strings.Join(problems, "; "))
	}

	sort.Strings(r.names)
	return r, nil
}

// Get returns the cluster registered under name.
func (r *Registry) Get(name string) (kubeauth.ClusterCredential, error) {
	cred, ok := r.byName[name]
	if !ok {
		return kubeauth.ClusterCredential{}, fmt.Errorf("%w: %q", ErrClusterNotFound, name)
	}
	return cred, nil
}

// List returns every cluster sorted by name.
func (r *Registry) List() []kubeauth.ClusterCredential {
	out := make([]kubeauth.ClusterCredential, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered clusters.
func (r *Registry) Len() int {
	return len(r.names)
}
