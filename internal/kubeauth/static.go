package kubeauth

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// resolveStatic loads a context directly from a kubeconfig file. The context
// name "in-cluster" selects the pod's service account instead.
func (r *Resolver) resolveStatic(path, contextName string) (*credential, error) {
	if contextName == InClusterContext {
		return r.resolveInCluster()
	}

	path = expandHome(path)
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if path != "" {
		loadingRules.ExplicitPath = path
	}

	raw, err := loadingRules.Load()
	if err != nil {
		return nil, newError(KindKubeconfigLoadFailed, ProviderStatic, contextName,
			fmt.Sprintf("could not read kubeconfig %s", describePath(path)), err)
	}

	if contextName == "" {
		contextName = raw.CurrentContext
	}
	if contextName == "" {
		return nil, newError(KindKubeconfigLoadFailed, ProviderStatic, contextName,
			fmt.Sprintf("kubeconfig %s has no current context and none was requested", describePath(path)), nil)
	}
	if _, ok := raw.Contexts[contextName]; !ok {
		return nil, newError(KindKubeconfigLoadFailed, ProviderStatic, contextName,
			fmt.Sprintf("context %q not found in kubeconfig %s (available: %s)",
				contextName, describePath(path), availableContexts(raw.Contexts)), nil)
	}

	clientConfig := clientcmd.NewNonInteractiveClientConfig(*raw, contextName, &clientcmd.ConfigOverrides{}, loadingRules)
	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, newError(KindKubeconfigLoadFailed, ProviderStatic, contextName,
			fmt.Sprintf("context %q in kubeconfig %s is invalid", contextName, describePath(path)), err)
	}

	return &credential{
		provider:    ProviderStatic,
		contextName: contextName,
		host:        restConfig.Host,
		caData:      restConfig.CAData,
		token:       restConfig.BearerToken,
		rest:        restConfig,
	}, nil
}

// resolveInCluster uses the service account mounted into the pod.
func (r *Resolver) resolveInCluster() (*credential, error) {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return nil, newError(KindKubeconfigLoadFailed, ProviderStatic, InClusterContext,
			"in-cluster service account is not available", err)
	}

	return &credential{
		provider:    ProviderStatic,
		contextName: InClusterContext,
		host:        restConfig.Host,
		token:       restConfig.BearerToken,
		rest:        restConfig,
	}, nil
}

// expandHome expands a leading "~/" the way shells do for KUBECONFIG.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func describePath(path string) string {
	if path == "" {
		return "(default loading rules)"
	}
	return fmt.Sprintf("%q", path)
}

func availableContexts[V any](contexts map[string]V) string {
	if len(contexts) == 0 {
		return "none"
	}
	names := make([]string, 0, len(contexts))
	for name := range contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
