package instrumentation

import (
	"strings"

	"github.com/giantswarm/kubedash/internal/kubeauth"
	"github.com/giantswarm/kubedash/internal/patch"
)

// Cardinality management helpers for metrics and span attributes.
// Context names and resource kinds are user input; these helpers fold them
// into small, fixed sets before they become label values.

// ClusterType represents a classification of cluster names for metrics.
type ClusterType string

// Cluster type classifications for metrics cardinality control.
const (
	ClusterTypeProduction  ClusterType = "production"
	ClusterTypeStaging     ClusterType = "staging"
	ClusterTypeDevelopment ClusterType = "development"
	ClusterTypeLocal       ClusterType = "local"
	ClusterTypeOther       ClusterType = "other"
)

// OtherResourceKind is the label value for kinds outside the patch registry.
const OtherResourceKind = "other"

// ClassifyClusterName classifies a cluster or context name into a type.
// Only the cluster part of GKE and EKS context names is inspected, so
// project and account identifiers never influence the result.
//
//	ClassifyClusterName("gke_acme_europe-west1_prod-eu")        // "production"
//	ClassifyClusterName("arn:aws:eks:us-east-1:1:cluster/stg-a") // "staging"
//	ClassifyClusterName("kind-dev")                             // "local"
//	ClassifyClusterName("dev-cluster")                          // "development"
//	ClassifyClusterName("my-cluster")                           // "other"
func ClassifyClusterName(name string) string {
	name = strings.ToLower(clusterPart(name))
	if name == "" {
		return string(ClusterTypeOther)
	}

	switch {
	case strings.HasPrefix(name, "kind-") ||
		strings.HasPrefix(name, "minikube") ||
		strings.HasPrefix(name, "docker-desktop") ||
		strings.HasPrefix(name, "k3d-"):
		return string(ClusterTypeLocal)
	case hasToken(name, "prod", "prd") || strings.Contains(name, "production"):
		return string(ClusterTypeProduction)
	case hasToken(name, "staging", "stg", "stage"):
		return string(ClusterTypeStaging)
	case hasToken(name, "dev", "test", "demo") || strings.Contains(name, "development"):
		return string(ClusterTypeDevelopment)
	}

	return string(ClusterTypeOther)
}

// clusterPart strips the provider envelope off a context name.
func clusterPart(name string) string {
	switch kubeauth.Classify(name) {
	case kubeauth.ProviderGKE:
		if target, err := kubeauth.ParseGKEContextName(name); err == nil {
			return target.ClusterID
		}
	case kubeauth.ProviderEKS:
		if target, err := kubeauth.ParseEKSContextName(name); err == nil {
			return target.ClusterName
		}
	}
	return name
}

// hasToken reports whether one of tokens is a whole '-' or '_' separated
// segment of name.
func hasToken(name string, tokens ...string) bool {
	segments := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	for _, segment := range segments {
		for _, token := range tokens {
			if segment == token {
				return true
			}
		}
	}
	return false
}

// NormalizeResourceKind returns kind if the patch registry knows it and
// OtherResourceKind otherwise.
func NormalizeResourceKind(kind string) string {
	if _, ok := patch.Lookup(kind); ok {
		return kind
	}
	return OtherResourceKind
}
