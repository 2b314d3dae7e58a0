package kubeauth

import (
	"fmt"
	"strings"
)

// ProviderKind identifies the credential acquisition protocol used for a context.
type ProviderKind string

const (
	// ProviderStatic loads the context from a kubeconfig file (or the in-cluster service account).
	ProviderStatic ProviderKind = "static"

	// ProviderGKE exchanges ambient Google credentials for GKE cluster access.
	ProviderGKE ProviderKind = "gke"

	// ProviderEKS exchanges ambient AWS credentials for a presigned EKS token.
	ProviderEKS ProviderKind = "eks"
)

// String implements fmt.Stringer.
func (p ProviderKind) String() string {
	return string(p)
}

// Classify maps a context name to exactly one provider.
//
// The decision is made on the literal prefix only. A context that happens to
// start with "gke_" or "arn:aws:eks:" is routed to cloud authentication even
// when the kubeconfig entry would have worked on its own.
func Classify(contextName string) ProviderKind {
	switch {
	case strings.HasPrefix(contextName, GKEContextPrefix):
		return ProviderGKE
	case strings.HasPrefix(contextName, EKSContextPrefix):
		return ProviderEKS
	default:
		return ProviderStatic
	}
}

// ClusterCredential is one registered cluster: where its kubeconfig lives and
// which context inside it to use.
type ClusterCredential struct {
	Name           string `json:"name"`
	KubeconfigPath string `json:"kubeconfig"`
	ContextName    string `json:"context"`
}

// Provider returns the provider derived from the context name.
func (c ClusterCredential) Provider() ProviderKind {
	return Classify(c.ContextName)
}

// GKETarget identifies a GKE cluster.
type GKETarget struct {
	ProjectID string
	Zone      string
	ClusterID string
}

// ResourceName returns the v1 API resource name of the cluster.
func (t GKETarget) ResourceName() string {
	return fmt.Sprintf("projects/%s/locations/%s/clusters/%s", t.ProjectID, t.Zone, t.ClusterID)
}

// ParseGKEContextName parses gke_{project}_{zone}_{cluster}.
// The cluster id keeps any underscores that follow the zone.
func ParseGKEContextName(contextName string) (GKETarget, error) {
	rest, ok := strings.CutPrefix(contextName, GKEContextPrefix)
	if !ok {
		return GKETarget{}, fmt.Errorf("context name does not start with %q", GKEContextPrefix)
	}

	parts := strings.SplitN(rest, "_", 3)
	if len(parts) < 3 {
		return GKETarget{}, fmt.Errorf("expected gke_<project>_<zone>_<cluster>, got %d segment(s) after the prefix", len(parts))
	}
	for i, label := range []string{"project", "zone", "cluster"} {
		if parts[i] == "" {
			return GKETarget{}, fmt.Errorf("empty %s segment", label)
		}
	}

	return GKETarget{ProjectID: parts[0], Zone: parts[1], ClusterID: parts[2]}, nil
}

// EKSTarget identifies an EKS cluster.
type EKSTarget struct {
	Region      string
	ClusterName string
}

// ParseEKSContextName parses arn:aws:eks:{region}:{account}:cluster/{name}.
func ParseEKSContextName(contextName string) (EKSTarget, error) {
	if !strings.HasPrefix(contextName, EKSContextPrefix) {
		return EKSTarget{}, fmt.Errorf("context name does not start with %q", EKSContextPrefix)
	}

	segments := strings.Split(contextName, ":")
	if len(segments) < 6 {
		return EKSTarget{}, fmt.Errorf("expected arn:aws:eks:<region>:<account>:cluster/<name>, got %d segment(s)", len(segments))
	}

	region := segments[3]
	resource := segments[5]
	slash := strings.LastIndex(resource, "/")
	if slash < 0 {
		return EKSTarget{}, fmt.Errorf("resource segment %q has no cluster name", resource)
	}
	name := resource[slash+1:]

	if region == "" {
		return EKSTarget{}, fmt.Errorf("empty region segment")
	}
	if name == "" {
		return EKSTarget{}, fmt.Errorf("empty cluster name")
	}

	return EKSTarget{Region: region, ClusterName: name}, nil
}
