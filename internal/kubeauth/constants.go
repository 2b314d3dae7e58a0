package kubeauth

import "time"

const (
	// GKEContextPrefix marks context names produced by `gcloud container clusters get-credentials`.
	GKEContextPrefix = "gke_"

	// EKSContextPrefix marks context names produced by `aws eks update-kubeconfig`.
	EKSContextPrefix = "arn:aws:eks:"

	// InClusterContext selects the pod's service account instead of a kubeconfig entry.
	InClusterContext = "in-cluster"

	// CloudPlatformScope is the OAuth2 scope requested from the ambient Google credentials.
	CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	// Default performance settings applied to every resolved rest.Config
	DefaultQPSLimit   = 20.0
	DefaultBurstLimit = 30

	// DefaultCallTimeout bounds every network call made while resolving credentials.
	DefaultCallTimeout = 30 * time.Second

	// gkeAPIServerPort is the port GKE control planes listen on.
	gkeAPIServerPort = 443

	// EKS token exchange
	eksTokenPrefix     = "k8s-aws-v1."
	eksClusterIDHeader = "x-k8s-aws-id"
	eksExpiresHeader   = "X-Amz-Expires"
	eksPresignExpiry   = "60"

	// EKSTokenLifetime is how long the API server accepts a presigned token.
	// The resolver reports a slightly shorter expiry to absorb clock skew.
	EKSTokenLifetime = 15 * time.Minute
	eksTokenSkew     = 1 * time.Minute

	// caFilePattern is the os.CreateTemp pattern for staged GKE CA certificates.
	caFilePattern = "kubedash-ca-*.crt"
)
