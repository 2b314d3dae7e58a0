package kubeauth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	container "google.golang.org/api/container/v1"
	"google.golang.org/api/option"
)

// GKECredentialSource yields the ambient Google credentials of the process.
type GKECredentialSource interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// GKEClusterGetter looks up a GKE cluster's endpoint and CA certificate.
type GKEClusterGetter interface {
	GetCluster(ctx context.Context, ts oauth2.TokenSource, target GKETarget) (*GKECluster, error)
}

// GKECluster is the subset of the cluster description the resolver needs.
type GKECluster struct {
	Endpoint string
	// CACertificate is base64 encoded, as returned by the API.
	CACertificate string
}

// googleCredentialSource uses Application Default Credentials.
type googleCredentialSource struct {
	scopes []string
}

// NewGoogleCredentialSource returns a source backed by Application Default
// Credentials scoped to cloud-platform.
func NewGoogleCredentialSource() GKECredentialSource {
	return &googleCredentialSource{scopes: []string{CloudPlatformScope}}
}

func (s *googleCredentialSource) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	creds, err := google.FindDefaultCredentials(ctx, s.scopes...)
	if err != nil {
		return nil, err
	}
	return creds.TokenSource, nil
}

// containerClusterGetter calls the GKE v1 API.
type containerClusterGetter struct {
	opts []option.ClientOption
}

// NewContainerClusterGetter returns a GKEClusterGetter backed by the GKE v1
// API. Extra client options are appended after the token source, which makes
// it possible to point the getter at another endpoint.
func NewContainerClusterGetter(opts ...option.ClientOption) GKEClusterGetter {
	return &containerClusterGetter{opts: opts}
}

func (g *containerClusterGetter) GetCluster(ctx context.Context, ts oauth2.TokenSource, target GKETarget) (*GKECluster, error) {
	opts := make([]option.ClientOption, 0, len(g.opts)+1)
	if ts != nil {
		opts = append(opts, option.WithTokenSource(ts))
	}
	opts = append(opts, g.opts...)

	svc, err := container.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GKE client: %w", err)
	}

	cluster, err := svc.Projects.Locations.Clusters.Get(target.ResourceName()).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	result := &GKECluster{Endpoint: cluster.Endpoint}
	if cluster.MasterAuth != nil {
		result.CACertificate = cluster.MasterAuth.ClusterCaCertificate
	}
	return result, nil
}

func (r *Resolver) resolveGKE(ctx context.Context, contextName string) (*credential, error) {
	target, err := ParseGKEContextName(contextName)
	if err != nil {
		return nil, newError(KindMalformedContextName, ProviderGKE, contextName, "invalid GKE context name", err)
	}

	credCtx, cancel := r.callContext(ctx)
	defer cancel()

	ts, err := r.gkeCredentials.TokenSource(credCtx)
	if err != nil {
		return nil, networkError(KindCredentialAcquisitionFailed, ProviderGKE, contextName,
			"could not obtain ambient Google credentials", err)
	}
	token, err := tokenWithContext(credCtx, ts)
	if err != nil {
		return nil, networkError(KindCredentialAcquisitionFailed, ProviderGKE, contextName,
			"could not obtain an access token from ambient Google credentials", err)
	}

	lookupCtx, cancelLookup := r.callContext(ctx)
	defer cancelLookup()

	cluster, err := r.gkeClusters.GetCluster(lookupCtx, ts, target)
	if err != nil {
		return nil, networkError(KindClusterLookupFailed, ProviderGKE, contextName,
			fmt.Sprintf("could not get GKE cluster %s", target.ResourceName()), err)
	}
	if cluster.Endpoint == "" {
		return nil, newError(KindClusterLookupFailed, ProviderGKE, contextName,
			fmt.Sprintf("GKE cluster %s has no endpoint", target.ResourceName()), nil)
	}

	caData, err := base64.StdEncoding.DecodeString(cluster.CACertificate)
	if err != nil {
		return nil, newError(KindClusterLookupFailed, ProviderGKE, contextName,
			"GKE cluster CA certificate is not valid base64", err)
	}

	return &credential{
		provider:    ProviderGKE,
		contextName: contextName,
		host:        "https://" + net.JoinHostPort(cluster.Endpoint, strconv.Itoa(gkeAPIServerPort)),
		caData:      caData,
		token:       token.AccessToken,
		expiresAt:   token.Expiry,
	}, nil
}

// tokenWithContext fetches a token while honouring ctx. oauth2.TokenSource
// has no context parameter, so a stuck metadata server would otherwise block
// the request forever.
func tokenWithContext(ctx context.Context, ts oauth2.TokenSource) (*oauth2.Token, error) {
	type result struct {
		token *oauth2.Token
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, err := ts.Token()
		done <- result{token: token, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if res.token == nil || res.token.AccessToken == "" {
			return nil, fmt.Errorf("credential source returned an empty access token")
		}
		return res.token, nil
	}
}
