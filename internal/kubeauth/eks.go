package kubeauth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// ErrAmbientAWSConfig marks failures to load the ambient AWS configuration.
// EKS describers and token generators wrap it so the resolver can report
// KindCredentialAcquisitionFailed instead of a lookup failure.
var ErrAmbientAWSConfig = errors.New("ambient AWS configuration unavailable")

// EKSClusterDescriber looks up an EKS cluster's endpoint and CA certificate.
type EKSClusterDescriber interface {
	DescribeCluster(ctx context.Context, target EKSTarget) (*EKSCluster, error)
}

// EKSCluster is the subset of the cluster description the resolver needs.
type EKSCluster struct {
	Endpoint string
	// CAData is base64 encoded, as returned by the API.
	CAData string
}

// EKSTokenGenerator produces a bearer token accepted by an EKS API server.
type EKSTokenGenerator interface {
	Token(ctx context.Context, target EKSTarget) (EKSToken, error)
}

// EKSToken is a presigned, short-lived EKS bearer token.
type EKSToken struct {
	Value     string
	ExpiresAt time.Time
}

// awsConfigLoader loads the ambient AWS configuration for a region.
type awsConfigLoader func(ctx context.Context, region string) (aws.Config, error)

func loadDefaultAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("%w: %w", ErrAmbientAWSConfig, err)
	}
	return cfg, nil
}

// awsClusterDescriber calls the EKS DescribeCluster API.
type awsClusterDescriber struct {
	loadConfig awsConfigLoader
}

// NewAWSClusterDescriber returns an EKSClusterDescriber backed by the AWS SDK
// default credential chain.
func NewAWSClusterDescriber() EKSClusterDescriber {
	return &awsClusterDescriber{loadConfig: loadDefaultAWSConfig}
}

func (d *awsClusterDescriber) DescribeCluster(ctx context.Context, target EKSTarget) (*EKSCluster, error) {
	cfg, err := d.loadConfig(ctx, target.Region)
	if err != nil {
		return nil, err
	}

	out, err := eks.NewFromConfig(cfg).DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(target.ClusterName),
	})
	if err != nil {
		return nil, err
	}
	if out.Cluster == nil {
		return nil, fmt.Errorf("DescribeCluster returned no cluster")
	}

	result := &EKSCluster{Endpoint: aws.ToString(out.Cluster.Endpoint)}
	if out.Cluster.CertificateAuthority != nil {
		result.CAData = aws.ToString(out.Cluster.CertificateAuthority.Data)
	}
	return result, nil
}

// callerIdentityPresigner is the part of *sts.PresignClient the token
// generator uses.
type callerIdentityPresigner interface {
	PresignGetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// stsTokenGenerator signs a GetCallerIdentity request scoped to one cluster.
// The API server replays the presigned URL against STS to learn the caller.
type stsTokenGenerator struct {
	newPresigner func(ctx context.Context, region string) (callerIdentityPresigner, error)
	now          func() time.Time
}

// NewSTSTokenGenerator returns an EKSTokenGenerator backed by the AWS SDK
// default credential chain.
func NewSTSTokenGenerator() EKSTokenGenerator {
	return &stsTokenGenerator{
		newPresigner: func(ctx context.Context, region string) (callerIdentityPresigner, error) {
			cfg, err := loadDefaultAWSConfig(ctx, region)
			if err != nil {
				return nil, err
			}
			return sts.NewPresignClient(sts.NewFromConfig(cfg)), nil
		},
		now: time.Now,
	}
}

func (g *stsTokenGenerator) Token(ctx context.Context, target EKSTarget) (EKSToken, error) {
	presigner, err := g.newPresigner(ctx, target.Region)
	if err != nil {
		return EKSToken{}, err
	}

	issued := g.now()
	req, err := presigner.PresignGetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}, withClusterScope(target.ClusterName))
	if err != nil {
		return EKSToken{}, fmt.Errorf("failed to presign GetCallerIdentity: %w", err)
	}

	return EKSToken{
		Value:     encodeEKSToken(req.URL),
		ExpiresAt: issued.Add(EKSTokenLifetime - eksTokenSkew),
	}, nil
}

// withClusterScope binds the presigned request to a cluster name and asks
// STS for the short expiry the API server expects.
func withClusterScope(clusterName string) func(*sts.PresignOptions) {
	return func(po *sts.PresignOptions) {
		po.ClientOptions = append(po.ClientOptions, func(o *sts.Options) {
			o.APIOptions = append(o.APIOptions,
				smithyhttp.AddHeaderValue(eksClusterIDHeader, clusterName),
				smithyhttp.AddHeaderValue(eksExpiresHeader, eksPresignExpiry),
			)
		})
	}
}

func encodeEKSToken(presignedURL string) string {
	return eksTokenPrefix + base64.RawURLEncoding.EncodeToString([]byte(presignedURL))
}

func (r *Resolver) resolveEKS(ctx context.Context, contextName string) (*credential, error) {
	target, err := ParseEKSContextName(contextName)
	if err != nil {
		return nil, newError(KindMalformedContextName, ProviderEKS, contextName, "invalid EKS context name", err)
	}

	describeCtx, cancel := r.callContext(ctx)
	defer cancel()

	cluster, err := r.eksClusters.DescribeCluster(describeCtx, target)
	if err != nil {
		if errors.Is(err, ErrAmbientAWSConfig) {
			return nil, networkError(KindCredentialAcquisitionFailed, ProviderEKS, contextName,
				"could not load ambient AWS credentials", err)
		}
		return nil, networkError(KindClusterLookupFailed, ProviderEKS, contextName,
			fmt.Sprintf("could not describe EKS cluster %q in %s", target.ClusterName, target.Region), err)
	}
	if cluster.Endpoint == "" {
		return nil, newError(KindClusterLookupFailed, ProviderEKS, contextName,
			fmt.Sprintf("EKS cluster %q has no endpoint", target.ClusterName), nil)
	}

	caData, err := base64.StdEncoding.DecodeString(cluster.CAData)
	if err != nil {
		return nil, newError(KindClusterLookupFailed, ProviderEKS, contextName,
			"EKS cluster CA certificate is not valid base64", err)
	}

	tokenCtx, cancelToken := r.callContext(ctx)
	defer cancelToken()

	token, err := r.eksTokens.Token(tokenCtx, target)
	if err != nil {
		if errors.Is(err, ErrAmbientAWSConfig) {
			return nil, networkError(KindCredentialAcquisitionFailed, ProviderEKS, contextName,
				"could not load ambient AWS credentials", err)
		}
		return nil, networkError(KindTokenExchangeFailed, ProviderEKS, contextName,
			fmt.Sprintf("could not obtain a token for EKS cluster %q", target.ClusterName), err)
	}

	restConfig, err := buildEKSRestConfig(contextName, target, cluster.Endpoint, caData, token.Value)
	if err != nil {
		return nil, newError(KindClusterLookupFailed, ProviderEKS, contextName,
			"could not build client configuration from the EKS cluster description", err)
	}

	return &credential{
		provider:    ProviderEKS,
		contextName: contextName,
		host:        restConfig.Host,
		caData:      caData,
		token:       token.Value,
		expiresAt:   token.ExpiresAt,
		rest:        restConfig,
	}, nil
}

// buildEKSRestConfig assembles an in-memory kubeconfig holding one cluster,
// one user and one context, and loads it. Nothing touches the disk.
func buildEKSRestConfig(contextName string, target EKSTarget, endpoint string, caData []byte, token string) (*rest.Config, error) {
	cfg := clientcmdapi.NewConfig()
	cfg.Clusters[target.ClusterName] = &clientcmdapi.Cluster{
		Server:                   endpoint,
		CertificateAuthorityData: caData,
	}
	cfg.AuthInfos[target.ClusterName] = &clientcmdapi.AuthInfo{
		Token: token,
	}
	cfg.Contexts[contextName] = &clientcmdapi.Context{
		Cluster:  target.ClusterName,
		AuthInfo: target.ClusterName,
	}
	cfg.CurrentContext = contextName

	return clientcmd.NewDefaultClientConfig(*cfg, &clientcmd.ConfigOverrides{}).ClientConfig()
}
