// Package kubeauth resolves a (kubeconfig path, context name) pair into a
// live, request-scoped Kubernetes client configuration.
//
// The context name alone selects the provider:
//
//   - "gke_{project}_{zone}_{cluster}" uses Application Default Credentials
//     and the GKE API to find the cluster endpoint and CA certificate.
//   - "arn:aws:eks:{region}:{account}:cluster/{name}" uses the AWS default
//     credential chain, DescribeCluster and a presigned STS token.
//   - anything else is loaded from the kubeconfig file as written, with
//     "in-cluster" selecting the pod's service account.
//
// A LiveClientConfig must be closed when the request is done; for GKE this
// removes the staged CA certificate file:
//
//	live, err := resolver.Resolve(ctx, cred.KubeconfigPath, cred.ContextName)
//	if err != nil {
//	    return err
//	}
//	defer live.Close()
//
// Failures are *Error values classified by Kind. Use errors.Is with the
// sentinel errors, or UserFacingError for messages shown to dashboard users.
//
// The optional credential cache (WithCache) stores credential material, never
// staged files, and expires entries at the earlier of its TTL and the
// credential's own expiry.
package kubeauth
