package kubeauth

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies resolution failures.
type Kind string

const (
	KindMalformedContextName        Kind = "MalformedContextName"
	KindCredentialAcquisitionFailed Kind = "CredentialAcquisitionFailed"
	KindClusterLookupFailed         Kind = "ClusterLookupFailed"
	KindTokenExchangeFailed         Kind = "TokenExchangeFailed"
	KindKubeconfigLoadFailed        Kind = "KubeconfigLoadFailed"
	KindTimeout                     Kind = "Timeout"
)

// Sentinel errors, one per Kind. Match them with errors.Is.
var (
	// ErrMalformedContextName indicates a gke_/arn:aws:eks: context name that
	// cannot be split into the fields the provider needs.
	ErrMalformedContextName = errors.New("malformed context name")

	// ErrCredentialAcquisitionFailed indicates the ambient cloud credential
	// chain produced no usable credentials.
	ErrCredentialAcquisitionFailed = errors.New("cloud credential acquisition failed")

	// ErrClusterLookupFailed indicates the provider's describe/get cluster
	// call failed (not found, forbidden, network) or returned unusable data.
	ErrClusterLookupFailed = errors.New("cluster lookup failed")

	// ErrTokenExchangeFailed indicates the EKS token could not be signed.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrKubeconfigLoadFailed indicates the kubeconfig path or context is
	// missing, unreadable or invalid.
	ErrKubeconfigLoadFailed = errors.New("kubeconfig load failed")

	// ErrTimeout indicates a network call exceeded the configured per-call timeout.
	ErrTimeout = errors.New("credential resolution timed out")
)

// userFacingResolveError is shown instead of provider details for cloud failures.
const userFacingResolveError = "cluster unreachable: credentials for this cluster could not be obtained"

// Error describes a failed resolution.
//
// Is() matches the sentinel for Kind; Unwrap() returns the underlying cause so
// errors.Is also sees provider errors such as context.DeadlineExceeded.
type Error struct {
	Kind        Kind
	Provider    ProviderKind
	ContextName string
	Message     string
	Err         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("resolve context %q (%s): %s", e.ContextName, e.Provider, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's Kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// UserFacingError returns a message safe to render to dashboard users.
//
// Malformed context names and kubeconfig problems are configuration mistakes
// the user can fix, so they are returned verbatim. Cloud failures collapse to
// one message to avoid leaking provider details.
func (e *Error) UserFacingError() string {
	switch e.Kind {
	case KindMalformedContextName, KindKubeconfigLoadFailed:
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	case KindTimeout:
		return "cluster unreachable: the credential provider did not respond in time"
	default:
		return userFacingResolveError
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindMalformedContextName:
		return ErrMalformedContextName
	case KindCredentialAcquisitionFailed:
		return ErrCredentialAcquisitionFailed
	case KindClusterLookupFailed:
		return ErrClusterLookupFailed
	case KindTokenExchangeFailed:
		return ErrTokenExchangeFailed
	case KindKubeconfigLoadFailed:
		return ErrKubeconfigLoadFailed
	case KindTimeout:
		return ErrTimeout
	default:
		return nil
	}
}

// KindOf returns the Kind of a resolution error, or "" if err is not one.
func KindOf(err error) Kind {
	var resolveErr *Error
	if errors.As(err, &resolveErr) {
		return resolveErr.Kind
	}
	return ""
}

func newError(kind Kind, provider ProviderKind, contextName, message string, cause error) *Error {
	return &Error{
		Kind:        kind,
		Provider:    provider,
		ContextName: contextName,
		Message:     message,
		Err:         cause,
	}
}

// networkError builds the error for a failed network call. Deadline overruns
// are reported as KindTimeout whatever stage they happened in.
func networkError(kind Kind, provider ProviderKind, contextName, message string, cause error) *Error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return newError(KindTimeout, provider, contextName, message, cause)
	}
	return newError(kind, provider, contextName, message, cause)
}
