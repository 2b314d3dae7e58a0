package patch

import (
	"errors"
	"fmt"
)

// Kind classifies a failed patch, get or diff.
type Kind string

const (
	KindInvalidYAML        Kind = "InvalidYAML"
	KindUnsupportedKind    Kind = "UnsupportedKind"
	KindDryRunRejected     Kind = "DryRunRejected"
	KindPatchFailed        Kind = "PatchFailed"
	KindClusterUnreachable Kind = "ClusterUnreachable"
	KindTimeout            Kind = "Timeout"
	KindGetFailed          Kind = "GetFailed"
)

var (
	// ErrInvalidYAML indicates the submitted YAML could not be parsed into a mapping.
	ErrInvalidYAML = errors.New("invalid YAML")

	// ErrUnsupportedKind indicates a kind with no registry entry.
	ErrUnsupportedKind = errors.New("unsupported resource kind")

	// ErrDryRunRejected indicates the server rejected the dry-run patch.
	ErrDryRunRejected = errors.New("dry-run patch rejected")

	// ErrPatchFailed indicates the real patch failed after a successful dry-run.
	ErrPatchFailed = errors.New("patch failed")

	// ErrClusterUnreachable indicates the cluster's credentials could not be resolved.
	ErrClusterUnreachable = errors.New("cluster unreachable")

	// ErrTimeout indicates the cluster did not answer within the call timeout.
	ErrTimeout = errors.New("cluster call timed out")

	// ErrGetFailed indicates a live object could not be fetched.
	ErrGetFailed = errors.New("get failed")
)

// User-facing messages. Only the dry-run rejection carries server detail.
const (
	msgClusterUnreachable = "Could not reach cluster. Check the cluster configuration and try again."
	msgInvalidYAML        = "The YAML could not be parsed, make sure the YAML is valid: %s"
	msgUnsupportedKind    = "Resource kind %q is not supported. Make sure the kind is valid and exists."
	msgPatchFailed        = "Failed to patch %s. The resource may have been modified concurrently; reload and try again."
	msgTimeout            = "The cluster did not respond in time. Try again."
	msgGetFailed          = "Could not load %s %q from the cluster."
	msgPatched            = "%s patched successfully."
	msgValidated          = "%s passed the dry run. Nothing was applied."
	msgNoDifferences      = "No differences found."
	msgDiffUnavailable    = "The change was applied, but the previous YAML could not be compared: %s"
)

// Error is returned by Get and Diff. Patch reports failures through
// PatchResult instead.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's Kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// UserFacingError returns the message without internal cause detail.
func (e *Error) UserFacingError() string {
	return e.Message
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidYAML:
		return ErrInvalidYAML
	case KindUnsupportedKind:
		return ErrUnsupportedKind
	case KindDryRunRejected:
		return ErrDryRunRejected
	case KindPatchFailed:
		return ErrPatchFailed
	case KindClusterUnreachable:
		return ErrClusterUnreachable
	case KindTimeout:
		return ErrTimeout
	case KindGetFailed:
		return ErrGetFailed
	default:
		return nil
	}
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var patchErr *Error
	if errors.As(err, &patchErr) {
		return patchErr.Kind
	}
	return ""
}

func invalidYAMLError(cause error) *Error {
	return &Error{Kind: KindInvalidYAML, Message: fmt.Sprintf(msgInvalidYAML, cause), Err: cause}
}

func unsupportedKindError(kind string) *Error {
	return &Error{Kind: KindUnsupportedKind, Message: fmt.Sprintf(msgUnsupportedKind, kind)}
}
