package patch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/giantswarm/kubedash/internal/kubeauth"
	"github.com/giantswarm/kubedash/internal/logging"
)

// DefaultCallTimeout bounds each cluster call made by the engine.
const DefaultCallTimeout = 30 * time.Second

// defaultNamespace is used for namespaced kinds when neither the request nor
// the document names a namespace.
const defaultNamespace = "default"

// ContextResolver is the part of *kubeauth.Resolver the engine uses.
type ContextResolver interface {
	Resolve(ctx context.Context, path, contextName string) (*kubeauth.LiveClientConfig, error)
}

// Recorder receives one observation per Patch call. outcome is "success" or
// the failure Kind.
type Recorder interface {
	RecordPatch(ctx context.Context, resourceKind, outcome string, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordPatch(context.Context, string, string, time.Duration) {}

// PatchRequest is a user's edit of one resource.
type PatchRequest struct {
	// Kind is the kind the user started editing. The kind field of NewYAML
	// takes precedence; Kind is used when the document has none.
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
	// OldYAML is the rendered YAML the user was shown before editing.
	OldYAML string `json:"old_yaml"`
	NewYAML string `json:"new_yaml"`
}

// PatchResult reports the outcome of a patch. Failures are values, never errors.
type PatchResult struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	Changes   []Change `json:"changes,omitempty"`
	ErrorKind Kind     `json:"error_kind,omitempty"`
}

func failure(kind Kind, message string) PatchResult {
	return PatchResult{Success: false, Message: message, ErrorKind: kind}
}

// Engine validates, dry-runs and applies user edits to live resources.
type Engine struct {
	resolver ContextResolver
	patchers PatcherFactory
	timeout  time.Duration
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPatcherFactory replaces the dynamic-client factory.
func WithPatcherFactory(factory PatcherFactory) EngineOption {
	return func(e *Engine) {
		e.patchers = factory
	}
}

// WithCallTimeout bounds each cluster call. Zero disables the bound.
func WithCallTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRecorder sets the patch metrics recorder.
func WithRecorder(recorder Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// NewEngine creates an Engine that resolves clusters with resolver.
func NewEngine(resolver ContextResolver, opts ...EngineOption) *Engine {
	e := &Engine{
		resolver: resolver,
		patchers: NewDynamicPatcherFactory(),
		timeout:  DefaultCallTimeout,
		logger:   slog.Default(),
		recorder: noopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.recorder == nil {
		e.recorder = noopRecorder{}
	}
	return e
}

// Patch applies req to the cluster behind cred.
//
// The document is parsed and its kind checked before any network call. The
// dry-run always precedes the real patch, and a rejected dry-run stops the
// request. The returned changes compare req.OldYAML with the object the
// server returned.
func (e *Engine) Patch(ctx context.Context, cred kubeauth.ClusterCredential, req PatchRequest) PatchResult {
	return e.run(ctx, cred, req, true)
}

// Validate runs Patch up to and including the dry-run and stops there. The
// changes compare req.OldYAML with the object the server would have written.
// Nothing is persisted.
func (e *Engine) Validate(ctx context.Context, cred kubeauth.ClusterCredential, req PatchRequest) PatchResult {
	return e.run(ctx, cred, req, false)
}

func (e *Engine) run(ctx context.Context, cred kubeauth.ClusterCredential, req PatchRequest, apply bool) PatchResult {
	start := e.now()
	operation := "resource.patch"
	if !apply {
		operation = "resource.validate"
	}
	logger := logging.WithOperation(e.logger, operation).With(
		logging.Cluster(cred.Name),
		logging.ResourceName(req.Name),
		logging.Namespace(req.Namespace),
		logging.DryRun(!apply))

	kind, result := e.patch(ctx, logger, cred, req, apply)

	duration := e.now().Sub(start)
	if apply {
		outcome := logging.StatusSuccess
		if !result.Success {
			outcome = string(result.ErrorKind)
		}
		e.recorder.RecordPatch(ctx, kind, outcome, duration)
	}

	if result.Success {
		logger.Info("patch accepted",
			logging.ResourceType(kind),
			slog.Int("changes", CountChanges(result.Changes)),
			logging.Duration(duration))
	} else {
		logger.Info("patch not applied",
			logging.ResourceType(kind),
			logging.ErrorKind(string(result.ErrorKind)),
			logging.Duration(duration))
	}
	return result
}

func (e *Engine) patch(ctx context.Context, logger *slog.Logger, cred kubeauth.ClusterCredential, req PatchRequest, apply bool) (string, PatchResult) {
	doc, err := ParseDocument(req.NewYAML)
	if err == nil && len(doc) == 0 {
		err = errEmptyDocument
	}
	if err != nil {
		return req.Kind, failure(KindInvalidYAML, invalidYAMLError(err).Message)
	}

	kind := documentString(doc, "kind")
	if kind == "" {
		kind = req.Kind
	} else if req.Kind != "" && req.Kind != kind {
		logger.Warn("document kind differs from requested kind, using the document kind",
			slog.String("requested_kind", req.Kind),
			logging.ResourceType(kind))
	}
	desc, ok := Lookup(kind)
	if !ok {
		return kind, failure(KindUnsupportedKind, unsupportedKindError(kind).Message)
	}

	name := req.Name
	if name == "" {
		name = documentString(doc, "metadata", "name")
	}
	if name == "" {
		return kind, failure(KindInvalidYAML, invalidYAMLError(errors.New("metadata.name is missing")).Message)
	}
	namespace := namespaceFor(desc, doc, req.Namespace)

	StripServerFields(doc)
	body, err := json.Marshal(doc)
	if err != nil {
		return kind, failure(KindInvalidYAML, invalidYAMLError(err).Message)
	}

	live, err := e.resolver.Resolve(ctx, cred.KubeconfigPath, cred.ContextName)
	if err != nil {
		logger.Warn("could not resolve cluster for patch",
			logging.ErrorKind(string(kubeauth.KindOf(err))),
			logging.SanitizedErr(err))
		return kind, failure(KindClusterUnreachable, msgClusterUnreachable)
	}
	defer func() {
		if err := live.Close(); err != nil {
			logger.Warn("failed to release cluster configuration", logging.Err(err))
		}
	}()

	patcher, err := e.patchers.NewPatcher(live.RESTConfig())
	if err != nil {
		logger.Warn("could not create cluster client", logging.SanitizedErr(err))
		return kind, failure(KindClusterUnreachable, msgClusterUnreachable)
	}

	logger = logger.With(logging.Operation(desc.Operation))

	callCtx, cancel := e.callContext(ctx)
	preview, err := patcher.Patch(callCtx, desc, namespace, name, body, true)
	cancel()
	if err != nil {
		return kind, dryRunFailure(logger, err)
	}
	if !apply {
		return kind, PatchResult{
			Success: true,
			Message: fmt.Sprintf(msgValidated, kind),
			Changes: e.changesSince(logger, req.OldYAML, preview),
		}
	}

	callCtx, cancel = e.callContext(ctx)
	obj, err := patcher.Patch(callCtx, desc, namespace, name, body, false)
	cancel()
	if err != nil {
		if isTimeout(err) {
			return kind, failure(KindTimeout, msgTimeout)
		}
		logger.Warn("patch failed after a successful dry-run",
			slog.Bool("conflict", apierrors.IsConflict(err)),
			logging.SanitizedErr(err))
		return kind, failure(KindPatchFailed, fmt.Sprintf(msgPatchFailed, kind))
	}

	return kind, PatchResult{
		Success: true,
		Message: fmt.Sprintf(msgPatched, kind),
		Changes: e.changesSince(logger, req.OldYAML, obj),
	}
}

// changesSince diffs the YAML the user saw with the server's result. The
// patch is already applied, so a diff problem is reported as an info entry.
func (e *Engine) changesSince(logger *slog.Logger, oldYAML string, obj map[string]any) []Change {
	rendered, err := RenderYAML(obj)
	if err != nil {
		logger.Warn("could not render patched object", logging.Err(err))
		return []Change{{Type: ChangeInfo, NewValue: fmt.Sprintf(msgDiffUnavailable, err)}}
	}

	changes, err := Diff(oldYAML, rendered)
	if err != nil {
		return []Change{{Type: ChangeInfo, NewValue: fmt.Sprintf(msgDiffUnavailable, "make sure the YAML is valid")}}
	}
	return changes
}

// Get fetches a live object and renders it the way Patch renders results, so
// the YAML can be shown for editing and later passed back as OldYAML.
func (e *Engine) Get(ctx context.Context, cred kubeauth.ClusterCredential, kind, name, namespace string) (string, error) {
	desc, ok := Lookup(kind)
	if !ok {
		return "", unsupportedKindError(kind)
	}
	if !desc.Namespaced {
		namespace = ""
	} else if namespace == "" {
		namespace = defaultNamespace
	}

	live, err := e.resolver.Resolve(ctx, cred.KubeconfigPath, cred.ContextName)
	if err != nil {
		return "", &Error{Kind: KindClusterUnreachable, Message: msgClusterUnreachable, Err: err}
	}
	defer func() { _ = live.Close() }()

	patcher, err := e.patchers.NewPatcher(live.RESTConfig())
	if err != nil {
		return "", &Error{Kind: KindClusterUnreachable, Message: msgClusterUnreachable, Err: err}
	}

	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	obj, err := patcher.Get(callCtx, desc, namespace, name)
	if err != nil {
		if isTimeout(err) {
			return "", &Error{Kind: KindTimeout, Message: msgTimeout, Err: err}
		}
		message := fmt.Sprintf(msgGetFailed, kind, name)
		if apierrors.IsNotFound(err) || apierrors.IsForbidden(err) {
			message = serverMessage(err)
		}
		return "", &Error{Kind: KindGetFailed, Message: message, Err: err}
	}

	return RenderYAML(obj)
}

// TargetNamespace returns the namespace a patch for req is sent to.
// Cluster-scoped kinds yield "". Requests whose document cannot be parsed or
// whose kind is unsupported yield the requested namespace.
func TargetNamespace(req PatchRequest) string {
	doc, err := ParseDocument(req.NewYAML)
	if err != nil {
		return req.Namespace
	}
	kind := documentString(doc, "kind")
	if kind == "" {
		kind = req.Kind
	}
	desc, ok := Lookup(kind)
	if !ok {
		return req.Namespace
	}
	return namespaceFor(desc, doc, req.Namespace)
}

func namespaceFor(desc Descriptor, doc map[string]any, requested string) string {
	if !desc.Namespaced {
		return ""
	}
	if requested != "" {
		return requested
	}
	if ns := documentString(doc, "metadata", "namespace"); ns != "" {
		return ns
	}
	return defaultNamespace
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// dryRunFailure maps a failed dry-run. API rejections carry the server's
// reason verbatim; transport failures are reported as an unreachable cluster.
func dryRunFailure(logger *slog.Logger, err error) PatchResult {
	if isTimeout(err) {
		return failure(KindTimeout, msgTimeout)
	}
	var status apierrors.APIStatus
	if !errors.As(err, &status) {
		logger.Warn("dry-run patch could not reach the cluster", logging.SanitizedErr(err))
		return failure(KindClusterUnreachable, msgClusterUnreachable)
	}
	logger.Info("dry-run patch rejected",
		slog.String("reason", string(apierrors.ReasonForError(err))))
	return failure(KindDryRunRejected, serverMessage(err))
}

// serverMessage returns the API server's message for err, falling back to
// its reason.
func serverMessage(err error) string {
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		if msg := status.Status().Message; msg != "" {
			return msg
		}
		if reason := apierrors.ReasonForError(err); reason != "" {
			return string(reason)
		}
	}
	return err.Error()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
