package patch

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
)

// Patcher performs the cluster calls the engine needs.
type Patcher interface {
	// Patch applies a strategic merge patch, so lists such as containers and
	// env are merged by their key. With dryRun the server validates the
	// change and returns the would-be object without persisting it.
	Patch(ctx context.Context, desc Descriptor, namespace, name string, body []byte, dryRun bool) (map[string]any, error)

	// Get fetches a live object.
	Get(ctx context.Context, desc Descriptor, namespace, name string) (map[string]any, error)
}

// PatcherFactory builds a Patcher for one resolved cluster configuration.
type PatcherFactory interface {
	NewPatcher(config *rest.Config) (Patcher, error)
}

// PatcherFactoryFunc adapts a function to PatcherFactory.
type PatcherFactoryFunc func(config *rest.Config) (Patcher, error)

// NewPatcher calls f.
func (f PatcherFactoryFunc) NewPatcher(config *rest.Config) (Patcher, error) {
	return f(config)
}

// DynamicPatcher implements Patcher with the client-go dynamic client.
type DynamicPatcher struct {
	client dynamic.Interface
}

// NewDynamicPatcher wraps an existing dynamic client.
func NewDynamicPatcher(client dynamic.Interface) *DynamicPatcher {
	return &DynamicPatcher{client: client}
}

// NewDynamicPatcherFactory returns the default factory, which builds a
// dynamic client per resolved configuration.
func NewDynamicPatcherFactory() PatcherFactory {
	return PatcherFactoryFunc(func(config *rest.Config) (Patcher, error) {
		client, err := dynamic.NewForConfig(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create dynamic client: %w", err)
		}
		return NewDynamicPatcher(client), nil
	})
}

func (p *DynamicPatcher) resource(desc Descriptor, namespace string) dynamic.ResourceInterface {
	nri := p.client.Resource(desc.GVR())
	if desc.Namespaced {
		return nri.Namespace(namespace)
	}
	return nri
}

// Patch implements Patcher.
func (p *DynamicPatcher) Patch(ctx context.Context, desc Descriptor, namespace, name string, body []byte, dryRun bool) (map[string]any, error) {
	opts := metav1.PatchOptions{}
	if dryRun {
		opts.DryRun = []string{metav1.DryRunAll}
	}

	obj, err := p.resource(desc, namespace).Patch(ctx, name, types.StrategicMergePatchType, body, opts)
	if err != nil {
		return nil, err
	}
	return obj.Object, nil
}

// Get implements Patcher.
func (p *DynamicPatcher) Get(ctx context.Context, desc Descriptor, namespace, name string) (map[string]any, error) {
	obj, err := p.resource(desc, namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	return obj.Object, nil
}
