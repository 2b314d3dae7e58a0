package patch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	k8stesting "k8s.io/client-go/testing"
)

func newFakeDynamicClient(objects ...runtime.Object) *dynamicfake.FakeDynamicClient {
	listKinds := map[schema.GroupVersionResource]string{
		{Version: "v1", Resource: "configmaps"}:                              "ConfigMapList",
		{Version: "v1", Resource: "namespaces"}:                              "NamespaceList",
		{Group: "apps", Version: "v1", Resource: "deployments"}:              "DeploymentList",
		{Group: "storage.k8s.io", Version: "v1", Resource: "storageclasses"}: "StorageClassList",
	}
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds, objects...)
}

func TestDynamicPatcherGet(t *testing.T) {
	cm := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata":   map[string]any{"name": "cm1", "namespace": "default"},
		"data":       map[string]any{"a": "1"},
	}}
	patcher := NewDynamicPatcher(newFakeDynamicClient(cm))
	desc, _ := Lookup("ConfigMap")

	obj, err := patcher.Get(context.Background(), desc, "default", "cm1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1"}, obj["data"])

	_, err = patcher.Get(context.Background(), desc, "other", "cm1")
	assert.Error(t, err)
}

func TestDynamicPatcherPatch(t *testing.T) {
	client := newFakeDynamicClient()

	var got k8stesting.PatchAction
	client.PrependReactor("patch", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		got = action.(k8stesting.PatchAction)
		return true, &unstructured.Unstructured{Object: map[string]any{
			"apiVersion": "apps/v1",
			"kind":       "Deployment",
			"metadata":   map[string]any{"name": "web", "namespace": "apps"},
			"spec":       map[string]any{"replicas": int64(3)},
		}}, nil
	})

	desc, _ := Lookup("Deployment")
	body := []byte(`{"spec":{"replicas":3}}`)

	obj, err := NewDynamicPatcher(client).Patch(context.Background(), desc, "apps", "web", body, true)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "apps", got.GetNamespace())
	assert.Equal(t, "web", got.GetName())
	assert.Equal(t, types.StrategicMergePatchType, got.GetPatchType())
	assert.JSONEq(t, string(body), string(got.GetPatch()))
	assert.Equal(t, map[string]any{"replicas": int64(3)}, obj["spec"])
}

func TestDynamicPatcherClusterScoped(t *testing.T) {
	client := newFakeDynamicClient()

	var namespace = "unset"
	client.PrependReactor("patch", "storageclasses", func(action k8stesting.Action) (bool, runtime.Object, error) {
		namespace = action.GetNamespace()
		return true, &unstructured.Unstructured{Object: map[string]any{
			"apiVersion": "storage.k8s.io/v1",
			"kind":       "StorageClass",
			"metadata":   map[string]any{"name": "fast"},
		}}, nil
	})

	desc, _ := Lookup("StorageClass")
	_, err := NewDynamicPatcher(client).Patch(context.Background(), desc, "ignored", "fast", []byte(`{}`), false)
	require.NoError(t, err)
	assert.Equal(t, "", namespace)
}
