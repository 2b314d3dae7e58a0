package patch

import (
	"sort"

	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	storagev1 "k8s.io/api/storage/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Descriptor describes how to patch one resource kind.
type Descriptor struct {
	Kind         string
	GroupVersion schema.GroupVersion
	// Resource is the plural REST resource name.
	Resource string
	// Operation names the patch call in logs and metrics.
	Operation  string
	Namespaced bool
}

// GVR returns the GroupVersionResource used by the dynamic client.
func (d Descriptor) GVR() schema.GroupVersionResource {
	return d.GroupVersion.WithResource(d.Resource)
}

// APIVersion returns the apiVersion string for the kind.
func (d Descriptor) APIVersion() string {
	return d.GroupVersion.String()
}

var registry = buildRegistry(
	Descriptor{"Pod", corev1.SchemeGroupVersion, "pods", "patch_namespaced_pod", true},
	Descriptor{"Service", corev1.SchemeGroupVersion, "services", "patch_namespaced_service", true},
	Descriptor{"ConfigMap", corev1.SchemeGroupVersion, "configmaps", "patch_namespaced_config_map", true},
	Descriptor{"Secret", corev1.SchemeGroupVersion, "secrets", "patch_namespaced_secret", true},
	Descriptor{"ServiceAccount", corev1.SchemeGroupVersion, "serviceaccounts", "patch_namespaced_service_account", true},
	Descriptor{"Namespace", corev1.SchemeGroupVersion, "namespaces", "patch_namespace", false},
	Descriptor{"Node", corev1.SchemeGroupVersion, "nodes", "patch_node", false},
	Descriptor{"PersistentVolume", corev1.SchemeGroupVersion, "persistentvolumes", "patch_persistent_volume", false},
	Descriptor{"PersistentVolumeClaim", corev1.SchemeGroupVersion, "persistentvolumeclaims", "patch_namespaced_persistent_volume_claim", true},
	Descriptor{"Endpoints", corev1.SchemeGroupVersion, "endpoints", "patch_namespaced_endpoints", true},
	Descriptor{"ReplicationController", corev1.SchemeGroupVersion, "replicationcontrollers", "patch_namespaced_replication_controller", true},
	Descriptor{"LimitRange", corev1.SchemeGroupVersion, "limitranges", "patch_namespaced_limit_range", true},
	Descriptor{"ResourceQuota", corev1.SchemeGroupVersion, "resourcequotas", "patch_namespaced_resource_quota", true},
	Descriptor{"Deployment", appsv1.SchemeGroupVersion, "deployments", "patch_namespaced_deployment", true},
	Descriptor{"StatefulSet", appsv1.SchemeGroupVersion, "statefulsets", "patch_namespaced_stateful_set", true},
	Descriptor{"DaemonSet", appsv1.SchemeGroupVersion, "daemonsets", "patch_namespaced_daemon_set", true},
	Descriptor{"ReplicaSet", appsv1.SchemeGroupVersion, "replicasets", "patch_namespaced_replica_set", true},
	Descriptor{"Job", batchv1.SchemeGroupVersion, "jobs", "patch_namespaced_job", true},
	Descriptor{"CronJob", batchv1.SchemeGroupVersion, "cronjobs", "patch_namespaced_cron_job", true},
	Descriptor{"Ingress", networkingv1.SchemeGroupVersion, "ingresses", "patch_namespaced_ingress", true},
	Descriptor{"IngressClass", networkingv1.SchemeGroupVersion, "ingressclasses", "patch_ingress_class", false},
	Descriptor{"NetworkPolicy", networkingv1.SchemeGroupVersion, "networkpolicies", "patch_namespaced_network_policy", true},
	Descriptor{"StorageClass", storagev1.SchemeGroupVersion, "storageclasses", "patch_storage_class", false},
	Descriptor{"Role", rbacv1.SchemeGroupVersion, "roles", "patch_namespaced_role", true},
	Descriptor{"RoleBinding", rbacv1.SchemeGroupVersion, "rolebindings", "patch_namespaced_role_binding", true},
	Descriptor{"ClusterRole", rbacv1.SchemeGroupVersion, "clusterroles", "patch_cluster_role", false},
	Descriptor{"ClusterRoleBinding", rbacv1.SchemeGroupVersion, "clusterrolebindings", "patch_cluster_role_binding", false},
	Descriptor{"HorizontalPodAutoscaler", autoscalingv2.SchemeGroupVersion, "horizontalpodautoscalers", "patch_namespaced_horizontal_pod_autoscaler", true},
)

func buildRegistry(descriptors ...Descriptor) map[string]Descriptor {
	m := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		m[d.Kind] = d
	}
	return m
}

// Lookup returns the descriptor for kind. Kinds are matched exactly, as they
// appear in a manifest's kind field.
func Lookup(kind string) (Descriptor, bool) {
	d, ok := registry[kind]
	return d, ok
}

// Kinds returns every supported kind in alphabetical order.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
