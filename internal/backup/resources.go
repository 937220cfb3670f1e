package backup

import (
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"kagent/internal/model"
)

// Resources maps every supported resource type to its API resource.
var Resources = map[string]schema.GroupVersionResource{
	"pods":                   {Version: "v1", Resource: "pods"},
	"services":               {Version: "v1", Resource: "services"},
	"configmaps":             {Version: "v1", Resource: "configmaps"},
	"secrets":                {Version: "v1", Resource: "secrets"},
	"persistentvolumeclaims": {Version: "v1", Resource: "persistentvolumeclaims"},
	"serviceaccounts":        {Version: "v1", Resource: "serviceaccounts"},
	"deployments":            {Group: "apps", Version: "v1", Resource: "deployments"},
	"statefulsets":           {Group: "apps", Version: "v1", Resource: "statefulsets"},
	"daemonsets":             {Group: "apps", Version: "v1", Resource: "daemonsets"},
	"replicasets":            {Group: "apps", Version: "v1", Resource: "replicasets"},
	"ingresses":              {Group: "networking.k8s.io", Version: "v1", Resource: "ingresses"},
	"jobs":                   {Group: "batch", Version: "v1", Resource: "jobs"},
	"cronjobs":               {Group: "batch", Version: "v1", Resource: "cronjobs"},
	"roles":                  {Group: "rbac.authorization.k8s.io", Version: "v1", Resource: "roles"},
	"rolebindings":           {Group: "rbac.authorization.k8s.io", Version: "v1", Resource: "rolebindings"},
}

// ResourceTypes lists the supported types in a stable order.
func ResourceTypes() []string {
	out := make([]string, 0, len(Resources))
	for t := range Resources {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func wantsAll(list []string) bool {
	return len(list) == 0 || slices.Contains(list, model.All)
}

// expandTypes resolves "all" and drops types that are not supported.
func expandTypes(types []string) []string {
	if wantsAll(types) {
		return ResourceTypes()
	}
	var out []string
	for _, t := range types {
		if _, ok := Resources[t]; ok && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

var droppedMetadata = []string{
	"resourceVersion", "uid", "selfLink", "creationTimestamp", "generation", "managedFields",
}

// clean strips server-populated fields. It reports false for objects that
// must not be stored at all.
func clean(obj *unstructured.Unstructured) bool {
	if obj.GetKind() == "Secret" {
		if t, _, _ := unstructured.NestedString(obj.Object, "type"); t == "kubernetes.io/service-account-token" {
			return false
		}
	}
	delete(obj.Object, "status")
	for _, f := range droppedMetadata {
		unstructured.RemoveNestedField(obj.Object, "metadata", f)
	}
	if ann := obj.GetAnnotations(); len(ann) > 0 {
		for k := range ann {
			if strings.HasPrefix(k, "kubernetes.io/") {
				delete(ann, k)
			}
		}
		if len(ann) == 0 {
			unstructured.RemoveNestedField(obj.Object, "metadata", "annotations")
		} else {
			obj.SetAnnotations(ann)
		}
	}
	return true
}

// selected applies the include and exclude label filters. Empty filters
// match everything.
func selected(labels, include, exclude map[string]string) bool {
	if len(include) > 0 && !hasAll(labels, include) {
		return false
	}
	if len(exclude) > 0 && hasAll(labels, exclude) {
		return false
	}
	return true
}

func hasAll(labels, want map[string]string) bool {
	for k, v := range want {
		if got, ok := labels[k]; !ok || got != v {
			return false
		}
	}
	return true
}
