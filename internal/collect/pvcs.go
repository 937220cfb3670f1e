package collect

import (
	"context"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/model"
)

// PVCs feeds the storage line of the cost breakdown.
func PVCs(ctx context.Context, client kubernetes.Interface, inv *model.Inventory) error {
	list, err := client.CoreV1().PersistentVolumeClaims("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}

	for _, pvc := range list.Items {
		if !InScope(pvc.Namespace, inv) {
			continue
		}
		claim := model.PersistentVolumeClaim{
			Name:         pvc.Name,
			Namespace:    pvc.Namespace,
			StorageClass: deref(pvc.Spec.StorageClassName),
			AccessModes:  accessModesToStrings(pvc.Spec.AccessModes),
		}
		if qty, ok := pvc.Spec.Resources.Requests[v1.ResourceStorage]; ok {
			claim.RequestedSize = qty.String()
			claim.RequestedBytes = qty.AsApproximateFloat64()
		}
		inv.PVCs = append(inv.PVCs, claim)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func accessModesToStrings(modes []v1.PersistentVolumeAccessMode) []string {
	out := []string{}
	for _, m := range modes {
		out = append(out, string(m))
	}
	return out
}
