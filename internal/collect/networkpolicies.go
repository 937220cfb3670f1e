package collect

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/model"
)

func NetworkPolicies(ctx context.Context, client kubernetes.Interface, inv *model.Inventory) error {
	list, err := client.NetworkingV1().NetworkPolicies("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}
	for _, np := range list.Items {
		if !InScope(np.Namespace, inv) {
			continue
		}
		inv.NetworkPolicies = append(inv.NetworkPolicies, model.NetworkPolicy{
			Namespace: np.Namespace,
			Name:      np.Name,
		})
	}
	return nil
}
