package collect

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/model"
)

// Secrets records secret metadata only. Values are never read into the inventory.
func Secrets(ctx context.Context, client kubernetes.Interface, inv *model.Inventory) error {
	list, err := client.CoreV1().Secrets("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}
	for _, s := range list.Items {
		if !InScope(s.Namespace, inv) {
			continue
		}
		inv.Secrets = append(inv.Secrets, model.Secret{
			Namespace: s.Namespace,
			Name:      s.Name,
			Type:      string(s.Type),
			KeyCount:  len(s.Data),
		})
	}
	return nil
}
