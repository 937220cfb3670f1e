package collect

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/model"
)

func ResourceQuotas(ctx context.Context, client kubernetes.Interface, inv *model.Inventory) error {
	list, err := client.CoreV1().ResourceQuotas("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}
	for _, rq := range list.Items {
		if !InScope(rq.Namespace, inv) {
			continue
		}
		hard := map[string]string{}
		for res, q := range rq.Spec.Hard {
			hard[string(res)] = q.String()
		}
		inv.ResourceQuotas = append(inv.ResourceQuotas, model.ResourceQuota{
			Namespace: rq.Namespace,
			Name:      rq.Name,
			Hard:      hard,
		})
	}
	return nil
}
