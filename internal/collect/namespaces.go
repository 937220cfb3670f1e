package collect

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/model"
)

func Namespaces(ctx context.Context, client kubernetes.Interface, inv *model.Inventory) error {
	list, err := client.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}

	for _, ns := range list.Items {
		if !InScope(ns.Name, inv) {
			continue
		}
		inv.Namespaces = append(inv.Namespaces, model.Namespace{
			Name:   ns.Name,
			Labels: ns.Labels,
		})
	}
	return nil
}
