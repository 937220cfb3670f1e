package collect

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/model"
)

func Deployments(ctx context.Context, client kubernetes.Interface, inv *model.Inventory) error {
	list, err := client.AppsV1().Deployments("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}
	for _, d := range list.Items {
		if !InScope(d.Namespace, inv) {
			continue
		}
		var images []string
		for _, c := range d.Spec.Template.Spec.Containers {
			images = append(images, c.Image)
		}
		desired := int32(1)
		if d.Spec.Replicas != nil {
			desired = *d.Spec.Replicas
		}
		inv.Deployments = append(inv.Deployments, model.Deployment{
			Namespace: d.Namespace,
			Name:      d.Name,
			Replicas:  desired,
			Ready:     d.Status.ReadyReplicas,
			Images:    images,
		})
	}
	return nil
}
