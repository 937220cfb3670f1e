package collect

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/model"
)

func HPAs(ctx context.Context, client kubernetes.Interface, inv *model.Inventory) error {
	list, err := client.AutoscalingV2().HorizontalPodAutoscalers("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}
	for _, hpa := range list.Items {
		if !InScope(hpa.Namespace, inv) {
			continue
		}
		minRep := int32(1)
		if hpa.Spec.MinReplicas != nil {
			minRep = *hpa.Spec.MinReplicas
		}
		inv.HPAs = append(inv.HPAs, model.HPA{
			Namespace:   hpa.Namespace,
			Name:        hpa.Name,
			Target:      fmt.Sprintf("%s/%s", hpa.Spec.ScaleTargetRef.Kind, hpa.Spec.ScaleTargetRef.Name),
			MinReplicas: minRep,
			MaxReplicas: hpa.Spec.MaxReplicas,
		})
	}
	return nil
}
