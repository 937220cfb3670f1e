package collect

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/model"
)

// ClusterRoleBindings records subjects as "Kind:name".
func ClusterRoleBindings(ctx context.Context, client kubernetes.Interface, inv *model.Inventory) error {
	list, err := client.RbacV1().ClusterRoleBindings().List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}
	for _, crb := range list.Items {
		var subjects []string
		for _, s := range crb.Subjects {
			subjects = append(subjects, fmt.Sprintf("%s:%s", s.Kind, s.Name))
		}
		inv.ClusterRoleBindings = append(inv.ClusterRoleBindings, model.ClusterRoleBinding{
			Name:     crb.Name,
			RoleName: crb.RoleRef.Name,
			Subjects: subjects,
		})
	}
	return nil
}
