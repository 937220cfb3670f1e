package collect

import (
	"context"
	"strings"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/model"
)

var instanceTypeLabels = []string{
	"node.kubernetes.io/instance-type",
	"beta.kubernetes.io/instance-type",
}

func Nodes(ctx context.Context, client kubernetes.Interface, inv *model.Inventory) error {
	list, err := client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}

	out := make([]model.Node, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, toModelNode(&list.Items[i]))
	}

	inv.Nodes = out
	return nil
}

func toModelNode(n *v1.Node) model.Node {
	m := model.Node{
		Name:         n.Name,
		Labels:       map[string]string{},
		Status:       "Unknown",
		InstanceType: model.UnknownInstanceType,
	}

	for k, v := range n.Labels {
		m.Labels[k] = v
	}

	for _, l := range instanceTypeLabels {
		if it := n.Labels[l]; it != "" {
			m.InstanceType = it
			break
		}
	}

	// node-role.kubernetes.io/<role>=true or empty
	for k := range n.Labels {
		if strings.HasPrefix(k, "node-role.kubernetes.io/") {
			role := strings.TrimPrefix(k, "node-role.kubernetes.io/")
			if role == "" {
				role = "master"
			}
			m.Roles = append(m.Roles, role)
		}
	}

	if len(n.Status.Conditions) > 0 {
		m.Status = string(n.Status.Conditions[len(n.Status.Conditions)-1].Type)
	}
	for _, c := range n.Status.Conditions {
		on := c.Status == v1.ConditionTrue
		switch c.Type {
		case v1.NodeReady:
			m.Ready = on
		case v1.NodeDiskPressure:
			m.DiskPressure = on
		case v1.NodeMemoryPressure:
			m.MemoryPressure = on
		case v1.NodePIDPressure:
			m.PIDPressure = on
		}
	}

	if q, ok := n.Status.Capacity[v1.ResourceCPU]; ok {
		m.CPUCapacity = float64(q.MilliValue()) / 1000.0
	}
	if q, ok := n.Status.Capacity[v1.ResourceMemory]; ok {
		m.MemoryCapacity = q.AsApproximateFloat64()
	}

	return m
}
