package collect

import (
	"context"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/model"
)

func Pods(ctx context.Context, client kubernetes.Interface, inv *model.Inventory) error {
	list, err := client.CoreV1().Pods("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}

	for i := range list.Items {
		pod := &list.Items[i]
		if !InScope(pod.Namespace, inv) {
			continue
		}
		inv.Pods = append(inv.Pods, ToModelPod(pod))
	}
	return nil
}

// ToModelPod flattens the fields the analyzers need.
func ToModelPod(pod *v1.Pod) model.Pod {
	p := model.Pod{
		Namespace:   pod.Namespace,
		Name:        pod.Name,
		Node:        pod.Spec.NodeName,
		Phase:       string(pod.Status.Phase),
		HostNetwork: pod.Spec.HostNetwork,
		HostPID:     pod.Spec.HostPID,
	}

	if len(pod.OwnerReferences) > 0 {
		p.OwnerKind = pod.OwnerReferences[0].Kind
		p.OwnerName = pod.OwnerReferences[0].Name
	}

	for _, cs := range pod.Status.ContainerStatuses {
		p.Restarts += int(cs.RestartCount)
	}

	var podNonRoot *bool
	var podUser *int64
	if sc := pod.Spec.SecurityContext; sc != nil {
		podNonRoot = sc.RunAsNonRoot
		podUser = sc.RunAsUser
	}

	for _, c := range pod.Spec.Containers {
		mc := model.Container{
			Name:         c.Name,
			Image:        c.Image,
			RunAsNonRoot: podNonRoot,
			RunAsUser:    podUser,
		}
		if sc := c.SecurityContext; sc != nil {
			if sc.Privileged != nil {
				mc.Privileged = *sc.Privileged
			}
			if sc.RunAsNonRoot != nil {
				mc.RunAsNonRoot = sc.RunAsNonRoot
			}
			if sc.RunAsUser != nil {
				mc.RunAsUser = sc.RunAsUser
			}
		}

		req, lim := c.Resources.Requests, c.Resources.Limits
		if q, ok := req[v1.ResourceCPU]; ok {
			mc.CPURequest = float64(q.MilliValue()) / 1000.0
		}
		if q, ok := req[v1.ResourceMemory]; ok {
			mc.MemoryRequest = q.AsApproximateFloat64()
		}
		cpuLim, hasCPU := lim[v1.ResourceCPU]
		memLim, hasMem := lim[v1.ResourceMemory]
		if hasCPU {
			mc.CPULimit = float64(cpuLim.MilliValue()) / 1000.0
		}
		if hasMem {
			mc.MemoryLimit = memLim.AsApproximateFloat64()
		}
		mc.HasLimits = hasCPU && hasMem

		p.Containers = append(p.Containers, mc)
	}
	return p
}
