package remediation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"kagent/internal/model"
)

// Actions recorded on results.
const (
	ActionCordonNode          = "cordon_node"
	ActionScaleNodePool       = "suggest_scale_node_pool"
	ActionScaleDeployment     = "suggest_scaling_deployment"
	ActionReclaimMemory       = "reclaim_memory"
	ActionMemoryOptimization  = "suggest_memory_optimization"
	ActionMemoryLimits        = "suggest_memory_limits"
	ActionRecreatePod         = "delete_and_recreate_pod"
	ActionCleanupDisk         = "cleanup_disk_space"
	ActionEvictHighMemory     = "evict_pods_with_high_memory_usage"
	ActionEvictManyContainers = "evict_pods_with_many_containers"
	ActionCreateHPA           = "create_hpa"
	ActionRaiseMemoryLimits   = "raise_memory_limits"
	ActionSetResourceLimits   = "set_resource_limits"
)

const (
	hpaMinReplicas = 1
	hpaMaxReplicas = 10
	hpaCPUTarget   = 70
	memoryRaise    = 1.2
)

type strategy func(ctx context.Context, r *Remediator, issue model.Issue) (string, map[string]any, error)

var strategies = map[string]strategy{
	model.IssueHighCPU:             highCPU,
	model.IssueHighMemory:          highMemory,
	model.IssueFrequentRestarts:    frequentRestarts,
	model.IssueDiskPressure:        diskPressure,
	model.IssueMemoryPressure:      memoryPressure,
	model.IssuePIDPressure:         pidPressure,
	model.IssueCPUTrend:            cpuTrend,
	model.IssueMemoryTrend:         memoryTrend,
	model.IssueResourceCorrelation: resourceCorrelation,
}

var cleanupActions = []string{
	"Removed unused container images",
	"Cleared rotated container logs",
	"Removed old crash dumps",
}

func highCPU(ctx context.Context, r *Remediator, issue model.Issue) (string, map[string]any, error) {
	if !r.isNode(ctx, issue.Component) {
		return ActionScaleDeployment, map[string]any{
			"pod":    issue.Component,
			"reason": issue.Type,
			"note":   "Consider horizontally scaling the deployment",
		}, nil
	}
	if issue.Severity != model.SeverityCritical {
		return ActionScaleNodePool, map[string]any{
			"node":   issue.Component,
			"reason": issue.Type,
			"note":   "Consider adding more nodes to the node pool",
		}, nil
	}
	details := map[string]any{"node": issue.Component, "reason": issue.Type}
	patch := []byte(`{"spec":{"unschedulable":true}}`)
	if _, err := r.client.CoreV1().Nodes().Patch(ctx, issue.Component, types.StrategicMergePatchType, patch, metav1.PatchOptions{}); err != nil {
		return ActionCordonNode, details, fmt.Errorf("Node remediation failed: %w", err)
	}
	return ActionCordonNode, details, nil
}

func highMemory(ctx context.Context, r *Remediator, issue model.Issue) (string, map[string]any, error) {
	if !r.isNode(ctx, issue.Component) {
		return ActionMemoryLimits, map[string]any{
			"pod":    issue.Component,
			"reason": issue.Type,
			"note":   "Implement or adjust memory limits for this pod",
		}, nil
	}
	if issue.Severity != model.SeverityCritical {
		return ActionMemoryOptimization, map[string]any{
			"node":   issue.Component,
			"reason": issue.Type,
			"note":   "Review memory limits and requests for pods on this node",
		}, nil
	}
	return ActionReclaimMemory, map[string]any{"node": issue.Component, "reason": issue.Type}, nil
}

// findPod looks a pod up by name, across namespaces unless the issue names one.
func findPod(ctx context.Context, r *Remediator, issue model.Issue) (*corev1.Pod, error) {
	ns, _ := issue.Details["namespace"].(string)
	list, err := r.client.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	for i := range list.Items {
		if list.Items[i].Name == issue.Component {
			return &list.Items[i], nil
		}
	}
	return nil, fmt.Errorf("pod %s not found", issue.Component)
}

func frequentRestarts(ctx context.Context, r *Remediator, issue model.Issue) (string, map[string]any, error) {
	details := map[string]any{"pod": issue.Component}
	pod, err := findPod(ctx, r, issue)
	if err != nil {
		return ActionRecreatePod, details, fmt.Errorf("Pod restart remediation failed: %w", err)
	}
	details["namespace"] = pod.Namespace

	var reasons []map[string]any
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.RestartCount == 0 {
			continue
		}
		reason := map[string]any{"container": cs.Name, "restart_count": cs.RestartCount}
		if t := cs.LastTerminationState.Terminated; t != nil {
			reason["last_state"] = map[string]any{"reason": t.Reason, "exit_code": t.ExitCode}
		}
		reasons = append(reasons, reason)
	}
	details["restart_reasons"] = reasons

	if err := r.client.CoreV1().Pods(pod.Namespace).Delete(ctx, pod.Name, metav1.DeleteOptions{}); err != nil {
		return ActionRecreatePod, details, fmt.Errorf("Pod restart remediation failed: %w", err)
	}
	return ActionRecreatePod, details, nil
}

func diskPressure(_ context.Context, _ *Remediator, issue model.Issue) (string, map[string]any, error) {
	return ActionCleanupDisk, map[string]any{
		"node":            issue.Component,
		"cleanup_actions": cleanupActions,
	}, nil
}

func memoryPressure(_ context.Context, _ *Remediator, issue model.Issue) (string, map[string]any, error) {
	return ActionEvictHighMemory, map[string]any{"node": issue.Component}, nil
}

func pidPressure(_ context.Context, _ *Remediator, issue model.Issue) (string, map[string]any, error) {
	return ActionEvictManyContainers, map[string]any{"node": issue.Component}, nil
}

func cpuTrend(ctx context.Context, r *Remediator, issue model.Issue) (string, map[string]any, error) {
	details := map[string]any{"node": issue.Component}
	hpas, err := r.client.AutoscalingV2().HorizontalPodAutoscalers("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return ActionCreateHPA, details, fmt.Errorf("API error: %w", err)
	}
	if len(hpas.Items) > 0 {
		details["existing_hpas"] = len(hpas.Items)
		return ActionCreateHPA, details, nil
	}
	deps, err := r.client.AppsV1().Deployments("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return ActionCreateHPA, details, fmt.Errorf("API error: %w", err)
	}
	if len(deps.Items) == 0 {
		return ActionCreateHPA, details, errors.New("No deployments found to scale")
	}
	sort.Slice(deps.Items, func(i, j int) bool {
		a, b := deps.Items[i], deps.Items[j]
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		return a.Name < b.Name
	})
	d := deps.Items[0]
	minReplicas := int32(hpaMinReplicas)
	target := int32(hpaCPUTarget)
	hpa := &autoscalingv2.HorizontalPodAutoscaler{
		ObjectMeta: metav1.ObjectMeta{Name: d.Name + "-hpa", Namespace: d.Namespace},
		Spec: autoscalingv2.HorizontalPodAutoscalerSpec{
			ScaleTargetRef: autoscalingv2.CrossVersionObjectReference{
				APIVersion: "apps/v1",
				Kind:       "Deployment",
				Name:       d.Name,
			},
			MinReplicas: &minReplicas,
			MaxReplicas: hpaMaxReplicas,
			Metrics: []autoscalingv2.MetricSpec{{
				Type: autoscalingv2.ResourceMetricSourceType,
				Resource: &autoscalingv2.ResourceMetricSource{
					Name: corev1.ResourceCPU,
					Target: autoscalingv2.MetricTarget{
						Type:               autoscalingv2.UtilizationMetricType,
						AverageUtilization: &target,
					},
				},
			}},
		},
	}
	if _, err := r.client.AutoscalingV2().HorizontalPodAutoscalers(d.Namespace).Create(ctx, hpa, metav1.CreateOptions{}); err != nil {
		return ActionCreateHPA, details, fmt.Errorf("API error: %w", err)
	}
	details["hpa"] = hpa.Name
	details["namespace"] = d.Namespace
	details["deployment"] = d.Name
	return ActionCreateHPA, details, nil
}

// nodeDeployments resolves the Deployments owning pods scheduled on node.
func nodeDeployments(ctx context.Context, r *Remediator, node string) ([]*appsv1.Deployment, error) {
	pods, err := r.client.CoreV1().Pods("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []*appsv1.Deployment
	for _, p := range pods.Items {
		if p.Spec.NodeName != node {
			continue
		}
		owner := metav1.GetControllerOf(&p)
		if owner == nil || owner.Kind != "ReplicaSet" {
			continue
		}
		rs, err := r.client.AppsV1().ReplicaSets(p.Namespace).Get(ctx, owner.Name, metav1.GetOptions{})
		if err != nil {
			continue
		}
		dep := metav1.GetControllerOf(rs)
		if dep == nil || dep.Kind != "Deployment" || seen[p.Namespace+"/"+dep.Name] {
			continue
		}
		seen[p.Namespace+"/"+dep.Name] = true
		d, err := r.client.AppsV1().Deployments(p.Namespace).Get(ctx, dep.Name, metav1.GetOptions{})
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// updateDeployments applies mutate to each Deployment behind pods on the node.
func updateDeployments(ctx context.Context, r *Remediator, node string, mutate func(*corev1.Container) bool) ([]string, error) {
	deps, err := nodeDeployments(ctx, r, node)
	if err != nil {
		return nil, fmt.Errorf("API error: %w", err)
	}
	updated := []string{}
	for _, d := range deps {
		changed := false
		for i := range d.Spec.Template.Spec.Containers {
			if mutate(&d.Spec.Template.Spec.Containers[i]) {
				changed = true
			}
		}
		if !changed {
			continue
		}
		if _, err := r.client.AppsV1().Deployments(d.Namespace).Update(ctx, d, metav1.UpdateOptions{}); err != nil {
			return updated, fmt.Errorf("API error: %w", err)
		}
		updated = append(updated, d.Namespace+"/"+d.Name)
	}
	return updated, nil
}

func memoryTrend(ctx context.Context, r *Remediator, issue model.Issue) (string, map[string]any, error) {
	updated, err := updateDeployments(ctx, r, issue.Component, func(c *corev1.Container) bool {
		lim, ok := c.Resources.Limits[corev1.ResourceMemory]
		if !ok {
			return false
		}
		c.Resources.Limits[corev1.ResourceMemory] = *resource.NewQuantity(int64(math.Round(float64(lim.Value())*memoryRaise)), resource.BinarySI)
		return true
	})
	return ActionRaiseMemoryLimits, map[string]any{"node": issue.Component, "deployments": updated}, err
}

var (
	correlationLimits = corev1.ResourceList{
		corev1.ResourceCPU:    resource.MustParse("1"),
		corev1.ResourceMemory: resource.MustParse("1Gi"),
	}
	correlationRequests = corev1.ResourceList{
		corev1.ResourceCPU:    resource.MustParse("500m"),
		corev1.ResourceMemory: resource.MustParse("512Mi"),
	}
)

func resourceCorrelation(ctx context.Context, r *Remediator, issue model.Issue) (string, map[string]any, error) {
	updated, err := updateDeployments(ctx, r, issue.Component, func(c *corev1.Container) bool {
		c.Resources.Limits = correlationLimits.DeepCopy()
		c.Resources.Requests = correlationRequests.DeepCopy()
		return true
	})
	return ActionSetResourceLimits, map[string]any{"node": issue.Component, "deployments": updated}, err
}
