package cost

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	apperrors "kagent/internal/errors"
	"kagent/internal/model"
)

// Apply statuses.
const (
	StatusApplied   = "applied"
	StatusSimulated = "simulated"
	StatusManual    = "manual"
)

// Apply carries out one suggestion from the latest run.
func (o *Optimizer) Apply(ctx context.Context, id string) (model.ApplyResult, error) {
	s, ok := o.find(id)
	if !ok {
		return model.ApplyResult{}, apperrors.NotFoundError("cost suggestion not found").WithContext("id", id)
	}
	res := model.ApplyResult{ID: id}

	if o.client == nil {
		res.Status = StatusSimulated
		res.Message = fmt.Sprintf("Simulated %s change for %s", s.ResourceType, target(s))
		return res, nil
	}

	var err error
	switch s.ResourceType {
	case model.ResourceResourceQuota:
		err = o.createQuota(ctx, s)
	case model.ResourceDeployment:
		err = o.scaleDeployment(ctx, s)
	case model.ResourceStatefulSet:
		err = o.scaleStatefulSet(ctx, s)
	default:
		res.Status = StatusManual
		res.Message = fmt.Sprintf("manual action required for %s %s", s.ResourceType, target(s))
		return res, nil
	}
	if err != nil {
		return res, apperrors.ExternalError("apply cost suggestion", err).WithContext("id", id)
	}

	o.logger.Info("cost suggestion applied",
		zap.String("id", id),
		zap.String("resource_type", s.ResourceType),
		zap.String("target", target(s)),
	)
	res.Status = StatusApplied
	res.Message = fmt.Sprintf("Applied %s change for %s", s.ResourceType, target(s))
	return res, nil
}

func target(s model.CostSuggestion) string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "/" + s.Name
}

func (o *Optimizer) createQuota(ctx context.Context, s model.CostSuggestion) error {
	hard := corev1.ResourceList{}
	for k, v := range s.SuggestedAllocation {
		str, ok := v.(string)
		if !ok {
			continue
		}
		q, err := resource.ParseQuantity(str)
		if err != nil {
			return fmt.Errorf("parse %s: %w", k, err)
		}
		hard[corev1.ResourceName(k)] = q
	}
	quota := &corev1.ResourceQuota{
		ObjectMeta: metav1.ObjectMeta{
			Name:      s.Name,
			Namespace: s.Namespace,
			Labels:    map[string]string{"app.kubernetes.io/managed-by": "kagent"},
		},
		Spec: corev1.ResourceQuotaSpec{Hard: hard},
	}
	_, err := o.client.CoreV1().ResourceQuotas(s.Namespace).Create(ctx, quota, metav1.CreateOptions{})
	return err
}

// requests converts the suggested allocation into container requests.
func requests(s model.CostSuggestion) corev1.ResourceList {
	out := corev1.ResourceList{}
	if cpu, ok := s.SuggestedAllocation["cpu_request"].(float64); ok && cpu > 0 {
		out[corev1.ResourceCPU] = *resource.NewMilliQuantity(int64(cpu*1000), resource.DecimalSI)
	}
	if mem, ok := s.SuggestedAllocation["memory_request"].(float64); ok && mem > 0 {
		out[corev1.ResourceMemory] = *resource.NewQuantity(int64(mem), resource.BinarySI)
	}
	return out
}

func setRequests(spec *corev1.PodSpec, req corev1.ResourceList) {
	for i := range spec.Containers {
		c := &spec.Containers[i]
		if c.Resources.Requests == nil {
			c.Resources.Requests = corev1.ResourceList{}
		}
		for name, q := range req {
			c.Resources.Requests[name] = q
		}
	}
}

func (o *Optimizer) scaleDeployment(ctx context.Context, s model.CostSuggestion) error {
	deps := o.client.AppsV1().Deployments(s.Namespace)
	d, err := deps.Get(ctx, s.Name, metav1.GetOptions{})
	if err != nil {
		return err
	}
	setRequests(&d.Spec.Template.Spec, requests(s))
	_, err = deps.Update(ctx, d, metav1.UpdateOptions{})
	return err
}

func (o *Optimizer) scaleStatefulSet(ctx context.Context, s model.CostSuggestion) error {
	sets := o.client.AppsV1().StatefulSets(s.Namespace)
	st, err := sets.Get(ctx, s.Name, metav1.GetOptions{})
	if err != nil {
		return err
	}
	setRequests(&st.Spec.Template.Spec, requests(s))
	_, err = sets.Update(ctx, st, metav1.UpdateOptions{})
	return err
}
