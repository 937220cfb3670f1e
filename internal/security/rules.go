package security

import (
	"fmt"
	"strings"

	"kagent/internal/collect"
	"kagent/internal/model"
)

// Score penalties per finding severity.
const (
	penCritical = 10
	penHigh     = 5
	penMedium   = 2
	penLow      = 1
)

// Issue types.
const (
	TypeImageLatest         = "image_tag_latest"
	TypePrivileged          = "privileged_container"
	TypeMissingLimits       = "missing_resource_limits"
	TypeRunAsRoot           = "run_as_root"
	TypeHostNetwork         = "host_network"
	TypeHostPID             = "host_pid"
	TypeNoNetworkPolicy     = "no_network_policy"
	TypePlaintextSecrets    = "plaintext_secrets"
	TypeClusterAdminBinding = "cluster_admin_binding"
)

// systemSecretTypes are managed by Kubernetes and not reported.
var systemSecretTypes = map[string]bool{
	"kubernetes.io/service-account-token": true,
	"kubernetes.io/dockerconfigjson":      true,
}

type findings struct {
	vulns, misconfigs, compliance []model.SecurityIssue
}

// Evaluate runs every rule over inv, skipping the excluded namespaces.
func Evaluate(inv *model.Inventory, exclude []string) *model.ScanResult {
	skip := map[string]bool{}
	for _, ns := range exclude {
		skip[ns] = true
	}

	var f findings
	for _, pod := range inv.Pods {
		if skip[pod.Namespace] {
			continue
		}
		f.checkPod(pod)
	}
	f.checkNamespaces(inv, skip)
	f.checkSecrets(inv, skip)
	f.checkBindings(inv)

	res := &model.ScanResult{
		Vulnerabilities:  nonNil(f.vulns),
		Misconfigs:       nonNil(f.misconfigs),
		ComplianceIssues: nonNil(f.compliance),
	}
	res.TotalIssues = len(res.Vulnerabilities) + len(res.Misconfigs) + len(res.ComplianceIssues)

	score := 100
	for _, is := range res.All() {
		switch is.Severity {
		case model.SeverityCritical:
			res.Details.Critical++
			score -= penCritical
		case model.SeverityHigh:
			res.Details.High++
			score -= penHigh
		case model.SeverityMedium:
			res.Details.Medium++
			score -= penMedium
		case model.SeverityLow:
			res.Details.Low++
			score -= penLow
		}
	}
	res.Score = max(score, 0)
	return res
}

func (f *findings) checkPod(pod model.Pod) {
	resource := "Pod/" + pod.Name
	for _, c := range pod.Containers {
		if collect.ParseImage(c.Image).UsesLatest() {
			f.vulns = append(f.vulns, model.SecurityIssue{
				Type:           TypeImageLatest,
				Severity:       model.SeverityMedium,
				Namespace:      pod.Namespace,
				Resource:       resource,
				Container:      c.Name,
				Description:    fmt.Sprintf("Image %s floats on the latest tag, which makes tracking and rollbacks difficult", c.Image),
				Recommendation: "Use specific version tags for container images",
			})
		}
		if c.Privileged {
			f.vulns = append(f.vulns, model.SecurityIssue{
				Type:           TypePrivileged,
				Severity:       model.SeverityHigh,
				Namespace:      pod.Namespace,
				Resource:       resource,
				Container:      c.Name,
				Description:    "Container is running in privileged mode, which gives it full access to the host",
				Recommendation: "Avoid privileged containers; grant only the capabilities the workload needs",
			})
		}
		if !c.HasLimits {
			f.misconfigs = append(f.misconfigs, model.SecurityIssue{
				Type:           TypeMissingLimits,
				Severity:       model.SeverityMedium,
				Namespace:      pod.Namespace,
				Resource:       resource,
				Container:      c.Name,
				Description:    "Container is missing resource limits, which could lead to resource exhaustion",
				Recommendation: "Set appropriate CPU and memory limits",
			})
		}
		if runsAsRoot(c) {
			f.misconfigs = append(f.misconfigs, model.SecurityIssue{
				Type:           TypeRunAsRoot,
				Severity:       model.SeverityMedium,
				Namespace:      pod.Namespace,
				Resource:       resource,
				Container:      c.Name,
				Description:    "Container may run as root",
				Recommendation: "Set runAsNonRoot: true and specify a non-zero user ID",
			})
		}
	}
	if pod.HostNetwork {
		f.misconfigs = append(f.misconfigs, model.SecurityIssue{
			Type:           TypeHostNetwork,
			Severity:       model.SeverityHigh,
			Namespace:      pod.Namespace,
			Resource:       resource,
			Description:    "Pod shares the host network namespace",
			Recommendation: "Remove hostNetwork unless the workload is a node agent",
		})
	}
	if pod.HostPID {
		f.misconfigs = append(f.misconfigs, model.SecurityIssue{
			Type:           TypeHostPID,
			Severity:       model.SeverityHigh,
			Namespace:      pod.Namespace,
			Resource:       resource,
			Description:    "Pod shares the host PID namespace and can see every host process",
			Recommendation: "Remove hostPID",
		})
	}
}

// runsAsRoot: the effective runAsNonRoot is unset or false, or the UID is 0.
func runsAsRoot(c model.Container) bool {
	if c.RunAsUser != nil && *c.RunAsUser == 0 {
		return true
	}
	return c.RunAsNonRoot == nil || !*c.RunAsNonRoot
}

func (f *findings) checkNamespaces(inv *model.Inventory, skip map[string]bool) {
	covered := map[string]bool{}
	for _, np := range inv.NetworkPolicies {
		covered[np.Namespace] = true
	}
	for _, ns := range inv.Namespaces {
		if skip[ns.Name] || covered[ns.Name] {
			continue
		}
		f.compliance = append(f.compliance, model.SecurityIssue{
			Type:           TypeNoNetworkPolicy,
			Severity:       model.SeverityMedium,
			Namespace:      ns.Name,
			Resource:       "Namespace/" + ns.Name,
			Description:    "Namespace has no NetworkPolicy, so pod-to-pod traffic is unrestricted",
			Recommendation: "Apply a default-deny NetworkPolicy and allow required traffic explicitly",
		})
	}
}

func (f *findings) checkSecrets(inv *model.Inventory, skip map[string]bool) {
	for _, s := range inv.Secrets {
		if skip[s.Namespace] || systemSecretTypes[s.Type] {
			continue
		}
		f.compliance = append(f.compliance, model.SecurityIssue{
			Type:           TypePlaintextSecrets,
			Severity:       model.SeverityHigh,
			Namespace:      s.Namespace,
			Resource:       "Secret/" + s.Name,
			Description:    "Secret data is stored base64-encoded in the cluster",
			Recommendation: "Use a dedicated secret manager such as Vault or a cloud secrets service",
		})
	}
}

func (f *findings) checkBindings(inv *model.Inventory) {
	for _, crb := range inv.ClusterRoleBindings {
		if crb.RoleName != "cluster-admin" {
			continue
		}
		for _, subj := range crb.Subjects {
			name := subj
			if _, after, ok := strings.Cut(subj, ":"); ok {
				name = after
			}
			if strings.HasPrefix(name, "system:") {
				continue
			}
			f.compliance = append(f.compliance, model.SecurityIssue{
				Type:           TypeClusterAdminBinding,
				Severity:       model.SeverityHigh,
				Resource:       "ClusterRoleBinding/" + crb.Name,
				Description:    fmt.Sprintf("%s is bound to cluster-admin", subj),
				Recommendation: "Bind a narrower role scoped to the namespaces the subject manages",
			})
		}
	}
}

func nonNil(in []model.SecurityIssue) []model.SecurityIssue {
	if in == nil {
		return []model.SecurityIssue{}
	}
	return in
}

// FilterBySeverity keeps issues with the given severity. An empty severity keeps all.
func FilterBySeverity(issues []model.SecurityIssue, severity string) []model.SecurityIssue {
	if severity == "" {
		return issues
	}
	out := []model.SecurityIssue{}
	for _, is := range issues {
		if strings.EqualFold(string(is.Severity), severity) {
			out = append(out, is)
		}
	}
	return out
}
