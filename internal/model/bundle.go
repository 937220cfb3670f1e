package model

import "time"

// Inventory is a point-in-time view of the cluster objects the scanners and
// the cost optimizer reason about. Collectors fill it, analyzers only read it.
type Inventory struct {
	CollectedAt time.Time `json:"collectedAt"`

	Namespaces          []Namespace             `json:"namespaces"`
	Nodes               []Node                  `json:"nodes"`
	Pods                []Pod                   `json:"pods"`
	Deployments         []Deployment            `json:"deployments,omitempty"`
	NetworkPolicies     []NetworkPolicy         `json:"networkPolicies,omitempty"`
	Secrets             []Secret                `json:"secrets,omitempty"`
	ResourceQuotas      []ResourceQuota         `json:"resourceQuotas,omitempty"`
	HPAs                []HPA                   `json:"hpas,omitempty"`
	ClusterRoleBindings []ClusterRoleBinding    `json:"clusterRoleBindings,omitempty"`
	PVCs                []PersistentVolumeClaim `json:"pvcs,omitempty"`

	// ScanNamespaces restricts collection to specific namespaces. Empty = all namespaces.
	ScanNamespaces []string `json:"scanNamespaces,omitempty"`
	// CollectorSkips records collectors that were skipped due to RBAC or missing APIs.
	CollectorSkips []CollectorSkip `json:"collectorSkips,omitempty"`
}

// CollectorSkip records a collector that was skipped during collection.
type CollectorSkip struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	RBAC   bool   `json:"rbac"` // true when error appears to be a permissions/forbidden error
}

type Namespace struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
}

type Deployment struct {
	Namespace string   `json:"namespace"`
	Name      string   `json:"name"`
	Replicas  int32    `json:"replicas"`
	Ready     int32    `json:"ready"`
	Images    []string `json:"images,omitempty"`
}

type NetworkPolicy struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

type Secret struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	KeyCount  int    `json:"keyCount"`
}

type ResourceQuota struct {
	Namespace string            `json:"namespace"`
	Name      string            `json:"name"`
	Hard      map[string]string `json:"hard,omitempty"`
}

type HPA struct {
	Namespace   string `json:"namespace"`
	Name        string `json:"name"`
	Target      string `json:"target"`
	MinReplicas int32  `json:"minReplicas"`
	MaxReplicas int32  `json:"maxReplicas"`
}

type ClusterRoleBinding struct {
	Name     string   `json:"name"`
	RoleName string   `json:"roleName"`
	Subjects []string `json:"subjects,omitempty"`
}

func NewInventory(namespaces []string) *Inventory {
	return &Inventory{
		CollectedAt:    time.Now().UTC(),
		Namespaces:     []Namespace{},
		Nodes:          []Node{},
		Pods:           []Pod{},
		ScanNamespaces: namespaces,
	}
}
