package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Suggestion resource types.
const (
	ResourceDeployment    = "Deployment"
	ResourceStatefulSet   = "StatefulSet"
	ResourceReplicaSet    = "ReplicaSet"
	ResourceDaemonSet     = "DaemonSet"
	ResourceNodeGroup     = "NodeGroup"
	ResourceResourceQuota = "ResourceQuota"
)

type EstimatedSavings struct {
	CPUMonthly     float64 `json:"cpu_monthly,omitempty"`
	MemoryMonthly  float64 `json:"memory_monthly,omitempty"`
	TotalMonthly   float64 `json:"total_monthly"`
	NodesReduced   int     `json:"nodes_reduced,omitempty"`
	RiskMitigation string  `json:"risk_mitigation,omitempty"`
}

// CostSuggestion is one optimization opportunity.
type CostSuggestion struct {
	ID                  string           `json:"id"`
	ResourceType        string           `json:"resource_type"`
	Namespace           string           `json:"namespace"`
	Name                string           `json:"name"`
	CurrentAllocation   map[string]any   `json:"current_allocation"`
	SuggestedAllocation map[string]any   `json:"suggested_allocation"`
	EstimatedSavings    EstimatedSavings `json:"estimated_savings"`
	Confidence          float64          `json:"confidence"`
	Priority            Priority         `json:"priority"`
	Timestamp           time.Time        `json:"timestamp"`
}

// SuggestionID is stable for the same target so a suggestion can be applied
// after the list has been refreshed.
func SuggestionID(resourceType, namespace, name string) string {
	sum := sha256.Sum256([]byte(resourceType + "|" + namespace + "|" + name))
	return hex.EncodeToString(sum[:])[:12]
}

type TotalSavings struct {
	Monthly float64 `json:"monthly"`
	Annual  float64 `json:"annual"`
}

// CostRun is one stored optimizer pass.
type CostRun struct {
	Timestamp       time.Time        `json:"timestamp"`
	Suggestions     []CostSuggestion `json:"suggestions"`
	TotalSavings    TotalSavings     `json:"total_savings"`
	SuggestionCount int              `json:"suggestion_count"`
	// SavingsChange is relative to the previous run; nil on the first.
	SavingsChange *Change `json:"savings_change,omitempty"`
}

type CostBreakdown struct {
	Compute float64 `json:"compute"`
	Storage float64 `json:"storage"`
	Network float64 `json:"network"`
}

// CostAnalysis keeps the camelCase keys the dashboard cost page binds to.
type CostAnalysis struct {
	MonthlyCost       float64       `json:"monthlyCost"`
	PotentialSavings  float64       `json:"potentialSavings"`
	SavingsPercentage float64       `json:"savingsPercentage"`
	Efficiency        float64       `json:"efficiency"`
	Breakdown         CostBreakdown `json:"breakdown"`
	Provider          string        `json:"provider"`
	Timestamp         time.Time     `json:"timestamp"`
}

type ResourceUsage struct {
	CPURequested    float64 `json:"cpu_requested"`
	CPUUsed         float64 `json:"cpu_used"`
	MemoryRequested float64 `json:"memory_requested"`
	MemoryUsed      float64 `json:"memory_used"`
	CPUUtilization  float64 `json:"cpu_utilization"`
	MemoryUtil      float64 `json:"memory_utilization"`
}

type Utilization struct {
	Nodes      map[string]ResourceUsage `json:"nodes"`
	Namespaces map[string]ResourceUsage `json:"namespaces"`
	Timestamp  time.Time                `json:"timestamp"`
}

type InstanceType struct {
	CPU         float64 `json:"cpu"`
	Memory      float64 `json:"memory"` // GB
	CostPerHour float64 `json:"cost_per_hour"`
}

type PricingRates struct {
	CPUCoreHour    float64 `json:"cpu_per_core_hour"`
	MemoryGBHour   float64 `json:"memory_per_gb_hour"`
	StorageGBMonth float64 `json:"storage_per_gb_month"`
}

type CloudDetails struct {
	Provider      string                  `json:"provider"`
	Pricing       PricingRates            `json:"pricing"`
	InstanceTypes map[string]InstanceType `json:"instance_types"`
	NodesByType   map[string]int          `json:"nodes_by_type"`
}

type ApplyResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
