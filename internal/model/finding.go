package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityWarning  Severity = "warning"
)

// Issue types emitted by the predictor.
const (
	IssueHighCPU             = "high_cpu_usage"
	IssueHighMemory          = "high_memory_usage"
	IssueFrequentRestarts    = "frequent_restarts"
	IssueDiskPressure        = "disk_pressure"
	IssueMemoryPressure      = "memory_pressure"
	IssuePIDPressure         = "pid_pressure"
	IssueCPUTrend            = "cpu_usage_trend"
	IssueMemoryTrend         = "memory_usage_trend"
	IssueResourceCorrelation = "resource_correlation"
	IssueMLAnomaly           = "ml_anomaly"
)

// Issue is a single problem detected on a node or pod.
type Issue struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Component   string         `json:"component"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// IssueID is a stable identifier derived from the issue type and component,
// so the same problem keeps its id across predictions.
func IssueID(issueType, component string) string {
	sum := sha256.Sum256([]byte(issueType + "|" + component))
	return hex.EncodeToString(sum[:])[:12]
}
