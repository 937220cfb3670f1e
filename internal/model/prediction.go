package model

import "time"

// Suggestion is a remediation hint attached to a prediction.
type Suggestion struct {
	IssueType   string         `json:"issue_type"`
	Component   string         `json:"component"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`
}

type TrendPoint struct {
	Slope   float64 `json:"slope"`
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	Change  Change  `json:"change"`
}

// Change compares two readings of the same series.
type Change struct {
	From         float64 `json:"from"`
	To           float64 `json:"to"`
	Delta        float64 `json:"delta"`
	DeltaPercent float64 `json:"delta_percent"`
	Direction    string  `json:"direction"`
}

type TrendSummary struct {
	CPUTrends     map[string]TrendPoint `json:"cpu_trends"`
	MemoryTrends  map[string]TrendPoint `json:"memory_trends"`
	RestartTrends map[string]TrendPoint `json:"restart_trends"`
}

type CorrelationSummary struct {
	CPUMemory map[string]float64            `json:"cpu_memory_correlations"`
	Pressure  map[string]map[string]float64 `json:"pressure_correlations"`
}

type Prediction struct {
	Timestamp    time.Time          `json:"timestamp"`
	Issues       []Issue            `json:"issues"`
	Confidence   float64            `json:"confidence"`
	Suggestions  []Suggestion       `json:"remediation_suggestions"`
	Trends       TrendSummary       `json:"trends"`
	Correlations CorrelationSummary `json:"correlations"`
	MLModelUsed  bool               `json:"ml_model_used"`
}

// ModelInfo describes the trained anomaly model served to the dashboard.
type ModelInfo struct {
	ModelType     string    `json:"model_type"`
	Trained       bool      `json:"trained"`
	TrainedAt     time.Time `json:"trained_at,omitempty"`
	Samples       int       `json:"samples"`
	Features      []string  `json:"features"`
	Contamination float64   `json:"contamination"`
	Trees         int       `json:"trees"`
	Accuracy      float64   `json:"accuracy"`
}

type TrainParams struct {
	Contamination float64 `json:"contamination,omitempty"`
	Samples       int     `json:"samples,omitempty"`
}

type TrainResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

// PredictionRecord is the persisted form of a prediction run.
type PredictionRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	IssueTypes []string  `json:"issue_types"`
	Confidence float64   `json:"confidence"`
}

type Trends struct {
	Hours             int            `json:"hours"`
	IssueTrends       map[string]int `json:"issue_trends"`
	RemediationTrends map[string]int `json:"remediation_trends"`
	TotalPredictions  int            `json:"total_predictions"`
}

type AgentStatus struct {
	Running         bool       `json:"running"`
	UseMock         bool       `json:"use_mock"`
	AutoRemediate   bool       `json:"auto_remediate"`
	LastPrediction  *time.Time `json:"last_prediction,omitempty"`
	LastRemediation *time.Time `json:"last_remediation,omitempty"`
	LastCollection  *time.Time `json:"last_collection,omitempty"`
}
