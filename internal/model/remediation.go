package model

import "time"

// RemediationResult records the outcome of one remediation attempt.
type RemediationResult struct {
	ActionID     string         `json:"action_id"`
	IssueID      string         `json:"issue_id"`
	IssueType    string         `json:"issue_type"`
	Component    string         `json:"component"`
	Action       string         `json:"action,omitempty"`
	Success      bool           `json:"success"`
	Timestamp    time.Time      `json:"timestamp"`
	Details      map[string]any `json:"details"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// ManualAction is a step an operator can take by hand.
type ManualAction struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	Command     string `json:"command,omitempty"`
}

type AutoSetting struct {
	AutoRemediate bool `json:"auto_remediate"`
}
