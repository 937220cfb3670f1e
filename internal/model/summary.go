package model

import "time"

// SecurityIssue is one finding produced by the security scanner.
type SecurityIssue struct {
	Type           string   `json:"type"`
	Severity       Severity `json:"severity"`
	Namespace      string   `json:"namespace,omitempty"`
	Resource       string   `json:"resource"`
	Container      string   `json:"container,omitempty"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

type SeverityBreakdown struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

type ScanResult struct {
	ID               string            `json:"id"`
	Timestamp        time.Time         `json:"timestamp"`
	Vulnerabilities  []SecurityIssue   `json:"vulnerabilities"`
	Misconfigs       []SecurityIssue   `json:"misconfigurations"`
	ComplianceIssues []SecurityIssue   `json:"compliance_issues"`
	TotalIssues      int               `json:"total_issues"`
	Details          SeverityBreakdown `json:"details"`
	Score            int               `json:"score"`
	Posture          string            `json:"posture"`
	Trend            string            `json:"trend"`
}

// ScanSummary is the row served by the scan history endpoint.
type ScanSummary struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	TotalIssues int               `json:"total_issues"`
	Details     SeverityBreakdown `json:"details"`
	Score       int               `json:"score"`
	Posture     string            `json:"posture"`
	Trend       string            `json:"trend"`
}

func (r *ScanResult) Summary() ScanSummary {
	return ScanSummary{
		ID:          r.ID,
		Timestamp:   r.Timestamp,
		TotalIssues: r.TotalIssues,
		Details:     r.Details,
		Score:       r.Score,
		Posture:     r.Posture,
		Trend:       r.Trend,
	}
}

// All returns every issue in the scan regardless of category.
func (r *ScanResult) All() []SecurityIssue {
	out := make([]SecurityIssue, 0, r.TotalIssues)
	out = append(out, r.Vulnerabilities...)
	out = append(out, r.Misconfigs...)
	out = append(out, r.ComplianceIssues...)
	return out
}
