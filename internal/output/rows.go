package output

import (
	"fmt"
	"sort"
	"strconv"

	"kagent/internal/model"
)

var SecurityHeaders = []string{"SEVERITY", "CATEGORY", "TYPE", "NAMESPACE", "RESOURCE", "DESCRIPTION"}

// SecurityRows flattens a scan into rows, most severe first.
func SecurityRows(r *model.ScanResult) [][]string {
	if r == nil {
		return nil
	}
	type tagged struct {
		cat string
		is  model.SecurityIssue
	}
	var all []tagged
	for _, is := range r.Vulnerabilities {
		all = append(all, tagged{"vulnerability", is})
	}
	for _, is := range r.Misconfigs {
		all = append(all, tagged{"misconfiguration", is})
	}
	for _, is := range r.ComplianceIssues {
		all = append(all, tagged{"compliance", is})
	}
	sort.SliceStable(all, func(i, j int) bool {
		return severityRank(all[i].is.Severity) > severityRank(all[j].is.Severity)
	})

	rows := make([][]string, 0, len(all))
	for _, t := range all {
		res := t.is.Resource
		if t.is.Container != "" {
			res += "/" + t.is.Container
		}
		rows = append(rows, []string{string(t.is.Severity), t.cat, t.is.Type, t.is.Namespace, res, t.is.Description})
	}
	return rows
}

var CostHeaders = []string{"PRIORITY", "TYPE", "RESOURCE", "NAMESPACE", "SAVINGS/MO", "ID"}

func CostRows(s []model.CostSuggestion) [][]string {
	rows := make([][]string, 0, len(s))
	for _, c := range s {
		rows = append(rows, []string{
			string(c.Priority),
			c.ResourceType,
			c.Name,
			c.Namespace,
			"$" + strconv.FormatFloat(c.EstimatedSavings.TotalMonthly, 'f', 2, 64),
			c.ID,
		})
	}
	return rows
}

var BackupHeaders = []string{"ID", "NAME", "STATUS", "CREATED", "SIZE", "LOCATION"}

func BackupRows(jobs []model.BackupJob) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			j.Name,
			string(j.Status),
			j.Timestamp.Format("2006-01-02 15:04:05"),
			humanSize(j.FileSize),
			j.BackupLocation,
		})
	}
	return rows
}

var IssueHeaders = []string{"SEVERITY", "TYPE", "COMPONENT", "DESCRIPTION"}

func IssueRows(issues []model.Issue) [][]string {
	rows := make([][]string, 0, len(issues))
	for _, is := range issues {
		rows = append(rows, []string{string(is.Severity), is.Type, is.Component, is.Description})
	}
	return rows
}

func severityRank(s model.Severity) int {
	switch s {
	case model.SeverityCritical:
		return 3
	case model.SeverityHigh:
		return 2
	case model.SeverityMedium, model.SeverityWarning:
		return 1
	default:
		return 0
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
