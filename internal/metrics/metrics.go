package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Predictor metrics
var (
	PredictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kagent_predictions_total",
			Help: "Total prediction runs",
		},
	)

	IssuesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kagent_issues_detected_total",
			Help: "Issues detected by the predictor by issue type",
		},
		[]string{"type"},
	)

	RemediationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kagent_remediations_total",
			Help: "Remediation attempts by action and outcome",
		},
		[]string{"action", "success"},
	)
)

// Security metrics
var (
	SecurityScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kagent_security_scans_total",
			Help: "Total security scans performed",
		},
	)

	// SecurityIssues holds the issue counts of the latest scan.
	SecurityIssues = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kagent_security_issues",
			Help: "Security issues in the latest scan by severity",
		},
		[]string{"severity"},
	)
)

// Backup metrics
var (
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kagent_backups_total",
			Help: "Backup jobs by final status",
		},
		[]string{"status"},
	)

	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kagent_restores_total",
			Help: "Restore jobs by final status",
		},
		[]string{"status"},
	)
)

var CostPotentialSavings = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "kagent_cost_potential_savings_monthly",
		Help: "Potential monthly savings from the latest cost analysis",
	},
)

// MetricsBreakerState tracks the metrics API breaker (0=closed, 1=half-open, 2=open).
var MetricsBreakerState = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "kagent_metrics_breaker_state",
		Help: "Current metrics.k8s.io circuit breaker state (0=closed, 1=half-open, 2=open)",
	},
)
