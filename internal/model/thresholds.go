package model

import "time"

// Thresholds drive the predictor checks and the cluster status.
type Thresholds struct {
	CPUWarning           float64       `json:"cpu_warning" mapstructure:"cpu_warning"`
	CPUCritical          float64       `json:"cpu_critical" mapstructure:"cpu_critical"`
	MemoryWarning        float64       `json:"memory_warning" mapstructure:"memory_warning"`
	MemoryCritical       float64       `json:"memory_critical" mapstructure:"memory_critical"`
	Restarts             int           `json:"restart_threshold" mapstructure:"restart_threshold"`
	TrendWindow          time.Duration `json:"trend_window" mapstructure:"trend_window"`
	CorrelationThreshold float64       `json:"correlation_threshold" mapstructure:"correlation_threshold"`
	Contamination        float64       `json:"contamination" mapstructure:"contamination"`
	TrendSlope           float64       `json:"trend_slope" mapstructure:"trend_slope"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUWarning:           80,
		CPUCritical:          90,
		MemoryWarning:        80,
		MemoryCritical:       90,
		Restarts:             5,
		TrendWindow:          1800 * time.Second,
		CorrelationThreshold: 0.7,
		Contamination:        0.1,
		TrendSlope:           5,
	}
}
