package model

import "time"

// ClusterNode is the synthetic node entry that carries cluster-wide averages.
const ClusterNode = "cluster"

type NetworkIO struct {
	In  float64 `json:"in"`
	Out float64 `json:"out"`
}

// NodeMetrics values are percentages of node capacity.
type NodeMetrics struct {
	CPUUsage       float64   `json:"cpu_usage"`
	MemoryUsage    float64   `json:"memory_usage"`
	Status         string    `json:"status"`
	DiskPressure   bool      `json:"disk_pressure"`
	MemoryPressure bool      `json:"memory_pressure"`
	PIDPressure    bool      `json:"pid_pressure"`
	NetworkIO      NetworkIO `json:"network_io"`
	InstanceType   string    `json:"instance_type,omitempty"`
}

// PodMetrics values are percentages of the pod's summed limits, 0 when no limits exist.
type PodMetrics struct {
	Namespace   string  `json:"namespace,omitempty"`
	Node        string  `json:"node,omitempty"`
	Status      string  `json:"status"`
	Restarts    int     `json:"restarts"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
}

type ClusterMetrics struct {
	Nodes     map[string]NodeMetrics `json:"nodes"`
	Pods      map[string]PodMetrics  `json:"pods"`
	Timestamp time.Time              `json:"timestamp"`
}

func NewClusterMetrics(ts time.Time) *ClusterMetrics {
	return &ClusterMetrics{
		Nodes:     map[string]NodeMetrics{},
		Pods:      map[string]PodMetrics{},
		Timestamp: ts,
	}
}

type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type MetricsHistory struct {
	CPUUsage    []SeriesPoint `json:"cpu_usage"`
	MemoryUsage []SeriesPoint `json:"memory_usage"`
}
