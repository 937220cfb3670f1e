package model

// Node represents a Kubernetes node with the detail needed for health and cost analysis.
type Node struct {
	Name         string            `json:"name"`
	Roles        []string          `json:"roles,omitempty"`
	Ready        bool              `json:"ready"`
	Status       string            `json:"status"` // type of the last reported condition
	InstanceType string            `json:"instanceType"`
	Labels       map[string]string `json:"labels,omitempty"`

	DiskPressure   bool `json:"diskPressure"`
	MemoryPressure bool `json:"memoryPressure"`
	PIDPressure    bool `json:"pidPressure"`

	// Capacity is taken from status.capacity.
	CPUCapacity    float64 `json:"cpuCapacity"`    // cores
	MemoryCapacity float64 `json:"memoryCapacity"` // bytes
}

// UnknownInstanceType is used when no instance-type label is present.
const UnknownInstanceType = "unknown"
