package model

type Pod struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Node      string `json:"node,omitempty"`
	Phase     string `json:"phase"`

	// Owner is the first controller reference, e.g. "ReplicaSet/web-7d9f".
	OwnerKind string `json:"ownerKind,omitempty"`
	OwnerName string `json:"ownerName,omitempty"`

	Restarts int `json:"restarts"`

	HostNetwork bool `json:"hostNetwork,omitempty"` // pod uses host network namespace
	HostPID     bool `json:"hostPid,omitempty"`     // pod shares host PID namespace

	Containers []Container `json:"containers"`
}

// Container carries the per-container fields the scanners and the cost
// optimizer need. Quantities are normalised: CPU in cores, memory in bytes.
type Container struct {
	Name  string `json:"name"`
	Image string `json:"image"`

	Privileged   bool   `json:"privileged,omitempty"`
	RunAsNonRoot *bool  `json:"runAsNonRoot,omitempty"` // effective value, container overrides pod
	RunAsUser    *int64 `json:"runAsUser,omitempty"`

	HasLimits     bool    `json:"hasLimits"` // defines both CPU and memory limits
	CPURequest    float64 `json:"cpuRequest"`
	MemoryRequest float64 `json:"memoryRequest"`
	CPULimit      float64 `json:"cpuLimit"`
	MemoryLimit   float64 `json:"memoryLimit"`
}

// Requests sums CPU cores and memory bytes requested across containers.
func (p Pod) Requests() (cpu, mem float64) {
	for _, c := range p.Containers {
		cpu += c.CPURequest
		mem += c.MemoryRequest
	}
	return cpu, mem
}

// Limits sums CPU cores and memory bytes limits across containers.
func (p Pod) Limits() (cpu, mem float64) {
	for _, c := range p.Containers {
		cpu += c.CPULimit
		mem += c.MemoryLimit
	}
	return cpu, mem
}

// Key is the namespace/name identifier used by histories.
func (p Pod) Key() string {
	return p.Namespace + "/" + p.Name
}
