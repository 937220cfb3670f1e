package model

type PersistentVolumeClaim struct {
	Name          string   `json:"name"`
	Namespace     string   `json:"namespace"`
	StorageClass  string   `json:"storageClass,omitempty"`
	AccessModes   []string `json:"accessModes,omitempty"`
	RequestedSize string   `json:"requestedSize,omitempty"`
	// RequestedBytes is RequestedSize parsed, 0 when unset.
	RequestedBytes float64 `json:"requestedBytes"`
}
