package model

import "time"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

const (
	LocationLocal = "local"
	LocationS3    = "s3"
)

// Restore strategies.
const (
	StrategyCreateOrReplace = "create_or_replace"
	StrategyCreateOnly      = "create_only"
	StrategyReplaceOnly     = "replace_only"
)

// All selects every namespace or every supported resource type.
const All = "all"

type BackupJob struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Namespaces        []string          `json:"namespaces"`
	ResourceTypes     []string          `json:"resource_types"`
	IncludeLabels     map[string]string `json:"include_labels"`
	ExcludeLabels     map[string]string `json:"exclude_labels"`
	BackupLocation    string            `json:"backup_location"`
	Timestamp         time.Time         `json:"timestamp"`
	Status            JobStatus         `json:"status"`
	ResourcesBackedUp map[string]int    `json:"resources_backed_up"`
	FileSize          int64             `json:"file_size"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	Archive           string            `json:"archive,omitempty"`
	RemoteKey         string            `json:"remote_key,omitempty"`
}

type RestoreJob struct {
	ID                string            `json:"id"`
	BackupID          string            `json:"backup_id"`
	Name              string            `json:"name"`
	Namespaces        []string          `json:"namespaces"`
	ResourceTypes     []string          `json:"resource_types"`
	IncludeLabels     map[string]string `json:"include_labels"`
	ExcludeLabels     map[string]string `json:"exclude_labels"`
	RestoreStrategy   string            `json:"restore_strategy"`
	Timestamp         time.Time         `json:"timestamp"`
	Status            JobStatus         `json:"status"`
	ResourcesRestored map[string]int    `json:"resources_restored"`
	ErrorMessage      string            `json:"error_message,omitempty"`
}

type FileInfo struct {
	Filename string    `json:"filename"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
}

// BackupDetail is a job together with its archive file, when one exists.
type BackupDetail struct {
	BackupJob
	File *FileInfo `json:"file_info,omitempty"`
}

type Schedule struct {
	Cron     string     `json:"cron"`
	Enabled  bool       `json:"enabled"`
	Template BackupJob  `json:"template"`
	NextRun  *time.Time `json:"next_run,omitempty"`
}

// BackupMetadata is written as metadata.json inside every archive.
type BackupMetadata struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Timestamp     time.Time         `json:"timestamp"`
	Namespaces    []string          `json:"namespaces"`
	ResourceTypes []string          `json:"resource_types"`
	IncludeLabels map[string]string `json:"include_labels"`
	ExcludeLabels map[string]string `json:"exclude_labels"`
	Resources     map[string]int    `json:"resources"`
}
