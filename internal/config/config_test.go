package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, 80.0, cfg.Predictor.Thresholds.CPUWarning)
	assert.Equal(t, 1800*time.Second, cfg.Predictor.Thresholds.TrendWindow)
	assert.Equal(t, 60*time.Second, cfg.Predictor.MetricsInterval)
	assert.Equal(t, 10, cfg.Backup.MaxBackups)
	assert.Equal(t, "aws", cfg.Cost.Provider)
	assert.Equal(t, []string{"kube-system", "kube-public", "kube-node-lease"}, cfg.Security.ExcludeNamespaces)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kagent.yaml")
	body := `
cost:
  provider: gcp
predictor:
  thresholds:
    cpu_warning: 70
    cpu_critical: 85
  prediction_interval: 2m
backup:
  max_backups: 3
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	t.Setenv("KAGENT_REMEDIATION_AUTO_REMEDIATE", "true")
	t.Setenv("KAGENT_DATA_DIR", dir)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gcp", cfg.Cost.Provider)
	assert.Equal(t, 70.0, cfg.Predictor.Thresholds.CPUWarning)
	assert.Equal(t, 85.0, cfg.Predictor.Thresholds.CPUCritical)
	assert.Equal(t, 2*time.Minute, cfg.Predictor.PredictionInterval)
	assert.Equal(t, 3, cfg.Backup.MaxBackups)
	assert.True(t, cfg.Remediation.AutoRemediate)
	assert.Equal(t, filepath.Join(dir, "backups"), cfg.Backup.Dir)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"warning above critical", func(c *Config) { c.Predictor.Thresholds.CPUWarning = 95 }},
		{"critical above 100", func(c *Config) { c.Predictor.Thresholds.MemoryCritical = 101 }},
		{"zero contamination", func(c *Config) { c.Predictor.Thresholds.Contamination = 0 }},
		{"contamination too high", func(c *Config) { c.Predictor.Thresholds.Contamination = 0.6 }},
		{"no backups kept", func(c *Config) { c.Backup.MaxBackups = 0 }},
		{"unknown provider", func(c *Config) { c.Cost.Provider = "oracle" }},
		{"zero interval", func(c *Config) { c.Security.ScanInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestObjectStorageConfigured(t *testing.T) {
	assert.False(t, ObjectStorage{}.Configured())
	assert.True(t, ObjectStorage{Endpoint: "minio:9000", Bucket: "kagent"}.Configured())
}

func TestSetDataDirMovesDerivedBackupDir(t *testing.T) {
	cfg := Default()
	cfg.SetDataDir("/var/lib/kagent")
	assert.Equal(t, "/var/lib/kagent", cfg.DataDir)
	assert.Equal(t, filepath.Join("/var/lib/kagent", "backups"), cfg.Backup.Dir)

	cfg.Backup.Dir = "/mnt/backups"
	cfg.SetDataDir("/tmp/kagent")
	assert.Equal(t, "/mnt/backups", cfg.Backup.Dir)
}
