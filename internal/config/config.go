package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"kagent/internal/model"
)

type Kube struct {
	Kubeconfig string `mapstructure:"kubeconfig"`
	Context    string `mapstructure:"context"`
}

type Server struct {
	Addr      string  `mapstructure:"addr"`
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second per client
	MaxConns  int     `mapstructure:"max_conns"`
}

type Predictor struct {
	Thresholds         model.Thresholds `mapstructure:"thresholds"`
	MetricsInterval    time.Duration    `mapstructure:"metrics_interval"`
	PredictionInterval time.Duration    `mapstructure:"prediction_interval"`
}

type Security struct {
	ScanInterval      time.Duration `mapstructure:"scan_interval"`
	ExcludeNamespaces []string      `mapstructure:"exclude_namespaces"`
}

type Cost struct {
	Provider         string        `mapstructure:"provider"`
	MetricsWindow    int           `mapstructure:"metrics_window"` // days
	AnalysisInterval time.Duration `mapstructure:"analysis_interval"`
}

type ObjectStorage struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Configured reports whether enough is set to reach the object store.
func (o ObjectStorage) Configured() bool {
	return o.Endpoint != "" && o.Bucket != ""
}

type Backup struct {
	Dir        string        `mapstructure:"dir"`
	MaxBackups int           `mapstructure:"max_backups"`
	S3         ObjectStorage `mapstructure:"s3"`
	Schedule   string        `mapstructure:"schedule"`
}

type Remediation struct {
	AutoRemediate bool `mapstructure:"auto_remediate"`
}

type Config struct {
	LogLevel    string      `mapstructure:"log_level"`
	DataDir     string      `mapstructure:"data_dir"`
	UseMock     bool        `mapstructure:"use_mock"`
	Kube        Kube        `mapstructure:"kube"`
	Server      Server      `mapstructure:"server"`
	Predictor   Predictor   `mapstructure:"predictor"`
	Security    Security    `mapstructure:"security"`
	Cost        Cost        `mapstructure:"cost"`
	Backup      Backup      `mapstructure:"backup"`
	Remediation Remediation `mapstructure:"remediation"`

	v  *viper.Viper
	mu sync.Mutex
}

var Providers = []string{"aws", "gcp", "azure"}

func setDefaults(v *viper.Viper, home string) {
	th := model.DefaultThresholds()

	v.SetDefault("log_level", "info")
	v.SetDefault("data_dir", filepath.Join(home, ".kagent"))
	v.SetDefault("use_mock", false)
	v.SetDefault("kube.kubeconfig", "")
	v.SetDefault("kube.context", "")

	v.SetDefault("server.addr", ":8081")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.max_conns", 256)

	v.SetDefault("predictor.thresholds.cpu_warning", th.CPUWarning)
	v.SetDefault("predictor.thresholds.cpu_critical", th.CPUCritical)
	v.SetDefault("predictor.thresholds.memory_warning", th.MemoryWarning)
	v.SetDefault("predictor.thresholds.memory_critical", th.MemoryCritical)
	v.SetDefault("predictor.thresholds.restart_threshold", th.Restarts)
	v.SetDefault("predictor.thresholds.trend_window", th.TrendWindow)
	v.SetDefault("predictor.thresholds.correlation_threshold", th.CorrelationThreshold)
	v.SetDefault("predictor.thresholds.contamination", th.Contamination)
	v.SetDefault("predictor.thresholds.trend_slope", th.TrendSlope)
	v.SetDefault("predictor.metrics_interval", 60*time.Second)
	v.SetDefault("predictor.prediction_interval", 300*time.Second)

	v.SetDefault("security.scan_interval", 3600*time.Second)
	v.SetDefault("security.exclude_namespaces", []string{"kube-system", "kube-public", "kube-node-lease"})

	v.SetDefault("cost.provider", "aws")
	v.SetDefault("cost.metrics_window", 7)
	v.SetDefault("cost.analysis_interval", 86400*time.Second)

	v.SetDefault("backup.dir", "")
	v.SetDefault("backup.max_backups", 10)
	v.SetDefault("backup.schedule", "")
	v.SetDefault("backup.s3.endpoint", "")
	v.SetDefault("backup.s3.access_key", "")
	v.SetDefault("backup.s3.secret_key", "")
	v.SetDefault("backup.s3.bucket", "")
	v.SetDefault("backup.s3.region", "us-east-1")
	v.SetDefault("backup.s3.use_ssl", true)

	v.SetDefault("remediation.auto_remediate", false)
}

// Load reads .env, then the config file (explicit path, or kagent.yaml in
// . or ~/.kagent), then KAGENT_* environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}

	v := viper.New()
	setDefaults(v, home)
	v.SetEnvPrefix("KAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("expand config path: %w", err)
		}
		v.SetConfigFile(expanded)
	} else {
		v.SetConfigName("kagent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".kagent"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = filepath.Join(cfg.DataDir, "backups")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDataDir moves the data directory. A backup dir derived from the old
// data dir moves with it.
func (c *Config) SetDataDir(dir string) {
	if c.Backup.Dir == "" || c.Backup.Dir == filepath.Join(c.DataDir, "backups") {
		c.Backup.Dir = filepath.Join(dir, "backups")
	}
	c.DataDir = dir
}

// Default returns the built-in configuration without reading any source.
func Default() *Config {
	v := viper.New()
	setDefaults(v, ".")
	cfg := &Config{v: v}
	_ = v.Unmarshal(cfg)
	cfg.Backup.Dir = filepath.Join(cfg.DataDir, "backups")
	return cfg
}

func (c *Config) Validate() error {
	var errs []error

	if c.Predictor.MetricsInterval <= 0 {
		errs = append(errs, errors.New("predictor.metrics_interval must be > 0"))
	}
	if c.Predictor.PredictionInterval <= 0 {
		errs = append(errs, errors.New("predictor.prediction_interval must be > 0"))
	}
	if c.Security.ScanInterval <= 0 {
		errs = append(errs, errors.New("security.scan_interval must be > 0"))
	}
	if c.Cost.AnalysisInterval <= 0 {
		errs = append(errs, errors.New("cost.analysis_interval must be > 0"))
	}
	if c.Cost.MetricsWindow <= 0 {
		errs = append(errs, errors.New("cost.metrics_window must be > 0"))
	}

	th := c.Predictor.Thresholds
	if err := checkPair("cpu", th.CPUWarning, th.CPUCritical); err != nil {
		errs = append(errs, err)
	}
	if err := checkPair("memory", th.MemoryWarning, th.MemoryCritical); err != nil {
		errs = append(errs, err)
	}
	if th.Contamination <= 0 || th.Contamination > 0.5 {
		errs = append(errs, fmt.Errorf("predictor.thresholds.contamination must be in (0, 0.5], got %v", th.Contamination))
	}
	if th.TrendWindow <= 0 {
		errs = append(errs, errors.New("predictor.thresholds.trend_window must be > 0"))
	}

	if c.Backup.MaxBackups < 1 {
		errs = append(errs, fmt.Errorf("backup.max_backups must be >= 1, got %d", c.Backup.MaxBackups))
	}

	if !validProvider(c.Cost.Provider) {
		errs = append(errs, fmt.Errorf("cost.provider must be one of %s, got %q", strings.Join(Providers, ", "), c.Cost.Provider))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func checkPair(name string, warn, crit float64) error {
	if warn <= 0 || warn >= crit || crit > 100 {
		return fmt.Errorf("predictor.thresholds %s: want 0 < warning < critical <= 100, got %v/%v", name, warn, crit)
	}
	return nil
}

func validProvider(p string) bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// Watch re-reads the config file on change and reports the new
// auto-remediation flag. Only that key is applied at runtime.
func (c *Config) Watch(onAuto func(bool)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c.mu.Lock()
		auto := c.v.GetBool("remediation.auto_remediate")
		c.Remediation.AutoRemediate = auto
		c.mu.Unlock()
		onAuto(auto)
	})
	c.v.WatchConfig()
}
