// Package config provides configuration management for mneme.
// It loads settings from environment variables with the MNEME_ prefix and
// provides sensible defaults for all configuration options.
//
// An optional YAML file may be layered underneath the environment:
// defaults are applied first, then the file, then any MNEME_ variables
// that are set.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the mneme application.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Engine      EngineConfig      `yaml:"engine"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Privacy     PrivacyConfig     `yaml:"privacy"`
	Reasoning   ReasoningConfig   `yaml:"reasoning"`
	Controller  ControllerConfig  `yaml:"controller"`
	Security    SecurityConfig    `yaml:"security"`
	Backup      BackupConfig      `yaml:"backup"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port          int     `yaml:"port"`           // Server port (default: 6464)
	Host          string  `yaml:"host"`           // Server host (default: 127.0.0.1)
	RateLimit     float64 `yaml:"rate_limit"`     // Sustained requests per second (default: 10)
	RateBurst     int     `yaml:"rate_burst"`     // Burst size (default: 20)
	EventsEnabled bool    `yaml:"events_enabled"` // Serve store-updated events over websocket (default: true)
}

// StorageConfig contains record store configuration.
type StorageConfig struct {
	StorageEngine    string `yaml:"engine"`             // sqlite, postgres or memory (default: sqlite)
	DataPath         string `yaml:"data_path"`          // Path to data directory (default: ./data)
	PostgresDSN      string `yaml:"postgres_dsn"`       // Connection string when engine=postgres
	QuotaBytes       int64  `yaml:"quota_bytes"`        // Storage quota used for pressure warnings (default: 512 MiB)
	CacheEnabled     bool   `yaml:"cache_enabled"`      // Decoded record cache (default: true)
	EncryptionAtRest bool   `yaml:"encryption_at_rest"` // Requested but not available; reported by the boot check
}

// EngineConfig contains worker loop configuration.
type EngineConfig struct {
	WorkerInterval     time.Duration `yaml:"worker_interval"`       // Worker tick period (default: 2s)
	SchedulerInterval  time.Duration `yaml:"scheduler_interval"`    // Maintenance scheduler tick period (default: 30s)
	MaxRetries         int           `yaml:"max_retries"`           // Attempts before a queue item is abandoned (default: 3)
	EnqueueRate        float64       `yaml:"enqueue_rate"`          // Enqueue requests per second, 0 disables limiting
	EnqueueBurst       int           `yaml:"enqueue_burst"`         // Enqueue burst size (default: 10)
	InsightSampleSize  int           `yaml:"insight_sample_size"`   // Memories sampled per insight pass (default: 10)
	SafeModeOnFallback bool          `yaml:"safe_mode_on_fallback"` // Enter safe mode when storage is non-durable
}

// MaintenanceConfig contains scheduler and tiering configuration.
type MaintenanceConfig struct {
	Interval        time.Duration `yaml:"interval"`          // Run at least this often (default: 24h)
	IdleInterval    time.Duration `yaml:"idle_interval"`     // Minimum gap for idle-triggered runs (default: 6h)
	IdleThreshold   time.Duration `yaml:"idle_threshold"`    // User idle time that counts as idle (default: 60s)
	ColdAfter       time.Duration `yaml:"cold_after"`        // Inactivity before cold storage (default: 720h)
	LogTTL          time.Duration `yaml:"log_ttl"`           // Decision log retention (default: 720h)
	MaxDecisionLogs int           `yaml:"max_decision_logs"` // Most-recent logs retained (default: 500)
}

// RetrievalConfig contains ranking budgets.
type RetrievalConfig struct {
	NominalBudget  int    `yaml:"nominal_budget"`  // Candidates under nominal load (default: 8)
	DegradedBudget int    `yaml:"degraded_budget"` // Candidates under degraded load (default: 3)
	ActiveCluster  string `yaml:"active_cluster"`  // Cluster searched by retrieval (default: main)
}

// PrivacyConfig contains PII screening settings.
type PrivacyConfig struct {
	PIIFilterEnabled bool `yaml:"pii_filter_enabled"` // Reject candidates containing PII (default: true)
}

// ReasoningConfig selects the reasoning backend.
type ReasoningConfig struct {
	Provider           string        `yaml:"provider"`             // local or remote (default: local)
	RemoteURL          string        `yaml:"remote_url"`           // Endpoint for the remote backend
	Timeout            time.Duration `yaml:"timeout"`              // Per-call timeout (default: 10s)
	BreakerMaxFailures int           `yaml:"breaker_max_failures"` // Consecutive failures before opening (default: 3)
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`      // Open duration before half-open (default: 30s)
}

// ControllerConfig contains decision controller settings.
type ControllerConfig struct {
	FeedbackWindow int `yaml:"feedback_window"` // Decisions considered for feedback (default: 10)
	HistorySize    int `yaml:"history_size"`    // Decisions retained (default: 50)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string `yaml:"mode"`      // development or production (default: development)
	APIToken     string `yaml:"api_token"` // API authentication token
}

// BackupConfig contains periodic snapshot settings.
type BackupConfig struct {
	Enabled  bool          `yaml:"enabled"`  // Write periodic snapshots (default: false)
	Dir      string        `yaml:"dir"`      // Snapshot directory (default: <data_path>/backups)
	Interval time.Duration `yaml:"interval"` // Snapshot period (default: 1h)
	Keep     int           `yaml:"keep"`     // Snapshots retained (default: 24)
}

// LoadConfig loads configuration from environment variables with sensible defaults.
// All environment variables use the MNEME_ prefix.
func LoadConfig() (*Config, error) {
	cfg := Defaults()
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile loads defaults, then the YAML file at path, then environment
// overrides. An empty path behaves like LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	if path == "" {
		return LoadConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a Config populated with default values only.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          6464,
			Host:          "127.0.0.1",
			RateLimit:     10,
			RateBurst:     20,
			EventsEnabled: true,
		},
		Storage: StorageConfig{
			StorageEngine: "sqlite",
			DataPath:      "./data",
			QuotaBytes:    512 << 20,
			CacheEnabled:  true,
		},
		Engine: EngineConfig{
			WorkerInterval:    2 * time.Second,
			SchedulerInterval: 30 * time.Second,
			MaxRetries:        3,
			EnqueueBurst:      10,
			InsightSampleSize: 10,
		},
		Maintenance: MaintenanceConfig{
			Interval:        24 * time.Hour,
			IdleInterval:    6 * time.Hour,
			IdleThreshold:   60 * time.Second,
			ColdAfter:       30 * 24 * time.Hour,
			LogTTL:          30 * 24 * time.Hour,
			MaxDecisionLogs: 500,
		},
		Retrieval: RetrievalConfig{
			NominalBudget:  8,
			DegradedBudget: 3,
			ActiveCluster:  "main",
		},
		Privacy: PrivacyConfig{
			PIIFilterEnabled: true,
		},
		Reasoning: ReasoningConfig{
			Provider:           "local",
			Timeout:            10 * time.Second,
			BreakerMaxFailures: 3,
			BreakerTimeout:     30 * time.Second,
		},
		Controller: ControllerConfig{
			FeedbackWindow: 10,
			HistorySize:    50,
		},
		Security: SecurityConfig{
			SecurityMode: "development",
		},
		Backup: BackupConfig{
			Interval: time.Hour,
			Keep:     24,
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Storage.StorageEngine {
	case "sqlite", "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: storage engine postgres requires MNEME_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.StorageEngine)
	}

	switch c.Reasoning.Provider {
	case "local":
	case "remote":
		if c.Reasoning.RemoteURL == "" {
			return errors.New("config: reasoning provider remote requires MNEME_REASONING_URL")
		}
	default:
		return fmt.Errorf("config: unknown reasoning provider %q", c.Reasoning.Provider)
	}

	if c.Engine.MaxRetries < 1 {
		return fmt.Errorf("config: max retries must be >= 1, got %d", c.Engine.MaxRetries)
	}
	if c.Engine.WorkerInterval <= 0 || c.Engine.SchedulerInterval <= 0 {
		return errors.New("config: engine intervals must be positive")
	}
	if c.Retrieval.NominalBudget < 1 || c.Retrieval.DegradedBudget < 1 {
		return errors.New("config: retrieval budgets must be >= 1")
	}
	if c.Retrieval.DegradedBudget > c.Retrieval.NominalBudget {
		return fmt.Errorf("config: degraded budget (%d) must not exceed nominal budget (%d)",
			c.Retrieval.DegradedBudget, c.Retrieval.NominalBudget)
	}
	if c.Controller.FeedbackWindow < 1 || c.Controller.HistorySize < c.Controller.FeedbackWindow {
		return errors.New("config: controller history size must be >= feedback window >= 1")
	}
	if c.Maintenance.MaxDecisionLogs < 1 {
		return errors.New("config: max decision logs must be >= 1")
	}
	if c.Security.SecurityMode == "production" && c.Security.APIToken == "" {
		return errors.New("config: production mode requires MNEME_API_TOKEN")
	}
	if c.Backup.Enabled && (c.Backup.Interval <= 0 || c.Backup.Keep < 1) {
		return errors.New("config: backup interval must be positive and keep >= 1")
	}
	return nil
}

// applyEnv overrides cfg with any MNEME_ variables that are set.
func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("MNEME_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("MNEME_HOST", cfg.Server.Host)
	cfg.Server.RateLimit = getEnvFloat("MNEME_RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.RateBurst = getEnvInt("MNEME_RATE_BURST", cfg.Server.RateBurst)
	cfg.Server.EventsEnabled = getEnvBool("MNEME_EVENTS_ENABLED", cfg.Server.EventsEnabled)

	cfg.Storage.StorageEngine = getEnv("MNEME_STORAGE_ENGINE", cfg.Storage.StorageEngine)
	cfg.Storage.DataPath = getEnv("MNEME_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("MNEME_POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.QuotaBytes = int64(getEnvInt("MNEME_STORAGE_QUOTA_BYTES", int(cfg.Storage.QuotaBytes)))
	cfg.Storage.CacheEnabled = getEnvBool("MNEME_CACHE_ENABLED", cfg.Storage.CacheEnabled)
	cfg.Storage.EncryptionAtRest = getEnvBool("MNEME_ENCRYPTION_AT_REST", cfg.Storage.EncryptionAtRest)

	cfg.Engine.WorkerInterval = getEnvDuration("MNEME_WORKER_INTERVAL", cfg.Engine.WorkerInterval)
	cfg.Engine.SchedulerInterval = getEnvDuration("MNEME_SCHEDULER_INTERVAL", cfg.Engine.SchedulerInterval)
	cfg.Engine.MaxRetries = getEnvInt("MNEME_MAX_RETRIES", cfg.Engine.MaxRetries)
	cfg.Engine.EnqueueRate = getEnvFloat("MNEME_ENQUEUE_RATE", cfg.Engine.EnqueueRate)
	cfg.Engine.EnqueueBurst = getEnvInt("MNEME_ENQUEUE_BURST", cfg.Engine.EnqueueBurst)
	cfg.Engine.InsightSampleSize = getEnvInt("MNEME_INSIGHT_SAMPLE_SIZE", cfg.Engine.InsightSampleSize)
	cfg.Engine.SafeModeOnFallback = getEnvBool("MNEME_SAFE_MODE_ON_FALLBACK", cfg.Engine.SafeModeOnFallback)

	cfg.Maintenance.Interval = getEnvDuration("MNEME_MAINTENANCE_INTERVAL", cfg.Maintenance.Interval)
	cfg.Maintenance.IdleInterval = getEnvDuration("MNEME_MAINTENANCE_IDLE_INTERVAL", cfg.Maintenance.IdleInterval)
	cfg.Maintenance.IdleThreshold = getEnvDuration("MNEME_IDLE_THRESHOLD", cfg.Maintenance.IdleThreshold)
	cfg.Maintenance.ColdAfter = getEnvDuration("MNEME_COLD_AFTER", cfg.Maintenance.ColdAfter)
	cfg.Maintenance.LogTTL = getEnvDuration("MNEME_LOG_TTL", cfg.Maintenance.LogTTL)
	cfg.Maintenance.MaxDecisionLogs = getEnvInt("MNEME_MAX_DECISION_LOGS", cfg.Maintenance.MaxDecisionLogs)

	cfg.Retrieval.NominalBudget = getEnvInt("MNEME_NOMINAL_BUDGET", cfg.Retrieval.NominalBudget)
	cfg.Retrieval.DegradedBudget = getEnvInt("MNEME_DEGRADED_BUDGET", cfg.Retrieval.DegradedBudget)
	cfg.Retrieval.ActiveCluster = getEnv("MNEME_ACTIVE_CLUSTER", cfg.Retrieval.ActiveCluster)

	cfg.Privacy.PIIFilterEnabled = getEnvBool("MNEME_PII_FILTER_ENABLED", cfg.Privacy.PIIFilterEnabled)

	cfg.Reasoning.Provider = getEnv("MNEME_REASONING_PROVIDER", cfg.Reasoning.Provider)
	cfg.Reasoning.RemoteURL = getEnv("MNEME_REASONING_URL", cfg.Reasoning.RemoteURL)
	cfg.Reasoning.Timeout = getEnvDuration("MNEME_REASONING_TIMEOUT", cfg.Reasoning.Timeout)
	cfg.Reasoning.BreakerMaxFailures = getEnvInt("MNEME_BREAKER_MAX_FAILURES", cfg.Reasoning.BreakerMaxFailures)
	cfg.Reasoning.BreakerTimeout = getEnvDuration("MNEME_BREAKER_TIMEOUT", cfg.Reasoning.BreakerTimeout)

	cfg.Controller.FeedbackWindow = getEnvInt("MNEME_FEEDBACK_WINDOW", cfg.Controller.FeedbackWindow)
	cfg.Controller.HistorySize = getEnvInt("MNEME_HISTORY_SIZE", cfg.Controller.HistorySize)

	cfg.Security.SecurityMode = getEnv("MNEME_SECURITY_MODE", cfg.Security.SecurityMode)
	cfg.Security.APIToken = getEnv("MNEME_API_TOKEN", cfg.Security.APIToken)

	cfg.Backup.Enabled = getEnvBool("MNEME_BACKUP_ENABLED", cfg.Backup.Enabled)
	cfg.Backup.Dir = getEnv("MNEME_BACKUP_DIR", cfg.Backup.Dir)
	cfg.Backup.Interval = getEnvDuration("MNEME_BACKUP_INTERVAL", cfg.Backup.Interval)
	cfg.Backup.Keep = getEnvInt("MNEME_BACKUP_KEEP", cfg.Backup.Keep)
}

// BackupDir returns the snapshot directory, defaulting under the data path.
func (c *Config) BackupDir() string {
	if c.Backup.Dir != "" {
		return c.Backup.Dir
	}
	return filepath.Join(c.Storage.DataPath, "backups")
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration (e.g. "90s", "24h") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
