package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mneme/internal/config"
)

func TestLoadConfig_DefaultHostIsLocalhost(t *testing.T) {
	_ = os.Unsetenv("MNEME_HOST")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host,
		"Default host must be 127.0.0.1 for security")
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.StorageEngine)
	assert.Equal(t, 3, cfg.Engine.MaxRetries)
	assert.Equal(t, 8, cfg.Retrieval.NominalBudget)
	assert.Equal(t, 3, cfg.Retrieval.DegradedBudget)
	assert.Equal(t, 24*time.Hour, cfg.Maintenance.Interval)
	assert.Equal(t, 6*time.Hour, cfg.Maintenance.IdleInterval)
	assert.Equal(t, 60*time.Second, cfg.Maintenance.IdleThreshold)
	assert.True(t, cfg.Privacy.PIIFilterEnabled)
	assert.Equal(t, "local", cfg.Reasoning.Provider)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MNEME_HOST", "0.0.0.0")
	t.Setenv("MNEME_PII_FILTER_ENABLED", "no")
	t.Setenv("MNEME_COLD_AFTER", "48h")
	t.Setenv("MNEME_ENQUEUE_RATE", "2.5")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.False(t, cfg.Privacy.PIIFilterEnabled)
	assert.Equal(t, 48*time.Hour, cfg.Maintenance.ColdAfter)
	assert.Equal(t, 2.5, cfg.Engine.EnqueueRate)
}

func TestLoadConfig_InvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("MNEME_PORT", "not-a-number")
	t.Setenv("MNEME_WORKER_INTERVAL", "soon")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 6464, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Engine.WorkerInterval)
}

func TestLoadConfigFile_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mneme.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
storage:
  engine: memory
maintenance:
  cold_after: 72h
retrieval:
  nominal_budget: 5
  degraded_budget: 2
`), 0o600))

	t.Setenv("MNEME_PORT", "7100")

	cfg, err := config.LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7100, cfg.Server.Port, "env must override file")
	assert.Equal(t, "memory", cfg.Storage.StorageEngine)
	assert.Equal(t, 72*time.Hour, cfg.Maintenance.ColdAfter)
	assert.Equal(t, 5, cfg.Retrieval.NominalBudget)
	assert.Equal(t, 2, cfg.Retrieval.DegradedBudget)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset fields keep defaults")
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, err := config.LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown_engine", func(c *config.Config) { c.Storage.StorageEngine = "mongo" }},
		{"postgres_without_dsn", func(c *config.Config) { c.Storage.StorageEngine = "postgres" }},
		{"remote_without_url", func(c *config.Config) { c.Reasoning.Provider = "remote" }},
		{"zero_retries", func(c *config.Config) { c.Engine.MaxRetries = 0 }},
		{"degraded_above_nominal", func(c *config.Config) { c.Retrieval.DegradedBudget = 20 }},
		{"history_below_window", func(c *config.Config) { c.Controller.HistorySize = 2 }},
		{"production_without_token", func(c *config.Config) { c.Security.SecurityMode = "production" }},
		{"backup_keep_zero", func(c *config.Config) { c.Backup = config.BackupConfig{Enabled: true, Interval: time.Hour} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Defaults()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, config.Defaults().Validate())
}

func TestBackupDir(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.DataPath = "/var/lib/mneme"
	assert.Equal(t, filepath.Join("/var/lib/mneme", "backups"), cfg.BackupDir())

	t.Setenv("MNEME_BACKUP_DIR", "/srv/snapshots")
	t.Setenv("MNEME_BACKUP_ENABLED", "true")
	loaded, err := config.LoadConfig()
	require.NoError(t, err)
	assert.True(t, loaded.Backup.Enabled)
	assert.Equal(t, "/srv/snapshots", loaded.BackupDir())
	assert.Equal(t, 24, loaded.Backup.Keep)
}
