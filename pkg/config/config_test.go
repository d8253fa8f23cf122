package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Protection.DailyCheckLimit)
	assert.Equal(t, 10, cfg.Protection.MaxChecksPerHour)
	assert.Equal(t, 5*time.Minute, cfg.Protection.MinInterval)
	assert.Equal(t, 60*time.Second, cfg.Checks.Timeout)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  addr: ":8080"
protection:
  daily_check_limit: 100
  max_checks_per_hour: 20
email:
  enabled: false
storage:
  data_dir: /var/lib/igmonitor
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.Protection.DailyCheckLimit)
	assert.Equal(t, 20, cfg.Protection.MaxChecksPerHour)
	assert.False(t, cfg.Email.Enabled)
	assert.Equal(t, "/var/lib/igmonitor", cfg.Storage.DataDir)
	// Untouched values keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.Protection.MinInterval)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [broken"), 0644))

	err := DefaultConfig().LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IGMONITOR_ADDR", ":9090")
	t.Setenv("IGMONITOR_SESSION_ID", "env-session")
	t.Setenv("IGMONITOR_DAILY_CHECK_LIMIT", "75")
	t.Setenv("IGMONITOR_EMAIL_USER", "monitor@example.com")
	t.Setenv("IGMONITOR_EMAIL_ENABLED", "false")
	t.Setenv("IGMONITOR_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "env-session", cfg.Instagram.SessionID)
	assert.Equal(t, 75, cfg.Protection.DailyCheckLimit)
	assert.Equal(t, "monitor@example.com", cfg.Email.Username)
	assert.Equal(t, "monitor@example.com", cfg.Email.From)
	assert.False(t, cfg.Email.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("IGMONITOR_DAILY_CHECK_LIMIT", "not-a-number")
	t.Setenv("IGMONITOR_MAX_CHECKS_PER_HOUR", "-5")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 50, cfg.Protection.DailyCheckLimit)
	assert.Equal(t, 10, cfg.Protection.MaxChecksPerHour)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"addr":      ":7070",
		"data-dir":  "/tmp/state",
		"log-level": "warn",
	})

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "/tmp/state", cfg.Storage.DataDir)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty addr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: "server address",
		},
		{
			name:    "zero daily limit",
			mutate:  func(c *Config) { c.Protection.DailyCheckLimit = 0 },
			wantErr: "daily check limit",
		},
		{
			name:    "hourly above daily",
			mutate:  func(c *Config) { c.Protection.MaxChecksPerHour = 60 },
			wantErr: "hourly limit cannot exceed",
		},
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Protection.MinInterval = -time.Minute },
			wantErr: "cannot be negative",
		},
		{
			name:    "zero check timeout",
			mutate:  func(c *Config) { c.Checks.Timeout = 0 },
			wantErr: "check timeout",
		},
		{
			name: "email enabled without host",
			mutate: func(c *Config) {
				c.Email.Enabled = true
				c.Email.Host = ""
			},
			wantErr: "email host",
		},
		{
			name:    "bad email port",
			mutate:  func(c *Config) { c.Email.Port = 70000 },
			wantErr: "email port",
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.Storage.DataDir = "" },
			wantErr: "data directory",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":4000"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, ":4000", loaded.Server.Addr)
}
