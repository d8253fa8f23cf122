package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the monitor daemon
type Config struct {
	// HTTP API server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Upstream Instagram access
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Base quotas fed into the bot-protection state on first creation
	Protection ProtectionConfig `yaml:"protection" json:"protection"`

	// Per-check execution settings
	Checks ChecksConfig `yaml:"checks" json:"checks"`

	// Outbound notification email settings
	Email EmailConfig `yaml:"email" json:"email"`

	// Durable state location
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// InstagramConfig holds upstream session configuration
type InstagramConfig struct {
	SessionID string `yaml:"session_id" json:"session_id"`
	CSRFToken string `yaml:"csrf_token" json:"csrf_token"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// ProtectionConfig holds the base rate quotas. These seed the persisted
// protection state when no state file exists yet; after that the state
// file is authoritative.
type ProtectionConfig struct {
	DailyCheckLimit  int           `yaml:"daily_check_limit" json:"daily_check_limit"`
	MaxChecksPerHour int           `yaml:"max_checks_per_hour" json:"max_checks_per_hour"`
	MinInterval      time.Duration `yaml:"min_interval" json:"min_interval"`
}

// ChecksConfig holds per-check execution settings
type ChecksConfig struct {
	// Timeout bounds a single upstream account check. A check that exceeds
	// it is recorded as a transient failure and sequencing continues.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// EmailConfig holds SMTP delivery settings for consolidated notifications
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	From     string `yaml:"from" json:"from"`
}

// StorageConfig holds the location of the JSON state documents
type StorageConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":3000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Instagram: InstagramConfig{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Protection: ProtectionConfig{
			DailyCheckLimit:  50,
			MaxChecksPerHour: 10,
			MinInterval:      5 * time.Minute,
		},
		Checks: ChecksConfig{
			Timeout: 60 * time.Second,
		},
		Email: EmailConfig{
			Enabled: true,
			Host:    "smtp.gmail.com",
			Port:    587,
		},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if addr := os.Getenv("IGMONITOR_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if sessionID := os.Getenv("IGMONITOR_SESSION_ID"); sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken := os.Getenv("IGMONITOR_CSRF_TOKEN"); csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if userAgent := os.Getenv("IGMONITOR_USER_AGENT"); userAgent != "" {
		c.Instagram.UserAgent = userAgent
	}
	if v := os.Getenv("IGMONITOR_DAILY_CHECK_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Protection.DailyCheckLimit = n
		}
	}
	if v := os.Getenv("IGMONITOR_MAX_CHECKS_PER_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Protection.MaxChecksPerHour = n
		}
	}
	if host := os.Getenv("IGMONITOR_EMAIL_HOST"); host != "" {
		c.Email.Host = host
	}
	if v := os.Getenv("IGMONITOR_EMAIL_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Email.Port = n
		}
	}
	if user := os.Getenv("IGMONITOR_EMAIL_USER"); user != "" {
		c.Email.Username = user
		if c.Email.From == "" {
			c.Email.From = user
		}
	}
	if pass := os.Getenv("IGMONITOR_EMAIL_PASS"); pass != "" {
		c.Email.Password = pass
	}
	if enabled := os.Getenv("IGMONITOR_EMAIL_ENABLED"); enabled != "" {
		c.Email.Enabled = strings.ToLower(enabled) == "true"
	}
	if dataDir := os.Getenv("IGMONITOR_DATA_DIR"); dataDir != "" {
		c.Storage.DataDir = dataDir
	}
	if logLevel := os.Getenv("IGMONITOR_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".igmonitor.yaml",
		".igmonitor.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igmonitor", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "igmonitor", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".igmonitor.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}

	if c.Protection.DailyCheckLimit <= 0 {
		errs = append(errs, errors.New("daily check limit must be positive"))
	}
	if c.Protection.MaxChecksPerHour <= 0 {
		errs = append(errs, errors.New("max checks per hour must be positive"))
	}
	if c.Protection.MaxChecksPerHour > c.Protection.DailyCheckLimit {
		errs = append(errs, errors.New("hourly limit cannot exceed the daily limit"))
	}
	if c.Protection.MinInterval < 0 {
		errs = append(errs, errors.New("minimum check interval cannot be negative"))
	}

	if c.Checks.Timeout <= 0 {
		errs = append(errs, errors.New("check timeout must be positive"))
	}

	if c.Email.Enabled {
		if c.Email.Host == "" {
			errs = append(errs, errors.New("email host is required when email is enabled"))
		}
		if c.Email.Port <= 0 || c.Email.Port > 65535 {
			errs = append(errs, errors.New("email port must be between 1 and 65535"))
		}
	}

	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("data directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.Addr = addr
	}
	if sessionID, ok := flags["session-id"].(string); ok && sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken, ok := flags["csrf-token"].(string); ok && csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if dataDir, ok := flags["data-dir"].(string); ok && dataDir != "" {
		c.Storage.DataDir = dataDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igmonitor.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
