package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const appName = "calrepeat"

// ErrConfigNotFound is returned by Load when no configuration file exists.
var ErrConfigNotFound = errors.New("config file not found")

// Config represents the application configuration
type Config struct {
	Storage      StorageConfig      `yaml:"storage"`
	Templates    TemplatesConfig    `yaml:"templates"`
	Recurrence   RecurrenceConfig   `yaml:"recurrence"`
	Notification NotificationConfig `yaml:"notification"`
	Reminders    RemindersConfig    `yaml:"reminders"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// StorageConfig selects where generated events are kept
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"`
}

// TemplatesConfig points at the directory of template files to watch
type TemplatesConfig struct {
	Directory string `yaml:"directory,omitempty"`
	// MaxPerFile caps the templates read from one file. Zero keeps the
	// parser default.
	MaxPerFile int `yaml:"max_per_file,omitempty"`
}

// RecurrenceConfig tunes series expansion
type RecurrenceConfig struct {
	// MaxOccurrences caps how many records one template may expand to.
	// Zero disables the cap.
	MaxOccurrences int `yaml:"max_occurrences"`
}

// NotificationConfig represents notification system configuration
type NotificationConfig struct {
	Backend  string `yaml:"backend"`
	Duration int    `yaml:"duration"`
	// Extra keywords that raise a reminder's priority
	HighKeywords     []string `yaml:"high_keywords,omitempty"`
	CriticalKeywords []string `yaml:"critical_keywords,omitempty"`
}

// RemindersConfig controls the reminder daemon
type RemindersConfig struct {
	Schedule string `yaml:"schedule"`
	// CatchUp bounds how far back missed reminders are delivered after the
	// daemon was not running.
	CatchUp AlertConfig `yaml:"catch_up"`
}

// AlertConfig represents a timing configuration
type AlertConfig struct {
	Value int    `yaml:"value"`
	Unit  string `yaml:"unit"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Duration converts AlertConfig to time.Duration
func (a AlertConfig) Duration() (time.Duration, error) {
	switch a.Unit {
	case "seconds", "second", "s":
		return time.Duration(a.Value) * time.Second, nil
	case "minutes", "minute", "m":
		return time.Duration(a.Value) * time.Minute, nil
	case "hours", "hour", "h":
		return time.Duration(a.Value) * time.Hour, nil
	case "days", "day", "d":
		return time.Duration(a.Value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported time unit: %s", a.Unit)
	}
}

// ExpandPath expands ~ and environment variables in paths
func ExpandPath(path string) (string, error) {
	expanded := os.ExpandEnv(path)
	if len(expanded) > 0 && expanded[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		expanded = filepath.Join(homeDir, expanded[1:])
	}
	return expanded, nil
}

// DefaultDatabasePath returns the sqlite database location under the XDG
// data directory
func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, appName, "events.db")
}

// Validate fills defaults and checks if the configuration is valid
func (c *Config) Validate() error {
	var err error

	// Storage
	switch c.Storage.Backend {
	case "":
		c.Storage.Backend = "sqlite"
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
	if c.Storage.Backend == "sqlite" {
		if c.Storage.Path == "" {
			c.Storage.Path = DefaultDatabasePath()
		}
		if c.Storage.Path, err = ExpandPath(c.Storage.Path); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}

	// Templates
	if c.Templates.Directory != "" {
		if c.Templates.Directory, err = ExpandPath(c.Templates.Directory); err != nil {
			return fmt.Errorf("templates: %w", err)
		}
	}

	if c.Templates.MaxPerFile < 0 {
		return fmt.Errorf("templates: max_per_file cannot be negative")
	}

	// Recurrence
	if c.Recurrence.MaxOccurrences < 0 {
		return fmt.Errorf("recurrence: max_occurrences cannot be negative")
	}

	// Notification backend
	if c.Notification.Backend == "" {
		c.Notification.Backend = "dbus"
	}
	if c.Notification.Backend != "dbus" && c.Notification.Backend != "stdout" {
		return fmt.Errorf("unsupported notification backend: %s", c.Notification.Backend)
	}
	if c.Notification.Duration < 0 {
		return fmt.Errorf("notification duration cannot be negative")
	}

	// Reminders
	if c.Reminders.Schedule == "" {
		c.Reminders.Schedule = "@every 1m"
	}
	if _, err := cron.ParseStandard(c.Reminders.Schedule); err != nil {
		return fmt.Errorf("reminders: invalid schedule %q: %w", c.Reminders.Schedule, err)
	}
	if c.Reminders.CatchUp == (AlertConfig{}) {
		c.Reminders.CatchUp = AlertConfig{Value: 1, Unit: "hours"}
	}
	if c.Reminders.CatchUp.Value <= 0 {
		return fmt.Errorf("reminders: catch_up value must be positive")
	}
	if _, err := c.Reminders.CatchUp.Duration(); err != nil {
		return fmt.Errorf("reminders: catch_up: %w", err)
	}

	// Logging
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}
	if c.Logging.File != "" {
		if c.Logging.File, err = ExpandPath(c.Logging.File); err != nil {
			return fmt.Errorf("logging: %w", err)
		}
	}

	return nil
}

// Load loads configuration from XDG-compliant locations
func Load() (*Config, error) {
	configPath, err := xdg.SearchConfigFile(appName + "/config.yaml")
	if err != nil {
		configPath, err = xdg.ConfigFile(appName + "/config.yaml")
		if err != nil {
			return nil, fmt.Errorf("failed to determine config file path: %w", err)
		}

		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrConfigNotFound, configPath)
		}
	}

	return LoadFromFile(configPath)
}

// LoadOrDefault loads the XDG configuration, falling back to the validated
// defaults when no file exists.
func LoadOrDefault() (*Config, error) {
	cfg, err := Load()
	if errors.Is(err, ErrConfigNotFound) {
		cfg = DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		Recurrence: RecurrenceConfig{
			MaxOccurrences: 5000,
		},
		Notification: NotificationConfig{
			Backend:  "dbus",
			Duration: 5000,
		},
		Reminders: RemindersConfig{
			Schedule: "@every 1m",
			CatchUp:  AlertConfig{Value: 1, Unit: "hours"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/calrepeat/config.yaml
func DefaultConfigPath() (string, error) {
	configPath, err := xdg.ConfigFile(appName + "/config.yaml")
	if err != nil {
		return "", fmt.Errorf("failed to determine config file path: %w", err)
	}
	return configPath, nil
}

// WriteDefaultConfig writes a default configuration to the XDG config directory
func WriteDefaultConfig() (string, error) {
	configPath, err := DefaultConfigPath()
	if err != nil {
		return "", err
	}
	return configPath, WriteConfig(configPath, DefaultConfig())
}

// WriteConfig writes cfg as YAML to path, creating parent directories
func WriteConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
