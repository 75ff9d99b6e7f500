package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adrg/xdg"
)

func TestAlertConfig_Duration(t *testing.T) {
	tests := []struct {
		name    string
		alert   AlertConfig
		want    time.Duration
		wantErr bool
	}{
		{
			name:  "seconds",
			alert: AlertConfig{Value: 30, Unit: "seconds"},
			want:  30 * time.Second,
		},
		{
			name:  "minutes",
			alert: AlertConfig{Value: 5, Unit: "m"},
			want:  5 * time.Minute,
		},
		{
			name:  "hours",
			alert: AlertConfig{Value: 2, Unit: "hours"},
			want:  2 * time.Hour,
		},
		{
			name:  "days",
			alert: AlertConfig{Value: 1, Unit: "days"},
			want:  24 * time.Hour,
		},
		{
			name:    "invalid unit",
			alert:   AlertConfig{Value: 5, Unit: "weeks"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.alert.Duration()
			if (err != nil) != tt.wantErr {
				t.Errorf("AlertConfig.Duration() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("AlertConfig.Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("Failed to get home directory: %v", err)
	}
	t.Setenv("CALREPEAT_TEST_DIR", "/srv/templates")

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"tilde expansion", "~/.calrepeat/events.db", filepath.Join(homeDir, ".calrepeat/events.db")},
		{"absolute path", "/tmp/events.db", "/tmp/events.db"},
		{"relative path", "events.db", "events.db"},
		{"environment variable", "$CALREPEAT_TEST_DIR/work", "/srv/templates/work"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.path)
			if err != nil {
				t.Errorf("ExpandPath() error = %v", err)
				return
			}
			if got != tt.expected {
				t.Errorf("ExpandPath() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "empty config gets defaults",
			config: Config{},
		},
		{
			name: "memory backend",
			config: Config{
				Storage: StorageConfig{Backend: "memory"},
			},
		},
		{
			name: "unknown storage backend",
			config: Config{
				Storage: StorageConfig{Backend: "postgres"},
			},
			wantErr: true,
		},
		{
			name: "negative max occurrences",
			config: Config{
				Recurrence: RecurrenceConfig{MaxOccurrences: -1},
			},
			wantErr: true,
		},
		{
			name: "negative templates per file",
			config: Config{
				Templates: TemplatesConfig{MaxPerFile: -1},
			},
			wantErr: true,
		},
		{
			name: "unknown notification backend",
			config: Config{
				Notification: NotificationConfig{Backend: "notify-send"},
			},
			wantErr: true,
		},
		{
			name: "invalid cron schedule",
			config: Config{
				Reminders: RemindersConfig{Schedule: "every minute"},
			},
			wantErr: true,
		},
		{
			name: "cron expression",
			config: Config{
				Reminders: RemindersConfig{Schedule: "*/5 * * * *"},
			},
		},
		{
			name: "invalid catch up unit",
			config: Config{
				Reminders: RemindersConfig{CatchUp: AlertConfig{Value: 1, Unit: "weeks"}},
			},
			wantErr: true,
		},
		{
			name: "invalid catch up value",
			config: Config{
				Reminders: RemindersConfig{CatchUp: AlertConfig{Value: -5, Unit: "minutes"}},
			},
			wantErr: true,
		},
		{
			name: "invalid logging level",
			config: Config{
				Logging: LoggingConfig{Level: "verbose"},
			},
			wantErr: true,
		},
		{
			name: "invalid logging format",
			config: Config{
				Logging: LoggingConfig{Format: "xml"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateFillsDefaults(t *testing.T) {
	var cfg Config
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("storage backend = %v, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Storage.Path != DefaultDatabasePath() {
		t.Errorf("storage path = %v, want %v", cfg.Storage.Path, DefaultDatabasePath())
	}
	if cfg.Notification.Backend != "dbus" {
		t.Errorf("notification backend = %v, want dbus", cfg.Notification.Backend)
	}
	if cfg.Reminders.Schedule != "@every 1m" {
		t.Errorf("reminder schedule = %v, want @every 1m", cfg.Reminders.Schedule)
	}
	if d, _ := cfg.Reminders.CatchUp.Duration(); d != time.Hour {
		t.Errorf("catch up = %v, want 1h", d)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v, want info/text", cfg.Logging)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `storage:
  backend: sqlite
  path: ` + filepath.Join(dir, "db", "events.db") + `
templates:
  directory: ` + dir + `
recurrence:
  max_occurrences: 100
notification:
  backend: stdout
reminders:
  schedule: "@every 30s"
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Storage.Path != filepath.Join(dir, "db", "events.db") {
		t.Errorf("storage path = %v", cfg.Storage.Path)
	}
	if cfg.Templates.Directory != dir {
		t.Errorf("templates directory = %v, want %v", cfg.Templates.Directory, dir)
	}
	if cfg.Recurrence.MaxOccurrences != 100 {
		t.Errorf("max occurrences = %d, want 100", cfg.Recurrence.MaxOccurrences)
	}
	if cfg.Notification.Backend != "stdout" {
		t.Errorf("notification backend = %v, want stdout", cfg.Notification.Backend)
	}
	if cfg.Reminders.Schedule != "@every 30s" {
		t.Errorf("schedule = %v", cfg.Reminders.Schedule)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %v, want debug", cfg.Logging.Level)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("storage: [unclosed"), 0644)
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("logging:\n  level: loud\n"), 0644)
	_, err := LoadFromFile(invalid)
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("expected invalid configuration error, got %v", err)
	}
}

func TestWriteConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := WriteConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Recurrence.MaxOccurrences != 5000 {
		t.Errorf("max occurrences = %d, want 5000", cfg.Recurrence.MaxOccurrences)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Storage.Backend != "sqlite" {
		t.Errorf("DefaultConfig() storage backend = %v, want sqlite", config.Storage.Backend)
	}

	if config.Notification.Backend != "dbus" {
		t.Errorf("DefaultConfig() notification backend = %v, want dbus", config.Notification.Backend)
	}

	if config.Logging.Level != "info" {
		t.Errorf("DefaultConfig() logging level = %v, want info", config.Logging.Level)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("DefaultConfig() does not validate: %v", err)
	}
}

func TestLoad_XDG(t *testing.T) {
	t.Cleanup(xdg.Reload)
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("XDG_CONFIG_DIRS", t.TempDir())
	xdg.Reload()

	if _, err := Load(); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("Load() error = %v, want ErrConfigNotFound", err)
	}

	cfg, err := LoadOrDefault()
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Recurrence.MaxOccurrences != 5000 {
		t.Errorf("default max occurrences = %d, want 5000", cfg.Recurrence.MaxOccurrences)
	}

	path, err := WriteDefaultConfig()
	if err != nil {
		t.Fatalf("WriteDefaultConfig failed: %v", err)
	}
	if path != filepath.Join(configHome, "calrepeat", "config.yaml") {
		t.Errorf("config path = %v", path)
	}

	if _, err := Load(); err != nil {
		t.Errorf("Load() after writing defaults failed: %v", err)
	}
}
