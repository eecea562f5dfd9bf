package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.System.Hostname != "simos" {
		t.Errorf("expected hostname simos, got %s", cfg.System.Hostname)
	}
	if len(cfg.System.Path) != 2 || cfg.System.Path[0] != "/bin" || cfg.System.Path[1] != "/usr/bin" {
		t.Errorf("expected PATH [/bin /usr/bin], got %v", cfg.System.Path)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected storage type memory, got %s", cfg.Storage.Type)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configContent := `
system:
  hostname: "workstation"
  root_password: "s3cret"
  apps:
    editor: "code"
storage:
  type: "badger"
  path: "/var/lib/simos"
  save_debounce: "2s"
metrics:
  addr: ":9100"
logging:
  level: "debug"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.System.Hostname != "workstation" {
		t.Errorf("expected hostname workstation, got %s", cfg.System.Hostname)
	}
	if cfg.System.RootPassword != "s3cret" {
		t.Errorf("expected root password s3cret, got %s", cfg.System.RootPassword)
	}
	if cfg.System.Apps["editor"] != "code" {
		t.Errorf("expected editor app, got %v", cfg.System.Apps)
	}
	if cfg.Storage.Type != "badger" {
		t.Errorf("expected storage type badger, got %s", cfg.Storage.Type)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected logging level debug, got %s", cfg.Logging.Level)
	}
	// Unset values keep their defaults
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default format text, got %s", cfg.Logging.Format)
	}
	if cfg.Storage.Key != "system" {
		t.Errorf("expected default key system, got %s", cfg.Storage.Key)
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault(\"\") error: %v", err)
	}
	if cfg.System.Hostname != "simos" {
		t.Errorf("expected default config, got hostname %s", cfg.System.Hostname)
	}

	cfg, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault(missing) error: %v", err)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected default storage, got %s", cfg.Storage.Type)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}

	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("system: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(configPath); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad storage type", func(c *Config) { c.Storage.Type = "redis" }},
		{"file store without path", func(c *Config) { c.Storage.Type = "file"; c.Storage.Path = "" }},
		{"relative PATH entry", func(c *Config) { c.System.Path = []string{"bin"} }},
		{"empty PATH", func(c *Config) { c.System.Path = nil }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad metrics addr", func(c *Config) { c.Metrics.Addr = "nope" }},
		{"key with slash", func(c *Config) { c.Storage.Key = "a/b" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIMOS_SYSTEM_HOSTNAME", "envhost")
	t.Setenv("SIMOS_LOGGING_LEVEL", "warn")
	t.Setenv("SIMOS_STORAGE_SAVE_DEBOUNCE", "3s")
	t.Setenv("SIMOS_FUSE_AS_USER", "alice")

	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.System.Hostname != "envhost" {
		t.Errorf("expected hostname envhost, got %s", cfg.System.Hostname)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Storage.GetSaveDebounce() != 3*time.Second {
		t.Errorf("expected debounce 3s, got %v", cfg.Storage.GetSaveDebounce())
	}
	if cfg.FUSE.AsUser != "alice" {
		t.Errorf("expected FUSE user alice, got %s", cfg.FUSE.AsUser)
	}
}

func TestGetSaveDebounce(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"1s", time.Second},
		{"250ms", 250 * time.Millisecond},
		{"invalid", 500 * time.Millisecond},
		{"", 500 * time.Millisecond},
		{"-1s", 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			c := &StorageConfig{SaveDebounce: tt.value}
			if got := c.GetSaveDebounce(); got != tt.expected {
				t.Errorf("GetSaveDebounce() = %v, want %v", got, tt.expected)
			}
		})
	}
}
