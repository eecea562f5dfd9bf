// Package config provides configuration management for the simulated system.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SIMOS_LOGGING_LEVEL.
const EnvPrefix = "SIMOS"

// Config represents the complete configuration.
type Config struct {
	System  SystemConfig  `yaml:"system"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	FUSE    FUSEConfig    `yaml:"fuse" envconfig:"FUSE"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SystemConfig describes the simulated machine.
type SystemConfig struct {
	Hostname     string            `yaml:"hostname" validate:"required,hostname"`
	RootPassword string            `yaml:"root_password" envconfig:"ROOT_PASSWORD"`
	Path         []string          `yaml:"path" validate:"min=1,dive,startswith=/"`
	Aliases      []string          `yaml:"aliases"`
	Apps         map[string]string `yaml:"apps"`
	Term         string            `yaml:"term"`
}

// StorageConfig selects where snapshots are kept.
type StorageConfig struct {
	Type         string `yaml:"type" validate:"oneof=memory file badger"`
	Path         string `yaml:"path" validate:"required_unless=Type memory"`
	Key          string `yaml:"key" validate:"required,excludesall=/\\"`
	SaveDebounce string `yaml:"save_debounce" envconfig:"SAVE_DEBOUNCE"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
	Output string `yaml:"output"`
}

// FUSEConfig holds the read-only FUSE export configuration.
type FUSEConfig struct {
	MountPoint string `yaml:"mount_point" envconfig:"MOUNT_POINT"`
	AsUser     string `yaml:"as_user" envconfig:"AS_USER"`
}

// MetricsConfig holds the metrics listener. An empty address disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			Hostname: "simos",
			Path:     []string{"/bin", "/usr/bin"},
			Aliases:  []string{"Desktop", "Documents", "Downloads", "Pictures", "Music", "Videos"},
			Apps: map[string]string{
				"browser":  "browser",
				"notes":    "notes",
				"settings": "settings",
			},
			Term: "xterm-256color",
		},
		Storage: StorageConfig{
			Type:         "memory",
			Path:         "/tmp/simos",
			Key:          "system",
			SaveDebounce: "500ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		FUSE: FUSEConfig{
			AsUser: "root",
		},
	}
}

// Load loads configuration from a YAML file, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return finish(config)
}

// LoadOrDefault loads configuration from a file, or starts from the
// defaults if the file doesn't exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return finish(DefaultConfig())
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return finish(DefaultConfig())
	}

	return Load(path)
}

func finish(config *Config) (*Config, error) {
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

var validate = validator.New()

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GetSaveDebounce returns the persistence debounce as a time.Duration.
func (c *StorageConfig) GetSaveDebounce() time.Duration {
	d, err := time.ParseDuration(c.SaveDebounce)
	if err != nil || d < 0 {
		return 500 * time.Millisecond
	}
	return d
}
