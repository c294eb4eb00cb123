package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models taskdeck.yml.
type Config struct {
	Backend struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"backend"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with td config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("config.backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.backend.base_url must be an absolute URL")
	}
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("config.backend.timeout_seconds must not be negative")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level must be one of debug, info, warn, error")
	}
	return nil
}

// Timeout returns the request timeout, defaulting to 10s.
func (c *Config) Timeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskdeck.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `backend:
  base_url: http://127.0.0.1:8080
  timeout_seconds: 10

log:
  level: warn
`
