package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hoursync/internal/domain"
)

// Config models hoursync.yml.
type Config struct {
	Game struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"game"`
	Polling struct {
		Cycle         time.Duration `yaml:"cycle"`
		MinDelay      time.Duration `yaml:"min_delay"`
		Idle          time.Duration `yaml:"idle"`
		ProbeInterval time.Duration `yaml:"probe_interval"`
	} `yaml:"polling"`
	Visibility struct {
		AlwaysVisible []string `yaml:"always_visible"`
	} `yaml:"visibility"`
	Sync struct {
		PathPrefixes []string `yaml:"path_prefixes"`
		PayloadTypes []string `yaml:"payload_types"`
	} `yaml:"sync"`
	Journal struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"journal"`
	Webhooks []Webhook `yaml:"webhooks"`
}

// Webhook is one journal event subscriber.
type Webhook struct {
	ID             string   `yaml:"id"`
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// IsEnabled treats a missing enabled flag as true.
func (w Webhook) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Load reads and validates config from workspace. A missing file yields the
// defaults.
func Load(workspace string) (*Config, error) {
	cfg, err := LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return Default(), nil
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Game.BaseURL == "" {
		return fmt.Errorf("config.game.base_url is required")
	}
	if !strings.HasPrefix(c.Game.BaseURL, "http://") && !strings.HasPrefix(c.Game.BaseURL, "https://") {
		return fmt.Errorf("config.game.base_url must be an http(s) url")
	}
	if c.Game.Timeout < 0 {
		return fmt.Errorf("config.game.timeout must not be negative")
	}
	if c.Polling.Cycle <= 0 {
		return fmt.Errorf("config.polling.cycle must be positive")
	}
	if c.Polling.MinDelay <= 0 {
		return fmt.Errorf("config.polling.min_delay must be positive")
	}
	if c.Polling.MinDelay > c.Polling.Cycle {
		return fmt.Errorf("config.polling.min_delay must not exceed config.polling.cycle")
	}
	if c.Polling.Idle <= 0 {
		return fmt.Errorf("config.polling.idle must be positive")
	}
	for _, prefix := range c.Visibility.AlwaysVisible {
		if prefix == "" {
			return fmt.Errorf("config.visibility.always_visible contains empty prefix")
		}
	}
	for _, t := range c.Sync.PayloadTypes {
		switch domain.PayloadType(t) {
		case domain.PayloadElementStack, domain.PayloadSituation, domain.PayloadWorkstationSituation,
			domain.PayloadConnectedTerrain, domain.PayloadWisdomNodeTerrain:
		default:
			return fmt.Errorf("config.sync.payload_types has unknown type %s", t)
		}
	}
	seen := map[string]bool{}
	for i, hook := range c.Webhooks {
		if hook.ID == "" {
			return fmt.Errorf("webhook %d has empty id", i)
		}
		if seen[hook.ID] {
			return fmt.Errorf("webhook id %s is duplicated", hook.ID)
		}
		seen[hook.ID] = true
		if hook.URL == "" {
			return fmt.Errorf("webhook %s has empty url", hook.ID)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %s has negative timeout", hook.ID)
		}
		for _, evt := range hook.Events {
			if evt == "" {
				return fmt.Errorf("webhook %s has empty event filter", hook.ID)
			}
		}
	}
	return nil
}

// PayloadTypes converts the sync filter to domain types.
func (c *Config) PayloadTypes() []domain.PayloadType {
	out := make([]domain.PayloadType, 0, len(c.Sync.PayloadTypes))
	for _, t := range c.Sync.PayloadTypes {
		out = append(out, domain.PayloadType(t))
	}
	return out
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "hoursync.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing fields
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `game:
  base_url: http://localhost:8081
  timeout: 10s

polling:
  cycle: 2s
  min_delay: 50ms
  idle: 500ms
  probe_interval: 5s

visibility:
  always_visible:
    - "~/hand"
    - "~/portage"

sync:
  path_prefixes: []
  payload_types: []

journal:
  enabled: true

webhooks: []
`
