// Package config loads the server configuration from YAML.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/waveslice/retrig/internal/bank"
	"github.com/waveslice/retrig/internal/transport"
)

// Duration wraps time.Duration so YAML accepts "500ms", "2s" etc.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Reconnect is the client reconnection policy.
type Reconnect struct {
	BaseDelay   Duration `yaml:"base_delay"`
	MaxAttempts int      `yaml:"max_attempts"`
}

// Config is the full server configuration.
type Config struct {
	Listen         string    `yaml:"listen"`
	Database       string    `yaml:"database"`
	RulesDir       string    `yaml:"rules_dir"`
	Role           string    `yaml:"role"`
	TickResolution int       `yaml:"tick_resolution"`
	Reconnect      Reconnect `yaml:"reconnect"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:         ":8765",
		Database:       "retrig.db",
		RulesDir:       "rules",
		Role:           string(bank.RoleUnknown),
		TickResolution: transport.DefaultResolution,
		Reconnect: Reconnect{
			BaseDelay:   Duration(transport.DefaultBaseDelay),
			MaxAttempts: transport.DefaultMaxAttempts,
		},
	}
}

// Load reads a YAML config file. Fields the file omits keep their
// defaults. Unknown fields are rejected so typos fail loudly.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.TickResolution <= 0 {
		return fmt.Errorf("tick_resolution must be positive, got %d", c.TickResolution)
	}
	if c.Reconnect.BaseDelay <= 0 {
		return fmt.Errorf("reconnect.base_delay must be positive, got %s", c.Reconnect.BaseDelay.Std())
	}
	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts must be non-negative, got %d", c.Reconnect.MaxAttempts)
	}
	return nil
}

// ParsedRole returns the stem role, normalizing unknown values.
func (c Config) ParsedRole() bank.Role {
	return bank.ParseRole(c.Role)
}
