package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fieldassign/core/assignment"
	"github.com/kilianp07/fieldassign/core/metrics"
	"github.com/kilianp07/fieldassign/core/scheduler"
	"github.com/kilianp07/fieldassign/infra/mqtt"
	"github.com/kilianp07/fieldassign/infra/redis"
	"github.com/kilianp07/fieldassign/infra/telemetry"
)

type Config struct {
	Assignment assignment.Config `json:"assignment"`
	MQTT       mqtt.Config       `json:"mqtt"`
	Commit     CommitConfig      `json:"commit"`
	Directory  DirectoryConfig   `json:"directory"`
	Metrics    metrics.Config    `json:"metrics"`
	Logging    LoggingConfig     `json:"logging"`
	API        APIConfig         `json:"api"`
	Telemetry  telemetry.Config  `json:"telemetry"`
	Scheduler  scheduler.Config  `json:"scheduler"`
	Redis      redis.Config      `json:"redis"`
	Sentry     SentryConfig      `json:"sentry"`
}

// Load reads the configuration file at path and applies K_ prefixed
// environment overrides, e.g. K_API__TOKEN. An empty path loads defaults
// and the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section's defaults.
func (c *Config) SetDefaults() {
	c.Assignment.SetDefaults()
	c.Commit.SetDefaults()
	c.Logging.SetDefaults()
	c.API.SetDefaults()
	c.Scheduler.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Assignment.Validate(); err != nil {
		return fmt.Errorf("assignment: %w", err)
	}
	if err := c.Commit.Validate(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if c.Commit.Mode == CommitMQTT && c.MQTT.Broker == "" {
		return fmt.Errorf("commit: mode %q requires mqtt.broker", CommitMQTT)
	}
	if c.Telemetry.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("telemetry: requires mqtt.broker")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Scheduler.Enabled {
		if err := c.Scheduler.Validate(); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		if c.Scheduler.Lock == scheduler.LockRedis && !c.Redis.Configured() {
			return fmt.Errorf("scheduler: lock %q requires redis.url or redis.address", scheduler.LockRedis)
		}
	}
	if err := c.Sentry.Validate(); err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	return nil
}
