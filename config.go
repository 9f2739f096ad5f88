package translation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level quota configuration.
type Config struct {
	// DailyLimit is the shared token budget per UTC day. Defaults to
	// DefaultDailyLimit when zero.
	DailyLimit int64 `yaml:"daily_limit"`

	// DefaultModel is used for estimation when a request names no model.
	DefaultModel string `yaml:"default_model"`

	// Fallback selects the behavior when the durable store is
	// unreachable. Defaults to FallbackDegrade.
	Fallback FallbackPolicy `yaml:"fallback"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the durable usage store. An empty Addr means no
// durable store: quota runs on the local in-process adapter only.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("translation: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("translation: parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DailyLimit == 0 {
		c.DailyLimit = DefaultDailyLimit
	}
	if c.Fallback == "" {
		c.Fallback = FallbackDegrade
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "translate:usage:"
	}
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if c.DailyLimit < 0 {
		return fmt.Errorf("translation: config: daily_limit must be non-negative, got %d", c.DailyLimit)
	}
	switch c.Fallback {
	case FallbackDegrade, FallbackFailClosed, FallbackSilent, "":
	default:
		return fmt.Errorf("translation: config: invalid fallback policy %q", c.Fallback)
	}
	if c.Fallback == FallbackFailClosed && c.Redis.Addr == "" {
		return fmt.Errorf("translation: config: fallback %q requires a redis addr", FallbackFailClosed)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("translation: config: redis db must be non-negative, got %d", c.Redis.DB)
	}
	return nil
}
