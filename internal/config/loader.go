package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SENSOR_"

// Load resolves the configuration and validates it. Later layers win:
// the defaults from New, then the YAML file named by SENSOR_CONFIG, then
// SENSOR_* variables (SENSOR_STORE_DSN sets store_dsn).
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(name string) string {
		return strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver == "":
		return fmt.Errorf("%w: store_driver must not be empty", ErrInvalidConfig)
	case c.StoreDriver == "postgres" && c.StoreDSN == "":
		return fmt.Errorf("%w: store_dsn is required for postgres", ErrInvalidConfig)
	case c.StoreMaxConns < 1:
		return fmt.Errorf("%w: store_max_conns must be positive", ErrInvalidConfig)
	case c.AdminUsername == "":
		return fmt.Errorf("%w: admin_username must not be empty", ErrInvalidConfig)
	case c.DefaultPerPage < 1 || c.MaxPerPage < 1:
		return fmt.Errorf("%w: default_per_page and max_per_page must be positive", ErrInvalidConfig)
	case c.DefaultPerPage > c.MaxPerPage:
		return fmt.Errorf("%w: default_per_page exceeds max_per_page", ErrInvalidConfig)
	case c.MaxRequests > 0 && c.RateLimitWindowSeconds < 1:
		return fmt.Errorf("%w: rate_limit_window_seconds must be positive when max_requests is set", ErrInvalidConfig)
	case c.CacheAddr != "" && c.CacheTTLSeconds < 1:
		return fmt.Errorf("%w: cache_ttl_seconds must be positive when cache_addr is set", ErrInvalidConfig)
	case c.MQTTQoS < 0 || c.MQTTQoS > 2:
		return fmt.Errorf("%w: mqtt_qos must be 0, 1 or 2", ErrInvalidConfig)
	case c.MQTTBroker != "" && c.MQTTTopic == "":
		return fmt.Errorf("%w: mqtt_topic must not be empty when mqtt_broker is set", ErrInvalidConfig)
	case c.MQTTBroker != "" && c.MQTTTimeoutSeconds < 1:
		return fmt.Errorf("%w: mqtt_timeout_seconds must be positive when mqtt_broker is set", ErrInvalidConfig)
	}
	return nil
}
