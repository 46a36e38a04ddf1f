// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Keys are flat so every field maps to one SENSOR_* environment variable.
package config

import (
	"context"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text, json or console output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// AccessLog is the combined-format access log destination: "-" for
	// stdout, a file path, or empty to disable.
	AccessLog string `koanf:"access_log"`

	// TrustProxy honors X-Forwarded-For / X-Real-IP for client addresses.
	TrustProxy bool `koanf:"trust_proxy"`

	// StoreDriver is memory, duckdb or postgres; StoreDSN its connection string.
	StoreDriver string `koanf:"store_driver"`
	StoreDSN    string `koanf:"store_dsn"`

	// StoreMaxConns caps the duckdb and postgres connection pools.
	StoreMaxConns int `koanf:"store_max_conns"`

	// CacheAddr enables the Redis latest-reading cache when set.
	CacheAddr       string `koanf:"cache_addr"`
	CacheTTLSeconds int    `koanf:"cache_ttl_seconds"`

	// MQTTBroker enables publishing each stored reading when set,
	// e.g. "tcp://localhost:1883".
	MQTTBroker   string `koanf:"mqtt_broker"`
	MQTTTopic    string `koanf:"mqtt_topic"`
	MQTTClientID string `koanf:"mqtt_client_id"`

	// MQTTQoS is 0, 1 or 2. MQTTRetain keeps the last reading on the broker
	// for late subscribers. MQTTTimeoutSeconds bounds connect and publish.
	MQTTQoS            int  `koanf:"mqtt_qos"`
	MQTTRetain         bool `koanf:"mqtt_retain"`
	MQTTTimeoutSeconds int  `koanf:"mqtt_timeout_seconds"`

	// Credentials. Passwords starting with "$2" are bcrypt hashes.
	AdminUsername  string `koanf:"admin_username"`
	AdminPassword  string `koanf:"admin_password"`
	ViewerUsername string `koanf:"viewer_username"`
	ViewerPassword string `koanf:"viewer_password"`

	// AllowedIPs is a comma separated list of addresses or CIDRs.
	// Empty allows everyone.
	AllowedIPs string `koanf:"allowed_ips"`

	// RateLimitWindowSeconds and MaxRequests bound requests per client IP.
	// MaxRequests <= 0 disables limiting.
	RateLimitWindowSeconds int `koanf:"rate_limit_window_seconds"`
	MaxRequests            int `koanf:"max_requests"`

	// DefaultPerPage and MaxPerPage shape GET /readings pagination.
	DefaultPerPage int `koanf:"default_per_page"`
	MaxPerPage     int `koanf:"max_per_page"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":5000",
		AccessLog:              "-",
		StoreDriver:            "duckdb",
		StoreDSN:               "sensor_data.duckdb",
		StoreMaxConns:          8,
		CacheTTLSeconds:        300,
		MQTTTopic:              "sensors/readings",
		MQTTClientID:           "sensorboard",
		MQTTQoS:                1,
		MQTTRetain:             true,
		MQTTTimeoutSeconds:     5,
		AdminUsername:          "admin",
		ViewerUsername:         "viewer",
		RateLimitWindowSeconds: 60,
		MaxRequests:            10,
		DefaultPerPage:         100,
		MaxPerPage:             1000,
	}
}

// AllowedIPList splits AllowedIPs into trimmed, non-empty entries.
func (c *Config) AllowedIPList() []string {
	var out []string
	for _, s := range strings.Split(c.AllowedIPs, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CacheTTL returns the cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// MQTTTimeout returns the broker connect and publish bound.
func (c *Config) MQTTTimeout() time.Duration {
	return time.Duration(c.MQTTTimeoutSeconds) * time.Second
}

// RateLimitWindow returns the rate limiting window.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
