package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/sensorboard/internal/config"
)

// isolate drops every SENSOR_* variable for the rest of the test and then
// applies env through t.Setenv.
func isolate(t *testing.T, env map[string]string) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, val, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) {
			t.Setenv(name, val)
			_ = os.Unsetenv(name)
		}
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensor.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadLayers(t *testing.T) {
	ctx := context.Background()

	Convey("With no file and no SENSOR_ variables", t, func() {
		isolate(t, nil)
		cfg, err := config.Load(ctx)
		So(err, ShouldBeNil)
		So(cfg.Addr, ShouldEqual, ":5000")
		So(cfg.LogFormat, ShouldEqual, "text")
		So(cfg.CacheAddr, ShouldBeEmpty)
	})

	Convey("With SENSOR_ variables only", t, func() {
		isolate(t, map[string]string{
			"SENSOR_ADDR":            ":8080",
			"SENSOR_STORE_DRIVER":    "memory",
			"SENSOR_MAX_REQUESTS":    "0",
			"SENSOR_TRUST_PROXY":     "true",
			"SENSOR_ALLOWED_IPS":     "127.0.0.1,10.0.0.0/8",
			"SENSOR_MQTT_QOS":        "2",
			"SENSOR_MQTT_RETAIN":     "false",
			"SENSOR_STORE_MAX_CONNS": "4",
		})
		cfg, err := config.Load(ctx)
		So(err, ShouldBeNil)
		So(cfg.Addr, ShouldEqual, ":8080")
		So(cfg.StoreDriver, ShouldEqual, "memory")
		So(cfg.MaxRequests, ShouldEqual, 0)
		So(cfg.TrustProxy, ShouldBeTrue)
		So(cfg.AllowedIPList(), ShouldResemble, []string{"127.0.0.1", "10.0.0.0/8"})
		So(cfg.MQTTQoS, ShouldEqual, 2)
		So(cfg.MQTTRetain, ShouldBeFalse)
		So(cfg.StoreMaxConns, ShouldEqual, 4)
	})

	Convey("With a YAML file under SENSOR_ variables", t, func() {
		path := writeYAML(t, `
addr: ":9090"
store_driver: postgres
store_dsn: "postgres://sensor@localhost/sensors"
viewer_password: "file-secret"
default_per_page: 50
`)
		isolate(t, map[string]string{"SENSOR_CONFIG": path, "SENSOR_ADDR": ":8080"})
		cfg, err := config.Load(ctx)
		So(err, ShouldBeNil)

		Convey("the variable beats the file", func() {
			So(cfg.Addr, ShouldEqual, ":8080")
		})
		Convey("the file beats the defaults", func() {
			So(cfg.StoreDriver, ShouldEqual, "postgres")
			So(cfg.ViewerPassword, ShouldEqual, "file-secret")
			So(cfg.DefaultPerPage, ShouldEqual, 50)
		})
		Convey("untouched keys keep their defaults", func() {
			So(cfg.MaxPerPage, ShouldEqual, 1000)
		})
	})

	Convey("Load fails with ErrLoadConfig", t, func() {
		for _, env := range []map[string]string{
			{"SENSOR_CONFIG": writeYAML(t, `invalid: yaml: content: [`)},
			{"SENSOR_CONFIG": filepath.Join(t.TempDir(), "absent.yaml")},
			{"SENSOR_MAX_PER_PAGE": "lots"},
		} {
			isolate(t, env)
			cfg, err := config.Load(ctx)
			So(cfg, ShouldBeNil)
			So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
		}
	})
}

func TestLoadValidation(t *testing.T) {
	ctx := context.Background()
	cases := map[string]map[string]string{
		"addr must not be empty":                {"SENSOR_ADDR": ""},
		"store_dsn is required for postgres":    {"SENSOR_STORE_DRIVER": "postgres", "SENSOR_STORE_DSN": ""},
		"default_per_page exceeds max_per_page": {"SENSOR_DEFAULT_PER_PAGE": "200", "SENSOR_MAX_PER_PAGE": "100"},
		"rate_limit_window_seconds":             {"SENSOR_RATE_LIMIT_WINDOW_SECONDS": "0"},
		"cache_ttl_seconds":                     {"SENSOR_CACHE_ADDR": "localhost:6379", "SENSOR_CACHE_TTL_SECONDS": "0"},
		"mqtt_topic":                            {"SENSOR_MQTT_BROKER": "tcp://localhost:1883", "SENSOR_MQTT_TOPIC": ""},
		"mqtt_qos must be 0, 1 or 2":            {"SENSOR_MQTT_QOS": "3"},
		"store_max_conns must be positive":      {"SENSOR_STORE_MAX_CONNS": "0"},
		"mqtt_timeout_seconds":                  {"SENSOR_MQTT_BROKER": "tcp://localhost:1883", "SENSOR_MQTT_TIMEOUT_SECONDS": "0"},
	}

	Convey("Invalid settings are rejected with the offending key", t, func() {
		for want, env := range cases {
			isolate(t, env)
			cfg, err := config.Load(ctx)
			So(cfg, ShouldBeNil)
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, want)
		}
	})
}
