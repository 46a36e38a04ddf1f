package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/sensorboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":5000")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "duckdb")
			convey.So(cfg.DefaultPerPage, convey.ShouldEqual, 100)
			convey.So(cfg.MaxPerPage, convey.ShouldEqual, 1000)
			convey.So(cfg.MaxRequests, convey.ShouldEqual, 10)
			convey.So(cfg.StoreMaxConns, convey.ShouldEqual, 8)
			convey.So(cfg.MQTTQoS, convey.ShouldEqual, 1)
			convey.So(cfg.MQTTRetain, convey.ShouldBeTrue)
			convey.So(cfg.MQTTTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.RateLimitWindow(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the allow-list splits and trims entries", func() {
			cfg.AllowedIPs = " 10.0.0.1, ,192.168.0.0/16 "
			convey.So(cfg.AllowedIPList(), convey.ShouldResemble, []string{"10.0.0.1", "192.168.0.0/16"})

			cfg.AllowedIPs = ""
			convey.So(cfg.AllowedIPList(), convey.ShouldBeEmpty)
		})
	})
}
