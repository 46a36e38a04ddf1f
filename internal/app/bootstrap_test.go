package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/sensorboard/internal/app"
	"github.com/okian/sensorboard/internal/config"
	"github.com/okian/sensorboard/internal/domain/model"
)

func TestOpen(t *testing.T) {
	Convey("Given a memory store configuration", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		cfg := config.New(ctx)
		cfg.StoreDriver = "memory"

		Convey("When the cache and broker are unreachable", func() {
			cfg.CacheAddr = "127.0.0.1:1"
			cfg.MQTTBroker = "tcp://127.0.0.1:1"
			svc, err := service.Open(ctx, cfg, nil)

			Convey("Then the service still works without them", func() {
				So(err, ShouldBeNil)
				defer svc.Close()
				r, err := svc.Ingest(ctx, model.Reading{Value: 7})
				So(err, ShouldBeNil)
				So(r.ID, ShouldEqual, 1)
			})
		})

		Convey("When the driver is unknown", func() {
			cfg.StoreDriver = "sqlite"
			_, err := service.Open(ctx, cfg, nil)
			So(errors.Is(err, service.ErrBootstrap), ShouldBeTrue)
		})
	})
}
