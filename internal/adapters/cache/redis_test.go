package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/sensorboard/internal/domain/model"
)

func TestEncoding(t *testing.T) {
	convey.Convey("Given a reading with a mode", t, func() {
		r := model.Reading{ID: 9, Value: 12.25, Mode: model.Mode1.Ptr(), Timestamp: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC), Source: "10.0.0.2"}

		b, err := encode(r)
		convey.So(err, convey.ShouldBeNil)
		convey.So(string(b), convey.ShouldNotContainSubstring, "10.0.0.2")

		got, err := decode(b)
		convey.So(err, convey.ShouldBeNil)
		convey.So(got.ID, convey.ShouldEqual, 9)
		convey.So(*got.Mode, convey.ShouldEqual, model.Mode1)
		convey.So(got.Timestamp.Equal(r.Timestamp), convey.ShouldBeTrue)
	})

	convey.Convey("Given garbage or an out-of-range entry", t, func() {
		_, err := decode([]byte("{"))
		convey.So(err, convey.ShouldNotBeNil)

		_, err = decode([]byte(`{"id":1,"value":99,"mode":null,"timestamp":"2026-10-16T08:00:00Z"}`))
		convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
	})
}

func TestNop(t *testing.T) {
	convey.Convey("Given the nop cache", t, func() {
		ctx := context.Background()
		var c Latest = Nop{}
		convey.So(c.Set(ctx, model.Reading{ID: 1}), convey.ShouldBeNil)
		_, ok, err := c.Get(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(ok, convey.ShouldBeFalse)
	})
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("SENSOR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SENSOR_TEST_REDIS_ADDR not set")
	}

	convey.Convey("Given a redis cache", t, func() {
		ctx := context.Background()
		c, err := NewRedis(ctx, addr, WithKey("sensor:test:latest"), WithTTL(time.Minute))
		convey.So(err, convey.ShouldBeNil)
		defer c.Close()
		convey.So(c.Invalidate(ctx), convey.ShouldBeNil)

		_, ok, err := c.Get(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(ok, convey.ShouldBeFalse)

		r := model.Reading{ID: 3, Value: 7.5, Timestamp: time.Now().UTC().Truncate(time.Second)}
		convey.So(c.Set(ctx, r), convey.ShouldBeNil)

		got, ok, err := c.Get(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(got.ID, convey.ShouldEqual, 3)
		convey.So(got.Mode, convey.ShouldBeNil)
	})

	convey.Convey("Given an unreachable address", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := NewRedis(ctx, "127.0.0.1:1")
		convey.So(errors.Is(err, ErrUnavailable), convey.ShouldBeTrue)
	})
}
