package graph

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/internal/domain/window"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestParseFile(t *testing.T) {
	Convey("Given served graph names", t, func() {
		for _, c := range Charts() {
			got, err := ParseFile(c.File())
			So(err, ShouldBeNil)
			So(got.Window, ShouldEqual, c.Window)
		}
	})

	Convey("Given anything else", t, func() {
		for _, name := range []string{"", "daily", "daily.jpg", "../daily.png", "yearly.png", "daily.png.bak", "DAILY.png"} {
			_, err := ParseFile(name)
			So(errors.Is(err, ErrUnknownGraph), ShouldBeTrue)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		}
	})

	Convey("Given a window", t, func() {
		c, ok := ChartFor(window.Week)
		So(ok, ShouldBeTrue)
		So(c.File(), ShouldEqual, "weekly.png")
		_, ok = ChartFor(window.Window("year"))
		So(ok, ShouldBeFalse)
	})
}

func TestRender(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	c, _ := ChartFor(window.Day)
	rg := window.Day.Range(now)

	Convey("Given an empty window", t, func() {
		var buf bytes.Buffer
		So(Render(&buf, c, rg, nil), ShouldBeNil)

		Convey("Then a PNG is still produced", func() {
			So(bytes.HasPrefix(buf.Bytes(), pngSignature), ShouldBeTrue)
		})
	})

	Convey("Given readings in every mode", t, func() {
		var rs []model.Reading
		for i := 0; i < 24; i++ {
			var m *model.Mode
			switch i % 3 {
			case 0:
				m = model.Mode0.Ptr()
			case 1:
				m = model.Mode1.Ptr()
			}
			rs = append(rs, model.Reading{ID: int64(i + 1), Value: float64(10 + i%7), Mode: m, Timestamp: rg.Start.Add(time.Duration(i) * time.Hour)})
		}

		var buf bytes.Buffer
		So(Render(&buf, c, rg, rs), ShouldBeNil)
		So(bytes.HasPrefix(buf.Bytes(), pngSignature), ShouldBeTrue)

		Convey("Then the embedded form decodes to the same kind of image", func() {
			enc, err := EmbeddedPNG(c, rg, rs)
			So(err, ShouldBeNil)
			raw, err := base64.StdEncoding.DecodeString(enc)
			So(err, ShouldBeNil)
			So(bytes.HasPrefix(raw, pngSignature), ShouldBeTrue)
		})
	})

	Convey("Given a single reading", t, func() {
		var buf bytes.Buffer
		err := Render(&buf, c, rg, []model.Reading{{ID: 1, Value: 50, Timestamp: now}})
		So(err, ShouldBeNil)
		So(bytes.HasPrefix(buf.Bytes(), pngSignature), ShouldBeTrue)
	})
}

func TestTrendLine(t *testing.T) {
	Convey("Given too few or simultaneous readings", t, func() {
		ts := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
		_, _, ok := trendLine([]model.Reading{{Value: 1, Timestamp: ts}, {Value: 2, Timestamp: ts.Add(time.Hour)}})
		So(ok, ShouldBeFalse)
		_, _, ok = trendLine([]model.Reading{{Value: 1, Timestamp: ts}, {Value: 2, Timestamp: ts}, {Value: 3, Timestamp: ts}})
		So(ok, ShouldBeFalse)
	})

	Convey("Given a rising series", t, func() {
		ts := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
		rs := []model.Reading{{Value: 1, Timestamp: ts}, {Value: 2, Timestamp: ts.Add(time.Hour)}, {Value: 3, Timestamp: ts.Add(2 * time.Hour)}}
		line, label, ok := trendLine(rs)
		So(ok, ShouldBeTrue)
		So(label, ShouldEqual, "Trend: +1.00/h")
		So(line.XYs[1].Y, ShouldAlmostEqual, 3, 1e-6)
	})
}
