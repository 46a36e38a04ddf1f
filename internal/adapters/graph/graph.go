// Package graph renders reading time series as PNG charts with gonum/plot.
package graph

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/color"
	"io"
	"regexp"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/okian/sensorboard/internal/domain/aggregate"
	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/internal/domain/window"
	"github.com/okian/sensorboard/pkg/metrics"
)

// ErrUnknownGraph is returned for graph file names that are not served.
var ErrUnknownGraph = fmt.Errorf("graph %w", model.ErrNotFound)

var fileRE = regexp.MustCompile(`^(hourly|daily|weekly|monthly)\.png$`)

// Chart describes one gallery entry.
type Chart struct {
	Window window.Window
	Name   string
	Title  string
	width  vg.Length
}

// File returns the served file name, e.g. "daily.png".
func (c Chart) File() string { return c.Name + ".png" }

var charts = []Chart{
	{Window: window.Hour, Name: "hourly", Title: "Last Hour", width: 10 * vg.Inch},
	{Window: window.Day, Name: "daily", Title: "Last 24 Hours", width: 12 * vg.Inch},
	{Window: window.Week, Name: "weekly", Title: "Last Week", width: 14 * vg.Inch},
	{Window: window.Month, Name: "monthly", Title: "Last Month", width: 15 * vg.Inch},
}

// Charts lists the gallery in ascending window length.
func Charts() []Chart {
	out := make([]Chart, len(charts))
	copy(out, charts)
	return out
}

// ChartFor returns the chart for a window.
func ChartFor(w window.Window) (Chart, bool) {
	for _, c := range charts {
		if c.Window == w {
			return c, true
		}
	}
	return Chart{}, false
}

// ParseFile validates a requested file name such as "weekly.png".
func ParseFile(name string) (Chart, error) {
	m := fileRE.FindStringSubmatch(name)
	if m == nil {
		return Chart{}, fmt.Errorf("%w: %q", ErrUnknownGraph, name)
	}
	for _, c := range charts {
		if c.Name == m[1] {
			return c, nil
		}
	}
	return Chart{}, fmt.Errorf("%w: %q", ErrUnknownGraph, name)
}

var (
	colorMode0 = color.RGBA{R: 0x21, G: 0x96, B: 0xF3, A: 0xFF}
	colorMode1 = color.RGBA{R: 0x4C, G: 0xAF, B: 0x50, A: 0xFF}
	colorNone  = color.RGBA{R: 0x9E, G: 0x9E, B: 0x9E, A: 0xFF}
	colorTrend = color.RGBA{R: 0xE5, G: 0x39, B: 0x35, A: 0xB3}
)

const height = 6 * vg.Inch

// Render draws readings, assumed to lie within rg, as a PNG. An empty
// slice still yields a valid image carrying a "no data" notice.
func Render(w io.Writer, c Chart, rg window.Range, readings []model.Reading) error {
	start := time.Now()
	defer func() {
		metrics.RecordGraphRenderLatency(string(c.Window), float64(time.Since(start).Microseconds())/1000)
	}()

	p, err := build(c, rg, readings)
	if err != nil {
		return err
	}
	width := c.width
	if width == 0 {
		width = 10 * vg.Inch
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("graph.render %s: %w", c.Name, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("graph.render %s: %w", c.Name, err)
	}
	return nil
}

// EmbeddedPNG renders the chart and returns it base64 encoded for use in a
// data: URL.
func EmbeddedPNG(c Chart, rg window.Range, readings []model.Reading) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, c, rg, readings); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func build(c Chart, rg window.Range, readings []model.Reading) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Sensor Readings - " + c.Title
	p.Y.Label.Text = "Reading Value"
	p.X.Tick.Marker = plot.TimeTicks{Format: timeFormat(c.Window)}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = true

	if len(readings) == 0 {
		if err := addNotice(p, rg); err != nil {
			return nil, err
		}
		return p, nil
	}

	groups := []struct {
		label string
		mode  func(*model.Mode) bool
		color color.Color
		glyph draw.GlyphDrawer
	}{
		{"Mode 0", func(m *model.Mode) bool { return m != nil && *m == model.Mode0 }, colorMode0, draw.CircleGlyph{}},
		{"Mode 1", func(m *model.Mode) bool { return m != nil && *m == model.Mode1 }, colorMode1, draw.BoxGlyph{}},
		{"No Mode", func(m *model.Mode) bool { return m == nil }, colorNone, draw.TriangleGlyph{}},
	}
	for _, g := range groups {
		var pts plotter.XYs
		for _, r := range readings {
			if g.mode(r.Mode) {
				pts = append(pts, plotter.XY{X: unix(r.Timestamp), Y: r.Value})
			}
		}
		if len(pts) == 0 {
			continue
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("graph.series %s: %w", g.label, err)
		}
		line.Color = g.color
		line.Width = vg.Points(1.5)
		points.Shape = g.glyph
		points.Color = g.color
		points.Radius = vg.Points(2.5)
		p.Add(line, points)
		p.Legend.Add(g.label, line, points)
	}

	if trend, label, ok := trendLine(readings); ok {
		p.Add(trend)
		p.Legend.Add(label, trend)
	}

	s := aggregate.Summarize(readings)
	p.X.Label.Text = fmt.Sprintf("Current: %.2f   Average: %.2f   Min: %.2f   Max: %.2f", *s.Current, *s.Mean, *s.Min, *s.Max)

	pad := (p.Y.Max - p.Y.Min) * 0.1
	if pad == 0 {
		pad = 1
	}
	p.Y.Min -= pad
	p.Y.Max += pad
	fitX(p, rg)
	return p, nil
}

// trendLine fits a least-squares line through all readings. It needs at
// least three points.
func trendLine(readings []model.Reading) (*plotter.Line, string, bool) {
	if len(readings) < 3 {
		return nil, "", false
	}
	xs, ys := aggregate.Series(readings)
	minX, maxX := xs[0], xs[0]
	for _, x := range xs {
		minX, maxX = min(minX, x), max(maxX, x)
	}
	if minX == maxX {
		return nil, "", false
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	line, err := plotter.NewLine(plotter.XYs{
		{X: minX, Y: alpha + beta*minX},
		{X: maxX, Y: alpha + beta*maxX},
	})
	if err != nil {
		return nil, "", false
	}
	line.Color = colorTrend
	line.Width = vg.Points(1)
	line.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
	return line, fmt.Sprintf("Trend: %+.2f/h", beta*3600), true
}

func addNotice(p *plot.Plot, rg window.Range) error {
	x0, x1 := 0.0, 1.0
	if !rg.Start.IsZero() && !rg.End.IsZero() {
		x0, x1 = unix(rg.Start), unix(rg.End)
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    []plotter.XY{{X: (x0 + x1) / 2, Y: (model.MinValue + model.MaxValue) / 2}},
		Labels: []string{"No data available for this period"},
	})
	if err != nil {
		return fmt.Errorf("graph.notice: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = text.XCenter
		labels.TextStyle[i].Font.Size = vg.Points(14)
	}
	p.Add(labels)
	p.X.Min, p.X.Max = x0, x1
	p.Y.Min, p.Y.Max = model.MinValue, model.MaxValue
	return nil
}

func fitX(p *plot.Plot, rg window.Range) {
	if !rg.Start.IsZero() {
		p.X.Min = min(p.X.Min, unix(rg.Start))
	}
	if !rg.End.IsZero() {
		p.X.Max = max(p.X.Max, unix(rg.End))
	}
}

func timeFormat(w window.Window) string {
	if w == window.Hour || w == window.Day {
		return "15:04"
	}
	return "2006-01-02 15:04"
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
