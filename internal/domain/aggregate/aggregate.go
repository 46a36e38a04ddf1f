// Package aggregate derives summary values from sets of readings: the latest
// reading, windowed means, period-over-period trend and distribution stats.
//
// Functions here are pure; callers fetch the readings for the relevant
// window and pass them in.
package aggregate

import (
	"math"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/sensorboard/internal/domain/model"
)

// sketchAccuracy is the relative accuracy of percentile estimates.
const sketchAccuracy = 0.01

// Latest returns the most recent reading by timestamp; equal timestamps are
// resolved by the higher id. ok is false when readings is empty.
func Latest(readings []model.Reading) (latest model.Reading, ok bool) {
	for i, r := range readings {
		if i == 0 || latest.Before(r) {
			latest = r
		}
	}
	return latest, len(readings) > 0
}

// Mean returns the arithmetic mean of the values; ok is false when empty.
func Mean(readings []model.Reading) (float64, bool) {
	if len(readings) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range readings {
		sum += r.Value
	}
	return sum / float64(len(readings)), true
}

// Trend returns the signed percentage change of the current mean relative
// to the prior mean. ok is false when either period is empty or the prior
// mean is zero.
func Trend(current, prior []model.Reading) (float64, bool) {
	cur, ok := Mean(current)
	if !ok {
		return 0, false
	}
	prev, ok := Mean(prior)
	if !ok || prev == 0 {
		return 0, false
	}
	return (cur - prev) / prev * 100, true
}

// Summary describes the distribution of readings in a window.
type Summary struct {
	Count   int            `json:"count"`
	Current *float64       `json:"current"`
	Mean    *float64       `json:"mean"`
	Min     *float64       `json:"min"`
	Max     *float64       `json:"max"`
	P50     *float64       `json:"p50"`
	P95     *float64       `json:"p95"`
	Slope   *float64       `json:"slope_per_hour"`
	First   *time.Time     `json:"first,omitempty"`
	Last    *time.Time     `json:"last,omitempty"`
	ByMode  map[string]int `json:"by_mode,omitempty"`
}

// Summarize computes a Summary. Fields are nil when there is not enough data:
// everything for an empty input, Slope for fewer than three readings.
func Summarize(readings []model.Reading) Summary {
	s := Summary{Count: len(readings)}
	if len(readings) == 0 {
		return s
	}

	minV, maxV := math.MaxFloat64, -math.MaxFloat64
	var sum float64
	first, last := readings[0], readings[0]
	byMode := make(map[string]int, 3)
	for _, r := range readings {
		sum += r.Value
		minV = math.Min(minV, r.Value)
		maxV = math.Max(maxV, r.Value)
		if r.Before(first) {
			first = r
		}
		if last.Before(r) {
			last = r
		}
		byMode[modeKey(r.Mode)]++
	}

	mean := sum / float64(len(readings))
	s.Mean, s.Min, s.Max = &mean, &minV, &maxV
	cur := last.Value
	s.Current = &cur
	ft, lt := first.Timestamp, last.Timestamp
	s.First, s.Last = &ft, &lt
	s.ByMode = byMode

	s.P50, s.P95 = percentiles(readings)

	if slope, ok := Slope(readings); ok {
		s.Slope = &slope
	}
	return s
}

// percentiles estimates the median and 95th percentile of the values. Both
// are nil if the sketch cannot be built or rejects a value.
func percentiles(readings []model.Reading) (p50, p95 *float64) {
	sketch, err := ddsketch.NewDefaultDDSketch(sketchAccuracy)
	if err != nil {
		return nil, nil
	}
	for _, r := range readings {
		if err := sketch.Add(r.Value); err != nil {
			return nil, nil
		}
	}
	if v, err := sketch.GetValueAtQuantile(0.50); err == nil {
		p50 = &v
	}
	if v, err := sketch.GetValueAtQuantile(0.95); err == nil {
		p95 = &v
	}
	return p50, p95
}

// Slope fits value against time with ordinary least squares and returns the
// change per hour. ok is false with fewer than three readings or when all
// readings share one timestamp.
func Slope(readings []model.Reading) (float64, bool) {
	if len(readings) < 3 {
		return 0, false
	}
	xs, ys := Series(readings)
	origin := xs[0]
	varies := false
	for i := range xs {
		xs[i] = (xs[i] - origin) / 3600
		if xs[i] != 0 {
			varies = true
		}
	}
	if !varies {
		return 0, false
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, false
	}
	return beta, true
}

// Series returns parallel slices of unix seconds and values, in input order.
func Series(readings []model.Reading) (xs, ys []float64) {
	xs = make([]float64, len(readings))
	ys = make([]float64, len(readings))
	for i, r := range readings {
		xs[i] = float64(r.Timestamp.UnixNano()) / float64(time.Second)
		ys[i] = r.Value
	}
	return xs, ys
}

func modeKey(m *model.Mode) string {
	switch {
	case m == nil:
		return "none"
	case *m == model.Mode1:
		return "1"
	default:
		return "0"
	}
}
