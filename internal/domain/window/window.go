// Package window defines the relative time windows used to filter readings
// for display and aggregation, and the explicit ranges they resolve to.
package window

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/sensorboard/internal/domain/model"
)

// Window is a named relative time range ending at "now".
type Window string

// Supported windows.
const (
	Hour  Window = "hour"
	Day   Window = "day"
	Week  Window = "week"
	Month Window = "month"
)

// All lists the windows in ascending length.
var All = []Window{Hour, Day, Week, Month}

var hours = map[Window]int{
	Hour:  1,
	Day:   24,
	Week:  168,
	Month: 720,
}

// Parse resolves a window name. Matching is case-insensitive.
func Parse(s string) (Window, error) {
	w := Window(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := hours[w]; !ok {
		return "", fmt.Errorf("%w: invalid period %q, must be one of: %s", model.ErrValidation, s, names())
	}
	return w, nil
}

func names() string {
	parts := make([]string, len(All))
	for i, w := range All {
		parts[i] = string(w)
	}
	return strings.Join(parts, ", ")
}

// Hours returns the window length in hours; zero for unknown windows.
func (w Window) Hours() int { return hours[w] }

// Duration returns the window length.
func (w Window) Duration() time.Duration { return time.Duration(hours[w]) * time.Hour }

// Range resolves w relative to now: [now-d, now].
func (w Window) Range(now time.Time) Range {
	now = now.UTC()
	return Range{Start: now.Add(-w.Duration()), End: now}
}

// Prior returns the period of equal length immediately preceding
// w.Range(now). It is half-open, [now-2d, now-d), so no reading is
// counted in both periods.
func (w Window) Prior(now time.Time) Range {
	cur := w.Range(now)
	return Range{Start: cur.Start.Add(-w.Duration()), End: cur.Start, OpenEnd: true}
}

// Range is an explicit time range. Both bounds are inclusive unless
// OpenEnd is set; a zero bound is unbounded.
type Range struct {
	Start   time.Time
	End     time.Time
	OpenEnd bool
}

// NewRange builds an inclusive range and rejects inverted bounds.
func NewRange(start, end time.Time) (Range, error) {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return Range{}, fmt.Errorf("%w: range end %s is before start %s", model.ErrValidation,
			end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	}
	return Range{Start: start.UTC(), End: end.UTC()}, nil
}

// Contains reports whether t falls inside r.
func (r Range) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if r.End.IsZero() {
		return true
	}
	if r.OpenEnd {
		return t.Before(r.End)
	}
	return !t.After(r.End)
}

// Spec selects readings either by a relative window or an explicit range.
// A non-empty Window takes precedence.
type Spec struct {
	Window Window
	Range  Range
	Mode   *model.Mode
}

// Resolve returns the concrete range for s at time now.
func (s Spec) Resolve(now time.Time) Range {
	if s.Window != "" {
		return s.Window.Range(now)
	}
	return s.Range
}
