// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Accepted reading range, inclusive on both ends.
const (
	MinValue = 0.0
	MaxValue = 50.0
)

// Mode is the optional binary classification tag attached to a reading.
type Mode uint8

// Known modes.
const (
	Mode0 Mode = 0
	Mode1 Mode = 1
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool { return m == Mode0 || m == Mode1 }

// Ptr returns a pointer to a copy of m.
func (m Mode) Ptr() *Mode { return &m }

// ParseMode parses the query/CLI representation of a mode ("0" or "1").
// An empty string yields (nil, nil).
func ParseMode(s string) (*Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || (n != 0 && n != 1) {
		return nil, fmt.Errorf("%w: mode must be either 0 or 1", ErrValidation)
	}
	return Mode(n).Ptr(), nil
}

// Reading is a single stored sensor measurement. Readings are immutable
// once appended; ID and Timestamp are assigned by the store when zero.
type Reading struct {
	ID        int64     `json:"id"`
	Value     float64   `json:"value"`
	Mode      *Mode     `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
	// Source records where the reading came from (client IP, "cli", "csv:<file>").
	Source string `json:"-"`
}

// Validate checks the value range and mode of r.
func (r Reading) Validate() error {
	if err := ValidateValue(r.Value); err != nil {
		return err
	}
	if r.Mode != nil && !r.Mode.Valid() {
		return fmt.Errorf("%w: mode must be either 0 or 1", ErrValidation)
	}
	return nil
}

// ValidateValue rejects NaN, infinities and values outside [MinValue, MaxValue].
func ValidateValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < MinValue || v > MaxValue {
		return fmt.Errorf("%w: reading value must be between %.1f and %.1f", ErrValidation, MinValue, MaxValue)
	}
	return nil
}

// ParseValue parses the textual reading value and validates its range.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: missing or invalid reading parameter, must be a float value", ErrValidation)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: missing or invalid reading parameter, must be a float value", ErrValidation)
	}
	if err := ValidateValue(v); err != nil {
		return 0, err
	}
	return v, nil
}

// Before reports whether r sorts before o: by timestamp, then by id.
func (r Reading) Before(o Reading) bool {
	if !r.Timestamp.Equal(o.Timestamp) {
		return r.Timestamp.Before(o.Timestamp)
	}
	return r.ID < o.ID
}

// String renders r for logs and CLI output.
func (r Reading) String() string {
	mode := "n/a"
	if r.Mode != nil {
		mode = strconv.Itoa(int(*r.Mode))
	}
	return fmt.Sprintf("Reading #%d %.2f (mode:%s) at %s", r.ID, r.Value, mode, r.Timestamp.Format(time.RFC3339))
}
