// Package repository defines the reading store interface and its drivers.
package repository

import (
	"context"
	"time"

	"github.com/okian/sensorboard/internal/domain/model"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

// Filter selects readings. Zero From/To are unbounded; set bounds are
// inclusive unless ToExclusive is set. Results are ordered by
// (timestamp, id), ascending unless Desc. Limit <= 0 means no limit.
type Filter struct {
	From        time.Time
	To          time.Time
	ToExclusive bool
	Mode        *model.Mode
	Desc        bool
	Offset      int
	Limit       int
}

// Store persists readings. Readings are append-only: nothing updates or
// deletes a stored reading.
type Store interface {
	// Append validates r, assigns its id (and timestamp when zero) and
	// persists it. The returned reading is what later reads will see.
	Append(ctx context.Context, r model.Reading) (model.Reading, error)

	// List returns readings matching f.
	List(ctx context.Context, f Filter) ([]model.Reading, error)

	// Count returns the number of readings matching f, ignoring
	// Offset, Limit and Desc.
	Count(ctx context.Context, f Filter) (int, error)

	// Latest returns the most recent reading.
	// Returns ErrNotFound when the store is empty.
	Latest(ctx context.Context) (model.Reading, error)

	Ping(ctx context.Context) error
	Close() error
}
