// Package cache keeps the most recent reading close to the dashboard so the
// common "latest value" lookup skips the store.
package cache

import (
	"context"

	"github.com/okian/sensorboard/internal/domain/model"
)

// Latest caches a single reading: the newest one stored.
type Latest interface {
	// Get returns the cached reading; ok is false on a miss.
	Get(ctx context.Context) (r model.Reading, ok bool, err error)
	// Set replaces the cached reading.
	Set(ctx context.Context, r model.Reading) error
	// Invalidate drops the cached reading.
	Invalidate(ctx context.Context) error
	Close() error
}

// Nop never holds anything. It is used when no cache is configured.
type Nop struct{}

var _ Latest = Nop{}

func (Nop) Get(context.Context) (model.Reading, bool, error) { return model.Reading{}, false, nil }
func (Nop) Set(context.Context, model.Reading) error         { return nil }
func (Nop) Invalidate(context.Context) error                 { return nil }
func (Nop) Close() error                                     { return nil }
