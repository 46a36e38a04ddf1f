package repository

import (
	"time"

	"github.com/okian/sensorboard/pkg/logger"
)

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	now          func() time.Time
	log          logger.Logger
	maxOpenConns int
}

func defaultOptions() options {
	return options{
		now:          time.Now,
		log:          logger.Nop(),
		maxOpenConns: 8,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the clock used to stamp readings that arrive without a
// timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used for schema and connection messages.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMaxOpenConns caps the SQL connection pool size.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}
