package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/pkg/metrics"
)

// DefaultKey is the Redis key holding the latest reading.
const DefaultKey = "sensor:latest"

// ErrUnavailable wraps connection failures at construction time.
var ErrUnavailable = errors.New("cache unavailable")

// Option configures a Redis cache.
type Option func(*Redis)

// WithKey overrides the Redis key.
func WithKey(key string) Option {
	return func(r *Redis) {
		if key != "" {
			r.key = key
		}
	}
}

// WithTTL sets the entry lifetime. Entries expire so readings that reach
// the store without passing through this process, such as a second server
// or a direct database load, show up within one TTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// Redis is a write-through cache of the latest reading.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ Latest = (*Redis)(nil)

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr string, opts ...Option) (*Redis, error) {
	r := &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    DefaultKey,
		ttl:    5 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		_ = r.client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, addr, err)
	}
	return r, nil
}

// cachedReading is the stored form. Reading hides Source from JSON, and
// the cache has no use for it either.
type cachedReading struct {
	ID        int64     `json:"id"`
	Value     float64   `json:"value"`
	Mode      *int      `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
}

func encode(r model.Reading) ([]byte, error) {
	c := cachedReading{ID: r.ID, Value: r.Value, Timestamp: r.Timestamp.UTC()}
	if r.Mode != nil {
		m := int(*r.Mode)
		c.Mode = &m
	}
	return json.Marshal(c)
}

func decode(b []byte) (model.Reading, error) {
	var c cachedReading
	if err := json.Unmarshal(b, &c); err != nil {
		return model.Reading{}, err
	}
	r := model.Reading{ID: c.ID, Value: c.Value, Timestamp: c.Timestamp.UTC()}
	if c.Mode != nil {
		r.Mode = model.Mode(*c.Mode).Ptr()
	}
	return r, r.Validate()
}

// Get implements Latest.
func (r *Redis) Get(ctx context.Context) (model.Reading, bool, error) {
	b, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheMiss()
		return model.Reading{}, false, nil
	}
	if err != nil {
		metrics.RecordCacheError()
		return model.Reading{}, false, fmt.Errorf("cache get: %w", err)
	}
	reading, err := decode(b)
	if err != nil {
		// A corrupt entry is a miss; drop it so the next Set repairs it.
		metrics.RecordCacheError()
		_ = r.client.Del(ctx, r.key).Err()
		return model.Reading{}, false, nil
	}
	metrics.RecordCacheHit()
	return reading, true, nil
}

// Set implements Latest.
func (r *Redis) Set(ctx context.Context, reading model.Reading) error {
	b, err := encode(reading)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key, b, r.ttl).Err(); err != nil {
		metrics.RecordCacheError()
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate implements Latest.
func (r *Redis) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		metrics.RecordCacheError()
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
