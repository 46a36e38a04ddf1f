package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/pkg/metrics"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS readings (
		id     BIGSERIAL PRIMARY KEY,
		value  DOUBLE PRECISION NOT NULL CHECK (value >= 0 AND value <= 50),
		ts     TIMESTAMPTZ NOT NULL,
		source TEXT
	)`,
	`ALTER TABLE readings ADD COLUMN IF NOT EXISTS mode SMALLINT`,
	`CREATE INDEX IF NOT EXISTS readings_ts_id_idx ON readings (ts, id)`,
}

// PostgresStore persists readings in PostgreSQL through a pgx pool.
//
// Appends are serialized within this process only; several processes
// writing to one database get ids in commit order, not arrival order.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options

	wmu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and migrates the schema.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	o := applyOptions(opts)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = int32(o.maxOpenConns) //nolint:gosec // bounded by config validation

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres schema: %w", err)
		}
	}
	o.log.Info(ctx, "postgres store ready")
	return &PostgresStore{pool: pool, opts: o}, nil
}

func (s *PostgresStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Append implements Store.Append.
func (s *PostgresStore) Append(ctx context.Context, r model.Reading) (model.Reading, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryAppendLatency(DriverPostgres, float64(time.Since(start).Microseconds())/1000)
	}()

	if err := r.Validate(); err != nil {
		return model.Reading{}, err
	}
	if err := s.checkOpen(); err != nil {
		return model.Reading{}, err
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	r = stamp(r, s.opts.now)
	if err := s.pool.QueryRow(ctx, insertReading, r.Value, modeArg(r.Mode), r.Timestamp, r.Source).Scan(&r.ID); err != nil {
		metrics.RecordErrorByComponent("repository", "append")
		return model.Reading{}, storageErr("repository.postgres.append", err)
	}
	return r, nil
}

// List implements Store.List.
func (s *PostgresStore) List(ctx context.Context, f Filter) ([]model.Reading, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(DriverPostgres, float64(time.Since(start).Microseconds())/1000)
	}()

	if f.Offset < 0 {
		return nil, ErrInvalidFilter
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query, args := buildList(f)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "query")
		return nil, storageErr("repository.postgres.list", err)
	}
	defer rows.Close()

	out := make([]model.Reading, 0)
	for rows.Next() {
		r, err := scanPgReading(rows)
		if err != nil {
			return nil, storageErr("repository.postgres.list", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("repository.postgres.list", err)
	}
	return out, nil
}

// Count implements Store.Count.
func (s *PostgresStore) Count(ctx context.Context, f Filter) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	query, args := buildCount(f)
	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, storageErr("repository.postgres.count", err)
	}
	return int(n), nil
}

// Latest implements Store.Latest.
func (s *PostgresStore) Latest(ctx context.Context) (model.Reading, error) {
	if err := s.checkOpen(); err != nil {
		return model.Reading{}, err
	}
	r, err := scanPgReading(s.pool.QueryRow(ctx, selectLatest))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reading{}, ErrNotFound
	}
	if err != nil {
		return model.Reading{}, storageErr("repository.postgres.latest", err)
	}
	return r, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.pool.Ping(ctx); err != nil {
		return storageErr("repository.postgres.ping", err)
	}
	return nil
}

// Close closes the pool. It is safe to call more than once.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.pool.Close()
	}
	return nil
}

func scanPgReading(row pgx.Row) (model.Reading, error) {
	var (
		r    model.Reading
		mode *int16
	)
	if err := row.Scan(&r.ID, &r.Value, &mode, &r.Timestamp); err != nil {
		return model.Reading{}, err
	}
	if mode != nil {
		r.Mode = modeFromNull(true, int64(*mode))
	}
	r.Timestamp = r.Timestamp.UTC()
	return r, nil
}
