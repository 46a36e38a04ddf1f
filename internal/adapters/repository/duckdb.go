package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb" // registers the "duckdb" database/sql driver

	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/pkg/logger"
	"github.com/okian/sensorboard/pkg/metrics"
)

var duckdbSchema = []string{
	`CREATE SEQUENCE IF NOT EXISTS readings_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS readings (
		id     BIGINT PRIMARY KEY DEFAULT nextval('readings_id_seq'),
		value  DOUBLE NOT NULL CHECK (value >= 0 AND value <= 50),
		mode   SMALLINT,
		ts     TIMESTAMP NOT NULL,
		source VARCHAR
	)`,
}

// DuckDBStore persists readings in an embedded DuckDB database. An empty
// DSN opens a private in-memory database.
type DuckDBStore struct {
	db   *sql.DB
	opts options

	// wmu serializes appends so id order equals arrival order.
	wmu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

var _ Store = (*DuckDBStore)(nil)

// NewDuckDBStore opens dsn and migrates the schema.
func NewDuckDBStore(ctx context.Context, dsn string, opts ...Option) (*DuckDBStore, error) {
	o := applyOptions(opts)

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(o.maxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	s := &DuckDBStore{db: db, opts: o}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	o.log.Info(ctx, "duckdb store ready", logger.String("dsn", displayDSN(dsn)))
	return s, nil
}

func (s *DuckDBStore) migrate(ctx context.Context) error {
	for _, stmt := range duckdbSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate duckdb schema: %w", err)
		}
	}

	// Tables created before readings carried a mode lack the column.
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.columns WHERE table_name = 'readings' AND column_name = 'mode'`,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspect duckdb schema: %w", err)
	}
	if n == 0 {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE readings ADD COLUMN mode SMALLINT`); err != nil {
			return fmt.Errorf("add mode column: %w", err)
		}
		s.opts.log.Info(ctx, "added mode column to readings table")
	}
	return nil
}

func (s *DuckDBStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Append implements Store.Append.
func (s *DuckDBStore) Append(ctx context.Context, r model.Reading) (model.Reading, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryAppendLatency(DriverDuckDB, float64(time.Since(start).Microseconds())/1000)
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
	err := s.db.QueryRowContext(ctx, insertReading, r.Value, modeArg(r.Mode), r.Timestamp, r.Source).Scan(&r.ID)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "append")
		return model.Reading{}, storageErr("repository.duckdb.append", err)
	}
	return r, nil
}

// List implements Store.List.
func (s *DuckDBStore) List(ctx context.Context, f Filter) ([]model.Reading, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(DriverDuckDB, float64(time.Since(start).Microseconds())/1000)
	}()

	if f.Offset < 0 {
		return nil, ErrInvalidFilter
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query, args := buildList(f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "query")
		return nil, storageErr("repository.duckdb.list", err)
	}
	defer rows.Close()

	out := make([]model.Reading, 0)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, storageErr("repository.duckdb.list", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("repository.duckdb.list", err)
	}
	return out, nil
}

// Count implements Store.Count.
func (s *DuckDBStore) Count(ctx context.Context, f Filter) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	query, args := buildCount(f)
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, storageErr("repository.duckdb.count", err)
	}
	return n, nil
}

// Latest implements Store.Latest.
func (s *DuckDBStore) Latest(ctx context.Context) (model.Reading, error) {
	if err := s.checkOpen(); err != nil {
		return model.Reading{}, err
	}
	r, err := scanReading(s.db.QueryRowContext(ctx, selectLatest))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reading{}, ErrNotFound
	}
	if err != nil {
		return model.Reading{}, storageErr("repository.duckdb.latest", err)
	}
	return r, nil
}

// Ping checks database connectivity.
func (s *DuckDBStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("repository.duckdb.ping", err)
	}
	return nil
}

// Close closes the database. It is safe to call more than once.
func (s *DuckDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (model.Reading, error) {
	var (
		r    model.Reading
		mode sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Value, &mode, &r.Timestamp); err != nil {
		return model.Reading{}, err
	}
	r.Mode = modeFromNull(mode.Valid, mode.Int64)
	r.Timestamp = r.Timestamp.UTC()
	return r, nil
}

func displayDSN(dsn string) string {
	if dsn == "" {
		return ":memory:"
	}
	return dsn
}
