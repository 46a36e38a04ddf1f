package repository

import (
	"context"
	"fmt"
	"strings"
)

// Open constructs the store named by driver. dsn is ignored by the memory
// driver.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMemory:
		return NewMemoryStore(opts...), nil
	case DriverDuckDB, "":
		return NewDuckDBStore(ctx, dsn, opts...)
	case DriverPostgres, "postgresql", "pgx":
		return NewPostgresStore(ctx, dsn, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
