// Package sqldb opens database/sql pools for the relational flat backends.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

// Driver names registered by the blank imports above.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Open connects and pings. An unreachable database is returned as an error so startup can fail fast.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is empty", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	switch driver {
	case DriverSQLite:
		// modernc sqlite serializes writers; a single connection avoids SQLITE_BUSY under tests.
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}
