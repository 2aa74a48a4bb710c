package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

// OpenSQLite connects to a SQLite database file (or ":memory:") and returns
// a Backend backed by it. Used for single-node deployments and tests where
// a PostgreSQL instance isn't available.
func OpenSQLite(ctx context.Context, path string) (*SQLBackend, error) {
	if path == "" {
		return nil, kerrors.Validation("path", "sqlite path is required")
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, kerrors.Fatal("failed to open sqlite connection", err)
	}
	// SQLite serializes writers at the file level; a single connection
	// avoids SQLITE_BUSY under concurrent access from this process.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, kerrors.Fatal("failed to ping sqlite", err)
	}

	return NewSQLBackend(db, "sqlite3"), nil
}
