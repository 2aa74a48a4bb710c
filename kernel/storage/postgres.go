package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

// OpenPostgres connects to PostgreSQL and returns a Backend backed by it.
// Tenant isolation comes from the application-level tenant_id filters (§6);
// the migrations in this module do not enable Row-Level Security.
func OpenPostgres(ctx context.Context, dsn string) (*SQLBackend, error) {
	if dsn == "" {
		return nil, kerrors.Validation("dsn", "postgres DSN is required")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, kerrors.Fatal("failed to open postgres connection", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, kerrors.Fatal("failed to ping postgres", err)
	}

	return NewSQLBackend(db, "postgres"), nil
}
