// Package storage implements the C9 Storage Backend Trait (PostgreSQL and
// SQLite-libsql reference backends) and the C16 event-log / hook-history
// time-series store, all row-filtered by tenant context.
package storage

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

// tenantCtxKey is the context key under which the active tenant id is
// carried. A backend call made without one is a Fatal error (§4.8): tenant
// context MUST be set before access.
type tenantCtxKey struct{}

// WithTenant attaches a tenant id to ctx for the duration of backend calls
// made with it.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tenantID)
}

// TenantFrom extracts the active tenant id, or a Fatal error if absent.
func TenantFrom(ctx context.Context) (string, error) {
	v, ok := ctx.Value(tenantCtxKey{}).(string)
	if !ok || v == "" {
		return "", kerrors.Fatal("tenant context missing", nil)
	}
	return v, nil
}

// Backend is the C9 Storage Backend Trait: a tenant-scoped KV interface with
// batch operations and prefix listing.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	GetBatch(ctx context.Context, keys []string) (map[string][]byte, error)
	SetBatch(ctx context.Context, items map[string][]byte) error
	Clear(ctx context.Context) error
}

// workflowStateKeyPrefix routes workflow keys (custom:workflow_{id}:state)
// to the dedicated workflow_states table instead of the generic kv_store.
const workflowStateKeyPrefix = "custom:workflow_"

func isWorkflowStateKey(key string) (workflowID string, ok bool) {
	if !strings.HasPrefix(key, workflowStateKeyPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(key, workflowStateKeyPrefix)
	if !strings.HasSuffix(rest, ":state") {
		return "", false
	}
	return strings.TrimSuffix(rest, ":state"), true
}

// SQLBackend is the shared sqlx-based implementation behind both reference
// backends (PostgreSQL and SQLite-libsql); only the driver name and
// placeholder style differ, both handled by sqlx.Rebind.
type SQLBackend struct {
	db     *sqlx.DB
	driver string // "postgres" or "sqlite3"
}

// NewSQLBackend wraps an already-open *sqlx.DB. driver is recorded on the
// backend; placeholder binding follows the driver name db was opened with.
func NewSQLBackend(db *sqlx.DB, driver string) *SQLBackend {
	return &SQLBackend{db: db, driver: driver}
}

func (b *SQLBackend) rebind(query string) string {
	return b.db.Rebind(query)
}

// DB exposes the underlying *sqlx.DB for callers that need to run
// migrations or manage the connection's lifecycle directly.
func (b *SQLBackend) DB() *sqlx.DB {
	return b.db
}
