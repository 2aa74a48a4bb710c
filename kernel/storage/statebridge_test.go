package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/kernel/kernel/ctx"
)

func TestStateBridgeStoreLoadRoundTrip(t *testing.T) {
	b, mock := newMockBackend(t)
	bridge := NewStateBridge(b)
	tenantCtx := WithTenant(context.Background(), "tenant-1")
	scope := ctx.Global

	mock.ExpectExec("INSERT INTO kv_store").
		WithArgs("tenant-1", scope.String()+":counter", []byte("42"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, bridge.Store(tenantCtx, scope, "counter", 42))

	rows := sqlmock.NewRows([]string{"value"}).AddRow([]byte("42"))
	mock.ExpectQuery("SELECT value FROM kv_store").
		WithArgs("tenant-1", scope.String()+":counter").
		WillReturnRows(rows)

	value, ok, err := bridge.Load(tenantCtx, scope, "counter")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 42, value)
}

func TestStateBridgeLoadMissingKeyIsNotFoundNotError(t *testing.T) {
	b, mock := newMockBackend(t)
	bridge := NewStateBridge(b)
	tenantCtx := WithTenant(context.Background(), "tenant-1")
	scope := ctx.Global

	mock.ExpectQuery("SELECT value FROM kv_store").
		WithArgs("tenant-1", scope.String()+":missing").
		WillReturnError(sql.ErrNoRows)

	_, ok, err := bridge.Load(tenantCtx, scope, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
