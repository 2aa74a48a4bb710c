package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

func newMockBackend(t *testing.T) (*SQLBackend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sdb := sqlx.NewDb(db, "sqlmock")
	return NewSQLBackend(sdb, "sqlite3"), mock
}

func TestGetWithoutTenantContextIsFatal(t *testing.T) {
	b, _ := newMockBackend(t)
	_, err := b.Get(context.Background(), "some-key")
	require.Error(t, err)
	require.Equal(t, kerrors.KindFatal, kerrors.KindOf(err))
}

func TestGetRoutesWorkflowStateKeys(t *testing.T) {
	b, mock := newMockBackend(t)
	ctx := WithTenant(context.Background(), "tenant-1")

	rows := sqlmock.NewRows([]string{"session_data", "status", "current_step"}).
		AddRow([]byte(`{"step":"1"}`), "running", 1)
	mock.ExpectQuery("SELECT session_data, status, current_step FROM workflow_states").
		WithArgs("tenant-1", "wf-42").
		WillReturnRows(rows)

	value, err := b.Get(ctx, "custom:workflow_wf-42:state")
	require.NoError(t, err)
	require.JSONEq(t, `{"step":"1"}`, string(value))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetWorkflowStateUpsertsExtractedColumns(t *testing.T) {
	b, mock := newMockBackend(t)
	ctx := WithTenant(context.Background(), "tenant-1")

	mock.ExpectExec("INSERT INTO workflow_states").
		WithArgs("tenant-1", "wf-42", []byte(`{"status":"completed","current_step":3}`), "completed", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := b.Set(ctx, "custom:workflow_wf-42:state", []byte(`{"status":"completed","current_step":3}`))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsWorkflowStateKey(t *testing.T) {
	id, ok := isWorkflowStateKey("custom:workflow_abc:state")
	require.True(t, ok)
	require.Equal(t, "abc", id)

	_, ok = isWorkflowStateKey("plain:key")
	require.False(t, ok)
}
