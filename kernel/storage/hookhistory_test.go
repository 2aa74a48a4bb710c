package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestArchiveExecutionsOnlyDeletesAtOrBelowMinPriority(t *testing.T) {
	b, mock := newMockBackend(t)
	h := NewHookHistory(b)
	ctx := WithTenant(context.Background(), "tenant-1")

	before := time.Now()
	mock.ExpectExec("DELETE FROM hook_history").
		WithArgs("tenant-1", before, 5).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := h.ArchiveExecutions(ctx, before, 5)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	raw := []byte(`{"point":"before_tool_execution","data":{"k":"v"}}`)
	compressed, err := CompressContext(raw)
	require.NoError(t, err)
	require.NotEqual(t, raw, compressed)

	out, err := DecompressContext(compressed)
	require.NoError(t, err)
	require.Equal(t, raw, out)
}
