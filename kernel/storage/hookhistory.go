package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"time"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
	"github.com/lib/pq"
)

// HookExecutionRecord is a row in hook_history (C16).
type HookExecutionRecord struct {
	ExecutionID         string
	TenantID            string
	HookID              string
	HookType            string
	CorrelationID        string
	HookContext         []byte // compressed
	ResultData          []byte
	Timestamp           time.Time
	DurationMS          int64
	TriggeringComponent string
	ComponentID         string
	ModifiedOperation   bool
	Tags                []string
	RetentionPriority   int
	ContextSize         int
	ContainsSensitiveData bool
	Metadata            []byte
}

// HookHistory is the C16 hook execution history store.
type HookHistory struct {
	db *SQLBackend
}

// NewHookHistory wraps an already-constructed SQL backend.
func NewHookHistory(b *SQLBackend) *HookHistory { return &HookHistory{db: b} }

// CompressContext gzips a raw hook-context payload before it is persisted
// into the hook_context BYTES column.
func CompressContext(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, kerrors.Wrap(kerrors.KindFatal, "failed to compress hook context", err)
	}
	if err := w.Close(); err != nil {
		return nil, kerrors.Wrap(kerrors.KindFatal, "failed to compress hook context", err)
	}
	return buf.Bytes(), nil
}

// DecompressContext reverses CompressContext.
func DecompressContext(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindFatal, "failed to decompress hook context", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindFatal, "failed to decompress hook context", err)
	}
	return out, nil
}

// RecordExecution inserts a hook execution record. ContextSize is computed
// from the uncompressed context length if the caller left it zero.
func (h *HookHistory) RecordExecution(ctx context.Context, rec HookExecutionRecord) error {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return err
	}
	rec.TenantID = tenantID
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.ContextSize == 0 && len(rec.HookContext) > 0 {
		if raw, err := DecompressContext(rec.HookContext); err == nil {
			rec.ContextSize = len(raw)
		}
	}

	query := h.db.rebind(`
		INSERT INTO hook_history (
			execution_id, tenant_id, hook_id, hook_type, correlation_id, hook_context,
			result_data, timestamp, duration_ms, triggering_component, component_id,
			modified_operation, tags, retention_priority, context_size,
			contains_sensitive_data, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = h.db.db.ExecContext(ctx, query,
		rec.ExecutionID, rec.TenantID, rec.HookID, rec.HookType, rec.CorrelationID, rec.HookContext,
		rec.ResultData, rec.Timestamp, rec.DurationMS, rec.TriggeringComponent, rec.ComponentID,
		rec.ModifiedOperation, pq.Array(rec.Tags), rec.RetentionPriority, rec.ContextSize,
		rec.ContainsSensitiveData, rec.Metadata,
	)
	return wrapTransient("hook_history_record", err)
}

type hookHistoryRow struct {
	ExecutionID            string    `db:"execution_id"`
	TenantID               string    `db:"tenant_id"`
	HookID                 string    `db:"hook_id"`
	HookType               string    `db:"hook_type"`
	CorrelationID          string    `db:"correlation_id"`
	HookContext            []byte    `db:"hook_context"`
	ResultData             []byte    `db:"result_data"`
	Timestamp              time.Time `db:"timestamp"`
	DurationMS             int64     `db:"duration_ms"`
	TriggeringComponent    string    `db:"triggering_component"`
	ComponentID            string    `db:"component_id"`
	ModifiedOperation      bool      `db:"modified_operation"`
	Tags                   pq.StringArray `db:"tags"`
	RetentionPriority      int       `db:"retention_priority"`
	ContextSize            int       `db:"context_size"`
	ContainsSensitiveData  bool      `db:"contains_sensitive_data"`
	Metadata               []byte    `db:"metadata"`
}

func (r hookHistoryRow) toRecord() HookExecutionRecord {
	return HookExecutionRecord{
		ExecutionID:           r.ExecutionID,
		TenantID:              r.TenantID,
		HookID:                r.HookID,
		HookType:              r.HookType,
		CorrelationID:         r.CorrelationID,
		HookContext:           r.HookContext,
		ResultData:            r.ResultData,
		Timestamp:             r.Timestamp,
		DurationMS:            r.DurationMS,
		TriggeringComponent:   r.TriggeringComponent,
		ComponentID:           r.ComponentID,
		ModifiedOperation:     r.ModifiedOperation,
		Tags:                  []string(r.Tags),
		RetentionPriority:     r.RetentionPriority,
		ContextSize:           r.ContextSize,
		ContainsSensitiveData: r.ContainsSensitiveData,
		Metadata:              r.Metadata,
	}
}

// GetByCorrelationID returns every hook execution sharing a correlation id,
// most recent first.
func (h *HookHistory) GetByCorrelationID(ctx context.Context, correlationID string) ([]HookExecutionRecord, error) {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	var rows []hookHistoryRow
	q := h.db.rebind(`
		SELECT * FROM hook_history WHERE tenant_id = ? AND correlation_id = ?
		ORDER BY timestamp DESC
	`)
	if err := h.db.db.SelectContext(ctx, &rows, q, tenantID, correlationID); err != nil {
		return nil, kerrors.Transient("hook_history_query", err)
	}
	out := make([]HookExecutionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord())
	}
	return out, nil
}

// GetByHookID returns a hook's execution history, most recent first.
func (h *HookHistory) GetByHookID(ctx context.Context, hookID string) ([]HookExecutionRecord, error) {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	var rows []hookHistoryRow
	q := h.db.rebind(`
		SELECT * FROM hook_history WHERE tenant_id = ? AND hook_id = ?
		ORDER BY timestamp DESC
	`)
	if err := h.db.db.SelectContext(ctx, &rows, q, tenantID, hookID); err != nil {
		return nil, kerrors.Transient("hook_history_query", err)
	}
	out := make([]HookExecutionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord())
	}
	return out, nil
}

// ArchiveExecutions deletes rows older than beforeDate whose retention
// priority is at or below minPriority, and returns the count removed.
// I9/P11: rows with a higher retention_priority are never touched,
// regardless of age.
func (h *HookHistory) ArchiveExecutions(ctx context.Context, beforeDate time.Time, minPriority int) (int64, error) {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return 0, err
	}
	query := h.db.rebind(`
		DELETE FROM hook_history
		WHERE tenant_id = ? AND timestamp < ? AND retention_priority <= ?
	`)
	res, err := h.db.db.ExecContext(ctx, query, tenantID, beforeDate, minPriority)
	if err != nil {
		return 0, kerrors.Transient("hook_history_archive", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, kerrors.Transient("hook_history_archive", err)
	}
	return n, nil
}
