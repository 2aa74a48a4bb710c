package storage

import (
	"context"
	"time"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

// EventRecord is a single append-only event log row (C16).
type EventRecord struct {
	EventID       string
	TenantID      string
	EventType     string
	CorrelationID string
	Timestamp     time.Time
	Sequence      int64
	Language      string
	Payload       []byte
}

// EventLogStats answers the event log statistics call (§4.8).
type EventLogStats struct {
	TotalEvents     int64
	StorageSizeBytes int64
	Oldest          *time.Time
	Newest          *time.Time
	EventsByType    map[string]int64
}

// EventLog is the C16 append-only event log, keyed by (tenant_id, event_id)
// with a strictly increasing per-tenant sequence (I8, P10).
type EventLog struct {
	db *SQLBackend
}

// NewEventLog wraps an already-constructed SQL backend.
func NewEventLog(b *SQLBackend) *EventLog { return &EventLog{db: b} }

// StoreEvent assigns the next per-tenant sequence and appends the row.
// The sequence assignment and insert happen inside one transaction so two
// concurrent StoreEvent calls for the same tenant can never observe (or
// reuse) the same sequence number.
func (l *EventLog) StoreEvent(ctx context.Context, rec EventRecord) (int64, error) {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return 0, err
	}
	rec.TenantID = tenantID
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	tx, err := l.db.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, kerrors.Transient("event_log_store", err)
	}
	defer tx.Rollback()

	var nextSeq int64
	seqQuery := l.db.rebind(`SELECT COALESCE(MAX(sequence), -1) + 1 FROM event_log WHERE tenant_id = ?`)
	if err := tx.GetContext(ctx, &nextSeq, seqQuery, tenantID); err != nil {
		return 0, kerrors.Transient("event_log_store", err)
	}

	insertQuery := l.db.rebind(`
		INSERT INTO event_log (tenant_id, event_id, event_type, correlation_id, timestamp, sequence, language, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if _, err := tx.ExecContext(ctx, insertQuery, tenantID, rec.EventID, rec.EventType, rec.CorrelationID, rec.Timestamp, nextSeq, rec.Language, rec.Payload); err != nil {
		return 0, kerrors.Transient("event_log_store", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, kerrors.Transient("event_log_store", err)
	}
	return nextSeq, nil
}

func (l *EventLog) query(ctx context.Context, where string, args ...interface{}) ([]EventRecord, error) {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	fullArgs := append([]interface{}{tenantID}, args...)
	q := l.db.rebind(`
		SELECT tenant_id, event_id, event_type, correlation_id, timestamp, sequence, language, payload
		FROM event_log WHERE tenant_id = ? ` + where + ` ORDER BY sequence ASC
	`)

	type row struct {
		TenantID      string    `db:"tenant_id"`
		EventID       string    `db:"event_id"`
		EventType     string    `db:"event_type"`
		CorrelationID string    `db:"correlation_id"`
		Timestamp     time.Time `db:"timestamp"`
		Sequence      int64     `db:"sequence"`
		Language      string    `db:"language"`
		Payload       []byte    `db:"payload"`
	}
	var rows []row
	if err := l.db.db.SelectContext(ctx, &rows, q, fullArgs...); err != nil {
		return nil, kerrors.Transient("event_log_query", err)
	}

	out := make([]EventRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, EventRecord{
			EventID:       r.EventID,
			TenantID:      r.TenantID,
			EventType:     r.EventType,
			CorrelationID: r.CorrelationID,
			Timestamp:     r.Timestamp,
			Sequence:      r.Sequence,
			Language:      r.Language,
			Payload:       r.Payload,
		})
	}
	return out, nil
}

// GetEventsByPattern matches event_type against a SQL LIKE pattern.
func (l *EventLog) GetEventsByPattern(ctx context.Context, likePattern string) ([]EventRecord, error) {
	return l.query(ctx, "AND event_type LIKE ?", likePattern)
}

// GetEventsByTimeRange returns events with start <= timestamp <= end.
func (l *EventLog) GetEventsByTimeRange(ctx context.Context, start, end time.Time) ([]EventRecord, error) {
	return l.query(ctx, "AND timestamp >= ? AND timestamp <= ?", start, end)
}

// GetEventsByCorrelationID returns every event sharing a correlation id.
func (l *EventLog) GetEventsByCorrelationID(ctx context.Context, correlationID string) ([]EventRecord, error) {
	return l.query(ctx, "AND correlation_id = ?", correlationID)
}

// CleanupOldEvents deletes events older than before and returns the count
// removed. Sequence gaps from this delete are expected (I8 permits gaps on
// delete, just never on insert).
func (l *EventLog) CleanupOldEvents(ctx context.Context, before time.Time) (int64, error) {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return 0, err
	}
	query := l.db.rebind(`DELETE FROM event_log WHERE tenant_id = ? AND timestamp < ?`)
	res, err := l.db.db.ExecContext(ctx, query, tenantID, before)
	if err != nil {
		return 0, kerrors.Transient("event_log_cleanup", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, kerrors.Transient("event_log_cleanup", err)
	}
	return n, nil
}

// Stats reports total_events, storage_size_bytes (sum of payload lengths),
// oldest/newest timestamps, and a per-event-type count.
func (l *EventLog) Stats(ctx context.Context) (EventLogStats, error) {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return EventLogStats{}, err
	}

	var totals struct {
		Total    int64      `db:"total"`
		Size     int64      `db:"size"`
		Oldest   *time.Time `db:"oldest"`
		Newest   *time.Time `db:"newest"`
	}
	q := l.db.rebind(`
		SELECT COUNT(*) AS total, COALESCE(SUM(LENGTH(payload)), 0) AS size,
		       MIN(timestamp) AS oldest, MAX(timestamp) AS newest
		FROM event_log WHERE tenant_id = ?
	`)
	if err := l.db.db.GetContext(ctx, &totals, q, tenantID); err != nil {
		return EventLogStats{}, kerrors.Transient("event_log_stats", err)
	}

	type typeCount struct {
		EventType string `db:"event_type"`
		Count     int64  `db:"count"`
	}
	var counts []typeCount
	cq := l.db.rebind(`SELECT event_type, COUNT(*) AS count FROM event_log WHERE tenant_id = ? GROUP BY event_type`)
	if err := l.db.db.SelectContext(ctx, &counts, cq, tenantID); err != nil {
		return EventLogStats{}, kerrors.Transient("event_log_stats", err)
	}

	byType := make(map[string]int64, len(counts))
	for _, c := range counts {
		byType[c.EventType] = c.Count
	}

	return EventLogStats{
		TotalEvents:      totals.Total,
		StorageSizeBytes: totals.Size,
		Oldest:           totals.Oldest,
		Newest:           totals.Newest,
		EventsByType:     byType,
	}, nil
}
