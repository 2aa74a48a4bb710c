package storage

import (
	"context"
	"database/sql"
	"time"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

// SessionRecord is a row in the sessions table.
type SessionRecord struct {
	TenantID       string
	SessionID      string
	SessionData    []byte
	Status         string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpiresAt      *time.Time
	ArtifactCount  int
	UpdatedAt      time.Time
}

// lastAccessedThrottle bounds how often GetSession may write a refreshed
// last_accessed_at back to storage (§6: "throttle refresh to at most once
// per minute").
const lastAccessedThrottle = time.Minute

// SessionStore implements the session storage API over the shared SQL
// backend.
type SessionStore struct {
	db *SQLBackend
}

// NewSessionStore wraps an already-constructed SQL backend.
func NewSessionStore(b *SQLBackend) *SessionStore { return &SessionStore{db: b} }

// CreateSession inserts a new session row with status "active".
func (s *SessionStore) CreateSession(ctx context.Context, rec SessionRecord) error {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return err
	}
	rec.TenantID = tenantID
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.LastAccessedAt = rec.CreatedAt
	rec.UpdatedAt = rec.CreatedAt
	if rec.Status == "" {
		rec.Status = "active"
	}

	query := s.db.rebind(`
		INSERT INTO sessions (tenant_id, session_id, session_data, status, created_at, last_accessed_at, expires_at, artifact_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = s.db.db.ExecContext(ctx, query, rec.TenantID, rec.SessionID, rec.SessionData, rec.Status,
		rec.CreatedAt, rec.LastAccessedAt, rec.ExpiresAt, rec.ArtifactCount, rec.UpdatedAt)
	return wrapTransient("create_session", err)
}

// GetSession reads a session. If more than lastAccessedThrottle has elapsed
// since its last_accessed_at, the read also refreshes that column;
// otherwise it leaves it untouched so repeated reads within the same
// minute never generate extra writes.
func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (SessionRecord, error) {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return SessionRecord{}, err
	}

	var rec SessionRecord
	type row struct {
		TenantID       string       `db:"tenant_id"`
		SessionID      string       `db:"session_id"`
		SessionData    []byte       `db:"session_data"`
		Status         string       `db:"status"`
		CreatedAt      time.Time    `db:"created_at"`
		LastAccessedAt time.Time    `db:"last_accessed_at"`
		ExpiresAt      sql.NullTime `db:"expires_at"`
		ArtifactCount  int          `db:"artifact_count"`
		UpdatedAt      time.Time    `db:"updated_at"`
	}
	var r row
	q := s.db.rebind(`SELECT * FROM sessions WHERE tenant_id = ? AND session_id = ?`)
	err = s.db.db.GetContext(ctx, &r, q, tenantID, sessionID)
	if err == sql.ErrNoRows {
		return SessionRecord{}, kerrors.NotFound("session", sessionID)
	}
	if err != nil {
		return SessionRecord{}, kerrors.Transient("get_session", err)
	}

	rec = SessionRecord{
		TenantID:       r.TenantID,
		SessionID:      r.SessionID,
		SessionData:    r.SessionData,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
		LastAccessedAt: r.LastAccessedAt,
		ArtifactCount:  r.ArtifactCount,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time
		rec.ExpiresAt = &t
	}

	now := time.Now()
	if now.Sub(rec.LastAccessedAt) >= lastAccessedThrottle {
		touch := s.db.rebind(`UPDATE sessions SET last_accessed_at = ? WHERE tenant_id = ? AND session_id = ?`)
		if _, err := s.db.db.ExecContext(ctx, touch, now, tenantID, sessionID); err == nil {
			rec.LastAccessedAt = now
		}
	}
	return rec, nil
}

// UpdateSession overwrites session_data/status/artifact_count/updated_at.
func (s *SessionStore) UpdateSession(ctx context.Context, sessionID string, sessionData []byte, status string, artifactCount int) error {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return err
	}
	query := s.db.rebind(`
		UPDATE sessions SET session_data = ?, status = ?, artifact_count = ?, updated_at = ?
		WHERE tenant_id = ? AND session_id = ?
	`)
	res, err := s.db.db.ExecContext(ctx, query, sessionData, status, artifactCount, time.Now(), tenantID, sessionID)
	if err != nil {
		return kerrors.Transient("update_session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return kerrors.Transient("update_session", err)
	}
	if n == 0 {
		return kerrors.NotFound("session", sessionID)
	}
	return nil
}

// DeleteSession removes a session row.
func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return err
	}
	query := s.db.rebind(`DELETE FROM sessions WHERE tenant_id = ? AND session_id = ?`)
	_, err = s.db.db.ExecContext(ctx, query, tenantID, sessionID)
	return wrapTransient("delete_session", err)
}

// ListActiveSessions returns every session with status = 'active'.
func (s *SessionStore) ListActiveSessions(ctx context.Context) ([]SessionRecord, error) {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	type row struct {
		TenantID       string       `db:"tenant_id"`
		SessionID      string       `db:"session_id"`
		SessionData    []byte       `db:"session_data"`
		Status         string       `db:"status"`
		CreatedAt      time.Time    `db:"created_at"`
		LastAccessedAt time.Time    `db:"last_accessed_at"`
		ExpiresAt      sql.NullTime `db:"expires_at"`
		ArtifactCount  int          `db:"artifact_count"`
		UpdatedAt      time.Time    `db:"updated_at"`
	}
	var rows []row
	q := s.db.rebind(`SELECT * FROM sessions WHERE tenant_id = ? AND status = 'active' ORDER BY last_accessed_at DESC`)
	if err := s.db.db.SelectContext(ctx, &rows, q, tenantID); err != nil {
		return nil, kerrors.Transient("list_active_sessions", err)
	}
	out := make([]SessionRecord, 0, len(rows))
	for _, r := range rows {
		rec := SessionRecord{
			TenantID: r.TenantID, SessionID: r.SessionID, SessionData: r.SessionData, Status: r.Status,
			CreatedAt: r.CreatedAt, LastAccessedAt: r.LastAccessedAt, ArtifactCount: r.ArtifactCount, UpdatedAt: r.UpdatedAt,
		}
		if r.ExpiresAt.Valid {
			t := r.ExpiresAt.Time
			rec.ExpiresAt = &t
		}
		out = append(out, rec)
	}
	return out, nil
}

// CleanupExpired marks past-expiry sessions as "expired" and returns the
// count affected.
func (s *SessionStore) CleanupExpired(ctx context.Context) (int64, error) {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return 0, err
	}
	query := s.db.rebind(`
		UPDATE sessions SET status = 'expired', updated_at = ?
		WHERE tenant_id = ? AND expires_at IS NOT NULL AND expires_at < ? AND status != 'expired'
	`)
	now := time.Now()
	res, err := s.db.db.ExecContext(ctx, query, now, tenantID, now)
	if err != nil {
		return 0, kerrors.Transient("cleanup_expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, kerrors.Transient("cleanup_expired", err)
	}
	return n, nil
}
