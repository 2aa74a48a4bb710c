package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

// Get reads a single value, routing workflow-state keys to workflow_states.
func (b *SQLBackend) Get(ctx context.Context, key string) ([]byte, error) {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return nil, err
	}

	if workflowID, ok := isWorkflowStateKey(key); ok {
		return b.getWorkflowState(ctx, tenantID, workflowID)
	}

	var value []byte
	query := b.rebind(`SELECT value FROM kv_store WHERE tenant_id = ? AND key = ?`)
	err = b.db.GetContext(ctx, &value, query, tenantID, key)
	if err == sql.ErrNoRows {
		return nil, kerrors.NotFound("key", key)
	}
	if err != nil {
		return nil, kerrors.Transient("kv_get", err)
	}
	return value, nil
}

// Set writes a single value, routing workflow-state keys to workflow_states.
func (b *SQLBackend) Set(ctx context.Context, key string, value []byte) error {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return err
	}

	if workflowID, ok := isWorkflowStateKey(key); ok {
		return b.setWorkflowState(ctx, tenantID, workflowID, value)
	}

	query := b.rebind(`
		INSERT INTO kv_store (tenant_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if _, err := b.db.ExecContext(ctx, query, tenantID, key, value, time.Now()); err != nil {
		return kerrors.Transient("kv_set", err)
	}
	return nil
}

func (b *SQLBackend) Delete(ctx context.Context, key string) error {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return err
	}
	if workflowID, ok := isWorkflowStateKey(key); ok {
		query := b.rebind(`DELETE FROM workflow_states WHERE tenant_id = ? AND workflow_id = ?`)
		_, err := b.db.ExecContext(ctx, query, tenantID, workflowID)
		return wrapTransient("kv_delete", err)
	}
	query := b.rebind(`DELETE FROM kv_store WHERE tenant_id = ? AND key = ?`)
	_, err = b.db.ExecContext(ctx, query, tenantID, key)
	return wrapTransient("kv_delete", err)
}

func (b *SQLBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.Get(ctx, key)
	if err == nil {
		return true, nil
	}
	if kerrors.KindOf(err) == kerrors.KindNotFound {
		return false, nil
	}
	return false, err
}

func (b *SQLBackend) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	var keys []string
	query := b.rebind(`SELECT key FROM kv_store WHERE tenant_id = ? AND key LIKE ? ORDER BY key`)
	err = b.db.SelectContext(ctx, &keys, query, tenantID, prefix+"%")
	if err != nil {
		return nil, kerrors.Transient("kv_list_keys", err)
	}
	return keys, nil
}

func (b *SQLBackend) GetBatch(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, err := b.Get(ctx, k)
		if err != nil {
			if kerrors.KindOf(err) == kerrors.KindNotFound {
				continue
			}
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (b *SQLBackend) SetBatch(ctx context.Context, items map[string][]byte) error {
	for k, v := range items {
		if err := b.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (b *SQLBackend) Clear(ctx context.Context) error {
	tenantID, err := TenantFrom(ctx)
	if err != nil {
		return err
	}
	query := b.rebind(`DELETE FROM kv_store WHERE tenant_id = ?`)
	if _, err := b.db.ExecContext(ctx, query, tenantID); err != nil {
		return kerrors.Transient("kv_clear", err)
	}
	query = b.rebind(`DELETE FROM workflow_states WHERE tenant_id = ?`)
	_, err = b.db.ExecContext(ctx, query, tenantID)
	return wrapTransient("kv_clear", err)
}

// workflowStateRow mirrors the workflow_states table; session_data holds the
// full JSON payload while status/current_step are extracted columns for
// indexed queries (§4.8).
type workflowStateRow struct {
	SessionData []byte `db:"session_data"`
	Status      string `db:"status"`
	CurrentStep int    `db:"current_step"`
}

func (b *SQLBackend) getWorkflowState(ctx context.Context, tenantID, workflowID string) ([]byte, error) {
	var row workflowStateRow
	query := b.rebind(`SELECT session_data, status, current_step FROM workflow_states WHERE tenant_id = ? AND workflow_id = ?`)
	err := b.db.GetContext(ctx, &row, query, tenantID, workflowID)
	if err == sql.ErrNoRows {
		return nil, kerrors.NotFound("workflow_state", workflowID)
	}
	if err != nil {
		return nil, kerrors.Transient("workflow_state_get", err)
	}
	return row.SessionData, nil
}

func (b *SQLBackend) setWorkflowState(ctx context.Context, tenantID, workflowID string, value []byte) error {
	var extracted struct {
		Status      string `json:"status"`
		CurrentStep int    `json:"current_step"`
	}
	if err := json.Unmarshal(value, &extracted); err != nil {
		return kerrors.Wrap(kerrors.KindValidation, "workflow state payload must be JSON with status/current_step", err)
	}
	if extracted.Status == "" {
		extracted.Status = "pending"
	}

	query := b.rebind(`
		INSERT INTO workflow_states (tenant_id, workflow_id, session_data, status, current_step, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, workflow_id) DO UPDATE SET
			session_data = excluded.session_data,
			status = excluded.status,
			current_step = excluded.current_step,
			updated_at = excluded.updated_at
	`)
	_, err := b.db.ExecContext(ctx, query, tenantID, workflowID, value, extracted.Status, extracted.CurrentStep, time.Now())
	return wrapTransient("workflow_state_set", err)
}

func wrapTransient(op string, err error) error {
	if err == nil {
		return nil
	}
	return kerrors.Transient(op, err)
}
