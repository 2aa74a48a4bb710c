package vector

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
	"github.com/flowforge/kernel/kernel/ctx"
)

// Limits bounds a tenant's resource consumption.
type Limits struct {
	MaxVectors         *int
	MaxStorageBytes    *int64
	MaxQueriesPerSec   *float64
	MaxDimensions      *int
	AllowOverflow      bool
	CustomLimits       map[string]interface{}
}

// TenantConfig describes a registered tenant.
type TenantConfig struct {
	TenantID     string
	Name         string
	Limits       Limits
	Active       bool
	Metadata     map[string]interface{}
	CreatedAt    time.Time
	LastAccessed time.Time
	CustomConfig map[string]interface{}
}

// EventBus publishes tenant lifecycle and usage events
// (tenant.{id}.created|deleted|vectors_inserted|vectors_searched).
type EventBus interface {
	Publish(ctx context.Context, eventType string, payload map[string]interface{})
}

type usage struct {
	vectorCount  int
	storageBytes int64
	limiter      *rate.Limiter
}

// Manager is the C15 Multi-Tenant Vector Manager: wraps a Store with
// per-tenant configuration, limits, usage tracking, and event emission.
type Manager struct {
	store *Store
	bus   EventBus

	mu      sync.RWMutex
	tenants map[string]*TenantConfig
	usage   map[string]*usage
}

// NewManager wraps store with tenant isolation. bus may be nil to disable
// event emission.
func NewManager(store *Store, bus EventBus) *Manager {
	return &Manager{
		store:   store,
		bus:     bus,
		tenants: make(map[string]*TenantConfig),
		usage:   make(map[string]*usage),
	}
}

func tenantScope(tenantID string) ctx.Scope { return ctx.TenantScope(tenantID) }

// CreateTenant registers a new tenant and emits tenant.{id}.created.
func (m *Manager) CreateTenant(c Context, cfg TenantConfig) error {
	m.mu.Lock()
	if _, exists := m.tenants[cfg.TenantID]; exists {
		m.mu.Unlock()
		return kerrors.Conflict("tenant already exists")
	}
	cfg.Active = true
	cfg.CreatedAt = time.Now()
	m.tenants[cfg.TenantID] = &cfg
	m.usage[cfg.TenantID] = &usage{limiter: newLimiterFor(cfg.Limits)}
	m.mu.Unlock()

	m.emit(c, "tenant."+cfg.TenantID+".created", map[string]interface{}{"tenant_id": cfg.TenantID})
	return nil
}

func newLimiterFor(limits Limits) *rate.Limiter {
	if limits.MaxQueriesPerSec == nil {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(*limits.MaxQueriesPerSec), 1)
}

// DeleteTenant removes the tenant and cascades a scope delete over its
// vectors.
func (m *Manager) DeleteTenant(c Context, tenantID string) error {
	m.mu.Lock()
	if _, ok := m.tenants[tenantID]; !ok {
		m.mu.Unlock()
		return kerrors.NotFound("tenant", tenantID)
	}
	delete(m.tenants, tenantID)
	delete(m.usage, tenantID)
	m.mu.Unlock()

	m.store.DeleteScope(tenantScope(tenantID))
	m.emit(c, "tenant."+tenantID+".deleted", map[string]interface{}{"tenant_id": tenantID})
	return nil
}

// Suspend marks a tenant inactive.
func (m *Manager) Suspend(tenantID string) error { return m.setActive(tenantID, false) }

// Resume marks a tenant active.
func (m *Manager) Resume(tenantID string) error { return m.setActive(tenantID, true) }

func (m *Manager) setActive(tenantID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.tenants[tenantID]
	if !ok {
		return kerrors.NotFound("tenant", tenantID)
	}
	cfg.Active = active
	return nil
}

// UpdateConfig replaces a tenant's limits/metadata/custom config in place.
func (m *Manager) UpdateConfig(tenantID string, limits Limits, metadata, customConfig map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.tenants[tenantID]
	if !ok {
		return kerrors.NotFound("tenant", tenantID)
	}
	cfg.Limits = limits
	cfg.Metadata = metadata
	cfg.CustomConfig = customConfig
	m.usage[tenantID].limiter = newLimiterFor(limits)
	return nil
}

// CheckLimits enforces active/max_vectors/max_storage_bytes/
// max_queries_per_second/max_dimensions ahead of op. allow_overflow
// downgrades a vector-count/storage breach to a warning (returned as a nil
// error paired with a true overflow flag, left for the caller to log).
func (m *Manager) CheckLimits(tenantID string, op string, dimensions int) (overflow bool, err error) {
	m.mu.RLock()
	cfg, ok := m.tenants[tenantID]
	u := m.usage[tenantID]
	m.mu.RUnlock()

	if !ok {
		return false, kerrors.NotFound("tenant", tenantID)
	}
	if !cfg.Active {
		return false, kerrors.Fatal("tenant is suspended", nil)
	}
	if cfg.Limits.MaxDimensions != nil && dimensions > *cfg.Limits.MaxDimensions {
		return false, kerrors.DimensionMismatch(*cfg.Limits.MaxDimensions, dimensions)
	}
	if u.limiter != nil && !u.limiter.Allow() {
		return false, kerrors.New(kerrors.KindTransient, "query rate limit exceeded")
	}
	if cfg.Limits.MaxVectors != nil && u.vectorCount >= *cfg.Limits.MaxVectors {
		if cfg.Limits.AllowOverflow {
			return true, nil
		}
		return false, kerrors.Conflict("tenant vector limit exceeded")
	}
	if cfg.Limits.MaxStorageBytes != nil && u.storageBytes >= *cfg.Limits.MaxStorageBytes {
		if cfg.Limits.AllowOverflow {
			return true, nil
		}
		return false, kerrors.Conflict("tenant storage limit exceeded")
	}
	return false, nil
}

// Context is a minimal alias so this file need not import the stdlib
// context package under a name that collides with kernel/ctx.
type Context = context.Context

// InsertVectors tags every entry with the tenant's scope/tenant_id, checks
// limits, inserts, and emits tenant.{id}.vectors_inserted.
func (m *Manager) InsertVectors(c Context, tenantID string, entries []Entry) ([]string, error) {
	if len(entries) > 0 {
		if _, err := m.CheckLimits(tenantID, "insert", len(entries[0].Embedding)); err != nil {
			return nil, err
		}
	}

	scope := tenantScope(tenantID)
	for i := range entries {
		entries[i].Scope = scope
		entries[i].TenantID = tenantID
	}

	ids, err := m.store.Insert(entries)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if u, ok := m.usage[tenantID]; ok {
		u.vectorCount += len(ids)
	}
	m.mu.Unlock()

	m.emit(c, "tenant."+tenantID+".vectors_inserted", map[string]interface{}{"tenant_id": tenantID, "count": len(ids)})
	return ids, nil
}

// Search runs a tenant-scoped search and emits tenant.{id}.vectors_searched.
// I7/P9: the scope filter is always applied, so results from one tenant can
// never surface under another tenant's query.
func (m *Manager) Search(c Context, tenantID string, query Query) ([]Result, error) {
	if _, err := m.CheckLimits(tenantID, "search", 0); err != nil {
		return nil, err
	}
	scope := tenantScope(tenantID)
	results, err := m.store.SearchScoped(query, scope)
	if err != nil {
		return nil, err
	}
	m.emit(c, "tenant."+tenantID+".vectors_searched", map[string]interface{}{"tenant_id": tenantID, "result_count": len(results)})
	return results, nil
}

func (m *Manager) emit(c Context, eventType string, payload map[string]interface{}) {
	if m.bus != nil {
		m.bus.Publish(c, eventType, payload)
	}
}
