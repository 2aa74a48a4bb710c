package ctx

import (
	"strings"
	"sync"

	"github.com/PaesslerAG/jsonpath"
	"github.com/google/uuid"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

// ExecutionContext is the C6 Hierarchical Execution Context: scoped,
// inheritance-governed, and the vehicle that connects every component.
type ExecutionContext struct {
	ID             string
	ParentID       string
	Scope          Scope
	Inheritance    InheritancePolicy
	ConversationID string
	UserID         string
	SessionID      string

	mu   sync.RWMutex
	data map[string]interface{}

	SharedMemory    *SharedMemory
	State           StateAccess
	Events          EventEmitter
	Metadata        map[string]string
	SecurityContext *string // opaque signed blob; nil when absent
}

// New constructs a root context: fresh id, Global scope, Inherit policy,
// empty data, and a fresh SharedMemory handle.
func New() *ExecutionContext {
	return &ExecutionContext{
		ID:           uuid.NewString(),
		Scope:        Global,
		Inheritance:  Inherit,
		data:         make(map[string]interface{}),
		SharedMemory: NewSharedMemory(),
		Metadata:     make(map[string]string),
	}
}

// conversationKeys are copied by InheritancePolicy::Copy (I5): "conversation
// context only".
var conversationKeys = map[string]bool{
	"conversation_id":      true,
	"conversation_context": true,
	"conversation_history": true,
}

// CreateChild builds a descendant context per I4/I5:
//   - shared_memory, state, events, metadata, and security_context are
//     always propagated (service handles, not data).
//   - data population depends on policy:
//     Isolate: no data copied.
//     Inherit: all data cloned.
//     Copy: only conversation-context keys cloned.
//     Share: all data cloned, each key renamed with a "shared:" prefix.
func (c *ExecutionContext) CreateChild(scope Scope, policy InheritancePolicy) *ExecutionContext {
	c.mu.RLock()
	defer c.mu.RUnlock()

	child := &ExecutionContext{
		ID:              uuid.NewString(),
		ParentID:        c.ID,
		Scope:           scope,
		Inheritance:     policy,
		ConversationID:  c.ConversationID,
		UserID:          c.UserID,
		SessionID:       c.SessionID,
		data:            make(map[string]interface{}),
		SharedMemory:    c.SharedMemory, // I4: service handle, always shared
		State:           c.State,        // I4
		Events:          c.Events,       // I4
		Metadata:        cloneStringMap(c.Metadata),
		SecurityContext: c.SecurityContext,
	}

	switch policy {
	case Isolate:
		// no data copied
	case Inherit:
		for k, v := range c.data {
			child.data[k] = v
		}
	case Copy:
		for k, v := range c.data {
			if conversationKeys[k] {
				child.data[k] = v
			}
		}
	case Share:
		for k, v := range c.data {
			child.data["shared:"+k] = v
		}
	}

	return child
}

// Get checks local data, then falls back to shared memory under the
// context's own scope. It does not walk up the parent tree.
func (c *ExecutionContext) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	if v, ok := c.data[key]; ok {
		c.mu.RUnlock()
		return v, true
	}
	c.mu.RUnlock()
	if c.SharedMemory != nil {
		return c.SharedMemory.Get(c.Scope, key)
	}
	return nil, false
}

// GetPath reads key's value (local data, falling back to shared memory,
// same resolution as Get) and evaluates a JSONPath expression against it.
// Used when a hook or workflow step stores a nested JSON-shaped document
// under one key and a later step only needs one field out of it, e.g.
// GetPath("request", "$.headers.authorization").
func (c *ExecutionContext) GetPath(key, path string) (interface{}, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, kerrors.NotFound("context_key", key)
	}
	result, err := jsonpath.Get(path, v)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindValidation, "evaluate JSON path", err)
	}
	return result, nil
}

// Set writes to local data.
func (c *ExecutionContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// SetShared writes to shared memory under the context's own scope.
func (c *ExecutionContext) SetShared(key string, value interface{}) {
	if c.SharedMemory != nil {
		c.SharedMemory.Set(c.Scope, key, value)
	}
}

// GetShared reads shared memory under an arbitrary scope.
func (c *ExecutionContext) GetShared(scope Scope, key string) (interface{}, bool) {
	if c.SharedMemory == nil {
		return nil, false
	}
	return c.SharedMemory.Get(scope, key)
}

// Merge clones all of other's data over self's data.
func (c *ExecutionContext) Merge(other *ExecutionContext) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range other.data {
		c.data[k] = v
	}
}

// HasCapability tests the "capabilities" array in data.
func (c *ExecutionContext) HasCapability(capability string) bool {
	v, ok := c.Get("capabilities")
	if !ok {
		return false
	}
	switch caps := v.(type) {
	case []string:
		for _, cp := range caps {
			if cp == capability {
				return true
			}
		}
	case []interface{}:
		for _, cp := range caps {
			if s, ok := cp.(string); ok && s == capability {
				return true
			}
		}
	case string:
		return strings.Contains(caps, capability)
	}
	return false
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
