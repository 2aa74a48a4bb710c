package ctx

import "sync"

// SharedMemory is a scope-keyed transient map (C7): many concurrent readers,
// one writer at a time per scope. It is a service handle — I4 requires it be
// shared, not copied, across the whole context tree.
type SharedMemory struct {
	mu   sync.RWMutex
	data map[string]map[string]interface{} // keyed by Scope.String()
}

// NewSharedMemory constructs an empty shared memory instance.
func NewSharedMemory() *SharedMemory {
	return &SharedMemory{data: make(map[string]map[string]interface{})}
}

// Get reads a key under scope.
func (m *SharedMemory) Get(scope Scope, key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket, ok := m.data[scope.String()]
	if !ok {
		return nil, false
	}
	v, ok := bucket[key]
	return v, ok
}

// Set writes a key under scope.
func (m *SharedMemory) Set(scope Scope, key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[scope.String()]
	if !ok {
		bucket = make(map[string]interface{})
		m.data[scope.String()] = bucket
	}
	bucket[key] = value
}

// Delete removes a key under scope.
func (m *SharedMemory) Delete(scope Scope, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bucket, ok := m.data[scope.String()]; ok {
		delete(bucket, key)
	}
}

// Keys lists all keys currently set under scope.
func (m *SharedMemory) Keys(scope Scope) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket := m.data[scope.String()]
	out := make([]string, 0, len(bucket))
	for k := range bucket {
		out = append(out, k)
	}
	return out
}

// Clone returns a new SharedMemory handle; data is shared by reference (it
// is a service handle, not a value), so Clone here returns the same
// instance. The method exists to make call sites' intent explicit.
func (m *SharedMemory) Clone() *SharedMemory {
	return m
}
