package hooks

import (
	"sort"
	"sync"
	"sync/atomic"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

type entry struct {
	hook     Hook
	enabled  bool
	seq      uint64 // registration order, used to break priority ties
}

// Stats summarizes registry contents.
type Stats struct {
	Total      int
	ByPoint    map[HookPoint]int
	ByLanguage map[Language]int
	ByBucket   map[Priority]int
}

// Registry is the C2 Hook Registry: a thread-safe, priority-ordered map from
// HookPoint to registered hooks.
type Registry struct {
	mu            sync.RWMutex
	points        map[HookPoint][]*entry
	globalEnabled atomic.Bool
	enableStats   bool
	seqCounter    uint64
}

// NewRegistry constructs an empty registry with hooks enabled globally.
func NewRegistry(enableStats bool) *Registry {
	r := &Registry{
		points:      make(map[HookPoint][]*entry),
		enableStats: enableStats,
	}
	r.globalEnabled.Store(true)
	return r
}

// Register adds hook under point. Duplicate names at the same point are
// rejected (I2). On success the point's list is resorted by priority,
// ties broken by registration order (I1).
func (r *Registry) Register(point HookPoint, hook Hook) error {
	if hook.Metadata.Name == "" {
		return kerrors.Validation("name", "hook name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.points[point]
	for _, e := range list {
		if e.hook.Metadata.Name == hook.Metadata.Name {
			return kerrors.DuplicateHook(string(point), hook.Metadata.Name)
		}
	}

	r.seqCounter++
	list = append(list, &entry{hook: hook, enabled: true, seq: r.seqCounter})
	sortEntries(list)
	r.points[point] = list
	return nil
}

// RegisterBulk registers every (point, hook) pair in order, halting on the
// first error. Hooks registered before the failing entry remain registered.
func (r *Registry) RegisterBulk(pairs []struct {
	Point HookPoint
	Hook  Hook
}) error {
	for _, p := range pairs {
		if err := r.Register(p.Point, p.Hook); err != nil {
			return err
		}
	}
	return nil
}

func sortEntries(list []*entry) {
	sort.SliceStable(list, func(i, j int) bool {
		pi, pj := list[i].hook.Metadata.Priority, list[j].hook.Metadata.Priority
		if pi != pj {
			return pi.Compare(pj) < 0
		}
		return list[i].seq < list[j].seq
	})
}

// Unregister removes the named hook from point.
func (r *Registry) Unregister(point HookPoint, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.points[point]
	for i, e := range list {
		if e.hook.Metadata.Name == name {
			r.points[point] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return kerrors.NotFound("hook", name)
}

// GetHooks returns the ordered list of hooks at point, or empty if hooks are
// globally disabled.
func (r *Registry) GetHooks(point HookPoint) []Hook {
	if !r.globalEnabled.Load() {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotEnabled(point)
}

// GetHooksByLanguage filters GetHooks by language.
func (r *Registry) GetHooksByLanguage(point HookPoint, lang Language) []Hook {
	hooks := r.GetHooks(point)
	out := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h.Metadata.Language == lang {
			out = append(out, h)
		}
	}
	return out
}

// GetHooksByPriorityRange filters GetHooks to [min, max] inclusive.
func (r *Registry) GetHooksByPriorityRange(point HookPoint, min, max Priority) []Hook {
	hooks := r.GetHooks(point)
	out := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h.Metadata.Priority >= min && h.Metadata.Priority <= max {
			out = append(out, h)
		}
	}
	return out
}

func (r *Registry) snapshotEnabled(point HookPoint) []Hook {
	list := r.points[point]
	out := make([]Hook, 0, len(list))
	for _, e := range list {
		if e.enabled {
			out = append(out, e.hook)
		}
	}
	return out
}

// SetHookEnabled toggles a single hook's enabled flag.
func (r *Registry) SetHookEnabled(point HookPoint, name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.points[point] {
		if e.hook.Metadata.Name == name {
			e.enabled = enabled
			return nil
		}
	}
	return kerrors.NotFound("hook", name)
}

// SetGlobalEnabled flips the lock-free global kill switch.
func (r *Registry) SetGlobalEnabled(enabled bool) {
	r.globalEnabled.Store(enabled)
}

// ClearPoint removes all hooks registered at point.
func (r *Registry) ClearPoint(point HookPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.points, point)
}

// ClearAll removes every registered hook at every point.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = make(map[HookPoint][]*entry)
}

// GetHookPoints lists every point with at least one registered hook.
func (r *Registry) GetHookPoints() []HookPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]HookPoint, 0, len(r.points))
	for p := range r.points {
		out = append(out, p)
	}
	return out
}

// HasHook reports whether name is registered at point.
func (r *Registry) HasHook(point HookPoint, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.points[point] {
		if e.hook.Metadata.Name == name {
			return true
		}
	}
	return false
}

// GetHookNames lists registered hook names at point, in priority order.
func (r *Registry) GetHookNames(point HookPoint) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.points[point]
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.hook.Metadata.Name
	}
	return out
}

// Stats computes registry-wide counters under a read lock.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		ByPoint:    make(map[HookPoint]int),
		ByLanguage: make(map[Language]int),
		ByBucket:   make(map[Priority]int),
	}
	for point, list := range r.points {
		s.ByPoint[point] = len(list)
		s.Total += len(list)
		for _, e := range list {
			s.ByLanguage[e.hook.Metadata.Language]++
			s.ByBucket[e.hook.Metadata.Priority]++
		}
	}
	return s
}
