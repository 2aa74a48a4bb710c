package vector

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
	"github.com/flowforge/kernel/kernel/ctx"
)

type namespace struct {
	mu      sync.RWMutex
	entries map[string]*Entry // id -> entry; deleted entries are removed from this map (logical tombstone tracked separately)
	order   []string          // insertion order, for deterministic iteration
	deleted map[string]bool   // tombstoned ids still referenced by callers (Open Question 2)
}

func newNamespace() *namespace {
	return &namespace{entries: make(map[string]*Entry), deleted: make(map[string]bool)}
}

// Store is the C14 Vector Store: an exact brute-force similarity index
// partitioned by scope into namespaces, each guarded by its own read-write
// lock so unrelated scopes never contend.
type Store struct {
	cfg Config

	mu         sync.RWMutex
	namespaces map[string]*namespace
}

// NewStore builds an empty vector store with the given configuration.
func NewStore(cfg Config) *Store {
	if cfg.Metric == "" {
		cfg.Metric = Cosine
	}
	return &Store{cfg: cfg, namespaces: make(map[string]*namespace)}
}

func (s *Store) namespaceFor(scope ctx.Scope) *namespace {
	name := NamespaceName(scope)
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[name]
	if !ok {
		ns = newNamespace()
		s.namespaces[name] = ns
	}
	return ns
}

// Insert validates dimensions, assigns ids where empty, and appends each
// entry to its scope's namespace.
func (s *Store) Insert(entries []Entry) ([]string, error) {
	ids := make([]string, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if len(e.Embedding) != s.cfg.Dimensions {
			return nil, kerrors.DimensionMismatch(s.cfg.Dimensions, len(e.Embedding))
		}
		if e.ID == "" {
			e.ID = NewID()
		}
		ns := s.namespaceFor(e.Scope)
		ns.mu.Lock()
		ns.entries[e.ID] = e
		ns.order = append(ns.order, e.ID)
		delete(ns.deleted, e.ID)
		ns.mu.Unlock()
		ids = append(ids, e.ID)
	}
	return ids, nil
}

// Search runs a brute-force scan over every namespace (or just the one
// named by query.Scope via SearchScoped).
func (s *Store) Search(query Query) ([]Result, error) {
	if query.Scope != nil {
		return s.SearchScoped(query, *query.Scope)
	}
	s.mu.RLock()
	names := make([]string, 0, len(s.namespaces))
	for n := range s.namespaces {
		names = append(names, n)
	}
	s.mu.RUnlock()

	var all []Result
	for _, name := range names {
		s.mu.RLock()
		ns := s.namespaces[name]
		s.mu.RUnlock()
		all = append(all, s.searchNamespace(ns, query)...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Distance < all[j].Distance })
	if query.K > 0 && len(all) > query.K {
		all = all[:query.K]
	}
	return all, nil
}

// SearchScoped enforces scope filtering before metadata filtering, per I7.
func (s *Store) SearchScoped(query Query, scope ctx.Scope) ([]Result, error) {
	ns := s.namespaceFor(scope)
	results := s.searchNamespace(ns, query)
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if query.K > 0 && len(results) > query.K {
		results = results[:query.K]
	}
	return results, nil
}

func (s *Store) searchNamespace(ns *namespace, query Query) []Result {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	out := make([]Result, 0, len(ns.entries))
	for _, id := range ns.order {
		e, ok := ns.entries[id]
		if !ok {
			continue
		}
		if !matchesFilter(e.Metadata, query.Filter) {
			continue
		}
		dist := distance(s.cfg.Metric, query.Vector, e.Embedding)
		sim := similarity(s.cfg.Metric, dist)
		if query.Threshold != nil && sim < *query.Threshold {
			continue
		}
		r := Result{ID: e.ID, Score: sim, Distance: dist}
		if query.IncludeMetadata {
			r.Metadata = e.Metadata
			r.Vector = e.Embedding
		}
		out = append(out, r)
	}
	return out
}

// matchesFilter evaluates a query's Filter against an entry's metadata. A
// plain key ("status") is a direct top-level lookup; a key containing a
// "." or "#" (gjson path syntax, e.g. "tags.0" or "labels.env") is evaluated
// with gjson against the metadata marshaled to JSON, so filters can reach
// into nested metadata the direct-lookup path can't address.
func matchesFilter(metadata map[string]interface{}, filter map[string]interface{}) bool {
	if len(filter) == 0 {
		return true
	}

	var raw []byte
	for k, want := range filter {
		if !strings.ContainsAny(k, ".#") {
			if metadata[k] != want {
				return false
			}
			continue
		}
		if raw == nil {
			var err error
			raw, err = json.Marshal(metadata)
			if err != nil {
				return false
			}
		}
		got := gjson.GetBytes(raw, k)
		if !got.Exists() || !gjsonValueEquals(got, want) {
			return false
		}
	}
	return true
}

func gjsonValueEquals(got gjson.Result, want interface{}) bool {
	switch w := want.(type) {
	case string:
		return got.Type == gjson.String && got.Str == w
	case bool:
		return (got.Type == gjson.True || got.Type == gjson.False) && got.Bool() == w
	case int:
		return got.Num == float64(w)
	case int64:
		return got.Num == float64(w)
	case float64:
		return got.Num == w
	default:
		return got.String() == fmt.Sprintf("%v", want)
	}
}

// Delete removes the named vectors from their namespaces, tombstoning the
// ids (Open Question 2 groundwork: logical-only delete).
func (s *Store) Delete(scope ctx.Scope, ids []string) error {
	ns := s.namespaceFor(scope)
	ns.mu.Lock()
	defer ns.mu.Unlock()
	for _, id := range ids {
		if _, ok := ns.entries[id]; ok {
			delete(ns.entries, id)
			ns.deleted[id] = true
		}
	}
	return nil
}

// DeleteScope drops the whole namespace and returns how many entries it
// held.
func (s *Store) DeleteScope(scope ctx.Scope) int {
	name := NamespaceName(scope)
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[name]
	if !ok {
		return 0
	}
	count := len(ns.entries)
	delete(s.namespaces, name)
	return count
}

// UpdateMetadata updates an entry's metadata in place. Per Open Question 2,
// this implementation chooses "error if tombstoned": calling
// UpdateMetadata on a deleted id returns NotFound rather than silently
// no-op-ing, so callers can detect stale references.
func (s *Store) UpdateMetadata(scope ctx.Scope, id string, metadata map[string]interface{}) error {
	ns := s.namespaceFor(scope)
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.deleted[id] {
		return kerrors.NotFound("vector", id)
	}
	e, ok := ns.entries[id]
	if !ok {
		return kerrors.NotFound("vector", id)
	}
	e.Metadata = metadata
	return nil
}

// Stats reports aggregate index state across every namespace.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, ns := range s.namespaces {
		ns.mu.RLock()
		st.VectorCount += len(ns.entries)
		ns.mu.RUnlock()
	}
	return st
}

// StatsForScope reports a single namespace's state.
func (s *Store) StatsForScope(scope ctx.Scope) Stats {
	ns := s.namespaceFor(scope)
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return Stats{VectorCount: len(ns.entries)}
}
