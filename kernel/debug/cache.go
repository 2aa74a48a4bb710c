package debug

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultMaxHotLocations     = 100
	defaultMaxCachedVariables  = 1000
)

type conditionEntry struct {
	result     bool
	generation uint64
}

type watchResult struct {
	result     string
	generation uint64
}

// Cache is the C17 Debug State Cache: atomics for the per-instruction fast
// path, RWMutex-protected maps for everything else.
type Cache struct {
	debugActive atomic.Bool
	debugMode   atomic.Int32
	generation  atomic.Uint64
	isStepping  atomic.Bool
	nextWatchID atomic.Uint64

	mu               sync.RWMutex
	breakpointLines  map[string]map[uint32]struct{}
	conditions       map[Location]interface{} // compiled condition, opaque to this package
	conditionCache   map[Location]conditionEntry
	hotLocations     []hotLocation
	maxHotLocations  int
	stepMode         StepMode
	savedDebugMode   *Mode
	currentDepth     int
	watchList        map[string]struct{} // variables pinned against LRU eviction
	watchExpressions []string
	watchResults     map[string]watchResult

	maxCachedVariables int
	varMu              sync.Mutex
	variableCache      *lru.Cache[string, CachedVariable]
	pinnedVariables    map[string]CachedVariable // watch-listed vars, never evicted
}

// NewCache builds an empty debug state cache. maxCachedVariables defaults to
// 1000 if zero.
func NewCache(maxCachedVariables int) *Cache {
	if maxCachedVariables <= 0 {
		maxCachedVariables = defaultMaxCachedVariables
	}
	variableCache, err := lru.New[string, CachedVariable](maxCachedVariables)
	if err != nil {
		// Only returns an error for a non-positive size, already guarded above.
		panic(fmt.Sprintf("debug: failed to build variable LRU: %v", err))
	}

	return &Cache{
		breakpointLines:    make(map[string]map[uint32]struct{}),
		conditions:         make(map[Location]interface{}),
		conditionCache:     make(map[Location]conditionEntry),
		maxHotLocations:    defaultMaxHotLocations,
		watchList:          make(map[string]struct{}),
		watchResults:       make(map[string]watchResult),
		maxCachedVariables: maxCachedVariables,
		variableCache:      variableCache,
		pinnedVariables:    make(map[string]CachedVariable),
	}
}

// IsDebugActive is the fastest possible check, consulted on every
// potential breakpoint location.
func (c *Cache) IsDebugActive() bool { return c.debugActive.Load() }

// MightBreakAt checks the active flag first, then the breakpoint map.
func (c *Cache) MightBreakAt(source string, line uint32) bool {
	if !c.debugActive.Load() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	lines, ok := c.breakpointLines[source]
	if !ok {
		return false
	}
	_, ok = lines[line]
	return ok
}

// UpdateBreakpoints replaces the full breakpoint set and bumps generation.
func (c *Cache) UpdateBreakpoints(breakpoints []Location) {
	grouped := make(map[string]map[uint32]struct{})
	for _, bp := range breakpoints {
		lines, ok := grouped[bp.Source]
		if !ok {
			lines = make(map[uint32]struct{})
			grouped[bp.Source] = lines
		}
		lines[bp.Line] = struct{}{}
	}

	c.mu.Lock()
	c.breakpointLines = grouped
	c.mu.Unlock()

	c.debugActive.Store(len(grouped) > 0)
	c.generation.Add(1)
}

// GetDebugMode returns the current mode.
func (c *Cache) GetDebugMode() Mode { return Mode(c.debugMode.Load()) }

// SetDebugMode sets the mode and derives debugActive from it.
func (c *Cache) SetDebugMode(mode Mode) {
	c.debugMode.Store(int32(mode))
	c.debugActive.Store(mode != ModeDisabled)
}

// Clear resets every cache, drops stepping state, and resets the atomics
// (I10); the generation counter is advanced rather than zeroed.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.breakpointLines = make(map[string]map[uint32]struct{})
	c.conditions = make(map[Location]interface{})
	c.conditionCache = make(map[Location]conditionEntry)
	c.hotLocations = nil
	c.stepMode = StepMode{}
	c.savedDebugMode = nil
	c.currentDepth = 0
	c.watchList = make(map[string]struct{})
	c.watchExpressions = nil
	c.watchResults = make(map[string]watchResult)
	c.mu.Unlock()

	c.varMu.Lock()
	c.variableCache.Purge()
	c.pinnedVariables = make(map[string]CachedVariable)
	c.varMu.Unlock()

	c.debugActive.Store(false)
	c.debugMode.Store(int32(ModeDisabled))
	c.isStepping.Store(false)
	c.generation.Add(1)
	c.nextWatchID.Store(0)
}

// HasCondition reports whether a breakpoint has a condition attached.
func (c *Cache) HasCondition(loc Location) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.conditions[loc]
	return ok
}

// SetCondition attaches a compiled condition and invalidates the condition
// cache generation.
func (c *Cache) SetCondition(loc Location, condition interface{}) {
	c.mu.Lock()
	c.conditions[loc] = condition
	c.mu.Unlock()
	c.generation.Add(1)
}

// RemoveCondition detaches a condition and its cached result.
func (c *Cache) RemoveCondition(loc Location) {
	c.mu.Lock()
	delete(c.conditions, loc)
	delete(c.conditionCache, loc)
	c.mu.Unlock()
	c.generation.Add(1)
}

// GetCachedCondition returns the last evaluated result and the generation
// it was cached at.
func (c *Cache) GetCachedCondition(loc Location) (result bool, generation uint64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, found := c.conditionCache[loc]
	if !found {
		return false, 0, false
	}
	return entry.result, entry.generation, true
}

// CacheConditionResult stores a condition evaluation at the current
// generation.
func (c *Cache) CacheConditionResult(loc Location, result bool) {
	gen := c.generation.Load()
	c.mu.Lock()
	c.conditionCache[loc] = conditionEntry{result: result, generation: gen}
	c.mu.Unlock()
}

// GetCondition returns the compiled condition for a location, if any.
func (c *Cache) GetCondition(loc Location) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cond, ok := c.conditions[loc]
	return cond, ok
}

// InvalidateConditionCache clears cached results without touching
// compiled conditions themselves.
func (c *Cache) InvalidateConditionCache() {
	c.mu.Lock()
	c.conditionCache = make(map[Location]conditionEntry)
	c.mu.Unlock()
	c.generation.Add(1)
}

// IsStepping is the fast atomic check consulted on every instruction
// dispatch while stepping is possible.
func (c *Cache) IsStepping() bool { return c.isStepping.Load() }

// StartStepping saves the current mode for later restoration and marks
// stepping active.
func (c *Cache) StartStepping(mode StepMode, currentMode Mode) {
	c.mu.Lock()
	saved := currentMode
	c.savedDebugMode = &saved
	c.stepMode = mode
	c.mu.Unlock()
	c.isStepping.Store(true)
}

// StopStepping clears stepping state and returns the mode to restore, if
// any was saved.
func (c *Cache) StopStepping() (Mode, bool) {
	c.isStepping.Store(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepMode = StepMode{}
	if c.savedDebugMode == nil {
		return ModeDisabled, false
	}
	mode := *c.savedDebugMode
	c.savedDebugMode = nil
	return mode, true
}

// GetStepMode returns the in-progress step operation.
func (c *Cache) GetStepMode() StepMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stepMode
}

// SetCurrentDepth/GetCurrentDepth track call-stack depth for step
// operations.
func (c *Cache) SetCurrentDepth(depth int) {
	c.mu.Lock()
	c.currentDepth = depth
	c.mu.Unlock()
}

func (c *Cache) GetCurrentDepth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentDepth
}

// Generation returns the current invalidation generation.
func (c *Cache) Generation() uint64 { return c.generation.Load() }

// RecordHotLocation appends a recently-hit source line, draining the
// oldest half once the ring buffer fills (mirrors the original's
// performance-monitoring ring).
func (c *Cache) RecordHotLocation(source string, line uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.hotLocations) >= c.maxHotLocations {
		c.hotLocations = append([]hotLocation(nil), c.hotLocations[c.maxHotLocations/2:]...)
	}
	c.hotLocations = append(c.hotLocations, hotLocation{Source: source, Line: line, At: time.Now()})
}

// HotLocations returns a snapshot of recently-hit locations.
func (c *Cache) HotLocations() []Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Location, len(c.hotLocations))
	for i, h := range c.hotLocations {
		out[i] = Location{Source: h.Source, Line: h.Line}
	}
	return out
}

// AddToWatchList pins a variable so it is never evicted from the variable
// cache regardless of LRU pressure (I10).
func (c *Cache) AddToWatchList(name string) {
	c.mu.Lock()
	c.watchList[name] = struct{}{}
	c.mu.Unlock()

	c.varMu.Lock()
	if v, ok := c.variableCache.Peek(name); ok {
		c.pinnedVariables[name] = v
		c.variableCache.Remove(name)
	}
	c.varMu.Unlock()
}

// RemoveFromWatchList un-pins a variable; it re-enters normal LRU
// eviction on its next cache_variable call.
func (c *Cache) RemoveFromWatchList(name string) {
	c.mu.Lock()
	delete(c.watchList, name)
	c.mu.Unlock()

	c.varMu.Lock()
	if v, ok := c.pinnedVariables[name]; ok {
		delete(c.pinnedVariables, name)
		c.variableCache.Add(name, v)
	}
	c.varMu.Unlock()
}

// GetWatchList returns the pinned variable names.
func (c *Cache) GetWatchList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.watchList))
	for name := range c.watchList {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsWatched reports whether name is on the watch list.
func (c *Cache) IsWatched(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.watchList[name]
	return ok
}

// CacheVariable stores a variable at the current generation. Watch-listed
// variables bypass the LRU entirely so the library's own eviction policy
// can never drop them (I10); everything else goes through the capped LRU,
// which evicts on insert once it's full.
func (c *Cache) CacheVariable(name string, value interface{}) {
	gen := c.generation.Load()
	entry := CachedVariable{Name: name, Value: value, Generation: gen, LastAccess: time.Now()}

	c.mu.RLock()
	_, watched := c.watchList[name]
	c.mu.RUnlock()

	c.varMu.Lock()
	defer c.varMu.Unlock()
	if watched {
		c.pinnedVariables[name] = entry
		return
	}
	c.variableCache.Add(name, entry)
}

// GetCachedVariable returns a variable only if it was cached at the
// current generation.
func (c *Cache) GetCachedVariable(name string) (interface{}, bool) {
	gen := c.generation.Load()

	c.varMu.Lock()
	defer c.varMu.Unlock()
	if v, ok := c.pinnedVariables[name]; ok && v.Generation == gen {
		v.LastAccess = time.Now()
		c.pinnedVariables[name] = v
		return v.Value, true
	}
	if v, ok := c.variableCache.Get(name); ok && v.Generation == gen {
		return v.Value, true
	}
	return nil, false
}

// GetCachedVariables returns every variable still valid at the current
// generation.
func (c *Cache) GetCachedVariables() []CachedVariable {
	gen := c.generation.Load()

	c.varMu.Lock()
	defer c.varMu.Unlock()
	out := make([]CachedVariable, 0, len(c.pinnedVariables)+c.variableCache.Len())
	for _, v := range c.pinnedVariables {
		if v.Generation == gen {
			out = append(out, v)
		}
	}
	for _, name := range c.variableCache.Keys() {
		if v, ok := c.variableCache.Peek(name); ok && v.Generation == gen {
			out = append(out, v)
		}
	}
	return out
}

// InvalidateVariableCache bumps the generation; stale entries are left in
// place but will fail the generation check on next read.
func (c *Cache) InvalidateVariableCache() { c.generation.Add(1) }

// AddWatch registers a watch expression and returns its generated id.
func (c *Cache) AddWatch(expr string) string {
	id := fmt.Sprintf("watch_%d", c.nextWatchID.Add(1)-1)
	c.mu.Lock()
	c.watchExpressions = append(c.watchExpressions, expr)
	c.mu.Unlock()
	return id
}

// RemoveWatch removes a watch expression by value and its cached result.
func (c *Cache) RemoveWatch(expr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.watchExpressions {
		if e == expr {
			c.watchExpressions = append(c.watchExpressions[:i], c.watchExpressions[i+1:]...)
			delete(c.watchResults, expr)
			return true
		}
	}
	return false
}

// GetWatchExpressions returns every registered watch expression.
func (c *Cache) GetWatchExpressions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.watchExpressions...)
}

// CacheWatchResult stores a watch expression's evaluated result at the
// given generation.
func (c *Cache) CacheWatchResult(expr, result string, generation uint64) {
	c.mu.Lock()
	c.watchResults[expr] = watchResult{result: result, generation: generation}
	c.mu.Unlock()
}

// GetWatchResult returns a watch's cached result if still current.
func (c *Cache) GetWatchResult(expr string) (string, bool) {
	gen := c.generation.Load()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.watchResults[expr]
	if !ok || entry.generation != gen {
		return "", false
	}
	return entry.result, true
}

// GetAllWatchResults returns every watch result still current.
func (c *Cache) GetAllWatchResults() map[string]string {
	gen := c.generation.Load()
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string)
	for expr, entry := range c.watchResults {
		if entry.generation == gen {
			out[expr] = entry.result
		}
	}
	return out
}
