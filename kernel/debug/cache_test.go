package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMightBreakAtRequiresDebugActive(t *testing.T) {
	c := NewCache(10)
	assert.False(t, c.MightBreakAt("main.lua", 5))

	c.UpdateBreakpoints([]Location{{Source: "main.lua", Line: 5}})
	assert.True(t, c.IsDebugActive())
	assert.True(t, c.MightBreakAt("main.lua", 5))
	assert.False(t, c.MightBreakAt("main.lua", 6))
}

func TestVariableCacheInvalidatedByGeneration(t *testing.T) {
	c := NewCache(10)
	c.CacheVariable("x", 42)

	v, ok := c.GetCachedVariable("x")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	c.InvalidateVariableCache()
	_, ok = c.GetCachedVariable("x")
	assert.False(t, ok, "variable cached at an earlier generation must miss after invalidation")
}

func TestWatchedVariableSurvivesLRUEviction(t *testing.T) {
	c := NewCache(2) // tiny cap to force eviction quickly
	c.AddToWatchList("watched")
	c.CacheVariable("watched", "keep-me")

	c.CacheVariable("a", 1)
	c.CacheVariable("b", 2)
	c.CacheVariable("c", 3) // evicts "a" from the LRU half, "watched" untouched

	v, ok := c.GetCachedVariable("watched")
	require.True(t, ok)
	assert.Equal(t, "keep-me", v)
}

func TestClearResetsEverything(t *testing.T) {
	c := NewCache(10)
	c.UpdateBreakpoints([]Location{{Source: "a.lua", Line: 1}})
	c.StartStepping(StepMode{Kind: StepIn}, ModeFull)
	c.CacheVariable("x", 1)
	c.AddToWatchList("x")
	c.AddWatch("x > 1")

	c.Clear()

	assert.False(t, c.IsDebugActive())
	assert.False(t, c.IsStepping())
	assert.Equal(t, ModeDisabled, c.GetDebugMode())
	assert.Empty(t, c.GetWatchList())
	assert.Empty(t, c.GetWatchExpressions())
	_, ok := c.GetCachedVariable("x")
	assert.False(t, ok)
}

func TestWatchResultGenerationGating(t *testing.T) {
	c := NewCache(10)
	gen := c.Generation()
	c.CacheWatchResult("x > 1", "true", gen)

	result, ok := c.GetWatchResult("x > 1")
	require.True(t, ok)
	assert.Equal(t, "true", result)

	c.InvalidateVariableCache() // bumps generation
	_, ok = c.GetWatchResult("x > 1")
	assert.False(t, ok)
}
