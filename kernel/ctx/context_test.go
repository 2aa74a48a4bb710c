package ctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInheritCopiesAllParentKeys(t *testing.T) {
	parent := New()
	parent.Set("foo", "bar")

	child := parent.CreateChild(Session("s1"), Inherit)
	v, ok := child.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestIsolateCopiesNoParentKeys(t *testing.T) {
	parent := New()
	parent.Set("foo", "bar")

	child := parent.CreateChild(Session("s1"), Isolate)
	_, ok := child.Get("foo")
	assert.False(t, ok)
}

func TestCopyOnlyCarriesConversationContext(t *testing.T) {
	parent := New()
	parent.Set("conversation_id", "conv-1")
	parent.Set("unrelated", "value")

	child := parent.CreateChild(Session("s1"), Copy)
	v, ok := child.Get("conversation_id")
	require.True(t, ok)
	assert.Equal(t, "conv-1", v)

	_, ok = child.Get("unrelated")
	assert.False(t, ok)
}

func TestSharePrefixesKeys(t *testing.T) {
	parent := New()
	parent.Set("foo", "bar")

	child := parent.CreateChild(Session("s1"), Share)
	_, ok := child.Get("foo")
	assert.False(t, ok)

	v, ok := child.Get("shared:foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestServiceHandlesAlwaysShared(t *testing.T) {
	parent := New()
	child := parent.CreateChild(Session("s1"), Isolate)

	assert.Same(t, parent.SharedMemory, child.SharedMemory)

	parent.SharedMemory.Set(Global, "x", "hello")
	v, ok := child.SharedMemory.Get(Global, "x")
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestScopeDisplay(t *testing.T) {
	assert.Equal(t, "global", Global.String())
	assert.Equal(t, "session:abc", Session("abc").String())
	assert.Equal(t, "custom:tenant:t1", TenantScope("t1").String())
}

func TestGetPathEvaluatesJSONPathAgainstStoredValue(t *testing.T) {
	c := New()
	c.Set("request", map[string]interface{}{
		"headers": map[string]interface{}{"authorization": "Bearer abc"},
	})

	v, err := c.GetPath("request", "$.headers.authorization")
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", v)
}

func TestGetPathMissingKeyReturnsError(t *testing.T) {
	c := New()
	_, err := c.GetPath("absent", "$.x")
	assert.Error(t, err)
}
