package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseRegistry_RegisterAndGet(t *testing.T) {
	r := NewBaseRegistry[int]()

	require.NoError(t, r.Register("one", 1))
	require.NoError(t, r.Register("two", 2))

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, r.Count())
}

func TestBaseRegistry_RegisterEmptyName(t *testing.T) {
	r := NewBaseRegistry[string]()
	assert.Error(t, r.Register("", "x"))
}

func TestBaseRegistry_RegisterDuplicate(t *testing.T) {
	r := NewBaseRegistry[string]()
	require.NoError(t, r.Register("a", "x"))
	assert.Error(t, r.Register("a", "y"))
}

func TestBaseRegistry_Names(t *testing.T) {
	r := NewBaseRegistry[int]()
	require.NoError(t, r.Register("beta", 2))
	require.NoError(t, r.Register("alpha", 1))

	assert.Equal(t, []string{"alpha", "beta"}, r.Names())
}

func TestBaseRegistry_Remove(t *testing.T) {
	r := NewBaseRegistry[int]()
	require.NoError(t, r.Register("a", 1))

	require.NoError(t, r.Remove("a"))
	assert.Error(t, r.Remove("a"))
	assert.Equal(t, 0, r.Count())
}

func TestBaseRegistry_Clear(t *testing.T) {
	r := NewBaseRegistry[int]()
	require.NoError(t, r.Register("a", 1))
	require.NoError(t, r.Register("b", 2))

	r.Clear()
	assert.Equal(t, 0, r.Count())
}
