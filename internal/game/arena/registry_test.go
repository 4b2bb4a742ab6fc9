package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BindLookup(t *testing.T) {
	g := NewRegistry()

	_, ok := g.Lookup("c1")
	assert.False(t, ok)

	g.Bind("c1", "1234")
	code, ok := g.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "1234", code)
	assert.Equal(t, 1, g.Len())
}

func TestRegistry_RebindReplaces(t *testing.T) {
	g := NewRegistry()
	g.Bind("c1", "1234")
	g.Bind("c1", "5678")

	code, ok := g.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "5678", code)
	assert.Equal(t, 1, g.Len())
}

func TestRegistry_Unbind(t *testing.T) {
	g := NewRegistry()
	g.Bind("c1", "1234")
	g.Unbind("c1")

	_, ok := g.Lookup("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, g.Len())

	// Unbinding an unknown id is a no-op.
	g.Unbind("ghost")
}
