package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hotcalc/internal/plugin/lua"
)

func TestChunkCacheCompile(t *testing.T) {
	cache, err := NewChunkCache(2)
	require.NoError(t, err)

	first, err := cache.Compile([]byte(squarePlugin), "square.lua")
	require.NoError(t, err)
	again, err := cache.Compile([]byte(squarePlugin), "other.lua")
	require.NoError(t, err)

	assert.Same(t, first, again, "identical source should hit the cache")
	assert.Equal(t, 1, cache.Len())
}

func TestChunkCacheEviction(t *testing.T) {
	cache, err := NewChunkCache(2)
	require.NoError(t, err)

	for _, src := range []string{"x = 1", "x = 2", "x = 3"} {
		_, err := cache.Compile([]byte(src), "chunk")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())

	cache.protos.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestChunkCacheSyntaxErrorNotCached(t *testing.T) {
	cache, err := NewChunkCache(0)
	require.NoError(t, err)

	_, err = cache.Compile([]byte("command = {"), "broken.lua")
	assert.ErrorIs(t, err, lua.ErrSyntax)
	assert.Equal(t, 0, cache.Len())
}
