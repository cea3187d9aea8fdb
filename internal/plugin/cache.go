package plugin

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/hotcalc/internal/plugin/lua"
)

// DefaultCacheSize is the number of compiled chunks kept in memory.
const DefaultCacheSize = 128

// ChunkCache caches compiled plugin chunks keyed by a hash of their source.
//
// Entries are content-addressed: editing a file changes its hash, so a
// reload always compiles the current contents. Duplicate watcher events
// for unchanged contents skip the compile step.
type ChunkCache struct {
	protos *lru.Cache[[sha256.Size]byte, *glua.FunctionProto]
}

// NewChunkCache creates a cache holding up to size compiled chunks.
func NewChunkCache(size int) (*ChunkCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	protos, err := lru.New[[sha256.Size]byte, *glua.FunctionProto](size)
	if err != nil {
		return nil, err
	}
	return &ChunkCache{protos: protos}, nil
}

// Compile returns the compiled prototype for source, compiling on a miss.
func (c *ChunkCache) Compile(source []byte, chunkName string) (*glua.FunctionProto, error) {
	key := sha256.Sum256(source)
	if proto, ok := c.protos.Get(key); ok {
		return proto, nil
	}

	proto, err := lua.Compile(source, chunkName)
	if err != nil {
		return nil, err
	}
	c.protos.Add(key, proto)
	return proto, nil
}

// Len returns the number of cached chunks.
func (c *ChunkCache) Len() int {
	return c.protos.Len()
}
