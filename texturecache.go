package gldraw

import (
	"path/filepath"

	"github.com/gogpu/gldraw/internal/cache"
)

// DefaultTextureCacheSize is the soft limit of caches created with a
// non-positive size.
const DefaultTextureCacheSize = 32

// TextureCache hands out one *Texture per file, so drawables that name the
// same image share its decode and its GPU texture.
type TextureCache struct {
	c *cache.Cache[string, *Texture]
}

// NewTextureCache returns a cache holding about size textures.
func NewTextureCache(size int) *TextureCache {
	if size <= 0 {
		size = DefaultTextureCacheSize
	}
	return &TextureCache{c: cache.New[string, *Texture](size)}
}

// Load returns the cached texture for path or starts loading it.
// Failed loads are cached too; Forget drops them.
func (tc *TextureCache) Load(path string) *Texture {
	key := textureKey(path)
	return tc.c.GetOrCreate(key, func() *Texture {
		Logger().Debug("gldraw: texture cache miss", "path", key)
		return LoadTexture(path)
	})
}

// Lookup returns the cached texture for path without loading it.
func (tc *TextureCache) Lookup(path string) (*Texture, bool) {
	return tc.c.Get(textureKey(path))
}

// Add caches tex under path, replacing any earlier entry. It lets
// generated or preloaded images stand in for files.
func (tc *TextureCache) Add(path string, tex *Texture) {
	tc.c.Set(textureKey(path), tex)
}

// Purge empties the cache. Textures already handed out are not affected.
func (tc *TextureCache) Purge() { tc.c.Clear() }

// Forget drops path from the cache. Textures already handed out are not
// affected.
func (tc *TextureCache) Forget(path string) bool {
	return tc.c.Delete(textureKey(path))
}

// Len returns the number of cached textures.
func (tc *TextureCache) Len() int { return tc.c.Len() }

// Stats returns hit and miss counters.
func (tc *TextureCache) Stats() cache.Stats { return tc.c.Stats() }

func textureKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
