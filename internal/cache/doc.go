// Package cache provides a small generic LRU cache.
//
//	c := cache.New[string, *Texture](32)
//	tex := c.GetOrCreate(path, func() *Texture { return load(path) })
//
// When the number of entries exceeds the soft limit, the least recently
// used quarter is evicted. Eviction only drops the cache's reference;
// values already handed out stay valid.
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
