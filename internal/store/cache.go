package store

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/scigolib/hnf/internal/core"
)

// DefaultHeaderCacheSize bounds the number of parsed objects kept by a
// HeaderCache.
const DefaultHeaderCacheSize = 4096

// fileKey identifies one version of a file on disk. A rewrite changes the
// size or modification time, so stale headers are never served.
type fileKey struct {
	path  string
	size  int64
	mtime int64
}

type headerKey struct {
	file fileKey
	addr uint64
}

// object is a parsed object header plus, for groups, the link table built
// from it on first use. Both are shared between handles and never mutated
// after construction.
type object struct {
	oh *core.ObjectHeader

	linksOnce sync.Once
	links     *linkTable
	linksErr  error
}

// linkTable returns the group's name index, building it once.
func (o *object) linkTable(f *File) (*linkTable, error) {
	o.linksOnce.Do(func() {
		o.links, o.linksErr = buildLinkTable(f, o.oh)
	})
	return o.links, o.linksErr
}

// HeaderCache shares parsed object headers and group link tables between
// independent handles on the same file. Parallel readers each open their
// own handle; without the cache every one of them would reparse the root
// group's link table.
//
// Safe for concurrent use.
type HeaderCache struct {
	cache *lru.Cache[headerKey, *object]
}

// NewHeaderCache creates a cache holding at most size objects.
func NewHeaderCache(size int) (*HeaderCache, error) {
	if size <= 0 {
		size = DefaultHeaderCacheSize
	}
	c, err := lru.New[headerKey, *object](size)
	if err != nil {
		return nil, fmt.Errorf("create header cache: %w", err)
	}
	return &HeaderCache{cache: c}, nil
}

func (c *HeaderCache) get(k headerKey) (*object, bool) {
	return c.cache.Get(k)
}

// add stores obj unless another handle cached the same object first, and
// returns the cached one so concurrent loaders share a single link table.
func (c *HeaderCache) add(k headerKey, obj *object) *object {
	if prev, ok, _ := c.cache.PeekOrAdd(k, obj); ok {
		return prev
	}
	return obj
}

// Len returns the number of cached objects.
func (c *HeaderCache) Len() int {
	return c.cache.Len()
}

// Purge drops every cached object.
func (c *HeaderCache) Purge() {
	c.cache.Purge()
}
