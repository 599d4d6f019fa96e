package datasource

import (
	"strconv"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"bivis/pkg/table"
)

// FetchCache holds the single most-recent fetched table, keyed by the
// resolved query signature. Concurrent fetches with the same key are
// collapsed into one source round-trip; the winner publishes a complete table
// atomically, so readers always observe either the previous snapshot or the
// new one, never a mix.
//
// The zero value is ready to use. Embed one per adapter instance.
type FetchCache struct {
	mu    sync.RWMutex
	valid bool
	key   uint64
	tab   *table.Table

	group singleflight.Group
}

// Key hashes the config signature and query signature into a cache key.
func Key(parts ...string) uint64 {
	h := xxh3.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0x1f})
	}
	return h.Sum64()
}

// Lookup returns the cached table when it matches key.
func (c *FetchCache) Lookup(key uint64) (*table.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.valid && c.key == key {
		return c.tab, true
	}
	return nil, false
}

// Last returns the cached table regardless of key. Preview and Schema read
// through it.
func (c *FetchCache) Last() (*table.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.valid {
		return c.tab, true
	}
	return nil, false
}

// Do returns the cached table for key or runs fetch to produce it. Identical
// concurrent calls share one fetch. A fetch error is returned verbatim and
// nothing is cached: partial results are discarded, never published.
func (c *FetchCache) Do(key uint64, fetch func() (*table.Table, error)) (*table.Table, error) {
	if tab, ok := c.Lookup(key); ok {
		return tab, nil
	}

	v, err, _ := c.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		// A concurrent caller may have populated the entry while this call
		// waited on the flight group.
		if tab, ok := c.Lookup(key); ok {
			return tab, nil
		}
		tab, err := fetch()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.valid, c.key, c.tab = true, key, tab
		c.mu.Unlock()
		return tab, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*table.Table), nil
}

// Invalidate drops the cached table. The next fetch re-queries the source.
func (c *FetchCache) Invalidate() {
	c.mu.Lock()
	c.valid, c.tab = false, nil
	c.mu.Unlock()
}
