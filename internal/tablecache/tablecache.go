// Package tablecache keeps the pre-aggregation raw table of each rendered
// chart so drill-down can address it later by chart id.
package tablecache

import (
	"sync"

	"bivis/pkg/table"
)

// Cache maps chart ids to immutable table snapshots. Entries are replaced
// wholesale: readers see either the previous snapshot or the new one, never a
// partially written table. Safe for concurrent use; the zero value is not
// ready, use New.
type Cache struct {
	mu     sync.RWMutex
	tables map[string]*table.Table
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{tables: make(map[string]*table.Table)}
}

// Get returns the snapshot stored under id.
func (c *Cache) Get(id string) (*table.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[id]
	return t, ok
}

// Put publishes t under id, replacing any previous snapshot.
func (c *Cache) Put(id string, t *table.Table) {
	c.mu.Lock()
	c.tables[id] = t
	c.mu.Unlock()
}

// Delete removes the snapshot stored under id.
func (c *Cache) Delete(id string) {
	c.mu.Lock()
	delete(c.tables, id)
	c.mu.Unlock()
}

// Clear removes every snapshot.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.tables = make(map[string]*table.Table)
	c.mu.Unlock()
}

// Len reports the number of cached snapshots.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}
