package tune

// CacheResult is the outcome of a cache lookup.
// On a hit Operation holds the rebuilt winner and the set has been consumed.
// On a miss Set hands the caller's set back for benchmarking.
type CacheResult struct {
	Hit       bool
	Operation Operation
	Set       OperationSet
}

// Cache maps keys to the index of their fastest candidate.
// There is no eviction; entries change only through Insert, Restore or Clear.
type Cache struct {
	entries map[Key]int
}

// NewCache returns an empty cache
func NewCache() *Cache {
	return &Cache{entries: make(map[Key]int)}
}

// TryCache looks up the set's key. On a hit it rebuilds the winning operation.
func (c *Cache) TryCache(set OperationSet) CacheResult {
	index, ok := c.entries[set.Key()]
	if !ok {
		return CacheResult{Set: set}
	}
	return CacheResult{Hit: true, Operation: set.Fastest(index)}
}

// Insert records or overwrites the winning index for key.
func (c *Cache) Insert(key Key, index int) {
	c.entries[key] = index
}

// Lookup returns the cached index for key.
func (c *Cache) Lookup(key Key) (int, bool) {
	index, ok := c.entries[key]
	return index, ok
}

func (c *Cache) Len() int {
	return len(c.entries)
}

// Entries returns a copy of every cached winner.
func (c *Cache) Entries() map[Key]int {
	out := make(map[Key]int, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Restore inserts every entry, overwriting existing ones.
func (c *Cache) Restore(entries map[Key]int) {
	for k, v := range entries {
		c.entries[k] = v
	}
}

// Clear drops every entry. Later lookups miss and trigger benchmarking again.
func (c *Cache) Clear() {
	c.entries = make(map[Key]int)
}
