package reasoning

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// unboundedSize stands in for "no limit" since the LRU needs a positive size.
const unboundedSize = 1 << 30

type obstacleKey struct {
	viewpoint string
	node      string
}

// caches holds everything the engine memoizes. Capacity comes from the tier
// profile; 0 means unbounded. Callers hold the engine mutex.
type caches struct {
	pairs     *lru.Cache[string, []SpatialRelationship]
	facts     *lru.Cache[string, SpatialRelationship]
	obstacles *lru.Cache[obstacleKey, Obstacle]
	contexts  map[string]SpatialContext
}

func newCaches(capacity int) *caches {
	size := lruSize(capacity)
	return &caches{
		pairs:     mustLRU[string, []SpatialRelationship](size),
		facts:     mustLRU[string, SpatialRelationship](size),
		obstacles: mustLRU[obstacleKey, Obstacle](size),
		contexts:  make(map[string]SpatialContext),
	}
}

func mustLRU[K comparable, V any](size int) *lru.Cache[K, V] {
	c, err := lru.New[K, V](size)
	if err != nil {
		// size is always positive here
		panic(err)
	}
	return c
}

func lruSize(capacity int) int {
	if capacity <= 0 {
		return unboundedSize
	}
	return capacity
}

// resize applies a new capacity; shrinking evicts the least recently used entries.
func (c *caches) resize(capacity int) {
	size := lruSize(capacity)
	c.pairs.Resize(size)
	c.facts.Resize(size)
	c.obstacles.Resize(size)
}

func (c *caches) purge() {
	c.pairs.Purge()
	c.facts.Purge()
	c.obstacles.Purge()
	c.contexts = make(map[string]SpatialContext)
}

// addFact stores a relationship by id unless one is already cached.
func (c *caches) addFact(r SpatialRelationship) {
	if c.facts.Contains(r.ID) {
		return
	}
	c.facts.Add(r.ID, r)
}

// factsOfType returns cached facts of the given type, oldest first.
func (c *caches) factsOfType(typ RelationType) []SpatialRelationship {
	var out []SpatialRelationship
	for _, r := range c.facts.Values() {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

// CacheStats reports how many entries each cache holds.
type CacheStats struct {
	Pairs     int `json:"pairs"`
	Facts     int `json:"facts"`
	Obstacles int `json:"obstacles"`
	Contexts  int `json:"contexts"`
}

func (c *caches) stats() CacheStats {
	return CacheStats{
		Pairs:     c.pairs.Len(),
		Facts:     c.facts.Len(),
		Obstacles: c.obstacles.Len(),
		Contexts:  len(c.contexts),
	}
}
