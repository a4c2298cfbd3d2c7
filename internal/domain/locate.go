package domain

import (
	"sort"
	"strconv"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// RegionIndex answers point-in-region queries against the reference grid.
// The R-tree narrows candidates by bounding box; the exact containment test
// runs only on those. Safe for concurrent queries once built.
//
// Storm event coordinates cluster heavily on town centroids, so queries are
// memoized in a small LRU. The key carries the exact float bits of the
// coordinate pair: two distinct points never share a cached result, however
// close they sit to a cell edge.
type RegionIndex struct {
	tree  *rtree.Rtree
	size  int
	cache *lruCache
}

// NewRegionIndex builds the spatial index over the grid. cacheEntries bounds
// the coordinate memo; zero or negative disables it.
func NewRegionIndex(regions []RegionPolygon, cacheEntries int) *RegionIndex {
	tree := rtree.NewTree(25, 50)
	for i := range regions {
		tree.Insert(&regions[i])
	}
	idx := &RegionIndex{tree: tree, size: len(regions)}
	if cacheEntries > 0 {
		idx.cache = newLRUCache(cacheEntries)
	}
	return idx
}

// Len returns the number of indexed regions.
func (idx *RegionIndex) Len() int { return idx.size }

// Query returns the ids of every region whose polygon intersects the point,
// sorted for deterministic fan-out order. Boundary touches count: a point on
// the shared edge of two cells belongs to both.
func (idx *RegionIndex) Query(lat, lon float64) []string {
	key := strconv.FormatFloat(lat, 'b', -1, 64) + "," + strconv.FormatFloat(lon, 'b', -1, 64)
	if idx.cache != nil {
		if ids, ok := idx.cache.get(key); ok {
			return ids
		}
	}

	p := geom.Point{X: lon, Y: lat}
	var ids []string
	for _, hit := range idx.tree.SearchIntersect(p.Bounds()) {
		region := hit.(*RegionPolygon)
		if p.Within(region.Geom) != geom.Outside {
			ids = append(ids, region.ID)
		}
	}
	sort.Strings(ids)

	if idx.cache != nil {
		idx.cache.put(key, ids)
	}
	return ids
}

// Locate assigns each event to its containing region(s). Events matching no
// region are dropped; events matching several fan out to one LocatedEvent
// per region. Pure and single-threaded; the pipeline shards it across
// workers since per-event queries are independent.
func Locate(events []NormalizedEvent, idx *RegionIndex) []LocatedEvent {
	located := make([]LocatedEvent, 0, len(events))
	for _, e := range events {
		for _, id := range idx.Query(e.Lat, e.Lon) {
			located = append(located, LocatedEvent{NormalizedEvent: e, RegionID: id})
		}
	}
	return located
}

// lruCache is a thread-safe LRU of containment results.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []string
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
