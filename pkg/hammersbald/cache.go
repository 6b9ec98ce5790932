package hammersbald

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/cuemby/hammersbald/pkg/metrics"
)

// pageSize is the unit of caching and of on-disk table pages (§4.3).
const pageSize = 4096

// pageCache is a bounded LRU over the table segment's 4 KiB pages
// (header page 0 plus slot pages). Every read of a table page goes
// through it; dirty pages are pinned (never evicted) until flushDirty
// writes them back at a batch boundary (§4.3). A single mutex protects
// the whole structure, matching the spec's "single lock protects the
// map" description — table pages are small and batches are not the hot
// path, so a coarse lock is the right tradeoff here.
type pageCache struct {
	mu       sync.Mutex
	capacity int
	backend  fileBackend
	pages    map[uint64]*list.Element // page index -> lru element
	lru      *list.List               // list of *cachedPage, front = most recently used
	dirty    map[uint64]*cachedPage
}

type cachedPage struct {
	index uint64
	data  [pageSize]byte
	dirty bool
}

func newPageCache(backend fileBackend, capacity int) *pageCache {
	if capacity < 1 {
		capacity = 1
	}
	return &pageCache{
		capacity: capacity,
		backend:  backend,
		pages:    make(map[uint64]*list.Element),
		lru:      list.New(),
		dirty:    make(map[uint64]*cachedPage),
	}
}

// get returns the bytes of table page index, reading through to the
// backend on a miss. Pages beyond the backend's current extent read as
// all-zero (a not-yet-allocated slot page).
func (c *pageCache) get(index uint64) (*cachedPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.pages[index]; ok {
		c.lru.MoveToFront(el)
		metrics.CacheHitsTotal.Inc()
		return el.Value.(*cachedPage), nil
	}

	metrics.CacheMissesTotal.Inc()
	cp := &cachedPage{index: index}
	size, err := c.backend.Size()
	if err != nil {
		return nil, newError(KindIo, "pageCache.get", err)
	}
	off := int64(index) * pageSize
	if off < size {
		n := pageSize
		if off+int64(n) > size {
			n = int(size - off)
		}
		if _, err := c.backend.ReadAt(cp.data[:n], off); err != nil {
			return nil, newError(KindIo, "pageCache.get", err)
		}
	}

	c.insert(cp)
	return cp, nil
}

func (c *pageCache) insert(cp *cachedPage) {
	el := c.lru.PushFront(cp)
	c.pages[cp.index] = el
	c.evictIfNeeded()
	metrics.CacheSizePages.Set(float64(len(c.pages)))
}

// evictIfNeeded drops clean pages from the back of the LRU list until
// the cache is within capacity. Dirty pages are never evicted (§4.3).
func (c *pageCache) evictIfNeeded() {
	for len(c.pages) > c.capacity {
		el := c.lru.Back()
		evicted := false
		for el != nil {
			cp := el.Value.(*cachedPage)
			if !cp.dirty {
				c.lru.Remove(el)
				delete(c.pages, cp.index)
				evicted = true
				break
			}
			el = el.Prev()
		}
		if !evicted {
			// Every page is dirty; capacity is temporarily exceeded
			// until the next flush. This can't grow without bound
			// because the index only dirties a page once per batch.
			return
		}
	}
}

// markDirty marks page index's in-memory content as newData and pins it
// against eviction until flush.
func (c *pageCache) markDirty(index uint64, newData []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.pages[index]
	if !ok {
		return newError(KindCorrupt, "pageCache.markDirty", fmt.Errorf("page %d not resident", index))
	}
	cp := el.Value.(*cachedPage)
	copy(cp.data[:], newData)
	if !cp.dirty {
		cp.dirty = true
		c.dirty[index] = cp
		metrics.CacheDirtyPages.Set(float64(len(c.dirty)))
	}
	return nil
}

// flushDirty writes every dirty page back to the backend, fsyncs, and
// clears dirty status. Called at Batch() commit, after the pages have
// already been logged by the journal.
func (c *pageCache) flushDirty() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for index, cp := range c.dirty {
		off := int64(index) * pageSize
		if err := c.backend.WriteAt(cp.data[:], off); err != nil {
			return newError(KindIo, "pageCache.flushDirty", err)
		}
		cp.dirty = false
		delete(c.dirty, index)
	}
	metrics.CacheDirtyPages.Set(0)
	if err := c.backend.Sync(); err != nil {
		return newError(KindIo, "pageCache.flushDirty", err)
	}
	return nil
}

// dirtyCount reports how many pages are currently pinned dirty.
func (c *pageCache) dirtyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty)
}

// len reports how many pages are currently resident in the cache.
func (c *pageCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}
