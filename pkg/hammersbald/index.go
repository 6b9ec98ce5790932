package hammersbald

import (
	"sync"

	"github.com/cuemby/hammersbald/pkg/metrics"
)

// maxLevel bounds slot growth at 2^32 slots (§4.7 Capacity).
const maxLevel = 32

// index is the in-memory + on-disk linear-hash table (§4.7): S slots,
// S = 2^level + split, each holding the PRef of a bucket chain's head
// in the link store.
type index struct {
	mu         sync.RWMutex
	level      uint32
	split      uint32
	fillTarget uint32
	entries    uint64

	cache   *pageCache
	tb      fileBackend
	log     *journal
	links   *linkStore
	sip     sipHashKey
}

func newIndex(cache *pageCache, tb fileBackend, log *journal, links *linkStore, sip sipHashKey, h tableHeader) *index {
	return &index{
		level:      h.Level,
		split:      h.Split,
		fillTarget: h.FillTarget,
		entries:    h.Entries,
		cache:      cache,
		tb:         tb,
		log:        log,
		links:      links,
		sip:        sip,
	}
}

// slotCount returns S = 2^level + split.
func (ix *index) slotCount() uint64 {
	return uint64(1)<<ix.level + uint64(ix.split)
}

// resolve maps a 64-bit hash to its current slot under linear hashing
// (§4.7): the low L bits, corrected by the split pointer.
func (ix *index) resolve(h64 uint64) uint64 {
	i := h64 & (uint64(1)<<ix.level - 1)
	if i < uint64(ix.split) {
		i = h64 & (uint64(1)<<(ix.level+1) - 1)
	}
	return i
}

func (ix *index) getSlot(idx uint64) (PRef, error) {
	page, offset := slotLocation(idx)
	cp, err := ix.cache.get(page)
	if err != nil {
		return NilPRef, err
	}
	return getPRef(cp.data[offset : offset+slotBytes]), nil
}

// setSlot overwrites slot idx, logging the page's pre-image to the
// journal the first time this batch touches it (§4.5).
func (ix *index) setSlot(idx uint64, p PRef) error {
	page, offset := slotLocation(idx)
	if err := ensureBackendPages(ix.tb, page+1); err != nil {
		return err
	}
	cp, err := ix.cache.get(page)
	if err != nil {
		return err
	}
	if err := ix.log.logSlotPreImageOnce(page, cp.data[:]); err != nil {
		return err
	}
	newData := make([]byte, pageSize)
	copy(newData, cp.data[:])
	putPRef(newData[offset:offset+slotBytes], p)
	return ix.cache.markDirty(page, newData)
}

// insert prepends (h64, data) to the chain at slot H(key), growing the
// table by at most one split (§4.7).
func (ix *index) insert(h64 uint64, data PRef, w *writer) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	idx := ix.resolve(h64)
	head, err := ix.getSlot(idx)
	if err != nil {
		return err
	}
	newHead, err := ix.links.prependEntries([]linkEntry{{H64: h64, Data: data}}, head, w)
	if err != nil {
		return err
	}
	if err := ix.setSlot(idx, newHead); err != nil {
		return err
	}
	ix.entries++
	metrics.EntriesTotal.Set(float64(ix.entries))

	return ix.maybeSplit(w)
}

// maybeSplit advances the split pointer by one bucket if the table has
// grown past target_fill * S (§4.7). At most one split per insert.
func (ix *index) maybeSplit(w *writer) error {
	s := ix.slotCount()
	if ix.entries <= uint64(ix.fillTarget)*s {
		return nil
	}
	if ix.level >= maxLevel {
		return newError(KindSlotSpaceExhausted, "index.maybeSplit", nil)
	}

	oldIdx := uint64(ix.split)
	newIdx := oldIdx + uint64(1)<<ix.level
	newModulus := uint64(1)<<(ix.level+1) - 1

	head, err := ix.getSlot(oldIdx)
	if err != nil {
		return err
	}
	all, err := ix.links.collectAll(head)
	if err != nil {
		return err
	}

	var keep, move []linkEntry
	for _, e := range all {
		if e.H64&newModulus == oldIdx {
			keep = append(keep, e)
		} else {
			move = append(move, e)
		}
	}

	newOldHead, err := ix.links.prependEntries(keep, NilPRef, w)
	if err != nil {
		return err
	}
	newNewHead, err := ix.links.prependEntries(move, NilPRef, w)
	if err != nil {
		return err
	}
	if err := ix.setSlot(oldIdx, newOldHead); err != nil {
		return err
	}
	if err := ix.setSlot(newIdx, newNewHead); err != nil {
		return err
	}

	ix.split++
	if uint64(ix.split) == uint64(1)<<ix.level {
		ix.level++
		ix.split = 0
	}
	metrics.SplitsTotal.Inc()
	metrics.SlotCount.Set(float64(ix.slotCount()))
	metrics.SplitPointer.Set(float64(ix.split))
	return nil
}

// lookup walks the chain at H(key), calling matches for every link entry
// whose siphash equals h64 (chain order is most-recent-first, giving
// correct supersession per invariant 1) until matches reports true or the
// chain is exhausted. A siphash match alone does not prove key equality,
// so callers that need the actual key (GetKeyed) must supply a matches
// func that reads the envelope and compares it; a chain with more than
// one h64 collision is walked past until the real key is found.
func (ix *index) lookup(h64 uint64, matches func(p PRef) (bool, error)) (PRef, bool, error) {
	ix.mu.RLock()
	idx := ix.resolve(h64)
	head, err := ix.getSlot(idx)
	ix.mu.RUnlock()
	if err != nil {
		return NilPRef, false, err
	}

	var found PRef
	hasMatch := false
	err = ix.links.walk(head, func(e linkEntry) (bool, error) {
		if e.H64 != h64 {
			return false, nil
		}
		ok, err := matches(e.Data)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		found = e.Data
		hasMatch = true
		return true, nil
	})
	if err != nil {
		return NilPRef, false, err
	}
	return found, hasMatch, nil
}

// mayHaveKey implements §4.1's probabilistic existence test: it walks
// the chain comparing only siphashes, so it can false-positive but
// never false-negative (testable property 7).
func (ix *index) mayHaveKey(h64 uint64) (bool, error) {
	ix.mu.RLock()
	idx := ix.resolve(h64)
	head, err := ix.getSlot(idx)
	ix.mu.RUnlock()
	if err != nil {
		return false, err
	}
	found := false
	err = ix.links.walk(head, func(e linkEntry) (bool, error) {
		if e.H64 == h64 {
			found = true
			return true, nil
		}
		return false, nil
	})
	return found, err
}

func (ix *index) snapshot() tableHeader {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return tableHeader{
		Level:      ix.level,
		Split:      ix.split,
		FillTarget: ix.fillTarget,
		SipKey:     ix.sip,
		Entries:    ix.entries,
	}
}
