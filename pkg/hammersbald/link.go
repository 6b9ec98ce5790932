package hammersbald

import (
	"encoding/binary"
	"fmt"
)

// linkArity is N, the maximum number of entries a single link node may
// carry (§3, §9 open question — resolved here; see SPEC_FULL.md
// supplement #1). It is part of the on-disk format and must not change
// without a format version bump.
const linkArity = 32

const (
	linkEntryBytes = 8 + 6 // 8-byte siphash + 6-byte PRef
	linkNextBytes  = 6
	linkCountBytes = 1
)

// linkEntry is one (siphash, data-PRef) pair inside a link node.
type linkEntry struct {
	H64  uint64
	Data PRef
}

// linkNode is a bucket-chain node (§3 "Link"): up to linkArity entries
// plus the PRef of the next (older) node in the chain. Link payloads
// are variable-length — sized to the entries they actually hold, not
// padded to linkArity — since the envelope framing they live inside is
// already variable-length.
type linkNode struct {
	Entries []linkEntry
	Next    PRef
}

func encodeLinkPayload(n linkNode) ([]byte, error) {
	if len(n.Entries) == 0 || len(n.Entries) > linkArity {
		return nil, newError(KindCorrupt, "encodeLinkPayload",
			fmt.Errorf("entry count %d out of range [1, %d]", len(n.Entries), linkArity))
	}
	buf := make([]byte, linkCountBytes+len(n.Entries)*linkEntryBytes+linkNextBytes)
	buf[0] = byte(len(n.Entries))
	off := linkCountBytes
	for _, e := range n.Entries {
		binary.BigEndian.PutUint64(buf[off:off+8], e.H64)
		put48(buf[off+8:off+14], uint64(e.Data))
		off += linkEntryBytes
	}
	put48(buf[off:off+linkNextBytes], uint64(n.Next))
	return buf, nil
}

func decodeLinkPayload(b []byte) (linkNode, error) {
	if len(b) < linkCountBytes+linkNextBytes {
		return linkNode{}, newError(KindCorrupt, "decodeLinkPayload",
			fmt.Errorf("short link payload: %d bytes", len(b)))
	}
	count := int(b[0])
	if count == 0 || count > linkArity {
		return linkNode{}, newError(KindCorrupt, "decodeLinkPayload",
			fmt.Errorf("entry count %d out of range", count))
	}
	want := linkCountBytes + count*linkEntryBytes + linkNextBytes
	if len(b) != want {
		return linkNode{}, newError(KindCorrupt, "decodeLinkPayload",
			fmt.Errorf("link payload is %d bytes, want %d for %d entries", len(b), want, count))
	}
	n := linkNode{Entries: make([]linkEntry, count)}
	off := linkCountBytes
	for i := 0; i < count; i++ {
		h := binary.BigEndian.Uint64(b[off : off+8])
		p := get48(b[off+8 : off+14])
		n.Entries[i] = linkEntry{H64: h, Data: PRef(p)}
		off += linkEntryBytes
	}
	n.Next = PRef(get48(b[off : off+linkNextBytes]))
	return n, nil
}

// linkStore is the append-only store of link envelopes (the .bl family).
type linkStore struct {
	buf *storeBuffer
}

func (ls *linkStore) append(n linkNode, w *writer) (PRef, error) {
	payload, err := encodeLinkPayload(n)
	if err != nil {
		return NilPRef, err
	}
	return writeEnvelope(w, storeLink, TagLink, payload)
}

func (ls *linkStore) read(p PRef) (linkNode, error) {
	tag, payload, err := readEnvelope(ls.buf, p)
	if err != nil {
		return linkNode{}, err
	}
	if tag != TagLink {
		return linkNode{}, newError(KindCorrupt, "linkStore.read",
			fmt.Errorf("expected link tag at %d, got %s", p, tag))
	}
	return decodeLinkPayload(payload)
}

// prependEntries writes as many link nodes as needed (batched up to
// linkArity entries each) to hold entries — ordered most-recent-first —
// chained to tail, and returns the PRef of the new chain head. The
// oldest batch is written first so it can point at tail while staying
// append-only (invariant 2: every next PRef is less than its own).
func (ls *linkStore) prependEntries(entries []linkEntry, tail PRef, w *writer) (PRef, error) {
	if len(entries) == 0 {
		return tail, nil
	}
	next := tail
	end := len(entries)
	for end > 0 {
		start := end - linkArity
		if start < 0 {
			start = 0
		}
		p, err := ls.append(linkNode{Entries: entries[start:end], Next: next}, w)
		if err != nil {
			return NilPRef, err
		}
		next = p
		end = start
	}
	return next, nil
}

// walk visits every entry of the chain rooted at head, head (most
// recent) first, stopping early if visit returns stop=true.
func (ls *linkStore) walk(head PRef, visit func(linkEntry) (stop bool, err error)) error {
	cur := head
	for !cur.IsNil() {
		n, err := ls.read(cur)
		if err != nil {
			return err
		}
		for _, e := range n.Entries {
			stop, err := visit(e)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}
		cur = n.Next
	}
	return nil
}

// collectAll returns every entry of the chain rooted at head, in
// most-recent-first order, used by index splits to rehash a bucket.
func (ls *linkStore) collectAll(head PRef) ([]linkEntry, error) {
	var out []linkEntry
	err := ls.walk(head, func(e linkEntry) (bool, error) {
		out = append(out, e)
		return false, nil
	})
	return out, err
}
