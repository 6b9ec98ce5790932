package hammersbald

import (
	"fmt"
	"sync"
)

// storeKind identifies which append-only family a PRef or write request
// belongs to.
type storeKind int

const (
	storeData storeKind = iota // .bc: Keyed + Referenced envelopes, interleaved
	storeLink                  // .bl: Link envelopes
)

func (k storeKind) String() string {
	switch k {
	case storeData:
		return "data"
	case storeLink:
		return "link"
	default:
		return "unknown"
	}
}

// storeBuffer is one append-only store's view of its own tail: bytes
// durably written to backend (flushedEnd) plus bytes already assigned a
// PRef and readable in-process but not yet flushed (pending). This is
// what makes "the latest uncommitted value visible to the writer and to
// readers on the same process" (§5) work without waiting for the async
// writer to actually touch disk.
type storeBuffer struct {
	mu         sync.RWMutex
	backend    fileBackend
	flushedEnd uint64
	pending    []byte
}

func openStoreBuffer(backend fileBackend) (*storeBuffer, error) {
	size, err := backend.Size()
	if err != nil {
		return nil, newError(KindIo, "openStoreBuffer", err)
	}
	if size == 0 {
		// Reserve offset 0 so NilPRef is never a valid envelope
		// location in this store.
		if _, err := backend.Append([]byte{0}); err != nil {
			return nil, newError(KindIo, "openStoreBuffer", err)
		}
		size = 1
	}
	return &storeBuffer{backend: backend, flushedEnd: uint64(size)}, nil
}

// logicalLength returns the store's current total length, durable plus
// pending.
func (b *storeBuffer) logicalLength() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.flushedEnd + uint64(len(b.pending))
}

// appendPending assigns data the next logical offset and stages it for
// background flush, returning the offset assigned. This is the
// synchronous PRef allocation of §4.4.
func (b *storeBuffer) appendPending(data []byte) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	off := b.flushedEnd + uint64(len(b.pending))
	b.pending = append(b.pending, data...)
	return off
}

// readAt reads n bytes at logical offset off, transparently stitching
// together the durable and pending portions.
func (b *storeBuffer) readAt(off, n uint64) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	end := b.flushedEnd + uint64(len(b.pending))
	if off+n > end {
		return nil, newError(KindCorrupt, "storeBuffer.readAt",
			fmt.Errorf("read [%d,%d) past logical end %d", off, off+n, end))
	}

	out := make([]byte, n)
	filled := uint64(0)
	if off < b.flushedEnd {
		backendN := n
		if off+n > b.flushedEnd {
			backendN = b.flushedEnd - off
		}
		if _, err := b.backend.ReadAt(out[:backendN], int64(off)); err != nil {
			return nil, newError(KindIo, "storeBuffer.readAt", err)
		}
		filled = backendN
	}
	if filled < n {
		pendingStart := uint64(0)
		if off > b.flushedEnd {
			pendingStart = off - b.flushedEnd
		}
		copy(out[filled:], b.pending[pendingStart:pendingStart+(n-filled)])
	}
	return out, nil
}

// flush writes all currently pending bytes to the backend (no fsync —
// durability is established separately by Batch()) and clears pending.
func (b *storeBuffer) flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	if _, err := b.backend.Append(b.pending); err != nil {
		return newError(KindIo, "storeBuffer.flush", err)
	}
	b.flushedEnd += uint64(len(b.pending))
	b.pending = b.pending[:0]
	return nil
}

// The data store (a bare storeBuffer) and linkStore both read/write
// envelopes through a storeBuffer; the distinction is only which tags are valid for each
// and what each construct out of its decoded payload.

// readEnvelope reads the envelope at p from buf and returns its tag and
// decoded payload.
func readEnvelope(buf *storeBuffer, p PRef) (Tag, []byte, error) {
	hdr, err := buf.readAt(p.Offset(), envelopeHeaderBytes)
	if err != nil {
		return 0, nil, err
	}
	tag, length, err := decodeEnvelopeHeader(hdr)
	if err != nil {
		return 0, nil, err
	}
	payload, err := buf.readAt(p.Offset()+envelopeHeaderBytes, uint64(length))
	if err != nil {
		return 0, nil, err
	}
	return tag, payload, nil
}

// writeEnvelope frames payload under tag and hands it to the writer for
// the given store, returning the assigned PRef.
func writeEnvelope(w *writer, kind storeKind, tag Tag, payload []byte) (PRef, error) {
	env, err := encodeEnvelope(tag, payload)
	if err != nil {
		return NilPRef, err
	}
	if uint64(len(env))+1 > prefMax {
		return NilPRef, newError(KindValueTooLarge, "writeEnvelope",
			fmt.Errorf("envelope of %d bytes exceeds addressable range", len(env)))
	}
	return w.write(kind, env)
}
