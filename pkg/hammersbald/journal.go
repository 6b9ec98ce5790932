package hammersbald

import (
	"encoding/binary"
	"fmt"
)

// Record tags for the redo/undo log (§4.5). The log is a sequence of
// these records; recovery replays them in order.
const (
	journalTagSlotPreImage byte = 1
	journalTagStoreLength  byte = 2
)

const (
	journalSlotRecordBytes  = 1 + 8 + pageSize // tag + page index + full page
	journalStoreRecordBytes = 1 + 1 + 8        // tag + store kind + length
)

// journal is the redo/undo log (the .lg family): a small fsynced file,
// empty between batches. The first time a batch touches a slot page or
// extends a store, a record is appended and fsynced before that
// modification is allowed to reach its persistent location (§4.5).
type journal struct {
	backend      fileBackend
	loggedPages  map[uint64]bool
	loggedStores map[storeKind]bool
}

func openJournal(backend fileBackend) (*journal, error) {
	return &journal{
		backend:      backend,
		loggedPages:  make(map[uint64]bool),
		loggedStores: make(map[storeKind]bool),
	}, nil
}

// logSlotPreImageOnce logs page's pre-modification bytes, once per
// batch per page.
func (j *journal) logSlotPreImageOnce(page uint64, preImage []byte) error {
	if j.loggedPages[page] {
		return nil
	}
	rec := make([]byte, journalSlotRecordBytes)
	rec[0] = journalTagSlotPreImage
	binary.BigEndian.PutUint64(rec[1:9], page)
	copy(rec[9:], preImage)
	if _, err := j.backend.Append(rec); err != nil {
		return newError(KindIo, "journal.logSlotPreImageOnce", err)
	}
	if err := j.backend.Sync(); err != nil {
		return newError(KindIo, "journal.logSlotPreImageOnce", err)
	}
	j.loggedPages[page] = true
	return nil
}

// logStoreLengthOnce logs store's length-before-batch, once per batch
// per store.
func (j *journal) logStoreLengthOnce(kind storeKind, length uint64) error {
	if j.loggedStores[kind] {
		return nil
	}
	rec := make([]byte, journalStoreRecordBytes)
	rec[0] = journalTagStoreLength
	rec[1] = byte(kind)
	binary.BigEndian.PutUint64(rec[2:10], length)
	if _, err := j.backend.Append(rec); err != nil {
		return newError(KindIo, "journal.logStoreLengthOnce", err)
	}
	if err := j.backend.Sync(); err != nil {
		return newError(KindIo, "journal.logStoreLengthOnce", err)
	}
	j.loggedStores[kind] = true
	return nil
}

// truncate is the atomic commit point (§4.5): it empties the log and
// resets per-batch tracking for the next batch.
func (j *journal) truncate() error {
	if err := j.backend.Truncate(0); err != nil {
		return newError(KindIo, "journal.truncate", err)
	}
	if err := j.backend.Sync(); err != nil {
		return newError(KindIo, "journal.truncate", err)
	}
	j.loggedPages = make(map[uint64]bool)
	j.loggedStores = make(map[storeKind]bool)
	return nil
}

// journalSlotRecord and journalStoreRecord are the decoded forms used
// by recovery.go when replaying a non-empty log found at open.
type journalSlotRecord struct {
	Page     uint64
	PreImage []byte
}

type journalStoreRecord struct {
	Kind   storeKind
	Length uint64
}

// readAll parses every record in the log file, in order, for replay.
func (j *journal) readAll() ([]journalSlotRecord, []journalStoreRecord, error) {
	size, err := j.backend.Size()
	if err != nil {
		return nil, nil, newError(KindIo, "journal.readAll", err)
	}
	if size == 0 {
		return nil, nil, nil
	}
	buf := make([]byte, size)
	if _, err := j.backend.ReadAt(buf, 0); err != nil {
		return nil, nil, newError(KindIo, "journal.readAll", err)
	}

	var slots []journalSlotRecord
	var stores []journalStoreRecord
	off := 0
	for off < len(buf) {
		switch buf[off] {
		case journalTagSlotPreImage:
			if off+journalSlotRecordBytes > len(buf) {
				return nil, nil, newError(KindCorrupt, "journal.readAll",
					fmt.Errorf("truncated slot pre-image record at offset %d", off))
			}
			page := binary.BigEndian.Uint64(buf[off+1 : off+9])
			preImage := make([]byte, pageSize)
			copy(preImage, buf[off+9:off+journalSlotRecordBytes])
			slots = append(slots, journalSlotRecord{Page: page, PreImage: preImage})
			off += journalSlotRecordBytes
		case journalTagStoreLength:
			if off+journalStoreRecordBytes > len(buf) {
				return nil, nil, newError(KindCorrupt, "journal.readAll",
					fmt.Errorf("truncated store length record at offset %d", off))
			}
			kind := storeKind(buf[off+1])
			length := binary.BigEndian.Uint64(buf[off+2 : off+10])
			stores = append(stores, journalStoreRecord{Kind: kind, Length: length})
			off += journalStoreRecordBytes
		default:
			return nil, nil, newError(KindCorrupt, "journal.readAll",
				fmt.Errorf("unknown journal record tag %d at offset %d", buf[off], off))
		}
	}
	return slots, stores, nil
}
