package hammersbald

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cuemby/hammersbald/pkg/log"
	"github.com/cuemby/hammersbald/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	tablePrefix = "index.tb"
	dataPrefix  = "data.bc"
	linkPrefix  = "link.bl"
	logPrefix   = "journal.lg"

	defaultCachePages       = 4096
	defaultFillTarget       = 2
	defaultWriterQueueDepth = 256

	minFillTarget = 1
	maxFillTarget = 64
)

// Database lifecycle states (§9 "Global state" / §7 terminal error).
const (
	stateOpen int32 = iota
	stateTerminal
	stateClosed
)

// CreateOptions carries what the host supplies at creation time (§6):
// cache page budget, bucket-fill target, writer queue depth, and
// optionally a fixed siphash key for reproducible tests (§9 open
// question, resolved in SPEC_FULL.md supplement #2).
type CreateOptions struct {
	CachePages       int
	FillTarget       uint32
	WriterQueueDepth int
	SipHashKey       [SipHashKeyBytes]byte
}

// Database is the public, process-owned handle to an open Hammersbald
// store (§9 "Global state": an ordinary owned value, no singleton).
type Database struct {
	dir  string
	lock *fileLock

	tb   fileBackend
	data fileBackend
	link fileBackend
	lg   fileBackend

	cache   *pageCache
	dataBuf *storeBuffer
	linkBuf *storeBuffer
	links   *linkStore
	jr      *journal
	idx     *index
	w       *writer

	batchMu sync.Mutex
	state   int32

	instanceID string
	logger     zerolog.Logger
}

// Create initializes a brand-new database in dir, which must not
// already contain one.
func Create(dir string, opts CreateOptions) (*Database, error) {
	return openDatabase(dir, opts, false)
}

// Open opens a database previously created in dir, running recovery if
// the log is non-empty (§4.8).
func Open(dir string, opts CreateOptions) (*Database, error) {
	return openDatabase(dir, opts, true)
}

func openDatabase(dir string, opts CreateOptions, mustExist bool) (db *Database, err error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, newError(KindIo, "Open", err)
	}

	lockPath := filepath.Join(dir, tablePrefix+".0")
	lock, err := acquireLock(lockPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			lock.release()
		}
	}()

	tb, err := openSegment(dir, tablePrefix)
	if err != nil {
		return nil, err
	}
	data, err := openSegment(dir, dataPrefix)
	if err != nil {
		return nil, err
	}
	link, err := openSegment(dir, linkPrefix)
	if err != nil {
		return nil, err
	}
	lg, err := openSegment(dir, logPrefix)
	if err != nil {
		return nil, err
	}

	tbSize, err := tb.Size()
	if err != nil {
		return nil, err
	}
	fresh := tbSize == 0

	if fresh && mustExist {
		return nil, newError(KindCorrupt, "Open", errors.New("no database found at path"))
	}
	if !fresh && !mustExist {
		return nil, newError(KindAlreadyOpen, "Create", errors.New("a database already exists at path"))
	}

	if !fresh {
		if err := recover(tb, data, link, lg); err != nil {
			return nil, err
		}
	}

	var header tableHeader
	if fresh {
		fillTarget := opts.FillTarget
		if fillTarget == 0 {
			fillTarget = defaultFillTarget
		}
		if fillTarget < minFillTarget {
			fillTarget = minFillTarget
		}
		if fillTarget > maxFillTarget {
			fillTarget = maxFillTarget
		}

		var sip sipHashKey
		if opts.SipHashKey == ([SipHashKeyBytes]byte{}) {
			sip, err = randomSipHashKey()
			if err != nil {
				return nil, err
			}
		} else {
			sip = decodeSipHashKey(opts.SipHashKey[:])
		}

		header = tableHeader{Level: 0, Split: 0, FillTarget: fillTarget, SipKey: sip}
		if _, err := tb.Append(encodeHeader(header)); err != nil {
			return nil, newError(KindIo, "Create", err)
		}
		if err := ensureBackendPages(tb, firstSlotPage+1); err != nil {
			return nil, err
		}
	} else {
		buf := make([]byte, pageSize)
		if _, err := tb.ReadAt(buf, int64(headerPageIndex)*pageSize); err != nil {
			return nil, newError(KindIo, "Open", err)
		}
		header, err = decodeHeader(buf)
		if err != nil {
			return nil, err
		}
	}

	cachePages := opts.CachePages
	if cachePages <= 0 {
		cachePages = defaultCachePages
	}
	cache := newPageCache(tb, cachePages)

	jr, err := openJournal(lg)
	if err != nil {
		return nil, err
	}

	dataBuf, err := openStoreBuffer(data)
	if err != nil {
		return nil, err
	}
	linkBuf, err := openStoreBuffer(link)
	if err != nil {
		return nil, err
	}
	links := &linkStore{buf: linkBuf}

	idx := newIndex(cache, tb, jr, links, header.SipKey, header)

	queueDepth := opts.WriterQueueDepth
	if queueDepth <= 0 {
		queueDepth = defaultWriterQueueDepth
	}
	w := newWriter(dataBuf, linkBuf, jr, queueDepth)

	instanceID := uuid.NewString()
	zlog := log.WithDB(dir).With().Str("instance_id", instanceID).Logger()

	db = &Database{
		dir:        dir,
		lock:       lock,
		tb:         tb,
		data:       data,
		link:       link,
		lg:         lg,
		cache:      cache,
		dataBuf:    dataBuf,
		linkBuf:    linkBuf,
		links:      links,
		jr:         jr,
		idx:        idx,
		w:          w,
		state:      stateOpen,
		instanceID: instanceID,
		logger:     zlog,
	}

	metrics.RegisterComponent("cache", true, "")
	metrics.RegisterComponent("writer", true, "")
	metrics.RegisterComponent("journal", true, "")
	metrics.RegisterComponent("index", true, "")
	metrics.SlotCount.Set(float64(idx.slotCount()))
	metrics.SplitPointer.Set(float64(idx.split))
	metrics.EntriesTotal.Set(float64(idx.entries))
	metrics.TerminalErrors.Set(0)

	dbLog := log.WithComponent("db")
	dbLog.Info().Str("path", dir).Str("instance_id", instanceID).
		Bool("fresh", fresh).Msg("hammersbald database opened")

	return db, nil
}

func (db *Database) checkOpenForRead() error {
	if atomic.LoadInt32(&db.state) == stateClosed {
		return newError(KindIo, "operation", errors.New("database is closed"))
	}
	return nil
}

func (db *Database) checkOpenForWrite() error {
	switch atomic.LoadInt32(&db.state) {
	case stateClosed:
		return newError(KindIo, "operation", errors.New("database is closed"))
	case stateTerminal:
		return newError(KindIo, "operation", errors.New("database is in terminal error state; reopen required"))
	}
	return nil
}

// maybeFail transitions the database to the terminal error state when
// err is an Io or Corrupt failure (§7): those leave the engine
// read-only until reopen. KeyTooLong, ValueTooLarge, and
// SlotSpaceExhausted are surfaced but the engine stays healthy.
func (db *Database) maybeFail(err error) error {
	if err == nil {
		return nil
	}
	var he *Error
	if errors.As(err, &he) && (he.Kind == KindIo || he.Kind == KindCorrupt) {
		if atomic.CompareAndSwapInt32(&db.state, stateOpen, stateTerminal) {
			metrics.TerminalErrors.Set(1)
			metrics.UpdateComponent("writer", false, he.Error())
			db.logger.Error().Err(err).Msg("engine entering terminal error state")
		}
	}
	return err
}

// PutKeyed writes a Keyed envelope and prepends a link to slot H(key),
// returning the envelope's PRef (§4.1).
func (db *Database) PutKeyed(key, value []byte) (PRef, error) {
	if err := db.checkOpenForWrite(); err != nil {
		return NilPRef, err
	}

	payload, err := encodeKeyedPayload(key, value)
	if err != nil {
		return NilPRef, err
	}

	p, err := writeEnvelope(db.w, storeData, TagKeyed, payload)
	if err != nil {
		return NilPRef, db.maybeFail(err)
	}

	h64 := db.idx.sip.hash64(key)
	if err := db.idx.insert(h64, p, db.w); err != nil {
		return NilPRef, db.maybeFail(err)
	}
	metrics.SlotCount.Set(float64(db.idx.slotCount()))
	metrics.SplitPointer.Set(float64(db.idx.split))
	return p, nil
}

// Put writes a Referenced envelope with no index entry and returns its
// PRef (§4.1).
func (db *Database) Put(value []byte) (PRef, error) {
	if err := db.checkOpenForWrite(); err != nil {
		return NilPRef, err
	}
	p, err := writeEnvelope(db.w, storeData, TagReferenced, value)
	if err != nil {
		return NilPRef, db.maybeFail(err)
	}
	return p, nil
}

// GetKeyed returns the most recently inserted value for key, or found
// == false if it was never inserted (§4.1).
func (db *Database) GetKeyed(key []byte) (value []byte, found bool, err error) {
	if err := db.checkOpenForRead(); err != nil {
		return nil, false, err
	}
	h64 := db.idx.sip.hash64(key)
	var gotValue []byte
	_, ok, err := db.idx.lookup(h64, func(candidate PRef) (bool, error) {
		tag, payload, err := readEnvelope(db.dataBuf, candidate)
		if err != nil {
			return false, err
		}
		if tag != TagKeyed {
			return false, newError(KindCorrupt, "GetKeyed",
				fmt.Errorf("expected keyed envelope at %d, got %s", candidate, tag))
		}
		gotKey, v, err := decodeKeyedPayload(payload)
		if err != nil {
			return false, err
		}
		if string(gotKey) != string(key) {
			// A siphash collision between distinct keys; keep walking
			// the chain past this entry for the real match.
			return false, nil
		}
		gotValue = v
		return true, nil
	})
	if err != nil {
		return nil, false, db.maybeFail(err)
	}
	if !ok {
		return nil, false, nil
	}
	return gotValue, true, nil
}

// Get reads a Referenced (or Keyed, returning its value) envelope by
// PRef (§4.1).
func (db *Database) Get(p PRef) ([]byte, error) {
	if err := db.checkOpenForRead(); err != nil {
		return nil, err
	}
	tag, payload, err := readEnvelope(db.dataBuf, p)
	if err != nil {
		return nil, db.maybeFail(err)
	}
	switch tag {
	case TagReferenced:
		return payload, nil
	case TagKeyed:
		_, value, err := decodeKeyedPayload(payload)
		if err != nil {
			return nil, db.maybeFail(err)
		}
		return value, nil
	default:
		return nil, db.maybeFail(newError(KindCorrupt, "Get",
			fmt.Errorf("unexpected tag %s at %d", tag, p)))
	}
}

// MayHaveKey is a probabilistic existence test (§4.1): never a false
// negative, may false-positive with probability roughly chain-length /
// 2^64 (testable property 7).
func (db *Database) MayHaveKey(key []byte) (bool, error) {
	if err := db.checkOpenForRead(); err != nil {
		return false, err
	}
	h64 := db.idx.sip.hash64(key)
	found, err := db.idx.mayHaveKey(h64)
	if err != nil {
		return false, db.maybeFail(err)
	}
	return found, nil
}

// Batch ends the current batch (§4.1): drains pending writes, fsyncs
// data and link stores, rewrites dirty slot pages, fsyncs the index,
// then truncates the log — that truncation is the atomic commit point.
// A new batch starts implicitly.
func (db *Database) Batch() error {
	if err := db.checkOpenForWrite(); err != nil {
		return err
	}
	return db.commitBatch()
}

// commitBatch is Batch's body without the open-state gate, so Shutdown
// can run one final commit after it has already claimed the closed
// state.
func (db *Database) commitBatch() error {
	db.batchMu.Lock()
	defer db.batchMu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BatchDuration)

	if err := db.w.flushAll(); err != nil {
		return db.maybeFail(err)
	}
	if err := db.data.Sync(); err != nil {
		return db.maybeFail(newError(KindIo, "Batch", err))
	}
	if err := db.link.Sync(); err != nil {
		return db.maybeFail(newError(KindIo, "Batch", err))
	}

	if err := db.persistHeader(); err != nil {
		return db.maybeFail(err)
	}
	if err := db.cache.flushDirty(); err != nil {
		return db.maybeFail(err)
	}

	if err := db.jr.truncate(); err != nil {
		return db.maybeFail(err)
	}

	metrics.BatchesTotal.Inc()
	return nil
}

// persistHeader writes the current in-memory header fields (level,
// split, fill target, store ends, siphash key, entry count) back to
// page 0, through the same logged-pre-image path as any other table
// page (§4.5, §4.7 "Persistence").
func (db *Database) persistHeader() error {
	h := db.idx.snapshot()
	h.DataEnd = db.dataBuf.logicalLength()
	h.LinkEnd = db.linkBuf.logicalLength()

	cp, err := db.cache.get(headerPageIndex)
	if err != nil {
		return err
	}
	if err := db.jr.logSlotPreImageOnce(headerPageIndex, cp.data[:]); err != nil {
		return err
	}
	return db.cache.markDirty(headerPageIndex, encodeHeader(h))
}

// Shutdown performs Batch(), then releases all resources (§4.1, §9).
// In the terminal error state it skips the commit and only releases
// resources.
func (db *Database) Shutdown() error {
	if !atomic.CompareAndSwapInt32(&db.state, stateOpen, stateClosed) {
		if atomic.CompareAndSwapInt32(&db.state, stateTerminal, stateClosed) {
			db.releaseResources()
			return nil
		}
		return newError(KindIo, "Shutdown", errors.New("database already closed"))
	}

	err := db.commitBatch()
	db.releaseResources()
	if err != nil {
		return err
	}
	return nil
}

func (db *Database) releaseResources() {
	db.w.shutdown()
	db.tb.Close()
	db.data.Close()
	db.link.Close()
	db.lg.Close()
	db.lock.release()
	metrics.UpdateComponent("cache", false, "closed")
	metrics.UpdateComponent("writer", false, "closed")
	metrics.UpdateComponent("journal", false, "closed")
	metrics.UpdateComponent("index", false, "closed")
	db.logger.Info().Msg("hammersbald database closed")
}

// Stats returns a point-in-time snapshot of engine state.
func (db *Database) Stats() (Stats, error) {
	if err := db.checkOpenForRead(); err != nil {
		return Stats{}, err
	}
	h := db.idx.snapshot()
	return Stats{
		Path:          db.dir,
		FormatVersion: formatVersion,
		Level:         h.Level,
		SplitPointer:  h.Split,
		SlotCount:     db.idx.slotCount(),
		FillTarget:    h.FillTarget,
		DataStoreEnd:  db.dataBuf.logicalLength(),
		LinkStoreEnd:  db.linkBuf.logicalLength(),
		CachedPages:   db.cache.len(),
		DirtyPages:    db.cache.dirtyCount(),
		TerminalError: atomic.LoadInt32(&db.state) == stateTerminal,
		InstanceID:    db.instanceID,
	}, nil
}

// Stats is a point-in-time snapshot of engine state.
type Stats struct {
	Path          string
	FormatVersion uint16
	Level         uint32
	SplitPointer  uint32
	SlotCount     uint64
	FillTarget    uint32
	DataStoreEnd  uint64
	LinkStoreEnd  uint64
	CachedPages   int
	DirtyPages    int
	TerminalError bool
	InstanceID    string
}
