package hammersbald

import (
	"errors"
	"sync"

	"github.com/cuemby/hammersbald/pkg/metrics"
)

// writer is the async writer (§4.4, §9 "Coroutine control flow"): a
// message loop with a bounded queue and a single consumer, not an async
// function. It owns write access to the data and link stores, assigns
// PRefs synchronously on the calling goroutine so links can be formed
// before bytes reach disk, and only blocks the caller when the queue is
// full (backpressure, §5).
type writer struct {
	dataBuf *storeBuffer
	linkBuf *storeBuffer
	log     *journal

	reqCh  chan storeKind
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	failed error
}

func newWriter(dataBuf, linkBuf *storeBuffer, log *journal, queueDepth int) *writer {
	if queueDepth < 1 {
		queueDepth = 1
	}
	w := &writer{
		dataBuf: dataBuf,
		linkBuf: linkBuf,
		log:     log,
		reqCh:   make(chan storeKind, queueDepth),
		stopCh:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *writer) loop() {
	defer w.wg.Done()
	for {
		select {
		case kind, ok := <-w.reqCh:
			if !ok {
				return
			}
			w.drain(kind)
		case <-w.stopCh:
			w.drainRemaining()
			return
		}
	}
}

func (w *writer) drainRemaining() {
	for {
		select {
		case kind := <-w.reqCh:
			w.drain(kind)
		default:
			return
		}
	}
}

func (w *writer) drain(kind storeKind) {
	buf := w.bufFor(kind)
	if err := buf.flush(); err != nil {
		w.fail(err)
	}
	metrics.WriterQueueDepth.Dec()
}

func (w *writer) bufFor(kind storeKind) *storeBuffer {
	if kind == storeData {
		return w.dataBuf
	}
	return w.linkBuf
}

func (w *writer) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed == nil {
		w.failed = err
		metrics.TerminalErrors.Set(1)
	}
}

func (w *writer) failure() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

// write assigns env the next PRef of its store synchronously, logs the
// store's pre-batch length on first touch (§4.5), stages env for
// background flush, and returns its PRef. It blocks only if the
// writer's queue is full.
func (w *writer) write(kind storeKind, env []byte) (PRef, error) {
	if err := w.failure(); err != nil {
		return NilPRef, newError(KindIo, "writer.write", err)
	}

	buf := w.bufFor(kind)
	if err := w.log.logStoreLengthOnce(kind, buf.logicalLength()); err != nil {
		return NilPRef, err
	}

	off := buf.appendPending(env)
	metrics.WriterBytesWrittenTotal.WithLabelValues(kind.String()).Add(float64(len(env)))
	metrics.WriterQueueDepth.Inc()

	select {
	case w.reqCh <- kind:
	case <-w.stopCh:
		// Lost the race to shutdown before reqCh could take the item: it
		// will never reach drain(), so undo the Inc() above ourselves.
		metrics.WriterQueueDepth.Dec()
		return NilPRef, newError(KindIo, "writer.write", errors.New("writer stopped"))
	}
	return PRef(off), nil
}

// flushAll synchronously flushes both stores' pending bytes to their
// backends. Called at Batch() commit, before the fsyncs.
func (w *writer) flushAll() error {
	if err := w.dataBuf.flush(); err != nil {
		w.fail(err)
		return err
	}
	if err := w.linkBuf.flush(); err != nil {
		w.fail(err)
		return err
	}
	return nil
}

// shutdown stops the background loop after draining any queued work.
func (w *writer) shutdown() {
	close(w.stopCh)
	w.wg.Wait()
}
