package hammersbald

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hammersbald/pkg/metrics"
)

// newIdleWriter builds a writer with its background loop never started, so
// reqCh can be filled and inspected directly from the test goroutine.
func newIdleWriter(t *testing.T) *writer {
	t.Helper()
	dir := t.TempDir()

	data, err := openSegment(dir, "data.bc")
	require.NoError(t, err)
	link, err := openSegment(dir, "link.bl")
	require.NoError(t, err)
	lg, err := openSegment(dir, "journal.lg")
	require.NoError(t, err)

	jr, err := openJournal(lg)
	require.NoError(t, err)
	dataBuf, err := openStoreBuffer(data)
	require.NoError(t, err)
	linkBuf, err := openStoreBuffer(link)
	require.NoError(t, err)

	return &writer{
		dataBuf: dataBuf,
		linkBuf: linkBuf,
		log:     jr,
		reqCh:   make(chan storeKind, 1),
		stopCh:  make(chan struct{}),
	}
}

// TestWriterWriteUndoesQueueDepthOnShutdownRace covers the race where
// write() has already incremented WriterQueueDepth but loses the race
// against shutdown before its request reaches reqCh: the item never
// reaches drain(), so write() itself must undo the Inc() it made.
func TestWriterWriteUndoesQueueDepthOnShutdownRace(t *testing.T) {
	w := newIdleWriter(t)

	// Fill reqCh's single slot so the reqCh<- case in write() would
	// block, forcing the select to resolve via the closed stopCh.
	w.reqCh <- storeData
	close(w.stopCh)

	before := testutil.ToFloat64(metrics.WriterQueueDepth)
	_, err := w.write(storeData, []byte("payload"))
	require.Error(t, err)
	after := testutil.ToFloat64(metrics.WriterQueueDepth)
	require.Equal(t, before, after, "WriterQueueDepth must not leak when write() loses the race to shutdown")
}
