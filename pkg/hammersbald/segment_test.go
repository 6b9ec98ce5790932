package hammersbald

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentAppendReadAtRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := openSegment(dir, "seg")
	require.NoError(t, err)
	defer s.Close()

	off1, err := s.Append([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), off1)

	off2, err := s.Append([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), off2)

	buf := make([]byte, 5)
	_, err = s.ReadAt(buf, off2)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf))
}

func TestSegmentWriteAtOverwritesInPlace(t *testing.T) {
	dir := t.TempDir()
	s, err := openSegment(dir, "seg")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append(make([]byte, pageSize))
	require.NoError(t, err)

	patch := make([]byte, 16)
	for i := range patch {
		patch[i] = byte(i)
	}
	require.NoError(t, s.WriteAt(patch, 100))

	buf := make([]byte, 16)
	_, err = s.ReadAt(buf, 100)
	require.NoError(t, err)
	assert.Equal(t, patch, buf)
}

func TestSegmentWriteAtRejectsCrossFileBoundary(t *testing.T) {
	dir := t.TempDir()
	s, err := openSegment(dir, "seg")
	require.NoError(t, err)
	defer s.Close()

	// Extend the logical size past the first file's end without writing
	// 1 GiB, so the write clears the logical-end check and is rejected by
	// the file-boundary check before any file I/O happens.
	s.size = 2 * maxFileSize

	err = s.WriteAt(make([]byte, 16), maxFileSize-8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crosses a file boundary")
}

func TestSegmentTruncateShrinksWithinFile(t *testing.T) {
	dir := t.TempDir()
	s, err := openSegment(dir, "seg")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append(make([]byte, 4096))
	require.NoError(t, err)
	require.NoError(t, s.Truncate(1024))

	size, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(1024), size)
}

func TestSegmentReopenPreservesContent(t *testing.T) {
	dir := t.TempDir()
	s, err := openSegment(dir, "seg")
	require.NoError(t, err)
	_, err = s.Append([]byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	s2, err := openSegment(dir, "seg")
	require.NoError(t, err)
	defer s2.Close()

	size, err := s2.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len("persisted")), size)

	buf := make([]byte, len("persisted"))
	_, err = s2.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(buf))
}

// faultBackend wraps a real segment and can be told to fail the next N
// operations of a given kind, for exercising the engine's error paths
// and recovery without a real crash.
type faultBackend struct {
	mu       sync.Mutex
	inner    fileBackend
	failSync int
	failWrite int
}

func newFaultBackend(inner fileBackend) *faultBackend {
	return &faultBackend{inner: inner}
}

func (f *faultBackend) ReadAt(p []byte, off int64) (int, error) {
	return f.inner.ReadAt(p, off)
}

func (f *faultBackend) Append(p []byte) (int64, error) {
	f.mu.Lock()
	if f.failWrite > 0 {
		f.failWrite--
		f.mu.Unlock()
		return 0, newError(KindIo, "faultBackend.Append", errors.New("injected fault"))
	}
	f.mu.Unlock()
	return f.inner.Append(p)
}

func (f *faultBackend) WriteAt(p []byte, off int64) error {
	f.mu.Lock()
	if f.failWrite > 0 {
		f.failWrite--
		f.mu.Unlock()
		return newError(KindIo, "faultBackend.WriteAt", errors.New("injected fault"))
	}
	f.mu.Unlock()
	return f.inner.WriteAt(p, off)
}

func (f *faultBackend) Truncate(size int64) error { return f.inner.Truncate(size) }
func (f *faultBackend) Size() (int64, error)      { return f.inner.Size() }

func (f *faultBackend) Sync() error {
	f.mu.Lock()
	if f.failSync > 0 {
		f.failSync--
		f.mu.Unlock()
		return newError(KindIo, "faultBackend.Sync", errors.New("injected fault"))
	}
	f.mu.Unlock()
	return f.inner.Sync()
}

func (f *faultBackend) Close() error { return f.inner.Close() }

func (f *faultBackend) setFailWrite(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrite = n
}

func (f *faultBackend) setFailSync(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSync = n
}

func TestFaultBackendInjectsWriteFailure(t *testing.T) {
	dir := t.TempDir()
	real, err := openSegment(dir, "seg")
	require.NoError(t, err)
	defer real.Close()

	fb := newFaultBackend(real)
	fb.setFailWrite(1)

	_, err = fb.Append([]byte("x"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindIo))

	_, err = fb.Append([]byte("x"))
	require.NoError(t, err)
}
