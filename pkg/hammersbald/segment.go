package hammersbald

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// maxFileSize bounds each numbered file of a segment to 1 GiB (§4.2).
const maxFileSize = int64(1) << 30

// fileBackend is the capability set a segment needs from its storage:
// random read, append, truncate-by-logical-length, and fsync. It is the
// one seam in the engine meant for substitution (§9, "Dynamic
// dispatch"): real files in production, a fault-injecting stub in
// tests (see faultBackend in segment_test.go).
type fileBackend interface {
	ReadAt(p []byte, off int64) (int, error)
	Append(p []byte) (int64, error) // returns the offset p was written at
	WriteAt(p []byte, off int64) error
	Truncate(size int64) error
	Size() (int64, error)
	Sync() error
	Close() error
}

// segment is the default fileBackend: a logical byte stream split
// across numbered files (name.0, name.1, ...) each at most maxFileSize
// bytes, per §4.2. Appends never span two files; a file is padded to
// its boundary before a new one is opened. Reads may span two files.
type segment struct {
	mu     sync.Mutex
	dir    string
	prefix string
	files  []*os.File
	size   int64
}

// openSegment opens (creating if necessary) the numbered file sequence
// dir/prefix.0, dir/prefix.1, ... and positions the segment at its
// current logical end.
func openSegment(dir, prefix string) (*segment, error) {
	s := &segment{dir: dir, prefix: prefix}
	for i := 0; ; i++ {
		path := s.pathFor(i)
		fi, err := os.Stat(path)
		if os.IsNotExist(err) {
			if i == 0 {
				f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
				if err != nil {
					return nil, newError(KindIo, "openSegment", err)
				}
				s.files = append(s.files, f)
			}
			break
		}
		if err != nil {
			return nil, newError(KindIo, "openSegment", err)
		}
		f, err := os.OpenFile(path, os.O_RDWR, 0600)
		if err != nil {
			return nil, newError(KindIo, "openSegment", err)
		}
		s.files = append(s.files, f)
		s.size += fi.Size()
		if fi.Size() < maxFileSize {
			break
		}
	}
	return s, nil
}

func (s *segment) pathFor(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.%d", s.prefix, index))
}

// Size returns the segment's current logical length.
func (s *segment) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size, nil
}

// ReadAt reads len(p) bytes starting at logical offset off, transparently
// spanning a file boundary if necessary.
func (s *segment) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if off < 0 || off+int64(len(p)) > s.size {
		return 0, newError(KindCorrupt, "segment.ReadAt",
			fmt.Errorf("read [%d,%d) past logical end %d", off, off+int64(len(p)), s.size))
	}

	read := 0
	for read < len(p) {
		idx := int((off + int64(read)) / maxFileSize)
		localOff := (off + int64(read)) % maxFileSize
		if idx >= len(s.files) {
			return read, newError(KindCorrupt, "segment.ReadAt",
				fmt.Errorf("offset %d has no backing file", off+int64(read)))
		}
		f := s.files[idx]
		want := int64(len(p) - read)
		if localOff+want > maxFileSize {
			want = maxFileSize - localOff
		}
		n, err := f.ReadAt(p[read:int64(read)+want], localOff)
		read += n
		if err != nil {
			return read, newError(KindIo, "segment.ReadAt", err)
		}
	}
	return read, nil
}

// Append writes p starting at the segment's current logical end,
// padding and rolling to a new file if p would cross the maxFileSize
// boundary, and returns the offset it was written at. Appends never
// straddle two files (§4.2: "writes never do").
func (s *segment) Append(p []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	off := s.size
	idx := len(s.files) - 1
	f := s.files[idx]
	localOff := s.size - int64(idx)*maxFileSize

	if localOff+int64(len(p)) > maxFileSize {
		// Pad the current file to its boundary and open the next one.
		pad := maxFileSize - localOff
		if pad > 0 {
			if _, err := f.WriteAt(make([]byte, pad), localOff); err != nil {
				return 0, newError(KindIo, "segment.Append", err)
			}
		}
		s.size += pad
		off = s.size
		idx++
		nf, err := os.OpenFile(s.pathFor(idx), os.O_RDWR|os.O_CREATE, 0600)
		if err != nil {
			return 0, newError(KindIo, "segment.Append", err)
		}
		s.files = append(s.files, nf)
		f = nf
		localOff = 0
	}

	if _, err := f.WriteAt(p, localOff); err != nil {
		return 0, newError(KindIo, "segment.Append", err)
	}
	s.size += int64(len(p))
	return off, nil
}

// WriteAt overwrites len(p) bytes already within the segment's logical
// extent starting at off. Used only by the table segment to rewrite
// slot/header pages in place; append stores are never overwritten
// (invariant 3).
func (s *segment) WriteAt(p []byte, off int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if off < 0 || off+int64(len(p)) > s.size {
		return newError(KindCorrupt, "segment.WriteAt",
			fmt.Errorf("write [%d,%d) past logical end %d", off, off+int64(len(p)), s.size))
	}
	idx := int(off / maxFileSize)
	localOff := off % maxFileSize
	if idx >= len(s.files) {
		return newError(KindCorrupt, "segment.WriteAt",
			fmt.Errorf("offset %d has no backing file", off))
	}
	if localOff+int64(len(p)) > maxFileSize {
		return newError(KindCorrupt, "segment.WriteAt",
			fmt.Errorf("write at %d of %d bytes crosses a file boundary", off, len(p)))
	}
	if _, err := s.files[idx].WriteAt(p, localOff); err != nil {
		return newError(KindIo, "segment.WriteAt", err)
	}
	return nil
}

// Truncate shrinks the segment to exactly size bytes, removing whole
// trailing files whose start is at or past size and truncating the
// boundary file, per §4.2/§4.8.
func (s *segment) Truncate(size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if size > s.size {
		return newError(KindCorrupt, "segment.Truncate",
			fmt.Errorf("cannot grow from %d to %d", s.size, size))
	}

	keep := int(size/maxFileSize) + 1
	if size%maxFileSize == 0 && size > 0 {
		keep = int(size / maxFileSize)
	}
	if keep < 1 {
		keep = 1
	}

	for i := len(s.files) - 1; i >= keep; i-- {
		path := s.files[i].Name()
		s.files[i].Close()
		os.Remove(path)
		s.files = s.files[:i]
	}

	boundary := s.files[len(s.files)-1]
	localSize := size - int64(len(s.files)-1)*maxFileSize
	if err := boundary.Truncate(localSize); err != nil {
		return newError(KindIo, "segment.Truncate", err)
	}
	s.size = size
	return nil
}

// Sync fsyncs every open file in the segment.
func (s *segment) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if err := f.Sync(); err != nil {
			return newError(KindIo, "segment.Sync", err)
		}
	}
	return nil
}

// Close closes every open file in the segment.
func (s *segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return newError(KindIo, "segment.Close", firstErr)
	}
	return nil
}
