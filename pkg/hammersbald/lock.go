package hammersbald

import (
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is the OS-level exclusive advisory lock that enforces "one
// process holds the database" (§5). It is taken on the header file
// (index.tb.0) at Open/Create and released at Shutdown.
type fileLock struct {
	f *os.File
}

func acquireLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, newError(KindIo, "acquireLock", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, newError(KindAlreadyOpen, "acquireLock", err)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	if err != nil {
		return newError(KindIo, "fileLock.release", err)
	}
	if closeErr != nil {
		return newError(KindIo, "fileLock.release", closeErr)
	}
	return nil
}
