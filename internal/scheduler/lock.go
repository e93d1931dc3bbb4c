//go:build !windows

package scheduler

import (
	"fmt"
	"os"
	"syscall"
)

// FileLock serializes tick loops across daemon processes sharing one
// data directory. The lock file is opened once and kept for the
// scheduler's lifetime; ownership rides on the flock(2) state of that
// descriptor, so a crashed holder releases it automatically when the
// kernel closes the file.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a FileLock for the given path. Nothing is opened
// until the first TryLock.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

func (l *FileLock) ensureOpen() error {
	if l.file != nil {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// TryLock attempts to acquire the lock without blocking. Returns false
// when another process holds it.
func (l *FileLock) TryLock() (bool, error) {
	if err := l.ensureOpen(); err != nil {
		return false, err
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if err == syscall.EWOULDBLOCK {
			return false, nil
		}
		return false, err
	}
	// Stamp the holder pid so an operator can trace a stuck lock.
	if err := l.file.Truncate(0); err == nil {
		_, _ = l.file.WriteAt([]byte(fmt.Sprintf("%d\n", os.Getpid())), 0)
	}
	return true, nil
}

// Unlock releases the flock but keeps the descriptor and the file; the
// next TryLock on either process reuses them.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	return syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
}
