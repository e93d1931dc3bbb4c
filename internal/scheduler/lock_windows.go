//go:build windows

package scheduler

import (
	"errors"
	"fmt"
	"os"
)

// FileLock serializes tick loops across daemon processes sharing one
// data directory. Windows has no flock(2), so ownership is the
// exclusive creation of the lock file: it existing means another
// process owns the tick loop, and Unlock deletes it.
type FileLock struct {
	path string
	held bool
}

// NewFileLock creates a FileLock for the given path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock attempts to acquire the lock without blocking. Returns false
// when another process holds it.
func (l *FileLock) TryLock() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	// Stamp the holder pid so an operator can trace a stuck lock.
	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(l.path)
		return false, werr
	}
	l.held = true
	return true, nil
}

// Unlock deletes the lock file, letting the next TryLock anywhere
// succeed. A file already gone is not an error.
func (l *FileLock) Unlock() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
