//go:build !windows

package state

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileLock is an advisory, single-process-at-a-time lock held via
// unix.Flock on a sentinel file. The Loop Runner takes a FileLock on
// paths.LockFile for the duration of a run, so two runs cannot write the
// same state at once. The Reconciler takes no lock of its own.
type FileLock struct {
	f *os.File
}

// Lock opens (creating if necessary) the file at path and takes an
// exclusive advisory lock on it, blocking until it is available or ctx-like
// cancellation isn't needed because flock has no timeout variant here;
// callers wanting a bounded wait should use TryLock in a retry loop.
func Lock(path string) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %q: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("locking %q: %w", path, err)
	}

	return &FileLock{f: f}, nil
}

// TryLock attempts a non-blocking exclusive lock. It returns (nil, false,
// nil) if the lock is currently held elsewhere, rather than an error.
func TryLock(path string) (*FileLock, bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("opening lock file %q: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("locking %q: %w", path, err)
	}

	return &FileLock{f: f}, true, nil
}

// Unlock releases the lock and closes the underlying file handle.
func (l *FileLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return fmt.Errorf("unlocking: %w", err)
	}
	return l.f.Close()
}
