package shared

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofrs/flock"
)

var unsafeLockChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DestinationLock is an advisory file lock held while a batch uploads into one destination.
type DestinationLock struct {
	path string
	lock *flock.Flock
}

// LockPath returns the lock file path for a destination key inside dir.
func LockPath(dir, key string) string {
	return filepath.Join(dir, unsafeLockChars.ReplaceAllString(key, "_")+".lock")
}

// AcquireDestinationLock takes the lock for key without blocking.
//
// Returns [ErrBatchLocked] when another process holds it.
func AcquireDestinationLock(dir, key string) (*DestinationLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	path := LockPath(dir, key)
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBatchLocked, key)
	}
	return &DestinationLock{path: path, lock: l}, nil
}

// Path returns the lock file location.
func (d *DestinationLock) Path() string { return d.path }

// Release unlocks the destination. The lock file stays on disk so every
// process keeps locking the same inode.
func (d *DestinationLock) Release() error {
	if d == nil || d.lock == nil {
		return nil
	}
	if err := d.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
