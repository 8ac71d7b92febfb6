package organizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// TreeLock is an advisory, cross-process lock on one directory tree. The lock
// file lives outside the tree so it is never scanned, moved or pruned.
type TreeLock struct {
	root string
	lock *flock.Flock
}

// NewTreeLock names the lock file after a hash of the cleaned root. An empty
// lockDir means os.TempDir().
func NewTreeLock(lockDir, root string) *TreeLock {
	if lockDir == "" {
		lockDir = os.TempDir()
	}
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	name := "file-organizer-" + hex.EncodeToString(sum[:8]) + ".lock"
	return &TreeLock{root: root, lock: flock.New(filepath.Join(lockDir, name))}
}

func (l *TreeLock) Path() string {
	return l.lock.Path()
}

// Acquire takes the lock without blocking. ErrTreeLocked means another
// process holds it.
func (l *TreeLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTreeLocked, l.root)
	}
	return nil
}

func (l *TreeLock) Release() error {
	return l.lock.Unlock()
}
