// Package alloc allocates unique, exclusively-locked filenames for the
// per-process dictionary files, the same role go-bitcask's internal/lock
// plays for its single directory-wide LOCK file — generalized here to one
// lock per metric-type file instead of one lock per directory.
package alloc

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Allocator hands out exclusively-locked paths of the form
// "<dir>/<prefix>_<pid>-<n>.db", probing n = 0, 1, 2, ... until a free
// file is found. A mutex on the Allocator serializes probing so one
// Allocator never double-claims a path; separate Allocators are kept
// apart by the file locks alone.
type Allocator struct {
	mu   sync.Mutex
	dir  string
	held map[string]*flock.Flock
}

// New creates an Allocator rooted at dir. The directory must already
// exist.
func New(dir string) *Allocator {
	return &Allocator{
		dir:  dir,
		held: make(map[string]*flock.Flock),
	}
}

// Acquire returns a path unique to this process for the given file
// prefix and pid token, holding an exclusive advisory lock on it for as
// long as the process wants the file (until Release is called).
func (a *Allocator) Acquire(prefix, pid string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for n := 0; ; n++ {
		name := fmt.Sprintf("%s_%s-%d.db", prefix, pid, n)
		path := filepath.Join(a.dir, name)

		fl := flock.New(path)
		locked, err := fl.TryLock()
		if err != nil {
			// A lock-call error (e.g. a stale lock file left with odd
			// permissions by another process) is treated the same as
			// contention: skip to the next candidate rather than
			// aborting the whole allocation.
			continue
		}
		if !locked {
			continue
		}

		// Ensure the file exists (TryLock creates it on most platforms,
		// but don't rely on that).
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			_ = fl.Unlock()
			return "", fmt.Errorf("alloc: creating %s: %w", path, err)
		}
		_ = f.Close()

		a.held[path] = fl
		return path, nil
	}
}

// Release unlocks and forgets a path previously returned by Acquire. It
// is a no-op if path was never acquired by this Allocator.
func (a *Allocator) Release(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	fl, ok := a.held[path]
	if !ok {
		return nil
	}
	delete(a.held, path)
	return fl.Unlock()
}

// ReleaseAll releases every path currently held, used when the registry
// reinitializes after a PID change.
func (a *Allocator) ReleaseAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for path, fl := range a.held {
		_ = fl.Unlock()
		delete(a.held, path)
	}
}
