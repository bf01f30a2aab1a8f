package alloc_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/arcspin/mpmetrics/internal/alloc"
)

func TestAcquireProbesNextCandidate(t *testing.T) {
	dir := t.TempDir()
	a := alloc.New(dir)

	p0, err := a.Acquire("counter", "123")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	p1, err := a.Acquire("counter", "123")
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	if p0 == p1 {
		t.Fatalf("expected distinct paths, got %q twice", p0)
	}
}

func TestAcquireAcrossAllocatorsRespectsLock(t *testing.T) {
	dir := t.TempDir()
	a1 := alloc.New(dir)
	a2 := alloc.New(dir)

	p1, err := a1.Acquire("gauge_max", "1")
	if err != nil {
		t.Fatalf("a1 acquire: %v", err)
	}

	p2, err := a2.Acquire("gauge_max", "1")
	if err != nil {
		t.Fatalf("a2 acquire: %v", err)
	}

	if p1 == p2 {
		t.Fatalf("two allocators must not share a locked path, got %q", p1)
	}
}

func TestReleaseFreesPathForReuse(t *testing.T) {
	dir := t.TempDir()
	a := alloc.New(dir)

	p0, err := a.Acquire("summary", "7")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := a.Release(p0); err != nil {
		t.Fatalf("release: %v", err)
	}

	other := alloc.New(dir)
	p0Again, err := other.Acquire("summary", "7")
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	if p0Again != p0 {
		t.Fatalf("expected %q to be reusable after release, got %q", p0, p0Again)
	}
}

func TestAcquireSkipsCandidateThatCannotBeLocked(t *testing.T) {
	dir := t.TempDir()

	// Pre-create candidate n=0 as a directory, which os.OpenFile cannot
	// open with O_RDWR (EISDIR): Acquire's TryLock on it fails with an
	// error, not just contention, and must still move on to n=1.
	blocked := filepath.Join(dir, fmt.Sprintf("%s_%s-%d.db", "counter", "99", 0))
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", blocked, err)
	}

	a := alloc.New(dir)
	path, err := a.Acquire("counter", "99")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	want := filepath.Join(dir, fmt.Sprintf("%s_%s-%d.db", "counter", "99", 1))
	if path != want {
		t.Fatalf("got %q, want %q (n=0 should have been skipped)", path, want)
	}
}
