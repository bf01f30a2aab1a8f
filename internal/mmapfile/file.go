// Package mmapfile implements MmapedFile: a single append-only,
// memory-mapped (key -> f64) dictionary file.
//
// Grounded on go-bitcask's core/bitcask.go datafile handling (create-if-
// absent, read-existing-size, grow-by-doubling, Sync/Close lifecycle)
// generalized from a plain os.File WAL to a memory-mapped one, with the
// actual Mmap/Munmap calls taken from the pack's other from-scratch KV
// stores (other_examples/Sherlockouo-build_your_own_db__kv.go,
// other_examples/yash7xm-RelixDB__KV.go), which both reach for the
// stdlib syscall package directly rather than a third-party mmap
// library.
package mmapfile

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/arcspin/mpmetrics/internal/entry"
	"github.com/arcspin/mpmetrics/internal/pagesize"
	"github.com/arcspin/mpmetrics/internal/utils"
)

// ErrFileVanished indicates the underlying file was unlinked or
// truncated beneath the writer by another process. Callers should
// reallocate a fresh file.
var ErrFileVanished = errors.New("mmapfile: underlying file vanished or shrank")

// File owns one memory-mapped dictionary file. It is not safe for
// concurrent use by multiple goroutines without external
// synchronization beyond what's documented on each method; dict.Dict
// provides that synchronization for the indexed fast path, while the
// scan-based ReadValue/WriteValue here serialize themselves.
type File struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	data     []byte // current mapping
	pageSize int
}

// Open maps path, creating it if absent. If the file is new or smaller
// than entry.MinimumFileSize, it is truncated to initialSize (rounded
// up to a page multiple); otherwise its existing size is rounded up to
// the next page multiple and mapped as-is.
func Open(path string, initialSize int) (*File, error) {
	page := pagesize.Get()
	initialSize = pagesize.RoundUp(initialSize, page)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: opening %s: %w", path, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: stat %s: %w", path, err)
	}

	size := int(stat.Size())
	switch {
	case size < entry.MinimumFileSize:
		size = initialSize
		if err := utils.TruncateAt(f, int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("mmapfile: truncating %s to %d: %w", path, size, err)
		}
	default:
		aligned := pagesize.RoundUp(size, page)
		if aligned != size {
			if err := utils.TruncateAt(f, int64(aligned)); err != nil {
				f.Close()
				return nil, fmt.Errorf("mmapfile: page-aligning %s to %d: %w", path, aligned, err)
			}
			size = aligned
		}
	}

	data, err := mmap(f, size)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: mapping %s: %w", path, err)
	}

	return &File{
		f:        f,
		path:     path,
		data:     data,
		pageSize: page,
	}, nil
}

// Path returns the path of the mapped file.
func (mf *File) Path() string {
	return mf.path
}

// currentUsed returns the header's "used" value, clamped to at least
// entry.HeaderSize. A freshly truncated file's header reads as the
// literal zero bytes it was created with; appends must still begin
// at byte 8, never at byte 0, so every write computes its
// insertion point through this clamp rather than the raw header value.
func (mf *File) currentUsed() uint32 {
	u := loadUint32(mf.data, 0)
	if u < entry.HeaderSize {
		return entry.HeaderSize
	}
	return u
}

func (mf *File) publishUsed(u uint32) {
	storeUint32(mf.data, 0, u)
}

// checkAlive detects a file vanished or truncated beneath this
// process. It never panics; a detected disappearance becomes
// ErrFileVanished.
func (mf *File) checkAlive() error {
	stat, err := mf.f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileVanished, err)
	}
	if int(stat.Size()) < len(mf.data) {
		return ErrFileVanished
	}
	return nil
}

// grow doubles the mapping until it can hold need bytes, remapping in
// place. Existing entry offsets are never invalidated: the file is
// only ever extended via ftruncate, never rewritten or shrunk.
func (mf *File) grow(need int) error {
	newSize := len(mf.data)
	if newSize == 0 {
		newSize = mf.pageSize
	}
	for newSize < need {
		newSize *= 2
	}

	if err := utils.TruncateAt(mf.f, int64(newSize)); err != nil {
		return fmt.Errorf("mmapfile: growing %s to %d: %w", mf.path, newSize, err)
	}

	if err := munmap(mf.data); err != nil {
		return fmt.Errorf("mmapfile: unmapping %s during growth: %w", mf.path, err)
	}

	data, err := mmap(mf.f, newSize)
	if err != nil {
		return fmt.Errorf("mmapfile: remapping %s after growth: %w", mf.path, err)
	}
	mf.data = data
	return nil
}

// AppendEntry appends a new entry for key with value v and returns the
// absolute offset of its value field. Callers (dict.Dict) must already
// know key is absent; AppendEntry does not check.
func (mf *File) AppendEntry(key []byte, v float64) (int, error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	if err := mf.checkAlive(); err != nil {
		return 0, err
	}
	if err := entry.CheckKeyLen(len(key)); err != nil {
		return 0, err
	}

	used := mf.currentUsed()
	total := entry.TotalLen(len(key))
	newUsed := int(used) + total

	if newUsed > len(mf.data) {
		if err := mf.grow(newUsed); err != nil {
			return 0, err
		}
	}

	valueOffset, err := entry.Encode(mf.data[used:int(used)+total], key, 0)
	if err != nil {
		return 0, err
	}
	valueOffset += int(used)

	storeFloat64(mf.data, valueOffset, v)
	mf.publishUsed(uint32(newUsed))

	return valueOffset, nil
}

// OverwriteValue stores v at an already-known value offset, in a
// single aligned 8-byte store so concurrent readers never see a torn
// value.
func (mf *File) OverwriteValue(valueOffset int, v float64) error {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	if err := mf.checkAlive(); err != nil {
		return err
	}
	if valueOffset < entry.HeaderSize || valueOffset+entry.ValueSize > len(mf.data) {
		return fmt.Errorf("mmapfile: value offset %d out of bounds for %s", valueOffset, mf.path)
	}
	storeFloat64(mf.data, valueOffset, v)
	return nil
}

// LoadValue reads the f64 at an already-known value offset.
func (mf *File) LoadValue(valueOffset int) (float64, error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	if err := mf.checkAlive(); err != nil {
		return 0, err
	}
	if valueOffset < entry.HeaderSize || valueOffset+entry.ValueSize > len(mf.data) {
		return 0, fmt.Errorf("mmapfile: value offset %d out of bounds for %s", valueOffset, mf.path)
	}
	return loadFloat64(mf.data, valueOffset), nil
}

// WriteValue implements an un-indexed dictionary contract directly:
// scan the file for key, overwriting it in place if present or
// appending a new entry otherwise. dict.Dict bypasses this scan with a
// cached index; WriteValue exists for callers (and tests) that use a
// File directly without one.
func (mf *File) WriteValue(key []byte, v float64) error {
	if off, found, err := mf.find(key); err != nil {
		return err
	} else if found {
		return mf.OverwriteValue(off, v)
	}
	_, err := mf.AppendEntry(key, v)
	return err
}

// ReadValue implements the same un-indexed contract for reads: absent
// keys return 0.0 rather than an error.
func (mf *File) ReadValue(key []byte) float64 {
	off, found, err := mf.find(key)
	if err != nil || !found {
		return 0.0
	}
	v, err := mf.LoadValue(off)
	if err != nil {
		return 0.0
	}
	return v
}

// find scans for key under mf.mu held for the whole scan. A concurrent
// grow() on this File munmaps mf.data before remapping; releasing the
// lock early and then scanning the old slice would race that unmap and
// risk reading freed memory, so the lock stays held until the scan
// returns rather than being dropped after a snapshot is taken.
func (mf *File) find(key []byte) (valueOffset int, found bool, err error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	if err := mf.checkAlive(); err != nil {
		return 0, false, err
	}

	it := entry.NewIterator(mf.data, entry.Lenient)
	for {
		k, _, off, ok := it.Next()
		if !ok {
			return 0, false, nil
		}
		if string(k) == string(key) {
			return off, true, nil
		}
	}
}

// Entries returns a one-shot iterator over the file's current entries,
// for use by tests and direct inspection. The aggregator does not use
// this path; it reads files with a plain, non-mmap read so a
// concurrently-growing writer never blocks the scrape.
//
// The returned Iterator is meant to be drained by the caller after
// this call returns, so it can't simply hold mf.mu like find does: a
// concurrent grow() would then deadlock against the caller's own scan.
// Instead the live region is copied into a private buffer while the
// lock is held, so the iterator never touches memory grow() might
// munmap out from under it. If the file has vanished or shrunk beneath
// the mapping, the returned iterator yields no entries.
func (mf *File) Entries(mode entry.Mode) *entry.Iterator {
	mf.mu.Lock()
	if err := mf.checkAlive(); err != nil {
		mf.mu.Unlock()
		return entry.NewIterator(nil, mode)
	}
	buf := make([]byte, len(mf.data))
	copy(buf, mf.data)
	mf.mu.Unlock()
	return entry.NewIterator(buf, mode)
}

// Used returns the current "used" byte count, clamped through
// currentUsed to at least entry.HeaderSize (a fresh file's header
// reads 0, but Used reports 8).
func (mf *File) Used() int {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return int(mf.currentUsed())
}

// Size returns the current mapped file size.
func (mf *File) Size() int {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return len(mf.data)
}

// Sync flushes the mapping to disk. Failures are not fatal; callers
// log and continue rather than treating a sync error as fatal.
func (mf *File) Sync() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return msync(mf.data)
}

// Close unmaps and closes the file. It does not release any path lock;
// callers (alloc.Allocator) own that.
func (mf *File) Close() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	var errs []error
	if mf.data != nil {
		if err := munmap(mf.data); err != nil {
			errs = append(errs, err)
		}
		mf.data = nil
	}
	if err := mf.f.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func loadUint32(data []byte, offset int) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&data[offset])))
}

func storeUint32(data []byte, offset int, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&data[offset])), v)
}

func loadFloat64(data []byte, offset int) float64 {
	bits := atomic.LoadUint64((*uint64)(unsafe.Pointer(&data[offset])))
	return math.Float64frombits(bits)
}

func storeFloat64(data []byte, offset int, v float64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&data[offset])), math.Float64bits(v))
}
