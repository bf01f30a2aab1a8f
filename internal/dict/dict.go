// Package dict implements MmapedDict, the index-caching layer over a
// mmapfile.File: a process-local map from key to value offset so
// repeated reads/writes of the same key never re-scan the whole file.
//
// Grounded on go-bitcask's in-memory keydir (core/bitcask.go's
// map[string]record.Header tracking on-disk offsets), generalized from
// offsets into a WAL to offsets into a memory-mapped value slot.
package dict

import (
	"sync"

	"github.com/arcspin/mpmetrics/internal/entry"
	"github.com/arcspin/mpmetrics/internal/mmapfile"
)

// Dict caches key -> value-offset for one mmapfile.File, avoiding a
// linear scan on every access. It owns the File's lifetime.
type Dict struct {
	mu    sync.RWMutex
	file  *mmapfile.File
	index map[string]int // key -> value offset
}

// Open maps path and builds the initial index by scanning once.
func Open(path string, initialSize int) (*Dict, error) {
	f, err := mmapfile.Open(path, initialSize)
	if err != nil {
		return nil, err
	}
	d := &Dict{
		file:  f,
		index: make(map[string]int),
	}
	d.rebuildIndex()
	return d, nil
}

func (d *Dict) rebuildIndex() {
	it := d.file.Entries(entry.Lenient)
	for {
		k, _, off, ok := it.Next()
		if !ok {
			return
		}
		d.index[string(k)] = off
	}
}

// ReadValue returns the value for key, or 0.0 if absent.
func (d *Dict) ReadValue(key []byte) float64 {
	d.mu.RLock()
	off, found := d.index[string(key)]
	d.mu.RUnlock()

	if !found {
		return 0.0
	}
	v, err := d.file.LoadValue(off)
	if err != nil {
		return 0.0
	}
	return v
}

// WriteValue sets key to v, appending a new entry on first write and
// overwriting the cached offset on every subsequent write, skipping
// the linear scan mmapfile.File.WriteValue would otherwise perform.
func (d *Dict) WriteValue(key []byte, v float64) error {
	// The write lock is held across the lookup and the append, so two
	// concurrent first writes of one key never both append: the file
	// never carries two entries for one key.
	d.mu.Lock()
	defer d.mu.Unlock()

	if off, found := d.index[string(key)]; found {
		return d.file.OverwriteValue(off, v)
	}

	newOff, err := d.file.AppendEntry(key, v)
	if err != nil {
		return err
	}
	d.index[string(key)] = newOff
	return nil
}

// Sync flushes the underlying file.
func (d *Dict) Sync() error {
	return d.file.Sync()
}

// Close unmaps and closes the underlying file.
func (d *Dict) Close() error {
	return d.file.Close()
}

// Path returns the path of the underlying file.
func (d *Dict) Path() string {
	return d.file.Path()
}
