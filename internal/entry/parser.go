package entry

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Mode selects how the parser reacts to malformed or truncated input.
type Mode int

const (
	// Lenient stops iteration silently at the first malformed or
	// truncated entry, yielding everything parsed so far. Used by the
	// aggregator, which must not let one corrupt file fail a scrape.
	Lenient Mode = iota
	// Strict returns a *ParseError at the first malformed entry instead
	// of stopping silently.
	Strict
)

// ParseError reports a malformed entry at a given byte offset.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("entry: parse error at offset %d: %s", e.Offset, e.Msg)
}

// Iterator yields (key, value, valueOffset) tuples from a byte slice
// in the dictionary entry layout. It is one-shot and non-restartable,
// and borrows buf for its lifetime rather than copying it — callers must
// not mutate buf while iterating.
type Iterator struct {
	buf  []byte
	used int
	size int
	mode Mode
	pos  int
	err  error
	done bool
}

// NewIterator builds an Iterator over buf: used is read from the
// first 4 bytes of buf, size is len(buf), and the scan proceeds over
// [8, min(used, size)).
func NewIterator(buf []byte, mode Mode) *Iterator {
	it := &Iterator{
		buf:  buf,
		size: len(buf),
		mode: mode,
		pos:  HeaderSize,
	}
	if len(buf) >= 4 {
		it.used = int(binary.LittleEndian.Uint32(buf[0:4]))
	}
	return it
}

// Err returns the error that stopped iteration, if any. Always nil in
// Lenient mode; populated in Strict mode when a malformed entry is hit.
func (it *Iterator) Err() error {
	return it.err
}

// Next advances the iterator, returning the next entry's key, value and
// the absolute offset of its value field. ok is false once the
// sequence is exhausted (cleanly or due to a stopped/errored parse).
func (it *Iterator) Next() (key []byte, value float64, valueOffset int, ok bool) {
	if it.done {
		return nil, 0, 0, false
	}

	limit := it.used
	if it.size < limit {
		limit = it.size
	}

	for it.pos < limit {
		if it.pos+KeyLenSize > it.size {
			return it.stop(it.pos, "truncated key length")
		}

		l := int(binary.LittleEndian.Uint32(it.buf[it.pos : it.pos+KeyLenSize]))
		if l == 0 {
			// Skip padding/empty cell.
			it.pos += 8
			continue
		}
		if l < 0 || l > MaxKeyLen {
			return it.stop(it.pos, "key length out of range")
		}

		valOff := it.pos + TotalLen(l) - ValueSize
		if valOff+ValueSize > it.size {
			return it.stop(it.pos, "truncated tail")
		}

		keyStart := it.pos + KeyLenSize
		k := it.buf[keyStart : keyStart+l]
		v := math.Float64frombits(binary.LittleEndian.Uint64(it.buf[valOff : valOff+ValueSize]))

		it.pos = valOff + ValueSize
		return k, v, valOff, true
	}

	it.done = true
	return nil, 0, 0, false
}

func (it *Iterator) stop(offset int, msg string) ([]byte, float64, int, bool) {
	it.done = true
	if it.mode == Strict {
		it.err = &ParseError{Offset: offset, Msg: msg}
	}
	return nil, 0, 0, false
}

// Collect drains the iterator into slices, for tests and small files.
func Collect(buf []byte, mode Mode) (keys [][]byte, values []float64, offsets []int, err error) {
	it := NewIterator(buf, mode)
	for {
		k, v, off, ok := it.Next()
		if !ok {
			break
		}
		keys = append(keys, k)
		values = append(values, v)
		offsets = append(offsets, off)
	}
	return keys, values, offsets, it.Err()
}
