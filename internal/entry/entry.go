// Package entry implements the on-disk record format for a dictionary
// file: a 4-byte little-endian key length, the UTF-8 JSON-encoded key
// itself, zero padding out to an 8-byte boundary, and an 8-byte
// little-endian IEEE-754 value.
//
// Grounded on go-bitcask's internal/record (length-prefixed header +
// key + value, written with binary.Write/Read) generalized from a
// fixed 20-byte header to this format's variable padding, and checked
// against original_source's raw_entry.rs for the padding/offset math.
package entry

import (
	"encoding/binary"
	"fmt"
	"math"
)

// HeaderSize is the size in bytes of the file-level header (the "used"
// counter plus its reserved padding). Entries begin immediately after
// it.
const HeaderSize = 8

// MinimumFileSize is the smallest legal size for a dictionary file.
const MinimumFileSize = 8

// KeyLenSize is the size in bytes of an entry's key-length prefix.
const KeyLenSize = 4

// ValueSize is the size in bytes of an entry's f64 value.
const ValueSize = 8

// MaxKeyLen is the largest encoded key length CheckKeyLen and the
// parser accept: the largest value of a signed 32-bit integer. The
// entry built around a key of that length is longer than MaxKeyLen.
const MaxKeyLen = math.MaxInt32

// Padding returns the number of zero padding bytes, in [1,8], needed
// after a key of length keyLen so the value that follows starts on an
// 8-byte boundary.
func Padding(keyLen int) int {
	entryLen := KeyLenSize + keyLen
	return 8 - (entryLen % 8)
}

// ValueOffset returns the offset of the value field relative to the
// start of an entry with the given key length.
func ValueOffset(keyLen int) int {
	return KeyLenSize + keyLen + Padding(keyLen)
}

// TotalLen returns the total number of bytes an entry with the given
// key length occupies, including the value.
func TotalLen(keyLen int) int {
	return ValueOffset(keyLen) + ValueSize
}

// CheckKeyLen reports an error if keyLen cannot be encoded.
func CheckKeyLen(keyLen int) error {
	if keyLen < 0 || keyLen > MaxKeyLen {
		return fmt.Errorf("entry: key length %d out of range", keyLen)
	}
	return nil
}

// Encode writes one entry (key-length, key, padding, value) into buf,
// which must be exactly TotalLen(len(key)) bytes long, and returns the
// offset of the value field within buf. The value is NOT written with
// an atomic store here — callers writing into a live mmap must publish
// the value themselves via a single aligned 8-byte store (see
// mmapfile.storeFloat64) so a concurrent reader never observes a torn
// word; Encode is also used to build off-mmap buffers (tests) where
// that doesn't apply.
func Encode(buf, key []byte, value float64) (int, error) {
	if err := CheckKeyLen(len(key)); err != nil {
		return 0, err
	}
	total := TotalLen(len(key))
	if len(buf) != total {
		return 0, fmt.Errorf("entry: buffer length %d does not match entry length %d", len(buf), total)
	}

	binary.LittleEndian.PutUint32(buf[:KeyLenSize], uint32(len(key)))
	copy(buf[KeyLenSize:KeyLenSize+len(key)], key)

	pad := Padding(len(key))
	for i := 0; i < pad; i++ {
		buf[KeyLenSize+len(key)+i] = 0
	}

	valueOffset := ValueOffset(len(key))
	binary.LittleEndian.PutUint64(buf[valueOffset:valueOffset+ValueSize], math.Float64bits(value))

	return valueOffset, nil
}
