package entry

import (
	"encoding/binary"
	"math"
	"testing"
)

// buildFile constructs a minimal in-memory file buffer with the given
// entries, computing and publishing "used" the way mmapfile does.
func buildFile(size int, keys []string, values []float64) []byte {
	buf := make([]byte, size)
	used := HeaderSize
	for i, k := range keys {
		off, err := Encode(buf[used:used+TotalLen(len(k))], []byte(k), values[i])
		if err != nil {
			panic(err)
		}
		_ = off
		used += TotalLen(len(k))
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(used))
	return buf
}

func TestIteratorYieldsWrittenEntriesInOrder(t *testing.T) {
	buf := buildFile(4096, []string{"foo", "bar"}, []float64{200.0, 500.0})

	keys, values, offsets, err := Collect(buf, Lenient)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d entries, want 2", len(keys))
	}
	if string(keys[0]) != "foo" || values[0] != 200.0 || offsets[0] != 16 {
		t.Fatalf("entry 0 = (%q, %v, %d), want (foo, 200, 16)", keys[0], values[0], offsets[0])
	}
	if string(keys[1]) != "bar" || values[1] != 500.0 || offsets[1] != 32 {
		t.Fatalf("entry 1 = (%q, %v, %d), want (bar, 500, 32)", keys[1], values[1], offsets[1])
	}
}

func TestIteratorStopsAtTruncatedTail(t *testing.T) {
	full := buildFile(4096, []string{"one", "two", "three"}, []float64{1, 2, 3})
	// Keep "used" pointing past the real data, but cut the backing slice
	// short mid-entry, simulating a file truncated beneath a reader.
	truncated := full[:20]

	keys, _, _, err := Collect(truncated, Lenient)
	if err != nil {
		t.Fatalf("lenient Collect should not error: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("got %d entries from truncated buffer, want 0 (no entry fully fits)", len(keys))
	}

	_, _, _, err = Collect(truncated, Strict)
	if err == nil {
		t.Fatal("strict mode should report a ParseError on truncation")
	}
	var perr *ParseError
	if pe, ok := err.(*ParseError); ok {
		perr = pe
	}
	if perr == nil {
		t.Fatalf("error is not a *ParseError: %T", err)
	}
}

func TestIteratorSkipsZeroLengthPaddingCells(t *testing.T) {
	buf := make([]byte, 64)
	binary.LittleEndian.PutUint32(buf[0:4], 32)
	// entry at offset 8: zero-length marker, skipped 8 bytes.
	// entry at offset 16: a real 3-byte key "abc" -> total len 16, but
	// we only have 16 bytes left before "used"=32, so write it there.
	off, err := Encode(buf[16:32], []byte("abc"), 9.5)
	if err != nil {
		t.Fatal(err)
	}
	_ = off

	keys, values, _, err := Collect(buf, Lenient)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(keys) != 1 || string(keys[0]) != "abc" || values[0] != 9.5 {
		t.Fatalf("got %v/%v, want single entry (abc, 9.5)", keys, values)
	}
}

func TestIteratorRejectsOversizedClaimedLength(t *testing.T) {
	// Mirrors original_source's raw_entry.rs "header value much longer
	// than json len" case: a length prefix claiming far more data than
	// the buffer can hold.
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint32(buf[0:4], 24)
	binary.LittleEndian.PutUint32(buf[8:12], 256)

	_, _, _, err := Collect(buf, Strict)
	if err == nil {
		t.Fatal("expected ParseError for an out-of-bounds claimed length")
	}
}

func TestIteratorHandlesEmptyFile(t *testing.T) {
	buf := make([]byte, 4096) // used = 0, as written by a fresh file.
	keys, _, _, err := Collect(buf, Lenient)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected zero entries on a fresh empty file, got %d", len(keys))
	}
}

func TestFloat64RoundTrip(t *testing.T) {
	buf := buildFile(64, []string{"x"}, []float64{math.Pi})
	_, values, _, _ := Collect(buf, Lenient)
	if len(values) != 1 || values[0] != math.Pi {
		t.Fatalf("got %v, want [%v]", values, math.Pi)
	}
}
