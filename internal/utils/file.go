package utils

import "os"

// TruncateAt truncates f to the given size and syncs the change to
// disk before returning, so a growth step is never left half-durable.
func TruncateAt(f *os.File, size int64) error {
	if err := f.Truncate(size); err != nil {
		return err
	}
	return f.Sync()
}
