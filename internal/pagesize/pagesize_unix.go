//go:build unix

package pagesize

import "golang.org/x/sys/unix"

// Get returns the OS page size in bytes, falling back to Fallback if the
// platform reports something unusable (zero or negative).
func Get() int {
	if p := unix.Getpagesize(); p > 0 {
		return p
	}
	return Fallback
}
