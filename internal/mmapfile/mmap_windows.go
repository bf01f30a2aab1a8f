//go:build windows

package mmapfile

import (
	"fmt"
	"os"
)

// go-bitcask's own lock_windows.go does have a real, working Windows
// implementation of its locking primitive (O_CREATE|O_EXCL on a LOCK
// file, trivially portable from its unix flock equivalent). Memory
// mapping doesn't have that luxury: POSIX mmap/MAP_SHARED and Windows'
// CreateFileMapping/MapViewOfFile are different enough syscall
// surfaces that no equivalent is implemented here, so multiprocess
// dictionary files are unsupported on windows for now.
func mmap(f *os.File, size int) ([]byte, error) {
	return nil, fmt.Errorf("mmapfile: memory-mapped dictionary files are not supported on windows")
}

func munmap(data []byte) error {
	return fmt.Errorf("mmapfile: memory-mapped dictionary files are not supported on windows")
}

func msync(data []byte) error {
	return fmt.Errorf("mmapfile: memory-mapped dictionary files are not supported on windows")
}
