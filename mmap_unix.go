//go:build unix

package tablens

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile maps size bytes of the file read-only and shared.
func mmapFile(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
}

// munmapFile releases a mapping created by mmapFile.
func munmapFile(data []byte) error {
	return unix.Munmap(data)
}
