//go:build windows

package tablens

import (
	"io"
	"os"
)

// mmapFile reads the whole file as a fallback where no mapping syscall is
// wired up. Read semantics match the mapped path exactly.
// TODO: use CreateFileMapping/MapViewOfFile instead of reading the file
func mmapFile(f *os.File, _ int) ([]byte, error) {
	return io.ReadAll(f)
}

// munmapFile is a no-op for the read-based fallback.
func munmapFile(_ []byte) error {
	return nil
}
