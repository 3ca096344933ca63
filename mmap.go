package tablens

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// MappedFile is a read-only memory mapping of a source file, covering the
// file's length at open time.
//
// The mapping is immutable, so any number of goroutines may read from it
// concurrently without synchronization. Bounds and lifetime are hard
// preconditions: an out-of-range Read or any read after Close is a
// programmer error and panics rather than returning an error.
type MappedFile struct {
	path   string
	data   []byte
	size   int64
	mapped bool
	closed atomic.Bool
}

// OpenMappedFile opens path and maps it read-only. A blank path fails with
// ErrInvalidPath; a missing or unreadable file fails with ErrFileNotFound
// or ErrPermissionDenied. An empty file yields a zero-length mapping
// without touching the mapping syscalls.
func OpenMappedFile(path string) (*MappedFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrInvalidPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, wrapOpenError(path, err)
	}
	defer func() {
		_ = f.Close() // Ignore close error; the mapping outlives the descriptor
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, wrapOpenError(path, err)
	}

	size := info.Size()
	if size == 0 {
		return &MappedFile{path: path, size: 0}, nil
	}

	data, err := mmapFile(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("tablens: map %s: %w", path, err)
	}

	return &MappedFile{path: path, data: data, size: int64(len(data)), mapped: true}, nil
}

// Path returns the mapped file's path.
func (m *MappedFile) Path() string {
	return m.path
}

// Len returns the mapped length in bytes.
func (m *MappedFile) Len() int64 {
	return m.size
}

// bytes returns the raw mapping for package-internal zero-copy access,
// enforcing the use-after-close panic for internal readers too.
func (m *MappedFile) bytes() []byte {
	if m.closed.Load() {
		panic("tablens: use of closed MappedFile: " + m.path)
	}
	return m.data
}

// Read copies bytes starting at off into dst and returns len(dst).
// The requested range must lie inside the mapping; anything else panics.
func (m *MappedFile) Read(off int64, dst []byte) int {
	data := m.bytes()
	if off < 0 || off+int64(len(dst)) > m.size {
		panic(fmt.Sprintf("tablens: mapped read [%d:%d) out of range 0:%d", off, off+int64(len(dst)), m.size))
	}
	return copy(dst, data[off:])
}

// TryRead copies up to len(dst) bytes starting at off into dst, clamping
// at the end of the mapping. It returns false only when off lies entirely
// outside the mapping; a short read at the tail is (n, true).
func (m *MappedFile) TryRead(off int64, dst []byte) (int, bool) {
	data := m.bytes()
	if off < 0 || off >= m.size {
		return 0, false
	}
	return copy(dst, data[off:]), true
}

// Close releases the mapping. Close is idempotent; reads after the first
// Close panic.
func (m *MappedFile) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if !m.mapped {
		return nil
	}
	data := m.data
	m.data = nil
	return munmapFile(data)
}
