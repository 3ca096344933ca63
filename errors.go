package tablens

import (
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors for the engine's anticipated failure modes. Misuse of the
// mapped-read primitive is not among them; out-of-range reads and reads
// after Close are programmer errors and panic instead.
var (
	// ErrInvalidPath indicates an empty or whitespace-only file path
	ErrInvalidPath = errors.New("tablens: invalid file path")

	// ErrFileNotFound indicates the source file does not exist
	ErrFileNotFound = errors.New("tablens: file not found")

	// ErrPermissionDenied indicates the source file cannot be read
	ErrPermissionDenied = errors.New("tablens: permission denied")

	// ErrUnsupportedFormat indicates an unsupported file format
	ErrUnsupportedFormat = errors.New("tablens: unsupported file format")

	// ErrEmptySample indicates the initial scan found no data records to infer a schema from
	ErrEmptySample = errors.New("tablens: no records to sample")

	// ErrIndexNotBuilt indicates a seek before the row index was built
	ErrIndexNotBuilt = errors.New("tablens: row index not built")

	// ErrRowOutOfRange indicates a seek past the last indexed row
	ErrRowOutOfRange = errors.New("tablens: row out of range")

	// ErrIndexStale indicates an index cache that does not match the current source file
	ErrIndexStale = errors.New("tablens: index cache does not match source file")

	// ErrSessionClosed indicates an operation on a closed session
	ErrSessionClosed = errors.New("tablens: session closed")
)

// wrapOpenError maps environmental open and stat failures onto the engine's
// sentinels so callers can branch on errors.Is without knowing os internals.
func wrapOpenError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return fmt.Errorf("tablens: open %s: %w", path, err)
	}
}
