package tablens

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

// RowIndex is a sparse index of row-start byte offsets for a line-oriented
// file, recording a checkpoint every interval data rows plus the total row
// count.
//
// The index is lazy: construction only validates arguments, and TotalRows
// stays 0 until BuildIndex has run. Once built the index is immutable and
// safe for concurrent seeks. It is tied to the file state observed during
// the build; the source changing underneath is not detected, and reopening
// the file is how changes become visible.
type RowIndex struct {
	path      string
	format    FileType
	interval  int
	m         *MappedFile
	offsets   []int64
	total     int64
	dataStart int64
	built     bool
}

// NewRowIndex creates an index for the file at path. The format decides
// boundary scanning: CSV and TSV honor quoting, so a line break inside a
// quoted field is data rather than a row boundary, and the header row is
// skipped so that row numbers address data rows. An interval of 0 or less
// selects DefaultCheckpointInterval.
func NewRowIndex(path string, format FileType, interval int) (*RowIndex, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrInvalidPath
	}
	if !format.lineOriented() {
		return nil, fmt.Errorf("%w: cannot index %s", ErrUnsupportedFormat, format)
	}
	if interval <= 0 {
		interval = DefaultCheckpointInterval
	}
	return &RowIndex{path: path, format: format, interval: interval}, nil
}

// Built reports whether BuildIndex has completed.
func (ri *RowIndex) Built() bool {
	return ri.built
}

// TotalRows returns the number of data rows counted by BuildIndex, or 0
// before the index is built.
func (ri *RowIndex) TotalRows() int64 {
	return ri.total
}

// Interval returns the checkpoint stride in rows.
func (ri *RowIndex) Interval() int {
	return ri.interval
}

// BuildIndex scans the file once, recording the byte offset of every
// interval-th data row and the total count. An unterminated quoted field
// at end of file closes the final row so trailing data is never lost.
//
// Cancellation aborts the build and returns the context's error; a half
// built index has no usable partial result, so the index stays unbuilt.
func (ri *RowIndex) BuildIndex(ctx context.Context) error {
	if ri.built {
		return nil
	}

	m, err := OpenMappedFile(ri.path)
	if err != nil {
		return err
	}

	data := m.bytes()
	quoted := ri.format.quoted()

	var off int64
	if ri.format.hasHeader() && int64(len(data)) > 0 {
		off = nextRecordStart(data, 0, quoted)
	}
	ri.dataStart = off

	var offsets []int64
	var total int64
	for off < int64(len(data)) {
		if total%int64(ri.interval) == 0 {
			offsets = append(offsets, off)
		}
		off = nextRecordStart(data, off, quoted)
		total++

		if total%1024 == 0 {
			select {
			case <-ctx.Done():
				_ = m.Close()
				return ctx.Err()
			default:
			}
		}
	}

	ri.m = m
	ri.offsets = offsets
	ri.total = total
	ri.built = true
	return nil
}

// Seek returns the byte offset of the given data row: checkpoint lookup,
// then a forward scan of at most interval-1 row boundaries.
func (ri *RowIndex) Seek(row int64) (int64, error) {
	if !ri.built {
		return 0, ErrIndexNotBuilt
	}
	if row < 0 || row >= ri.total {
		return 0, fmt.Errorf("%w: row %d, total %d", ErrRowOutOfRange, row, ri.total)
	}

	k := row / int64(ri.interval)
	off := ri.offsets[k]

	data := ri.m.bytes()
	quoted := ri.format.quoted()
	for i := k * int64(ri.interval); i < row; i++ {
		off = nextRecordStart(data, off, quoted)
	}
	return off, nil
}

// Close releases the mapping held for seeks. The index cannot seek after
// Close.
func (ri *RowIndex) Close() error {
	if ri.m == nil {
		return nil
	}
	return ri.m.Close()
}

// nextRecordStart returns the offset of the record following the one that
// starts at off. For quoted formats it jumps newline to newline, carrying
// quote parity across them, so doubled quotes cancel out and a newline at
// odd parity stays inside its field. Without a final terminator the record
// ends at end of file.
func nextRecordStart(data []byte, off int64, quoted bool) int64 {
	if !quoted {
		idx := bytes.IndexByte(data[off:], '\n')
		if idx < 0 {
			return int64(len(data))
		}
		return off + int64(idx) + 1
	}

	pos := off
	inQuotes := false
	for {
		idx := bytes.IndexByte(data[pos:], '\n')
		if idx < 0 {
			return int64(len(data))
		}
		for _, c := range data[pos : pos+int64(idx)] {
			if c == '"' {
				inQuotes = !inQuotes
			}
		}
		if !inQuotes {
			return pos + int64(idx) + 1
		}
		pos += int64(idx) + 1
	}
}

// recordBytes returns the record starting at off with its LF or CRLF
// terminator stripped, plus the offset of the next record.
func recordBytes(data []byte, off int64, quoted bool) ([]byte, int64) {
	next := nextRecordStart(data, off, quoted)
	end := next
	if end > off && data[end-1] == '\n' {
		end--
	}
	if end > off && data[end-1] == '\r' {
		end--
	}
	return data[off:end], next
}
