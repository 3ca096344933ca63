package tablens

import "bytes"

// LineReader reads whole lines out of a mapped file.
//
// A LineReader carries no state between calls; every read names its own
// starting offset. Several readers over the same mapping are therefore
// independent views and need no synchronization, matching how the sampling
// scan, the background scan and row paging each walk the file on their own.
type LineReader struct {
	m *MappedFile
}

// NewLineReader creates an independent line-oriented view over a mapping.
func NewLineReader(m *MappedFile) *LineReader {
	return &LineReader{m: m}
}

// line extracts the line starting at off and returns it with the offset of
// the following line. Line terminators are LF or CRLF and are stripped. A
// final line without a terminator is returned with next at end of file.
func (r *LineReader) line(off int64) (line []byte, next int64, ok bool) {
	data := r.m.bytes()
	if off < 0 || off >= int64(len(data)) {
		return nil, off, false
	}

	idx := bytes.IndexByte(data[off:], '\n')
	if idx < 0 {
		line = data[off:]
		next = int64(len(data))
	} else {
		line = data[off : off+int64(idx)]
		next = off + int64(idx) + 1
	}

	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, next, true
}

// ReadLineBytes returns up to count lines starting at offset, after
// discarding skip complete lines. The returned slices alias the mapping;
// callers must treat them as read-only and must not retain them past the
// mapping's Close.
//
// The read stops early at end of file and never pads the result. A file
// ending in a newline does not produce a trailing empty line, while a
// final unterminated line is returned exactly once.
func (r *LineReader) ReadLineBytes(offset int64, skip, count int) [][]byte {
	off := offset
	for ; skip > 0; skip-- {
		_, next, ok := r.line(off)
		if !ok {
			return nil
		}
		off = next
	}

	if count <= 0 {
		return nil
	}

	out := make([][]byte, 0, count)
	for len(out) < count {
		line, next, ok := r.line(off)
		if !ok {
			break
		}
		out = append(out, line)
		off = next
	}
	return out
}
