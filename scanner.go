package tablens

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nao1215/tablens/domain/model"
)

// schemaScanner is the per-format schema inference engine behind a session.
//
// ScanSchema samples up to limit records and builds the first schema.
// ScanBatch continues from where the scanner stands, folding up to limit
// records into the given schema copy-on-write, and reports the records
// consumed and whether input is exhausted. Cancellation mid-batch returns
// the schema as of the last fully folded record, never an error.
type schemaScanner interface {
	ScanSchema(ctx context.Context, limit int) (*model.Schema, error)
	ScanBatch(ctx context.Context, schema *model.Schema, limit int) (*model.Schema, int, bool)
	Offset() int64
	Consumed() int64
}

// DelimitedScanner infers schemas from CSV and TSV content. The header row
// fixes the ordered column set; sampled values only ever widen the column
// types. Each scanner owns an independent cursor over the shared mapping.
type DelimitedScanner struct {
	reader     *csv.Reader
	base       int64
	header     []string
	headerRead bool
	consumed   int64
}

// NewDelimitedScanner creates a scanner reading from the start of the
// mapping, header first.
func NewDelimitedScanner(m *MappedFile, delim rune) *DelimitedScanner {
	return &DelimitedScanner{reader: newCSVReader(m.bytes(), delim)}
}

// NewDelimitedScannerAt creates a scanner resuming at a byte offset with
// an already known header. The background refinement phase uses it so the
// sampling phase and the refinement phase never share a cursor.
func NewDelimitedScannerAt(m *MappedFile, delim rune, offset int64, header []string) *DelimitedScanner {
	data := m.bytes()
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return &DelimitedScanner{
		reader:     newCSVReader(data[offset:], delim),
		base:       offset,
		header:     header,
		headerRead: true,
	}
}

// newCSVReader builds the csv.Reader all delimited scanning shares:
// variable-width records, reused record buffers.
func newCSVReader(data []byte, delim rune) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	return r
}

// Header returns the header row, available once ScanSchema has run.
func (s *DelimitedScanner) Header() []string {
	return s.header
}

// Offset returns the byte offset of the first unread record, the resume
// point for a follow-up scanner.
func (s *DelimitedScanner) Offset() int64 {
	return s.base + s.reader.InputOffset()
}

// Consumed returns how many data records this scanner has folded.
func (s *DelimitedScanner) Consumed() int64 {
	return s.consumed
}

// ensureHeader reads the header row on first use.
func (s *DelimitedScanner) ensureHeader() error {
	if s.headerRead {
		return nil
	}
	rec, err := s.reader.Read()
	if err != nil {
		return err
	}
	header := make([]string, len(rec))
	copy(header, rec)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	s.header = header
	s.headerRead = true
	return nil
}

// ScanSchema samples up to limit data records and infers the first schema.
// A file with a header but no data records, or no content at all, fails
// with ErrEmptySample: the viewer cannot render a table nobody can type
// against, so an empty sample is an error rather than an empty schema.
func (s *DelimitedScanner) ScanSchema(ctx context.Context, limit int) (*model.Schema, error) {
	if err := s.ensureHeader(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptySample
		}
		return nil, fmt.Errorf("tablens: read header: %w", err)
	}

	builder, err := model.NewSchemaBuilderColumns(s.header)
	if err != nil {
		return nil, fmt.Errorf("tablens: %w", err)
	}

	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Debug("skipping unparsable record in sample", "err", err)
			continue
		}
		builder.ObserveRecord(rec)
		s.consumed++
	}

	if builder.Count() == 0 {
		return nil, ErrEmptySample
	}
	return builder.Build(), nil
}

// ScanBatch folds up to limit records into schema and returns the refined
// schema, the records consumed, and whether the input is exhausted. An
// unparsable record is skipped; subsequent records still count. On
// cancellation the schema folded so far is returned without error.
func (s *DelimitedScanner) ScanBatch(ctx context.Context, schema *model.Schema, limit int) (*model.Schema, int, bool) {
	cur := schema
	n := 0
	for n < limit {
		if ctx.Err() != nil {
			return cur, n, false
		}
		rec, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			return cur, n, true
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return cur, n, true
			}
			slog.Debug("skipping unparsable record", "err", err)
			continue
		}
		cur = model.RefineSchema(cur, rec)
		s.consumed++
		n++
	}
	return cur, n, false
}

// fieldDecoder turns one raw line into named field observations.
type fieldDecoder func(line []byte) ([]model.FieldObservation, error)

// keyedScanner is the shared chassis for the keyed line formats, JSON
// Lines and LTSV: no header row, a column set that grows as records
// introduce keys, blank lines skipped.
type keyedScanner struct {
	lr       *LineReader
	off      int64
	consumed int64
	decode   fieldDecoder
}

// Offset returns the byte offset of the first unread line.
func (s *keyedScanner) Offset() int64 {
	return s.off
}

// Consumed returns how many records this scanner has folded.
func (s *keyedScanner) Consumed() int64 {
	return s.consumed
}

// ScanSchema samples up to limit records and infers the first schema,
// with columns in first-seen key order. ErrEmptySample when no record
// decodes.
func (s *keyedScanner) ScanSchema(ctx context.Context, limit int) (*model.Schema, error) {
	builder := model.NewSchemaBuilder()

	for builder.Count() < int64(limit) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, next, ok := s.lr.line(s.off)
		if !ok {
			break
		}
		s.off = next
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		fields, err := s.decode(line)
		if err != nil {
			slog.Debug("skipping unparsable record in sample", "err", err)
			continue
		}
		builder.ObserveFields(fields)
		s.consumed++
	}

	if builder.Count() == 0 {
		return nil, ErrEmptySample
	}
	return builder.Build(), nil
}

// ScanBatch folds up to limit records into schema, copy-on-write. New keys
// join as trailing nullable columns.
func (s *keyedScanner) ScanBatch(ctx context.Context, schema *model.Schema, limit int) (*model.Schema, int, bool) {
	cur := schema
	n := 0
	for n < limit {
		if ctx.Err() != nil {
			return cur, n, false
		}
		line, next, ok := s.lr.line(s.off)
		if !ok {
			return cur, n, true
		}
		s.off = next
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		fields, err := s.decode(line)
		if err != nil {
			slog.Debug("skipping unparsable record", "err", err)
			continue
		}
		cur = model.RefineSchemaFields(cur, fields)
		s.consumed++
		n++
	}
	return cur, n, false
}

// newScanner creates the scanner for a line-oriented format, reading from
// the start of the mapping.
func newScanner(m *MappedFile, format FileType, delim rune) schemaScanner {
	switch format {
	case FileTypeJSONL:
		return NewJSONLinesScanner(m)
	case FileTypeLTSV:
		return NewLTSVScanner(m)
	default:
		return NewDelimitedScanner(m, delim)
	}
}

// newScannerAt creates a scanner resuming at offset over its own view of
// the mapping, carrying the header for the delimited formats. The resumed
// scanner shares no cursor with the one that produced the offset.
func newScannerAt(m *MappedFile, format FileType, delim rune, offset int64, header []string) schemaScanner {
	switch format {
	case FileTypeJSONL:
		return NewJSONLinesScannerAt(m, offset)
	case FileTypeLTSV:
		return NewLTSVScannerAt(m, offset)
	default:
		return NewDelimitedScannerAt(m, delim, offset, header)
	}
}
