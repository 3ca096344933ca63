package tablens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/tablens/domain/model"
)

// Session is an open table file: the memory mapping, the published
// schema, the row index and the action stack behind one viewer tab.
//
// A session is safe for concurrent use. The schema is republished
// atomically by a single background goroutine; readers always observe a
// complete, immutable snapshot. Close cancels refinement, waits for it to
// stop, and releases the mapping and any spill file.
type Session struct {
	path   string
	format FileType
	opts   sessionOptions
	input  materializedInput
	m      *MappedFile
	delim  rune

	schema     atomic.Pointer[model.Schema]
	cancel     context.CancelFunc
	refine     errgroup.Group
	refineDone chan struct{}

	flight singleflight.Group

	mu    sync.Mutex
	stack *model.ActionStack
	index *RowIndex

	closed atomic.Bool
}

// Open opens path and returns a session once the initial schema is
// inferred from the sample. Background refinement continues after Open
// returns. It is a shorthand for OpenContext with context.Background().
func Open(path string, opts ...Option) (*Session, error) {
	return OpenContext(context.Background(), path, opts...)
}

// OpenContext opens path, materializes it into a line-oriented form if
// needed, maps it, and samples the initial schema synchronously. The
// context bounds the open itself and the background refinement: cancel it
// and refinement stops at the next record, keeping the schema inferred so
// far.
func OpenContext(ctx context.Context, path string, opts ...Option) (*Session, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrInvalidPath
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	format, comp := detectFormat(path)
	if o.formatSet {
		format = o.format
	}
	if format == FileTypeUnsupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	input, err := materialize(ctx, path, format, comp)
	if err != nil {
		return nil, err
	}
	m, err := OpenMappedFile(input.path)
	if err != nil {
		input.cleanup()
		return nil, err
	}

	delim := input.format.delimiter()
	if o.delimiter != 0 {
		delim = o.delimiter
	}
	s := &Session{
		path:       path,
		format:     format,
		opts:       o,
		input:      input,
		m:          m,
		delim:      delim,
		stack:      model.NewActionStack(),
		refineDone: make(chan struct{}),
	}

	sc := newScanner(m, input.format, delim)
	initial, err := sc.ScanSchema(ctx, o.sampleSize)
	if err != nil {
		_ = m.Close()
		input.cleanup()
		return nil, err
	}
	sampled := sc.Consumed()
	s.schema.Store(initial.WithFormat(format.String()).WithRowCount(sampled))
	slog.Debug("schema sampled",
		"path", path, "columns", initial.ColumnCount(), "records", sampled)

	rctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	if o.refine {
		// The background scan gets its own view over the mapping, resumed
		// past the sample, so the two phases never share a read cursor.
		var header []string
		if ds, ok := sc.(*DelimitedScanner); ok {
			header = ds.Header()
		}
		bg := newScannerAt(m, input.format, delim, sc.Offset(), header)
		s.refine.Go(func() error {
			defer close(s.refineDone)
			s.refineLoop(rctx, bg, sampled)
			return nil
		})
	} else {
		close(s.refineDone)
	}
	return s, nil
}

// refineLoop is the single schema writer: it folds batches into the
// current schema copy-on-write and republishes after each batch until the
// input is exhausted or the context is cancelled. sampled is the record
// count the initial scan already accounted for.
func (s *Session) refineLoop(ctx context.Context, sc schemaScanner, sampled int64) {
	for {
		if ctx.Err() != nil {
			slog.Debug("schema refinement stopped", "path", s.path, "records", sampled+sc.Consumed())
			return
		}
		cur := s.schema.Load()
		next, n, done := sc.ScanBatch(ctx, cur, s.opts.batchSize)
		if n > 0 {
			s.schema.Store(next.WithRowCount(sampled + sc.Consumed()))
		}
		if done {
			slog.Debug("schema refinement complete", "path", s.path, "records", sampled+sc.Consumed())
			return
		}
	}
}

// Path returns the path the session was opened with.
func (s *Session) Path() string {
	return s.path
}

// Format returns the detected or forced source format.
func (s *Session) Format() FileType {
	return s.format
}

// Schema returns the current published schema. The snapshot is immutable;
// later refinement republishes a new value instead of changing it.
func (s *Session) Schema() *model.Schema {
	return s.schema.Load()
}

// WaitRefine blocks until background refinement finishes or ctx is done.
// It returns immediately for sessions opened with WithoutRefine.
func (s *Session) WaitRefine(ctx context.Context) error {
	select {
	case <-s.refineDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BuildIndex builds the row index, loading it from the sidecar configured
// with WithIndexCache when one matches the source file. Concurrent calls
// collapse into a single build. Building is idempotent.
func (s *Session) BuildIndex(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	_, err, _ := s.flight.Do("rowindex", func() (any, error) {
		s.mu.Lock()
		ri := s.index
		s.mu.Unlock()
		if ri != nil && ri.Built() {
			return nil, nil
		}

		if s.opts.indexCache != "" {
			cached, err := LoadIndex(s.opts.indexCache, s.input.path, s.input.format)
			switch {
			case err == nil:
				s.mu.Lock()
				s.index = cached
				s.mu.Unlock()
				slog.Debug("row index loaded",
					"cache", s.opts.indexCache, "rows", cached.TotalRows())
				return nil, nil
			case !errors.Is(err, ErrFileNotFound):
				slog.Debug("row index cache unusable", "cache", s.opts.indexCache, "err", err)
			}
		}

		ri, err := NewRowIndex(s.input.path, s.input.format, s.opts.checkpointInterval)
		if err != nil {
			return nil, err
		}
		if err := ri.BuildIndex(ctx); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.index = ri
		s.mu.Unlock()
		slog.Debug("row index built", "path", s.input.path, "rows", ri.TotalRows())

		if s.opts.indexCache != "" {
			if err := SaveIndex(ri, s.opts.indexCache); err != nil {
				slog.Warn("row index cache not written",
					"cache", s.opts.indexCache, "err", err)
			}
		}
		return nil, nil
	})
	return err
}

// IndexBuilt reports whether BuildIndex has completed.
func (s *Session) IndexBuilt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index != nil && s.index.Built()
}

// TotalRows returns the number of data rows, or 0 before BuildIndex.
func (s *Session) TotalRows() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return 0
	}
	return s.index.TotalRows()
}

// SeekRow returns the byte offset of the given row. ErrIndexNotBuilt
// before BuildIndex, ErrRowOutOfRange for rows at or past TotalRows.
func (s *Session) SeekRow(row int64) (int64, error) {
	if s.closed.Load() {
		return 0, ErrSessionClosed
	}
	s.mu.Lock()
	idx := s.index
	s.mu.Unlock()
	if idx == nil {
		return 0, ErrIndexNotBuilt
	}
	return idx.Seek(row)
}

// ReadRows reads up to count rows starting at row, each projected onto
// the current schema's column order at the source file's full width.
// Renames, deletes and filters never change the rows returned here; they
// only change how the caller presents them. Fewer rows come back when the
// range passes the end of the file.
func (s *Session) ReadRows(row int64, count int) ([][]string, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if count <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	idx := s.index
	s.mu.Unlock()
	if idx == nil {
		return nil, ErrIndexNotBuilt
	}
	offset, err := idx.Seek(row)
	if err != nil {
		return nil, err
	}
	if rest := idx.TotalRows() - row; int64(count) > rest {
		count = int(rest)
	}
	schema := s.Schema()

	switch s.input.format {
	case FileTypeJSONL:
		lines := NewLineReader(s.m).ReadLineBytes(offset, 0, count)
		rows := make([][]string, len(lines))
		for i, line := range lines {
			rows[i] = rowFromJSON(line, schema)
		}
		return rows, nil
	case FileTypeLTSV:
		lines := NewLineReader(s.m).ReadLineBytes(offset, 0, count)
		rows := make([][]string, len(lines))
		for i, line := range lines {
			rows[i] = rowFromLTSV(line, schema)
		}
		return rows, nil
	default:
		data := s.m.bytes()
		quoted := s.input.format.quoted()
		delim := byte(s.delim)
		width := schema.ColumnCount()
		rows := make([][]string, 0, count)
		for off := offset; len(rows) < count && off < int64(len(data)); {
			rec, next := recordBytes(data, off, quoted)
			rows = append(rows, projectRow(parseDelimitedRow(rec, delim), width))
			off = next
		}
		return rows, nil
	}
}

// PushAction validates the action against the current schema by replaying
// the whole stack with it appended, then appends it. An invalid action
// leaves the stack unchanged. Validation uses the schema at push time;
// ColumnStates and FilterSpecs re-resolve against the schema current at
// their call.
func (s *Session) PushAction(a model.Action) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	trial := append(s.stack.Actions(), a)
	if _, err := model.ResolveActions(s.Schema(), trial); err != nil {
		return err
	}
	s.stack.Push(a)
	slog.Debug("action pushed", "action", a.Describe(), "depth", s.stack.Len())
	return nil
}

// Actions returns a copy of the action stack in push order.
func (s *Session) Actions() []model.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stack.Actions()
}

// ColumnStates replays the action stack against the current schema and
// returns the per-column display states.
func (s *Session) ColumnStates() ([]model.ColumnState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stack.Resolve(s.Schema())
}

// FilterSpecs replays the action stack against the current schema and
// returns the compiled filters, ready for model.MatchRow.
func (s *Session) FilterSpecs() ([]model.FilterSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stack.FilterSpecs(s.Schema())
}

// MatchRow reports whether a row passes every filter on the action stack.
// It re-resolves the stack on each call; callers sweeping many rows should
// resolve FilterSpecs once and call model.MatchRow per row instead.
func (s *Session) MatchRow(row []string) (bool, error) {
	specs, err := s.FilterSpecs()
	if err != nil {
		return false, err
	}
	return model.MatchRow(specs, row), nil
}

// Close stops refinement, waits for it, and releases the row index, the
// mapping and any spill file. Close is idempotent.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()
	_ = s.refine.Wait()
	s.mu.Lock()
	idx := s.index
	s.index = nil
	s.mu.Unlock()
	if idx != nil {
		_ = idx.Close()
	}
	err := s.m.Close()
	s.input.cleanup()
	slog.Debug("session closed", "path", s.path)
	return err
}

// parseDelimitedRow splits one raw record into fields: quotes unwrap,
// doubled quotes unescape, and a quote inside an unquoted field stays
// literal. An empty record is a single empty field, matching how the
// indexer counts it as a row.
func parseDelimitedRow(data []byte, delim byte) []string {
	fields := make([]string, 0, 8)
	var field []byte
	inQuotes := false
	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case inQuotes:
			if c == '"' {
				if i+1 < len(data) && data[i+1] == '"' {
					field = append(field, '"')
					i += 2
					continue
				}
				inQuotes = false
				i++
				continue
			}
			field = append(field, c)
			i++
		case c == '"' && len(field) == 0:
			inQuotes = true
			i++
		case c == delim:
			fields = append(fields, string(field))
			field = field[:0]
			i++
		default:
			field = append(field, c)
			i++
		}
	}
	return append(fields, string(field))
}

// projectRow pads or truncates cells to the schema width.
func projectRow(cells []string, width int) []string {
	if len(cells) == width {
		return cells
	}
	out := make([]string, width)
	copy(out, cells)
	return out
}
