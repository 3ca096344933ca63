package tablens

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/xuri/excelize/v2"
)

// materializedInput is the line-oriented file a session maps: either the
// original path untouched, or a session-owned temporary spill file holding
// the decompressed or converted content.
type materializedInput struct {
	path   string
	format FileType
	temp   bool
}

// cleanup removes the spill file, if any.
func (mi materializedInput) cleanup() {
	if mi.temp {
		if err := os.Remove(mi.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Debug("removing spill file", "path", mi.path, "err", err)
		}
	}
}

// materialize prepares path for random access. Plain CSV, TSV, JSON Lines
// and LTSV files are mapped in place. Compressed variants decompress into
// a spill file once, since compressed streams have no byte-addressable
// rows. XLSX and Parquet convert their first sheet or row groups into a
// CSV spill file.
func materialize(ctx context.Context, path string, format FileType, comp Compression) (materializedInput, error) {
	switch {
	case format.lineOriented() && comp == CompressionNone:
		return materializedInput{path: path, format: format}, nil
	case format.lineOriented():
		spill, err := decompressToSpill(path, format, comp)
		if err != nil {
			return materializedInput{}, err
		}
		slog.Debug("decompressed input", "path", path, "spill", spill)
		return materializedInput{path: spill, format: format, temp: true}, nil
	case format == FileTypeXLSX:
		spill, err := convertXLSX(ctx, path, comp)
		if err != nil {
			return materializedInput{}, err
		}
		slog.Debug("converted xlsx input", "path", path, "spill", spill)
		return materializedInput{path: spill, format: FileTypeCSV, temp: true}, nil
	case format == FileTypeParquet:
		spill, err := convertParquet(ctx, path, comp)
		if err != nil {
			return materializedInput{}, err
		}
		slog.Debug("converted parquet input", "path", path, "spill", spill)
		return materializedInput{path: spill, format: FileTypeCSV, temp: true}, nil
	default:
		return materializedInput{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// openReader opens path and returns a reader that handles compression.
func openReader(path string, comp Compression) (io.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, wrapOpenError(path, err)
	}

	var reader io.Reader = f
	closer := f.Close

	switch comp {
	case CompressionNone:
	case CompressionGZ:
		gzReader, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("tablens: open gzip %s: %w", path, err)
		}
		reader = gzReader
		closer = func() error {
			_ = gzReader.Close()
			return f.Close()
		}
	case CompressionBZ2:
		reader = bzip2.NewReader(f)
	case CompressionXZ:
		xzReader, err := xz.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("tablens: open xz %s: %w", path, err)
		}
		reader = xzReader
	case CompressionZSTD:
		decoder, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("tablens: open zstd %s: %w", path, err)
		}
		reader = decoder
		closer = func() error {
			decoder.Close()
			return f.Close()
		}
	case CompressionLZ4:
		reader = lz4.NewReader(f)
	}

	return reader, closer, nil
}

// newSpillFile creates the temporary file session spills go into.
func newSpillFile(ext string) (*os.File, error) {
	tmp, err := os.CreateTemp("", "tablens-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("tablens: create spill file: %w", err)
	}
	return tmp, nil
}

// decompressToSpill streams the decompressed content of path into a spill
// file and returns its name.
func decompressToSpill(path string, format FileType, comp Compression) (string, error) {
	reader, closer, err := openReader(path, comp)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = closer()
	}()

	tmp, err := newSpillFile(format.extension())
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("tablens: decompress %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("tablens: decompress %s: %w", path, err)
	}
	return tmp.Name(), nil
}

// convertXLSX converts the first sheet of an XLSX workbook into a CSV
// spill file. The first sheet row becomes the header; data rows are padded
// or truncated to the header width.
func convertXLSX(ctx context.Context, path string, comp Compression) (string, error) {
	var (
		xlsxFile *excelize.File
		err      error
	)
	if comp == CompressionNone {
		xlsxFile, err = excelize.OpenFile(path)
	} else {
		var reader io.Reader
		var closer func() error
		reader, closer, err = openReader(path, comp)
		if err != nil {
			return "", err
		}
		defer func() {
			_ = closer()
		}()
		xlsxFile, err = excelize.OpenReader(reader)
	}
	if err != nil {
		return "", fmt.Errorf("tablens: open xlsx %s: %w", path, err)
	}
	defer func() {
		_ = xlsxFile.Close()
	}()

	sheets := xlsxFile.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("tablens: no sheets in xlsx file: %s", path)
	}

	iter, err := xlsxFile.Rows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("tablens: read xlsx sheet %s: %w", sheets[0], err)
	}
	defer func() {
		_ = iter.Close()
	}()

	tmp, err := newSpillFile(extCSV)
	if err != nil {
		return "", err
	}
	spill := tmp.Name()
	fail := func(err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(spill)
		return "", fmt.Errorf("tablens: convert xlsx %s: %w", path, err)
	}

	w := csv.NewWriter(tmp)
	width := 0
	rows := 0
	for iter.Next() {
		if rows%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
		}
		row, err := iter.Columns()
		if err != nil {
			return fail(err)
		}
		if rows == 0 {
			width = len(row)
		} else if len(row) != width {
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		}
		if err := w.Write(row); err != nil {
			return fail(err)
		}
		rows++
	}
	if err := iter.Error(); err != nil {
		return fail(err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(spill)
		return "", fmt.Errorf("tablens: convert xlsx %s: %w", path, err)
	}
	return spill, nil
}

// convertParquet converts a Parquet file into a CSV spill file via Arrow.
// Uncompressed files are read in place; compressed ones decompress into
// memory first since Parquet needs random access.
func convertParquet(ctx context.Context, path string, comp Compression) (string, error) {
	var pqReader *pqfile.Reader
	if comp == CompressionNone {
		var err error
		pqReader, err = pqfile.OpenParquetFile(path, false)
		if err != nil {
			return "", fmt.Errorf("tablens: open parquet %s: %w", path, err)
		}
	} else {
		reader, closer, err := openReader(path, comp)
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(reader)
		_ = closer()
		if err != nil {
			return "", fmt.Errorf("tablens: decompress parquet %s: %w", path, err)
		}
		pqReader, err = pqfile.NewParquetReader(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("tablens: open parquet %s: %w", path, err)
		}
	}
	defer func() {
		_ = pqReader.Close()
	}()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, nil)
	if err != nil {
		return "", fmt.Errorf("tablens: read parquet %s: %w", path, err)
	}
	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return "", fmt.Errorf("tablens: read parquet %s: %w", path, err)
	}
	defer table.Release()

	schema := table.Schema()
	header := make([]string, schema.NumFields())
	for i, field := range schema.Fields() {
		header[i] = field.Name
	}

	tmp, err := newSpillFile(extCSV)
	if err != nil {
		return "", err
	}
	spill := tmp.Name()
	fail := func(err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(spill)
		return "", fmt.Errorf("tablens: convert parquet %s: %w", path, err)
	}

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		return fail(err)
	}

	tableReader := array.NewTableReader(table, int64(DefaultBatchSize))
	defer tableReader.Release()

	row := make([]string, len(header))
	for tableReader.Next() {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		batch := tableReader.Record()
		numRows := batch.NumRows()
		for i := int64(0); i < numRows; i++ {
			for j, col := range batch.Columns() {
				row[j] = arrowCellValue(col, int(i))
			}
			if err := w.Write(row); err != nil {
				return fail(err)
			}
		}
	}
	if err := tableReader.Err(); err != nil {
		return fail(err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(spill)
		return "", fmt.Errorf("tablens: convert parquet %s: %w", path, err)
	}
	return spill, nil
}

// arrowCellValue renders one Arrow array element as the cell text the
// table shows. Nulls render empty; dates and timestamps render in forms
// the type inference recognizes as DATETIME.
func arrowCellValue(col arrow.Array, i int) string {
	if col.IsNull(i) {
		return ""
	}
	switch arr := col.(type) {
	case *array.Boolean:
		return strconv.FormatBool(arr.Value(i))
	case *array.Int8:
		return strconv.FormatInt(int64(arr.Value(i)), 10)
	case *array.Int16:
		return strconv.FormatInt(int64(arr.Value(i)), 10)
	case *array.Int32:
		return strconv.FormatInt(int64(arr.Value(i)), 10)
	case *array.Int64:
		return strconv.FormatInt(arr.Value(i), 10)
	case *array.Uint8:
		return strconv.FormatUint(uint64(arr.Value(i)), 10)
	case *array.Uint16:
		return strconv.FormatUint(uint64(arr.Value(i)), 10)
	case *array.Uint32:
		return strconv.FormatUint(uint64(arr.Value(i)), 10)
	case *array.Uint64:
		return strconv.FormatUint(arr.Value(i), 10)
	case *array.Float32:
		return strconv.FormatFloat(float64(arr.Value(i)), 'g', -1, 32)
	case *array.Float64:
		return strconv.FormatFloat(arr.Value(i), 'g', -1, 64)
	case *array.String:
		return arr.Value(i)
	case *array.LargeString:
		return arr.Value(i)
	case *array.Binary:
		return string(arr.Value(i))
	case *array.Date32:
		return arr.Value(i).ToTime().Format(time.DateOnly)
	case *array.Date64:
		return arr.Value(i).ToTime().Format(time.DateOnly)
	case *array.Timestamp:
		typ, ok := arr.DataType().(*arrow.TimestampType)
		if !ok {
			return fmt.Sprintf("%v", col.GetOneForMarshal(i))
		}
		return arr.Value(i).ToTime(typ.Unit).UTC().Format(time.DateTime)
	default:
		return fmt.Sprintf("%v", col.GetOneForMarshal(i))
	}
}
