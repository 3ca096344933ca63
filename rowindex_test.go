package tablens

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRowIndex(t *testing.T) {
	t.Parallel()

	t.Run("Blank path", func(t *testing.T) {
		t.Parallel()

		_, err := NewRowIndex("  ", FileTypeCSV, 0)
		assert.ErrorIs(t, err, ErrInvalidPath, "blank path should be rejected at construction")
	})

	t.Run("Non line-oriented format", func(t *testing.T) {
		t.Parallel()

		_, err := NewRowIndex("data.parquet", FileTypeParquet, 0)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, "parquet cannot be indexed directly")
	})

	t.Run("Defaults the checkpoint interval", func(t *testing.T) {
		t.Parallel()

		ri, err := NewRowIndex("data.csv", FileTypeCSV, 0)
		require.NoError(t, err)
		assert.Equal(t, DefaultCheckpointInterval, ri.Interval(), "non-positive interval should fall back to the default")
	})

	t.Run("Index is lazy", func(t *testing.T) {
		t.Parallel()

		ri, err := NewRowIndex("data.csv", FileTypeCSV, 100)
		require.NoError(t, err)
		assert.False(t, ri.Built(), "construction must not build the index")
		assert.Equal(t, int64(0), ri.TotalRows(), "TotalRows should be 0 before BuildIndex")

		_, err = ri.Seek(0)
		assert.ErrorIs(t, err, ErrIndexNotBuilt, "Seek before BuildIndex should fail")
	})
}

func TestRowIndex_BuildAndSeek(t *testing.T) {
	t.Parallel()

	// Row 2 holds a quoted line break, so boundary scanning has to carry
	// quote parity across raw lines to count it as a single row.
	content := "id,name\n" + // header, 8 bytes
		"1,alice\n" + // row 0 at offset 8
		"2,bob\n" + // row 1 at offset 16
		"3,\"multi\nline\"\n" + // row 2 at offset 22
		"4,dave\n" // row 3 at offset 37
	path := writeTestFile(t, "rows.csv", content)

	ri, err := NewRowIndex(path, FileTypeCSV, 2)
	require.NoError(t, err)
	require.NoError(t, ri.BuildIndex(context.Background()), "building over a valid file should succeed")
	defer ri.Close()

	assert.True(t, ri.Built(), "index should report built")
	assert.Equal(t, int64(4), ri.TotalRows(), "quoted line break must not split row 2")

	tests := []struct {
		name   string
		row    int64
		offset int64
	}{
		{name: "First row sits past the header", row: 0, offset: 8},
		{name: "Row after a checkpoint", row: 1, offset: 16},
		{name: "Row on a checkpoint", row: 2, offset: 22},
		{name: "Last row", row: 3, offset: 37},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			off, err := ri.Seek(tt.row)
			require.NoError(t, err, "seek inside the indexed range should succeed")
			assert.Equal(t, tt.offset, off, "offset mismatch for row %d", tt.row)
		})
	}

	t.Run("Seek past the last row", func(t *testing.T) {
		t.Parallel()

		_, err := ri.Seek(ri.TotalRows())
		assert.ErrorIs(t, err, ErrRowOutOfRange, "row == TotalRows is out of range")
	})

	t.Run("Seek negative row", func(t *testing.T) {
		t.Parallel()

		_, err := ri.Seek(-1)
		assert.ErrorIs(t, err, ErrRowOutOfRange, "negative rows are out of range")
	})

	t.Run("Rebuild is a no-op", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, ri.BuildIndex(context.Background()))
		assert.Equal(t, int64(4), ri.TotalRows(), "rebuilding must not change the count")
	})
}

func TestRowIndex_Build_EdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("Unterminated quote closes the final row", func(t *testing.T) {
		t.Parallel()

		path := writeTestFile(t, "open.csv", "a,b\n1,\"open\nstill open")
		ri, err := NewRowIndex(path, FileTypeCSV, 10)
		require.NoError(t, err)
		require.NoError(t, ri.BuildIndex(context.Background()))
		defer ri.Close()

		assert.Equal(t, int64(1), ri.TotalRows(), "trailing data must be preserved as the final row")
		off, err := ri.Seek(0)
		require.NoError(t, err)
		assert.Equal(t, int64(4), off)
	})

	t.Run("Doubled quotes stay inside one row", func(t *testing.T) {
		t.Parallel()

		path := writeTestFile(t, "escape.csv", "x,y\n1,\"a\"\"b\"\n2,c\n")
		ri, err := NewRowIndex(path, FileTypeCSV, 10)
		require.NoError(t, err)
		require.NoError(t, ri.BuildIndex(context.Background()))
		defer ri.Close()

		assert.Equal(t, int64(2), ri.TotalRows(), "escaped quotes must not open a quoted region")
	})

	t.Run("Final row without terminator is counted", func(t *testing.T) {
		t.Parallel()

		path := writeTestFile(t, "tail.csv", "a,b\n1,x\n2,y")
		ri, err := NewRowIndex(path, FileTypeCSV, 10)
		require.NoError(t, err)
		require.NoError(t, ri.BuildIndex(context.Background()))
		defer ri.Close()

		assert.Equal(t, int64(2), ri.TotalRows())
		off, err := ri.Seek(1)
		require.NoError(t, err)
		assert.Equal(t, int64(8), off)
	})

	t.Run("Keyed formats index every line", func(t *testing.T) {
		t.Parallel()

		path := writeTestFile(t, "rows.jsonl", "{\"a\":1}\n{\"a\":2}\n")
		ri, err := NewRowIndex(path, FileTypeJSONL, 10)
		require.NoError(t, err)
		require.NoError(t, ri.BuildIndex(context.Background()))
		defer ri.Close()

		assert.Equal(t, int64(2), ri.TotalRows(), "no header line to skip in JSON Lines")
		off, err := ri.Seek(0)
		require.NoError(t, err)
		assert.Equal(t, int64(0), off, "the first record starts the file")
	})

	t.Run("Empty file builds an empty index", func(t *testing.T) {
		t.Parallel()

		path := writeTestFile(t, "empty.csv", "")
		ri, err := NewRowIndex(path, FileTypeCSV, 10)
		require.NoError(t, err)
		require.NoError(t, ri.BuildIndex(context.Background()))
		defer ri.Close()

		assert.Equal(t, int64(0), ri.TotalRows())
		_, err = ri.Seek(0)
		assert.ErrorIs(t, err, ErrRowOutOfRange)
	})

	t.Run("Missing file fails the build", func(t *testing.T) {
		t.Parallel()

		ri, err := NewRowIndex("definitely/not/here.csv", FileTypeCSV, 10)
		require.NoError(t, err)
		err = ri.BuildIndex(context.Background())
		assert.ErrorIs(t, err, ErrFileNotFound, "the build opens the file and surfaces open failures")
	})
}

func TestRowIndex_Build_Cancellation(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("id,value\n")
	for i := 0; i < 3000; i++ {
		sb.WriteString("1,aaaaaaaa\n")
	}
	path := writeTestFile(t, "big.csv", sb.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ri, err := NewRowIndex(path, FileTypeCSV, 100)
	require.NoError(t, err)
	err = ri.BuildIndex(ctx)
	require.ErrorIs(t, err, context.Canceled, "a cancelled build returns the context error")
	assert.False(t, ri.Built(), "a cancelled build leaves the index unbuilt")
	assert.Equal(t, int64(0), ri.TotalRows(), "no partial result survives a cancelled build")
}

func TestRowIndex_SeekAcrossCheckpoints(t *testing.T) {
	t.Parallel()

	// 25 fixed-width rows with interval 10 exercise the checkpoint walk:
	// direct hits, scans of up to interval-1 rows, and the final row.
	var sb strings.Builder
	sb.WriteString("n\n")
	for i := 0; i < 25; i++ {
		sb.WriteString("row\n")
	}
	path := writeTestFile(t, "grid.csv", sb.String())

	ri, err := NewRowIndex(path, FileTypeCSV, 10)
	require.NoError(t, err)
	require.NoError(t, ri.BuildIndex(context.Background()))
	defer ri.Close()

	require.Equal(t, int64(25), ri.TotalRows())
	for row := int64(0); row < 25; row++ {
		off, err := ri.Seek(row)
		require.NoError(t, err, "row %d should be seekable", row)
		assert.Equal(t, int64(2+row*4), off, "offset mismatch for row %d", row)
	}

	lastOff, err := ri.Seek(ri.TotalRows() - 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2+24*4), lastOff, "Seek(TotalRows-1) must return the last row start")
}
