package tablens

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestIndex(t *testing.T, path string, format FileType, interval int) *RowIndex {
	t.Helper()
	ri, err := NewRowIndex(path, format, interval)
	require.NoError(t, err, "failed to create row index")
	require.NoError(t, ri.BuildIndex(context.Background()), "failed to build row index")
	t.Cleanup(func() {
		require.NoError(t, ri.Close())
	})
	return ri
}

func TestSaveLoadIndex_Roundtrip(t *testing.T) {
	t.Parallel()

	source := writeTestFile(t, "data.csv", "id,name\n1,alice\n2,bob\n3,\"multi\nline\"\n4,dave\n")
	original := buildTestIndex(t, source, FileTypeCSV, 2)

	cache := filepath.Join(t.TempDir(), "data.ridx")
	require.NoError(t, SaveIndex(original, cache), "failed to save index")

	loaded, err := LoadIndex(cache, source, FileTypeCSV)
	require.NoError(t, err, "failed to load index")
	defer func() {
		require.NoError(t, loaded.Close())
	}()

	assert.True(t, loaded.Built(), "a loaded index must be ready to seek")
	assert.Equal(t, original.TotalRows(), loaded.TotalRows())
	assert.Equal(t, original.Interval(), loaded.Interval())

	for row := int64(0); row < original.TotalRows(); row++ {
		want, err := original.Seek(row)
		require.NoError(t, err)
		got, err := loaded.Seek(row)
		require.NoError(t, err, "failed to seek row %d via the loaded index", row)
		assert.Equal(t, want, got, "row %d offset must survive the roundtrip", row)
	}

	_, err = loaded.Seek(original.TotalRows())
	assert.ErrorIs(t, err, ErrRowOutOfRange)
}

func TestSaveIndex_RequiresBuild(t *testing.T) {
	t.Parallel()

	source := writeTestFile(t, "data.csv", "id\n1\n")
	ri, err := NewRowIndex(source, FileTypeCSV, 0)
	require.NoError(t, err)

	err = SaveIndex(ri, filepath.Join(t.TempDir(), "data.ridx"))
	assert.ErrorIs(t, err, ErrIndexNotBuilt)
}

func TestLoadIndex_Stale(t *testing.T) {
	t.Parallel()

	save := func(t *testing.T, content string) (source, cache string) {
		t.Helper()
		source = writeTestFile(t, "data.csv", content)
		ri := buildTestIndex(t, source, FileTypeCSV, 2)
		cache = filepath.Join(t.TempDir(), "data.ridx")
		require.NoError(t, SaveIndex(ri, cache), "failed to save index")
		return source, cache
	}

	t.Run("Grown source", func(t *testing.T) {
		t.Parallel()

		source, cache := save(t, "id\n1\n2\n")
		require.NoError(t, os.WriteFile(source, []byte("id\n1\n2\n3\n"), 0o600))

		_, err := LoadIndex(cache, source, FileTypeCSV)
		assert.ErrorIs(t, err, ErrIndexStale)
	})

	t.Run("Rewritten content of the same size", func(t *testing.T) {
		t.Parallel()

		source, cache := save(t, "id\n1\n2\n")
		info, err := os.Stat(source)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(source, []byte("id\n7\n8\n"), 0o600))
		require.NoError(t, os.Chtimes(source, info.ModTime(), info.ModTime()), "failed to restore mtime")

		_, err = LoadIndex(cache, source, FileTypeCSV)
		assert.ErrorIs(t, err, ErrIndexStale, "the content fingerprint must catch a same-size rewrite")
	})

	t.Run("Touched mtime", func(t *testing.T) {
		t.Parallel()

		source, cache := save(t, "id\n1\n2\n")
		later := time.Now().Add(time.Hour)
		require.NoError(t, os.Chtimes(source, later, later))

		_, err := LoadIndex(cache, source, FileTypeCSV)
		assert.ErrorIs(t, err, ErrIndexStale)
	})

	t.Run("Format mismatch", func(t *testing.T) {
		t.Parallel()

		source, cache := save(t, "id\n1\n2\n")
		_, err := LoadIndex(cache, source, FileTypeJSONL)
		assert.ErrorIs(t, err, ErrIndexStale)
	})
}

func TestLoadIndex_Invalid(t *testing.T) {
	t.Parallel()

	source := writeTestFile(t, "data.csv", "id\n1\n")

	t.Run("Missing cache", func(t *testing.T) {
		t.Parallel()

		_, err := LoadIndex(filepath.Join(t.TempDir(), "absent.ridx"), source, FileTypeCSV)
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("Wrong magic", func(t *testing.T) {
		t.Parallel()

		cache := writeTestFile(t, "bad.ridx", "JUNKjunkjunkjunkjunk")
		_, err := LoadIndex(cache, source, FileTypeCSV)
		assert.Error(t, err, "a foreign file must be rejected")
	})

	t.Run("Truncated cache", func(t *testing.T) {
		t.Parallel()

		cache := writeTestFile(t, "short.ridx", "RI")
		_, err := LoadIndex(cache, source, FileTypeCSV)
		assert.Error(t, err)
	})

	t.Run("Implausible footer length", func(t *testing.T) {
		t.Parallel()

		cache := writeTestFile(t, "badfooter.ridx", "RIDX\x00\x00\x00\x00\x00\x00\xff\xff")
		_, err := LoadIndex(cache, source, FileTypeCSV)
		assert.Error(t, err)
	})
}
