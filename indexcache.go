package tablens

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-faster/city"
	"github.com/pierrec/lz4/v4"
)

// Index cache sidecar layout: magic, lz4-compressed checkpoint offsets as
// 8-byte big-endian words, JSON footer, and the footer length as the final
// 8 bytes so the footer can be found from the end of the file.
const (
	// indexCacheMagic is the magic header of an index cache file
	indexCacheMagic = "RIDX"
	// indexCacheVersion is the current cache layout version
	indexCacheVersion = 1
	// fingerprintLen is how many leading source bytes the fingerprint hashes
	fingerprintLen = 256 * 1024
)

// indexFooter is the JSON footer of an index cache file. Besides the index
// parameters it pins the exact source file state the checkpoints were built
// from; a load against any other state fails with ErrIndexStale.
type indexFooter struct {
	Version     int    `json:"version"`
	Format      string `json:"format"`
	Interval    int    `json:"interval"`
	TotalRows   int64  `json:"totalRows"`
	DataStart   int64  `json:"dataStart"`
	SourceSize  int64  `json:"sourceSize"`
	SourceMtime int64  `json:"sourceMtime"`
	SourceHash  uint64 `json:"sourceHash"`
}

// SaveIndex writes a built index to path so a later session can skip the
// counting pass over a large unchanged file.
func SaveIndex(ri *RowIndex, path string) error {
	if !ri.built {
		return ErrIndexNotBuilt
	}

	size, mtime, hash, err := sourceFingerprint(ri.path)
	if err != nil {
		return err
	}

	payload := make([]byte, 8*len(ri.offsets))
	for i, off := range ri.offsets {
		binary.BigEndian.PutUint64(payload[8*i:], uint64(off))
	}

	var compBuf bytes.Buffer
	lw := lz4.NewWriter(&compBuf)
	if _, err := lw.Write(payload); err != nil {
		return fmt.Errorf("tablens: save index: %w", err)
	}
	if err := lw.Close(); err != nil {
		return fmt.Errorf("tablens: save index: %w", err)
	}

	footer, err := json.Marshal(indexFooter{
		Version:     indexCacheVersion,
		Format:      ri.format.String(),
		Interval:    ri.interval,
		TotalRows:   ri.total,
		DataStart:   ri.dataStart,
		SourceSize:  size,
		SourceMtime: mtime,
		SourceHash:  hash,
	})
	if err != nil {
		return fmt.Errorf("tablens: save index: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(indexCacheMagic)
	out.Write(compBuf.Bytes())
	out.Write(footer)
	_ = binary.Write(&out, binary.BigEndian, int64(len(footer))) // Buffer writes cannot fail

	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("tablens: save index: %w", err)
	}
	return nil
}

// LoadIndex reads an index cache and returns a built, seekable index over
// sourcePath. The cache is bound to one exact source state; when size,
// modification time or content fingerprint differ the load fails with
// ErrIndexStale and the caller rebuilds.
func LoadIndex(path, sourcePath string, format FileType) (*RowIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapOpenError(path, err)
	}

	if len(data) < len(indexCacheMagic)+8 || string(data[:len(indexCacheMagic)]) != indexCacheMagic {
		return nil, fmt.Errorf("tablens: invalid index cache: %s", path)
	}

	footerLen := int64(binary.BigEndian.Uint64(data[len(data)-8:]))
	footerStart := int64(len(data)) - 8 - footerLen
	if footerStart < int64(len(indexCacheMagic)) {
		return nil, fmt.Errorf("tablens: invalid index cache footer: %s", path)
	}

	var footer indexFooter
	if err := json.Unmarshal(data[footerStart:int64(len(data))-8], &footer); err != nil {
		return nil, fmt.Errorf("tablens: invalid index cache footer: %w", err)
	}
	if footer.Version != indexCacheVersion {
		return nil, fmt.Errorf("tablens: unsupported index cache version %d", footer.Version)
	}
	if footer.Format != format.String() {
		return nil, fmt.Errorf("%w: cache is for %s, source opened as %s", ErrIndexStale, footer.Format, format)
	}

	size, mtime, hash, err := sourceFingerprint(sourcePath)
	if err != nil {
		return nil, err
	}
	if size != footer.SourceSize || mtime != footer.SourceMtime || hash != footer.SourceHash {
		return nil, fmt.Errorf("%w: %s", ErrIndexStale, sourcePath)
	}

	lr := lz4.NewReader(bytes.NewReader(data[len(indexCacheMagic):footerStart]))
	payload, err := io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("tablens: invalid index cache payload: %w", err)
	}
	if len(payload)%8 != 0 {
		return nil, fmt.Errorf("tablens: invalid index cache payload length %d", len(payload))
	}

	offsets := make([]int64, len(payload)/8)
	for i := range offsets {
		offsets[i] = int64(binary.BigEndian.Uint64(payload[8*i:]))
	}

	m, err := OpenMappedFile(sourcePath)
	if err != nil {
		return nil, err
	}

	return &RowIndex{
		path:      sourcePath,
		format:    format,
		interval:  footer.Interval,
		m:         m,
		offsets:   offsets,
		total:     footer.TotalRows,
		dataStart: footer.DataStart,
		built:     true,
	}, nil
}

// sourceFingerprint stats the source and hashes its head with CityHash64.
// Size, mtime and head hash together pin the file state cheaply without
// reading a multi-gigabyte file end to end.
func sourceFingerprint(path string) (size int64, mtimeNS int64, hash uint64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, 0, wrapOpenError(path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, wrapOpenError(path, err)
	}
	defer func() {
		_ = f.Close() // Ignore close error; the file was only read
	}()

	n := info.Size()
	if n > fingerprintLen {
		n = fingerprintLen
	}
	head := make([]byte, n)
	if _, err := io.ReadFull(f, head); err != nil {
		return 0, 0, 0, fmt.Errorf("tablens: fingerprint %s: %w", path, err)
	}

	return info.Size(), info.ModTime().UnixNano(), city.CH64(head), nil
}
