package tablens

import (
	"path/filepath"
	"strings"
)

// FileType represents the logical format of a source file, independent of
// any compression wrapping it.
type FileType int

const (
	// FileTypeCSV represents comma-separated values with a header row
	FileTypeCSV FileType = iota
	// FileTypeTSV represents tab-separated values with a header row
	FileTypeTSV
	// FileTypeJSONL represents newline-delimited JSON objects
	FileTypeJSONL
	// FileTypeLTSV represents labeled tab-separated values
	FileTypeLTSV
	// FileTypeParquet represents Apache Parquet
	FileTypeParquet
	// FileTypeXLSX represents Excel XLSX
	FileTypeXLSX
	// FileTypeUnsupported represents an unrecognized file type
	FileTypeUnsupported
)

// Compression represents the compression wrapping a source file.
type Compression int

const (
	// CompressionNone represents an uncompressed file
	CompressionNone Compression = iota
	// CompressionGZ represents gzip compression
	CompressionGZ
	// CompressionBZ2 represents bzip2 compression
	CompressionBZ2
	// CompressionXZ represents xz compression
	CompressionXZ
	// CompressionZSTD represents zstandard compression
	CompressionZSTD
	// CompressionLZ4 represents lz4 compression
	CompressionLZ4
)

// File extensions
const (
	// extCSV is the CSV file extension
	extCSV = ".csv"
	// extTSV is the TSV file extension
	extTSV = ".tsv"
	// extJSONL is the JSON Lines file extension
	extJSONL = ".jsonl"
	// extNDJSON is the alternate JSON Lines file extension
	extNDJSON = ".ndjson"
	// extLTSV is the LTSV file extension
	extLTSV = ".ltsv"
	// extParquet is the Parquet file extension
	extParquet = ".parquet"
	// extXLSX is the Excel XLSX file extension
	extXLSX = ".xlsx"
	// extGZ is the gzip compression extension
	extGZ = ".gz"
	// extBZ2 is the bzip2 compression extension
	extBZ2 = ".bz2"
	// extXZ is the xz compression extension
	extXZ = ".xz"
	// extZSTD is the zstd compression extension
	extZSTD = ".zst"
	// extLZ4 is the lz4 compression extension
	extLZ4 = ".lz4"
)

// Field delimiters for the delimited formats
const (
	// csvDelimiter is the field delimiter for CSV files
	csvDelimiter = ','
	// tsvDelimiter is the field delimiter for TSV files
	tsvDelimiter = '\t'
)

// String returns the format name
func (ft FileType) String() string {
	switch ft {
	case FileTypeCSV:
		return "csv"
	case FileTypeTSV:
		return "tsv"
	case FileTypeJSONL:
		return "jsonl"
	case FileTypeLTSV:
		return "ltsv"
	case FileTypeParquet:
		return "parquet"
	case FileTypeXLSX:
		return "xlsx"
	default:
		return "unsupported"
	}
}

// extension returns the canonical file extension for the format
func (ft FileType) extension() string {
	switch ft {
	case FileTypeCSV:
		return extCSV
	case FileTypeTSV:
		return extTSV
	case FileTypeJSONL:
		return extJSONL
	case FileTypeLTSV:
		return extLTSV
	case FileTypeParquet:
		return extParquet
	case FileTypeXLSX:
		return extXLSX
	default:
		return ""
	}
}

// lineOriented reports whether records of the format occupy whole lines of
// the raw file, which the mapped-file row index requires. Parquet and XLSX
// are materialized to CSV before indexing.
func (ft FileType) lineOriented() bool {
	switch ft {
	case FileTypeCSV, FileTypeTSV, FileTypeJSONL, FileTypeLTSV:
		return true
	default:
		return false
	}
}

// hasHeader reports whether the first line of the format is a header row
// rather than data.
func (ft FileType) hasHeader() bool {
	return ft == FileTypeCSV || ft == FileTypeTSV
}

// delimiter returns the field delimiter for the delimited formats.
func (ft FileType) delimiter() rune {
	if ft == FileTypeTSV {
		return tsvDelimiter
	}
	return csvDelimiter
}

// quoted reports whether the format uses CSV-style quoting, which allows
// record-internal line breaks and doubled-quote escapes. Boundary scanning
// must honor it; plain line splitting is enough for the other formats.
func (ft FileType) quoted() bool {
	return ft == FileTypeCSV || ft == FileTypeTSV
}

// extension returns the file extension for the compression
func (c Compression) extension() string {
	switch c {
	case CompressionGZ:
		return extGZ
	case CompressionBZ2:
		return extBZ2
	case CompressionXZ:
		return extXZ
	case CompressionZSTD:
		return extZSTD
	case CompressionLZ4:
		return extLZ4
	default:
		return ""
	}
}

// detectFormat detects the file format and compression from the path,
// considering compound extensions like ".csv.gz".
func detectFormat(path string) (FileType, Compression) {
	lower := strings.ToLower(path)

	compression := CompressionNone
	switch {
	case strings.HasSuffix(lower, extGZ):
		compression = CompressionGZ
		lower = strings.TrimSuffix(lower, extGZ)
	case strings.HasSuffix(lower, extBZ2):
		compression = CompressionBZ2
		lower = strings.TrimSuffix(lower, extBZ2)
	case strings.HasSuffix(lower, extXZ):
		compression = CompressionXZ
		lower = strings.TrimSuffix(lower, extXZ)
	case strings.HasSuffix(lower, extZSTD):
		compression = CompressionZSTD
		lower = strings.TrimSuffix(lower, extZSTD)
	case strings.HasSuffix(lower, extLZ4):
		compression = CompressionLZ4
		lower = strings.TrimSuffix(lower, extLZ4)
	}

	switch filepath.Ext(lower) {
	case extCSV:
		return FileTypeCSV, compression
	case extTSV:
		return FileTypeTSV, compression
	case extJSONL, extNDJSON:
		return FileTypeJSONL, compression
	case extLTSV:
		return FileTypeLTSV, compression
	case extParquet:
		return FileTypeParquet, compression
	case extXLSX:
		return FileTypeXLSX, compression
	default:
		return FileTypeUnsupported, compression
	}
}

// isSupportedFile checks if the file has a supported extension, with or
// without a compression suffix.
func isSupportedFile(fileName string) bool {
	ft, _ := detectFormat(fileName)
	return ft != FileTypeUnsupported
}
