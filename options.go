package tablens

// Tuning defaults. The sample size bounds the synchronous work a caller
// waits for before the first render; the batch size is the refinement
// granularity between schema republications; the checkpoint interval
// trades index memory against the per-seek forward scan.
const (
	// DefaultSampleSize is the number of records the initial synchronous scan samples
	DefaultSampleSize = 200
	// DefaultBatchSize is the number of records per background refinement batch
	DefaultBatchSize = 1000
	// DefaultCheckpointInterval is the row stride between index checkpoints
	DefaultCheckpointInterval = 1000
)

// Option configures a session at open time.
type Option func(*sessionOptions)

// sessionOptions carries the resolved configuration for one session.
type sessionOptions struct {
	sampleSize         int
	batchSize          int
	checkpointInterval int
	format             FileType
	formatSet          bool
	delimiter          rune
	refine             bool
	indexCache         string
}

// defaultOptions returns the standard session configuration.
func defaultOptions() sessionOptions {
	return sessionOptions{
		sampleSize:         DefaultSampleSize,
		batchSize:          DefaultBatchSize,
		checkpointInterval: DefaultCheckpointInterval,
		refine:             true,
	}
}

// WithSampleSize sets how many records the initial synchronous scan
// samples. Values below 1 keep the default.
func WithSampleSize(n int) Option {
	return func(o *sessionOptions) {
		if n > 0 {
			o.sampleSize = n
		}
	}
}

// WithBatchSize sets how many records each background refinement batch
// folds before republishing the schema. Values below 1 keep the default.
func WithBatchSize(n int) Option {
	return func(o *sessionOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithCheckpointInterval sets the row stride between index checkpoints.
// Values below 1 keep the default.
func WithCheckpointInterval(n int) Option {
	return func(o *sessionOptions) {
		if n > 0 {
			o.checkpointInterval = n
		}
	}
}

// WithFormat overrides extension-based format detection, for files whose
// name does not reflect their content.
func WithFormat(ft FileType) Option {
	return func(o *sessionOptions) {
		o.format = ft
		o.formatSet = true
	}
}

// WithDelimiter overrides the field delimiter of a delimited source, for
// semicolon- or pipe-separated files carrying a .csv extension. Keyed
// formats ignore it.
func WithDelimiter(r rune) Option {
	return func(o *sessionOptions) {
		if r != 0 {
			o.delimiter = r
		}
	}
}

// WithoutRefine disables the background refinement scan. The schema stays
// as the initial sample inferred it.
func WithoutRefine() Option {
	return func(o *sessionOptions) {
		o.refine = false
	}
}

// WithIndexCache sets a sidecar path for the row index. BuildIndex loads
// the index from the sidecar when it still matches the source file, and
// writes it back after a fresh build.
func WithIndexCache(path string) Option {
	return func(o *sessionOptions) {
		o.indexCache = path
	}
}
