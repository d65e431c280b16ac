package hnf

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/scigolib/hnf/internal/store"
)

// ErrorMode controls how per-neuron read failures are handled.
type ErrorMode uint8

const (
	// ErrorModeStop aborts the read and returns the first failure.
	ErrorModeStop ErrorMode = iota
	// ErrorModeWarn records the failure, logs a warning and continues.
	ErrorModeWarn
	// ErrorModeIgnore records the failure and continues silently.
	ErrorModeIgnore
)

// ParseErrorMode parses "stop", "warn" or "ignore".
func ParseErrorMode(s string) (ErrorMode, error) {
	switch strings.ToLower(s) {
	case "stop", "raise", "":
		return ErrorModeStop, nil
	case "warn":
		return ErrorModeWarn, nil
	case "ignore":
		return ErrorModeIgnore, nil
	}
	return 0, fmt.Errorf("hnf: unknown error mode %q", s)
}

func (m ErrorMode) String() string {
	switch m {
	case ErrorModeWarn:
		return "warn"
	case ErrorModeIgnore:
		return "ignore"
	}
	return "stop"
}

// ParallelMode selects between sequential and parallel reads.
type ParallelMode uint8

const (
	// ParallelAuto reads in parallel when more ids than the threshold are
	// requested.
	ParallelAuto ParallelMode = iota
	// ParallelOn always dispatches to the worker pool.
	ParallelOn
	// ParallelOff always reads sequentially.
	ParallelOff
)

// WriteMode selects what happens to an existing archive on write.
type WriteMode uint8

const (
	// ModeAppend keeps existing neurons. The archive's format must match
	// the writer's.
	ModeAppend WriteMode = iota
	// ModeOverwrite discards the existing archive.
	ModeOverwrite
)

// Format selectors.
const (
	FormatAuto   = "auto"
	FormatLatest = "latest"
)

// Default option values.
const (
	DefaultParallelThreshold = 200
	DefaultDeflateLevel      = 4
)

// Compression configures the filters applied to raw datasets.
type Compression = store.Compression

// Compression codecs.
const (
	CodecNone    = store.CodecNone
	CodecDeflate = store.CodecDeflate
	CodecLZ4     = store.CodecLZ4
)

// DefaultCompression is deflate level 4 behind the shuffle filter.
var DefaultCompression = Compression{Codec: CodecDeflate, Level: DefaultDeflateLevel, Shuffle: true}

// ParseCompression parses "none", "lz4", "deflate" or "deflate:<level>".
// Deflate and lz4 are combined with the shuffle filter.
func ParseCompression(s string) (Compression, error) {
	name, level, _ := strings.Cut(strings.ToLower(s), ":")
	switch name {
	case "none", "off":
		return Compression{Codec: CodecNone}, nil
	case "lz4":
		return Compression{Codec: CodecLZ4, Shuffle: true}, nil
	case "deflate", "gzip", "zlib":
		c := DefaultCompression
		if level != "" {
			if _, err := fmt.Sscanf(level, "%d", &c.Level); err != nil || c.Level < 1 || c.Level > 9 {
				return Compression{}, fmt.Errorf("hnf: invalid deflate level %q", level)
			}
		}
		return c, nil
	}
	return Compression{}, fmt.Errorf("hnf: unknown compression %q", s)
}

// AnnotationSelector picks annotations by name: all, none or an explicit
// list. Names absent from a neuron are skipped.
type AnnotationSelector struct {
	all   bool
	names []string
}

// AllAnnotations selects every annotation.
func AllAnnotations() AnnotationSelector { return AnnotationSelector{all: true} }

// NoAnnotations selects nothing.
func NoAnnotations() AnnotationSelector { return AnnotationSelector{} }

// SelectAnnotations selects the named annotations.
func SelectAnnotations(names ...string) AnnotationSelector {
	return AnnotationSelector{names: names}
}

// IsNone reports whether the selector selects nothing.
func (s AnnotationSelector) IsNone() bool {
	return !s.all && len(s.names) == 0
}

// pick filters available names through the selector, keeping the
// selector's order for explicit lists.
func (s AnnotationSelector) pick(available []string) []string {
	if s.all {
		return available
	}
	var out []string
	for _, name := range s.names {
		for _, a := range available {
			if a == name {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

type options struct {
	format   string
	registry *Registry

	// read
	policy      ReadPolicy
	subset      []any
	strict      bool
	preferRaw   bool
	onError     ErrorMode
	parallel    ParallelMode
	workers     int
	threshold   int
	headerCache *HeaderCache

	// write
	serialized  bool
	raw         bool
	mode        WriteMode
	overwrite   bool
	compression Compression
	annotations AnnotationSelector

	logger  *Logger
	metrics MetricsCollector
}

// Option configures reads, writes and inspection.
type Option func(*options)

// DefaultWorkers returns the default worker count: all CPUs but two, at
// least one.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-2)
}

func newOptions(write bool, opts []Option) *options {
	o := &options{
		format:      FormatAuto,
		registry:    DefaultRegistry,
		policy:      MustParseReadPolicy(DefaultReadPolicy),
		strict:      true,
		parallel:    ParallelAuto,
		workers:     DefaultWorkers(),
		threshold:   DefaultParallelThreshold,
		serialized:  true,
		raw:         true,
		mode:        ModeAppend,
		compression: DefaultCompression,
		annotations: NoAnnotations(),
		logger:      NoopLogger(),
		metrics:     NoopMetricsCollector{},
	}
	if write {
		o.format = FormatLatest
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithFormat selects the archive format: "auto", "latest" or a format
// spec such as "hnf_v1". Reads default to "auto", writes to "latest".
func WithFormat(spec string) Option {
	return func(o *options) {
		o.format = spec
	}
}

// WithRegistry resolves formats through r instead of DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithRepresentations sets the read policy.
func WithRepresentations(p ReadPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithSubset limits a read to the given ids. Ids are normalized with
// NormalizeID; ids missing from the archive are dropped.
func WithSubset(ids ...any) Option {
	return func(o *options) {
		o.subset = append(o.subset, ids...)
	}
}

// WithStrict restricts raw decoding to the required columns and
// attributes. Loose decoding attaches everything stored.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithPreferRaw decodes raw data even when a serialized blob is present.
func WithPreferRaw(prefer bool) Option {
	return func(o *options) {
		o.preferRaw = prefer
	}
}

// WithOnError sets how per-neuron read failures are handled.
func WithOnError(mode ErrorMode) Option {
	return func(o *options) {
		o.onError = mode
	}
}

// WithParallel selects sequential or parallel reads.
func WithParallel(mode ParallelMode) Option {
	return func(o *options) {
		o.parallel = mode
	}
}

// WithWorkers sets the parallel worker count. Values below one select
// DefaultWorkers.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = DefaultWorkers()
		}
		o.workers = n
	}
}

// WithParallelThreshold sets how many ids a read needs before
// ParallelAuto dispatches to workers.
func WithParallelThreshold(n int) Option {
	return func(o *options) {
		o.threshold = n
	}
}

// HeaderCache shares parsed container headers between read handles.
type HeaderCache = store.HeaderCache

// NewHeaderCache creates a cache of at most size headers; size <= 0
// selects the default.
func NewHeaderCache(size int) (*HeaderCache, error) {
	return store.NewHeaderCache(size)
}

// WithHeaderCache shares parsed container headers across reads. Read
// creates one per call when none is given.
func WithHeaderCache(c *HeaderCache) Option {
	return func(o *options) {
		o.headerCache = c
	}
}

// WithAnnotations selects the annotations to read or write.
func WithAnnotations(sel AnnotationSelector) Option {
	return func(o *options) {
		o.annotations = sel
	}
}

// WithSerialized toggles the serialized blob on write.
func WithSerialized(on bool) Option {
	return func(o *options) {
		o.serialized = on
	}
}

// WithRaw toggles the raw columnar layout on write.
func WithRaw(on bool) Option {
	return func(o *options) {
		o.raw = on
	}
}

// WithMode selects append or overwrite for an existing archive.
func WithMode(mode WriteMode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithOverwriteNeurons replaces existing blocks instead of failing with
// BlockExistsError.
func WithOverwriteNeurons(overwrite bool) Option {
	return func(o *options) {
		o.overwrite = overwrite
	}
}

// WithCompression sets the filters for raw datasets.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
