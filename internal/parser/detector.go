package parser

import (
	"callsieve/internal/catalog"
	"callsieve/internal/grammar"
	"callsieve/internal/logging"
)

// Detector recognises one wire format of tool calls in model output.
//
// A Detector carries the state of a single generation stream and is not safe
// for concurrent use. Create one per stream.
type Detector interface {
	// Format returns the registered format name.
	Format() string
	// HasToolCall reports whether text contains the opening delimiter.
	HasToolCall(text string) bool
	// DetectAndParse extracts every complete call from a finished text.
	DetectAndParse(text string, tools *catalog.Catalog) ExtractionResult
	// ParseStreamingIncrement consumes the next fragment of a stream and
	// returns what could be resolved so far.
	ParseStreamingIncrement(fragment string, tools *catalog.Catalog) ExtractionResult
	// Flush resolves whatever is still buffered at the end of a stream.
	Flush(tools *catalog.Catalog) ExtractionResult
	StructureInfo() StructureInfoFunc
	BuildEBNF(tools *catalog.Catalog) (string, error)
	Snapshot() DetectorState
	Restore(state DetectorState)
	Reset()
}

// Metrics receives parser events. Implementations must be safe for
// concurrent use since detectors for different streams share one sink.
type Metrics interface {
	ObserveStep(format string, bufferedBytes int)
	ObserveCall(format string, streamed bool)
	ObserveDegraded(format string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveStep(string, int)  {}
func (nopMetrics) ObserveCall(string, bool) {}
func (nopMetrics) ObserveDegraded(string)   {}

// GrammarComposer renders a constraint grammar for a tool list.
type GrammarComposer interface {
	Build(tools []catalog.Tool, req grammar.Request) (string, error)
}

type options struct {
	logger     logging.Logger
	metrics    Metrics
	composer   GrammarComposer
	onDegraded func(error)
}

// Option configures a detector.
type Option func(*options)

// WithLogger sets the logger for degraded steps and diagnostics.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithComposer overrides the grammar composer used by BuildEBNF.
func WithComposer(composer GrammarComposer) Option {
	return func(o *options) {
		o.composer = composer
	}
}

// WithDegradeHandler is called with a *errors.DegradedError every time a
// streaming step falls back to returning its buffer as text.
func WithDegradeHandler(fn func(error)) Option {
	return func(o *options) {
		o.onDegraded = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.logger = logging.OrNop(o.logger)
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	if o.composer == nil {
		o.composer = grammar.Default()
	}
	if o.onDegraded == nil {
		o.onDegraded = func(error) {}
	}
	return o
}
