package core

import (
	"context"
	"log/slog"
	"time"

	"boardcore/internal/columns"
	"boardcore/internal/order"
	"boardcore/internal/references"
	"boardcore/pkg/domain"
)

// Logger is the structured logging sink used by the store and service.
// Arguments after msg are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewSlogLogger adapts a *slog.Logger. A nil logger uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return l
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns the function result, or the current UTC time when f is nil.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f()
}

// MetricsRecorder observes the outcome and latency of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is finished with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type options struct {
	clock      Clock
	logger     Logger
	metrics    MetricsRecorder
	tracer     Tracer
	columns    domain.ColumnResolver
	references domain.ReferenceExtractor
	constants  order.Constants
	seed       int64
	snapshots  domain.SnapshotStore
	archiver   *Archiver
}

// Option configures a Store or Service.
type Option func(*options)

func defaultOptions() options {
	cols, err := columns.New(columns.DefaultConfig)
	if err != nil {
		panic(err)
	}
	return options{
		clock:      ClockFunc(nil),
		logger:     noopLogger{},
		metrics:    noopMetrics{},
		tracer:     noopTracer{},
		columns:    cols,
		references: references.Extractor{},
		constants:  order.DefaultConstants,
		seed:       defaultLogSeed,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithClock overrides the time source used for updated_at defaults and
// operation timings.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the recorder observing service operations.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *options) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer wrapping service operations.
func WithTracer(tracer Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithColumns sets the column resolver.
func WithColumns(resolver domain.ColumnResolver) Option {
	return func(o *options) {
		if resolver != nil {
			o.columns = resolver
		}
	}
}

// WithReferenceExtractor sets the link reference extractor.
func WithReferenceExtractor(extractor domain.ReferenceExtractor) Option {
	return func(o *options) {
		if extractor != nil {
			o.references = extractor
		}
	}
}

// WithOrderConstants overrides the order engine constants. Zero fields keep
// their defaults.
func WithOrderConstants(c order.Constants) Option {
	return func(o *options) { o.constants = c }
}

// WithLogSeed sets the first change-feed id.
func WithLogSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithSnapshotStore makes the service persist snapshot buckets after every
// mutation and load them in Load.
func WithSnapshotStore(store domain.SnapshotStore) Option {
	return func(o *options) { o.snapshots = store }
}

// WithArchiver enables compressed snapshot archives in Checkpoint.
func WithArchiver(a *Archiver) Option {
	return func(o *options) { o.archiver = a }
}
