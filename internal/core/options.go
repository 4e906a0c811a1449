package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agromix/pkg/domain"
)

// Logger is the structured logging surface used by the service. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// Clock supplies timestamps for saved records.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder observes facade operation outcomes and local fallbacks.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	RecordFallback(ctx context.Context, entity domain.EntityKind, operation string, kind ErrorKind)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
func (noopMetrics) RecordFallback(context.Context, domain.EntityKind, string, ErrorKind) {
}

// Tracer starts spans around facade operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	remote   domain.RemoteStore
	logger   Logger
	clock    Clock
	metrics  MetricsRecorder
	tracer   Tracer
	notifier *Notifier
	newID    func() string
	catalog  []domain.CatalogEntry
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:  NopLogger{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		newID:   uuid.NewString,
		catalog: BuiltinCatalog(),
	}
}

// WithRemoteStore configures the backend of record. Without it every
// operation goes straight to the local store.
func WithRemoteStore(remote domain.RemoteStore) Option {
	return func(o *serviceOptions) { o.remote = remote }
}

// WithLogger overrides the logger.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp records.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetricsRecorder installs a metrics recorder.
func WithMetricsRecorder(metrics MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithNotifier shares a change notifier with other components.
func WithNotifier(n *Notifier) Option {
	return func(o *serviceOptions) { o.notifier = n }
}

// WithIDGenerator overrides how local record ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(o *serviceOptions) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithCatalog replaces the built-in product catalog.
func WithCatalog(entries []domain.CatalogEntry) Option {
	return func(o *serviceOptions) { o.catalog = entries }
}
