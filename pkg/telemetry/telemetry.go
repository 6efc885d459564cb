// Package telemetry wraps knowledge stores with OpenTelemetry spans, metrics
// and structured logs.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kstore "github.com/goliatone/go-kstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName is the tracer and meter name used by this package.
const InstrumentationName = "github.com/goliatone/go-kstore"

// Span names.
const (
	SpanGetSnapshot = "kstore.get_snapshot"
	SpanMutate      = "kstore.mutate"
)

// Outcome labels recorded on metrics.
const (
	OutcomeOK            = "ok"
	OutcomeNoChange      = "no_change"
	OutcomeStaleBase     = "stale_base"
	OutcomeSharedDataset = "shared_dataset"
	OutcomeError         = "error"
)

type config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	logger         *slog.Logger
	store          string
	tracing        bool
	metrics        bool
}

// Option configures instrumentation.
type Option func(*config)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *config) {
		if provider != nil {
			cfg.tracerProvider = provider
		}
	}
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *config) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// WithLogger sets the logger for operation records.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithStoreName labels spans, metrics and logs with name.
func WithStoreName(name string) Option {
	return func(cfg *config) {
		cfg.store = name
	}
}

// WithTracing toggles span creation. Disabled tracing yields noop spans.
func WithTracing(enabled bool) Option {
	return func(cfg *config) {
		cfg.tracing = enabled
	}
}

// WithMetrics toggles metric recording.
func WithMetrics(enabled bool) Option {
	return func(cfg *config) {
		cfg.metrics = enabled
	}
}

func newConfig(opts []Option) config {
	cfg := config{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		logger:         slog.Default(),
		store:          "default",
		tracing:        true,
		metrics:        true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

type observer struct {
	cfg         config
	tracer      trace.Tracer
	instruments *instruments
}

func newObserver(opts []Option) *observer {
	cfg := newConfig(opts)
	return &observer{
		cfg:         cfg,
		tracer:      cfg.tracerProvider.Tracer(InstrumentationName),
		instruments: newInstruments(cfg.meterProvider.Meter(InstrumentationName), cfg.logger),
	}
}

func (o *observer) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if !o.cfg.tracing {
		return ctx, noop.Span{}
	}
	attrs = append(attrs, attribute.String("kstore.store", o.cfg.store))
	return o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (o *observer) getSnapshot(ctx context.Context, reader kstore.SnapshotReader) (kstore.Snapshot, error) {
	ctx, span := o.start(ctx, SpanGetSnapshot)
	defer span.End()

	start := time.Now()
	snapshot, err := reader.GetSnapshot(ctx)
	outcome := outcomeOf(err)
	o.record(ctx, "get_snapshot", outcome, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.cfg.logger.WarnContext(ctx, "knowledge store read failed",
			slog.String("store", o.cfg.store),
			slog.String("error", err.Error()),
		)
		return snapshot, err
	}
	span.SetAttributes(
		attribute.Int("kstore.datasets", len(snapshot.Datasets)),
		attribute.Int("kstore.channels", len(snapshot.Channels)),
	)
	span.SetStatus(codes.Ok, "")
	return snapshot, nil
}

func (o *observer) record(ctx context.Context, operation, outcome string, elapsed time.Duration) {
	if !o.cfg.metrics || !o.instruments.ready() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("store", o.cfg.store),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	o.instruments.operations.Add(ctx, 1, attrs)
	o.instruments.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, kstore.ErrStaleBase):
		return OutcomeStaleBase
	case errors.Is(err, kstore.ErrSharedDatasetMutation):
		return OutcomeSharedDataset
	default:
		return OutcomeError
	}
}
