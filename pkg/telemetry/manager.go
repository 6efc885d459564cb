package telemetry

import (
	"context"
	"log/slog"
	"time"

	kstore "github.com/goliatone/go-kstore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Manager is an instrumented ContextStoreManager.
type Manager struct {
	next kstore.ContextStoreManager
	obs  *observer
}

var _ kstore.ContextStoreManager = (*Manager)(nil)

// Instrument wraps next so every call produces a span, metrics and a log
// record.
func Instrument(next kstore.ContextStoreManager, opts ...Option) *Manager {
	return &Manager{next: next, obs: newObserver(opts)}
}

func (m *Manager) GetSnapshot(ctx context.Context) (kstore.Snapshot, error) {
	return m.obs.getSnapshot(ctx, m.next)
}

// Mutate records the diff size on the span. A diff that cannot be computed
// is left for the wrapped store to report.
func (m *Manager) Mutate(ctx context.Context, title, description string, automerge bool, before, after kstore.Snapshot) (kstore.ReviewURL, error) {
	ctx, span := m.obs.start(ctx, SpanMutate,
		attribute.String("kstore.title", title),
		attribute.Bool("kstore.automerge", automerge),
	)
	defer span.End()

	var stats kstore.Stats
	if diff, err := kstore.ComputeDiff(before, after); err == nil {
		stats = diff.Stats()
		span.SetAttributes(
			attribute.Int("kstore.changes", stats.Total()),
			attribute.Int("kstore.datasets_added", stats.DatasetsAdded),
			attribute.Int("kstore.datasets_removed", stats.DatasetsRemoved),
			attribute.Int("kstore.datasets_modified", stats.DatasetsModified),
		)
	}

	start := time.Now()
	url, err := m.next.Mutate(ctx, title, description, automerge, before, after)
	elapsed := time.Since(start)

	outcome := outcomeOf(err)
	if err == nil && url == "" {
		outcome = OutcomeNoChange
	}
	m.obs.record(ctx, "mutate", outcome, elapsed)

	logger := m.obs.cfg.logger
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "knowledge store mutation failed",
			slog.String("store", m.obs.cfg.store),
			slog.String("title", title),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		return url, err
	}

	span.SetAttributes(attribute.String("kstore.review_url", string(url)))
	span.SetStatus(codes.Ok, "")
	if outcome == OutcomeOK && m.obs.cfg.metrics && m.obs.instruments.ready() {
		m.obs.instruments.changes.Record(ctx, int64(stats.Total()),
			metric.WithAttributes(attribute.String("store", m.obs.cfg.store)))
	}
	logger.DebugContext(ctx, "knowledge store mutation completed",
		slog.String("store", m.obs.cfg.store),
		slog.String("title", title),
		slog.String("outcome", outcome),
		slog.Int("changes", stats.Total()),
		slog.Duration("duration", elapsed),
	)
	return url, nil
}

// Reader is an instrumented SnapshotReader for shared stores.
type Reader struct {
	next kstore.SnapshotReader
	obs  *observer
}

var _ kstore.SnapshotReader = (*Reader)(nil)

// InstrumentReader wraps a read-only store.
func InstrumentReader(next kstore.SnapshotReader, opts ...Option) *Reader {
	return &Reader{next: next, obs: newObserver(opts)}
}

func (r *Reader) GetSnapshot(ctx context.Context) (kstore.Snapshot, error) {
	return r.obs.getSnapshot(ctx, r.next)
}
