package telemetry

import (
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// instruments are created on first use so a failing meter only disables
// metrics.
type instruments struct {
	meter  metric.Meter
	logger *slog.Logger

	once sync.Once
	err  error

	operations metric.Int64Counter
	duration   metric.Float64Histogram
	changes    metric.Int64Histogram
}

func newInstruments(meter metric.Meter, logger *slog.Logger) *instruments {
	return &instruments{meter: meter, logger: logger}
}

func (i *instruments) ready() bool {
	i.once.Do(func() {
		i.err = i.init()
		if i.err != nil {
			i.logger.Warn("knowledge store metrics disabled", slog.String("error", i.err.Error()))
		}
	})
	return i.err == nil
}

func (i *instruments) init() error {
	var err error

	i.operations, err = i.meter.Int64Counter(
		"kstore_operations_total",
		metric.WithDescription("Total number of knowledge store operations"),
	)
	if err != nil {
		return err
	}

	i.duration, err = i.meter.Float64Histogram(
		"kstore_operation_duration_seconds",
		metric.WithDescription("Duration of knowledge store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	i.changes, err = i.meter.Int64Histogram(
		"kstore_mutation_changes",
		metric.WithDescription("Number of entries touched per accepted mutation"),
	)
	return err
}
