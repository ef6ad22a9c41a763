package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/polisai/layersync/pkg/association"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "layersync.association"

var (
	metricsOnce              sync.Once
	metricsInitErr           error
	entriesCreatedCounter    metric.Int64Counter
	entriesDestroyedCounter  metric.Int64Counter
	constructionFailCounter  metric.Int64Counter
	deferredCompletedCounter metric.Int64Counter
	selectionCounter         metric.Int64Counter
	resyncLatencyHistogram   metric.Float64Histogram
	entriesGauge             metric.Int64Gauge
)

// OTelRecorder records association activity with OpenTelemetry instruments
// obtained from the global meter provider.
type OTelRecorder struct{}

var _ association.Recorder = OTelRecorder{}

func cacheAttr(cache string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("association.cache", cache))
}

func (OTelRecorder) EntryCreated(ctx context.Context, cache string) {
	if ensureMetrics() != nil {
		return
	}
	entriesCreatedCounter.Add(ctx, 1, cacheAttr(cache))
}

func (OTelRecorder) EntryDestroyed(ctx context.Context, cache string) {
	if ensureMetrics() != nil {
		return
	}
	entriesDestroyedCounter.Add(ctx, 1, cacheAttr(cache))
}

func (OTelRecorder) ConstructionFailed(ctx context.Context, cache string) {
	if ensureMetrics() != nil {
		return
	}
	constructionFailCounter.Add(ctx, 1, cacheAttr(cache))
}

func (OTelRecorder) DeferredCompleted(ctx context.Context, cache string, ok bool) {
	if ensureMetrics() != nil {
		return
	}
	deferredCompletedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("association.cache", cache),
		attribute.String("association.result", result(ok)),
	))
}

func (OTelRecorder) ResyncCompleted(ctx context.Context, cache string, entries int, duration time.Duration) {
	if ensureMetrics() != nil {
		return
	}
	resyncLatencyHistogram.Record(ctx, float64(duration)/float64(time.Millisecond), cacheAttr(cache))
	entriesGauge.Record(ctx, int64(entries), cacheAttr(cache))
}

func (OTelRecorder) SelectionChanged(ctx context.Context, cache string, active bool) {
	if ensureMetrics() != nil {
		return
	}
	selectionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("association.cache", cache),
		attribute.String("association.selection", selectionState(active)),
	))
}

func result(ok bool) string {
	if ok {
		return "ready"
	}
	return "failed"
}

func selectionState(active bool) string {
	if active {
		return "selected"
	}
	return "cleared"
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(meterName)

		entriesCreatedCounter, metricsInitErr = meter.Int64Counter(
			"layersync.association.entries_created_total",
			metric.WithDescription("Auxiliary objects created by association caches"),
			metric.WithUnit("{entry}"),
		)
		if metricsInitErr != nil {
			return
		}

		entriesDestroyedCounter, metricsInitErr = meter.Int64Counter(
			"layersync.association.entries_destroyed_total",
			metric.WithDescription("Auxiliary objects disposed by association caches"),
			metric.WithUnit("{entry}"),
		)
		if metricsInitErr != nil {
			return
		}

		constructionFailCounter, metricsInitErr = meter.Int64Counter(
			"layersync.association.construction_failures_total",
			metric.WithDescription("Factory failures observed during resync"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		deferredCompletedCounter, metricsInitErr = meter.Int64Counter(
			"layersync.association.deferred_completions_total",
			metric.WithDescription("Deferred constructions completed, partitioned by result"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		selectionCounter, metricsInitErr = meter.Int64Counter(
			"layersync.association.selection_changes_total",
			metric.WithDescription("Active layer changes, partitioned by resulting state"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		resyncLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"layersync.association.resync_duration_ms",
			metric.WithDescription("Observed resync latency"),
			metric.WithUnit("ms"),
		)
		if metricsInitErr != nil {
			return
		}

		entriesGauge, metricsInitErr = meter.Int64Gauge(
			"layersync.association.entries",
			metric.WithDescription("Entries held after the last resync"),
			metric.WithUnit("{entry}"),
		)
	})

	return metricsInitErr
}
