package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestOTelRecorder(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		ResetMetricsForTest()
	})

	ResetMetricsForTest()

	var rec OTelRecorder
	rec.EntryCreated(ctx, "textures")
	rec.EntryCreated(ctx, "textures")
	rec.EntryDestroyed(ctx, "textures")
	rec.ConstructionFailed(ctx, "textures")
	rec.DeferredCompleted(ctx, "textures", false)
	rec.SelectionChanged(ctx, "properties", true)
	rec.ResyncCompleted(ctx, "textures", 1, 150*time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	metrics := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			metrics[m.Name] = m
		}
	}

	created, ok := metrics["layersync.association.entries_created_total"]
	if !ok {
		t.Fatalf("missing entries_created metric")
	}
	createdData, ok := created.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type for entries_created metric")
	}
	if len(createdData.DataPoints) != 1 || createdData.DataPoints[0].Value != 2 {
		t.Fatalf("expected a single datapoint with value 2, got %+v", createdData.DataPoints)
	}
	if value, ok := createdData.DataPoints[0].Attributes.Value(attribute.Key("association.cache")); !ok || value.AsString() != "textures" {
		t.Fatalf("expected association.cache attribute to be textures, got %v", value)
	}

	deferred := metrics["layersync.association.deferred_completions_total"].Data.(metricdata.Sum[int64])
	if value, ok := deferred.DataPoints[0].Attributes.Value(attribute.Key("association.result")); !ok || value.AsString() != "failed" {
		t.Fatalf("expected association.result failed, got %v", value)
	}

	selection := metrics["layersync.association.selection_changes_total"].Data.(metricdata.Sum[int64])
	if value, ok := selection.DataPoints[0].Attributes.Value(attribute.Key("association.selection")); !ok || value.AsString() != "selected" {
		t.Fatalf("expected association.selection selected, got %v", value)
	}

	hist, ok := metrics["layersync.association.resync_duration_ms"]
	if !ok {
		t.Fatalf("missing resync_duration_ms metric")
	}
	histData := hist.Data.(metricdata.Histogram[float64])
	if histData.DataPoints[0].Count != 1 {
		t.Fatalf("expected histogram count 1, got %d", histData.DataPoints[0].Count)
	}
	if histData.DataPoints[0].Sum != 150 {
		t.Fatalf("expected histogram sum 150, got %v", histData.DataPoints[0].Sum)
	}

	gauge, ok := metrics["layersync.association.entries"]
	if !ok {
		t.Fatalf("missing entries gauge")
	}
	gaugeData := gauge.Data.(metricdata.Gauge[int64])
	if gaugeData.DataPoints[0].Value != 1 {
		t.Fatalf("expected entries gauge 1, got %d", gaugeData.DataPoints[0].Value)
	}
}
