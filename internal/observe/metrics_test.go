package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestFrameDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FrameDuration.Record(ctx, 0.0012)
	m.FrameDuration.Record(ctx, 0.0034)

	rm := collect(t, reader)
	met := findMetric(rm, "lvdecode.frame.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestRecordGC(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordGC(ctx, 0.002, 128)
	m.RecordGC(ctx, 0.003, 64)

	rm := collect(t, reader)

	gcDur := findMetric(rm, "lvdecode.gc.duration")
	if gcDur == nil {
		t.Fatal("lvdecode.gc.duration not found")
	}
	hist, ok := gcDur.Data.(metricdata.Histogram[float64])
	if !ok || hist.DataPoints[0].Count != 2 {
		t.Error("expected 2 GC duration samples")
	}

	cycles := findMetric(rm, "lvdecode.gc.cycles")
	if cycles == nil {
		t.Fatal("lvdecode.gc.cycles not found")
	}
	cyclesSum, ok := cycles.Data.(metricdata.Sum[int64])
	if !ok || cyclesSum.DataPoints[0].Value != 2 {
		t.Errorf("expected 2 GC cycles, got %+v", cyclesSum)
	}

	reclaimed := findMetric(rm, "lvdecode.gc.reclaimed")
	if reclaimed == nil {
		t.Fatal("lvdecode.gc.reclaimed not found")
	}
	reclaimedSum, ok := reclaimed.Data.(metricdata.Sum[int64])
	if !ok || reclaimedSum.DataPoints[0].Value != 192 {
		t.Errorf("expected 192 reclaimed slots, got %+v", reclaimedSum)
	}
}

func TestLiveModelInstancesHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.LiveModelInstances.Record(ctx, 4000)
	m.LiveModelInstances.Record(ctx, 5000)

	rm := collect(t, reader)
	met := findMetric(rm, "lvdecode.pruning.live_model_instances")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[int64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestLatticeAndConfNetHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.LatticeArcs.Record(ctx, 42)
	m.ConfNetClusters.Record(ctx, 7)

	rm := collect(t, reader)

	arcs := findMetric(rm, "lvdecode.lattice.arcs")
	if arcs == nil {
		t.Fatal("lvdecode.lattice.arcs not found")
	}
	clusters := findMetric(rm, "lvdecode.confnet.clusters")
	if clusters == nil {
		t.Fatal("lvdecode.confnet.clusters not found")
	}
}

func TestRecordDecodeError(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDecodeError(ctx, "no_surviving_token")

	rm := collect(t, reader)
	met := findMetric(rm, "lvdecode.decode.errors")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "category" && kv.Value.AsString() == "no_surviving_token" {
				if dp.Value != 1 {
					t.Errorf("counter value = %d, want 1", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with category=no_surviving_token not found")
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "lvdecode.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
