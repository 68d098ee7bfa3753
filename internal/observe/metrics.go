// Package observe provides application-wide observability primitives for
// lvdecode: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all lvdecode metrics.
const meterName = "github.com/tanaris-labs/lvdecode"

// Metrics holds all OpenTelemetry metric instruments the decoder records
// against (SPEC_FULL.md DOMAIN STACK: per-frame decode latency, GC
// duration/reclaimed-object counts, pruning beam width, lattice arc count,
// confusion-network cluster count). All fields are safe for concurrent use —
// the underlying OTel types handle their own synchronisation.
type Metrics struct {
	// --- Per-frame decode latency ---

	// FrameDuration tracks the wall-clock time [internal/decoder.Propagator]
	// spends processing a single frame (internal pass + external pass).
	FrameDuration metric.Float64Histogram

	// --- Traceback GC (C8, internal/traceback) ---

	// GCDuration tracks traceback-GC mark-and-sweep cycle wall-clock time.
	GCDuration metric.Float64Histogram

	// GCReclaimed counts arena slots reclaimed by a GC cycle.
	GCReclaimed metric.Int64Counter

	// GCCycles counts completed GC cycles.
	GCCycles metric.Int64Counter

	// --- Pruning controller (C7, internal/prune) ---

	// BeamWidth reports the current curBeamWidth after histogram/dynamic
	// adjustment (spec §4.7 step 5), recorded as a histogram sample once
	// per frame.
	BeamWidth metric.Float64Histogram

	// LiveModelInstances tracks the number of live Model instances
	// surviving pruning each frame (spec §4.7 step 5 "maxModel").
	LiveModelInstances metric.Int64Histogram

	// --- Lattice / confusion network (C9, C10) ---

	// LatticeArcs tracks the arc count of a built [internal/lattice.Lattice]
	// per utterance.
	LatticeArcs metric.Int64Histogram

	// ConfNetClusters tracks the cluster count of a built
	// [internal/confnet.ConfNet] per utterance.
	ConfNetClusters metric.Int64Histogram

	// --- Errors ---

	// DecodeErrors counts structural decode errors by taxonomy category
	// (spec §7). Use with attribute.String("category", ...).
	DecodeErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time for the
	// metrics/health listener. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// frameLatencyBuckets defines histogram bucket boundaries (in seconds)
// appropriate for sub-millisecond-to-tens-of-millisecond per-frame decode
// latency, much tighter than a voice-pipeline-stage bucket set.
var frameLatencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// gcLatencyBuckets covers the coarser granularity of a GC sweep, which runs
// once every GCFreq frames rather than every frame.
var gcLatencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FrameDuration, err = m.Float64Histogram("lvdecode.frame.duration",
		metric.WithDescription("Per-frame decode latency (internal + external propagation pass)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameLatencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GCDuration, err = m.Float64Histogram("lvdecode.gc.duration",
		metric.WithDescription("Traceback GC mark-and-sweep cycle latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(gcLatencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GCReclaimed, err = m.Int64Counter("lvdecode.gc.reclaimed",
		metric.WithDescription("Total arena slots reclaimed by traceback GC cycles."),
	); err != nil {
		return nil, err
	}
	if met.GCCycles, err = m.Int64Counter("lvdecode.gc.cycles",
		metric.WithDescription("Total completed traceback GC cycles."),
	); err != nil {
		return nil, err
	}
	if met.BeamWidth, err = m.Float64Histogram("lvdecode.pruning.beam_width",
		metric.WithDescription("Current curBeamWidth after histogram/dynamic pruning adjustment."),
	); err != nil {
		return nil, err
	}
	if met.LiveModelInstances, err = m.Int64Histogram("lvdecode.pruning.live_model_instances",
		metric.WithDescription("Number of live Model instances surviving pruning per frame."),
	); err != nil {
		return nil, err
	}
	if met.LatticeArcs, err = m.Int64Histogram("lvdecode.lattice.arcs",
		metric.WithDescription("Arc count of a built lattice, per utterance."),
	); err != nil {
		return nil, err
	}
	if met.ConfNetClusters, err = m.Int64Histogram("lvdecode.confnet.clusters",
		metric.WithDescription("Cluster count of a built confusion network, per utterance."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("lvdecode.decode.errors",
		metric.WithDescription("Total structural decode errors by taxonomy category."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("lvdecode.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordGC is a convenience method that records one GC cycle's duration and
// reclaimed-slot count with a single call (spec §4.8, C8).
func (m *Metrics) RecordGC(ctx context.Context, durationSeconds float64, reclaimed int64) {
	m.GCDuration.Record(ctx, durationSeconds)
	m.GCCycles.Add(ctx, 1)
	m.GCReclaimed.Add(ctx, reclaimed)
}

// RecordDecodeError is a convenience method that records a structural
// decode error counter increment with the standard attribute set (spec §7's
// error taxonomy category, e.g. "no_surviving_token", "vector_size_mismatch").
func (m *Metrics) RecordDecodeError(ctx context.Context, category string) {
	m.DecodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}
