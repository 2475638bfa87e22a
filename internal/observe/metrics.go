// Package observe provides application-wide observability primitives for
// meetnav: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via /metrics. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all meetnav metrics.
const meterName = "github.com/MrWong99/meetnav"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Capture ---

	// CapturePolls counts capture poll iterations. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	CapturePolls metric.Int64Counter

	// CaptureEntries counts entries that changed the transcript store.
	CaptureEntries metric.Int64Counter

	// PollDuration tracks the latency of a single steady-state poll.
	PollDuration metric.Float64Histogram

	// BackfillDuration tracks the duration of the history backfill pass.
	BackfillDuration metric.Float64Histogram

	// PersistErrors counts failed transcript writes. Use with attribute:
	//   attribute.String("target", "file"|"mirror")
	PersistErrors metric.Int64Counter

	// --- LLM ---

	// LLMDuration tracks LLM call latency. Use with attribute:
	//   attribute.String("action", ...)
	LLMDuration metric.Float64Histogram

	// LLMRequests counts LLM calls. Use with attributes:
	//   attribute.String("action", ...), attribute.String("status", ...)
	LLMRequests metric.Int64Counter

	// --- Gauges ---

	// FeedSubscribers tracks the number of connected live-feed websocket
	// clients.
	FeedSubscribers metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks API request latency, labelled with method,
	// matched route pattern and status code by [Middleware].
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for UI
// automation polls and LLM calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// backfillBuckets covers backfill passes, which page through the whole
// caption history with pauses between key presses.
var backfillBuckets = []float64{
	1, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.CapturePolls, err = m.Int64Counter("meetnav.capture.polls",
		metric.WithDescription("Total capture polls by status."),
	); err != nil {
		return nil, err
	}
	if met.CaptureEntries, err = m.Int64Counter("meetnav.capture.entries",
		metric.WithDescription("Total transcript entries added or revised."),
	); err != nil {
		return nil, err
	}
	if met.PersistErrors, err = m.Int64Counter("meetnav.persist.errors",
		metric.WithDescription("Total failed transcript writes by target."),
	); err != nil {
		return nil, err
	}
	if met.LLMRequests, err = m.Int64Counter("meetnav.llm.requests",
		metric.WithDescription("Total LLM requests by action and status."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.PollDuration, err = m.Float64Histogram("meetnav.capture.poll.duration",
		metric.WithDescription("Latency of a steady-state capture poll."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BackfillDuration, err = m.Float64Histogram("meetnav.capture.backfill.duration",
		metric.WithDescription("Duration of the caption history backfill."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(backfillBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("meetnav.llm.duration",
		metric.WithDescription("Latency of LLM calls by action."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.FeedSubscribers, err = m.Int64UpDownCounter("meetnav.feed.subscribers",
		metric.WithDescription("Number of connected live transcript feed clients."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("meetnav.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
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

// Status returns "error" if err is non-nil and "ok" otherwise.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordPoll records one capture poll: its status, its latency and the
// number of entries it added.
func (m *Metrics) RecordPoll(ctx context.Context, d time.Duration, added int, err error) {
	m.CapturePolls.Add(ctx, 1, metric.WithAttributes(attribute.String("status", Status(err))))
	m.PollDuration.Record(ctx, d.Seconds())
	if added > 0 {
		m.CaptureEntries.Add(ctx, int64(added))
	}
}

// RecordPersistError records a failed transcript write to target.
func (m *Metrics) RecordPersistError(ctx context.Context, target string) {
	m.PersistErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
}

// RecordLLMRequest records an LLM call for action with its latency.
func (m *Metrics) RecordLLMRequest(ctx context.Context, action string, d time.Duration, err error) {
	m.LLMDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("action", action)))
	m.LLMRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("status", Status(err)),
		),
	)
}
