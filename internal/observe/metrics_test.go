package observe

import (
	"context"
	"errors"
	"testing"
	"time"

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

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"meetnav.capture.poll.duration", m.PollDuration},
		{"meetnav.capture.backfill.duration", m.BackfillDuration},
		{"meetnav.llm.duration", m.LLMDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

// sumByAttr returns the value of the data point of counter name whose
// attribute key equals value.
func sumByAttr(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	t.Fatalf("metric %q: data point with %s=%s not found", name, key, value)
	return 0
}

func TestRecordPoll(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPoll(ctx, 20*time.Millisecond, 3, nil)
	m.RecordPoll(ctx, 30*time.Millisecond, 0, nil)
	m.RecordPoll(ctx, 10*time.Millisecond, 1, errors.New("boom"))

	rm := collect(t, reader)
	if got := sumByAttr(t, rm, "meetnav.capture.polls", "status", "ok"); got != 2 {
		t.Errorf("ok polls = %d, want 2", got)
	}
	if got := sumByAttr(t, rm, "meetnav.capture.polls", "status", "error"); got != 1 {
		t.Errorf("error polls = %d, want 1", got)
	}

	met := findMetric(rm, "meetnav.capture.entries")
	if met == nil {
		t.Fatal("entries metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 4 {
		t.Errorf("entries = %+v, want 4", sum.DataPoints)
	}

	hist := findMetric(rm, "meetnav.capture.poll.duration").Data.(metricdata.Histogram[float64])
	if hist.DataPoints[0].Count != 3 {
		t.Errorf("poll duration samples = %d, want 3", hist.DataPoints[0].Count)
	}
}

func TestRecordLLMRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLLMRequest(ctx, "summarize", time.Second, nil)
	m.RecordLLMRequest(ctx, "summarize", time.Second, nil)
	m.RecordLLMRequest(ctx, "navigate", time.Second, errors.New("rate limited"))

	rm := collect(t, reader)
	if got := sumByAttr(t, rm, "meetnav.llm.requests", "status", "error"); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}
	if got := sumByAttr(t, rm, "meetnav.llm.requests", "action", "summarize"); got != 2 {
		t.Errorf("summarize requests = %d, want 2", got)
	}
}

func TestRecordPersistError(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPersistError(ctx, "file")
	m.RecordPersistError(ctx, "mirror")
	m.RecordPersistError(ctx, "file")

	rm := collect(t, reader)
	if got := sumByAttr(t, rm, "meetnav.persist.errors", "target", "file"); got != 2 {
		t.Errorf("file errors = %d, want 2", got)
	}
}

func TestFeedSubscribersGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// UpDownCounters are additive: two connects and one disconnect.
	m.FeedSubscribers.Add(ctx, 1)
	m.FeedSubscribers.Add(ctx, 1)
	m.FeedSubscribers.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "meetnav.feed.subscribers")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Errorf("subscribers = %+v, want 1", sum.DataPoints)
	}
}

func TestStatus(t *testing.T) {
	if Status(nil) != "ok" {
		t.Error(`Status(nil) != "ok"`)
	}
	if Status(errors.New("x")) != "error" {
		t.Error(`Status(err) != "error"`)
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
