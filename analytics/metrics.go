package analytics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// recorder lazily creates and caches OpenTelemetry instruments by name,
// the same pattern the teacher's MetricInstruments uses: the first
// caller for a metric name pays instrument-creation cost, every
// subsequent call reuses it.
type recorder struct {
	meter      metric.Meter
	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

func newRecorder(meterName string) *recorder {
	return &recorder{
		meter:      otel.Meter(meterName),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (r *recorder) counter(name string) metric.Int64Counter {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; ok {
		return c
	}
	c, _ = r.meter.Int64Counter(name)
	r.counters[name] = c
	return c
}

func (r *recorder) histogram(name string) metric.Float64Histogram {
	r.mu.RLock()
	h, ok := r.histograms[name]
	r.mu.RUnlock()
	if ok {
		return h
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok = r.histograms[name]; ok {
		return h
	}
	h, _ = r.meter.Float64Histogram(name)
	r.histograms[name] = h
	return h
}

func (r *recorder) incr(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	r.counter(name).Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (r *recorder) observe(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	r.histogram(name).Record(ctx, value, metric.WithAttributes(attrs...))
}

func statusAttr(success bool) attribute.KeyValue {
	if success {
		return attribute.String("status", "success")
	}
	return attribute.String("status", "error")
}
