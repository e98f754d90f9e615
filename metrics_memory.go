package mqttflow

import (
	"maps"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryMetrics keeps engine metrics in process memory. It is meant for
// tests and for inspecting a running engine without a metrics backend.
type MemoryMetrics struct {
	counters   metricSet[memoryCounter]
	gauges     metricSet[memoryGauge]
	histograms metricSet[memoryHistogram]
}

// NewMemoryMetrics creates an empty in-memory metrics registry.
func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{}
}

// metricSet maps a name and label set to one metric instance.
type metricSet[T any] struct {
	mu    sync.RWMutex
	items map[string]*T
}

func (s *metricSet[T]) get(key string) *T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[key]
}

func (s *metricSet[T]) getOrCreate(key string) *T {
	if v := s.get(key); v != nil {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.items[key]; ok {
		return v
	}
	if s.items == nil {
		s.items = make(map[string]*T)
	}
	v := new(T)
	s.items[key] = v
	return v
}

func (s *metricSet[T]) each(fn func(key string, v *T)) {
	s.mu.RLock()
	items := maps.Clone(s.items)
	s.mu.RUnlock()

	for k, v := range items {
		fn(k, v)
	}
}

// labelsKey renders name and labels as "name|k1=v1|k2=v2" with sorted keys.
func labelsKey(name string, labels MetricLabels) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString("|" + k + "=" + labels[k])
	}

	return b.String()
}

// Counter returns the counter for name and labels, creating it on first use.
func (m *MemoryMetrics) Counter(name string, labels MetricLabels) Counter {
	return m.counters.getOrCreate(labelsKey(name, labels))
}

// Gauge returns the gauge for name and labels, creating it on first use.
func (m *MemoryMetrics) Gauge(name string, labels MetricLabels) Gauge {
	return m.gauges.getOrCreate(labelsKey(name, labels))
}

// Histogram returns the histogram for name and labels, creating it on first use.
func (m *MemoryMetrics) Histogram(name string, labels MetricLabels) Histogram {
	return m.histograms.getOrCreate(labelsKey(name, labels))
}

// GetCounter returns an existing counter or nil.
func (m *MemoryMetrics) GetCounter(name string, labels MetricLabels) Counter {
	if c := m.counters.get(labelsKey(name, labels)); c != nil {
		return c
	}
	return nil
}

// GetGauge returns an existing gauge or nil.
func (m *MemoryMetrics) GetGauge(name string, labels MetricLabels) Gauge {
	if g := m.gauges.get(labelsKey(name, labels)); g != nil {
		return g
	}
	return nil
}

// GetHistogram returns an existing histogram or nil.
func (m *MemoryMetrics) GetHistogram(name string, labels MetricLabels) Histogram {
	if h := m.histograms.get(labelsKey(name, labels)); h != nil {
		return h
	}
	return nil
}

// Snapshot returns the current value of every counter and gauge, keyed the
// way labelsKey renders them. Histograms contribute "<key>|count" and
// "<key>|sum" entries.
func (m *MemoryMetrics) Snapshot() map[string]float64 {
	out := make(map[string]float64)

	m.counters.each(func(k string, c *memoryCounter) { out[k] = c.Value() })
	m.gauges.each(func(k string, g *memoryGauge) { out[k] = g.Value() })
	m.histograms.each(func(k string, h *memoryHistogram) {
		out[k+"|count"] = float64(h.Count())
		out[k+"|sum"] = h.Sum()
	})

	return out
}

// atomicFloat is a float64 updated with compare-and-swap on its bits.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) load() float64 { return math.Float64frombits(f.bits.Load()) }

func (f *atomicFloat) store(v float64) { f.bits.Store(math.Float64bits(v)) }

func (f *atomicFloat) add(delta float64) {
	for {
		old := f.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if f.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

type memoryCounter struct{ v atomicFloat }

func (c *memoryCounter) Inc()              { c.v.add(1) }
func (c *memoryCounter) Add(delta float64) { c.v.add(delta) }
func (c *memoryCounter) Value() float64    { return c.v.load() }

type memoryGauge struct{ v atomicFloat }

func (g *memoryGauge) Set(value float64) { g.v.store(value) }
func (g *memoryGauge) Inc()              { g.v.add(1) }
func (g *memoryGauge) Dec()              { g.v.add(-1) }
func (g *memoryGauge) Add(delta float64) { g.v.add(delta) }
func (g *memoryGauge) Sub(delta float64) { g.v.add(-delta) }
func (g *memoryGauge) Value() float64    { return g.v.load() }

type memoryHistogram struct {
	count atomic.Uint64
	sum   atomicFloat
}

func (h *memoryHistogram) Observe(value float64) {
	h.count.Add(1)
	h.sum.add(value)
}

func (h *memoryHistogram) ObserveDuration(d time.Duration) { h.Observe(d.Seconds()) }
func (h *memoryHistogram) Count() uint64                   { return h.count.Load() }
func (h *memoryHistogram) Sum() float64                    { return h.sum.load() }
