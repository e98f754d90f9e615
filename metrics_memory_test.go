package mqttflow

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMetrics(t *testing.T) {
	t.Run("counter operations", func(t *testing.T) {
		metrics := NewMemoryMetrics()
		counter := metrics.Counter("test_counter", nil)

		counter.Inc()
		assert.Equal(t, float64(1), counter.Value())

		counter.Add(5.5)
		assert.Equal(t, float64(6.5), counter.Value())
	})

	t.Run("gauge operations", func(t *testing.T) {
		metrics := NewMemoryMetrics()
		gauge := metrics.Gauge("test_gauge", nil)

		gauge.Set(100)
		gauge.Inc()
		assert.Equal(t, float64(101), gauge.Value())

		gauge.Dec()
		gauge.Add(50)
		gauge.Sub(30)
		assert.Equal(t, float64(120), gauge.Value())
	})

	t.Run("histogram operations", func(t *testing.T) {
		metrics := NewMemoryMetrics()
		histogram := metrics.Histogram("test_histogram", nil)

		histogram.Observe(1.5)
		histogram.Observe(2.5)
		histogram.ObserveDuration(3 * time.Second)

		assert.Equal(t, uint64(3), histogram.Count())
		assert.Equal(t, float64(7.0), histogram.Sum())
	})

	t.Run("same name and labels return same metric", func(t *testing.T) {
		metrics := NewMemoryMetrics()

		a := metrics.Counter("c", MetricLabels{"x": "1", "y": "2"})
		b := metrics.Counter("c", MetricLabels{"y": "2", "x": "1"})
		other := metrics.Counter("c", MetricLabels{"x": "2"})

		assert.Same(t, a, b)
		assert.NotSame(t, a, other)
	})

	t.Run("get returns nil when missing", func(t *testing.T) {
		metrics := NewMemoryMetrics()

		assert.Nil(t, metrics.GetCounter("missing", nil))
		assert.Nil(t, metrics.GetGauge("missing", nil))
		assert.Nil(t, metrics.GetHistogram("missing", nil))

		metrics.Histogram("present", nil).Observe(1)
		h := metrics.GetHistogram("present", nil)
		require.NotNil(t, h)
		assert.Equal(t, uint64(1), h.Count())
	})
}

func TestMemoryMetricsConcurrency(t *testing.T) {
	metrics := NewMemoryMetrics()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			metrics.Counter("concurrent", nil).Inc()
		}()
		go func() {
			defer wg.Done()
			metrics.Gauge("concurrent", nil).Inc()
		}()
		go func() {
			defer wg.Done()
			metrics.Histogram("concurrent", nil).Observe(1.0)
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(100), metrics.GetCounter("concurrent", nil).Value())
	assert.Equal(t, float64(100), metrics.GetGauge("concurrent", nil).Value())
	assert.Equal(t, uint64(100), metrics.GetHistogram("concurrent", nil).Count())
}

func TestMemoryMetricsSnapshot(t *testing.T) {
	metrics := NewMemoryMetrics()
	assert.Empty(t, metrics.Snapshot())

	metrics.Counter(MetricMessagesSent, MetricLabels{LabelQoS: "1"}).Add(3)
	metrics.Gauge(MetricConnections, nil).Set(1)
	metrics.Histogram(MetricFlowDuration, nil).Observe(0.5)

	assert.Equal(t, map[string]float64{
		MetricMessagesSent + "|qos=1": 3,
		MetricConnections:             1,
		MetricFlowDuration + "|count": 1,
		MetricFlowDuration + "|sum":   0.5,
	}, metrics.Snapshot())
}

func TestLabelsKey(t *testing.T) {
	assert.Equal(t, "test", labelsKey("test", nil))
	assert.Equal(t, "test", labelsKey("test", MetricLabels{}))
	assert.Equal(t, "test|a=1|b=2", labelsKey("test", MetricLabels{"b": "2", "a": "1"}))
}

func BenchmarkMemoryCounter(b *testing.B) {
	counter := NewMemoryMetrics().Counter("bench", nil)

	b.ReportAllocs()
	for b.Loop() {
		counter.Inc()
	}
}

func BenchmarkMemoryCounterConcurrent(b *testing.B) {
	counter := NewMemoryMetrics().Counter("bench", nil)

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			counter.Inc()
		}
	})
}

func BenchmarkMemoryHistogram(b *testing.B) {
	histogram := NewMemoryMetrics().Histogram("bench", nil)

	b.ReportAllocs()
	for b.Loop() {
		histogram.Observe(1.5)
	}
}
