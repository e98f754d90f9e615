package mqttflow

import (
	"time"
)

// MetricType represents the type of metric.
type MetricType int

const (
	// MetricTypeCounter is a monotonically increasing counter.
	MetricTypeCounter MetricType = 0
	// MetricTypeGauge is a value that can go up and down.
	MetricTypeGauge MetricType = 1
	// MetricTypeHistogram tracks distribution of values.
	MetricTypeHistogram MetricType = 2
)

// String returns the string representation of the metric type.
func (t MetricType) String() string {
	switch t {
	case MetricTypeCounter:
		return "counter"
	case MetricTypeGauge:
		return "gauge"
	case MetricTypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// MetricLabels represents key-value pairs for metric labels.
type MetricLabels map[string]string

// Metrics defines the interface for collecting metrics.
type Metrics interface {
	// Counter returns a counter metric.
	Counter(name string, labels MetricLabels) Counter

	// Gauge returns a gauge metric.
	Gauge(name string, labels MetricLabels) Gauge

	// Histogram returns a histogram metric.
	Histogram(name string, labels MetricLabels) Histogram
}

// Counter is a monotonically increasing counter.
type Counter interface {
	// Inc increments the counter by 1.
	Inc()

	// Add adds the given value to the counter.
	Add(delta float64)

	// Value returns the current value.
	Value() float64
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	// Set sets the gauge to the given value.
	Set(value float64)

	// Inc increments the gauge by 1.
	Inc()

	// Dec decrements the gauge by 1.
	Dec()

	// Add adds the given value to the gauge.
	Add(delta float64)

	// Sub subtracts the given value from the gauge.
	Sub(delta float64)

	// Value returns the current value.
	Value() float64
}

// Histogram tracks the distribution of values.
type Histogram interface {
	// Observe records a value.
	Observe(value float64)

	// ObserveDuration records a duration in seconds.
	ObserveDuration(d time.Duration)

	// Count returns the number of observations.
	Count() uint64

	// Sum returns the sum of all observations.
	Sum() float64
}

// NoOpMetrics is a no-op implementation of Metrics.
type NoOpMetrics struct{}

// Counter returns a no-op counter.
func (n *NoOpMetrics) Counter(_ string, _ MetricLabels) Counter {
	return &noOpCounter{}
}

// Gauge returns a no-op gauge.
func (n *NoOpMetrics) Gauge(_ string, _ MetricLabels) Gauge {
	return &noOpGauge{}
}

// Histogram returns a no-op histogram.
func (n *NoOpMetrics) Histogram(_ string, _ MetricLabels) Histogram {
	return &noOpHistogram{}
}

type noOpCounter struct{}

func (n *noOpCounter) Inc()           {}
func (n *noOpCounter) Add(_ float64)  {}
func (n *noOpCounter) Value() float64 { return 0 }

type noOpGauge struct{}

func (n *noOpGauge) Set(_ float64)  {}
func (n *noOpGauge) Inc()           {}
func (n *noOpGauge) Dec()           {}
func (n *noOpGauge) Add(_ float64)  {}
func (n *noOpGauge) Sub(_ float64)  {}
func (n *noOpGauge) Value() float64 { return 0 }

type noOpHistogram struct{}

func (n *noOpHistogram) Observe(_ float64)               {}
func (n *noOpHistogram) ObserveDuration(_ time.Duration) {}
func (n *noOpHistogram) Count() uint64                   { return 0 }
func (n *noOpHistogram) Sum() float64                    { return 0 }

// Standard metric names for the client engine.
const (
	// MetricConnections is 1 while the engine holds an established connection.
	MetricConnections = "mqtt_client_connections"

	// MetricConnectsTotal is the total number of accepted CONNECT handshakes.
	MetricConnectsTotal = "mqtt_client_connects_total"

	// MetricConnectFailures is the total number of failed connect attempts.
	MetricConnectFailures = "mqtt_client_connect_failures_total"

	// MetricMessagesReceived is the total number of messages received.
	MetricMessagesReceived = "mqtt_client_messages_received_total"

	// MetricMessagesSent is the total number of messages published.
	MetricMessagesSent = "mqtt_client_messages_sent_total"

	// MetricBytesReceived is the total bytes received.
	MetricBytesReceived = "mqtt_client_bytes_received_total"

	// MetricBytesSent is the total bytes handed to the transport.
	MetricBytesSent = "mqtt_client_bytes_sent_total"

	// MetricPacketsSent is the total number of packets sent.
	MetricPacketsSent = "mqtt_client_packets_sent_total"

	// MetricPacketsReceived is the total number of packets received.
	MetricPacketsReceived = "mqtt_client_packets_received_total"

	// MetricFlowsStarted is the total number of flows started.
	MetricFlowsStarted = "mqtt_client_flows_started_total"

	// MetricFlowsFailed is the total number of flows that finished unsuccessfully.
	MetricFlowsFailed = "mqtt_client_flows_failed_total"

	// MetricFlowsPending is the current number of flows not yet finished.
	MetricFlowsPending = "mqtt_client_flows_pending"

	// MetricFlowDuration is the time from flow start to completion.
	MetricFlowDuration = "mqtt_client_flow_duration_seconds"
)

// Standard metric labels.
const (
	// LabelPacketType is the packet type label.
	LabelPacketType = "packet_type"

	// LabelQoS is the QoS level label.
	LabelQoS = "qos"

	// LabelFlow is the flow code label.
	LabelFlow = "flow"
)

// engineMetrics provides convenience methods for the engine metrics.
type engineMetrics struct {
	metrics Metrics
}

func newEngineMetrics(m Metrics) *engineMetrics {
	if m == nil {
		m = &NoOpMetrics{}
	}
	return &engineMetrics{metrics: m}
}

func (m *engineMetrics) connected() {
	m.metrics.Gauge(MetricConnections, nil).Set(1)
	m.metrics.Counter(MetricConnectsTotal, nil).Inc()
}

func (m *engineMetrics) disconnected() {
	m.metrics.Gauge(MetricConnections, nil).Set(0)
}

func (m *engineMetrics) connectFailed() {
	m.metrics.Counter(MetricConnectFailures, nil).Inc()
}

func (m *engineMetrics) packetSent(pkt Packet, n int) {
	m.metrics.Counter(MetricPacketsSent, MetricLabels{LabelPacketType: pkt.Type().String()}).Inc()
	m.metrics.Counter(MetricBytesSent, nil).Add(float64(n))
	if pub, ok := pkt.(*PublishPacket); ok && !pub.DUP {
		m.metrics.Counter(MetricMessagesSent, MetricLabels{LabelQoS: qosLabel(pub.QoS)}).Inc()
	}
}

func (m *engineMetrics) packetReceived(pkt Packet) {
	m.metrics.Counter(MetricPacketsReceived, MetricLabels{LabelPacketType: pkt.Type().String()}).Inc()
	if pub, ok := pkt.(*PublishPacket); ok {
		m.metrics.Counter(MetricMessagesReceived, MetricLabels{LabelQoS: qosLabel(pub.QoS)}).Inc()
	}
}

func (m *engineMetrics) bytesReceived(n int) {
	m.metrics.Counter(MetricBytesReceived, nil).Add(float64(n))
}

func (m *engineMetrics) flowStarted(code FlowCode) {
	m.metrics.Counter(MetricFlowsStarted, MetricLabels{LabelFlow: string(code)}).Inc()
	m.metrics.Gauge(MetricFlowsPending, nil).Inc()
}

func (m *engineMetrics) flowFinished(code FlowCode, success bool, d time.Duration) {
	m.metrics.Gauge(MetricFlowsPending, nil).Dec()
	if !success {
		m.metrics.Counter(MetricFlowsFailed, MetricLabels{LabelFlow: string(code)}).Inc()
	}
	m.metrics.Histogram(MetricFlowDuration, MetricLabels{LabelFlow: string(code)}).ObserveDuration(d)
}

func qosLabel(qos byte) string {
	return string(rune('0' + qos))
}
