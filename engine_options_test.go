package mqttflow

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := applyOptions()

	assert.Equal(t, "tcp://localhost:1883", opts.server)
	assert.Equal(t, uint16(60), opts.keepAlive)
	assert.True(t, opts.cleanSession)
	assert.Equal(t, 10*time.Second, opts.connectTimeout)
	assert.Equal(t, 30*time.Second, opts.flowTimeout)
	assert.Equal(t, 5*time.Second, opts.writeTimeout)
	assert.Equal(t, defaultWriteHighWater, opts.writeHighWater)
	assert.Equal(t, MaxPacketSizeDefault, opts.maxPacketSize)
	assert.Nil(t, opts.publishLimit)

	assert.IsType(t, &NoOpLogger{}, opts.logger)
	assert.IsType(t, &NoOpMetrics{}, opts.metrics)
	assert.IsType(t, &DefaultFlowFactory{}, opts.flowFactory)
	assert.IsType(t, &UUIDGenerator{}, opts.identifiers)
}

func TestConnectionOptions(t *testing.T) {
	opts := applyOptions(
		WithServer("ssl://broker:8883"),
		WithClientID("sensor-1"),
		WithCredentials("admin", "secret"),
		WithKeepAlive(120),
		WithCleanSession(false),
		WithWill("status/sensor-1", []byte("offline"), true, 1),
	)

	assert.Equal(t, "ssl://broker:8883", opts.server)
	assert.Equal(t, "sensor-1", opts.clientID)
	assert.Equal(t, "admin", opts.username)
	assert.Equal(t, "secret", opts.password)
	assert.Equal(t, uint16(120), opts.keepAlive)
	assert.False(t, opts.cleanSession)
	assert.Equal(t, &Message{Topic: "status/sensor-1", Payload: []byte("offline"), Retain: true, QoS: 1}, opts.will)
}

func TestTransportOptions(t *testing.T) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	dialer := &TCPDialer{}

	opts := applyOptions(
		WithTLS(tlsConfig),
		WithDialer(dialer),
		WithProxy(ProxyConfig{URL: "http://proxy:8080", Username: "u"}),
		WithProxyFromEnvironment(),
		WithDialBreaker(BreakerSettings{MaxFailures: 3}),
		WithWriteTimeout(time.Second),
	)

	assert.Same(t, tlsConfig, opts.tlsConfig)
	assert.Same(t, dialer, opts.dialer)
	assert.Equal(t, &ProxyConfig{URL: "http://proxy:8080", Username: "u"}, opts.proxyConfig)
	assert.True(t, opts.proxyFromEnv)
	assert.Equal(t, &BreakerSettings{MaxFailures: 3}, opts.breaker)
	assert.Equal(t, time.Second, opts.writeTimeout)
}

func TestTimeoutOptions(t *testing.T) {
	opts := applyOptions(WithConnectTimeout(3*time.Second), WithFlowTimeout(0))
	assert.Equal(t, 3*time.Second, opts.connectTimeout)
	assert.Zero(t, opts.flowTimeout)
}

func TestWithWriteBufferSize(t *testing.T) {
	assert.Equal(t, 1024, applyOptions(WithWriteBufferSize(1024)).writeHighWater)
	assert.Equal(t, defaultWriteHighWater, applyOptions(WithWriteBufferSize(0)).writeHighWater)
}

func TestWithMaxPacketSize(t *testing.T) {
	t.Run("normal value", func(t *testing.T) {
		assert.Equal(t, uint32(1024), applyOptions(WithMaxPacketSize(1024)).maxPacketSize)
	})

	t.Run("clamped to protocol maximum", func(t *testing.T) {
		assert.Equal(t, MaxPacketSizeProtocol, applyOptions(WithMaxPacketSize(MaxPacketSizeProtocol+1)).maxPacketSize)
	})
}

func TestWithPublishRateLimit(t *testing.T) {
	t.Run("limiter configured", func(t *testing.T) {
		opts := applyOptions(WithPublishRateLimit(10, 0))
		require.NotNil(t, opts.publishLimit)
		assert.Equal(t, 1, opts.publishLimit.Burst())
		assert.True(t, opts.publishLimit.Allow())
		assert.False(t, opts.publishLimit.Allow())
	})

	t.Run("zero rate disables", func(t *testing.T) {
		opts := applyOptions(WithPublishRateLimit(10, 5), WithPublishRateLimit(0, 5))
		assert.Nil(t, opts.publishLimit)
	})
}

func TestCollaboratorOptions(t *testing.T) {
	logger := NewStdLogger(nil, LogLevelDebug)
	metrics := NewMemoryMetrics()
	factory := NewFlowFactory()
	gen := &UUIDGenerator{Prefix: "test"}

	opts := applyOptions(
		WithLogger(logger),
		WithMetrics(metrics),
		WithFlowFactory(factory),
		WithIdentifierGenerator(gen),
	)

	assert.Same(t, logger, opts.logger)
	assert.Same(t, metrics, opts.metrics)
	assert.Same(t, factory, opts.flowFactory)
	assert.Same(t, gen, opts.identifiers)
}

func TestInterceptorOptions(t *testing.T) {
	producer := &testProducerInterceptor{}
	consumer := &testConsumerInterceptor{}

	opts := applyOptions(WithProducerInterceptors(producer), WithConsumerInterceptors(consumer))

	assert.Equal(t, []ProducerInterceptor{producer}, opts.producerInterceptors)
	assert.Equal(t, []ConsumerInterceptor{consumer}, opts.consumerInterceptors)
}

func TestOnEvent(t *testing.T) {
	var names []string
	handler := func(_ *Engine, ev Event) { names = append(names, ev.Name()) }

	opts := applyOptions(OnEvent(handler), OnEvent(nil), OnEvent(handler))
	require.Len(t, opts.handlers, 2)

	opts.handlers[0](nil, OpenEvent{Address: "127.0.0.1:1883"})
	assert.Equal(t, []string{"open"}, names)
}

func TestOptionsOverride(t *testing.T) {
	opts := applyOptions(WithClientID("first"), nil, WithClientID("second"))
	assert.Equal(t, "second", opts.clientID)
}
