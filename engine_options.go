package mqttflow

import (
	"crypto/tls"
	"time"

	"golang.org/x/time/rate"
)

// engineOptions holds configuration for an Engine.
type engineOptions struct {
	// Broker address, for example tcp://localhost:1883
	server string
	dialer Dialer

	// Connection settings
	clientID     string
	username     string
	password     string
	keepAlive    uint16
	cleanSession bool
	will         *Message

	// Transport settings
	tlsConfig      *tls.Config
	proxyConfig    *ProxyConfig
	proxyFromEnv   bool
	breaker        *BreakerSettings
	writeTimeout   time.Duration
	writeHighWater int

	// Timeouts
	connectTimeout time.Duration
	flowTimeout    time.Duration

	// Limits
	maxPacketSize uint32
	publishLimit  *rate.Limiter

	// Collaborators
	logger      Logger
	metrics     Metrics
	flowFactory FlowFactory
	identifiers IdentifierGenerator

	// Interceptors
	producerInterceptors []ProducerInterceptor
	consumerInterceptors []ConsumerInterceptor

	handlers []EventHandler
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() *engineOptions {
	return &engineOptions{
		server:         "tcp://localhost:1883",
		keepAlive:      60,
		cleanSession:   true,
		connectTimeout: 10 * time.Second,
		flowTimeout:    30 * time.Second,
		writeTimeout:   5 * time.Second,
		writeHighWater: defaultWriteHighWater,
		maxPacketSize:  MaxPacketSizeDefault,
	}
}

// Option configures an Engine.
type Option func(*engineOptions)

// WithServer sets the broker URL. Supported schemes are tcp, mqtt, ssl, tls,
// mqtts, ws, wss, unix and quic. A missing port defaults per scheme.
func WithServer(server string) Option {
	return func(o *engineOptions) {
		o.server = server
	}
}

// WithDialer overrides the transport used to reach the broker. The engine
// still parses the server URL and passes the derived address to the dialer.
func WithDialer(d Dialer) Option {
	return func(o *engineOptions) {
		o.dialer = d
	}
}

// WithClientID sets the client identifier. An empty identifier makes the
// engine generate one per connect.
func WithClientID(id string) Option {
	return func(o *engineOptions) {
		o.clientID = id
	}
}

// WithCredentials sets the username and password for authentication.
func WithCredentials(username, password string) Option {
	return func(o *engineOptions) {
		o.username = username
		o.password = password
	}
}

// WithKeepAlive sets the keep-alive interval in seconds. Zero disables pings.
func WithKeepAlive(seconds uint16) Option {
	return func(o *engineOptions) {
		o.keepAlive = seconds
	}
}

// WithCleanSession sets whether the broker should discard any stored session.
func WithCleanSession(clean bool) Option {
	return func(o *engineOptions) {
		o.cleanSession = clean
	}
}

// WithWill sets the message the broker publishes if the connection is lost.
func WithWill(topic string, payload []byte, retain bool, qos byte) Option {
	return func(o *engineOptions) {
		o.will = &Message{
			Topic:   topic,
			Payload: payload,
			Retain:  retain,
			QoS:     qos,
		}
	}
}

// WithTLS sets the TLS configuration for secure transports.
func WithTLS(config *tls.Config) Option {
	return func(o *engineOptions) {
		o.tlsConfig = config
	}
}

// WithProxy routes TCP based transports through an HTTP CONNECT or SOCKS5 proxy.
func WithProxy(config ProxyConfig) Option {
	return func(o *engineOptions) {
		o.proxyConfig = &config
	}
}

// WithProxyFromEnvironment picks the proxy from HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
func WithProxyFromEnvironment() Option {
	return func(o *engineOptions) {
		o.proxyFromEnv = true
	}
}

// WithDialBreaker wraps the dialer in a circuit breaker.
func WithDialBreaker(settings BreakerSettings) Option {
	return func(o *engineOptions) {
		o.breaker = &settings
	}
}

// WithConnectTimeout sets the timeout used by Connect when called with zero.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		o.connectTimeout = d
	}
}

// WithFlowTimeout sets how long a subscribe, unsubscribe, publish or ping
// flow may wait for the broker before it fails. Zero disables the timer.
func WithFlowTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		o.flowTimeout = d
	}
}

// WithWriteTimeout sets the deadline for a single transport write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		o.writeTimeout = d
	}
}

// WithWriteBufferSize sets how many unsent bytes the transport may hold
// before the engine stops handing it packets.
func WithWriteBufferSize(size int) Option {
	return func(o *engineOptions) {
		if size > 0 {
			o.writeHighWater = size
		}
	}
}

// WithMaxPacketSize sets the maximum packet size the engine will accept.
// Values exceeding MaxPacketSizeProtocol are clamped to the protocol maximum.
//
// Default: MaxPacketSizeDefault (4MB)
func WithMaxPacketSize(size uint32) Option {
	return func(o *engineOptions) {
		if size > MaxPacketSizeProtocol {
			size = MaxPacketSizeProtocol
		}
		o.maxPacketSize = size
	}
}

// WithPublishRateLimit limits outgoing publishes to r per second with the
// given burst. Publishes over the limit fail with ErrRateLimited.
func WithPublishRateLimit(r float64, burst int) Option {
	return func(o *engineOptions) {
		if r <= 0 {
			o.publishLimit = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.publishLimit = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics Metrics) Option {
	return func(o *engineOptions) {
		o.metrics = metrics
	}
}

// WithFlowFactory replaces the factory that builds protocol flows.
func WithFlowFactory(factory FlowFactory) Option {
	return func(o *engineOptions) {
		o.flowFactory = factory
	}
}

// WithIdentifierGenerator sets the generator used when no client ID is configured.
func WithIdentifierGenerator(gen IdentifierGenerator) Option {
	return func(o *engineOptions) {
		o.identifiers = gen
	}
}

// WithProducerInterceptors sets the producer interceptors for outgoing messages.
// Interceptors are called in order before a message is published.
func WithProducerInterceptors(interceptors ...ProducerInterceptor) Option {
	return func(o *engineOptions) {
		o.producerInterceptors = interceptors
	}
}

// WithConsumerInterceptors sets the consumer interceptors for incoming messages.
// Interceptors are called in order before the message event is emitted.
func WithConsumerInterceptors(interceptors ...ConsumerInterceptor) Option {
	return func(o *engineOptions) {
		o.consumerInterceptors = interceptors
	}
}

// OnEvent registers an event handler at construction time, so that no event
// of the first connect is missed.
func OnEvent(handler EventHandler) Option {
	return func(o *engineOptions) {
		if handler != nil {
			o.handlers = append(o.handlers, handler)
		}
	}
}

// applyOptions applies the given options.
func applyOptions(opts ...Option) *engineOptions {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	if o.logger == nil {
		o.logger = NewNoOpLogger()
	}
	if o.metrics == nil {
		o.metrics = &NoOpMetrics{}
	}
	if o.flowFactory == nil {
		o.flowFactory = NewFlowFactory()
	}
	if o.identifiers == nil {
		o.identifiers = NewUUIDGenerator()
	}
	return o
}
