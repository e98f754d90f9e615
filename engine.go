package mqttflow

import (
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// Engine is an asynchronous MQTT 3.1.1 client bound to one broker address.
// Every protocol interaction runs as a Flow driven by a single event loop
// goroutine; public operations never block and return a Future instead.
type Engine struct {
	opts    *engineOptions
	server  *url.URL
	address string
	dialer  Dialer
	logger  Logger
	metrics *engineMetrics

	loop   *eventLoop
	state  *stateManager
	closed atomic.Bool

	// current session, readable from any goroutine
	connection atomic.Pointer[Connection]

	handlersMu sync.RWMutex
	handlers   []*handlerEntry

	// Owned by the event loop goroutine.
	stream        *stream
	parser        *StreamParser
	attempt       *connectAttempt
	disconnecting *Future[*Connection]
	keepAlive     *loopTimer
	nextFlowID    uint64

	sendingFlows   flowQueue
	writtenFlow    *flowWrapper
	receivingFlows *flowSet
	blocked        bool
}

type handlerEntry struct {
	fn EventHandler
}

// connectAttempt tracks one Connect call until CONNACK or failure.
type connectAttempt struct {
	conn    *Connection
	future  *Future[*Connection]
	timeout time.Duration
	timer   *loopTimer
	cancel  func()
}

// New creates an engine. It validates the configuration but does not
// connect; call Connect to open the session.
func New(opts ...Option) (*Engine, error) {
	o := applyOptions(opts...)

	u, err := parseServer(o.server)
	if err != nil {
		return nil, err
	}

	if o.will != nil {
		if err := ValidateTopicName(o.will.Topic); err != nil {
			return nil, fmt.Errorf("invalid will: %w", err)
		}
		if o.will.QoS > QoS2 {
			return nil, fmt.Errorf("invalid will: %w", ErrInvalidQoS)
		}
	}

	dialer := o.dialer
	if dialer == nil {
		dialer, err = newSchemeDialer(u, o)
		if err != nil {
			return nil, err
		}
	}
	if o.breaker != nil {
		dialer = NewBreakerDialer(u.Host, dialer, *o.breaker, o.logger)
	}

	address := dialAddress(u)
	e := &Engine{
		opts:           o,
		server:         u,
		address:        address,
		dialer:         dialer,
		logger:         o.logger.WithFields(LogFields{LogFieldRemoteAddr: address}),
		metrics:        newEngineMetrics(o.metrics),
		state:          newStateManager(),
		parser:         NewStreamParser(o.maxPacketSize),
		receivingFlows: newFlowSet(),
	}
	e.parser.OnError(e.parseError)

	for _, h := range o.handlers {
		e.handlers = append(e.handlers, &handlerEntry{fn: h})
	}

	e.loop = newEventLoop()
	return e, nil
}

// Connect opens the transport and performs the CONNECT handshake. Timeout
// bounds the transport dial and, separately, the wait for CONNACK; zero
// uses the configured connect timeout.
//
// A call while connecting or connected fails immediately with a
// *LogicError wrapping ErrAlreadyConnected.
func (e *Engine) Connect(timeout time.Duration) *Future[*Connection] {
	const op = "connect"

	if e.closed.Load() {
		return rejectedFuture[*Connection](NewLogicError(op, ErrClientClosed))
	}
	if !e.state.transition(StateIdle, StateConnecting) {
		return rejectedFuture[*Connection](NewLogicError(op, ErrAlreadyConnected))
	}

	if timeout <= 0 {
		timeout = e.opts.connectTimeout
	}

	conn := e.newConnection()
	f := newFuture[*Connection]()
	if !e.loop.post(func() { e.connect(conn, timeout, f) }) {
		e.state.set(StateIdle)
		f.reject(NewLogicError(op, ErrClientClosed))
	}
	return f
}

// Disconnect sends DISCONNECT and resolves with the closed Connection once
// the broker closes the transport. If the broker keeps it open longer than
// timeout the engine closes it; zero uses the configured connect timeout.
func (e *Engine) Disconnect(timeout time.Duration) *Future[*Connection] {
	const op = "disconnect"

	if e.closed.Load() {
		return rejectedFuture[*Connection](NewLogicError(op, ErrClientClosed))
	}
	if !e.state.transition(StateConnected, StateDisconnecting) {
		if e.state.get() == StateDisconnecting {
			return rejectedFuture[*Connection](NewLogicError(op, ErrAlreadyDisconnecting))
		}
		return rejectedFuture[*Connection](NewLogicError(op, ErrNotConnected))
	}

	if timeout <= 0 {
		timeout = e.opts.connectTimeout
	}

	f := newFuture[*Connection]()
	return submit(e, op, f, func() { e.disconnect(timeout, f) })
}

// Subscribe subscribes to a topic filter. The result carries the QoS
// granted by the broker.
func (e *Engine) Subscribe(filter string, qos byte) *Future[Subscription] {
	const op = "subscribe"

	if err := e.checkConnected(op); err != nil {
		return rejectedFuture[Subscription](err)
	}
	if err := ValidateTopicFilter(filter); err != nil {
		return rejectedFuture[Subscription](NewLogicError(op, fmt.Errorf("%w: %w", ErrInvalidTopic, err)))
	}
	if qos > QoS2 {
		return rejectedFuture[Subscription](NewLogicError(op, ErrInvalidQoS))
	}

	subscriptions := []Subscription{{Filter: filter, QoS: qos}}
	f := newFuture[Subscription]()
	return submit(e, op, f, func() {
		e.startFlow(e.opts.flowFactory.OutgoingSubscribe(subscriptions), flowParams{
			timeout:  e.opts.flowTimeout,
			complete: completeFuture(f),
		})
	})
}

// Unsubscribe removes a subscription.
func (e *Engine) Unsubscribe(filter string) *Future[Subscription] {
	const op = "unsubscribe"

	if err := e.checkConnected(op); err != nil {
		return rejectedFuture[Subscription](err)
	}
	if err := ValidateTopicFilter(filter); err != nil {
		return rejectedFuture[Subscription](NewLogicError(op, fmt.Errorf("%w: %w", ErrInvalidTopic, err)))
	}

	subscriptions := []Subscription{{Filter: filter}}
	f := newFuture[Subscription]()
	return submit(e, op, f, func() {
		e.startFlow(e.opts.flowFactory.OutgoingUnsubscribe(subscriptions), flowParams{
			timeout:   e.opts.flowTimeout,
			complete:  completeFuture(f),
			transform: firstSubscription,
		})
	})
}

// Publish sends a message. The future resolves once the QoS exchange is
// complete: on write for QoS 0, on PUBACK for QoS 1 and on PUBCOMP for QoS 2.
func (e *Engine) Publish(topic string, payload []byte, qos byte, retain bool) *Future[*Message] {
	const op = "publish"

	if err := e.checkConnected(op); err != nil {
		return rejectedFuture[*Message](err)
	}
	if err := ValidateTopicName(topic); err != nil {
		return rejectedFuture[*Message](NewLogicError(op, fmt.Errorf("%w: %w", ErrInvalidTopic, err)))
	}
	if qos > QoS2 {
		return rejectedFuture[*Message](NewLogicError(op, ErrInvalidQoS))
	}
	if limiter := e.opts.publishLimit; limiter != nil && !limiter.Allow() {
		return rejectedFuture[*Message](ErrRateLimited)
	}

	msg := applyProducerInterceptors(e.logger, e.opts.producerInterceptors, NewMessage(topic, payload, qos, retain))
	if msg == nil {
		return rejectedFuture[*Message](ErrMessageDropped)
	}

	f := newFuture[*Message]()
	return submit(e, op, f, func() {
		e.startFlow(e.opts.flowFactory.OutgoingPublish(msg), flowParams{
			timeout:  e.opts.flowTimeout,
			complete: completeFuture(f),
		})
	})
}

// Close tears the engine down: the transport is closed, pending futures
// are rejected, timers are cancelled and the event loop stops. The engine
// cannot be reused. Done is closed once the loop has exited.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	e.loop.post(func() {
		if a := e.attempt; a != nil {
			e.failConnect(a, ErrClientClosed)
		}
		if s := e.stream; s != nil {
			s.close()
			e.teardown(ErrClientClosed)
		}
		e.loop.cancelAll()
		e.loop.stop()
	})
	return nil
}

// Done returns a channel closed once the engine's event loop has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.loop.done
}

// On registers an event handler and returns a function removing it.
// Handlers run on the event loop: they must not block and must not wait on
// a Future of the same engine.
func (e *Engine) On(handler EventHandler) (remove func()) {
	entry := &handlerEntry{fn: handler}

	e.handlersMu.Lock()
	handlers := make([]*handlerEntry, len(e.handlers), len(e.handlers)+1)
	copy(handlers, e.handlers)
	e.handlers = append(handlers, entry)
	e.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.handlersMu.Lock()
			defer e.handlersMu.Unlock()

			handlers := make([]*handlerEntry, 0, len(e.handlers))
			for _, h := range e.handlers {
				if h != entry {
					handlers = append(handlers, h)
				}
			}
			e.handlers = handlers
		})
	}
}

// State returns the connection state.
func (e *Engine) State() State {
	return e.state.get()
}

// IsConnected reports whether the engine holds an established connection.
func (e *Engine) IsConnected() bool {
	return e.state.isConnected()
}

// Connection returns a copy of the active session, or nil.
func (e *Engine) Connection() *Connection {
	return e.connection.Load().Clone()
}

// Address returns the address handed to the dialer.
func (e *Engine) Address() string {
	return e.address
}

// Server returns the broker URL the engine was configured with.
func (e *Engine) Server() string {
	return e.server.String()
}

func (e *Engine) checkConnected(op string) error {
	if e.closed.Load() {
		return NewLogicError(op, ErrClientClosed)
	}
	if !e.state.isConnected() {
		return NewLogicError(op, ErrNotConnected)
	}
	return nil
}

func (e *Engine) newConnection() *Connection {
	clientID := e.opts.clientID
	if clientID == "" {
		clientID = e.opts.identifiers.ClientID()
	}

	return &Connection{
		ClientID:     clientID,
		Username:     e.opts.username,
		Password:     e.opts.password,
		KeepAlive:    e.opts.keepAlive,
		CleanSession: e.opts.cleanSession,
		Will:         e.opts.will.Clone(),
	}
}

// submit posts task to the event loop, rejecting f if the engine stopped.
func submit[T any](e *Engine, op string, f *Future[T], task func()) *Future[T] {
	if !e.loop.post(task) {
		f.reject(NewLogicError(op, ErrClientClosed))
	}
	return f
}

// emit dispatches ev to every registered handler. Loop goroutine only.
func (e *Engine) emit(ev Event) {
	e.handlersMu.RLock()
	handlers := e.handlers
	e.handlersMu.RUnlock()

	for _, h := range handlers {
		e.dispatch(h.fn, ev)
	}
}

func (e *Engine) dispatch(handler EventHandler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panic", LogFields{
				"event":       ev.Name(),
				LogFieldError: r,
			})
		}
	}()

	handler(e, ev)
}

func firstSubscription(result any) any {
	subscriptions, ok := result.([]Subscription)
	if !ok || len(subscriptions) == 0 {
		return Subscription{}
	}
	return subscriptions[0]
}
