package mqttflow

// Event is a lifecycle notification emitted by an Engine. The set of events
// is closed: ConnectEvent, DisconnectEvent, MessageEvent, PublishEvent,
// SubscribeEvent, UnsubscribeEvent, OpenEvent, CloseEvent, WarningEvent and
// ErrorEvent.
type Event interface {
	// Name returns the event name, for example "connect" or "warning".
	Name() string

	event()
}

// EventHandler observes events. Handlers run on the engine event loop and
// must not block.
type EventHandler func(engine *Engine, event Event)

// ConnectEvent is emitted once the broker accepted the connection.
type ConnectEvent struct {
	Connection *Connection
}

// DisconnectEvent is emitted when a graceful Disconnect completes.
type DisconnectEvent struct {
	Connection *Connection
}

// MessageEvent is emitted for every message received from the broker.
type MessageEvent struct {
	Message *Message
}

// PublishEvent is emitted when an outgoing message completed its QoS flow.
type PublishEvent struct {
	Message *Message
}

// SubscribeEvent is emitted when the broker acknowledged a subscription.
type SubscribeEvent struct {
	Subscription Subscription
}

// UnsubscribeEvent is emitted when the broker acknowledged an unsubscribe.
type UnsubscribeEvent struct {
	Subscription Subscription
}

// OpenEvent is emitted when the transport to the broker opened.
type OpenEvent struct {
	Address string
}

// CloseEvent is emitted whenever the transport closed. Connection is the
// session that was active, or nil if the handshake never completed.
type CloseEvent struct {
	Connection *Connection
}

// WarningEvent reports a recoverable problem.
type WarningEvent struct {
	Err error
}

// ErrorEvent reports a failure of a connect attempt or a flow start.
type ErrorEvent struct {
	Err error
}

func (ConnectEvent) Name() string     { return "connect" }
func (DisconnectEvent) Name() string  { return "disconnect" }
func (MessageEvent) Name() string     { return "message" }
func (PublishEvent) Name() string     { return "publish" }
func (SubscribeEvent) Name() string   { return "subscribe" }
func (UnsubscribeEvent) Name() string { return "unsubscribe" }
func (OpenEvent) Name() string        { return "open" }
func (CloseEvent) Name() string       { return "close" }
func (WarningEvent) Name() string     { return "warning" }
func (ErrorEvent) Name() string       { return "error" }

func (ConnectEvent) event()     {}
func (DisconnectEvent) event()  {}
func (MessageEvent) event()     {}
func (PublishEvent) event()     {}
func (SubscribeEvent) event()   {}
func (UnsubscribeEvent) event() {}
func (OpenEvent) event()        {}
func (CloseEvent) event()       {}
func (WarningEvent) event()     {}
func (ErrorEvent) event()       {}
