package mqttflow

// FlowFactory builds the flows the engine drives.
type FlowFactory interface {
	OutgoingConnect(conn *Connection) Flow
	OutgoingDisconnect(conn *Connection) Flow
	OutgoingPing() Flow
	OutgoingSubscribe(subscriptions []Subscription) Flow
	OutgoingUnsubscribe(subscriptions []Subscription) Flow
	OutgoingPublish(msg *Message) Flow
	IncomingPublish(msg *Message, packetID uint16) Flow
}

// flowFactoryResetter is implemented by factories holding per-connection state.
type flowFactoryResetter interface {
	Reset()
}

// DefaultFlowFactory builds the MQTT 3.1.1 flows. Outgoing flows that need a
// packet identifier take it from a PacketIDManager when they start and give
// it back when they finish, so at most one pending flow holds a given
// identifier.
type DefaultFlowFactory struct {
	ids *PacketIDManager
}

// NewFlowFactory creates a DefaultFlowFactory.
func NewFlowFactory() *DefaultFlowFactory {
	return &DefaultFlowFactory{ids: NewPacketIDManager()}
}

// PacketIDs returns the identifier pool used by outgoing flows.
func (f *DefaultFlowFactory) PacketIDs() *PacketIDManager {
	return f.ids
}

// Reset releases all packet identifiers. The engine calls it when the
// transport closes.
func (f *DefaultFlowFactory) Reset() {
	f.ids.Reset()
}

func (f *DefaultFlowFactory) OutgoingConnect(conn *Connection) Flow {
	return &connectFlow{conn: conn}
}

func (f *DefaultFlowFactory) OutgoingDisconnect(conn *Connection) Flow {
	return &disconnectFlow{conn: conn}
}

func (f *DefaultFlowFactory) OutgoingPing() Flow {
	return &pingFlow{}
}

func (f *DefaultFlowFactory) OutgoingSubscribe(subscriptions []Subscription) Flow {
	return &subscribeFlow{ids: f.ids, subscriptions: subscriptions}
}

func (f *DefaultFlowFactory) OutgoingUnsubscribe(subscriptions []Subscription) Flow {
	return &unsubscribeFlow{ids: f.ids, subscriptions: subscriptions}
}

func (f *DefaultFlowFactory) OutgoingPublish(msg *Message) Flow {
	return &outgoingPublishFlow{ids: f.ids, msg: msg}
}

func (f *DefaultFlowFactory) IncomingPublish(msg *Message, packetID uint16) Flow {
	return &incomingPublishFlow{msg: msg, packetID: packetID}
}

// allocateID reserves a packet identifier and arranges for its release.
func allocateID(ids *PacketIDManager, state *flowState) (uint16, error) {
	id, err := ids.Allocate()
	if err != nil {
		return 0, err
	}
	state.release = func() { _ = ids.Release(id) }
	return id, nil
}
