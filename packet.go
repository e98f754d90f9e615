package mqttflow

import "io"

// QoS levels.
const (
	QoS0 byte = 0
	QoS1 byte = 1
	QoS2 byte = 2
)

// Packet size limits.
const (
	// MaxPacketSizeProtocol is the largest remaining length MQTT can express.
	MaxPacketSizeProtocol uint32 = maxVarint

	// MaxPacketSizeDefault is the default limit for inbound packets.
	MaxPacketSizeDefault uint32 = 4 * 1024 * 1024
)

// Packet is the interface that all MQTT control packets implement.
type Packet interface {
	// Type returns the packet type.
	Type() PacketType

	// Encode writes the packet, including its fixed header, to the writer.
	Encode(w io.Writer) (int, error)

	// Decode reads the packet body. The fixed header is already decoded.
	Decode(r io.Reader, header FixedHeader) (int, error)

	// Validate validates the packet contents.
	Validate() error
}

// PacketWithID is implemented by packets that carry a packet identifier.
type PacketWithID interface {
	Packet

	// GetPacketID returns the packet identifier.
	GetPacketID() uint16
}

// Message represents an MQTT application message.
type Message struct {
	// Topic is the topic name to publish to or received from.
	Topic string

	// Payload is the application message payload.
	Payload []byte

	// QoS is the Quality of Service level (0, 1, or 2).
	QoS byte

	// Retain indicates if this is a retained message.
	Retain bool

	// Duplicate is set on messages the broker redelivers.
	Duplicate bool
}

// NewMessage creates a message.
func NewMessage(topic string, payload []byte, qos byte, retain bool) *Message {
	return &Message{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
	}
}

// Clone creates a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}

	clone := *m
	if m.Payload != nil {
		clone.Payload = make([]byte, len(m.Payload))
		copy(clone.Payload, m.Payload)
	}

	return &clone
}
