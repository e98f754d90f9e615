package mqttflow

import (
	"bytes"
	"errors"
	"io"
)

// PUBLISH packet errors.
var (
	ErrTopicNameEmpty   = errors.New("topic name cannot be empty")
	ErrInvalidQoS       = errors.New("invalid QoS level")
	ErrPacketIDRequired = errors.New("packet identifier required for QoS > 0")
)

// PublishPacket represents an MQTT PUBLISH packet.
// MQTT 3.1.1: Section 3.3
type PublishPacket struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retain   bool
	DUP      bool
	PacketID uint16
}

// Type returns the packet type.
func (p *PublishPacket) Type() PacketType {
	return PacketPUBLISH
}

// GetPacketID returns the packet identifier.
func (p *PublishPacket) GetPacketID() uint16 {
	return p.PacketID
}

func (p *PublishPacket) flags() byte {
	var flags byte
	if p.DUP {
		flags |= 0x08
	}
	flags |= (p.QoS & 0x03) << 1
	if p.Retain {
		flags |= 0x01
	}
	return flags
}

// Encode writes the packet to the writer.
func (p *PublishPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	buf.Grow(len(p.Topic) + len(p.Payload) + 4)

	if _, err := encodeString(&buf, p.Topic); err != nil {
		return 0, err
	}
	if p.QoS > QoS0 {
		encodeUint16(&buf, p.PacketID)
	}
	buf.Write(p.Payload)

	return writeFramed(w, PacketPUBLISH, p.flags(), buf.Bytes())
}

// Decode reads the packet from the reader.
func (p *PublishPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketPUBLISH {
		return 0, ErrInvalidPacketType
	}

	p.DUP = header.Flags&0x08 != 0
	p.QoS = (header.Flags >> 1) & 0x03
	p.Retain = header.Flags&0x01 != 0
	if p.QoS > QoS2 {
		return 0, ErrInvalidQoS
	}

	var total int

	topic, n, err := decodeString(r)
	total += n
	if err != nil {
		return total, err
	}
	p.Topic = topic

	if p.QoS > QoS0 {
		p.PacketID, n, err = decodeUint16(r)
		total += n
		if err != nil {
			return total, err
		}
	}

	payloadLen := int(header.RemainingLength) - total
	if payloadLen < 0 {
		return total, ErrMalformedPacket
	}
	if payloadLen > 0 {
		p.Payload = make([]byte, payloadLen)
		n, err = io.ReadFull(r, p.Payload)
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, p.Validate()
}

// Validate validates the packet contents.
func (p *PublishPacket) Validate() error {
	if p.Topic == "" {
		return ErrTopicNameEmpty
	}
	if p.QoS > QoS2 {
		return ErrInvalidQoS
	}
	if p.QoS == QoS0 && p.DUP {
		return ErrInvalidPacketFlags
	}
	if p.QoS > QoS0 && p.PacketID == 0 {
		return ErrPacketIDRequired
	}
	return nil
}

// ToMessage converts the PUBLISH packet to a Message.
func (p *PublishPacket) ToMessage() *Message {
	return &Message{
		Topic:     p.Topic,
		Payload:   p.Payload,
		QoS:       p.QoS,
		Retain:    p.Retain,
		Duplicate: p.DUP,
	}
}

// FromMessage populates the PUBLISH packet from a Message.
func (p *PublishPacket) FromMessage(m *Message) {
	p.Topic = m.Topic
	p.Payload = m.Payload
	p.QoS = m.QoS
	p.Retain = m.Retain
}
