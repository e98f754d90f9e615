package mqttflow

import (
	"bytes"
	"errors"
	"io"
)

// SUBSCRIBE and UNSUBSCRIBE packet errors.
var (
	ErrMalformedPacket     = errors.New("malformed packet")
	ErrNoTopicFilters      = errors.New("packet must contain at least one topic filter")
	ErrInvalidSubscription = errors.New("invalid subscription options")
)

// Subscription is a topic filter together with its QoS level. In a subscribe
// result QoS holds the level granted by the broker.
type Subscription struct {
	Filter string
	QoS    byte
}

// SubscribePacket represents an MQTT SUBSCRIBE packet.
// MQTT 3.1.1: Section 3.8
type SubscribePacket struct {
	PacketID      uint16
	Subscriptions []Subscription
}

// Type returns the packet type.
func (p *SubscribePacket) Type() PacketType { return PacketSUBSCRIBE }

// GetPacketID returns the packet identifier.
func (p *SubscribePacket) GetPacketID() uint16 { return p.PacketID }

// Encode writes the packet to the writer.
func (p *SubscribePacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	encodeUint16(&buf, p.PacketID)

	for _, sub := range p.Subscriptions {
		if _, err := encodeString(&buf, sub.Filter); err != nil {
			return 0, err
		}
		buf.WriteByte(sub.QoS & 0x03)
	}

	return writeFramed(w, PacketSUBSCRIBE, 0x02, buf.Bytes())
}

// Decode reads the packet from the reader.
func (p *SubscribePacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketSUBSCRIBE {
		return 0, ErrInvalidPacketType
	}
	if header.Flags != 0x02 {
		return 0, ErrInvalidPacketFlags
	}

	var total int

	id, n, err := decodeUint16(r)
	total += n
	if err != nil {
		return total, err
	}
	p.PacketID = id

	p.Subscriptions = nil
	for total < int(header.RemainingLength) {
		filter, n, err := decodeString(r)
		total += n
		if err != nil {
			return total, err
		}

		var opt [1]byte
		n, err = io.ReadFull(r, opt[:])
		total += n
		if err != nil {
			return total, err
		}
		if opt[0]&0xFC != 0 {
			return total, ErrInvalidSubscription
		}

		p.Subscriptions = append(p.Subscriptions, Subscription{Filter: filter, QoS: opt[0]})
	}

	return total, p.Validate()
}

// Validate validates the packet contents.
func (p *SubscribePacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}
	if len(p.Subscriptions) == 0 {
		return ErrNoTopicFilters
	}
	for _, sub := range p.Subscriptions {
		if err := ValidateTopicFilter(sub.Filter); err != nil {
			return err
		}
		if sub.QoS > QoS2 {
			return ErrInvalidQoS
		}
	}
	return nil
}
