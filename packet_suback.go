package mqttflow

import (
	"errors"
	"io"
)

// ErrInvalidSubackCode is returned for SUBACK return codes outside 0x00-0x02 and 0x80.
var ErrInvalidSubackCode = errors.New("invalid SUBACK return code")

// SubackPacket represents an MQTT SUBACK packet.
// MQTT 3.1.1: Section 3.9
type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []byte
}

// Type returns the packet type.
func (p *SubackPacket) Type() PacketType { return PacketSUBACK }

// GetPacketID returns the packet identifier.
func (p *SubackPacket) GetPacketID() uint16 { return p.PacketID }

// Encode writes the packet to the writer.
func (p *SubackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	body := make([]byte, 0, 2+len(p.ReturnCodes))
	body = append(body, byte(p.PacketID>>8), byte(p.PacketID))
	body = append(body, p.ReturnCodes...)

	return writeFramed(w, PacketSUBACK, 0x00, body)
}

// Decode reads the packet from the reader.
func (p *SubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketSUBACK {
		return 0, ErrInvalidPacketType
	}
	if header.RemainingLength < 3 {
		return 0, ErrMalformedPacket
	}

	var total int

	id, n, err := decodeUint16(r)
	total += n
	if err != nil {
		return total, err
	}
	p.PacketID = id

	p.ReturnCodes = make([]byte, header.RemainingLength-2)
	n, err = io.ReadFull(r, p.ReturnCodes)
	total += n
	if err != nil {
		return total, err
	}

	return total, p.Validate()
}

// Validate validates the packet contents.
func (p *SubackPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}
	if len(p.ReturnCodes) == 0 {
		return ErrMalformedPacket
	}
	for _, rc := range p.ReturnCodes {
		if rc > QoS2 && rc != SubackFailure {
			return ErrInvalidSubackCode
		}
	}
	return nil
}
