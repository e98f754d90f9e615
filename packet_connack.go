package mqttflow

import (
	"errors"
	"io"
)

// ErrInvalidConnackFlags is returned for CONNACK packets with reserved bits set.
var ErrInvalidConnackFlags = errors.New("invalid CONNACK flags")

// ConnackPacket represents an MQTT CONNACK packet.
// MQTT 3.1.1: Section 3.2
type ConnackPacket struct {
	// SessionPresent indicates if the broker resumed a stored session.
	SessionPresent bool

	// ReturnCode is the connection result.
	ReturnCode ConnAckCode
}

// Type returns the packet type.
func (p *ConnackPacket) Type() PacketType {
	return PacketCONNACK
}

// Encode writes the packet to the writer.
func (p *ConnackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var flags byte
	if p.SessionPresent {
		flags = 0x01
	}

	return writeFramed(w, PacketCONNACK, 0x00, []byte{flags, byte(p.ReturnCode)})
}

// Decode reads the packet from the reader.
func (p *ConnackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketCONNACK {
		return 0, ErrInvalidPacketType
	}
	if header.RemainingLength != 2 {
		return 0, ErrMalformedPacket
	}

	var buf [2]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return n, err
	}

	if buf[0]&0xFE != 0 {
		return n, ErrInvalidConnackFlags
	}

	p.SessionPresent = buf[0]&0x01 != 0
	p.ReturnCode = ConnAckCode(buf[1])

	return n, p.Validate()
}

// Validate validates the packet contents.
func (p *ConnackPacket) Validate() error {
	// A refused connection never reports a stored session.
	if p.SessionPresent && !p.ReturnCode.Accepted() {
		return ErrInvalidConnackFlags
	}
	return nil
}
