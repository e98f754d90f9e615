package mqttflow

import (
	"io"
)

// encodeAck encodes an acknowledgment packet with the given packet type and flags.
func encodeAck(w io.Writer, packetType PacketType, flags byte, id uint16) (int, error) {
	if id == 0 {
		return 0, ErrPacketIDRequired
	}
	return writeFramed(w, packetType, flags, []byte{byte(id >> 8), byte(id)})
}

// decodeAck decodes the body shared by the packet identifier only packets
// (PUBACK, PUBREC, PUBREL, PUBCOMP, UNSUBACK).
func decodeAck(r io.Reader, header FixedHeader, want PacketType, packetID *uint16) (int, error) {
	if header.PacketType != want {
		return 0, ErrInvalidPacketType
	}
	if err := header.ValidateFlags(); err != nil {
		return 0, err
	}
	if header.RemainingLength != 2 {
		return 0, ErrMalformedPacket
	}

	id, n, err := decodeUint16(r)
	if err != nil {
		return n, err
	}
	*packetID = id

	if id == 0 {
		return n, ErrPacketIDRequired
	}
	return n, nil
}

// PubackPacket represents an MQTT PUBACK packet.
// MQTT 3.1.1: Section 3.4
type PubackPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubackPacket) Type() PacketType { return PacketPUBACK }

// GetPacketID returns the packet identifier.
func (p *PubackPacket) GetPacketID() uint16 { return p.PacketID }

// Encode writes the packet to the writer.
func (p *PubackPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketPUBACK, 0x00, p.PacketID)
}

// Decode reads the packet from the reader.
func (p *PubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	return decodeAck(r, header, PacketPUBACK, &p.PacketID)
}

// Validate validates the packet contents.
func (p *PubackPacket) Validate() error { return validateAckID(p.PacketID) }

// PubrecPacket represents an MQTT PUBREC packet.
// MQTT 3.1.1: Section 3.5
type PubrecPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubrecPacket) Type() PacketType { return PacketPUBREC }

// GetPacketID returns the packet identifier.
func (p *PubrecPacket) GetPacketID() uint16 { return p.PacketID }

// Encode writes the packet to the writer.
func (p *PubrecPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketPUBREC, 0x00, p.PacketID)
}

// Decode reads the packet from the reader.
func (p *PubrecPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	return decodeAck(r, header, PacketPUBREC, &p.PacketID)
}

// Validate validates the packet contents.
func (p *PubrecPacket) Validate() error { return validateAckID(p.PacketID) }

// PubrelPacket represents an MQTT PUBREL packet.
// MQTT 3.1.1: Section 3.6
type PubrelPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubrelPacket) Type() PacketType { return PacketPUBREL }

// GetPacketID returns the packet identifier.
func (p *PubrelPacket) GetPacketID() uint16 { return p.PacketID }

// Encode writes the packet to the writer. PUBREL carries reserved flags 0010.
func (p *PubrelPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketPUBREL, 0x02, p.PacketID)
}

// Decode reads the packet from the reader.
func (p *PubrelPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	return decodeAck(r, header, PacketPUBREL, &p.PacketID)
}

// Validate validates the packet contents.
func (p *PubrelPacket) Validate() error { return validateAckID(p.PacketID) }

// PubcompPacket represents an MQTT PUBCOMP packet.
// MQTT 3.1.1: Section 3.7
type PubcompPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubcompPacket) Type() PacketType { return PacketPUBCOMP }

// GetPacketID returns the packet identifier.
func (p *PubcompPacket) GetPacketID() uint16 { return p.PacketID }

// Encode writes the packet to the writer.
func (p *PubcompPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketPUBCOMP, 0x00, p.PacketID)
}

// Decode reads the packet from the reader.
func (p *PubcompPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	return decodeAck(r, header, PacketPUBCOMP, &p.PacketID)
}

// Validate validates the packet contents.
func (p *PubcompPacket) Validate() error { return validateAckID(p.PacketID) }

// UnsubackPacket represents an MQTT UNSUBACK packet.
// MQTT 3.1.1: Section 3.11
type UnsubackPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *UnsubackPacket) Type() PacketType { return PacketUNSUBACK }

// GetPacketID returns the packet identifier.
func (p *UnsubackPacket) GetPacketID() uint16 { return p.PacketID }

// Encode writes the packet to the writer.
func (p *UnsubackPacket) Encode(w io.Writer) (int, error) {
	return encodeAck(w, PacketUNSUBACK, 0x00, p.PacketID)
}

// Decode reads the packet from the reader.
func (p *UnsubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	return decodeAck(r, header, PacketUNSUBACK, &p.PacketID)
}

// Validate validates the packet contents.
func (p *UnsubackPacket) Validate() error { return validateAckID(p.PacketID) }

func validateAckID(id uint16) error {
	if id == 0 {
		return ErrPacketIDRequired
	}
	return nil
}
