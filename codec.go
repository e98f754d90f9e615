package mqttflow

import (
	"errors"
	"io"
)

var (
	ErrPacketTooLarge    = errors.New("mqttflow: packet exceeds maximum size")
	ErrUnknownPacketType = errors.New("mqttflow: unknown packet type")
)

// writeFramed writes a fixed header followed by the encoded body.
func writeFramed(w io.Writer, packetType PacketType, flags byte, body []byte) (int, error) {
	header := FixedHeader{
		PacketType:      packetType,
		Flags:           flags,
		RemainingLength: uint32(len(body)),
	}

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	n, err := w.Write(body)
	return total + n, err
}

// newPacket returns an empty packet for the given type.
func newPacket(t PacketType) (Packet, error) {
	switch t {
	case PacketCONNECT:
		return &ConnectPacket{}, nil
	case PacketCONNACK:
		return &ConnackPacket{}, nil
	case PacketPUBLISH:
		return &PublishPacket{}, nil
	case PacketPUBACK:
		return &PubackPacket{}, nil
	case PacketPUBREC:
		return &PubrecPacket{}, nil
	case PacketPUBREL:
		return &PubrelPacket{}, nil
	case PacketPUBCOMP:
		return &PubcompPacket{}, nil
	case PacketSUBSCRIBE:
		return &SubscribePacket{}, nil
	case PacketSUBACK:
		return &SubackPacket{}, nil
	case PacketUNSUBSCRIBE:
		return &UnsubscribePacket{}, nil
	case PacketUNSUBACK:
		return &UnsubackPacket{}, nil
	case PacketPINGREQ:
		return &PingreqPacket{}, nil
	case PacketPINGRESP:
		return &PingrespPacket{}, nil
	case PacketDISCONNECT:
		return &DisconnectPacket{}, nil
	default:
		return nil, ErrUnknownPacketType
	}
}

// decodeBody decodes a packet body that has already been fully read.
func decodeBody(header FixedHeader, body []byte) (Packet, error) {
	if err := header.ValidateFlags(); err != nil {
		return nil, err
	}

	packet, err := newPacket(header.PacketType)
	if err != nil {
		return nil, err
	}

	reader := getBytesReader(body)
	defer putBytesReader(reader)

	if _, err := packet.Decode(reader, header); err != nil {
		return nil, err
	}

	return packet, nil
}

// ReadPacket reads a complete MQTT packet from the reader.
// If maxSize is greater than 0, packets larger than maxSize will return ErrPacketTooLarge.
func ReadPacket(r io.Reader, maxSize uint32) (Packet, int, error) {
	var header FixedHeader
	n, err := header.Decode(r)
	if err != nil {
		return nil, n, err
	}

	if maxSize > 0 && header.RemainingLength > maxSize {
		return nil, n, ErrPacketTooLarge
	}

	remaining := make([]byte, header.RemainingLength)
	if header.RemainingLength > 0 {
		rn, err := io.ReadFull(r, remaining)
		n += rn
		if err != nil {
			return nil, n, err
		}
	}

	packet, err := decodeBody(header, remaining)
	if err != nil {
		return nil, n, err
	}

	return packet, n, nil
}

// WritePacket writes a complete MQTT packet to the writer.
// If maxSize is greater than 0, packets larger than maxSize will return ErrPacketTooLarge.
func WritePacket(w io.Writer, packet Packet, maxSize uint32) (int, error) {
	data, err := EncodePacket(packet, maxSize)
	if err != nil {
		return 0, err
	}
	return w.Write(data)
}

// EncodePacket returns the wire bytes of a packet. The returned slice is
// owned by the caller.
func EncodePacket(packet Packet, maxSize uint32) ([]byte, error) {
	if err := packet.Validate(); err != nil {
		return nil, err
	}

	buf := getBytesBuffer()
	defer putBytesBuffer(buf)

	n, err := packet.Encode(buf)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && uint32(n) > maxSize {
		return nil, ErrPacketTooLarge
	}

	out := make([]byte, n)
	copy(out, buf.Bytes())
	return out, nil
}

// StreamParser turns a byte stream into packets. Partial packets are
// buffered across calls to Push.
type StreamParser struct {
	buf     []byte
	maxSize uint32
	onError func(error)
}

// NewStreamParser creates a parser that rejects packets whose remaining
// length exceeds maxSize. Zero means the protocol limit.
func NewStreamParser(maxSize uint32) *StreamParser {
	if maxSize == 0 {
		maxSize = MaxPacketSizeProtocol
	}
	return &StreamParser{maxSize: maxSize}
}

// OnError sets the callback invoked for malformed input.
func (p *StreamParser) OnError(fn func(error)) {
	p.onError = fn
}

// Buffered returns the number of bytes held for an incomplete packet.
func (p *StreamParser) Buffered() int {
	return len(p.buf)
}

// Reset discards any buffered bytes.
func (p *StreamParser) Reset() {
	p.buf = nil
}

// Push appends data to the stream and returns every complete packet it
// now holds, in arrival order. Malformed input is reported through the
// OnError callback. A frame with a bad body is skipped; a bad fixed
// header discards the buffered bytes since the frame boundary is lost.
func (p *StreamParser) Push(data []byte) []Packet {
	p.buf = append(p.buf, data...)

	var packets []Packet
	offset := 0

	for offset < len(p.buf) {
		remaining, headerLen, ok, err := peekHeader(p.buf[offset:])
		if err != nil {
			p.fail(err)
			return packets
		}
		if !ok {
			break
		}

		if remaining > p.maxSize {
			p.fail(ErrPacketTooLarge)
			return packets
		}

		end := offset + headerLen + int(remaining)
		if end > len(p.buf) {
			break
		}

		first := p.buf[offset]
		header := FixedHeader{
			PacketType:      PacketType(first >> 4),
			Flags:           first & 0x0F,
			RemainingLength: remaining,
		}

		packet, err := decodeBody(header, p.buf[offset+headerLen:end])
		if err != nil {
			p.report(err)
			offset = end
			continue
		}

		packets = append(packets, packet)
		offset = end
	}

	if offset > 0 {
		rest := len(p.buf) - offset
		if rest == 0 {
			p.buf = nil
		} else {
			p.buf = append([]byte(nil), p.buf[offset:]...)
		}
	}

	return packets
}

func (p *StreamParser) fail(err error) {
	p.buf = nil
	p.report(err)
}

func (p *StreamParser) report(err error) {
	if p.onError != nil {
		p.onError(err)
	}
}
