package mqttflow

import (
	"bytes"
	"errors"
	"io"
)

// CONNECT packet constants.
const (
	protocolName  = "MQTT"
	protocolLevel = 4
)

// Connect flag bit positions.
const (
	connectFlagCleanSession = 0x02
	connectFlagWillFlag     = 0x04
	connectFlagWillRetain   = 0x20
	connectFlagPasswordFlag = 0x40
	connectFlagUsernameFlag = 0x80
)

// CONNECT packet errors.
var (
	ErrInvalidProtocolName    = errors.New("invalid protocol name")
	ErrInvalidProtocolVersion = errors.New("unsupported protocol level")
	ErrInvalidConnectFlags    = errors.New("invalid connect flags")
	ErrClientIDRequired       = errors.New("client ID required with clean session false")
	ErrPasswordWithoutUser    = errors.New("password requires a user name")
)

// ConnectPacket represents an MQTT CONNECT packet.
// MQTT 3.1.1: Section 3.1
type ConnectPacket struct {
	ClientID     string
	CleanSession bool
	KeepAlive    uint16
	Username     string
	Password     []byte

	WillFlag    bool
	WillRetain  bool
	WillQoS     byte
	WillTopic   string
	WillPayload []byte
}

// Type returns the packet type.
func (p *ConnectPacket) Type() PacketType {
	return PacketCONNECT
}

func (p *ConnectPacket) connectFlags() byte {
	var flags byte

	if p.CleanSession {
		flags |= connectFlagCleanSession
	}
	if p.WillFlag {
		flags |= connectFlagWillFlag
		flags |= (p.WillQoS & 0x03) << 3
		if p.WillRetain {
			flags |= connectFlagWillRetain
		}
	}
	if p.Password != nil {
		flags |= connectFlagPasswordFlag
	}
	if p.Username != "" {
		flags |= connectFlagUsernameFlag
	}

	return flags
}

// Encode writes the packet to the writer.
func (p *ConnectPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	if _, err := encodeString(&buf, protocolName); err != nil {
		return 0, err
	}
	buf.WriteByte(protocolLevel)
	buf.WriteByte(p.connectFlags())
	encodeUint16(&buf, p.KeepAlive)

	if _, err := encodeString(&buf, p.ClientID); err != nil {
		return 0, err
	}

	if p.WillFlag {
		if _, err := encodeString(&buf, p.WillTopic); err != nil {
			return 0, err
		}
		if _, err := encodeBinary(&buf, p.WillPayload); err != nil {
			return 0, err
		}
	}

	if p.Username != "" {
		if _, err := encodeString(&buf, p.Username); err != nil {
			return 0, err
		}
	}

	if p.Password != nil {
		if _, err := encodeBinary(&buf, p.Password); err != nil {
			return 0, err
		}
	}

	return writeFramed(w, PacketCONNECT, 0x00, buf.Bytes())
}

// Decode reads the packet from the reader.
func (p *ConnectPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketCONNECT {
		return 0, ErrInvalidPacketType
	}

	var total int

	name, n, err := decodeString(r)
	total += n
	if err != nil {
		return total, err
	}
	if name != protocolName {
		return total, ErrInvalidProtocolName
	}

	var fixed [2]byte
	n, err = io.ReadFull(r, fixed[:])
	total += n
	if err != nil {
		return total, err
	}
	if fixed[0] != protocolLevel {
		return total, ErrInvalidProtocolVersion
	}

	flags := fixed[1]
	if flags&0x01 != 0 {
		return total, ErrInvalidConnectFlags
	}
	p.CleanSession = flags&connectFlagCleanSession != 0
	p.WillFlag = flags&connectFlagWillFlag != 0
	p.WillQoS = (flags >> 3) & 0x03
	p.WillRetain = flags&connectFlagWillRetain != 0

	p.KeepAlive, n, err = decodeUint16(r)
	total += n
	if err != nil {
		return total, err
	}

	p.ClientID, n, err = decodeString(r)
	total += n
	if err != nil {
		return total, err
	}

	if p.WillFlag {
		p.WillTopic, n, err = decodeString(r)
		total += n
		if err != nil {
			return total, err
		}

		p.WillPayload, n, err = decodeBinary(r)
		total += n
		if err != nil {
			return total, err
		}
	}

	if flags&connectFlagUsernameFlag != 0 {
		p.Username, n, err = decodeString(r)
		total += n
		if err != nil {
			return total, err
		}
	}

	if flags&connectFlagPasswordFlag != 0 {
		p.Password, n, err = decodeBinary(r)
		total += n
		if err != nil {
			return total, err
		}
		if p.Password == nil {
			p.Password = []byte{}
		}
	}

	return total, p.Validate()
}

// Validate validates the packet contents.
func (p *ConnectPacket) Validate() error {
	if !p.CleanSession && p.ClientID == "" {
		return ErrClientIDRequired
	}
	if p.WillQoS > 2 {
		return ErrInvalidConnectFlags
	}
	if !p.WillFlag && (p.WillRetain || p.WillQoS != 0) {
		return ErrInvalidConnectFlags
	}
	if p.Password != nil && p.Username == "" {
		return ErrPasswordWithoutUser
	}
	return nil
}
