package mqttflow

// ConnAckCode is the return code carried by a CONNACK packet.
// MQTT 3.1.1: Section 3.2.2.3
type ConnAckCode byte

// CONNACK return codes.
const (
	ConnAccepted           ConnAckCode = 0x00
	ConnRefusedProtocol    ConnAckCode = 0x01
	ConnRefusedIDRejected  ConnAckCode = 0x02
	ConnRefusedUnavailable ConnAckCode = 0x03
	ConnRefusedBadAuth     ConnAckCode = 0x04
	ConnRefusedNotAuth     ConnAckCode = 0x05
)

// String returns a human-readable description of the return code.
func (c ConnAckCode) String() string {
	switch c {
	case ConnAccepted:
		return "connection accepted"
	case ConnRefusedProtocol:
		return "unacceptable protocol version"
	case ConnRefusedIDRejected:
		return "identifier rejected"
	case ConnRefusedUnavailable:
		return "server unavailable"
	case ConnRefusedBadAuth:
		return "bad user name or password"
	case ConnRefusedNotAuth:
		return "not authorized"
	default:
		return "unknown return code"
	}
}

// Accepted reports whether the broker accepted the connection.
func (c ConnAckCode) Accepted() bool {
	return c == ConnAccepted
}

// SubackFailure is the SUBACK return code for a rejected subscription.
// MQTT 3.1.1: Section 3.9.3
const SubackFailure byte = 0x80
