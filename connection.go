package mqttflow

// Connection describes one logical MQTT session. A Connection value is
// created when the broker accepts a CONNECT and is never shared between
// engines.
type Connection struct {
	// ClientID is the client identifier sent to the broker.
	ClientID string

	// Username and Password are the optional credentials.
	Username string
	Password string

	// KeepAlive is the keep-alive interval in seconds. Zero disables pings.
	KeepAlive uint16

	// CleanSession asks the broker to discard any stored session.
	CleanSession bool

	// Will is published by the broker if the connection is lost.
	Will *Message

	// SessionPresent is reported by the broker in CONNACK.
	SessionPresent bool
}

// Clone returns a copy of the connection.
func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Will = c.Will.Clone()
	return &clone
}

// connectPacket builds the CONNECT packet for this connection.
func (c *Connection) connectPacket() *ConnectPacket {
	pkt := &ConnectPacket{
		ClientID:     c.ClientID,
		CleanSession: c.CleanSession,
		KeepAlive:    c.KeepAlive,
		Username:     c.Username,
	}
	if c.Password != "" {
		pkt.Password = []byte(c.Password)
	}
	if c.Will != nil {
		pkt.WillFlag = true
		pkt.WillTopic = c.Will.Topic
		pkt.WillPayload = c.Will.Payload
		pkt.WillQoS = c.Will.QoS
		pkt.WillRetain = c.Will.Retain
	}
	return pkt
}
