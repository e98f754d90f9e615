package mqttflow

// connectFlow sends CONNECT and waits for CONNACK.
type connectFlow struct {
	flowState
	conn *Connection
}

func (f *connectFlow) Code() FlowCode { return FlowConnect }

func (f *connectFlow) Start() (Packet, error) {
	pkt := f.conn.connectPacket()
	if err := pkt.Validate(); err != nil {
		return nil, err
	}
	return pkt, nil
}

func (f *connectFlow) Accept(packet Packet) bool {
	if f.finished {
		return false
	}
	_, ok := packet.(*ConnackPacket)
	return ok
}

func (f *connectFlow) Next(packet Packet) (Packet, error) {
	connack := packet.(*ConnackPacket)
	if !connack.ReturnCode.Accepted() {
		f.fail(NewConnectError(connack.ReturnCode))
		return nil, nil
	}

	conn := f.conn.Clone()
	conn.SessionPresent = connack.SessionPresent
	f.succeed(conn)
	return nil, nil
}

// disconnectFlow sends DISCONNECT. It finishes as soon as the packet is
// written since the broker never answers.
type disconnectFlow struct {
	flowState
	conn *Connection
}

func (f *disconnectFlow) Code() FlowCode { return FlowDisconnect }

func (f *disconnectFlow) Start() (Packet, error) {
	f.succeed(f.conn)
	return &DisconnectPacket{}, nil
}

func (f *disconnectFlow) Accept(Packet) bool { return false }

func (f *disconnectFlow) Next(Packet) (Packet, error) { return nil, nil }

// pingFlow sends PINGREQ and waits for PINGRESP.
type pingFlow struct {
	flowState
}

func (f *pingFlow) Code() FlowCode { return FlowPing }

func (f *pingFlow) Start() (Packet, error) {
	return &PingreqPacket{}, nil
}

func (f *pingFlow) Accept(packet Packet) bool {
	if f.finished {
		return false
	}
	_, ok := packet.(*PingrespPacket)
	return ok
}

func (f *pingFlow) Next(Packet) (Packet, error) {
	f.succeed(nil)
	return nil, nil
}
