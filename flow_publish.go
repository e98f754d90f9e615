package mqttflow

// outgoingPublishFlow sends PUBLISH and runs the QoS acknowledgement
// exchange:
//
//	QoS 0: PUBLISH
//	QoS 1: PUBLISH -> PUBACK
//	QoS 2: PUBLISH -> PUBREC, PUBREL -> PUBCOMP
type outgoingPublishFlow struct {
	flowState
	ids      *PacketIDManager
	msg      *Message
	packetID uint16
	released bool // PUBREL sent, waiting for PUBCOMP
}

func (f *outgoingPublishFlow) Code() FlowCode { return FlowPublish }

func (f *outgoingPublishFlow) Start() (Packet, error) {
	pkt := &PublishPacket{}
	pkt.FromMessage(f.msg)

	if f.msg.QoS > QoS0 {
		id, err := allocateID(f.ids, &f.flowState)
		if err != nil {
			return nil, err
		}
		f.packetID = id
		pkt.PacketID = id
	}

	if err := pkt.Validate(); err != nil {
		f.fail(err)
		return nil, err
	}

	if f.msg.QoS == QoS0 {
		f.succeed(f.msg)
	}
	return pkt, nil
}

func (f *outgoingPublishFlow) Accept(packet Packet) bool {
	if f.finished {
		return false
	}

	switch p := packet.(type) {
	case *PubackPacket:
		return f.msg.QoS == QoS1 && p.PacketID == f.packetID
	case *PubrecPacket:
		return f.msg.QoS == QoS2 && !f.released && p.PacketID == f.packetID
	case *PubcompPacket:
		return f.msg.QoS == QoS2 && f.released && p.PacketID == f.packetID
	default:
		return false
	}
}

func (f *outgoingPublishFlow) Next(packet Packet) (Packet, error) {
	switch packet.(type) {
	case *PubrecPacket:
		f.released = true
		return &PubrelPacket{PacketID: f.packetID}, nil
	default:
		f.succeed(f.msg)
		return nil, nil
	}
}

// incomingPublishFlow acknowledges a PUBLISH received from the broker:
//
//	QoS 0: nothing to send
//	QoS 1: PUBACK
//	QoS 2: PUBREC, then PUBREL -> PUBCOMP
type incomingPublishFlow struct {
	flowState
	msg      *Message
	packetID uint16
}

func (f *incomingPublishFlow) Code() FlowCode { return FlowMessage }

func (f *incomingPublishFlow) Start() (Packet, error) {
	switch f.msg.QoS {
	case QoS0:
		f.succeed(f.msg)
		return nil, nil
	case QoS1:
		f.succeed(f.msg)
		return &PubackPacket{PacketID: f.packetID}, nil
	case QoS2:
		return &PubrecPacket{PacketID: f.packetID}, nil
	default:
		return nil, ErrInvalidQoS
	}
}

func (f *incomingPublishFlow) Accept(packet Packet) bool {
	pubrel, ok := packet.(*PubrelPacket)
	return ok && !f.finished && f.msg.QoS == QoS2 && pubrel.PacketID == f.packetID
}

func (f *incomingPublishFlow) Next(Packet) (Packet, error) {
	f.succeed(f.msg)
	return &PubcompPacket{PacketID: f.packetID}, nil
}
