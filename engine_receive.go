package mqttflow

import "fmt"

// streamData parses inbound bytes and dispatches every complete packet.
func (e *Engine) streamData(s *stream, data []byte) {
	if s != e.stream {
		return
	}
	e.metrics.bytesReceived(len(data))

	for _, packet := range e.parser.Push(data) {
		e.handlePacket(packet)
		if e.stream != s {
			// a packet ended the session
			return
		}
	}

	e.handleSend()
}

func (e *Engine) streamDrained(s *stream) {
	if s != e.stream {
		return
	}
	e.blocked = false
	e.handleSend()
}

func (e *Engine) streamError(s *stream, err error) {
	if s != e.stream {
		return
	}
	e.logger.Error("transport error", LogFields{LogFieldError: err.Error()})
	e.emit(ErrorEvent{Err: fmt.Errorf("transport: %w", err)})
}

func (e *Engine) parseError(err error) {
	e.logger.Warn("malformed inbound data", LogFields{LogFieldError: err.Error()})
	e.emit(WarningEvent{Err: err})
}

// handlePacket routes one inbound packet. PUBLISH starts an incoming flow,
// acknowledgements go to the first pending flow accepting them.
func (e *Engine) handlePacket(packet Packet) {
	e.metrics.packetReceived(packet)
	if e.logger.Level() <= LogLevelDebug {
		e.logger.Debug("packet received", packetFields(packet))
	}

	if pub, ok := packet.(*PublishPacket); ok {
		flow := e.opts.flowFactory.IncomingPublish(pub.ToMessage(), pub.PacketID)
		e.startFlow(flow, flowParams{timeout: e.opts.flowTimeout})
		return
	}

	if !packet.Type().IsAcknowledgement() {
		err := fmt.Errorf("%w: %s", ErrUnhandledPacket, packet.Type())
		e.logger.Warn("cannot handle packet", LogFields{LogFieldPacketType: packet.Type().String()})
		e.emit(WarningEvent{Err: err})
		return
	}

	w := e.receivingFlows.take(func(w *flowWrapper) bool {
		return w.flow.Accept(packet)
	})
	if w == nil {
		// The ack may overtake the drain event of its own request.
		if written := e.writtenFlow; written != nil && !written.settled && written.flow.Accept(packet) {
			w = written
			e.writtenFlow = nil
		}
	}

	if w == nil {
		err := newUnexpectedPacketError(packet)
		e.logger.Warn("unexpected packet", packetFields(packet))
		e.emit(WarningEvent{Err: err})
		return
	}

	e.continueFlow(w, packet)
}
