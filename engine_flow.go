package mqttflow

import "time"

// startFlow runs flow until its first packet is handed to the transport or
// it is parked waiting for the broker. The completion in p fires exactly
// once, on a later loop tick.
func (e *Engine) startFlow(flow Flow, p flowParams) {
	if p.complete == nil {
		p.complete = discardResult
	}

	packet, err := flow.Start()
	if err != nil {
		fe := NewFlowError(flow.Code(), "", err)
		e.logger.Warn("flow start failed", LogFields{
			LogFieldFlow:  string(flow.Code()),
			LogFieldError: err.Error(),
		})
		if !p.ownsFailure {
			e.emit(ErrorEvent{Err: fe})
		}
		p.complete(nil, fe)
		return
	}

	e.nextFlowID++
	w := &flowWrapper{
		id:          e.nextFlowID,
		flow:        flow,
		packet:      packet,
		silent:      p.silent,
		ownsFailure: p.ownsFailure,
		complete:    p.complete,
		transform:   p.transform,
		started:     time.Now(),
	}
	e.metrics.flowStarted(flow.Code())

	if p.timeout > 0 {
		w.timer = e.loop.after(p.timeout, func() { e.expireFlow(w) })
	}

	if packet == nil {
		if flow.Finished() {
			e.scheduleFinish(w)
		} else {
			e.receivingFlows.add(w)
		}
		return
	}

	e.enqueueWrite(w)
}

// continueFlow feeds an accepted inbound packet to w.
func (e *Engine) continueFlow(w *flowWrapper, packet Packet) {
	next, err := w.flow.Next(packet)
	if err != nil {
		e.emit(ErrorEvent{Err: NewFlowError(w.flow.Code(), "", err)})
		e.failFlow(w, err, false)
		return
	}

	switch {
	case next != nil:
		w.packet = next
		e.enqueueWrite(w)
	case w.flow.Finished():
		e.scheduleFinish(w)
	default:
		e.receivingFlows.add(w)
	}
}

// enqueueWrite writes w.packet now, or queues w behind the write in flight.
func (e *Engine) enqueueWrite(w *flowWrapper) {
	if e.stream == nil || !e.stream.isOpen() {
		e.failFlow(w, ErrConnectionClosed, true)
		return
	}

	if e.writtenFlow != nil || e.blocked {
		e.sendingFlows.push(w)
		return
	}

	e.writeFlow(w)
	e.handleSend()
}

// writeFlow hands w.packet to the transport and makes w the written flow.
func (e *Engine) writeFlow(w *flowWrapper) {
	packet := w.packet

	data, err := EncodePacket(packet, 0)
	if err != nil {
		e.logger.Error("encode failed", LogFields{
			LogFieldPacketType: packet.Type().String(),
			LogFieldError:      err.Error(),
		})
		e.failFlow(w, err, true)
		return
	}

	e.writtenFlow = w
	e.metrics.packetSent(packet, len(data))
	if e.logger.Level() <= LogLevelDebug {
		e.logger.Debug("packet sent", packetFields(packet))
	}

	if !e.stream.write(data) {
		e.blocked = true
	}
}

// handleSend retires the written flow, then promotes the head of the send
// queue. It repeats until the queue is empty or the transport pushes back.
func (e *Engine) handleSend() {
	for !e.blocked {
		retired := e.writtenFlow
		e.writtenFlow = nil

		var next *flowWrapper
		if e.stream != nil && e.stream.isOpen() {
			next = e.sendingFlows.pop()
		}
		if next != nil {
			e.writeFlow(next)
		}

		if retired != nil && !retired.settled {
			if retired.flow.Finished() {
				e.scheduleFinish(retired)
			} else {
				e.receivingFlows.add(retired)
			}
		}

		if next == nil {
			return
		}
	}
}

// scheduleFinish completes w on the next loop tick.
func (e *Engine) scheduleFinish(w *flowWrapper) {
	if !e.loop.post(func() { e.finishFlow(w) }) {
		e.finishFlow(w)
	}
}

// finishFlow settles a finished flow, emitting the event for its code.
func (e *Engine) finishFlow(w *flowWrapper) {
	if w.settled {
		return
	}
	w.settled = true
	e.loop.cancel(w.timer)

	code := w.flow.Code()
	if !w.flow.Success() {
		var cause error
		if ff, ok := w.flow.(flowFailure); ok {
			cause = ff.Err()
		}
		fe := NewFlowError(code, w.flow.ErrorMessage(), cause)

		e.metrics.flowFinished(code, false, time.Since(w.started))
		e.logger.Warn("flow failed", LogFields{
			LogFieldFlow:  string(code),
			LogFieldError: fe.Message,
		})
		if !w.ownsFailure {
			e.emit(WarningEvent{Err: fe})
		}
		w.complete(nil, fe)
		return
	}

	result := w.flow.Result()
	if w.transform != nil {
		result = w.transform(result)
	}
	e.metrics.flowFinished(code, true, time.Since(w.started))

	if code == FlowMessage {
		result = e.deliverMessage(result, w.silent)
	} else if !w.silent {
		e.emitFlowEvent(code, result)
	}
	w.complete(result, nil)
}

// deliverMessage runs the consumer interceptors and emits the message
// event. A message dropped by an interceptor is acknowledged but not emitted.
func (e *Engine) deliverMessage(result any, silent bool) any {
	msg, ok := result.(*Message)
	if !ok || msg == nil {
		return result
	}

	msg = applyConsumerInterceptors(e.logger, e.opts.consumerInterceptors, msg)
	if msg == nil {
		e.logger.Debug("message dropped by interceptor", nil)
		return nil
	}
	if !silent {
		e.emit(MessageEvent{Message: msg})
	}
	return msg
}

func (e *Engine) emitFlowEvent(code FlowCode, result any) {
	switch code {
	case FlowConnect:
		if conn, ok := result.(*Connection); ok {
			e.emit(ConnectEvent{Connection: conn})
		}
	case FlowDisconnect:
		if conn, ok := result.(*Connection); ok {
			e.emit(DisconnectEvent{Connection: conn})
		}
	case FlowPublish:
		if msg, ok := result.(*Message); ok {
			e.emit(PublishEvent{Message: msg})
		}
	case FlowSubscribe:
		if sub, ok := result.(Subscription); ok {
			e.emit(SubscribeEvent{Subscription: sub})
		}
	case FlowUnsubscribe:
		if sub, ok := result.(Subscription); ok {
			e.emit(UnsubscribeEvent{Subscription: sub})
		}
	}
}

// expireFlow fails w when the broker did not answer within the flow timeout.
func (e *Engine) expireFlow(w *flowWrapper) {
	if w.settled {
		return
	}

	e.sendingFlows.remove(w)
	e.receivingFlows.remove(w.id)
	// A written flow stays in its slot; handleSend drops it once settled.

	e.logger.Warn("flow timed out", LogFields{
		LogFieldFlow:     string(w.flow.Code()),
		LogFieldDuration: time.Since(w.started).String(),
	})
	e.failFlow(w, ErrResponseTimeout, true)
}

// failFlow terminates w outside its own state machine and rejects its
// completion with a FlowError wrapping err.
func (e *Engine) failFlow(w *flowWrapper, err error, warn bool) {
	if w.settled {
		return
	}
	w.settled = true
	e.loop.cancel(w.timer)

	if a, ok := w.flow.(flowAborter); ok {
		a.abort(err)
	}

	code := w.flow.Code()
	fe := NewFlowError(code, "", err)
	e.metrics.flowFinished(code, false, time.Since(w.started))

	if warn && !w.ownsFailure {
		e.emit(WarningEvent{Err: fe})
	}
	w.complete(nil, fe)
}

// abortFlows rejects every queued, written and receiving flow with cause.
func (e *Engine) abortFlows(cause error) {
	var pending []*flowWrapper
	if e.writtenFlow != nil {
		pending = append(pending, e.writtenFlow)
		e.writtenFlow = nil
	}
	pending = append(pending, e.sendingFlows.drain()...)
	pending = append(pending, e.receivingFlows.drain()...)
	e.blocked = false

	for _, w := range pending {
		e.failFlow(w, cause, false)
	}
}

func packetFields(packet Packet) LogFields {
	fields := LogFields{LogFieldPacketType: packet.Type().String()}
	if withID, ok := packet.(PacketWithID); ok && withID.GetPacketID() != 0 {
		fields[LogFieldPacketID] = withID.GetPacketID()
	}
	if pub, ok := packet.(*PublishPacket); ok {
		fields[LogFieldTopic] = pub.Topic
		fields[LogFieldQoS] = pub.QoS
	}
	return fields
}
