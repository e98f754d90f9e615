package mqttflow

import (
	"context"
	"fmt"
	"time"
)

// connect starts a connect attempt. The timer covers the dial; once the
// transport is open it is re-armed for the CONNACK wait.
func (e *Engine) connect(conn *Connection, timeout time.Duration, f *Future[*Connection]) {
	if e.closed.Load() {
		e.state.set(StateIdle)
		f.reject(NewLogicError("connect", ErrClientClosed))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &connectAttempt{
		conn:    conn,
		future:  f,
		timeout: timeout,
		cancel:  cancel,
	}
	e.attempt = a
	a.timer = e.loop.after(timeout, func() {
		e.failConnect(a, fmt.Errorf("%w after %s", ErrConnectTimeout, timeout))
	})

	e.logger.Info("connecting", LogFields{LogFieldClientID: conn.ClientID})

	go func() {
		c, err := e.dialer.Dial(ctx, e.address)
		if !e.loop.post(func() { e.handleDial(a, c, err) }) && c != nil {
			c.Close()
		}
	}()
}

func (e *Engine) handleDial(a *connectAttempt, c Conn, err error) {
	if e.attempt != a {
		if c != nil {
			c.Close()
		}
		return
	}
	if err != nil {
		e.failConnect(a, fmt.Errorf("dial %s: %w", e.address, err))
		return
	}

	e.loop.cancel(a.timer)

	s := newStream(c, e.loop, e, e.opts.writeHighWater, e.opts.writeTimeout)
	e.stream = s
	e.blocked = false
	s.start()

	e.logger.Debug("transport open", nil)
	e.emit(OpenEvent{Address: e.address})

	a.timer = e.loop.after(a.timeout, func() {
		e.failConnect(a, fmt.Errorf("%w: no CONNACK within %s", ErrResponseTimeout, a.timeout))
	})

	e.startFlow(e.opts.flowFactory.OutgoingConnect(a.conn), flowParams{
		silent:      true,
		ownsFailure: true,
		complete: func(result any, err error) {
			e.handleConnectResult(a, result, err)
		},
	})
}

func (e *Engine) handleConnectResult(a *connectAttempt, result any, err error) {
	if e.attempt != a {
		return
	}
	if err != nil {
		e.failConnect(a, err)
		return
	}

	conn, ok := result.(*Connection)
	if !ok {
		e.failConnect(a, fmt.Errorf("%w: unexpected connect result %T", ErrFlowFailed, result))
		return
	}

	e.attempt = nil
	e.loop.cancel(a.timer)
	a.cancel()

	e.connection.Store(conn)
	e.state.set(StateConnected)
	e.metrics.connected()
	e.startKeepAlive(conn.KeepAlive)

	e.logger.Info("connected", LogFields{
		LogFieldClientID:  conn.ClientID,
		"session_present": conn.SessionPresent,
	})
	e.emit(ConnectEvent{Connection: conn})
	a.future.resolve(conn)
}

// failConnect ends a connect attempt with err. An open transport is closed.
func (e *Engine) failConnect(a *connectAttempt, err error) {
	if e.attempt != a {
		return
	}
	e.attempt = nil
	e.loop.cancel(a.timer)
	a.cancel()

	e.state.set(StateIdle)
	e.metrics.connectFailed()
	e.logger.Error("connect failed", LogFields{
		LogFieldClientID: a.conn.ClientID,
		LogFieldError:    err.Error(),
	})
	e.emit(ErrorEvent{Err: err})

	if s := e.stream; s != nil {
		e.stream = nil
		e.abortFlows(ErrConnectionClosed)
		e.resetSession()
		s.close()
		e.emit(CloseEvent{})
	}

	a.future.reject(err)
}

func (e *Engine) disconnect(timeout time.Duration, f *Future[*Connection]) {
	s := e.stream
	conn := e.connection.Load()
	if s == nil || conn == nil {
		f.reject(ErrConnectionClosed)
		return
	}

	e.disconnecting = f
	e.stopKeepAlive()
	e.logger.Info("disconnecting", LogFields{LogFieldClientID: conn.ClientID})

	e.startFlow(e.opts.flowFactory.OutgoingDisconnect(conn), flowParams{
		silent:      true,
		ownsFailure: true,
		complete: func(_ any, err error) {
			if err != nil {
				e.forceClose(s, f)
				return
			}
			// The broker is expected to close the transport; the timer
			// only fires if it does not.
			e.loop.after(timeout, func() { e.forceClose(s, f) })
		},
	})
}

// forceClose closes s if the disconnect f is still waiting on it.
func (e *Engine) forceClose(s *stream, f *Future[*Connection]) {
	if e.stream != s || e.disconnecting != f {
		return
	}
	e.logger.Debug("closing transport after disconnect", nil)
	s.close()
}

// streamClosed handles the transport close, whoever initiated it.
func (e *Engine) streamClosed(s *stream) {
	if s != e.stream {
		return
	}
	if a := e.attempt; a != nil {
		e.failConnect(a, ErrConnectionClosed)
		return
	}
	e.teardown(ErrConnectionClosed)
}

// teardown drops the session after the transport closed: pending flows are
// rejected with cause, timers are cancelled and the state returns to Idle.
func (e *Engine) teardown(cause error) {
	prev := e.connection.Swap(nil)
	e.stream = nil
	e.keepAlive = nil

	e.abortFlows(cause)
	e.loop.cancelAll()
	e.resetSession()
	e.state.set(StateIdle)

	if prev != nil {
		e.metrics.disconnected()
	}
	e.emit(CloseEvent{Connection: prev})

	if f := e.disconnecting; f != nil {
		e.disconnecting = nil
		e.logger.Info("disconnected", nil)
		e.emit(DisconnectEvent{Connection: prev})
		f.resolve(prev)
		return
	}

	if prev != nil {
		e.logger.Warn("connection lost", LogFields{
			LogFieldClientID: prev.ClientID,
			LogFieldError:    cause.Error(),
		})
	}
}

// resetSession clears per-transport state.
func (e *Engine) resetSession() {
	e.blocked = false
	e.parser.Reset()
	if r, ok := e.opts.flowFactory.(flowFactoryResetter); ok {
		r.Reset()
	}
}
