package mqttflow

import "time"

// keepAliveInterval returns the ping period for a negotiated keep-alive of
// seconds: three quarters of it, rounded down to whole seconds, and at least
// one second. Zero disables keep-alive.
func keepAliveInterval(seconds uint16) time.Duration {
	if seconds == 0 {
		return 0
	}

	interval := time.Duration(int(seconds)*3/4) * time.Second
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

func (e *Engine) startKeepAlive(seconds uint16) {
	e.stopKeepAlive()

	interval := keepAliveInterval(seconds)
	if interval == 0 {
		return
	}
	e.keepAlive = e.loop.every(interval, e.ping)
}

func (e *Engine) stopKeepAlive() {
	e.loop.cancel(e.keepAlive)
	e.keepAlive = nil
}

// ping issues a silent ping flow. A missing PINGRESP only raises a warning;
// the broker closing the transport is what ends the session.
func (e *Engine) ping() {
	if !e.state.isConnected() {
		return
	}
	e.startFlow(e.opts.flowFactory.OutgoingPing(), flowParams{
		silent:  true,
		timeout: e.opts.flowTimeout,
	})
}
