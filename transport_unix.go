package mqttflow

import (
	"context"
	"net"
)

// UnixDialer connects to MQTT brokers over Unix domain sockets.
type UnixDialer struct{}

// Dial connects to the Unix socket at the given path.
// The address should be the socket file path (e.g., "/var/run/mqtt.sock").
func (d *UnixDialer) Dial(ctx context.Context, address string) (Conn, error) {
	var dialer net.Dialer
	return dialer.DialContext(ctx, "unix", address)
}

// NewUnixDialer creates a new Unix socket dialer.
func NewUnixDialer() *UnixDialer {
	return &UnixDialer{}
}
