package mqttflow

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// quicALPN is the application protocol negotiated for MQTT over QUIC.
const quicALPN = "mqtt"

// QUICConn wraps a single bidirectional QUIC stream to implement net.Conn.
type QUICConn struct {
	conn   *quic.Conn
	stream *quic.Stream

	closeOnce sync.Once
	closeErr  error
}

// Read reads data from the QUIC stream.
func (c *QUICConn) Read(b []byte) (int, error) {
	return c.stream.Read(b)
}

// Write writes data to the QUIC stream.
func (c *QUICConn) Write(b []byte) (int, error) {
	return c.stream.Write(b)
}

// Close closes the stream and the QUIC connection carrying it.
func (c *QUICConn) Close() error {
	c.closeOnce.Do(func() {
		streamErr := c.stream.Close()
		connErr := c.conn.CloseWithError(0, "")
		if streamErr != nil {
			c.closeErr = streamErr
		} else {
			c.closeErr = connErr
		}
	})
	return c.closeErr
}

// LocalAddr returns the local network address.
func (c *QUICConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *QUICConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// SetDeadline sets the read and write deadlines.
func (c *QUICConn) SetDeadline(t time.Time) error {
	return c.stream.SetDeadline(t)
}

// SetReadDeadline sets the read deadline.
func (c *QUICConn) SetReadDeadline(t time.Time) error {
	return c.stream.SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline.
func (c *QUICConn) SetWriteDeadline(t time.Time) error {
	return c.stream.SetWriteDeadline(t)
}

// QUICDialer connects to MQTT brokers over QUIC.
type QUICDialer struct {
	// TLSConfig is the TLS configuration for the QUIC connection.
	// QUIC requires TLS 1.3; the mqtt ALPN is added when missing.
	TLSConfig *tls.Config

	// QUICConfig is the QUIC configuration.
	QUICConfig *quic.Config
}

// Dial connects to the QUIC address in "host:port" form and opens the
// stream that carries MQTT packets.
func (d *QUICDialer) Dial(ctx context.Context, address string) (Conn, error) {
	conn, err := quic.DialAddr(ctx, address, quicTLSConfig(d.TLSConfig), d.QUICConfig)
	if err != nil {
		return nil, err
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "failed to open stream")
		return nil, err
	}

	return &QUICConn{conn: conn, stream: stream}, nil
}

// NewQUICDialer creates a new QUIC dialer.
func NewQUICDialer(tlsConfig *tls.Config) *QUICDialer {
	return &QUICDialer{TLSConfig: quicTLSConfig(tlsConfig)}
}

func quicTLSConfig(config *tls.Config) *tls.Config {
	if config == nil {
		return &tls.Config{
			MinVersion: tls.VersionTLS13,
			NextProtos: []string{quicALPN},
		}
	}

	if config.MinVersion >= tls.VersionTLS13 && len(config.NextProtos) > 0 {
		return config
	}

	config = config.Clone()
	if config.MinVersion < tls.VersionTLS13 {
		config.MinVersion = tls.VersionTLS13
	}
	if len(config.NextProtos) == 0 {
		config.NextProtos = []string{quicALPN}
	}
	return config
}
