package mqttflow

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// ErrUnsupportedScheme is returned for server URLs with an unknown scheme.
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// Conn represents a network connection to a broker.
type Conn interface {
	net.Conn
}

// Dialer establishes connections to brokers.
type Dialer interface {
	// Dial connects to the address with the given context.
	Dial(ctx context.Context, address string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, address string) (Conn, error)

// Dial calls f(ctx, address).
func (f DialerFunc) Dial(ctx context.Context, address string) (Conn, error) {
	return f(ctx, address)
}

// TCPDialer connects to MQTT brokers over TCP.
type TCPDialer struct {
	// Timeout is the maximum time to wait for a connection.
	// Zero means no timeout.
	Timeout time.Duration

	// Proxy routes the connection through an HTTP CONNECT or SOCKS5 proxy.
	Proxy *ProxyDialer
}

// Dial connects to the address.
func (d *TCPDialer) Dial(ctx context.Context, address string) (Conn, error) {
	if d.Proxy != nil {
		return d.Proxy.DialContext(ctx, "tcp", address)
	}

	dialer := net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, "tcp", address)
}

// TLSDialer connects to MQTT brokers over TLS.
type TLSDialer struct {
	// Config is the TLS configuration.
	Config *tls.Config

	// Timeout is the maximum time to wait for a connection.
	// Zero means no timeout.
	Timeout time.Duration

	// Proxy routes the connection through an HTTP CONNECT or SOCKS5 proxy.
	// The TLS handshake runs end to end over the tunnel.
	Proxy *ProxyDialer
}

// Dial connects to the address.
func (d *TLSDialer) Dial(ctx context.Context, address string) (Conn, error) {
	config := d.Config
	if config == nil {
		config = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if d.Proxy == nil {
		dialer := &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: d.Timeout},
			Config:    config,
		}
		return dialer.DialContext(ctx, "tcp", address)
	}

	raw, err := d.Proxy.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	if config.ServerName == "" {
		if host, _, splitErr := net.SplitHostPort(address); splitErr == nil {
			config = config.Clone()
			config.ServerName = host
		}
	}

	conn := tls.Client(raw, config)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	return conn, nil
}

// defaultPorts maps URL schemes to the port used when the URL has none.
var defaultPorts = map[string]string{
	"tcp":   "1883",
	"mqtt":  "1883",
	"ssl":   "8883",
	"tls":   "8883",
	"mqtts": "8883",
	"ws":    "80",
	"wss":   "443",
	"quic":  "8883",
}

// parseServer validates a broker URL such as tcp://host:1883.
func parseServer(server string) (*url.URL, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}

	switch u.Scheme {
	case "unix":
		if u.Path == "" && u.Host == "" {
			return nil, fmt.Errorf("invalid server address %q: missing socket path", server)
		}
	case "":
		return nil, fmt.Errorf("invalid server address %q: missing scheme", server)
	default:
		if _, ok := defaultPorts[u.Scheme]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
		}
		if u.Hostname() == "" {
			return nil, fmt.Errorf("invalid server address %q: missing host", server)
		}
	}

	return u, nil
}

// dialAddress returns the address handed to the Dialer for u: host:port for
// stream transports, the full URL for WebSocket and the socket path for unix.
func dialAddress(u *url.URL) string {
	switch u.Scheme {
	case "ws", "wss":
		if u.Port() != "" {
			return u.String()
		}
		clone := *u
		clone.Host = net.JoinHostPort(u.Hostname(), defaultPorts[u.Scheme])
		return clone.String()
	case "unix":
		if u.Path == "" {
			return u.Host
		}
		return u.Host + u.Path
	default:
		if u.Port() != "" {
			return u.Host
		}
		return net.JoinHostPort(u.Hostname(), defaultPorts[u.Scheme])
	}
}

// newSchemeDialer builds the Dialer for the scheme of u.
func newSchemeDialer(u *url.URL, o *engineOptions) (Dialer, error) {
	proxyDialer, err := resolveProxy(u.String(), o)
	if err != nil {
		return nil, fmt.Errorf("proxy configuration error: %w", err)
	}

	switch u.Scheme {
	case "tcp", "mqtt":
		return &TCPDialer{Proxy: proxyDialer}, nil
	case "ssl", "tls", "mqtts":
		return &TLSDialer{Config: o.tlsConfig, Proxy: proxyDialer}, nil
	case "ws", "wss":
		wsDialer := NewWSDialer()
		if o.tlsConfig != nil {
			wsDialer.Dialer.TLSClientConfig = o.tlsConfig
		}
		if proxyDialer != nil {
			wsDialer.Dialer.NetDialContext = proxyDialer.DialContext
		}
		return wsDialer, nil
	case "unix":
		// Proxy is not applicable to unix sockets.
		return NewUnixDialer(), nil
	case "quic":
		// QUIC runs over UDP and cannot be tunneled through the proxy.
		return NewQUICDialer(o.tlsConfig), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

// resolveProxy returns the ProxyDialer configured for target, or nil.
func resolveProxy(target string, o *engineOptions) (*ProxyDialer, error) {
	if o.proxyConfig != nil {
		return NewProxyDialer(o.proxyConfig.URL, o.proxyConfig.Username, o.proxyConfig.Password)
	}

	if o.proxyFromEnv {
		proxyURL, err := ProxyFromEnvironment(target)
		if err != nil {
			return nil, err
		}
		if proxyURL != nil {
			return NewProxyDialer(proxyURL.String(), "", "")
		}
	}

	return nil, nil
}
