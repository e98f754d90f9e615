package mqttflow

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// ProxyConfig holds proxy configuration for broker connections.
type ProxyConfig struct {
	// URL is the proxy URL in format: http://host:port or socks5://host:port
	URL string
	// Username for proxy authentication (optional)
	Username string
	// Password for proxy authentication (optional)
	Password string
}

// ProxyDialer tunnels TCP connections through HTTP CONNECT or SOCKS5 proxies.
type ProxyDialer struct {
	proxyURL *url.URL
	username string
	password string
	forward  net.Dialer
}

// NewProxyDialer creates a new proxy dialer from the given proxy URL.
// Supported schemes: http, https (HTTP CONNECT), socks5, socks5h.
// Credentials embedded in the URL are used when none are given.
func NewProxyDialer(proxyURL, username, password string) (*ProxyDialer, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}

	if username == "" && u.User != nil {
		username = u.User.Username()
		password, _ = u.User.Password()
	}

	return &ProxyDialer{proxyURL: u, username: username, password: password}, nil
}

// Dial connects to the host:port address through the proxy.
func (d *ProxyDialer) Dial(ctx context.Context, address string) (Conn, error) {
	return d.DialContext(ctx, "tcp", address)
}

// DialContext connects to the target address through the proxy.
func (d *ProxyDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if d.proxyURL.Scheme == "http" || d.proxyURL.Scheme == "https" {
		return d.dialHTTPConnect(ctx, addr)
	}
	return d.dialSOCKS5(ctx, network, addr)
}

func (d *ProxyDialer) proxyAddress() string {
	if d.proxyURL.Port() != "" {
		return d.proxyURL.Host
	}

	port := "1080"
	switch d.proxyURL.Scheme {
	case "http":
		port = "8080"
	case "https":
		port = "443"
	}
	return net.JoinHostPort(d.proxyURL.Hostname(), port)
}

func (d *ProxyDialer) dialHTTPConnect(ctx context.Context, targetAddr string) (net.Conn, error) {
	conn, err := d.forward.DialContext(ctx, "tcp", d.proxyAddress())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to proxy: %w", err)
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: targetAddr},
		Host:   targetAddr,
		Header: make(http.Header),
	}
	if d.username != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(d.username + ":" + d.password))
		req.Header.Set("Proxy-Authorization", "Basic "+creds)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send CONNECT request: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read CONNECT response: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("proxy CONNECT failed: %s", resp.Status)
	}

	return conn, nil
}

func (d *ProxyDialer) dialSOCKS5(ctx context.Context, network, targetAddr string) (net.Conn, error) {
	var auth *proxy.Auth
	if d.username != "" {
		auth = &proxy.Auth{User: d.username, Password: d.password}
	}

	dialer, err := proxy.SOCKS5("tcp", d.proxyAddress(), auth, &d.forward)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	// The x/net SOCKS5 dialer implements proxy.ContextDialer.
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		conn, err := cd.DialContext(ctx, network, targetAddr)
		if err != nil {
			return nil, fmt.Errorf("SOCKS5 dial failed: %w", err)
		}
		return conn, nil
	}

	conn, err := dialer.Dial(network, targetAddr)
	if err != nil {
		return nil, fmt.Errorf("SOCKS5 dial failed: %w", err)
	}
	return conn, nil
}

// ProxyFromEnvironment returns the proxy URL for the given broker URL based
// on HTTP_PROXY, HTTPS_PROXY and NO_PROXY (or their lowercase forms).
// Secure schemes prefer HTTPS_PROXY and fall back to HTTP_PROXY.
// Returns nil if no proxy should be used.
func ProxyFromEnvironment(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, nil
	}

	if bypassProxy(u.Hostname(), lookupEnv("NO_PROXY")) {
		return nil, nil
	}

	var proxyEnv string
	switch u.Scheme {
	case "https", "tls", "ssl", "mqtts", "wss":
		proxyEnv = lookupEnv("HTTPS_PROXY")
	}
	if proxyEnv == "" {
		proxyEnv = lookupEnv("HTTP_PROXY")
	}
	if proxyEnv == "" {
		return nil, nil
	}

	return url.Parse(proxyEnv)
}

func lookupEnv(name string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return os.Getenv(strings.ToLower(name))
}

// bypassProxy reports whether host is covered by a NO_PROXY list.
func bypassProxy(host, noProxy string) bool {
	for _, pattern := range strings.Split(noProxy, ",") {
		pattern = strings.TrimSpace(pattern)
		switch {
		case pattern == "":
			continue
		case pattern == "*":
			return true
		case strings.HasPrefix(pattern, "."):
			if strings.HasSuffix(host, pattern) || host == pattern[1:] {
				return true
			}
		case host == pattern || strings.HasSuffix(host, "."+pattern):
			return true
		}
	}
	return false
}
