package mqttflow

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file representation of an engine configuration.
//
//	server: tcp://broker:1883
//	client_id: sensor-1
//	keep_alive: 30
//	flow_timeout: 10s
//	subscriptions:
//	  - filter: sensors/+/temperature
//	    qos: 1
type Config struct {
	Server         string        `yaml:"server"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	KeepAlive      uint16        `yaml:"keep_alive"`
	CleanSession   *bool         `yaml:"clean_session"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	FlowTimeout    time.Duration `yaml:"flow_timeout"`
	MaxPacketSize  uint32        `yaml:"max_packet_size"`
	LogLevel       string        `yaml:"log_level"`

	Will    *WillConfig    `yaml:"will"`
	TLS     *TLSConfig     `yaml:"tls"`
	Proxy   string         `yaml:"proxy"`
	Breaker *BreakerConfig `yaml:"dial_breaker"`

	PublishRate  float64 `yaml:"publish_rate"`
	PublishBurst int     `yaml:"publish_burst"`

	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
}

// WillConfig configures the will message.
type WillConfig struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
	QoS     byte   `yaml:"qos"`
	Retain  bool   `yaml:"retain"`
}

// BreakerConfig configures the dial circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// TLSConfig configures the TLS transports.
type TLSConfig struct {
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// SubscriptionConfig is a topic filter subscribed after connect.
type SubscriptionConfig struct {
	Filter string `yaml:"filter"`
	QoS    byte   `yaml:"qos"`
}

// DefaultConfig returns the configuration matching the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:         "tcp://localhost:1883",
		KeepAlive:      60,
		ConnectTimeout: 10 * time.Second,
		FlowTimeout:    30 * time.Second,
		LogLevel:       "info",
	}
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration data on top of DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Server == "" {
		return errors.New("server cannot be empty")
	}
	if _, err := parseServer(c.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if c.Password != "" && c.Username == "" {
		return fmt.Errorf("password: %w", ErrPasswordWithoutUser)
	}
	if c.ConnectTimeout < 0 || c.FlowTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}
	if _, ok := ParseLogLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	if c.Will != nil {
		if err := ValidateTopicName(c.Will.Topic); err != nil {
			return fmt.Errorf("will.topic: %w", err)
		}
		if c.Will.QoS > QoS2 {
			return fmt.Errorf("will.qos: %w", ErrInvalidQoS)
		}
	}

	if c.TLS != nil && (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return errors.New("tls.cert_file and tls.key_file must be set together")
	}

	if c.PublishRate < 0 {
		return errors.New("publish_rate cannot be negative")
	}

	for i, sub := range c.Subscriptions {
		if err := ValidateTopicFilter(sub.Filter); err != nil {
			return fmt.Errorf("subscriptions[%d].filter: %w", i, err)
		}
		if sub.QoS > QoS2 {
			return fmt.Errorf("subscriptions[%d].qos: %w", i, ErrInvalidQoS)
		}
	}

	return nil
}

// Options converts the configuration into engine options. Logger, metrics
// and handlers are not part of the file and are added by the caller.
func (c *Config) Options() ([]Option, error) {
	opts := []Option{
		WithServer(c.Server),
		WithClientID(c.ClientID),
		WithKeepAlive(c.KeepAlive),
	}

	if c.Username != "" {
		opts = append(opts, WithCredentials(c.Username, c.Password))
	}
	if c.CleanSession != nil {
		opts = append(opts, WithCleanSession(*c.CleanSession))
	}
	if c.ConnectTimeout > 0 {
		opts = append(opts, WithConnectTimeout(c.ConnectTimeout))
	}
	if c.FlowTimeout > 0 {
		opts = append(opts, WithFlowTimeout(c.FlowTimeout))
	}
	if c.MaxPacketSize > 0 {
		opts = append(opts, WithMaxPacketSize(c.MaxPacketSize))
	}
	if c.Will != nil {
		opts = append(opts, WithWill(c.Will.Topic, []byte(c.Will.Payload), c.Will.Retain, c.Will.QoS))
	}
	if c.Proxy != "" {
		opts = append(opts, WithProxy(ProxyConfig{URL: c.Proxy}))
	}
	if c.Breaker != nil {
		opts = append(opts, WithDialBreaker(BreakerSettings{
			MaxFailures: c.Breaker.MaxFailures,
			Timeout:     c.Breaker.Timeout,
		}))
	}
	if c.PublishRate > 0 {
		opts = append(opts, WithPublishRateLimit(c.PublishRate, c.PublishBurst))
	}

	if c.TLS != nil {
		tlsConfig, err := c.TLS.build()
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTLS(tlsConfig))
	}

	return opts, nil
}

// Level returns the configured log level.
func (c *Config) Level() LogLevel {
	level, _ := ParseLogLevel(c.LogLevel)
	return level
}

func (t *TLSConfig) build() (*tls.Config, error) {
	config := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec // opt-in for test brokers
	}

	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read tls.ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("tls.ca_file %s: no certificates found", t.CAFile)
		}
		config.RootCAs = pool
	}

	if t.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}
