package mqttflow

import (
	"context"
	"encoding/hex"
	"errors"
	"net"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// ErrEngineNotFound is returned when no engine is registered under a key.
var ErrEngineNotFound = errors.New("engine not found")

// ConnectionKey identifies a physical connection. Engines created with equal
// keys share one session, so the same broker login is never opened twice.
type ConnectionKey struct {
	ClientID string
	Host     string
	Port     string
	Username string

	// PasswordHash is a BLAKE2b-256 fingerprint; the password itself is not kept.
	PasswordHash string
}

func (k ConnectionKey) String() string {
	s := k.ClientID + "@" + net.JoinHostPort(k.Host, k.Port)
	if k.Username != "" {
		s = k.Username + ":" + s
	}
	return s
}

// connectionKey derives the key for an engine configuration.
func connectionKey(o *engineOptions) (ConnectionKey, error) {
	u, err := parseServer(o.server)
	if err != nil {
		return ConnectionKey{}, err
	}

	port := u.Port()
	if port == "" {
		port = defaultPorts[u.Scheme]
	}
	host := u.Hostname()
	if u.Scheme == "unix" {
		host = dialAddress(u)
	}

	key := ConnectionKey{
		ClientID: o.clientID,
		Host:     host,
		Port:     port,
		Username: o.username,
	}
	if o.password != "" {
		sum := blake2b.Sum256([]byte(o.password))
		key.PasswordHash = hex.EncodeToString(sum[:])
	}
	return key, nil
}

// Manager is a registry handing out one Engine per connection identity.
type Manager struct {
	defaults []Option

	mu      sync.Mutex
	engines map[ConnectionKey]*Engine
}

// NewManager creates a manager. The given options apply to every engine it
// creates, before the options passed to GetOrCreate.
func NewManager(defaults ...Option) *Manager {
	return &Manager{
		defaults: defaults,
		engines:  make(map[ConnectionKey]*Engine),
	}
}

// GetOrCreate returns the engine registered for the connection described by
// server and opts, creating it if needed. A closed engine is replaced.
func (m *Manager) GetOrCreate(server string, opts ...Option) (*Engine, ConnectionKey, error) {
	all := make([]Option, 0, len(m.defaults)+len(opts)+1)
	all = append(all, m.defaults...)
	all = append(all, WithServer(server))
	all = append(all, opts...)

	key, err := connectionKey(applyOptions(all...))
	if err != nil {
		return nil, ConnectionKey{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.engines[key]; ok && !e.closed.Load() {
		return e, key, nil
	}

	e, err := New(all...)
	if err != nil {
		return nil, ConnectionKey{}, err
	}
	m.engines[key] = e
	return e, key, nil
}

// Get returns the engine registered under key.
func (m *Manager) Get(key ConnectionKey) (*Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.engines[key]
	return e, ok
}

// Remove unregisters and closes the engine registered under key.
func (m *Manager) Remove(key ConnectionKey) error {
	m.mu.Lock()
	e, ok := m.engines[key]
	delete(m.engines, key)
	m.mu.Unlock()

	if !ok {
		return ErrEngineNotFound
	}
	if err := e.Close(); err != nil && !errors.Is(err, ErrClientClosed) {
		return err
	}
	return nil
}

// Len returns the number of registered engines.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.engines)
}

// ShutdownAll disconnects every connected engine gracefully, closes all of
// them and empties the registry. It returns once every event loop exited
// or ctx is done.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.mu.Lock()
	engines := make([]*Engine, 0, len(m.engines))
	for _, e := range m.engines {
		engines = append(engines, e)
	}
	clear(m.engines)
	m.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, e := range engines {
		wg.Add(1)
		go func(e *Engine) {
			defer wg.Done()
			if err := shutdownEngine(ctx, e); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(e)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func shutdownEngine(ctx context.Context, e *Engine) error {
	var disconnectErr error
	if e.IsConnected() {
		_, disconnectErr = e.Disconnect(0).Await(ctx)
		if errors.Is(disconnectErr, ErrNotConnected) {
			disconnectErr = nil
		}
	}

	if err := e.Close(); err != nil && !errors.Is(err, ErrClientClosed) {
		return errors.Join(disconnectErr, err)
	}

	select {
	case <-e.Done():
		return disconnectErr
	case <-ctx.Done():
		return errors.Join(disconnectErr, ctx.Err())
	}
}
