package mqttflow

import (
	"errors"
	"sync"
)

var (
	ErrPacketIDExhausted = errors.New("no available packet IDs")
	ErrPacketIDNotFound  = errors.New("packet ID not found")
)

// PacketIDManager manages allocation and release of packet IDs (1-65535).
// MQTT 3.1.1: Section 2.3.1
type PacketIDManager struct {
	mu     sync.Mutex
	used   map[uint16]struct{}
	next   uint16
	maxIDs int
}

// NewPacketIDManager creates a new packet ID manager.
func NewPacketIDManager() *PacketIDManager {
	return &PacketIDManager{
		used:   make(map[uint16]struct{}),
		next:   1,
		maxIDs: 65535,
	}
}

// Allocate returns the next available packet ID.
func (m *PacketIDManager) Allocate() (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.used) >= m.maxIDs {
		return 0, ErrPacketIDExhausted
	}

	for {
		id := m.next
		m.next++
		if m.next == 0 {
			m.next = 1
		}
		if _, ok := m.used[id]; !ok {
			m.used[id] = struct{}{}
			return id, nil
		}
	}
}

// Release releases a packet ID for reuse.
func (m *PacketIDManager) Release(id uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.used[id]; !ok {
		return ErrPacketIDNotFound
	}
	delete(m.used, id)
	return nil
}

// IsUsed returns true if the packet ID is currently in use.
func (m *PacketIDManager) IsUsed(id uint16) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.used[id]
	return ok
}

// InUse returns the count of packet IDs currently in use.
func (m *PacketIDManager) InUse() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.used)
}

// Reset releases every allocated ID. Allocation restarts from 1.
func (m *PacketIDManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.used)
	m.next = 1
}
