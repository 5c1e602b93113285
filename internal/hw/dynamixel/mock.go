package dynamixel

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/PanTrack/internal/debug"
)

// MockBus is an in-memory bus for development without hardware.
// Written goals become the present position immediately.
type MockBus struct {
	mu       sync.Mutex
	present  map[uint8]int
	torque   map[uint8]bool
	writes   map[uint8]int
	failures map[uint8][]error
}

// NewMockBus creates a mock bus with the given present positions.
func NewMockBus(present map[uint8]int) *MockBus {
	m := &MockBus{
		present:  make(map[uint8]int),
		torque:   make(map[uint8]bool),
		writes:   make(map[uint8]int),
		failures: make(map[uint8][]error),
	}
	for id, raw := range present {
		m.present[id] = raw
	}
	debug.Info("Using MOCK servo bus (development mode)")
	return m
}

// FailNext queues an error returned by the next call addressed to id.
func (m *MockBus) FailNext(id uint8, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = append(m.failures[id], err)
}

func (m *MockBus) popFailure(id uint8) error {
	q := m.failures[id]
	if len(q) == 0 {
		return nil
	}
	m.failures[id] = q[1:]
	return q[0]
}

func (m *MockBus) ReadPosition(id uint8) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(id); err != nil {
		return 0, err
	}
	raw, ok := m.present[id]
	if !ok {
		return 0, commErr(id, "read", fmt.Errorf("%w: no servo with this id", errTimeout))
	}
	return raw, nil
}

func (m *MockBus) WritePosition(id uint8, raw int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(id); err != nil {
		return err
	}
	debug.Trace("mock bus: id %d goal %d", id, raw)
	m.present[id] = raw
	m.writes[id]++
	return nil
}

func (m *MockBus) SetTorque(id uint8, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(id); err != nil {
		return err
	}
	m.torque[id] = enabled
	return nil
}

// Present returns the simulated present position of id.
func (m *MockBus) Present(id uint8) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.present[id]
}

// Torque reports whether torque is enabled on id.
func (m *MockBus) Torque(id uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.torque[id]
}

// Writes returns the number of successful goal writes to id.
func (m *MockBus) Writes(id uint8) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[id]
}

func (m *MockBus) Close() error { return nil }
