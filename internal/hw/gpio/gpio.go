package gpio

import (
	"github.com/cjeanneret/PanTrack/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// The real implementation drives a Raspberry Pi header; the mock is
// used on a PC or when the bus adapter handles direction itself.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// MockDriver only logs actions and remembers the last written levels.
type MockDriver struct {
	levels map[int]Level
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiRealDriver()
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	if m.levels == nil {
		m.levels = make(map[int]Level)
	}
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	return m.levels[pin], nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}

// DirectionPin drives the TX-enable line of a half-duplex bus buffer
// (e.g. a 74LS241 in front of a TTL servo bus). High = transmit.
type DirectionPin struct {
	gpio Driver
	pin  int
}

// NewDirectionPin configures pin as an output and leaves the buffer in
// receive mode. A pin <= 0 returns nil: the adapter switches direction itself.
func NewDirectionPin(g Driver, pin int) (*DirectionPin, error) {
	if pin <= 0 || g == nil {
		return nil, nil
	}
	if err := g.SetupPin(pin, Output); err != nil {
		return nil, err
	}
	d := &DirectionPin{gpio: g, pin: pin}
	if err := d.Receive(); err != nil {
		return nil, err
	}
	return d, nil
}

// Transmit switches the buffer towards the bus.
func (d *DirectionPin) Transmit() error {
	if d == nil {
		return nil
	}
	return d.gpio.WritePin(d.pin, High)
}

// Receive switches the buffer back to listen for the status packet.
func (d *DirectionPin) Receive() error {
	if d == nil {
		return nil
	}
	return d.gpio.WritePin(d.pin, Low)
}
