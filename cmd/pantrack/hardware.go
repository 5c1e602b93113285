package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/cjeanneret/PanTrack/internal/config"
	"github.com/cjeanneret/PanTrack/internal/debug"
	"github.com/cjeanneret/PanTrack/internal/hw/dynamixel"
	"github.com/cjeanneret/PanTrack/internal/hw/gpio"
	"github.com/cjeanneret/PanTrack/internal/logic/motion"
)

// servoBus is a motion bus owning a port.
type servoBus interface {
	motion.Bus
	Close() error
}

// hardware is the opened mount: GPIO, servo bus and the seeded controller.
type hardware struct {
	gpio gpio.Driver
	bus  servoBus
	ctrl *motion.Controller

	// keepTorque leaves the servos holding on Close.
	keepTorque bool
}

// openHardware runs the startup sequence: GPIO, bus, controller, then
// seeding from the present positions. Only failures to open the bus are
// fatal; unreadable axes start at their forward position.
func openHardware(cfg *config.Config) (*hardware, error) {
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	g, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return nil, fmt.Errorf("init GPIO failed: %w", err)
	}
	h := &hardware{gpio: g}

	debug.Step(2, "Opening servo bus")
	h.bus, err = openBus(cfg, g)
	if err != nil {
		h.Close()
		return nil, err
	}

	debug.Step(3, "Creating motion controller")
	h.ctrl, err = motion.NewController(h.bus, cfg.PanAxis(), cfg.TiltAxis())
	if err != nil {
		h.Close()
		return nil, err
	}

	debug.Step(4, "Reading present positions")
	if err := h.ctrl.Seed(); err != nil {
		log.Warnf("seed: %v (unreadable axes start facing forward)", err)
	}
	snap := h.ctrl.Snapshot()
	debug.Info("Seeded pan at %d (goal %d), tilt at %d (goal %d)",
		snap.Pan.Current, snap.Pan.Goal, snap.Tilt.Current, snap.Tilt.Goal)
	return h, nil
}

// openBus opens the serial bus, or the in-memory one with bus.mock. The
// mock servos start facing forward.
func openBus(cfg *config.Config, g gpio.Driver) (servoBus, error) {
	pan, tilt := cfg.PanAxis(), cfg.TiltAxis()
	if cfg.Bus.Mock {
		return dynamixel.NewMockBus(map[uint8]int{
			pan.ID:  pan.Calibration.RawFromAngle(0),
			tilt.ID: tilt.Calibration.RawFromAngle(0),
		}), nil
	}

	dir, err := gpio.NewDirectionPin(g, cfg.Bus.DirectionPin)
	if err != nil {
		return nil, fmt.Errorf("direction pin %d: %w", cfg.Bus.DirectionPin, err)
	}
	drv, err := dynamixel.OpenSerial(cfg.Bus.Port, cfg.Bus.PortOptions, cfg.BusProtocol())
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}
	drv.SetTimeout(cfg.BusTimeout())
	drv.SetDirectionPin(dir)

	bus := dynamixel.NewBus(drv, cfg.ControlTable())
	if err := bus.SetBaud(cfg.Bus.BaudRate); err != nil {
		bus.Close()
		return nil, err
	}
	for _, a := range []motion.AxisConfig{pan, tilt} {
		model, err := bus.Ping(a.ID)
		if err != nil {
			debug.Fault(a.Name, err)
			continue
		}
		debug.Info("%s servo id %d answered (model %d)", a.Name, a.ID, model)
		if cfg.Bus.ExtendedPositionMode {
			if err := bus.SetOperatingMode(a.ID, dynamixel.OpModeExtendedPosition); err != nil {
				bus.Close()
				return nil, fmt.Errorf("%s: %w", a.Name, err)
			}
		}
	}
	return bus, nil
}

// Close releases torque (unless keepTorque), the bus and the GPIO driver.
func (h *hardware) Close() {
	if h.ctrl != nil && !h.keepTorque {
		if err := h.ctrl.SetTorque(false); err != nil {
			log.Warnf("disable torque: %v", err)
		}
	}
	if h.bus != nil {
		if err := h.bus.Close(); err != nil {
			log.Warnf("closing servo bus failed: %v", err)
		}
	}
	if err := h.gpio.Close(); err != nil {
		log.Warnf("closing GPIO driver failed: %v", err)
	}
}
