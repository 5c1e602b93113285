package motion

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/PanTrack/internal/debug"
)

//go:generate mockgen -source=controller.go -destination=bus_mock_test.go -package=motion

// Bus is the part of the servo bus the controller drives. Errors are
// either dynamixel communication failures or device faults; both are
// handled the same way.
type Bus interface {
	ReadPosition(id uint8) (int, error)
	WritePosition(id uint8, raw int) error
	SetTorque(id uint8, enabled bool) error
}

// Reporter receives every bus error raised while driving an axis.
type Reporter func(axis string, err error)

// Controller drives the pan and tilt servos with the incremental stepper.
// It sits between the tracking loop (target angles) and the servo bus.
// It is not safe for concurrent use: one goroutine owns it.
type Controller struct {
	bus    Bus
	pan    *Axis
	tilt   *Axis
	report Reporter
}

// NewController validates both axis configurations and creates the
// controller. Axes start at the forward position until Seed is called.
func NewController(bus Bus, pan, tilt AxisConfig) (*Controller, error) {
	if err := pan.Validate(); err != nil {
		return nil, err
	}
	if err := tilt.Validate(); err != nil {
		return nil, err
	}
	if pan.ID == tilt.ID {
		return nil, fmt.Errorf("pan and tilt share servo id %d", pan.ID)
	}
	return &Controller{
		bus:    bus,
		pan:    NewAxis(pan),
		tilt:   NewAxis(tilt),
		report: debug.Fault,
	}, nil
}

// SetReporter replaces the diagnostics sink (debug.Fault by default).
func (c *Controller) SetReporter(r Reporter) {
	if r == nil {
		r = debug.Fault
	}
	c.report = r
}

func (c *Controller) Pan() *Axis  { return c.pan }
func (c *Controller) Tilt() *Axis { return c.tilt }

// Seed enables torque on both axes and seeds current and goal from the
// present position reported by each servo. An axis whose position cannot
// be read is parked at its forward position; the error is reported and
// returned, the other axis is still seeded.
func (c *Controller) Seed() error {
	var errs []error
	for _, a := range []*Axis{c.pan, c.tilt} {
		if err := c.bus.SetTorque(a.ID, true); err != nil {
			c.report(a.Name, err)
			errs = append(errs, fmt.Errorf("%s: enable torque: %w", a.Name, err))
		}
		raw, err := c.bus.ReadPosition(a.ID)
		if err != nil {
			c.report(a.Name, err)
			errs = append(errs, fmt.Errorf("%s: read present position: %w", a.Name, err))
			raw = a.Bounds.Clamp(a.Calibration.RawFromAngle(0))
		}
		a.seed(raw)
		debug.Value(a.Name+" seeded at", a.current)
	}
	return errors.Join(errs...)
}

// Step writes the current position of a as its goal register, then moves
// current one increment toward the goal. The write lags one step behind
// so that the servo creeps continuously instead of snapping and settling.
// Current never wraps past either end of the raw range: at a bound the
// axis ripples within one step of the goal instead of crossing the whole
// travel. A failed write is reported and leaves current unchanged; the
// next call writes the same position again.
func (c *Controller) Step(a *Axis) error {
	dir := 1
	if a.goal-a.current < 0 {
		dir = -1
	}
	raw := a.current
	if err := c.bus.WritePosition(a.ID, raw); err != nil {
		c.report(a.Name, err)
		return fmt.Errorf("%s: %w", a.Name, err)
	}
	a.current = a.limit(a.current + dir*a.StepSize)
	debug.Trace("%s: wrote %d, next %d, goal %d", a.Name, raw, a.current, a.goal)
	return nil
}

// Track maps both angles to clamped raw goals and steps each axis once.
func (c *Controller) Track(panDeg, tiltDeg float64) error {
	c.pan.SetGoalAngle(panDeg)
	c.tilt.SetGoalAngle(tiltDeg)
	return errors.Join(c.Step(c.pan), c.Step(c.tilt))
}

// Settled reports whether both axes are within one step of their goal.
func (c *Controller) Settled() bool {
	return c.pan.StepsToGoal() <= 1 && c.tilt.StepsToGoal() <= 1
}

// SetTorque enables or disables torque on both axes.
func (c *Controller) SetTorque(enabled bool) error {
	var errs []error
	for _, a := range []*Axis{c.pan, c.tilt} {
		if err := c.bus.SetTorque(a.ID, enabled); err != nil {
			c.report(a.Name, err)
			errs = append(errs, fmt.Errorf("%s: set torque %t: %w", a.Name, enabled, err))
		}
	}
	return errors.Join(errs...)
}

// Snapshot is a copy of both axes.
type Snapshot struct {
	Pan  AxisState `json:"pan"`
	Tilt AxisState `json:"tilt"`
}

func (c *Controller) Snapshot() Snapshot {
	return Snapshot{Pan: c.pan.state(), Tilt: c.tilt.state()}
}
