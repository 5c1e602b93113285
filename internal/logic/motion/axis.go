package motion

import (
	"fmt"

	"github.com/cjeanneret/PanTrack/internal/logic/geometry"
)

// AxisConfig is the static description of one mechanical axis.
type AxisConfig struct {
	Name        string
	ID          uint8
	Calibration geometry.Calibration
	Bounds      geometry.Bounds
	StepSize    int // raw units moved per control tick
}

// Validate checks the calibration, the travel window and the step size.
func (c AxisConfig) Validate() error {
	if err := c.Calibration.Validate(); err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	if err := c.Bounds.Validate(c.Calibration.RawMax); err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	if c.StepSize <= 0 {
		return fmt.Errorf("%s: step_size must be > 0, got %d", c.Name, c.StepSize)
	}
	return nil
}

// Axis tracks where the driver believes one servo is (current) and where
// it should end up (goal). Only the controller advances current.
type Axis struct {
	AxisConfig
	current int
	goal    int
}

// NewAxis creates an axis parked at the forward position until seeded.
func NewAxis(cfg AxisConfig) *Axis {
	a := &Axis{AxisConfig: cfg}
	a.seed(cfg.Calibration.RawFromAngle(0))
	return a
}

// Current returns the raw position last written (or assumed).
func (a *Axis) Current() int { return a.current }

// Goal returns the clamped raw goal.
func (a *Axis) Goal() int { return a.goal }

// SetGoalAngle maps angleDeg to raw units, clamps it to the travel window
// and stores it as the new goal.
func (a *Axis) SetGoalAngle(angleDeg float64) int {
	return a.SetGoalRaw(a.Calibration.RawFromAngle(angleDeg))
}

// SetGoalRaw stores raw, wrapped and clamped, as the new goal.
func (a *Axis) SetGoalRaw(raw int) int {
	a.goal = a.Bounds.Clamp(geometry.Wrap(raw, a.Calibration.RawMax))
	return a.goal
}

// StepsToGoal is the number of ticks needed to bring current within one
// step of the goal.
func (a *Axis) StepsToGoal() int {
	d := a.goal - a.current
	if d < 0 {
		d = -d
	}
	return (d + a.StepSize - 1) / a.StepSize
}

// limit keeps raw inside [0, raw_max).
func (a *Axis) limit(raw int) int {
	switch {
	case raw < 0:
		return 0
	case raw >= a.Calibration.RawMax:
		return a.Calibration.RawMax - 1
	}
	return raw
}

// seed sets current to the reported position and aims the goal at it so
// that the first ticks hold still.
func (a *Axis) seed(raw int) {
	a.current = geometry.Wrap(raw, a.Calibration.RawMax)
	a.goal = a.Bounds.Clamp(a.current)
}

// AxisState is a read-only copy of an axis for reporting.
type AxisState struct {
	Name     string  `json:"name"`
	ID       uint8   `json:"id"`
	Current  int     `json:"current"`
	Goal     int     `json:"goal"`
	AngleDeg float64 `json:"angle_deg"`
}

func (a *Axis) state() AxisState {
	return AxisState{
		Name:     a.Name,
		ID:       a.ID,
		Current:  a.current,
		Goal:     a.goal,
		AngleDeg: a.Calibration.AngleFromRaw(a.current),
	}
}
