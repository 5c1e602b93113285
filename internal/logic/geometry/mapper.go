package geometry

import (
	"fmt"
	"math"
)

// FullRevolution is the angle covered by RawMax raw units.
const FullRevolution = 360.0

// Calibration describes how one axis maps degrees to raw device units.
type Calibration struct {
	RawMax          int     // raw units per revolution (exclusive upper bound of a raw position)
	InvertOffsetDeg float64 // added before mapping so that 0° faces forward (typically 180)
}

// Validate checks that the calibration can map angles.
func (c Calibration) Validate() error {
	if c.RawMax <= 0 {
		return fmt.Errorf("raw_max must be > 0, got %d", c.RawMax)
	}
	if math.IsNaN(c.InvertOffsetDeg) || math.IsInf(c.InvertOffsetDeg, 0) {
		return fmt.Errorf("invert_offset_deg must be finite, got %g", c.InvertOffsetDeg)
	}
	return nil
}

// RawFromAngle maps a signed angle of any magnitude to a raw position in
// [0, RawMax): floor((angle + offset) * RawMax / 360) mod RawMax.
// Non-finite angles are treated as 0°.
func (c Calibration) RawFromAngle(angleDeg float64) int {
	if math.IsNaN(angleDeg) || math.IsInf(angleDeg, 0) {
		angleDeg = 0
	}
	// floor(k*RawMax + x) mod RawMax == floor(x) mod RawMax for integer k,
	// so whole turns are dropped before scaling.
	turn := math.Mod(angleDeg+c.InvertOffsetDeg, FullRevolution)
	raw := int(math.Floor(turn * float64(c.RawMax) / FullRevolution))
	return Wrap(raw, c.RawMax)
}

// AngleFromRaw is the inverse mapping, in (-offset, 360-offset].
func (c Calibration) AngleFromRaw(raw int) float64 {
	return float64(Wrap(raw, c.RawMax))*FullRevolution/float64(c.RawMax) - c.InvertOffsetDeg
}

// Wrap returns raw modulo rawMax in [0, rawMax), for negative raw too.
func Wrap(raw, rawMax int) int {
	if rawMax <= 0 {
		return raw
	}
	m := raw % rawMax
	if m < 0 {
		m += rawMax
	}
	return m
}
