package geometry

import "fmt"

// Bounds is the safe travel window of one axis, in raw units.
type Bounds struct {
	Lower int
	Upper int
}

// Validate checks 0 <= Lower <= Upper <= rawMax.
func (b Bounds) Validate(rawMax int) error {
	if b.Lower < 0 {
		return fmt.Errorf("lower_bound must be >= 0, got %d", b.Lower)
	}
	if b.Lower > b.Upper {
		return fmt.Errorf("lower_bound %d exceeds upper_bound %d", b.Lower, b.Upper)
	}
	if b.Upper > rawMax {
		return fmt.Errorf("upper_bound %d exceeds raw_max %d", b.Upper, rawMax)
	}
	return nil
}

// Clamp restricts raw to [Lower, Upper]. Out-of-window goals are not an
// error; they stop at the nearer bound.
func (b Bounds) Clamp(raw int) int {
	if raw > b.Upper {
		return b.Upper
	}
	if raw < b.Lower {
		return b.Lower
	}
	return raw
}

// Contains reports whether raw lies inside the window.
func (b Bounds) Contains(raw int) bool {
	return raw >= b.Lower && raw <= b.Upper
}
