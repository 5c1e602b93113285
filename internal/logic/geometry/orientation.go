package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Quaternion is an orientation as reported by the pose stream, scalar last.
type Quaternion struct {
	X, Y, Z, W float64
}

// Identity is the forward-facing orientation.
var Identity = Quaternion{W: 1}

// EulerSequence names the axis convention used to decompose a rotation.
// Upper case is intrinsic (rotating frame), lower case extrinsic (fixed frame).
type EulerSequence string

const (
	IntrinsicXYZ EulerSequence = "XYZ"
	ExtrinsicXYZ EulerSequence = "xyz"
)

// ParseEulerSequence accepts "XYZ", "xyz" or "" (intrinsic).
func ParseEulerSequence(s string) (EulerSequence, error) {
	switch EulerSequence(s) {
	case "", IntrinsicXYZ:
		return IntrinsicXYZ, nil
	case ExtrinsicXYZ:
		return ExtrinsicXYZ, nil
	}
	return "", fmt.Errorf("unsupported euler sequence %q: expected XYZ or xyz", s)
}

// MountFrame swaps the X and Y components of a pose-stream quaternion.
// The pose source and the mount disagree on which horizontal axis is
// which; decomposing without this swap tracks the wrong axis.
func MountFrame(q Quaternion) Quaternion {
	return Quaternion{X: q.Y, Y: q.X, Z: q.Z, W: q.W}
}

// Rotation converts q to a normalised gonum rotation. A zero quaternion
// is treated as the identity.
func (q Quaternion) Rotation() r3.Rotation {
	n := quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
	abs := quat.Abs(n)
	if abs == 0 || math.IsNaN(abs) || math.IsInf(abs, 0) {
		return r3.Rotation(quat.Number{Real: 1})
	}
	return r3.Rotation(quat.Scale(1/abs, n))
}

// EulerDegrees decomposes q into three angles in degrees, in x, y, z order.
func EulerDegrees(q Quaternion, seq EulerSequence) [3]float64 {
	m := q.Rotation().Mat()
	at := func(i, j int) float64 { return m.At(i, j) }

	var a, b, c float64
	switch seq {
	case ExtrinsicXYZ:
		// R = Rz(c) Ry(b) Rx(a)
		sb := clampUnit(-at(2, 0))
		b = math.Asin(sb)
		if math.Abs(sb) < 1-gimbalEpsilon {
			a = math.Atan2(at(2, 1), at(2, 2))
			c = math.Atan2(at(1, 0), at(0, 0))
		} else {
			a = math.Atan2(-at(1, 2), at(1, 1))
		}
	default:
		// R = Rx(a) Ry(b) Rz(c)
		sb := clampUnit(at(0, 2))
		b = math.Asin(sb)
		if math.Abs(sb) < 1-gimbalEpsilon {
			a = math.Atan2(-at(1, 2), at(2, 2))
			c = math.Atan2(-at(0, 1), at(0, 0))
		} else {
			a = math.Atan2(at(2, 1), at(1, 1))
		}
	}
	return [3]float64{deg(a), deg(b), deg(c)}
}

// PanTilt extracts the mount angles from a pose-stream orientation:
// the quaternion is moved into the mount frame, decomposed, and the
// first Euler angle drives pan while the second drives tilt.
func PanTilt(q Quaternion, seq EulerSequence) (panDeg, tiltDeg float64) {
	e := EulerDegrees(MountFrame(q), seq)
	return e[0], e[1]
}

// gimbalEpsilon is how close to ±90° the middle angle may get before the
// first and third angles are no longer separable; the third is then 0.
const gimbalEpsilon = 1e-9

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func deg(rad float64) float64 {
	return rad * 180 / math.Pi
}
