package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// PlanarDistance is the Euclidean distance between a and b projected on the
// horizontal plane. Y is the vertical axis of the scene.
func PlanarDistance(a, b r3.Vec) float64 {
	d := r3.Sub(a, b)
	return math.Hypot(d.X, d.Z)
}
