package tracking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cjeanneret/PanTrack/internal/logic/geometry"
	"github.com/cjeanneret/PanTrack/internal/scene"
)

// yaw returns the pose-stream orientation that makes the mount pan by deg.
func yaw(deg float64) geometry.Quaternion {
	h := deg * math.Pi / 360
	return geometry.Quaternion{Y: math.Sin(h), W: math.Cos(h)}
}

// pitch returns the pose-stream orientation that makes the mount tilt by deg.
func pitch(deg float64) geometry.Quaternion {
	h := deg * math.Pi / 360
	return geometry.Quaternion{X: math.Sin(h), W: math.Cos(h)}
}

var ball = scene.Reference{ID: "video_ball", Position: r3.Vec{X: 1, Y: 7, Z: 1}, Radius: 5}

func pose(id string, x, z float64, rot geometry.Quaternion) scene.Pose {
	return scene.Pose{ID: id, Label: "user " + id, Position: r3.Vec{X: x, Y: 1.6, Z: z}, Rotation: rot}
}

func TestSelect_AcceptsWithinRadius(t *testing.T) {
	target := Target{}
	sel := Selector{}.Select(&target, ball, []scene.Pose{pose("a", 1+3, 1, yaw(35))})

	assert.Equal(t, Selection{Accepted: 1, Source: "user a"}, sel)
	assert.InDelta(t, 35, target.PanDeg, 1e-9)
	assert.InDelta(t, 0, target.TiltDeg, 1e-9)
}

func TestSelect_BoundaryIsInclusive(t *testing.T) {
	target := Target{PanDeg: -12, TiltDeg: 4}
	// (3, 4) away from the reference: distance exactly 5.
	sel := Selector{}.Select(&target, ball, []scene.Pose{pose("edge", 1+3, 1+4, pitch(20))})
	assert.Equal(t, 1, sel.Accepted)
	assert.InDelta(t, 0, target.PanDeg, 1e-9)
	assert.InDelta(t, 20, target.TiltDeg, 1e-9)
}

func TestSelect_BeyondRadiusLeavesTarget(t *testing.T) {
	before := Target{PanDeg: -12, TiltDeg: 4}
	target := before
	sel := Selector{}.Select(&target, ball, []scene.Pose{
		pose("far", 1+10, 1, yaw(80)),
		pose("just_out", 1+3, 1+4.0000001, yaw(80)),
	})
	assert.Equal(t, Selection{Rejected: 2}, sel)
	assert.Equal(t, before, target)
}

func TestSelect_IgnoresHeight(t *testing.T) {
	target := Target{}
	p := pose("high", 1, 1, yaw(10))
	p.Position.Y = 1000
	sel := Selector{}.Select(&target, ball, []scene.Pose{p})
	assert.Equal(t, 1, sel.Accepted)
}

func TestSelect_LastAcceptedWins(t *testing.T) {
	target := Target{}
	sel := Selector{}.Select(&target, ball, []scene.Pose{
		pose("first", 1, 1, yaw(30)),
		pose("out", 50, 50, yaw(-70)),
		pose("second", 2, 2, yaw(-45)),
	})
	assert.Equal(t, Selection{Accepted: 2, Rejected: 1, Source: "user second"}, sel)
	assert.InDelta(t, -45, target.PanDeg, 1e-9)
}

func TestSelect_NoCandidatesIsSticky(t *testing.T) {
	target := Target{PanDeg: 3, TiltDeg: 3}
	sel := Selector{}.Select(&target, ball, nil)
	assert.Equal(t, Selection{}, sel)
	assert.Equal(t, Target{PanDeg: 3, TiltDeg: 3}, target)
}

func TestSelect_NaNPositionRejected(t *testing.T) {
	target := Target{}
	sel := Selector{}.Select(&target, ball, []scene.Pose{pose("nan", math.NaN(), 1, yaw(10))})
	assert.Equal(t, 1, sel.Rejected)
	assert.Equal(t, Target{}, target)
}

func TestSelect_SourceFallsBackToID(t *testing.T) {
	target := Target{}
	p := pose("anon", 1, 1, geometry.Identity)
	p.Label = ""
	sel := Selector{}.Select(&target, ball, []scene.Pose{p})
	assert.Equal(t, "anon", sel.Source)
}

func TestSelect_Sequence(t *testing.T) {
	// Intrinsic and extrinsic decompositions agree on a pure yaw.
	for _, seq := range []geometry.EulerSequence{geometry.IntrinsicXYZ, geometry.ExtrinsicXYZ} {
		target := Target{}
		Selector{Sequence: seq}.Select(&target, ball, []scene.Pose{pose("a", 1, 1, yaw(25))})
		assert.InDelta(t, 25, target.PanDeg, 1e-9, "sequence %s", seq)
	}
}
