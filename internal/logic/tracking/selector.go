package tracking

import (
	"github.com/cjeanneret/PanTrack/internal/logic/geometry"
	"github.com/cjeanneret/PanTrack/internal/scene"
)

// Target is the orientation the mount should face, in degrees. The angles
// are unbounded; each axis maps and clamps them on its own.
type Target struct {
	PanDeg  float64 `json:"pan_deg"`
	TiltDeg float64 `json:"tilt_deg"`
}

// Selection summarises one selection pass.
type Selection struct {
	Accepted int
	Rejected int
	Source   string // label (or id) of the candidate that set the target
}

// Selector picks the tracking target among candidate poses.
type Selector struct {
	Sequence geometry.EulerSequence
}

// Select overwrites target with the orientation of every candidate whose
// horizontal distance to the reference is at most the reference radius,
// in candidate order. The last accepted candidate therefore wins; there
// is no averaging and no priority. With no accepted candidate the target
// keeps its previous value.
func (s Selector) Select(target *Target, ref scene.Reference, candidates []scene.Pose) Selection {
	var sel Selection
	for _, c := range candidates {
		// written so that a NaN distance is rejected
		if !(geometry.PlanarDistance(ref.Position, c.Position) <= ref.Radius) {
			sel.Rejected++
			continue
		}
		target.PanDeg, target.TiltDeg = geometry.PanTilt(c.Rotation, s.Sequence)
		sel.Accepted++
		sel.Source = c.Label
		if sel.Source == "" {
			sel.Source = c.ID
		}
	}
	return sel
}
