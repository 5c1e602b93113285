// Package scene is the pose-stream side of the tracker: it keeps the live
// pose of every candidate object and of the reference object, fed by the
// scene websocket or a replay file, and dispatches the periodic tick.
package scene

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cjeanneret/PanTrack/internal/debug"
	"github.com/cjeanneret/PanTrack/internal/logic/geometry"
)

// Pose is the latest known state of one candidate object.
type Pose struct {
	ID       string
	Label    string
	Position r3.Vec
	Rotation geometry.Quaternion
	Previous r3.Vec // position before the last position update
	Updates  int    // position updates received
}

// Displacement is the distance covered by the last position update.
func (p Pose) Displacement() float64 {
	if p.Updates < 2 {
		return 0
	}
	return r3.Norm(r3.Sub(p.Position, p.Previous))
}

// Reference is the object whose radius delimits accepted candidates.
type Reference struct {
	ID       string
	Position r3.Vec
	Radius   float64
}

// Snapshot is a consistent copy of the store taken for one tick.
type Snapshot struct {
	Candidates   []Pose // in join order
	Reference    Reference
	HasReference bool
}

// Store holds the live scene objects. It is written by the transport
// goroutine and read by the tick goroutine.
type Store struct {
	mu            sync.Mutex
	referenceID   string
	candidateType string
	order         []string
	poses         map[string]*Pose
	reference     *Reference
}

// NewStore creates a store tracking referenceID as the reference object
// and every object of candidateType as a candidate.
func NewStore(referenceID, candidateType string) *Store {
	return &Store{
		referenceID:   referenceID,
		candidateType: candidateType,
		poses:         make(map[string]*Pose),
	}
}

// Apply folds one message into the store. Messages about objects that are
// neither the reference nor a candidate are ignored.
func (s *Store) Apply(m Message) error {
	if m.ObjectID == "" {
		return fmt.Errorf("scene message without object_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Action {
	case ActionDelete, ActionLeave:
		s.remove(m.ObjectID)
		return nil
	case ActionCreate, ActionUpdate:
	default:
		return fmt.Errorf("object %s: unknown action %q", m.ObjectID, m.Action)
	}

	if m.ObjectID == s.referenceID {
		s.applyReference(m)
		return nil
	}

	p, known := s.poses[m.ObjectID]
	if !known {
		if m.Data == nil || m.Data.ObjectType != s.candidateType {
			return nil
		}
		p = &Pose{ID: m.ObjectID, Rotation: geometry.Identity}
		s.poses[m.ObjectID] = p
		s.order = append(s.order, m.ObjectID)
	}
	if m.DisplayName != "" {
		p.Label = m.DisplayName
	}
	if !known {
		debug.Live("candidate joined: %s (%s)", p.ID, p.Label)
	}
	if m.Data == nil {
		return nil
	}
	if m.Data.Position != nil {
		p.Previous = p.Position
		p.Position = m.Data.Position.Vec()
		p.Updates++
	}
	if m.Data.Rotation != nil {
		p.Rotation = m.Data.Rotation.Quaternion()
	}
	return nil
}

func (s *Store) applyReference(m Message) {
	if s.reference == nil {
		s.reference = &Reference{ID: m.ObjectID}
		debug.Info("reference object %s present", m.ObjectID)
	}
	if m.Data == nil {
		return
	}
	if m.Data.Position != nil {
		s.reference.Position = m.Data.Position.Vec()
	}
	if m.Data.Radius != nil {
		s.reference.Radius = *m.Data.Radius
	}
}

func (s *Store) remove(id string) {
	if id == s.referenceID {
		if s.reference != nil {
			debug.Info("reference object %s removed", id)
		}
		s.reference = nil
		return
	}
	p, ok := s.poses[id]
	if !ok {
		return
	}
	delete(s.poses, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	debug.Live("candidate left: %s (%s)", id, p.Label)
}

// Snapshot copies the current candidates and reference.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Candidates: make([]Pose, 0, len(s.order))}
	for _, id := range s.order {
		snap.Candidates = append(snap.Candidates, *s.poses[id])
	}
	if s.reference != nil {
		snap.Reference = *s.reference
		snap.HasReference = true
	}
	return snap
}

// Len returns the number of live candidates.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
