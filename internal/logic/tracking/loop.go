// Package tracking ties the pose stream to the servos: a slow phase picks
// the target among the candidates, a fast phase steps both axes toward it.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cjeanneret/PanTrack/internal/debug"
	"github.com/cjeanneret/PanTrack/internal/logic/geometry"
	"github.com/cjeanneret/PanTrack/internal/logic/motion"
	"github.com/cjeanneret/PanTrack/internal/scene"
)

// SourceManual marks a target set through Override.
const SourceManual = "manual"

// ErrOverrideBusy is returned when overrides arrive faster than ticks.
var ErrOverrideBusy = errors.New("override queue full")

// Poses provides the candidates and the reference for one tick.
type Poses interface {
	Snapshot() scene.Snapshot
}

// Actuator steps the mount toward target angles.
type Actuator interface {
	Track(panDeg, tiltDeg float64) error
	Snapshot() motion.Snapshot
}

// Observer receives the outcome of every tick.
type Observer interface {
	ObserveTick(slow bool)
	ObserveSelection(sel Selection)
	ObserveState(s State)
}

// Observers fans every notification out to several observers.
type Observers []Observer

func (obs Observers) ObserveTick(slow bool) {
	for _, o := range obs {
		o.ObserveTick(slow)
	}
}

func (obs Observers) ObserveSelection(sel Selection) {
	for _, o := range obs {
		o.ObserveSelection(sel)
	}
}

func (obs Observers) ObserveState(s State) {
	for _, o := range obs {
		o.ObserveState(s)
	}
}

// Config sets the loop cadence.
type Config struct {
	SlowEvery int                    // slow phase on every Nth tick
	Sequence  geometry.EulerSequence // Euler convention for candidate orientations
}

// State is the published view of the loop, safe to read from any goroutine.
type State struct {
	Tick         uint64          `json:"tick"`
	Target       Target          `json:"target"`
	Source       string          `json:"source,omitempty"`
	Candidates   int             `json:"candidates"`
	Accepted     int             `json:"accepted"`
	HasReference bool            `json:"has_reference"`
	Axes         motion.Snapshot `json:"axes"`
}

// Loop is the dual-rate control loop. Tick must always be called from the
// same goroutine; the target and the axes are confined to it. Override
// and State may be called from anywhere.
type Loop struct {
	cfg      Config
	poses    Poses
	act      Actuator
	selector Selector
	observer Observer

	// tick goroutine only
	tick       uint64
	target     Target
	source     string
	candidates int
	accepted   int
	hasRef     bool

	overrides chan Target

	mu    sync.Mutex
	state State
}

// NewLoop creates a loop facing forward (target 0°, 0°).
func NewLoop(cfg Config, poses Poses, act Actuator) (*Loop, error) {
	if cfg.SlowEvery <= 0 {
		return nil, fmt.Errorf("slow_every must be > 0, got %d", cfg.SlowEvery)
	}
	if cfg.Sequence == "" {
		cfg.Sequence = geometry.IntrinsicXYZ
	}
	l := &Loop{
		cfg:       cfg,
		poses:     poses,
		act:       act,
		selector:  Selector{Sequence: cfg.Sequence},
		overrides: make(chan Target, 8),
	}
	l.state = State{Axes: act.Snapshot()}
	return l, nil
}

// SetObserver registers a tick observer (metrics, status stream).
func (l *Loop) SetObserver(o Observer) { l.observer = o }

// Override queues a manual target. It replaces the tracked target at the
// start of the next tick and holds until a candidate is accepted again.
func (l *Loop) Override(t Target) error {
	if !finite(t.PanDeg) || !finite(t.TiltDeg) {
		return fmt.Errorf("override angles must be finite, got pan=%g tilt=%g", t.PanDeg, t.TiltDeg)
	}
	select {
	case l.overrides <- t:
		return nil
	default:
		return ErrOverrideBusy
	}
}

// Tick runs one loop iteration: pending overrides, then the slow phase on
// every SlowEvery-th tick, then the fast phase.
func (l *Loop) Tick() {
	l.tick++
	l.drainOverrides()

	slow := l.tick%uint64(l.cfg.SlowEvery) == 0
	if slow {
		l.slowPhase()
	}
	l.fastPhase()

	if l.observer != nil {
		l.observer.ObserveTick(slow)
	}
	l.publish()
}

func (l *Loop) drainOverrides() {
	for {
		select {
		case t := <-l.overrides:
			l.target = t
			l.source = SourceManual
			debug.Target(SourceManual, t.PanDeg, t.TiltDeg)
		default:
			return
		}
	}
}

// slowPhase selects the target among the current candidates. Without a
// reference object nothing can be accepted and the target is kept.
func (l *Loop) slowPhase() {
	snap := l.poses.Snapshot()
	l.candidates = len(snap.Candidates)
	l.hasRef = snap.HasReference
	if !snap.HasReference {
		l.accepted = 0
		debug.Verbose("tick %d: no reference object, selection skipped", l.tick)
		return
	}

	if debug.IsEnabled(debug.LevelVerbose) {
		for _, c := range snap.Candidates {
			debug.Verbose("candidate %s: %.2f from reference, moved %.3f",
				c.ID, geometry.PlanarDistance(snap.Reference.Position, c.Position), c.Displacement())
		}
	}

	prev := l.target
	sel := l.selector.Select(&l.target, snap.Reference, snap.Candidates)
	l.accepted = sel.Accepted
	if sel.Accepted > 0 {
		l.source = sel.Source
		if l.target != prev {
			debug.Target(sel.Source, l.target.PanDeg, l.target.TiltDeg)
		}
	}
	debug.Verbose("tick %d: %d candidates, %d accepted, %d out of range",
		l.tick, len(snap.Candidates), sel.Accepted, sel.Rejected)
	if l.observer != nil {
		l.observer.ObserveSelection(sel)
	}
}

// fastPhase steps both axes toward the tracked target.
func (l *Loop) fastPhase() {
	// bus errors are reported by the actuator; the next tick retries
	_ = l.act.Track(l.target.PanDeg, l.target.TiltDeg)
}

func (l *Loop) publish() {
	s := State{
		Tick:         l.tick,
		Target:       l.target,
		Source:       l.source,
		Candidates:   l.candidates,
		Accepted:     l.accepted,
		HasReference: l.hasRef,
		Axes:         l.act.Snapshot(),
	}
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	if l.observer != nil {
		l.observer.ObserveState(s)
	}
}

// State returns the state published by the last tick.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Run drives the loop from runner until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, runner scene.Runner) error {
	debug.Info("control loop: tick %s, selection every %d ticks", runner.Interval, l.cfg.SlowEvery)
	return runner.Run(ctx, l.Tick)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
