package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/PanTrack/internal/config"
	"github.com/cjeanneret/PanTrack/internal/debug"
	"github.com/cjeanneret/PanTrack/internal/logic/tracking"
	"github.com/cjeanneret/PanTrack/internal/scene"
)

func newTrackCmd(opts *options) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:     "track PAN_DEG TILT_DEG",
		Short:   "step both axes to the given angles, then exit",
		Example: "  pantrack track 30 10\n  pantrack track -- -45 0",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0], args[1])
			if err != nil {
				return err
			}
			return moveTo(cmd.Context(), opts, target, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up when the axes have not arrived after this long")
	return cmd
}

func newCenterCmd(opts *options) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "center",
		Short: "step both axes to the forward position, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return moveTo(cmd.Context(), opts, tracking.Target{}, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up when the axes have not arrived after this long")
	return cmd
}

// parseTarget parses and checks the two angles of the track command.
func parseTarget(pan, tilt string) (tracking.Target, error) {
	var t tracking.Target
	for _, a := range []struct {
		name string
		in   string
		out  *float64
	}{{"pan", pan, &t.PanDeg}, {"tilt", tilt, &t.TiltDeg}} {
		v, err := strconv.ParseFloat(a.in, 64)
		if err != nil {
			return t, fmt.Errorf("%s angle %q: %w", a.name, a.in, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return t, fmt.Errorf("%s angle must be finite, got %g", a.name, v)
		}
		*a.out = v
	}
	return t, nil
}

func moveTo(ctx context.Context, opts *options, target tracking.Target, timeout time.Duration) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	hw, err := openHardware(cfg)
	if err != nil {
		return err
	}
	hw.keepTorque = true
	defer hw.Close()

	return stepUntilSettled(ctx, cfg, hw, target, timeout)
}

// stepUntilSettled runs the control loop without a scene until both axes
// are within one step of the target.
func stepUntilSettled(ctx context.Context, cfg *config.Config, hw *hardware, target tracking.Target, timeout time.Duration) error {
	store := scene.NewStore(cfg.Scene.ReferenceObject, cfg.Scene.CandidateType)
	loop, err := newLoop(cfg, store, hw.ctrl)
	if err != nil {
		return err
	}
	if err := loop.Override(target); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	settled := false
	err = scene.Runner{Interval: cfg.TickInterval()}.Run(ctx, func() {
		loop.Tick()
		if hw.ctrl.Settled() {
			settled = true
			cancel()
		}
	})
	if err != nil {
		return err
	}

	s := loop.State()
	if !settled {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("axes did not settle within %s (pan %d/%d, tilt %d/%d)", timeout,
				s.Axes.Pan.Current, s.Axes.Pan.Goal, s.Axes.Tilt.Current, s.Axes.Tilt.Goal)
		}
		return ctx.Err()
	}
	debug.Info("Settled after %d ticks: pan %d (goal %d), tilt %d (goal %d)",
		s.Tick, s.Axes.Pan.Current, s.Axes.Pan.Goal, s.Axes.Tilt.Current, s.Axes.Tilt.Goal)
	return nil
}
