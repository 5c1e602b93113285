package main

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/PanTrack/internal/config"
	"github.com/cjeanneret/PanTrack/internal/debug"
	"github.com/cjeanneret/PanTrack/internal/logic/motion"
	"github.com/cjeanneret/PanTrack/internal/logic/tracking"
	"github.com/cjeanneret/PanTrack/internal/metrics"
	"github.com/cjeanneret/PanTrack/internal/scene"
	"github.com/cjeanneret/PanTrack/internal/web"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "track the scene until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runTracking(cmd.Context(), cfg)
		},
	}
}

func newLoop(cfg *config.Config, store *scene.Store, ctrl *motion.Controller) (*tracking.Loop, error) {
	return tracking.NewLoop(tracking.Config{
		SlowEvery: cfg.Loop.SlowEvery,
		Sequence:  cfg.EulerSequence(),
	}, store, ctrl)
}

// runTracking runs the control loop, the scene source and the web server
// until ctx is cancelled or one of them fails.
func runTracking(ctx context.Context, cfg *config.Config) error {
	hw, err := openHardware(cfg)
	if err != nil {
		return err
	}
	defer hw.Close()

	collector := metrics.New()
	debug.SetFaultHook(collector.Fault)
	defer debug.SetFaultHook(nil)

	store := scene.NewStore(cfg.Scene.ReferenceObject, cfg.Scene.CandidateType)
	loop, err := newLoop(cfg, store, hw.ctrl)
	if err != nil {
		return err
	}
	observers := tracking.Observers{collector}

	g, ctx := errgroup.WithContext(ctx)

	if port := cfg.Web.Port; port > 0 {
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		defer debug.SetOutput(os.Stdout)
		observers = append(observers, broadcaster)

		srv := web.NewServer(fmt.Sprintf(":%d", port), web.NewHandlers(broadcaster, loop, collector.Handler()))
		g.Go(func() error { return srv.Run(ctx) })
	}
	loop.SetObserver(observers)

	switch {
	case cfg.Scene.URL != "":
		client, err := scene.NewClient(cfg.Scene.URL, cfg.Scene.Name, store)
		if err != nil {
			return err
		}
		debug.Info("Subscribing to %s", client.URL())
		g.Go(func() error { return client.Run(ctx) })
	case cfg.Scene.ReplayFile != "":
		replay := scene.Replay{
			Path:     cfg.Scene.ReplayFile,
			Interval: cfg.ReplayInterval(),
			Loop:     cfg.Scene.ReplayLoop,
		}
		debug.Info("Replaying %s every %s", replay.Path, replay.Interval)
		g.Go(func() error { return replay.Run(ctx, store) })
	default:
		log.Warn("no scene source configured: the mount holds its target until POST /track")
	}

	g.Go(func() error { return loop.Run(ctx, scene.Runner{Interval: cfg.TickInterval()}) })

	err = g.Wait()
	debug.Section("Shutdown")
	s := loop.State()
	debug.Info("Stopped after %d ticks, last target %.2f° / %.2f° (%s)",
		s.Tick, s.Target.PanDeg, s.Target.TiltDeg, s.Source)
	return err
}
