package scene

import (
	"context"
	"fmt"
	"time"
)

// Runner dispatches the periodic scene tick. The tick function always
// runs on the goroutine that called Run, one call at a time; a slow tick
// delays the next one instead of overlapping it.
type Runner struct {
	Interval time.Duration
}

// Run calls tick every Interval until ctx is cancelled.
func (r Runner) Run(ctx context.Context, tick func()) error {
	if r.Interval <= 0 {
		return fmt.Errorf("tick interval must be > 0, got %s", r.Interval)
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			tick()
		}
	}
}
