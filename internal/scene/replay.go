package scene

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cjeanneret/PanTrack/internal/debug"
)

// Replay feeds a recorded JSON-lines scene capture into a store, one
// message every Interval. Empty lines and lines starting with '#' are
// skipped.
type Replay struct {
	Path     string
	Interval time.Duration
	Loop     bool // start over at end of file
}

// Run replays the file until it ends (or forever with Loop) or ctx is
// cancelled.
func (r Replay) Run(ctx context.Context, store *Store) error {
	for {
		f, err := os.Open(r.Path)
		if err != nil {
			return fmt.Errorf("open replay: %w", err)
		}
		n, err := r.feed(ctx, f, store)
		f.Close()
		if err != nil || ctx.Err() != nil {
			return err
		}
		debug.Verbose("replay: %d messages from %s", n, r.Path)
		if !r.Loop || n == 0 {
			return nil
		}
	}
}

func (r Replay) feed(ctx context.Context, src io.Reader, store *Store) (int, error) {
	var tick <-chan time.Time
	if r.Interval > 0 {
		t := time.NewTicker(r.Interval)
		defer t.Stop()
		tick = t.C
	}

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line, n := 0, 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 || b[0] == '#' {
			continue
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return n, nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return n, nil
		}
		msg, err := DecodeMessage(b)
		if err != nil {
			return n, fmt.Errorf("replay line %d: %w", line, err)
		}
		if err := store.Apply(msg); err != nil {
			return n, fmt.Errorf("replay line %d: %w", line, err)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("read replay: %w", err)
	}
	return n, nil
}
