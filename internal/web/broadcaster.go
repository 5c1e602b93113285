package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/PanTrack/internal/logic/tracking"
)

// StatusEvent is one message of the status stream. Log lines carry Msg,
// loop snapshots carry State.
type StatusEvent struct {
	Time  string          `json:"t"`
	Level string          `json:"l,omitempty"`
	Msg   string          `json:"msg,omitempty"`
	State *tracking.State `json:"state,omitempty"`
}

// StatusBroadcaster distributes status events to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}

	// StateEvery limits how often loop states are forwarded.
	StateEvery time.Duration
	lastState  time.Time
	now        func() time.Time
}

// NewStatusBroadcaster creates a broadcaster forwarding at most ten loop
// states per second.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients:    make(map[chan string]struct{}),
		StateEvery: 100 * time.Millisecond,
		now:        time.Now,
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Subscribers returns the number of connected clients.
func (b *StatusBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends a log message to all subscribed clients as
// {"t":"...","l":"info","msg":"..."}.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{Level: level, Msg: msg})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastState sends a loop snapshot to all subscribed clients.
func (b *StatusBroadcaster) BroadcastState(s tracking.State) {
	b.send(StatusEvent{Level: "state", State: &s})
}

// Slow clients miss messages: sends never block the caller.
func (b *StatusBroadcaster) send(evt StatusEvent) {
	evt.Time = b.now().Format(time.RFC3339Nano)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// ObserveTick is a no-op; ticks are counted by the metrics.
func (b *StatusBroadcaster) ObserveTick(bool) {}

// ObserveSelection is a no-op; target changes reach clients through the state.
func (b *StatusBroadcaster) ObserveSelection(tracking.Selection) {}

// ObserveState forwards the loop state, throttled to StateEvery. It runs
// on the loop goroutine.
func (b *StatusBroadcaster) ObserveState(s tracking.State) {
	now := b.now()
	if now.Sub(b.lastState) < b.StateEvery {
		return
	}
	b.lastState = now
	if b.Subscribers() == 0 {
		return
	}
	b.BroadcastState(s)
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to SSE clients.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps StatusBroadcaster as io.Writer for use with debug.SetOutput.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if msg := strings.TrimSpace(line); msg != "" {
			w.b.BroadcastMsg(msg)
		}
	}
	return len(p), nil
}
