package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/cjeanneret/PanTrack/internal/debug"
	"github.com/cjeanneret/PanTrack/internal/logic/tracking"
)

// MaxTrackAngleDeg bounds the angles accepted by POST /track.
const MaxTrackAngleDeg = 720

// Tracker is the part of the control loop exposed over HTTP.
type Tracker interface {
	State() tracking.State
	Override(t tracking.Target) error
}

// TrackRequest is the body of POST /track. Both angles are required.
type TrackRequest struct {
	PanDeg  *float64 `json:"pan_deg"`
	TiltDeg *float64 `json:"tilt_deg"`
}

// ValidateTrack checks a manual target and converts it.
func ValidateTrack(req TrackRequest) (tracking.Target, error) {
	if req.PanDeg == nil || req.TiltDeg == nil {
		return tracking.Target{}, errors.New("pan_deg and tilt_deg are required")
	}
	for name, v := range map[string]float64{"pan_deg": *req.PanDeg, "tilt_deg": *req.TiltDeg} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > MaxTrackAngleDeg {
			return tracking.Target{}, fmt.Errorf("%s must be between -%d and %d", name, MaxTrackAngleDeg, MaxTrackAngleDeg)
		}
	}
	return tracking.Target{PanDeg: *req.PanDeg, TiltDeg: *req.TiltDeg}, nil
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Tracker     Tracker
	Metrics     http.Handler
	Heartbeat   time.Duration
}

// NewHandlers creates handlers with the given dependencies.
// If tracker is nil, /state and /track return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, tracker Tracker, metrics http.Handler) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Tracker:     tracker,
		Metrics:     metrics,
		Heartbeat:   30 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// HandleState returns the last published loop state as JSON.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if h.Tracker == nil {
		http.Error(w, "tracker not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.Tracker.State())
}

// HandleTrack handles POST /track to point the mount at a manual target.
// The target holds until a candidate is accepted again.
func (h *Handlers) HandleTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TrackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	target, err := ValidateTrack(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.Tracker == nil {
		http.Error(w, "tracker not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.Tracker.Override(target); err != nil {
		if errors.Is(err, tracking.ErrOverrideBusy) {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	debug.Live("manual target pan=%.2f tilt=%.2f", target.PanDeg, target.TiltDeg)
	if h.Broadcaster != nil {
		h.Broadcaster.BroadcastMsg(fmt.Sprintf("Manual target %.1f° / %.1f°", target.PanDeg, target.TiltDeg))
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandleMetrics serves the prometheus registry.
func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.Metrics == nil {
		http.Error(w, "metrics not configured", http.StatusNotFound)
		return
	}
	h.Metrics.ServeHTTP(w, r)
}
