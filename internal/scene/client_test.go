package scene

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sceneServer upgrades every request, records the requested scene and
// writes the given frames.
type sceneServer struct {
	frames   []string
	hold     bool // keep the connection open after the frames
	mu       sync.Mutex
	scenes   []string
	upgrader websocket.Upgrader
}

func (s *sceneServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	s.mu.Lock()
	s.scenes = append(s.scenes, r.URL.Query().Get("scene"))
	s.mu.Unlock()

	for _, f := range s.frames {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			return
		}
	}
	if !s.hold {
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		return
	}
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *sceneServer) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scenes)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNewClient_URL(t *testing.T) {
	c, err := NewClient("wss://scene.example.org/pose", "first_playground", newTestStore())
	require.NoError(t, err)
	assert.Equal(t, "wss://scene.example.org/pose?scene=first_playground", c.URL())

	_, err = NewClient("http://scene.example.org", "x", newTestStore())
	assert.Error(t, err)
	_, err = NewClient("://bad", "x", newTestStore())
	assert.Error(t, err)
}

func TestClient_FeedsStore(t *testing.T) {
	srv := &sceneServer{
		hold: true,
		frames: []string{
			`{"object_id":"video_ball","action":"create","data":{"object_type":"sphere","position":{"x":0,"y":0,"z":0},"radius":5}}`,
			`garbage that is skipped`,
			`{"object_id":"cam_1","action":"create","displayName":"Alice","data":{"object_type":"camera","position":{"x":3,"y":1.6,"z":0},"rotation":{"x":0,"y":0,"z":0,"w":1}}}`,
		},
	}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	store := newTestStore()
	c, err := NewClient(wsURL(ts), "playground", store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	snap := store.Snapshot()
	assert.True(t, snap.HasReference)
	assert.Equal(t, 5.0, snap.Reference.Radius)
	assert.Equal(t, "Alice", snap.Candidates[0].Label)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop after cancel")
	}
	srv.mu.Lock()
	assert.Equal(t, []string{"playground"}, srv.scenes)
	srv.mu.Unlock()
}

func TestClient_Reconnects(t *testing.T) {
	srv := &sceneServer{
		frames: []string{`{"object_id":"cam_1","action":"create","data":{"object_type":"camera"}}`},
	}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c, err := NewClient(wsURL(ts), "", newTestStore())
	require.NoError(t, err)
	c.Backoff = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool { return srv.connections() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_DialFailureStopsOnCancel(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(ts)
	ts.Close()

	c, err := NewClient(url, "", newTestStore())
	require.NoError(t, err)
	c.Backoff = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, c.Run(ctx))
}
