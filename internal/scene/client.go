package scene

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/PanTrack/internal/debug"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	maxBackoff       = 10 * time.Second
)

// Client subscribes to a scene over a websocket and feeds every object
// message into a Store.
type Client struct {
	url    string
	store  *Store
	dialer websocket.Dialer

	wsMu sync.Mutex // serialises control frames

	// Backoff is the first delay before reconnecting; it doubles up to 10s.
	Backoff time.Duration
}

// NewClient creates a client for the scene named name at endpoint.
// The scene name is passed as the "scene" query parameter.
func NewClient(endpoint, name string, store *Store) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid scene url %q: %w", endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid scene url %q: scheme must be ws or wss", endpoint)
	}
	if name != "" {
		q := u.Query()
		q.Set("scene", name)
		u.RawQuery = q.Encode()
	}
	return &Client{
		url:     u.String(),
		store:   store,
		dialer:  websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		Backoff: time.Second,
	}, nil
}

// URL returns the endpoint the client dials.
func (c *Client) URL() string { return c.url }

// Run keeps a session open until ctx is cancelled, reconnecting after
// failures. Connection problems are reported as "scene" faults.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.Backoff
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = c.Backoff
		} else {
			debug.Fault("scene", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// session dials once and reads until the connection ends.
func (c *Client) session(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("connect to scene: %w", err)
	}
	debug.Info("connected to scene %s", c.url)
	defer ws.Close()

	ws.SetPingHandler(func(appData string) error {
		c.wsMu.Lock()
		defer c.wsMu.Unlock()
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.wsMu.Lock()
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			c.wsMu.Unlock()
			ws.Close()
		case <-done:
		}
	}()

	for {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("scene read: %w", err)
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		debug.Verbose("scene: %v", err)
		return
	}
	if err := c.store.Apply(msg); err != nil {
		debug.Verbose("scene: %v", err)
	}
}
