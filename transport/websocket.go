package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

func closeDeadline() time.Time { return time.Now().Add(time.Second) }

// WSClient subscribes to a run's push channel over the websocket connect URL
// returned by session provisioning. Frames are JSON envelopes of the form
// {"event": "...", "data": ...}, matching the SSE wire content.
type WSClient struct {
	dialer *websocket.Dialer
}

type WSOption func(*WSClient)

func WithDialer(d *websocket.Dialer) WSOption {
	return func(c *WSClient) {
		if d != nil {
			c.dialer = d
		}
	}
}

func NewWSClient(opts ...WSOption) *WSClient {
	c := &WSClient{dialer: websocket.DefaultDialer}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial opens the push channel at connectURL for one run.
func (c *WSClient) Dial(ctx context.Context, connectURL string, req SubscribeRequest) (Stream, error) {
	if strings.TrimSpace(connectURL) == "" {
		return nil, fmt.Errorf("connect url is required")
	}
	u, err := url.Parse(connectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid connect url: %w", err)
	}
	q := u.Query()
	if req.SessionID != "" {
		q.Set("sessionId", req.SessionID)
	}
	if req.Goal != "" {
		q.Set("goal", req.Goal)
	}
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (%d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	s := &wsStream{
		conn:   conn,
		events: make(chan Event, defaultStreamBuffer),
		done:   make(chan struct{}),
	}
	go s.read()
	return s, nil
}

type wsEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type wsStream struct {
	conn   *websocket.Conn
	events chan Event
	done   chan struct{}

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

func (s *wsStream) Events() <-chan Event { return s.events }

func (s *wsStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), closeDeadline())
		_ = s.conn.Close()
	})
	return nil
}

// deliver hands one event to the consumer, or reports false when the stream
// has been closed. A consumer that stopped draining must not park the reader
// goroutine forever on a full buffer.
func (s *wsStream) deliver(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *wsStream) read() {
	defer close(s.events)
	defer s.Close()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!isClosedErr(err) {
				s.mu.Lock()
				if s.err == nil {
					s.err = fmt.Errorf("websocket read failed: %w", err)
				}
				s.mu.Unlock()
			}
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			// Not an envelope; deliver the raw frame as an unnamed event so
			// the provider's fallback parsing still sees it.
			if !s.deliver(Event{Name: DefaultEventName, Data: append([]byte(nil), payload...)}) {
				return
			}
			continue
		}
		if env.Event == "" {
			// keepalive frame
			continue
		}
		if !s.deliver(Event{Name: env.Event, Data: append([]byte(nil), env.Data...)}) {
			return
		}
	}
}
