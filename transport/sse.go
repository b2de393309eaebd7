package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const defaultStreamBuffer = 64

// SSEClient subscribes to a server-sent-events endpoint that emits the run's
// push channel: named events plus periodic keepalive comments.
type SSEClient struct {
	endpoint   string
	httpClient *http.Client
}

type SSEOption func(*SSEClient)

func WithSSEHTTPClient(h *http.Client) SSEOption {
	return func(c *SSEClient) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func NewSSEClient(endpoint string, opts ...SSEOption) (*SSEClient, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("sse endpoint is required")
	}
	c := &SSEClient{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		// No overall timeout: the subscription is long-lived. The runner
		// enforces its own wall-clock budget.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Subscribe opens the push channel for one run. The subscription is keyed by
// {sessionId, goal} as query parameters.
func (c *SSEClient) Subscribe(ctx context.Context, req SubscribeRequest) (Stream, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, fmt.Errorf("sessionId is required")
	}
	params := url.Values{}
	params.Set("sessionId", req.SessionID)
	if req.Goal != "" {
		params.Set("goal", req.Goal)
	}
	if req.Provider != "" {
		params.Set("provider", req.Provider)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("stream endpoint error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	s := &sseStream{
		body:   resp.Body,
		events: make(chan Event, defaultStreamBuffer),
		done:   make(chan struct{}),
	}
	go s.read()
	return s, nil
}

type sseStream struct {
	body   io.ReadCloser
	events chan Event
	done   chan struct{}

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

func (s *sseStream) Events() <-chan Event { return s.events }

func (s *sseStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *sseStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.body.Close()
	})
	return nil
}

// deliver hands one event to the consumer, or reports false when the stream
// has been closed. A consumer that stopped draining must not park the reader
// goroutine forever on a full buffer.
func (s *sseStream) deliver(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *sseStream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// read parses the event-stream wire format: "event:" and "data:" fields
// accumulate until a blank line dispatches the frame. Lines starting with ':'
// are keepalive comments and are dropped here, never reaching the consumer.
func (s *sseStream) read() {
	defer close(s.events)
	defer s.Close()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name string
	var data bytes.Buffer
	dispatch := func() bool {
		if data.Len() == 0 && name == "" {
			return true
		}
		ev := Event{Name: name, Data: append([]byte(nil), bytes.TrimSuffix(data.Bytes(), []byte("\n"))...)}
		if ev.Name == "" {
			ev.Name = DefaultEventName
		}
		if !s.deliver(ev) {
			return false
		}
		name = ""
		data.Reset()
		return true
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if !dispatch() {
				return
			}
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			data.WriteByte('\n')
		}
	}
	// A final frame without a trailing blank line still counts.
	dispatch()

	if err := scanner.Err(); err != nil && !isClosedErr(err) {
		s.setErr(fmt.Errorf("stream read failed: %w", err))
	}
}

func isClosedErr(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "http: read on closed response body") ||
		strings.Contains(msg, "context canceled")
}
