// Package session provisions remote browser sessions from the automation
// backend. Session lifecycle is a plain CRUD collaborator; the interesting
// part of the pipeline consumes the push channel, not this package.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Session is the provisioning result handed to the runner.
type Session struct {
	Success    bool   `json:"success"`
	SessionID  string `json:"sessionId"`
	SessionURL string `json:"sessionUrl,omitempty"`
	ConnectURL string `json:"connectUrl,omitempty"`
	Message    string `json:"message,omitempty"`
}

// CreateRequest describes the session to provision.
type CreateRequest struct {
	Provider string `json:"provider"`
	Goal     string `json:"goal,omitempty"`
	Region   string `json:"region,omitempty"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = strings.TrimSpace(key) }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("session endpoint is required")
	}
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Create provisions one remote browser session.
func (c *Client) Create(ctx context.Context, req CreateRequest) (Session, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return Session{}, fmt.Errorf("failed to marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(raw))
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Session{}, fmt.Errorf("session request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return Session{}, fmt.Errorf("session API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sess Session
	if err := json.Unmarshal(body, &sess); err != nil {
		return Session{}, fmt.Errorf("failed to decode session response: %w", err)
	}
	if !sess.Success {
		msg := sess.Message
		if msg == "" {
			msg = "session provisioning refused"
		}
		return Session{}, fmt.Errorf("session provisioning failed: %s", msg)
	}
	if sess.SessionID == "" {
		return Session{}, fmt.Errorf("session response missing sessionId")
	}
	return sess, nil
}

// Release tears down a remote session. Missing sessions are not an error;
// teardown must be safe to repeat.
func (c *Client) Release(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("sessionId is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/sessions/"+sessionID, nil)
	if err != nil {
		return fmt.Errorf("failed to create release request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("release request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("session release error (%d)", resp.StatusCode)
	}
	return nil
}
