package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/leocavalcante/leochat/internal/wire"
)

// Message is the display-level chat message exchanged with the server.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestFailedError reports a non-success status on stream open.
type RequestFailedError struct {
	StatusCode int
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("client: request failed with status %d", e.StatusCode)
}

// Client opens chat exchanges against a running server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessionID  string
}

// Option configures a Client.
type Option func(*Client)

// WithSessionID attaches a session identifier to every exchange so the
// server can enforce one in-flight exchange per session.
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		// Exchanges stream for as long as the model talks; no client timeout.
		httpClient: &http.Client{Timeout: 0},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange posts the conversation and folds the SSE response into consumer.
// It returns once the stream reaches a terminal event or fails. An exchange
// that ends with an error event is not a transport failure: Exchange returns
// nil and the consumer reports StateFailed.
func (c *Client) Exchange(ctx context.Context, messages []Message, system string, consumer *Consumer) error {
	body, err := json.Marshal(struct {
		Messages []Message `json:"messages"`
		System   string    `json:"system,omitempty"`
	}{Messages: messages, System: system})
	if err != nil {
		return fmt.Errorf("client: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.sessionID != "" {
		req.Header.Set("session_id", c.sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &RequestFailedError{StatusCode: resp.StatusCode}
	}
	if resp.Body == nil {
		return fmt.Errorf("client: response has no body")
	}

	decoder := wire.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			events, err := decoder.Feed(buf[:n])
			if err != nil {
				return err
			}
			for _, event := range events {
				if err := consumer.Apply(event); err != nil {
					return err
				}
				if consumer.State() == StateFinalized || consumer.State() == StateFailed {
					return nil
				}
			}
		}
		if readErr == io.EOF {
			return fmt.Errorf("client: stream closed before a terminal event")
		}
		if readErr != nil {
			return fmt.Errorf("client: read stream: %w", readErr)
		}
	}
}

// WaitHealthy polls the server's health endpoint until it responds or the
// context expires.
func (c *Client) WaitHealthy(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
