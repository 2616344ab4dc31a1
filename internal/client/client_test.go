package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leocavalcante/leochat/internal/wire"
)

func sseHandler(t *testing.T, events []wire.Event) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var req struct {
			Messages []Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		encoder := wire.NewEncoder(w)
		for _, event := range events {
			if err := encoder.WriteEvent(event); err != nil {
				t.Errorf("write event: %v", err)
			}
		}
	}
}

func TestExchangeTextOnly(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, []wire.Event{
		wire.Text("The answer "),
		wire.Text("is 42."),
		wire.Done(17),
	}))
	defer server.Close()

	consumer := NewConsumer(nil)
	err := New(server.URL).Exchange(context.Background(), []Message{
		{Role: "user", Content: "What is the answer?"},
	}, "", consumer)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if consumer.State() != StateFinalized {
		t.Errorf("state = %s", consumer.State())
	}
	if consumer.Content() != "The answer is 42." {
		t.Errorf("content = %q", consumer.Content())
	}
	if consumer.TokenCount() != 17 {
		t.Errorf("token count = %d", consumer.TokenCount())
	}
}

func TestExchangeErrorEvent(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, []wire.Event{
		wire.Text("partial"),
		wire.Error("model unavailable"),
	}))
	defer server.Close()

	consumer := NewConsumer(nil)
	err := New(server.URL).Exchange(context.Background(), nil, "", consumer)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if consumer.State() != StateFailed {
		t.Errorf("state = %s", consumer.State())
	}
	if consumer.Err() != "model unavailable" {
		t.Errorf("err = %q", consumer.Err())
	}
}

func TestExchangeRequestFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "another exchange is in flight", http.StatusConflict)
	}))
	defer server.Close()

	err := New(server.URL).Exchange(context.Background(), nil, "", NewConsumer(nil))
	var reqErr *RequestFailedError
	if !errors.As(err, &reqErr) {
		t.Fatalf("err = %v, want RequestFailedError", err)
	}
	if reqErr.StatusCode != http.StatusConflict {
		t.Errorf("status = %d", reqErr.StatusCode)
	}
}

func TestExchangeTruncatedStream(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, []wire.Event{
		wire.Text("cut off"),
	}))
	defer server.Close()

	err := New(server.URL).Exchange(context.Background(), nil, "", NewConsumer(nil))
	if err == nil {
		t.Fatal("expected error for stream without terminal event")
	}
}

func TestExchangeSendsSessionHeader(t *testing.T) {
	var gotSession string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.Header.Get("session_id")
		w.Header().Set("Content-Type", "text/event-stream")
		_ = wire.NewEncoder(w).WriteEvent(wire.Done(0))
	}))
	defer server.Close()

	c := New(server.URL, WithSessionID("abc-123"))
	if err := c.Exchange(context.Background(), nil, "", NewConsumer(nil)); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if gotSession != "abc-123" {
		t.Errorf("session_id header = %q", gotSession)
	}
}

func TestWaitHealthy(t *testing.T) {
	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" || !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		healthy.Store(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := New(server.URL).WaitHealthy(ctx); err != nil {
		t.Fatalf("WaitHealthy: %v", err)
	}
}
