package cmd

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leocavalcante/leochat/internal/config"
	"github.com/leocavalcante/leochat/internal/llm"
	"github.com/leocavalcante/leochat/internal/testutil"
	"github.com/leocavalcante/leochat/internal/wire"
)

func newTestServer(t *testing.T, provider *testutil.MockProvider, tools ...llm.Tool) *httptest.Server {
	t.Helper()
	registry := llm.NewToolRegistry()
	for _, tool := range tools {
		registry.Register(tool)
	}
	cfg := &config.Config{
		Anthropic: config.AnthropicConfig{Model: "test-model", MaxTokens: 1000},
		Chat:      config.ChatConfig{Instructions: "be terse", MaxRounds: 20},
	}
	s := newServeServer(cfg, llm.NewEngine(provider, registry), false)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postChat(t *testing.T, ts *httptest.Server, body string, sessionID string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/chat", strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("session_id", sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post chat: %v", err)
	}
	return resp
}

func decodeSSE(t *testing.T, resp *http.Response) []wire.Event {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	events, err := wire.NewDecoder().Feed(raw)
	if err != nil {
		t.Fatalf("decode stream: %v\n%s", err, raw)
	}
	return events
}

func TestChatStreamTextOnly(t *testing.T) {
	provider := testutil.NewMockProvider("mock")
	provider.AddTextResponse("Hello there, how can I help?")
	ts := newTestServer(t, provider)

	resp := postChat(t, ts, `{"messages":[{"role":"user","content":"hi"}]}`, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	events := decodeSSE(t, resp)
	var text bytes.Buffer
	var done *wire.Event
	for i := range events {
		switch events[i].Type {
		case wire.EventText:
			text.WriteString(events[i].Text)
		case wire.EventDone:
			done = &events[i]
		case wire.EventError:
			t.Fatalf("unexpected error event: %s", events[i].Message)
		}
	}
	if text.String() != "Hello there, how can I help?" {
		t.Errorf("text = %q", text.String())
	}
	if done == nil {
		t.Fatal("no done event")
	}
	if done.TokenCount <= 0 {
		t.Errorf("token count = %d", done.TokenCount)
	}
	if events[len(events)-1].Type != wire.EventDone {
		t.Errorf("last event = %s", events[len(events)-1].Type)
	}
}

func TestChatStreamToolExchange(t *testing.T) {
	provider := testutil.NewMockProvider("mock")
	provider.AddToolCall("call_1", "lookup", map[string]string{"query": "go"})
	provider.AddTextResponse("Found it.")
	tool := testutil.NewMockTool("lookup", "result body")
	ts := newTestServer(t, provider, tool)

	resp := postChat(t, ts, `{"messages":[{"role":"user","content":"look up go"}]}`, "")
	events := decodeSSE(t, resp)

	var kinds []wire.EventType
	for _, event := range events {
		kinds = append(kinds, event.Type)
	}

	wantOrder := []wire.EventType{wire.EventToolStart, wire.EventToolEnd}
	got := 0
	for _, event := range events {
		if got < len(wantOrder) && event.Type == wantOrder[got] {
			if event.ToolName != "lookup" {
				t.Errorf("%s tool name = %q", event.Type, event.ToolName)
			}
			got++
		}
	}
	if got != len(wantOrder) {
		t.Fatalf("missing tool events, got sequence %v", kinds)
	}
	if tool.InvocationCount() != 1 {
		t.Errorf("tool invoked %d times", tool.InvocationCount())
	}
	if events[len(events)-1].Type != wire.EventDone {
		t.Errorf("last event = %s", events[len(events)-1].Type)
	}
}

func TestChatStreamProviderError(t *testing.T) {
	provider := testutil.NewMockProvider("mock")
	provider.AddError(io.ErrUnexpectedEOF)
	ts := newTestServer(t, provider)

	resp := postChat(t, ts, `{"messages":[{"role":"user","content":"hi"}]}`, "")
	events := decodeSSE(t, resp)

	if len(events) == 0 {
		t.Fatal("no events")
	}
	last := events[len(events)-1]
	if last.Type != wire.EventError {
		t.Fatalf("last event = %s, want error", last.Type)
	}
	for _, event := range events {
		if event.Type == wire.EventDone {
			t.Error("done event after provider failure")
		}
	}
}

func TestChatBusyGuard(t *testing.T) {
	provider := testutil.NewMockProvider("mock")
	provider.AddTurn(testutil.MockTurn{Text: "slow reply", Delay: 300 * time.Millisecond})
	ts := newTestServer(t, provider)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp := postChat(t, ts, `{"messages":[{"role":"user","content":"hi"}]}`, "sess-1")
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	time.Sleep(100 * time.Millisecond)
	resp := postChat(t, ts, `{"messages":[{"role":"user","content":"again"}]}`, "sess-1")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("concurrent same-session status = %d, want 409", resp.StatusCode)
	}
	wg.Wait()
}

func TestChatDistinctSessionsRunConcurrently(t *testing.T) {
	provider := testutil.NewMockProvider("mock")
	provider.AddTurn(testutil.MockTurn{Text: "slow", Delay: 300 * time.Millisecond})
	provider.AddTextResponse("fast")
	ts := newTestServer(t, provider)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp := postChat(t, ts, `{"messages":[{"role":"user","content":"hi"}]}`, "sess-a")
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	time.Sleep(100 * time.Millisecond)
	resp := postChat(t, ts, `{"messages":[{"role":"user","content":"hi"}]}`, "sess-b")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("distinct session status = %d, want 200", resp.StatusCode)
	}
	wg.Wait()
}

func TestChatBadRequests(t *testing.T) {
	provider := testutil.NewMockProvider("mock")
	ts := newTestServer(t, provider)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"empty messages", `{"messages":[]}`},
		{"unknown role", `{"messages":[{"role":"system","content":"x"}]}`},
	}
	for _, tc := range cases {
		resp := postChat(t, ts, tc.body, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, resp.StatusCode)
		}
	}
}

func TestStaticRoutes(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockProvider("mock"))

	cases := []struct {
		path        string
		contentType string
	}{
		{"/", "text/html"},
		{"/index.html", "text/html"},
		{"/dist/index.js", "application/javascript"},
		{"/dist/styles.css", "text/css"},
	}
	for _, tc := range cases {
		resp, err := http.Get(ts.URL + tc.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tc.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status = %d", tc.path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != tc.contentType {
			t.Errorf("GET %s: content type = %q, want %q", tc.path, ct, tc.contentType)
		}
		if len(body) == 0 {
			t.Errorf("GET %s: empty body", tc.path)
		}
	}

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /nonexistent: status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockProvider("mock"))
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockProvider("mock"))
	resp, err := http.Get(ts.URL + "/api/chat")
	if err != nil {
		t.Fatalf("GET /api/chat: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestBuildExchangeMessages(t *testing.T) {
	messages, err := buildExchangeMessages(chatRequest{
		Messages: []chatMessage{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "bye"},
		},
	}, "default prompt")
	if err != nil {
		t.Fatalf("buildExchangeMessages: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("got %d messages", len(messages))
	}
	if messages[0].Role != llm.RoleSystem {
		t.Errorf("messages[0].Role = %s", messages[0].Role)
	}
	if messages[1].Role != llm.RoleUser || messages[2].Role != llm.RoleAssistant {
		t.Errorf("roles = %s, %s", messages[1].Role, messages[2].Role)
	}
}
