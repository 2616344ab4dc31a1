package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fetchArgs(t *testing.T, url string) json.RawMessage {
	t.Helper()
	args, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return args
}

func TestWebFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	got, err := NewWebFetchTool().Execute(context.Background(), fetchArgs(t, server.URL+"/missing"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "Failed to fetch: 404 Not Found" {
		t.Errorf("result = %q, want %q", got, "Failed to fetch: 404 Not Found")
	}
}

func TestWebFetchJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name":"go","stars":120000}`)
	}))
	defer server.Close()

	got, err := NewWebFetchTool().Execute(context.Background(), fetchArgs(t, server.URL))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := "{\n  \"name\": \"go\",\n  \"stars\": 120000\n}"
	if got != want {
		t.Errorf("result = %q, want pretty-printed JSON %q", got, want)
	}
}

func TestWebFetchHTMLStripping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><style>body { color: red; }</style>
<script>alert("hi");</script></head>
<body><h1>Title</h1><p>First   paragraph.</p></body></html>`)
	}))
	defer server.Close()

	got, err := NewWebFetchTool().Execute(context.Background(), fetchArgs(t, server.URL))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "Title First paragraph." {
		t.Errorf("result = %q", got)
	}
}

func TestWebFetchTruncation(t *testing.T) {
	long := strings.Repeat("a", maxFetchChars+500)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, long)
	}))
	defer server.Close()

	got, err := NewWebFetchTool().Execute(context.Background(), fetchArgs(t, server.URL))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(got) != maxFetchChars+3 {
		t.Errorf("len = %d, want %d", len(got), maxFetchChars+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated content should end with ellipsis marker")
	}
}

func TestWebFetchConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	got, err := NewWebFetchTool().Execute(context.Background(), fetchArgs(t, server.URL))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(got, "Fetch failed: ") {
		t.Errorf("result = %q", got)
	}
}
