package client

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/leocavalcante/leochat/internal/wire"
)

func apply(t *testing.T, c *Consumer, events ...wire.Event) {
	t.Helper()
	for _, event := range events {
		if err := c.Apply(event); err != nil {
			t.Fatalf("Apply(%s): %v", event.Type, err)
		}
	}
}

func TestConsumerTextOnly(t *testing.T) {
	c := NewConsumer(nil)
	if c.State() != StateIdle {
		t.Fatalf("initial state = %s", c.State())
	}

	apply(t, c,
		wire.Text("Hello"),
		wire.Text(", world!"),
		wire.Done(42),
	)

	if c.State() != StateFinalized {
		t.Errorf("state = %s, want finalized", c.State())
	}
	if c.Content() != "Hello, world!" {
		t.Errorf("content = %q", c.Content())
	}
	if c.TokenCount() != 42 {
		t.Errorf("token count = %d", c.TokenCount())
	}
}

func TestConsumerToolAnnotations(t *testing.T) {
	var displays []string
	c := NewConsumer(func(display string) {
		displays = append(displays, display)
	})

	apply(t, c,
		wire.Text("Checking."),
		wire.ToolStart("get_weather", json.RawMessage(`{"location":"Paris"}`)),
	)

	// While the tool runs the display carries a transient annotation.
	last := displays[len(displays)-1]
	if !strings.Contains(last, "*Getting weather for: Paris...*") {
		t.Errorf("transient display = %q", last)
	}

	apply(t, c, wire.ToolEnd("get_weather"))

	// The transient annotation is gone, replaced by the durable one.
	if strings.Contains(c.Display(), "Getting weather for") {
		t.Errorf("display still has transient annotation: %q", c.Display())
	}
	if !strings.Contains(c.Content(), "*Weather lookup: Paris*") {
		t.Errorf("content = %q", c.Content())
	}

	apply(t, c, wire.Text("It is mild."), wire.Done(100))
	if !strings.HasPrefix(c.Content(), "Checking.") || !strings.HasSuffix(c.Content(), "It is mild.") {
		t.Errorf("content = %q", c.Content())
	}
}

func TestConsumerSearchAnnotations(t *testing.T) {
	c := NewConsumer(nil)
	apply(t, c,
		wire.ToolStart("web_search", json.RawMessage(`{"query":"go 1.25"}`)),
	)
	if !strings.Contains(c.Display(), `*Searching for: "go 1.25"...*`) {
		t.Errorf("display = %q", c.Display())
	}
	apply(t, c, wire.ToolEnd("web_search"))
	if !strings.Contains(c.Content(), `*Searched: "go 1.25"*`) {
		t.Errorf("content = %q", c.Content())
	}
}

func TestConsumerFetchAnnotations(t *testing.T) {
	c := NewConsumer(nil)
	apply(t, c,
		wire.ToolStart("web_fetch", json.RawMessage(`{"url":"https://go.dev"}`)),
		wire.ToolEnd("web_fetch"),
	)
	if !strings.Contains(c.Content(), "*Fetched: https://go.dev*") {
		t.Errorf("content = %q", c.Content())
	}
}

func TestConsumerErrorKeepsPartialContent(t *testing.T) {
	c := NewConsumer(nil)
	apply(t, c,
		wire.Text("Partial answer"),
		wire.Error("upstream connection reset"),
	)

	if c.State() != StateFailed {
		t.Errorf("state = %s, want failed", c.State())
	}
	if c.Err() != "upstream connection reset" {
		t.Errorf("err = %q", c.Err())
	}
	content := c.Content()
	if !strings.HasPrefix(content, "Partial answer") {
		t.Errorf("partial content lost: %q", content)
	}
	if !strings.HasSuffix(content, "Error: upstream connection reset") {
		t.Errorf("content = %q", content)
	}
}

func TestConsumerErrorWithoutContent(t *testing.T) {
	c := NewConsumer(nil)
	apply(t, c, wire.Error("boom"))
	if c.Content() != "Error: boom" {
		t.Errorf("content = %q", c.Content())
	}
}

func TestConsumerRejectsEventsAfterTerminal(t *testing.T) {
	c := NewConsumer(nil)
	apply(t, c, wire.Done(1))
	if err := c.Apply(wire.Text("late")); err == nil {
		t.Fatal("expected error applying event after done")
	}
}
