// Package client consumes the chat server's SSE stream: it opens exchanges
// and folds the wire events into displayable assistant content.
package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/leocavalcante/leochat/internal/wire"
)

// State tracks a consumer through one exchange.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateFinalized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Consumer folds wire events into assistant content. Committed text only
// grows; tool activity shows up as a transient annotation while the tool
// runs and a terse durable one once it finishes. The optional publish
// callback receives the current display string after every event.
type Consumer struct {
	state      State
	content    strings.Builder
	transient  string
	durable    map[string]string
	tokenCount int
	errMessage string
	publish    func(display string)
}

func NewConsumer(publish func(display string)) *Consumer {
	return &Consumer{
		durable: make(map[string]string),
		publish: publish,
	}
}

func (c *Consumer) State() State { return c.state }

// TokenCount returns the total reported by the done event, zero before it.
func (c *Consumer) TokenCount() int { return c.tokenCount }

// Err returns the error message from a terminal error event.
func (c *Consumer) Err() string { return c.errMessage }

// Content returns the committed assistant content. After a failed exchange
// it ends with the error message so partial output is never silently lost.
func (c *Consumer) Content() string { return c.content.String() }

// Display returns committed content plus any transient tool annotation.
func (c *Consumer) Display() string {
	return c.content.String() + c.transient
}

// Apply folds the next event. Events after a terminal one are rejected.
func (c *Consumer) Apply(event wire.Event) error {
	if c.state == StateFinalized || c.state == StateFailed {
		return fmt.Errorf("client: event %q after terminal state %s", event.Type, c.state)
	}
	c.state = StateStreaming

	switch event.Type {
	case wire.EventText:
		c.content.WriteString(event.Text)
		c.transient = ""
	case wire.EventToolStart:
		transient, durable := toolAnnotations(event.ToolName, event.ToolInput)
		c.durable[event.ToolName] = durable
		c.transient = "\n\n" + transient + "\n\n"
	case wire.EventToolEnd:
		durable, ok := c.durable[event.ToolName]
		if !ok {
			durable = fmt.Sprintf("*%s*", event.ToolName)
		}
		c.content.WriteString("\n\n" + durable + "\n\n")
		c.transient = ""
	case wire.EventDone:
		c.tokenCount = event.TokenCount
		c.transient = ""
		c.state = StateFinalized
	case wire.EventError:
		c.errMessage = event.Message
		c.transient = ""
		if c.content.Len() > 0 {
			c.content.WriteString("\n\n")
		}
		fmt.Fprintf(&c.content, "Error: %s", event.Message)
		c.state = StateFailed
	default:
		return fmt.Errorf("client: unhandled event type %q", event.Type)
	}

	if c.publish != nil {
		c.publish(c.Display())
	}
	return nil
}

// toolAnnotations renders the in-flight and completed annotations for a
// tool call.
func toolAnnotations(name string, input json.RawMessage) (transient, durable string) {
	var args struct {
		Query    string `json:"query"`
		Location string `json:"location"`
		URL      string `json:"url"`
	}
	_ = json.Unmarshal(input, &args)

	switch name {
	case "web_search":
		return fmt.Sprintf(`*Searching for: "%s"...*`, args.Query),
			fmt.Sprintf(`*Searched: "%s"*`, args.Query)
	case "get_weather":
		return fmt.Sprintf("*Getting weather for: %s...*", args.Location),
			fmt.Sprintf("*Weather lookup: %s*", args.Location)
	case "web_fetch":
		return fmt.Sprintf("*Fetching: %s...*", args.URL),
			fmt.Sprintf("*Fetched: %s*", args.URL)
	default:
		return fmt.Sprintf("*Running %s...*", name),
			fmt.Sprintf("*%s*", name)
	}
}
