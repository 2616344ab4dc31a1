// Package wire defines the server-sent event protocol spoken between the
// chat server and its clients: one SSE frame per event, tagged with the
// event type and carrying a JSON payload.
package wire

import (
	"encoding/json"
	"fmt"
)

// EventType tags a wire event.
type EventType string

const (
	EventText      EventType = "text"       // incremental assistant text
	EventToolStart EventType = "tool_start" // a tool execution began
	EventToolEnd   EventType = "tool_end"   // a tool execution finished
	EventDone      EventType = "done"       // exchange complete
	EventError     EventType = "error"      // exchange failed, stream ends
)

// Event is the tagged union carried in SSE data payloads. Exactly the
// fields for the tagged type are populated.
type Event struct {
	Type EventType

	// EventText
	Text string

	// EventToolStart / EventToolEnd
	ToolName string
	// EventToolStart only: the tool call arguments.
	ToolInput json.RawMessage

	// EventDone: tokens consumed across every model call of the exchange.
	TokenCount int

	// EventError
	Message string
}

type textPayload struct {
	Text string `json:"text"`
}

type toolStartPayload struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type toolEndPayload struct {
	Name string `json:"name"`
}

type donePayload struct {
	TokenCount int `json:"tokenCount"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Text returns a text event.
func Text(text string) Event {
	return Event{Type: EventText, Text: text}
}

// ToolStart returns a tool_start event.
func ToolStart(name string, input json.RawMessage) Event {
	return Event{Type: EventToolStart, ToolName: name, ToolInput: input}
}

// ToolEnd returns a tool_end event.
func ToolEnd(name string) Event {
	return Event{Type: EventToolEnd, ToolName: name}
}

// Done returns a done event.
func Done(tokenCount int) Event {
	return Event{Type: EventDone, TokenCount: tokenCount}
}

// Error returns an error event.
func Error(message string) Event {
	return Event{Type: EventError, Message: message}
}

// MarshalData renders the event's JSON data payload.
func (e Event) MarshalData() ([]byte, error) {
	switch e.Type {
	case EventText:
		return json.Marshal(textPayload{Text: e.Text})
	case EventToolStart:
		input := e.ToolInput
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		return json.Marshal(toolStartPayload{Name: e.ToolName, Input: input})
	case EventToolEnd:
		return json.Marshal(toolEndPayload{Name: e.ToolName})
	case EventDone:
		return json.Marshal(donePayload{TokenCount: e.TokenCount})
	case EventError:
		return json.Marshal(errorPayload{Message: e.Message})
	default:
		return nil, fmt.Errorf("wire: unknown event type %q", e.Type)
	}
}

// decodeEvent parses a data payload for the given tag. Unknown tags and
// malformed payloads are errors; the protocol has a closed event set.
func decodeEvent(tag string, data []byte) (Event, error) {
	switch EventType(tag) {
	case EventText:
		var p textPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("wire: bad text payload: %w", err)
		}
		return Text(p.Text), nil
	case EventToolStart:
		var p toolStartPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("wire: bad tool_start payload: %w", err)
		}
		return ToolStart(p.Name, p.Input), nil
	case EventToolEnd:
		var p toolEndPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("wire: bad tool_end payload: %w", err)
		}
		return ToolEnd(p.Name), nil
	case EventDone:
		var p donePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("wire: bad done payload: %w", err)
		}
		return Done(p.TokenCount), nil
	case EventError:
		var p errorPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return Event{}, fmt.Errorf("wire: bad error payload: %w", err)
		}
		return Error(p.Message), nil
	default:
		return Event{}, fmt.Errorf("wire: unknown event tag %q", tag)
	}
}
