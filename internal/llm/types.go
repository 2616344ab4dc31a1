package llm

import (
	"context"
	"encoding/json"
)

// Provider streams model output events for a request.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Stream yields events until io.EOF.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Request represents a single model turn.
type Request struct {
	Model           string
	Messages        []Message
	Tools           []ToolSpec
	MaxOutputTokens int
	MaxRounds       int // Max model rounds for tool execution (0 = use default)
	Debug           bool
}

// Role identifies a message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies a message content part.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
)

// Message holds a role with structured parts.
type Message struct {
	Role  Role
	Parts []Part
}

// Part represents a single content part.
type Part struct {
	Type       PartType
	Text       string
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// ToolSpec describes a callable tool.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult is the output from executing a tool call.
type ToolResult struct {
	ID      string
	Name    string
	Content string
	IsError bool // True if this result represents a tool execution error
}

// StopReason values reported by the model on completion.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// EventType describes streaming events.
type EventType string

const (
	EventTextDelta     EventType = "text_delta"
	EventToolCall      EventType = "tool_call"
	EventToolExecStart EventType = "tool_exec_start" // Emitted when tool execution begins
	EventToolExecEnd   EventType = "tool_exec_end"   // Emitted when tool execution completes
	EventUsage         EventType = "usage"
	EventDone          EventType = "done"
	EventError         EventType = "error"
)

// Event represents a streamed output update.
type Event struct {
	Type        EventType
	Text        string
	Tool        *ToolCall
	ToolCallID  string          // For EventToolExecStart/End: unique ID of this tool invocation
	ToolName    string          // For EventToolExecStart/End: name of tool being executed
	ToolInput   json.RawMessage // For EventToolExecStart: the call arguments
	ToolSuccess bool            // For EventToolExecEnd: whether tool execution succeeded
	StopReason  string          // For EventDone: why the model stopped, if reported
	Use         *Usage
	Err         error
}

// Usage captures token usage if available.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

func SystemText(text string) Message {
	return Message{
		Role:  RoleSystem,
		Parts: []Part{{Type: PartText, Text: text}},
	}
}

func UserText(text string) Message {
	return Message{
		Role:  RoleUser,
		Parts: []Part{{Type: PartText, Text: text}},
	}
}

func AssistantText(text string) Message {
	return Message{
		Role:  RoleAssistant,
		Parts: []Part{{Type: PartText, Text: text}},
	}
}

func ToolResultMessage(id, name, content string) Message {
	return Message{
		Role: RoleTool,
		Parts: []Part{{
			Type: PartToolResult,
			ToolResult: &ToolResult{
				ID:      id,
				Name:    name,
				Content: content,
			},
		}},
	}
}

// ToolErrorMessage creates a tool result message that indicates an error.
// The error is passed to the model so it can respond gracefully instead of
// failing the exchange.
func ToolErrorMessage(id, name, errorText string) Message {
	return Message{
		Role: RoleTool,
		Parts: []Part{{
			Type: PartToolResult,
			ToolResult: &ToolResult{
				ID:      id,
				Name:    name,
				Content: errorText,
				IsError: true,
			},
		}},
	}
}
