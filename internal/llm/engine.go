package llm

import (
	"context"
	"fmt"
	"io"
	"strings"
)

const defaultMaxRounds = 20

func getMaxRounds(req Request) int {
	if req.MaxRounds > 0 {
		return req.MaxRounds
	}
	return defaultMaxRounds
}

// Engine orchestrates provider calls and external tool execution. One call
// to Stream runs a full multi-round exchange: model rounds are repeated
// until the model stops requesting tools, with each round's tool results
// appended to the conversation before the next call.
type Engine struct {
	provider Provider
	tools    *ToolRegistry
}

func NewEngine(provider Provider, tools *ToolRegistry) *Engine {
	if tools == nil {
		tools = NewToolRegistry()
	}
	return &Engine{provider: provider, tools: tools}
}

// RegisterTool adds a tool to the engine's registry.
func (e *Engine) RegisterTool(tool Tool) {
	e.tools.Register(tool)
}

// Tools returns the engine's tool registry.
func (e *Engine) Tools() *ToolRegistry {
	return e.tools
}

// Stream runs the exchange. Text deltas are forwarded as they arrive, tool
// executions are surfaced as EventToolExecStart/End pairs, and the final
// EventDone carries token usage summed across every model call.
func (e *Engine) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		return e.runLoop(ctx, req, events)
	}), nil
}

func (e *Engine) runLoop(ctx context.Context, req Request, events chan<- Event) error {
	maxRounds := getMaxRounds(req)
	var total Usage

	for round := 0; round < maxRounds; round++ {
		stream, err := e.provider.Stream(ctx, req)
		if err != nil {
			return err
		}

		// Collect tool calls and text, forward text deltas as they arrive.
		var toolCalls []ToolCall
		var textBuilder strings.Builder
		stopReason := ""
		for {
			event, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				stream.Close()
				return err
			}
			switch event.Type {
			case EventError:
				stream.Close()
				if event.Err != nil {
					return event.Err
				}
				return fmt.Errorf("provider reported an error")
			case EventUsage:
				if event.Use != nil {
					total.InputTokens += event.Use.InputTokens
					total.OutputTokens += event.Use.OutputTokens
					events <- event
				}
			case EventTextDelta:
				if event.Text != "" {
					textBuilder.WriteString(event.Text)
					events <- event
				}
			case EventToolCall:
				if event.Tool != nil {
					toolCalls = append(toolCalls, *event.Tool)
				}
			case EventDone:
				stopReason = event.StopReason
			}
		}
		stream.Close()

		if stopReason == StopEndTurn || len(toolCalls) == 0 {
			usage := total
			events <- Event{Type: EventDone, StopReason: stopReason, Use: &usage}
			return nil
		}

		toolCalls = ensureToolCallIDs(toolCalls)
		toolCalls = dedupeToolCalls(toolCalls)

		// Execute tools sequentially, in the order the model requested them.
		// All results of a round travel back as a single tool turn.
		resultParts := make([]Part, 0, len(toolCalls))
		for _, call := range toolCalls {
			msg := e.executeToolCall(ctx, call, events, req.Debug)
			resultParts = append(resultParts, msg.Parts...)
		}

		req.Messages = append(req.Messages,
			buildAssistantMessage(textBuilder.String(), toolCalls),
			Message{Role: RoleTool, Parts: resultParts})
	}

	return fmt.Errorf("exchange exceeded max tool rounds (%d)", maxRounds)
}

// executeToolCall runs one tool call and returns its result message. Tool
// failures and unknown tool names become error results for the model, not
// exchange failures.
func (e *Engine) executeToolCall(ctx context.Context, call ToolCall, events chan<- Event, debug bool) Message {
	events <- Event{Type: EventToolExecStart, ToolCallID: call.ID, ToolName: call.Name, ToolInput: call.Arguments}

	tool, ok := e.tools.Get(call.Name)
	if !ok {
		errMsg := fmt.Sprintf("Error: tool not registered: %s", call.Name)
		DebugToolResult(debug, call.ID, call.Name, errMsg)
		events <- Event{Type: EventToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolSuccess: false}
		return ToolErrorMessage(call.ID, call.Name, errMsg)
	}

	DebugToolCall(debug, call)
	output, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		errMsg := fmt.Sprintf("Error: %v", err)
		DebugToolResult(debug, call.ID, call.Name, errMsg)
		events <- Event{Type: EventToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolSuccess: false}
		return ToolErrorMessage(call.ID, call.Name, errMsg)
	}

	DebugToolResult(debug, call.ID, call.Name, output)
	events <- Event{Type: EventToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolSuccess: true}
	return ToolResultMessage(call.ID, call.Name, output)
}

// buildAssistantMessage creates an assistant message with text and tool calls.
func buildAssistantMessage(text string, toolCalls []ToolCall) Message {
	var parts []Part
	if text != "" {
		parts = append(parts, Part{Type: PartText, Text: text})
	}
	for i := range toolCalls {
		call := toolCalls[i]
		parts = append(parts, Part{Type: PartToolCall, ToolCall: &call})
	}
	return Message{Role: RoleAssistant, Parts: parts}
}

func ensureToolCallIDs(calls []ToolCall) []ToolCall {
	for i := range calls {
		if strings.TrimSpace(calls[i].ID) == "" {
			calls[i].ID = fmt.Sprintf("toolcall-%d", i+1)
		}
	}
	return calls
}

func dedupeToolCalls(calls []ToolCall) []ToolCall {
	if len(calls) < 2 {
		return calls
	}
	seen := make(map[string]struct{}, len(calls))
	out := make([]ToolCall, 0, len(calls))
	for _, call := range calls {
		id := strings.TrimSpace(call.ID)
		if id == "" {
			out = append(out, call)
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, call)
	}
	return out
}
