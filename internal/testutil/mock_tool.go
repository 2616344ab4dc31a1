// Package testutil provides shared test doubles.
package testutil

import (
	"context"
	"encoding/json"

	"github.com/leocavalcante/leochat/internal/llm"
)

// MockTool is a configurable tool for testing.
type MockTool struct {
	SpecData    llm.ToolSpec
	ExecuteFn   func(ctx context.Context, args json.RawMessage) (string, error)
	Invocations []MockToolInvocation
}

// MockToolInvocation records a single tool invocation.
type MockToolInvocation struct {
	Args   json.RawMessage
	Result string
	Error  error
}

// Spec implements llm.Tool.
func (m *MockTool) Spec() llm.ToolSpec {
	return m.SpecData
}

// Execute implements llm.Tool.
func (m *MockTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var result string
	var err error
	if m.ExecuteFn != nil {
		result, err = m.ExecuteFn(ctx, args)
	}
	m.Invocations = append(m.Invocations, MockToolInvocation{
		Args:   args,
		Result: result,
		Error:  err,
	})
	return result, err
}

// NewMockTool creates a mock tool with the given name that returns a fixed result.
func NewMockTool(name string, result string) *MockTool {
	return &MockTool{
		SpecData: llm.ToolSpec{
			Name:        name,
			Description: "Mock tool: " + name,
			Schema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		ExecuteFn: func(ctx context.Context, args json.RawMessage) (string, error) {
			return result, nil
		},
	}
}

// InvocationCount returns the number of times the tool was invoked.
func (m *MockTool) InvocationCount() int {
	return len(m.Invocations)
}

// LastArgs returns the arguments from the last invocation, or nil if never invoked.
func (m *MockTool) LastArgs() json.RawMessage {
	if len(m.Invocations) == 0 {
		return nil
	}
	return m.Invocations[len(m.Invocations)-1].Args
}
