package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// DebugToolCall prints a tool call in debug mode with readable formatting.
func DebugToolCall(enabled bool, call ToolCall) {
	if !enabled {
		return
	}

	args := formatJSON(call.Arguments)
	body := fmt.Sprintf("name: %s\nid: %s\nargs:\n%s", call.Name, call.ID, args)
	debugSection(enabled, "Tool Call", body)
}

// DebugToolResult prints a tool result in debug mode with readable formatting.
func DebugToolResult(enabled bool, id, name, content string) {
	if !enabled {
		return
	}

	result := content
	if result == "" {
		result = "(empty)"
	}
	body := fmt.Sprintf("name: %s\nid: %s\nresult:\n%s", name, id, result)
	debugSection(enabled, "Tool Result", body)
}

func debugSection(enabled bool, title, body string) {
	if !enabled {
		return
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "=== DEBUG: %s ===\n", title)
	if body != "" {
		fmt.Fprintln(os.Stderr, body)
	}
	fmt.Fprintf(os.Stderr, "=== DEBUG: END %s ===\n", title)
	fmt.Fprintln(os.Stderr)
}

func formatJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "(empty)"
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}
