// Package tools implements the built-in tools the chat engine may execute:
// web_search, get_weather, and web_fetch. Failures are reported as result
// text rather than errors so the model can recover gracefully.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leocavalcante/leochat/internal/llm"
)

const WebSearchToolName = "web_search"

// WebSearchTool searches the web using the DuckDuckGo instant answer API.
type WebSearchTool struct {
	client  *http.Client
	baseURL string
}

func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://api.duckduckgo.com",
	}
}

func (t *WebSearchTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        WebSearchToolName,
		Description: "Search the web for current information. Use this when you need to find up-to-date information, news, or facts that may not be in your training data.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query to look up",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", fmt.Errorf("parse web_search args: %w", err)
	}

	searchURL := fmt.Sprintf("%s/?q=%s&format=json&no_html=1", t.baseURL, url.QueryEscape(payload.Query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Search failed: %v", err), nil
	}
	defer resp.Body.Close()

	var answer struct {
		Abstract      string `json:"Abstract"`
		RelatedTopics []struct {
			Text string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return fmt.Sprintf("Search failed: %v", err), nil
	}

	var results strings.Builder
	if answer.Abstract != "" {
		fmt.Fprintf(&results, "Summary: %s\n\n", answer.Abstract)
	}
	if len(answer.RelatedTopics) > 0 {
		topics := answer.RelatedTopics
		if len(topics) > 5 {
			topics = topics[:5]
		}
		results.WriteString("Related results:\n")
		for _, topic := range topics {
			if topic.Text == "" {
				continue
			}
			fmt.Fprintf(&results, "- %s\n", topic.Text)
		}
	}

	if results.Len() == 0 {
		return "No results found for this query.", nil
	}
	return results.String(), nil
}
