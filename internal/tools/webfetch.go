package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/leocavalcante/leochat/internal/llm"
)

const (
	WebFetchToolName = "web_fetch"
	maxFetchChars    = 10000
)

var (
	scriptRe     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// WebFetchTool retrieves a URL and returns its content: JSON pretty-printed,
// HTML stripped to text, anything else raw. Long content is truncated.
type WebFetchTool struct {
	client *http.Client
}

func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *WebFetchTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        WebFetchToolName,
		Description: "Fetch the content of a web page. Use this when you need to read the content of a specific URL.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "The URL to fetch content from",
				},
			},
			"required": []string{"url"},
		},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", fmt.Errorf("parse web_fetch args: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.URL, nil)
	if err != nil {
		return fmt.Sprintf("Fetch failed: %v", err), nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Fetch failed: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Sprintf("Failed to fetch: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Fetch failed: %v", err), nil
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, body, "", "  "); err == nil {
			return pretty.String(), nil
		}
		return string(body), nil
	}

	text := string(body)
	if strings.Contains(contentType, "text/html") {
		text = stripHTML(text)
	}
	return truncateContent(text, maxFetchChars), nil
}

func stripHTML(html string) string {
	text := scriptRe.ReplaceAllString(html, "")
	text = styleRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func truncateContent(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
