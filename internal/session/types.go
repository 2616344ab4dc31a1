package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session is a stored conversation.
type Session struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	TokenCount int       `json:"token_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Message is one display-level turn in a session. Tool annotations are
// already folded into assistant content before it gets here.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Sequence  int       `json:"sequence"`
}

// SessionSummary is a lightweight view of a session for listing.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	MessageCount int       `json:"message_count"`
	TokenCount   int       `json:"token_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListOptions configures session listing.
type ListOptions struct {
	Limit  int // Max results (0 = use default)
	Offset int // Pagination offset
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// TitleFromContent derives a session title from the first user message.
func TitleFromContent(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "\n"); idx != -1 {
		content = content[:idx]
	}
	if len(content) > 30 {
		content = content[:30] + "..."
	}
	return content
}
