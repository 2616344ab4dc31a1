package tui

import (
	"testing"

	"github.com/leocavalcante/leochat/internal/config"
	"github.com/leocavalcante/leochat/internal/session"
)

func TestCommitAssistantReplacesSessionTokens(t *testing.T) {
	sess := &session.Session{ID: "s1"}
	m := New(&config.Config{}, nil, &session.NoopStore{}, sess, nil)

	m.commitAssistant("first answer", 100)
	m.commitAssistant("second answer", 40)

	if sess.TokenCount != 40 {
		t.Errorf("session token count = %d, want 40 (each done event carries the exchange total)", sess.TokenCount)
	}
}

func TestCommitAssistantKeepsTokensOnFailedExchange(t *testing.T) {
	sess := &session.Session{ID: "s1"}
	m := New(&config.Config{}, nil, &session.NoopStore{}, sess, nil)

	m.commitAssistant("an answer", 100)
	// A failed exchange commits its partial content with a zero total.
	m.commitAssistant("partial\n\nError: upstream reset", 0)

	if sess.TokenCount != 100 {
		t.Errorf("session token count = %d, want 100 after a failed exchange", sess.TokenCount)
	}
	if len(m.messages) != 2 {
		t.Errorf("messages = %d, want 2 (partial content is still committed)", len(m.messages))
	}
}
