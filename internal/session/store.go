// Package session persists conversations so the chat TUI can resume them.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store is the interface for session persistence.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Rename(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOptions) ([]SessionSummary, error)

	AddMessage(ctx context.Context, sessionID string, msg *Message) error
	GetMessages(ctx context.Context, sessionID string, limit, offset int) ([]Message, error)
	// SetTokens records the token total reported by the latest exchange.
	// The exchange already sums all of its rounds, so the value replaces
	// the stored count rather than adding to it.
	SetTokens(ctx context.Context, id string, tokens int) error

	// Current session tracking (for auto-resume)
	SetCurrent(ctx context.Context, sessionID string) error
	GetCurrent(ctx context.Context) (*Session, error)
	ClearCurrent(ctx context.Context) error

	Close() error
}

// Config holds session storage configuration.
type Config struct {
	Enabled    bool `mapstructure:"enabled"`      // Master switch
	MaxAgeDays int  `mapstructure:"max_age_days"` // Auto-delete after N days (0=never)
	MaxCount   int  `mapstructure:"max_count"`    // Keep at most N sessions (0=unlimited)
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		MaxAgeDays: 0,
		MaxCount:   0,
	}
}

// GetDataDir returns the XDG data directory for leochat.
// Uses $XDG_DATA_HOME if set, otherwise ~/.local/share
func GetDataDir() (string, error) {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "leochat"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "leochat"), nil
}

// GetDBPath returns the path to the sessions database.
func GetDBPath() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "sessions.db"), nil
}

// NewStore creates a new Store based on the configuration.
// If sessions are disabled, returns a no-op store.
func NewStore(cfg Config) (Store, error) {
	if !cfg.Enabled {
		return &NoopStore{}, nil
	}
	return NewSQLiteStore(cfg)
}
