package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leocavalcante/leochat/internal/client"
	"github.com/leocavalcante/leochat/internal/config"
	"github.com/leocavalcante/leochat/internal/session"
	"github.com/leocavalcante/leochat/internal/tui"
)

var (
	chatServer string
	chatNew    bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start a terminal chat session against a running leochat server.

Examples:
  leochat chat
  leochat chat --new                        # start a fresh session
  leochat chat --server http://host:3000    # connect to a remote server

Keyboard shortcuts:
  Enter        - Send message
  Shift+Enter  - Insert newline
  Esc          - Cancel streaming
  Ctrl+K       - New session
  Ctrl+C       - Quit`,
	RunE: runChat,
}

func init() {
	AddServerFlag(chatCmd, &chatServer)
	chatCmd.Flags().BoolVar(&chatNew, "new", false, "Start a fresh session instead of resuming")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	baseURL := chatServer
	if baseURL == "" {
		baseURL = "http://" + cfg.Serve.Addr()
	}

	store, err := session.NewStore(cfg.Session)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	sess, messages, err := resumeOrCreateSession(store, chatNew)
	if err != nil {
		return err
	}

	cli := client.New(baseURL, client.WithSessionID(sess.ID))

	healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cli.WaitHealthy(healthCtx); err != nil {
		return fmt.Errorf("chat server not reachable at %s (run `leochat serve` first): %w", baseURL, err)
	}

	model := tui.New(cfg, cli, store, sess, messages)
	if err := tui.Run(model); err != nil {
		return fmt.Errorf("failed to run chat: %w", err)
	}
	return nil
}

// resumeOrCreateSession returns the current session and its messages, or a
// fresh session when none exists or --new was given.
func resumeOrCreateSession(store session.Store, fresh bool) (*session.Session, []session.Message, error) {
	ctx := context.Background()

	if !fresh {
		sess, err := store.GetCurrent(ctx)
		if err == nil && sess != nil {
			messages, err := store.GetMessages(ctx, sess.ID, 0, 0)
			if err != nil {
				// Malformed history degrades to an empty conversation.
				messages = nil
			}
			return sess, messages, nil
		}
	}

	sess := &session.Session{}
	if err := store.Create(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	if err := store.SetCurrent(ctx, sess.ID); err != nil {
		return nil, nil, fmt.Errorf("set current session: %w", err)
	}
	return sess, nil, nil
}
