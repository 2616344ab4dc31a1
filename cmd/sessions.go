package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/leocavalcante/leochat/internal/config"
	"github.com/leocavalcante/leochat/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored chat sessions",
	RunE:  runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openSessionStore() (session.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	store, err := session.NewStore(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return store, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.List(context.Background(), session.ListOptions{})
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tTOKENS\tUPDATED")
	for _, sum := range summaries {
		title := sum.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			shortID(sum.ID), title, sum.MessageCount, sum.TokenCount,
			sum.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := resolveSessionID(store, args[0])
	if err != nil {
		return err
	}
	if err := store.Delete(context.Background(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", shortID(id))
	return nil
}

// resolveSessionID accepts a full id or the short prefix shown by the list.
func resolveSessionID(store session.Store, arg string) (string, error) {
	summaries, err := store.List(context.Background(), session.ListOptions{Limit: 1000})
	if err != nil {
		return "", err
	}
	var match string
	for _, sum := range summaries {
		if sum.ID == arg || shortID(sum.ID) == arg {
			if match != "" {
				return "", fmt.Errorf("session id %q is ambiguous", arg)
			}
			match = sum.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("session not found: %s", arg)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
