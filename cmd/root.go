package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "leochat",
	Short: "Streaming AI chat with tool use",
	Long: `leochat is a personal AI chat assistant with web search, weather
lookup, and page fetching tools.

Examples:
  leochat serve                  # run the HTTP/SSE chat server
  leochat chat                   # terminal chat client
  leochat sessions               # list stored sessions
  leochat config                 # view effective configuration`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

var debugFlag bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Show debug information")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
