package cmd

import "github.com/spf13/cobra"

// AddModelFlag adds the --model/-m override flag.
func AddModelFlag(cmd *cobra.Command, dest *string) {
	cmd.Flags().StringVarP(dest, "model", "m", "", "Override the Anthropic model")
}

// AddMaxRoundsFlag adds the --max-rounds override flag.
func AddMaxRoundsFlag(cmd *cobra.Command, dest *int) {
	cmd.Flags().IntVar(dest, "max-rounds", 0, "Max tool rounds per exchange (0 = config default)")
}

// AddServerFlag adds the --server flag used by client commands.
func AddServerFlag(cmd *cobra.Command, dest *string) {
	cmd.Flags().StringVar(dest, "server", "", "Chat server base URL (default http://<serve.host>:<serve.port>)")
}
