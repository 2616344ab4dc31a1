package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leocavalcante/leochat/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  `Print the effective configuration (defaults, config file, environment) as YAML.`,
	RunE:  runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long:  `Write a commented config file with the current effective values.`,
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	apiKey := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKey = "(set)"
	}

	out := map[string]any{
		"anthropic": map[string]any{
			"api_key":    apiKey,
			"model":      cfg.Anthropic.Model,
			"max_tokens": cfg.Anthropic.MaxTokens,
		},
		"chat": map[string]any{
			"instructions": cfg.Chat.Instructions,
			"max_rounds":   cfg.Chat.MaxRounds,
		},
		"serve": map[string]any{
			"host": cfg.Serve.Host,
			"port": cfg.Serve.Port,
		},
		"session": map[string]any{
			"enabled":      cfg.Session.Enabled,
			"max_age_days": cfg.Session.MaxAgeDays,
			"max_count":    cfg.Session.MaxCount,
		},
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}

	if path, err := config.GetConfigPath(); err == nil {
		if config.Exists() {
			fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s\n", path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s (not present, using defaults)\n", path)
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.GetConfigPath()
	if err != nil {
		return err
	}
	if config.Exists() {
		return fmt.Errorf("config file already exists: %s", path)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
