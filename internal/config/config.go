// Package config loads leochat configuration from the XDG config dir,
// environment, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/leocavalcante/leochat/internal/session"
)

// DefaultInstructions is the system prompt sent with every exchange unless
// overridden in the config file.
const DefaultInstructions = "You are Leo Cavalcante's personal AI assistant. Be skeptical, objective, and use few words. Get to the point."

type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Serve     ServeConfig     `mapstructure:"serve"`
	Session   session.Config  `mapstructure:"session"`
}

type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type ChatConfig struct {
	Instructions string `mapstructure:"instructions"` // System prompt for exchanges
	MaxRounds    int    `mapstructure:"max_rounds"`   // Tool-use round limit per exchange
}

type ServeConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the listen address in host:port form.
func (s ServeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func Load() (*Config, error) {
	configPath, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath(".")

	// Set defaults
	viper.SetDefault("anthropic.model", "claude-opus-4.5")
	viper.SetDefault("anthropic.max_tokens", 200000)
	viper.SetDefault("chat.instructions", DefaultInstructions)
	viper.SetDefault("chat.max_rounds", 20)
	viper.SetDefault("serve.host", "localhost")
	viper.SetDefault("serve.port", 3000)
	viper.SetDefault("session.enabled", true)
	viper.SetDefault("session.max_age_days", 0)
	viper.SetDefault("session.max_count", 0)

	// Read config file (optional - won't error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	resolveAnthropicCredentials(&cfg.Anthropic)

	if port := os.Getenv("PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil && p > 0 {
			cfg.Serve.Port = p
		}
	}

	return &cfg, nil
}

// ApplyOverrides applies CLI flag overrides to the config.
func (c *Config) ApplyOverrides(model string, maxRounds int) {
	if model != "" {
		c.Anthropic.Model = model
	}
	if maxRounds > 0 {
		c.Chat.MaxRounds = maxRounds
	}
}

// resolveAnthropicCredentials resolves the Anthropic API key from config or
// environment.
func resolveAnthropicCredentials(cfg *AnthropicConfig) {
	cfg.APIKey = expandEnv(cfg.APIKey)
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns the XDG config directory for leochat.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "leochat"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "leochat"), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes the config to disk
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`anthropic:
  model: %s
  max_tokens: %d
  # api_key: set here or via the ANTHROPIC_API_KEY env var

chat:
  max_rounds: %d
  # Custom system prompt for exchanges
  # instructions: |
  #   Be concise. I'm an experienced developer.

serve:
  host: %s
  port: %d
`, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, cfg.Chat.MaxRounds, cfg.Serve.Host, cfg.Serve.Port)

	return os.WriteFile(path, []byte(content), 0600)
}
