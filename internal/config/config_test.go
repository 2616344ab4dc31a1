package config

import (
	"os"
	"strings"
	"testing"
)

func TestApplyOverrides(t *testing.T) {
	cfg := &Config{
		Anthropic: AnthropicConfig{Model: "claude-opus-4.5"},
		Chat:      ChatConfig{MaxRounds: 20},
	}

	cfg.ApplyOverrides("claude-sonnet-4-5", 0)
	if cfg.Anthropic.Model != "claude-sonnet-4-5" {
		t.Fatalf("model=%q, want %q", cfg.Anthropic.Model, "claude-sonnet-4-5")
	}
	if cfg.Chat.MaxRounds != 20 {
		t.Fatalf("max rounds changed unexpectedly: %d", cfg.Chat.MaxRounds)
	}

	cfg.ApplyOverrides("", 5)
	if cfg.Anthropic.Model != "claude-sonnet-4-5" {
		t.Fatalf("model changed unexpectedly: %q", cfg.Anthropic.Model)
	}
	if cfg.Chat.MaxRounds != 5 {
		t.Fatalf("max rounds=%d, want 5", cfg.Chat.MaxRounds)
	}
}

func TestExpandEnv(t *testing.T) {
	os.Setenv("LEOCHAT_TEST_KEY", "sk-test")
	defer os.Unsetenv("LEOCHAT_TEST_KEY")

	cases := []struct {
		in   string
		want string
	}{
		{"${LEOCHAT_TEST_KEY}", "sk-test"},
		{"$LEOCHAT_TEST_KEY", "sk-test"},
		{"literal-value", "literal-value"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := expandEnv(tc.in); got != tc.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestServeAddr(t *testing.T) {
	s := ServeConfig{Host: "localhost", Port: 3000}
	if got := s.Addr(); got != "localhost:3000" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestSaveWritesConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if Exists() {
		t.Fatal("config file should not exist yet")
	}

	cfg := &Config{
		Anthropic: AnthropicConfig{Model: "claude-opus-4.5", MaxTokens: 200000},
		Chat:      ChatConfig{MaxRounds: 20},
		Serve:     ServeConfig{Host: "localhost", Port: 3000},
	}
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists() {
		t.Fatal("Save did not create the config file")
	}

	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config file: %v", err)
	}
	for _, want := range []string{"model: claude-opus-4.5", "max_rounds: 20", "port: 3000"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("config file missing %q:\n%s", want, data)
		}
	}
}
