package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{Token: "ghp_realtoken123"},
		AI: AIConfig{
			Provider:     "openai",
			OpenAIAPIKey: "sk-realkey456",
		},
		Review: ReviewConfig{
			MaxWorkers:      5,
			FileTokenBudget: 6000,
			LLMTimeout:      time.Minute,
		},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing github token",
			mutate:  func(c *Config) { c.GitHub.Token = "" },
			wantErr: "GITHUB_TOKEN",
		},
		{
			name:    "placeholder github token",
			mutate:  func(c *Config) { c.GitHub.Token = "your-token" },
			wantErr: "GITHUB_TOKEN",
		},
		{
			name:    "angle bracket placeholder",
			mutate:  func(c *Config) { c.GitHub.Token = "<insert token here>" },
			wantErr: "GITHUB_TOKEN",
		},
		{
			name:    "placeholder openai key",
			mutate:  func(c *Config) { c.AI.OpenAIAPIKey = "sk-..." },
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "missing openai key",
			mutate:  func(c *Config) { c.AI.OpenAIAPIKey = "" },
			wantErr: "OPENAI_API_KEY",
		},
		{
			name: "openai key not needed for ollama",
			mutate: func(c *Config) {
				c.AI.Provider = "ollama"
				c.AI.OpenAIAPIKey = ""
			},
		},
		{
			name: "gemini provider requires key",
			mutate: func(c *Config) {
				c.AI.Provider = "gemini"
				c.AI.GeminiAPIKey = ""
			},
			wantErr: "GEMINI_API_KEY",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.AI.Provider = "anthropic" },
			wantErr: "unsupported LLM provider",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Review.MaxWorkers = 0 },
			wantErr: "MAX_WORKERS",
		},
		{
			name:    "zero token budget",
			mutate:  func(c *Config) { c.Review.FileTokenBudget = 0 },
			wantErr: "FILE_TOKEN_BUDGET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateWebhook(t *testing.T) {
	cfg := validConfig()
	assert.ErrorContains(t, cfg.ValidateWebhook(), "GITHUB_APP_ID")

	cfg.GitHub.AppID = 42
	assert.ErrorContains(t, cfg.ValidateWebhook(), "GITHUB_WEBHOOK_SECRET")

	cfg.GitHub.WebhookSecret = "hunter2"
	assert.NoError(t, cfg.ValidateWebhook())
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, isPlaceholder("  CHANGEME  "))
	assert.True(t, isPlaceholder("<my-secret>"))
	assert.False(t, isPlaceholder("ghp_8fK2xn91"))
}
