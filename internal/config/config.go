// Package config loads and validates the application's configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/diffscope/diffscope/internal/logger"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port string
}

// GitHubConfig holds credentials for both PAT and GitHub App authentication.
type GitHubConfig struct {
	Token          string
	AppID          int64
	WebhookSecret  string
	PrivateKeyPath string
}

// AIConfig holds the LLM provider and model settings.
type AIConfig struct {
	Provider       string // "openai", "ollama" or "gemini"
	OpenAIAPIKey   string
	GeminiAPIKey   string
	OllamaHost     string
	GeneratorModel string
	EmbedderModel  string
}

// ReviewConfig tunes the indexing and review pipeline.
type ReviewConfig struct {
	MaxWorkers            int // dispatcher worker pool size
	FileConcurrency       int // parallel per-file LLM calls within one review
	FileTokenBudget       int // files whose patch exceeds this are skipped
	MaxQueriesPerHunkFile int
	MaxQueryLength        int
	MaxContextChars       int
	SnippetsPerQuery      int
	LLMTimeout            time.Duration
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig
	GitHub     GitHubConfig
	AI         AIConfig
	Review     ReviewConfig
	Database   DBConfig
	QdrantHost string
	Logging    logger.Config
}

// placeholders lists values that indicate a credential was never filled in.
// Both GITHUB_TOKEN and OPENAI_API_KEY must be real secrets at startup.
var placeholders = map[string]struct{}{
	"":               {},
	"...":            {},
	"changeme":       {},
	"change-me":      {},
	"your-api-key":   {},
	"your-token":     {},
	"your_api_key":   {},
	"your_token":     {},
	"xxx":            {},
	"sk-...":         {},
	"ghp_...":        {},
	"<github-token>": {},
	"<openai-key>":   {},
}

// isPlaceholder reports whether a credential value was left at a template default.
func isPlaceholder(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if _, ok := placeholders[v]; ok {
		return true
	}
	return strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">")
}

// Load reads configuration from environment variables and an optional .env
// file, applies defaults, and validates required credentials.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("LLM_PROVIDER", "openai")
	v.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	v.SetDefault("QDRANT_HOST", "localhost:6334")
	v.SetDefault("GENERATOR_MODEL_NAME", "gpt-4o")
	v.SetDefault("EMBEDDER_MODEL_NAME", "nomic-embed-text")
	v.SetDefault("MAX_WORKERS", 5)
	v.SetDefault("FILE_CONCURRENCY", 4)
	v.SetDefault("FILE_TOKEN_BUDGET", 6000)
	v.SetDefault("MAX_QUERIES_PER_FILE", 8)
	v.SetDefault("MAX_QUERY_LENGTH", 512)
	v.SetDefault("MAX_CONTEXT_CHARS", 24000)
	v.SetDefault("SNIPPETS_PER_QUERY", 4)
	v.SetDefault("LLM_TIMEOUT", "3m")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "diffscope")
	v.SetDefault("DB_NAME", "diffscope")
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", "5m")
	v.SetDefault("GITHUB_PRIVATE_KEY_PATH", "keys/diffscope-app.private-key.pem")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// A missing .env is fine; a broken one is not.
			if !strings.Contains(err.Error(), "no such file") {
				return nil, fmt.Errorf("failed to read .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("SERVER_PORT"),
		},
		GitHub: GitHubConfig{
			Token:          v.GetString("GITHUB_TOKEN"),
			AppID:          v.GetInt64("GITHUB_APP_ID"),
			WebhookSecret:  v.GetString("GITHUB_WEBHOOK_SECRET"),
			PrivateKeyPath: v.GetString("GITHUB_PRIVATE_KEY_PATH"),
		},
		AI: AIConfig{
			Provider:       strings.ToLower(v.GetString("LLM_PROVIDER")),
			OpenAIAPIKey:   v.GetString("OPENAI_API_KEY"),
			GeminiAPIKey:   v.GetString("GEMINI_API_KEY"),
			OllamaHost:     v.GetString("OLLAMA_HOST"),
			GeneratorModel: v.GetString("GENERATOR_MODEL_NAME"),
			EmbedderModel:  v.GetString("EMBEDDER_MODEL_NAME"),
		},
		Review: ReviewConfig{
			MaxWorkers:            v.GetInt("MAX_WORKERS"),
			FileConcurrency:       v.GetInt("FILE_CONCURRENCY"),
			FileTokenBudget:       v.GetInt("FILE_TOKEN_BUDGET"),
			MaxQueriesPerHunkFile: v.GetInt("MAX_QUERIES_PER_FILE"),
			MaxQueryLength:        v.GetInt("MAX_QUERY_LENGTH"),
			MaxContextChars:       v.GetInt("MAX_CONTEXT_CHARS"),
			SnippetsPerQuery:      v.GetInt("SNIPPETS_PER_QUERY"),
			LLMTimeout:            v.GetDuration("LLM_TIMEOUT"),
		},
		Database: DBConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			Username:        v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_NAME"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		QdrantHost: v.GetString("QDRANT_HOST"),
		Logging: logger.Config{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required credentials and basic value sanity.
func (c *Config) Validate() error {
	if isPlaceholder(c.GitHub.Token) {
		return fmt.Errorf("GITHUB_TOKEN must be set to a real token")
	}
	if c.AI.Provider == "openai" && isPlaceholder(c.AI.OpenAIAPIKey) {
		return fmt.Errorf("OPENAI_API_KEY must be set to a real key")
	}
	if c.AI.Provider == "gemini" && isPlaceholder(c.AI.GeminiAPIKey) {
		return fmt.Errorf("GEMINI_API_KEY must be set for the gemini provider")
	}
	switch c.AI.Provider {
	case "openai", "ollama", "gemini":
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.AI.Provider)
	}
	if c.Review.MaxWorkers <= 0 {
		return fmt.Errorf("MAX_WORKERS must be positive, got %d", c.Review.MaxWorkers)
	}
	if c.Review.FileTokenBudget <= 0 {
		return fmt.Errorf("FILE_TOKEN_BUDGET must be positive, got %d", c.Review.FileTokenBudget)
	}
	return nil
}

// ValidateWebhook checks the additional settings the webhook server needs.
func (c *Config) ValidateWebhook() error {
	if c.GitHub.AppID == 0 {
		return fmt.Errorf("GITHUB_APP_ID must be set")
	}
	if c.GitHub.WebhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET must be set")
	}
	return nil
}
