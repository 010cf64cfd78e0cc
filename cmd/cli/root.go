package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/llms/gemini"
	"github.com/sevigo/goframe/llms/ollama"
	"github.com/sevigo/goframe/parsers"
	"github.com/spf13/cobra"

	"github.com/diffscope/diffscope/internal/config"
	"github.com/diffscope/diffscope/internal/gitutil"
	"github.com/diffscope/diffscope/internal/ingest"
	"github.com/diffscope/diffscope/internal/llm"
	"github.com/diffscope/diffscope/internal/logger"
	"github.com/diffscope/diffscope/internal/storage"
)

var (
	githubToken string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "diffscope",
	Short: "diffscope reviews GitHub pull requests with an LLM.",
	Long: `diffscope runs retrieval-augmented pull request reviews from the
command line: it indexes the repository into a vector store, derives search
queries from the diff, and asks a language model for structured findings.`,
}

func init() { //nolint:gochecknoinits // cobra command registration
	rootCmd.PersistentFlags().StringVarP(&githubToken, "github-token", "t", "", "GitHub personal access token (overrides GITHUB_TOKEN)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output with timing information")
}

// loadConfig applies CLI flag overrides and loads the validated config.
func loadConfig() (*config.Config, *slog.Logger, error) {
	if githubToken != "" {
		if err := os.Setenv("GITHUB_TOKEN", githubToken); err != nil {
			return nil, nil, fmt.Errorf("failed to apply --github-token: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	log := logger.New(cfg.Logging, os.Stderr)
	return cfg, log, nil
}

// pipeline bundles the one-shot review components the CLI commands share.
type pipeline struct {
	indexer  *ingest.Indexer
	reviewer *llm.Reviewer
	cloner   *gitutil.Client
}

// buildPipeline constructs the indexing and review components without the
// webhook server or database.
func buildPipeline(ctx context.Context, cfg *config.Config, log *slog.Logger) (*pipeline, error) {
	embedder, err := newEmbedder(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	vectorStore := storage.NewQdrantVectorStore(cfg.QdrantHost, embedder, log)

	parserRegistry, err := parsers.RegisterLanguagePlugins(log)
	if err != nil {
		return nil, fmt.Errorf("failed to register parsers: %w", err)
	}

	promptMgr, err := llm.NewPromptManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt manager: %w", err)
	}

	generator, err := llm.NewGenerator(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator LLM: %w", err)
	}

	return &pipeline{
		indexer:  ingest.NewIndexer(cfg, vectorStore, parserRegistry, log),
		reviewer: llm.NewReviewer(cfg, promptMgr, vectorStore, generator, log),
		cloner:   gitutil.NewClient(log),
	}, nil
}

// newEmbedder mirrors the server wiring: gemini embeds through its API,
// every other provider embeds through the local Ollama model.
func newEmbedder(ctx context.Context, cfg *config.Config, log *slog.Logger) (embeddings.Embedder, error) {
	var embedderLLM embeddings.Embedder
	var err error

	switch cfg.AI.Provider {
	case "gemini":
		embedderLLM, err = gemini.New(ctx,
			gemini.WithEmbeddingModel(cfg.AI.EmbedderModel),
			gemini.WithAPIKey(cfg.AI.GeminiAPIKey),
		)
	default:
		embedderLLM, err = ollama.New(
			ollama.WithServerURL(cfg.AI.OllamaHost),
			ollama.WithModel(cfg.AI.EmbedderModel),
			ollama.WithLogger(log),
		)
	}
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(embedderLLM)
}
