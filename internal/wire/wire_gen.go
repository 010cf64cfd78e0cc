// Code generated manually. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/llms/gemini"
	"github.com/sevigo/goframe/llms/ollama"
	"github.com/sevigo/goframe/parsers"

	"github.com/diffscope/diffscope/internal/app"
	"github.com/diffscope/diffscope/internal/config"
	"github.com/diffscope/diffscope/internal/db"
	"github.com/diffscope/diffscope/internal/gitutil"
	"github.com/diffscope/diffscope/internal/ingest"
	"github.com/diffscope/diffscope/internal/jobs"
	"github.com/diffscope/diffscope/internal/llm"
	"github.com/diffscope/diffscope/internal/logger"
	"github.com/diffscope/diffscope/internal/server"
	"github.com/diffscope/diffscope/internal/storage"
)

// InitializeApp creates and wires all application dependencies.
func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateWebhook(); err != nil {
		return nil, nil, fmt.Errorf("invalid webhook configuration: %w", err)
	}

	var logWriter io.Writer
	switch cfg.Logging.Output {
	case "stderr":
		logWriter = os.Stderr
	case "file":
		f, _ := os.OpenFile("diffscope.log", os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		logWriter = f
	default:
		logWriter = os.Stdout
	}
	slogLogger := logger.New(cfg.Logging, logWriter)

	dbConn, dbCleanup, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := storage.NewStore(dbConn.DB)

	embedder, err := provideEmbedderGen(ctx, cfg, slogLogger)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	vectorStore := storage.NewQdrantVectorStore(cfg.QdrantHost, embedder, slogLogger)

	gitClient := gitutil.NewClient(slogLogger)

	generator, err := llm.NewGenerator(ctx, cfg, slogLogger)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to create generator LLM: %w", err)
	}

	parserRegistry, err := parsers.RegisterLanguagePlugins(slogLogger)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to register parsers: %w", err)
	}

	promptMgr, err := llm.NewPromptManager()
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to create prompt manager: %w", err)
	}

	indexer := ingest.NewIndexer(cfg, vectorStore, parserRegistry, slogLogger)
	reviewer := llm.NewReviewer(cfg, promptMgr, vectorStore, generator, slogLogger)

	reviewJob := jobs.NewReviewJob(cfg, indexer, reviewer, store, gitClient, slogLogger)
	dispatcher := jobs.NewDispatcher(reviewJob, cfg.Review.MaxWorkers, slogLogger)

	srv := server.NewServer(cfg, dispatcher, slogLogger)

	application := app.NewApp(cfg, srv, dispatcher, dbConn, slogLogger)

	cleanup := func() {
		dbCleanup()
	}
	return application, cleanup, nil
}

// provideEmbedderGen builds the embedding model. OpenAI has no goframe
// embedder, so the openai provider also embeds through the local Ollama
// model.
func provideEmbedderGen(ctx context.Context, cfg *config.Config, logger *slog.Logger) (embeddings.Embedder, error) {
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
			ollama.WithLogger(logger),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder LLM: %w", err)
	}
	return embeddings.NewEmbedder(embedderLLM)
}
