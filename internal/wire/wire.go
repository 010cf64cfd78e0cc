//go:build wireinject
// +build wireinject

package wire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/wire"
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

func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	wire.Build(
		app.NewApp,
		server.NewServer,
		config.Load,
		db.NewDatabase,
		storage.NewStore,
		gitutil.NewClient,
		ingest.NewIndexer,
		jobs.NewDispatcher,
		jobs.NewReviewJob,
		llm.NewPromptManager,
		llm.NewReviewer,
		llm.NewGenerator,
		provideVectorStore,
		provideEmbedder,
		provideParserRegistry,
		provideMaxWorkers,
		provideLoggerConfig,
		provideLogWriter,
		provideDBConfig,
		provideSlogLogger,
	)
	return &app.App{}, nil, nil
}

func provideVectorStore(cfg *config.Config, embedder embeddings.Embedder, logger *slog.Logger) storage.VectorStore {
	return storage.NewQdrantVectorStore(cfg.QdrantHost, embedder, logger)
}

// provideEmbedder builds the embedding model. OpenAI has no goframe embedder,
// so the openai provider also embeds through the local Ollama model.
func provideEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (embeddings.Embedder, error) {
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

func provideParserRegistry(logger *slog.Logger) (parsers.ParserRegistry, error) {
	return parsers.RegisterLanguagePlugins(logger)
}

func provideMaxWorkers(cfg *config.Config) int {
	return cfg.Review.MaxWorkers
}

func provideLoggerConfig(cfg *config.Config) logger.Config {
	return cfg.Logging
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return &cfg.Database
}

func provideLogWriter(cfg *config.Config) io.Writer {
	switch cfg.Logging.Output {
	case "stderr":
		return os.Stderr
	case "file":
		f, _ := os.OpenFile("diffscope.log", os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		return f
	default:
		return os.Stdout
	}
}

func provideSlogLogger(loggerConfig logger.Config, writer io.Writer) *slog.Logger {
	return logger.New(loggerConfig, writer)
}
