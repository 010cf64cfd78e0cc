// Package llm provides the language-model layer of the reviewer: provider
// clients, prompt templates, the diff-to-query engine, and the review
// pipeline itself.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sevigo/goframe/llms"
	"github.com/sevigo/goframe/llms/gemini"
	"github.com/sevigo/goframe/llms/ollama"

	"github.com/diffscope/diffscope/internal/config"
)

// Generator is the minimal text-generation contract the review pipeline
// needs from a language model.
type Generator interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// NewGenerator creates the configured LLM provider client.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Generator, error) {
	switch cfg.AI.Provider {
	case "openai":
		logger.Info("using OpenAI LLM provider", "model", cfg.AI.GeneratorModel)
		return newOpenAIGenerator(cfg.AI.OpenAIAPIKey, cfg.AI.GeneratorModel), nil

	case "gemini":
		logger.Info("using Gemini LLM provider", "model", cfg.AI.GeneratorModel)
		model, err := gemini.New(ctx,
			gemini.WithModel(cfg.AI.GeneratorModel),
			gemini.WithAPIKey(cfg.AI.GeminiAPIKey),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return &modelGenerator{model: model}, nil

	case "ollama":
		logger.Info("using Ollama LLM provider", "model", cfg.AI.GeneratorModel)
		model, err := ollama.New(
			ollama.WithServerURL(cfg.AI.OllamaHost),
			ollama.WithHTTPClient(newLLMHTTPClient()),
			ollama.WithModel(cfg.AI.GeneratorModel),
			ollama.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return &modelGenerator{model: model}, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.AI.Provider)
	}
}

// modelGenerator adapts a goframe model to Generator.
type modelGenerator struct {
	model llms.Model
}

func (g *modelGenerator) Call(ctx context.Context, prompt string) (string, error) {
	return g.model.Call(ctx, prompt)
}

// openaiGenerator adapts the go-openai chat completion client to Generator.
type openaiGenerator struct {
	client *openai.Client
	model  string
}

func newOpenAIGenerator(apiKey, model string) *openaiGenerator {
	return &openaiGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Call sends a single-turn chat completion request.
func (g *openaiGenerator) Call(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// newLLMHTTPClient builds an HTTP client with generous timeouts; local model
// servers can take minutes to answer.
func newLLMHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   5 * time.Minute,
	}
}

// generateWithTimeout wraps a generation call with a hard timeout and a
// single retry for transient failures.
func generateWithTimeout(ctx context.Context, gen Generator, prompt string, timeout time.Duration, logger *slog.Logger) (string, error) {
	call := func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		type result struct {
			resp string
			err  error
		}
		resultCh := make(chan result, 1)

		go func() {
			resp, err := gen.Call(callCtx, prompt)
			resultCh <- result{resp, err}
		}()

		select {
		case res := <-resultCh:
			return res.resp, res.err
		case <-callCtx.Done():
			return "", callCtx.Err()
		}
	}

	resp, err := call()
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		// The parent was cancelled; retrying would just burn the deadline.
		return "", err
	}

	logger.Warn("LLM call failed, retrying once", "error", err)
	resp, retryErr := call()
	if retryErr != nil {
		return "", errors.Join(err, retryErr)
	}
	return resp, nil
}
