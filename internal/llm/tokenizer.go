package llm

import (
	"context"

	"github.com/sevigo/goframe/llms"
)

// EstimateTokens gives a fast character-based token estimate. Code averages
// roughly three characters per token, which is close enough for budget
// checks.
func EstimateTokens(text string) int {
	return len(text) / 3
}

// CountTokens asks the model for an exact count when it exposes a tokenizer
// and falls back to the character estimate otherwise.
func CountTokens(ctx context.Context, gen Generator, text string) int {
	if t, ok := gen.(llms.Tokenizer); ok {
		n, err := t.CountTokens(ctx, text)
		if err == nil {
			return n
		}
	}
	return EstimateTokens(text)
}
