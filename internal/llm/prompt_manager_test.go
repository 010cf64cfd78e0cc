package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptManager_RenderFileReview(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	data := map[string]any{
		"PRTitle":            "Add retry logic",
		"PRBody":             "Wraps API calls with backoff.",
		"FilePath":           "internal/api/client.go",
		"Patch":              "+func retry() {}",
		"Context":            "func backoff() time.Duration { ... }",
		"CustomInstructions": "Prefer context-aware sleeps.",
	}

	out, err := pm.Render(FileReviewPrompt, OpenAIProvider, data)
	require.NoError(t, err)
	assert.Contains(t, out, "Add retry logic")
	assert.Contains(t, out, "internal/api/client.go")
	assert.Contains(t, out, "+func retry() {}")
	assert.Contains(t, out, "Prefer context-aware sleeps.")
	assert.Contains(t, out, `"severity"`)
}

func TestPromptManager_FallsBackToDefault(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	tmpl, err := pm.Get(FileReviewPrompt, ModelProvider("ollama"))
	require.NoError(t, err)
	assert.Contains(t, tmpl.Name(), "default")
}

func TestPromptManager_UnknownKey(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	_, err = pm.Get(PromptKey("nonexistent"), DefaultProvider)
	assert.Error(t, err)
}
