package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sevigo/goframe/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/diffscope/diffscope/internal/config"
	"github.com/diffscope/diffscope/internal/core"
	internalgithub "github.com/diffscope/diffscope/internal/github"
	"github.com/diffscope/diffscope/internal/mocks"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
}

func (s *stubGenerator) Call(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.response, s.err
}

type stubVectorStore struct {
	docs []schema.Document
}

func (s *stubVectorStore) AddDocuments(_ context.Context, _ string, _ []schema.Document) error {
	return nil
}

func (s *stubVectorStore) SimilaritySearch(_ context.Context, _, _ string, _ int) ([]schema.Document, error) {
	return s.docs, nil
}

func (s *stubVectorStore) DeleteCollection(_ context.Context, _ string) error {
	return nil
}

func reviewTestConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{Provider: "openai"},
		Review: config.ReviewConfig{
			FileConcurrency:       2,
			FileTokenBudget:       6000,
			MaxQueriesPerHunkFile: 8,
			MaxQueryLength:        512,
			MaxContextChars:       24000,
			SnippetsPerQuery:      4,
			LLMTimeout:            5 * time.Second,
		},
	}
}

func testEvent() *core.GitHubEvent {
	return &core.GitHubEvent{
		RepoOwner:    "acme",
		RepoName:     "widgets",
		RepoFullName: "acme/widgets",
		PRNumber:     42,
		PRTitle:      "Add retry logic",
	}
}

const reviewerPatch = `@@ -10,4 +10,6 @@
 func fetch(url string) error {
+	resp, _ := http.Get(url)
+	defer resp.Body.Close()
 	return nil
 }`

const reviewerRawDiff = `diff --git a/client.go b/client.go
--- a/client.go
+++ b/client.go
` + reviewerPatch

// tokenizerGenerator exposes an exact token count on top of the stub.
type tokenizerGenerator struct {
	stubGenerator
	tokens int
}

func (t *tokenizerGenerator) CountTokens(_ context.Context, _ string) (int, error) {
	return t.tokens, nil
}

func TestReviewPR_CollectsIssuesPerFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	gh.EXPECT().
		GetChangedFiles(gomock.Any(), "acme", "widgets", 42).
		Return([]internalgithub.ChangedFile{
			{Filename: "client.go", Patch: reviewerPatch},
			{Filename: "logo.png", Patch: "binary"},
			{Filename: "renamed.go", Patch: ""},
		}, nil)
	gh.EXPECT().
		GetPullRequestDiff(gomock.Any(), "acme", "widgets", 42).
		Return(reviewerRawDiff, nil)

	pm, err := NewPromptManager()
	require.NoError(t, err)

	gen := &stubGenerator{
		response: `[{"description": "error from http.Get is discarded; resp may be nil", "code_snippet": "resp, _ := http.Get(url)", "category": "bug", "severity": 8, "line_number": 11}]`,
	}
	vs := &stubVectorStore{docs: []schema.Document{
		schema.NewDocument("func fetchWithRetry(url string) error { ... }", map[string]any{
			"source": "retry.go",
			"id":     "doc-1",
		}),
	}}

	r := NewReviewer(reviewTestConfig(), pm, vs, gen, discardLogger())
	review, err := r.ReviewPR(context.Background(), core.DefaultRepoConfig(), testEvent(), gh, "repo_acme_widgets")
	require.NoError(t, err)

	require.Len(t, review.Files, 1, "only the .go file with a patch is reviewable")
	assert.Equal(t, "client.go", review.Files[0].Path)
	require.Len(t, review.Files[0].Issues, 1)
	assert.Equal(t, 8, review.Files[0].Issues[0].Severity)
	assert.Equal(t, 11, review.Files[0].Issues[0].LineNumber)
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, review.Summary, "1 issue(s)")
	assert.Contains(t, review.Summary, "(+2/-0 lines)", "summary carries the raw diff stats")
}

func TestReviewPR_EmptyDiffShortCircuits(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	gh.EXPECT().
		GetChangedFiles(gomock.Any(), "acme", "widgets", 42).
		Return(nil, nil)

	pm, err := NewPromptManager()
	require.NoError(t, err)

	gen := &stubGenerator{}
	r := NewReviewer(reviewTestConfig(), pm, &stubVectorStore{}, gen, discardLogger())

	review, err := r.ReviewPR(context.Background(), nil, testEvent(), gh, "coll")
	require.NoError(t, err)
	assert.Empty(t, review.Files)
	assert.Contains(t, review.Summary, "No reviewable changes")
	assert.Zero(t, gen.calls, "LLM must not be called for an empty diff")
}

func TestReviewPR_FileFailureDegradesToSkip(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	gh.EXPECT().
		GetChangedFiles(gomock.Any(), "acme", "widgets", 42).
		Return([]internalgithub.ChangedFile{
			{Filename: "broken.go", Patch: reviewerPatch},
		}, nil)
	gh.EXPECT().
		GetPullRequestDiff(gomock.Any(), "acme", "widgets", 42).
		Return("", nil)

	pm, err := NewPromptManager()
	require.NoError(t, err)

	gen := &stubGenerator{err: fmt.Errorf("model overloaded")}
	r := NewReviewer(reviewTestConfig(), pm, &stubVectorStore{}, gen, discardLogger())

	review, err := r.ReviewPR(context.Background(), nil, testEvent(), gh, "coll")
	require.NoError(t, err, "a per-file failure must not fail the review")
	assert.Empty(t, review.Files)
	assert.Equal(t, 2, gen.calls, "failed call is retried once")
}

func TestReviewPR_TokenizerCountGatesBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	gh.EXPECT().
		GetChangedFiles(gomock.Any(), "acme", "widgets", 42).
		Return([]internalgithub.ChangedFile{
			{Filename: "client.go", Patch: reviewerPatch},
		}, nil)

	pm, err := NewPromptManager()
	require.NoError(t, err)

	// The patch is tiny by character estimate, but the model's own count
	// exceeds the budget and must win.
	gen := &tokenizerGenerator{tokens: 10_000}
	r := NewReviewer(reviewTestConfig(), pm, &stubVectorStore{}, gen, discardLogger())

	review, err := r.ReviewPR(context.Background(), nil, testEvent(), gh, "coll")
	require.NoError(t, err)
	assert.Empty(t, review.Files)
	assert.Contains(t, review.Summary, "No reviewable changes")
	assert.Zero(t, gen.calls, "over-budget file must not reach the LLM")
}

func TestDiffStats(t *testing.T) {
	added, removed := diffStats(reviewerRawDiff)
	assert.Equal(t, 2, added)
	assert.Equal(t, 0, removed)

	added, removed = diffStats("--- a/x.go\n+++ b/x.go\n@@ -1,2 +1,1 @@\n-old\n-older\n+new\n")
	assert.Equal(t, 1, added)
	assert.Equal(t, 2, removed)
}

func TestRetrieveContext_DedupAndSizeCap(t *testing.T) {
	docs := []schema.Document{
		schema.NewDocument("chunk one", map[string]any{"source": "a.go", "id": "1"}),
		schema.NewDocument("chunk one again", map[string]any{"source": "a.go", "id": "1"}),
		schema.NewDocument("from the changed file", map[string]any{"source": "client.go", "id": "2"}),
		schema.NewDocument("chunk two", map[string]any{"source": "b.go", "id": "3"}),
	}

	r := NewReviewer(reviewTestConfig(), nil, &stubVectorStore{docs: docs}, nil, discardLogger())

	var mu sync.Mutex
	seen := make(map[string]struct{})
	out := r.retrieveContext(context.Background(), "coll",
		internalgithub.ChangedFile{Filename: "client.go", Patch: reviewerPatch}, seen, &mu)

	assert.Equal(t, 1, strings.Count(out, "chunk one"))
	assert.NotContains(t, out, "from the changed file")
	assert.Contains(t, out, "chunk two")
}
