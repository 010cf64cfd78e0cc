package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/sevigo/goframe/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffscope/diffscope/internal/core"
)

type stubVectorStore struct {
	deleted   []string
	deleteErr error
}

func (s *stubVectorStore) AddDocuments(_ context.Context, _ string, _ []schema.Document) error {
	return nil
}

func (s *stubVectorStore) SimilaritySearch(_ context.Context, _, _ string, _ int) ([]schema.Document, error) {
	return nil, nil
}

func (s *stubVectorStore) DeleteCollection(_ context.Context, name string) error {
	s.deleted = append(s.deleted, name)
	return s.deleteErr
}

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))
}

func TestListFiles_AppliesAllowListAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go")
	writeFile(t, root, "internal/service.go")
	writeFile(t, root, "docs/readme.md")
	writeFile(t, root, "logo.png")
	writeFile(t, root, "node_modules/pkg/index.js")
	writeFile(t, root, "vendor/lib/lib.go")
	writeFile(t, root, ".git/config.go")

	ix := &Indexer{}
	files, err := ix.listFiles(root, core.DefaultRepoConfig())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"main.go",
		filepath.Join("internal", "service.go"),
		filepath.Join("docs", "readme.md"),
	}, files)
}

func TestListFiles_CustomExcludeDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep/a.go")
	writeFile(t, root, "generated/b.go")

	cfg := core.DefaultRepoConfig()
	cfg.ExcludeDirs = append(cfg.ExcludeDirs, "generated")

	ix := &Indexer{}
	files, err := ix.listFiles(root, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("keep", "a.go")}, files)
}

func TestResetCollection_DropsNamedCollection(t *testing.T) {
	vs := &stubVectorStore{}
	ix := &Indexer{vectorStore: vs, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, ix.ResetCollection(context.Background(), "repo_acme_widgets"))
	assert.Equal(t, []string{"repo_acme_widgets"}, vs.deleted)

	vs.deleteErr = fmt.Errorf("collection busy")
	err := ix.ResetCollection(context.Background(), "repo_acme_widgets")
	assert.ErrorContains(t, err, "repo_acme_widgets")
}

func TestChunkID_DeterministicUUIDShape(t *testing.T) {
	a := chunkID("internal/api/client.go", 10, 42)
	b := chunkID("internal/api/client.go", 10, 42)
	c := chunkID("internal/api/client.go", 10, 43)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`), a)
}

func TestIsTestFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"internal/api/client_test.go", true},
		{"internal/api/client.go", false},
		{"src/app.test.ts", true},
		{"src/app.ts", false},
		{"tests/test_models.py", true},
		{"models.py", false},
		{"src/FooTest.java", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isTestFile(tt.path), tt.path)
	}
}
