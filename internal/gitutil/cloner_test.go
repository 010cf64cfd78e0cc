package gitutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHeadSHA(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.go")
	require.NoError(t, err)

	hash, err := wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	c := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
	sha, err := c.GetHeadSHA(dir)
	require.NoError(t, err)
	assert.Equal(t, hash.String(), sha)
}

func TestGetHeadSHA_NotARepository(t *testing.T) {
	c := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.GetHeadSHA(t.TempDir())
	assert.Error(t, err)
}
