package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRepoConfig(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadRepoConfig(t.TempDir())
		require.NoError(t, err)
		assert.NotEmpty(t, cfg.AllowExts)
		assert.Contains(t, cfg.ExcludeDirs, "node_modules")
	})

	t.Run("file overrides allow list", func(t *testing.T) {
		dir := t.TempDir()
		content := "allow_exts: [go, \".proto\"]\nexclude_dirs: [generated]\ncustom_instructions:\n  - Focus on error handling.\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, RepoConfigFile), []byte(content), 0o600))

		cfg, err := LoadRepoConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"go", ".proto"}, cfg.AllowExts)
		assert.Contains(t, cfg.ExcludeDirs, "generated")
		assert.Contains(t, cfg.ExcludeDirs, "vendor")
		assert.Equal(t, []string{"Focus on error handling."}, cfg.CustomInstructions)
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, RepoConfigFile), []byte("allow_exts: ["), 0o600))
		_, err := LoadRepoConfig(dir)
		assert.Error(t, err)
	})
}

func TestRepoConfigAllowsFile(t *testing.T) {
	cfg := DefaultRepoConfig()

	assert.True(t, cfg.AllowsFile("internal/app/app.go"))
	assert.True(t, cfg.AllowsFile("docs/README.md"))
	assert.False(t, cfg.AllowsFile("bin/server"))
	assert.False(t, cfg.AllowsFile("image.png"))

	custom := &RepoConfig{AllowExts: []string{".py"}}
	assert.True(t, custom.AllowsFile("main.py"))
	assert.False(t, custom.AllowsFile("main.go"))
}

func TestRepoConfigExcludesDir(t *testing.T) {
	cfg := DefaultRepoConfig()

	assert.True(t, cfg.ExcludesDir(".git"))
	assert.True(t, cfg.ExcludesDir("node_modules"))
	assert.False(t, cfg.ExcludesDir("internal"))
}

func TestClampSeverity(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"below range", -3, 1},
		{"zero", 0, 1},
		{"in range", 7, 7},
		{"above range", 42, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := Issue{Severity: tt.in}
			issue.ClampSeverity()
			assert.Equal(t, tt.want, issue.Severity)
		})
	}
}
