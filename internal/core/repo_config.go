package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RepoConfigFile is the per-repository configuration filename.
const RepoConfigFile = ".diffscope.yml"

// RepoConfig is the structure of the optional .diffscope.yml file in the
// reviewed repository's root.
type RepoConfig struct {
	// Custom instructions appended to the review prompt.
	CustomInstructions []string `yaml:"custom_instructions"`

	// File extensions eligible for indexing; overrides the default
	// allow-list. The leading dot is optional: ["go", ".py"].
	AllowExts []string `yaml:"allow_exts"`

	// Directories excluded from indexing by name, e.g. ["dist", "vendor"].
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

// defaultAllowExts is the built-in allow-list of indexable file extensions.
var defaultAllowExts = []string{
	"go", "py", "js", "ts", "tsx", "jsx", "java", "c", "cpp", "h", "hpp",
	"rs", "rb", "php", "cs", "swift", "kt", "scala", "sql", "proto",
	"md", "yaml", "yml",
}

// defaultExcludeDirs are directory names never worth indexing.
var defaultExcludeDirs = []string{
	"node_modules", "vendor", "dist", "build", "target", "__pycache__",
}

// DefaultRepoConfig returns the configuration used when a repository has no
// .diffscope.yml.
func DefaultRepoConfig() *RepoConfig {
	return &RepoConfig{
		AllowExts:   append([]string(nil), defaultAllowExts...),
		ExcludeDirs: append([]string(nil), defaultExcludeDirs...),
	}
}

// LoadRepoConfig reads .diffscope.yml from the repository root. A missing
// file yields the defaults; a malformed file is an error.
func LoadRepoConfig(repoPath string) (*RepoConfig, error) {
	data, err := os.ReadFile(filepath.Join(repoPath, RepoConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRepoConfig(), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", RepoConfigFile, err)
	}

	cfg := &RepoConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", RepoConfigFile, err)
	}

	if len(cfg.AllowExts) == 0 {
		cfg.AllowExts = append([]string(nil), defaultAllowExts...)
	}
	cfg.ExcludeDirs = append(cfg.ExcludeDirs, defaultExcludeDirs...)
	return cfg, nil
}

// AllowsFile reports whether a file is eligible for indexing under the
// extension allow-list.
func (c *RepoConfig) AllowsFile(path string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range c.AllowExts {
		if strings.TrimPrefix(allowed, ".") == ext {
			return true
		}
	}
	return false
}

// ExcludesDir reports whether a directory name is excluded from indexing.
// Hidden directories are always excluded.
func (c *RepoConfig) ExcludesDir(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	for _, ex := range c.ExcludeDirs {
		if name == ex {
			return true
		}
	}
	return false
}
