package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/diffscope/diffscope/internal/core"
	"github.com/diffscope/diffscope/internal/storage"
)

var (
	indexRepoName string
	indexReset    bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path-or-url]",
	Short: "Index a repository into the vector store",
	Long: `Index a repository into the vector store ahead of time, so the first
review of a pull request skips the full indexing pass.

The argument is either a local checkout or an HTTPS clone URL. Remote
repositories are cloned into a temporary directory at their default branch.

Examples:
  diffscope index .
  diffscope index https://github.com/owner/repo
  diffscope index --name owner/repo /path/to/checkout
  diffscope index --reset .`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() { //nolint:gochecknoinits // cobra command registration
	indexCmd.Flags().StringVar(&indexRepoName, "name", "", "repository full name used for the collection (owner/repo); derived from the URL or path when omitted")
	indexCmd.Flags().BoolVar(&indexReset, "reset", false, "drop the collection before indexing instead of upserting")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	target := args[0]

	timer := newStepTimer(3, verbose)
	overallStart := time.Now()

	titleColor.Println("🚀 diffscope - Repository Indexing")
	dimColor.Printf("   Target: %s\n\n", target)

	timer.step("Initializing")
	cfg, log, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	pipe, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	timer.done()

	timer.step("Preparing repository")
	repoPath := target
	repoFullName := indexRepoName

	if strings.Contains(target, "://") {
		if repoFullName == "" {
			repoFullName = repoNameFromURL(target)
		}
		path, cleanup, cloneErr := pipe.cloner.CloneAndCheckoutTemp(ctx, target, "", cfg.GitHub.Token)
		if cloneErr != nil {
			return fmt.Errorf("failed to clone repository: %w", cloneErr)
		}
		defer cleanup()
		repoPath = path
	} else {
		abs, absErr := filepath.Abs(target)
		if absErr != nil {
			return fmt.Errorf("invalid path %q: %w", target, absErr)
		}
		if _, statErr := os.Stat(abs); statErr != nil {
			return fmt.Errorf("repository path is not accessible: %w", statErr)
		}
		repoPath = abs
		if repoFullName == "" {
			repoFullName = filepath.Base(abs)
		}
	}
	timer.info("Path: %s", repoPath)
	if sha, shaErr := pipe.cloner.GetHeadSHA(repoPath); shaErr == nil {
		timer.info("Revision: %s", truncateSHA(sha))
	}
	timer.done()

	repoCfg, err := core.LoadRepoConfig(repoPath)
	if err != nil {
		log.Warn("failed to load repo config, using defaults", "error", err)
		repoCfg = core.DefaultRepoConfig()
	}

	timer.step("Indexing repository")
	collectionName := storage.CollectionNameForRepo(repoFullName, cfg.AI.EmbedderModel)
	timer.info("Collection: %s", collectionName)
	if indexReset {
		if err := pipe.indexer.ResetCollection(ctx, collectionName); err != nil {
			return fmt.Errorf("failed to reset collection: %w", err)
		}
		timer.info("Collection reset")
	}
	docCount, err := pipe.indexer.IndexRepository(ctx, repoCfg, repoPath, collectionName)
	if err != nil {
		return fmt.Errorf("failed to index repository: %w", err)
	}
	timer.info("Documents: %d", docCount)
	timer.done()

	if verbose {
		dimColor.Printf("\n⏱️  Total time: %s\n", time.Since(overallStart).Round(time.Millisecond))
	}

	fmt.Println()
	successColor.Printf("✅ Indexed %d documents into %s\n", docCount, collectionName)
	return nil
}

// repoNameFromURL derives "owner/repo" from an HTTPS clone URL.
func repoNameFromURL(rawURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(rawURL, "/"), ".git")
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	return trimmed
}
