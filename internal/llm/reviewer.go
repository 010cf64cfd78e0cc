package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/goframe/schema"

	"github.com/diffscope/diffscope/internal/config"
	"github.com/diffscope/diffscope/internal/core"
	internalgithub "github.com/diffscope/diffscope/internal/github"
	"github.com/diffscope/diffscope/internal/storage"
)

// Reviewer runs the retrieval-augmented review pipeline over a pull request:
// derive queries from each changed file's diff, pull related snippets from
// the vector store, prompt the model per file, and assemble the findings.
type Reviewer struct {
	cfg         *config.Config
	promptMgr   *PromptManager
	vectorStore storage.VectorStore
	generator   Generator
	logger      *slog.Logger
}

func NewReviewer(
	cfg *config.Config,
	promptMgr *PromptManager,
	vs storage.VectorStore,
	gen Generator,
	logger *slog.Logger,
) *Reviewer {
	return &Reviewer{
		cfg:         cfg,
		promptMgr:   promptMgr,
		vectorStore: vs,
		generator:   gen,
		logger:      logger,
	}
}

// filePromptData feeds the file review prompt template.
type filePromptData struct {
	PRTitle            string
	PRBody             string
	FilePath           string
	Patch              string
	Context            string
	CustomInstructions string
}

// ReviewPR reviews every changed file of the pull request and returns the
// accumulated findings. Per-file failures are logged and skipped so one bad
// LLM response does not sink the whole review.
func (r *Reviewer) ReviewPR(
	ctx context.Context,
	repoCfg *core.RepoConfig,
	event *core.GitHubEvent,
	ghClient internalgithub.Client,
	collectionName string,
) (*core.StructuredReview, error) {
	if repoCfg == nil {
		repoCfg = core.DefaultRepoConfig()
	}

	changedFiles, err := ghClient.GetChangedFiles(ctx, event.RepoOwner, event.RepoName, event.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changed files: %w", err)
	}

	reviewable := r.filterReviewable(ctx, repoCfg, changedFiles)
	if len(reviewable) == 0 {
		r.logger.Info("no reviewable changes in pull request",
			"repo", event.RepoFullName, "pr", event.PRNumber)
		return &core.StructuredReview{Summary: "No reviewable changes found in this pull request."}, nil
	}

	var added, removed int
	if diff, err := ghClient.GetPullRequestDiff(ctx, event.RepoOwner, event.RepoName, event.PRNumber); err != nil {
		r.logger.Warn("failed to fetch raw diff for summary stats", "error", err)
	} else {
		added, removed = diffStats(diff)
	}

	var (
		mu       sync.Mutex
		files    []core.FileReview
		seenDocs = make(map[string]struct{})
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Review.FileConcurrency, 1))

	for _, file := range reviewable {
		g.Go(func() error {
			issues, err := r.reviewFile(gctx, repoCfg, event, file, collectionName, seenDocs, &mu)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn("skipping file after review failure",
					"file", file.Filename, "error", err)
				return nil
			}
			if len(issues) == 0 {
				return nil
			}
			mu.Lock()
			files = append(files, core.FileReview{Path: file.Filename, Issues: issues})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	review := &core.StructuredReview{
		Summary: summarize(len(reviewable), added, removed, files),
		Files:   files,
	}
	r.logger.Info("review generated",
		"repo", event.RepoFullName,
		"pr", event.PRNumber,
		"files_reviewed", len(reviewable),
		"issues", review.IssueCount(),
	)
	return review, nil
}

// filterReviewable drops files outside the extension allow-list, files
// without patch data, and files whose diff exceeds the token budget.
func (r *Reviewer) filterReviewable(ctx context.Context, repoCfg *core.RepoConfig, changedFiles []internalgithub.ChangedFile) []internalgithub.ChangedFile {
	var out []internalgithub.ChangedFile
	for _, file := range changedFiles {
		if !repoCfg.AllowsFile(file.Filename) {
			continue
		}
		if strings.TrimSpace(file.Patch) == "" {
			// Binary or renamed files come back without a patch.
			continue
		}
		if tokens := CountTokens(ctx, r.generator, file.Patch); tokens > r.cfg.Review.FileTokenBudget {
			r.logger.Warn("diff exceeds token budget, skipping file",
				"file", file.Filename,
				"tokens", tokens,
				"budget", r.cfg.Review.FileTokenBudget,
			)
			continue
		}
		out = append(out, file)
	}
	return out
}

// reviewFile retrieves context for one changed file, prompts the model, and
// parses the issues.
func (r *Reviewer) reviewFile(
	ctx context.Context,
	repoCfg *core.RepoConfig,
	event *core.GitHubEvent,
	file internalgithub.ChangedFile,
	collectionName string,
	seenDocs map[string]struct{},
	seenMu *sync.Mutex,
) ([]core.Issue, error) {
	contextText := r.retrieveContext(ctx, collectionName, file, seenDocs, seenMu)

	prompt, err := r.promptMgr.Render(FileReviewPrompt, ModelProvider(r.cfg.AI.Provider), filePromptData{
		PRTitle:            event.PRTitle,
		PRBody:             event.PRBody,
		FilePath:           file.Filename,
		Patch:              file.Patch,
		Context:            contextText,
		CustomInstructions: strings.Join(repoCfg.CustomInstructions, "\n"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render review prompt: %w", err)
	}

	response, err := generateWithTimeout(ctx, r.generator, prompt, r.cfg.Review.LLMTimeout, r.logger)
	if err != nil {
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}

	issues, err := ParseIssues(response, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to parse review response: %w", err)
	}
	return issues, nil
}

// retrieveContext runs the file's diff-derived queries against the vector
// store and formats the hits. Documents already used for another file in
// this review are skipped, and the total context is capped in size.
// Retrieval failures degrade to an empty context.
func (r *Reviewer) retrieveContext(
	ctx context.Context,
	collectionName string,
	file internalgithub.ChangedFile,
	seenDocs map[string]struct{},
	seenMu *sync.Mutex,
) string {
	if collectionName == "" {
		return ""
	}

	queries := QueriesForFile(file.Filename, file.Patch, QueryOptions{
		MaxQueries:     r.cfg.Review.MaxQueriesPerHunkFile,
		MaxQueryLength: r.cfg.Review.MaxQueryLength,
	})

	var sb strings.Builder
	for _, query := range queries {
		docs, err := r.vectorStore.SimilaritySearch(ctx, collectionName, query, r.cfg.Review.SnippetsPerQuery)
		if err != nil {
			r.logger.Warn("similarity search failed", "file", file.Filename, "error", err)
			continue
		}
		for _, doc := range docs {
			snippet := formatSnippet(doc, file.Filename, seenDocs, seenMu)
			if snippet == "" {
				continue
			}
			if sb.Len()+len(snippet) > r.cfg.Review.MaxContextChars {
				return sb.String()
			}
			sb.WriteString(snippet)
		}
	}
	return sb.String()
}

// formatSnippet renders one retrieved document, preferring the full parent
// text over the raw chunk. It returns "" for documents from the changed file
// itself or ones already seen.
func formatSnippet(doc schema.Document, changedFile string, seenDocs map[string]struct{}, seenMu *sync.Mutex) string {
	source, _ := doc.Metadata["source"].(string)
	if source == "" || source == changedFile {
		return ""
	}

	docKey, _ := doc.Metadata["parent_id"].(string)
	if docKey == "" {
		docKey, _ = doc.Metadata["id"].(string)
	}
	if docKey == "" {
		docKey = source
	}

	seenMu.Lock()
	if _, exists := seenDocs[docKey]; exists {
		seenMu.Unlock()
		return ""
	}
	seenDocs[docKey] = struct{}{}
	seenMu.Unlock()

	content := doc.PageContent
	if parentText, ok := doc.Metadata["full_parent_text"].(string); ok && parentText != "" {
		content = parentText
	}
	return fmt.Sprintf("**%s**:\n```\n%s\n```\n\n", source, content)
}

// diffStats counts the added and removed lines of a unified diff, skipping
// the +++/--- file headers.
func diffStats(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

// summarize builds the review summary from the accumulated findings.
func summarize(filesReviewed, added, removed int, files []core.FileReview) string {
	size := ""
	if added+removed > 0 {
		size = fmt.Sprintf(" (+%d/-%d lines)", added, removed)
	}

	total := 0
	maxSeverity := 0
	for _, f := range files {
		total += len(f.Issues)
		for _, issue := range f.Issues {
			if issue.Severity > maxSeverity {
				maxSeverity = issue.Severity
			}
		}
	}

	if total == 0 {
		return fmt.Sprintf("Reviewed %d changed file(s)%s; no issues found.", filesReviewed, size)
	}
	return fmt.Sprintf("Reviewed %d changed file(s)%s; found %d issue(s) across %d file(s), highest severity %d/10.",
		filesReviewed, size, total, len(files), maxSeverity)
}
