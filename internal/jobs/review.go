package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/diffscope/diffscope/internal/config"
	"github.com/diffscope/diffscope/internal/core"
	"github.com/diffscope/diffscope/internal/github"
	"github.com/diffscope/diffscope/internal/gitutil"
	"github.com/diffscope/diffscope/internal/ingest"
	"github.com/diffscope/diffscope/internal/llm"
	"github.com/diffscope/diffscope/internal/storage"
)

const cloneTimeout = 2 * time.Minute

// ReviewJob runs one pull request review end to end: clone, index, generate,
// validate, post.
type ReviewJob struct {
	cfg      *config.Config
	indexer  *ingest.Indexer
	reviewer *llm.Reviewer
	store    storage.Store
	cloner   *gitutil.Client
	logger   *slog.Logger
}

// NewReviewJob wires the review pipeline into a core.Job.
func NewReviewJob(
	cfg *config.Config,
	indexer *ingest.Indexer,
	reviewer *llm.Reviewer,
	store storage.Store,
	cloner *gitutil.Client,
	logger *slog.Logger,
) core.Job {
	return &ReviewJob{
		cfg:      cfg,
		indexer:  indexer,
		reviewer: reviewer,
		store:    store,
		cloner:   cloner,
		logger:   logger,
	}
}

// Run executes the review for one GitHub event.
func (j *ReviewJob) Run(ctx context.Context, event *core.GitHubEvent) error {
	if err := validateEvent(event); err != nil {
		return fmt.Errorf("invalid review event: %w", err)
	}

	j.logger.Info("starting review job", "repo", event.RepoFullName, "pr", event.PRNumber)

	ghClient, installToken, err := github.CreateInstallationClient(ctx, j.cfg, event.InstallationID, j.logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub installation client: %w", err)
	}

	pr, err := ghClient.GetPullRequest(ctx, event.RepoOwner, event.RepoName, event.PRNumber)
	if err != nil {
		return fmt.Errorf("failed to get PR details: %w", err)
	}
	if pr.GetHead().GetSHA() == "" {
		return fmt.Errorf("PR %d has no valid head SHA", event.PRNumber)
	}
	event.HeadSHA = pr.GetHead().GetSHA()
	event.PRTitle = pr.GetTitle()
	event.PRBody = pr.GetBody()

	if j.alreadyReviewed(ctx, event) {
		j.logger.Info("head commit already reviewed, skipping",
			"repo", event.RepoFullName, "pr", event.PRNumber, "sha", event.HeadSHA)
		return nil
	}

	statusUpdater := github.NewStatusUpdater(ghClient)
	checkRunID, err := statusUpdater.InProgress(ctx, event, "Code Review", "Reviewing changes...")
	if err != nil {
		return fmt.Errorf("failed to set in-progress status: %w", err)
	}

	review, err := j.execute(ctx, event, ghClient, installToken)
	if err != nil {
		j.failCheckRun(ctx, statusUpdater, event, checkRunID, err)
		return err
	}

	if err := j.post(ctx, event, ghClient, statusUpdater, review); err != nil {
		j.failCheckRun(ctx, statusUpdater, event, checkRunID, err)
		return err
	}

	summary := fmt.Sprintf("Found %d issue(s).", review.IssueCount())
	if err := statusUpdater.Completed(ctx, event, checkRunID, "success", "Review Complete", summary); err != nil {
		return fmt.Errorf("failed to update completion status: %w", err)
	}

	j.logger.Info("review job completed",
		"repo", event.RepoFullName, "pr", event.PRNumber, "issues", review.IssueCount())
	return nil
}

// execute clones the PR head, refreshes the repository index, and generates
// the review.
func (j *ReviewJob) execute(ctx context.Context, event *core.GitHubEvent, ghClient github.Client, installToken string) (*core.StructuredReview, error) {
	cloneCtx, cancel := context.WithTimeout(ctx, cloneTimeout)
	defer cancel()

	repoPath, cleanup, err := j.cloner.CloneAndCheckoutTemp(cloneCtx, event.RepoCloneURL, event.HeadSHA, installToken)
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}
	defer cleanup()

	repoCfg, err := core.LoadRepoConfig(repoPath)
	if err != nil {
		j.logger.Warn("failed to load repository config, using defaults", "error", err)
		repoCfg = core.DefaultRepoConfig()
	}

	collectionName := storage.CollectionNameForRepo(event.RepoFullName, j.cfg.AI.EmbedderModel)
	if _, err := j.indexer.IndexRepository(ctx, repoCfg, repoPath, collectionName); err != nil {
		return nil, fmt.Errorf("failed to index repository: %w", err)
	}

	review, err := j.reviewer.ReviewPR(ctx, repoCfg, event, ghClient, collectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to generate review: %w", err)
	}
	return review, nil
}

// post validates issue line numbers against the diff, posts the review with
// inline comments, and persists the result.
func (j *ReviewJob) post(ctx context.Context, event *core.GitHubEvent, ghClient github.Client, statusUpdater github.StatusUpdater, review *core.StructuredReview) error {
	changedFiles, err := ghClient.GetChangedFiles(ctx, event.RepoOwner, event.RepoName, event.PRNumber)
	if err != nil {
		return fmt.Errorf("failed to fetch changed files for line validation: %w", err)
	}

	validLineMaps := make(map[string]map[int]struct{}, len(changedFiles))
	for _, f := range changedFiles {
		validLineMaps[f.Filename] = github.ParseValidLinesFromPatch(f.Patch, j.logger)
	}

	inline, offDiff := SplitIssuesByDiffLines(j.logger, review.Files, validLineMaps)

	var comments []github.DraftReviewComment
	for _, file := range inline {
		for _, issue := range file.Issues {
			comments = append(comments, github.DraftReviewComment{
				Path: file.Path,
				Line: issue.LineNumber,
				Body: github.FormatInlineComment(issue),
			})
		}
	}

	body := github.FormatReviewSummary(review, offDiff)
	if err := statusUpdater.PostReview(ctx, event, body, comments); err != nil {
		return fmt.Errorf("failed to post review: %w", err)
	}

	if err := j.saveReview(ctx, event, review); err != nil {
		// The review is already on GitHub; losing the record is not fatal.
		j.logger.Error("failed to persist review", "error", err)
	}
	return nil
}

// alreadyReviewed reports whether the stored latest review for this PR
// covers the same head commit. Lookup failures fall back to reviewing.
func (j *ReviewJob) alreadyReviewed(ctx context.Context, event *core.GitHubEvent) bool {
	latest, err := j.store.GetLatestReviewForPR(ctx, event.RepoFullName, event.PRNumber)
	if err != nil {
		if !errors.Is(err, storage.ErrNoReview) {
			j.logger.Warn("failed to look up previous review", "error", err)
		}
		return false
	}
	return latest.HeadSHA == event.HeadSHA
}

func (j *ReviewJob) saveReview(ctx context.Context, event *core.GitHubEvent, review *core.StructuredReview) error {
	payload, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("failed to marshal review: %w", err)
	}
	return j.store.SaveReview(ctx, &core.Review{
		RepoFullName: event.RepoFullName,
		PRNumber:     event.PRNumber,
		HeadSHA:      event.HeadSHA,
		ReviewJSON:   string(payload),
	})
}

// failCheckRun marks the check run as failed. When even that update fails,
// the error is surfaced as a plain PR comment so the requester is not left
// with a check run that spins forever.
func (j *ReviewJob) failCheckRun(ctx context.Context, statusUpdater github.StatusUpdater, event *core.GitHubEvent, checkRunID int64, cause error) {
	msg := fmt.Sprintf("Review failed: %v", cause)
	if err := statusUpdater.Completed(ctx, event, checkRunID, "failure", "Review Failed", msg); err != nil {
		j.logger.Error("failed to update failure status", "error", err)
		if commentErr := statusUpdater.PostSimpleComment(ctx, event, msg); commentErr != nil {
			j.logger.Error("failed to post failure comment", "error", commentErr)
		}
	}
}

// validateEvent checks the fields the pipeline depends on.
func validateEvent(event *core.GitHubEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.RepoOwner == "" || event.RepoName == "" || event.RepoFullName == "" {
		return fmt.Errorf("repository identity is incomplete")
	}
	if event.RepoCloneURL == "" {
		return fmt.Errorf("repository clone URL cannot be empty")
	}
	if event.PRNumber <= 0 {
		return fmt.Errorf("pull request number must be positive, got %d", event.PRNumber)
	}
	if event.InstallationID <= 0 {
		return fmt.Errorf("installation ID must be positive, got %d", event.InstallationID)
	}
	return nil
}
