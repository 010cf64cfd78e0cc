package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/diffscope/diffscope/internal/core"
	"github.com/diffscope/diffscope/internal/github"
	"github.com/diffscope/diffscope/internal/gitutil"
	"github.com/diffscope/diffscope/internal/storage"
)

// Color definitions
var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgWhite)
	dimColor     = color.New(color.FgHiBlack)
	boldColor    = color.New(color.Bold)
)

var reviewCmd = &cobra.Command{
	Use:   "review [pr-url]",
	Short: "Run a retrieval-augmented code review for a GitHub pull request",
	Long: `Run a retrieval-augmented code review for a GitHub pull request.

The review command fetches the PR metadata and changed files, clones the
repository at the PR head, indexes it into the vector store, and asks the
configured LLM for structured findings per file.

Examples:
  diffscope review https://github.com/owner/repo/pull/123
  diffscope review --verbose https://github.com/owner/repo/pull/123`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() { //nolint:gochecknoinits // cobra command registration
	rootCmd.AddCommand(reviewCmd)
}

// stepTimer tracks timing for verbose output
type stepTimer struct {
	stepNum    int
	totalSteps int
	start      time.Time
	verbose    bool
}

func newStepTimer(totalSteps int, verbose bool) *stepTimer {
	return &stepTimer{
		stepNum:    0,
		totalSteps: totalSteps,
		verbose:    verbose,
	}
}

func (t *stepTimer) step(name string) {
	t.stepNum++
	t.start = time.Now()
	if t.verbose {
		titleColor.Printf("\n🔧 Step %d/%d: %s...\n", t.stepNum, t.totalSteps, name)
	} else {
		fmt.Printf("%s...\n", name)
	}
}

func (t *stepTimer) done(details ...string) {
	if t.verbose {
		elapsed := time.Since(t.start).Round(time.Millisecond)
		successColor.Printf("   ✓ Done (%s)\n", elapsed)
		for _, d := range details {
			dimColor.Printf("   └── %s\n", d)
		}
	}
}

func (t *stepTimer) info(format string, args ...any) {
	if t.verbose {
		dimColor.Printf("   ├── "+format+"\n", args...)
	}
}

func runReview(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	prURL := args[0]

	timer := newStepTimer(5, verbose)
	overallStart := time.Now()

	titleColor.Println("🚀 diffscope - PR Review")
	dimColor.Printf("   Target: %s\n\n", prURL)

	// 1. Load configuration and build the pipeline
	timer.step("Initializing")
	cfg, log, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w\n\nTip: set GITHUB_TOKEN (or pass --github-token) and the provider API key", err)
	}

	pipe, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	timer.done()

	// 2. Parse URL and fetch PR metadata
	timer.step("Fetching PR metadata")
	owner, repoName, prNumber, err := gitutil.ParsePullRequestURL(prURL)
	if err != nil {
		return fmt.Errorf("invalid PR URL: %w\n\nExpected format: https://github.com/owner/repo/pull/123", err)
	}

	ghClient := github.NewPATClient(ctx, cfg.GitHub.Token, log)

	pr, err := ghClient.GetPullRequest(ctx, owner, repoName, prNumber)
	if err != nil {
		return fmt.Errorf("failed to fetch PR: %w\n\nTip: check that the PR exists and your token has access", err)
	}
	if pr.GetHead().GetSHA() == "" {
		return fmt.Errorf("pull request %s#%d has no head commit", repoName, prNumber)
	}

	timer.info("PR #%d: %s", pr.GetNumber(), pr.GetTitle())
	timer.info("Head SHA: %s", truncateSHA(pr.GetHead().GetSHA()))
	timer.info("Language: %s", pr.GetBase().GetRepo().GetLanguage())
	timer.done()

	event := &core.GitHubEvent{
		RepoOwner:    owner,
		RepoName:     repoName,
		RepoFullName: fmt.Sprintf("%s/%s", owner, repoName),
		RepoCloneURL: pr.GetBase().GetRepo().GetCloneURL(),
		Language:     pr.GetBase().GetRepo().GetLanguage(),
		PRNumber:     prNumber,
		PRTitle:      pr.GetTitle(),
		PRBody:       pr.GetBody(),
		HeadSHA:      pr.GetHead().GetSHA(),
	}

	// 3. Clone at the PR head
	timer.step("Cloning repository")
	repoPath, cleanup, err := pipe.cloner.CloneAndCheckoutTemp(ctx, event.RepoCloneURL, event.HeadSHA, cfg.GitHub.Token)
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w\n\nTip: check network connectivity and disk space", err)
	}
	defer cleanup()
	timer.info("Path: %s", repoPath)
	timer.done()

	repoCfg, err := core.LoadRepoConfig(repoPath)
	if err != nil {
		log.Warn("failed to load repo config, using defaults", "error", err)
		repoCfg = core.DefaultRepoConfig()
	}

	// 4. Index the repository
	timer.step("Indexing repository")
	collectionName := storage.CollectionNameForRepo(event.RepoFullName, cfg.AI.EmbedderModel)
	timer.info("Collection: %s", collectionName)
	docCount, err := pipe.indexer.IndexRepository(ctx, repoCfg, repoPath, collectionName)
	if err != nil {
		return fmt.Errorf("failed to index repository: %w\n\nTip: check that Qdrant and the embedding model are reachable", err)
	}
	timer.info("Documents: %d", docCount)
	timer.done()

	// 5. Generate the review
	timer.step("Generating review")
	review, err := pipe.reviewer.ReviewPR(ctx, repoCfg, event, ghClient, collectionName)
	if err != nil {
		return fmt.Errorf("failed to generate review: %w\n\nTip: check that the LLM service is reachable", err)
	}
	timer.info("Issues: %d", review.IssueCount())
	timer.done()

	if verbose {
		dimColor.Printf("\n⏱️  Total time: %s\n", time.Since(overallStart).Round(time.Millisecond))
	}

	printReview(review)
	return nil
}

func truncateSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func printReview(review *core.StructuredReview) {
	separator := strings.Repeat("═", 60)
	thinSeparator := strings.Repeat("─", 60)

	fmt.Println()
	titleColor.Println(separator)
	titleColor.Println("📋 REVIEW SUMMARY")
	titleColor.Println(separator)
	fmt.Println()
	infoColor.Println(review.Summary)

	if review.IssueCount() == 0 {
		fmt.Println()
		successColor.Println("✅ No issues found!")
		return
	}

	fmt.Println()
	warnColor.Println(thinSeparator)
	warnColor.Printf("💡 FINDINGS (%d)\n", review.IssueCount())
	warnColor.Println(thinSeparator)

	for _, f := range review.Files {
		for _, issue := range f.Issues {
			fmt.Println()
			printSeverityBadge(issue.Severity)
			boldColor.Printf(" %s", f.Path)
			if issue.LineNumber > 0 {
				dimColor.Printf(":%d", issue.LineNumber)
			}
			fmt.Println()

			if issue.Category != "" {
				dimColor.Printf("   Category: %s\n", issue.Category)
			}
			fmt.Println()
			printMarkdown(issue.Description)

			if issue.CodeSnippet != "" {
				fmt.Println()
				dimColor.Printf("%s\n", indentSnippet(issue.CodeSnippet))
			}

			fmt.Println()
			dimColor.Println(strings.Repeat("─", 40))
		}
	}
	fmt.Println()
}

// printSeverityBadge maps the 1..10 severity scale onto colored labels.
func printSeverityBadge(severity int) {
	switch {
	case severity >= 9:
		color.New(color.BgRed, color.FgWhite, color.Bold).Printf(" Critical (%d) ", severity)
	case severity >= 7:
		color.New(color.BgHiRed, color.FgWhite).Printf(" High (%d) ", severity)
	case severity >= 4:
		color.New(color.BgYellow, color.FgBlack).Printf(" Medium (%d) ", severity)
	default:
		color.New(color.BgGreen, color.FgWhite).Printf(" Low (%d) ", severity)
	}
}

// printMarkdown renders LLM output as terminal markdown, falling back to
// plain text when rendering fails.
func printMarkdown(text string) {
	rendered, err := glamour.Render(text, "dark")
	if err != nil {
		infoColor.Printf("%s\n", text)
		return
	}
	fmt.Print(strings.TrimLeft(rendered, "\n"))
}

func indentSnippet(snippet string) string {
	lines := strings.Split(strings.TrimRight(snippet, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "   │ " + l
	}
	return strings.Join(lines, "\n")
}
