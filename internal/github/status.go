package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v73/github"

	"github.com/diffscope/diffscope/internal/core"
)

// checkRunName is the name under which review progress appears in the PR checks tab.
const checkRunName = "diffscope review"

// StatusUpdater reports review progress through GitHub Check Runs and posts
// the finished review back to the pull request.
type StatusUpdater interface {
	InProgress(ctx context.Context, event *core.GitHubEvent, title, summary string) (int64, error)
	Completed(ctx context.Context, event *core.GitHubEvent, checkRunID int64, conclusion, title, summary string) error
	PostReview(ctx context.Context, event *core.GitHubEvent, summary string, comments []DraftReviewComment) error
	PostSimpleComment(ctx context.Context, event *core.GitHubEvent, body string) error
}

type statusUpdater struct {
	client Client
}

// NewStatusUpdater returns a StatusUpdater backed by the given client.
func NewStatusUpdater(client Client) StatusUpdater {
	return &statusUpdater{client: client}
}

func (s *statusUpdater) PostSimpleComment(ctx context.Context, event *core.GitHubEvent, body string) error {
	return s.client.CreateComment(ctx, event.RepoOwner, event.RepoName, event.PRNumber, body)
}

// InProgress creates a new check run with an "in_progress" status.
func (s *statusUpdater) InProgress(ctx context.Context, event *core.GitHubEvent, title, summary string) (int64, error) {
	opts := github.CreateCheckRunOptions{
		Name:    checkRunName,
		HeadSHA: event.HeadSHA,
		Status:  github.Ptr("in_progress"),
		Output: &github.CheckRunOutput{
			Title:   &title,
			Summary: &summary,
		},
	}
	checkRun, err := s.client.CreateCheckRun(ctx, event.RepoOwner, event.RepoName, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to create check run: %w", err)
	}
	return checkRun.GetID(), nil
}

// Completed updates an existing check run to a "completed" status.
func (s *statusUpdater) Completed(ctx context.Context, event *core.GitHubEvent, checkRunID int64, conclusion, title, summary string) error {
	opts := github.UpdateCheckRunOptions{
		Status:      github.Ptr("completed"),
		Conclusion:  &conclusion,
		CompletedAt: &github.Timestamp{Time: time.Now()},
		Output: &github.CheckRunOutput{
			Title:   &title,
			Summary: &summary,
		},
	}
	_, err := s.client.UpdateCheckRun(ctx, event.RepoOwner, event.RepoName, checkRunID, opts)
	return err
}

// PostReview posts the review summary together with its inline comments.
func (s *statusUpdater) PostReview(ctx context.Context, event *core.GitHubEvent, summary string, comments []DraftReviewComment) error {
	return s.client.CreateReview(ctx, event.RepoOwner, event.RepoName, event.PRNumber, summary, comments)
}

// FormatInlineComment renders one issue as a GitHub review comment body.
func FormatInlineComment(issue core.Issue) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s Severity %d/10", SeverityEmoji(issue.Severity), issue.Severity)
	if issue.Category != "" {
		fmt.Fprintf(&sb, " | %s", issue.Category)
	}
	sb.WriteString("\n\n")
	sb.WriteString(issue.Description)

	if snippet := strings.TrimSpace(issue.CodeSnippet); snippet != "" {
		sb.WriteString("\n\n```\n")
		sb.WriteString(snippet)
		sb.WriteString("\n```")
	}
	return sb.String()
}

// FormatReviewSummary renders the review body posted on the PR, including
// per-severity statistics and any findings that could not be attached to a
// diff line.
func FormatReviewSummary(review *core.StructuredReview, offDiff []core.FileReview) string {
	var sb strings.Builder

	sb.WriteString("### 📝 Code Review Summary\n\n")
	sb.WriteString(review.Summary)
	sb.WriteString("\n\n")

	if review.IssueCount() > 0 {
		counts := make(map[string]int)
		for _, f := range review.Files {
			for _, issue := range f.Issues {
				counts[severityBucket(issue.Severity)]++
			}
		}

		sb.WriteString("---\n#### 📊 Issue Statistics\n\n")
		sb.WriteString("| Severity | Count |\n|----------|-------|\n")
		for _, bucket := range []string{"Critical", "High", "Medium", "Low"} {
			if n := counts[bucket]; n > 0 {
				fmt.Fprintf(&sb, "| %s %s | %d |\n", bucketEmoji(bucket), bucket, n)
			}
		}
	}

	if len(offDiff) > 0 {
		sb.WriteString("\n---\n#### 💡 General Findings\n\n")
		sb.WriteString("These findings reference lines outside the diff:\n\n")
		for _, f := range offDiff {
			for _, issue := range f.Issues {
				fmt.Fprintf(&sb, "- %s `%s`: %s\n", SeverityEmoji(issue.Severity), f.Path, issue.Description)
			}
		}
	}

	return sb.String()
}

// severityBucket maps the numeric 1..10 scale onto a coarse label.
func severityBucket(severity int) string {
	switch {
	case severity >= 9:
		return "Critical"
	case severity >= 7:
		return "High"
	case severity >= 4:
		return "Medium"
	default:
		return "Low"
	}
}

// SeverityEmoji returns an indicator for the given 1..10 severity.
func SeverityEmoji(severity int) string {
	return bucketEmoji(severityBucket(severity))
}

func bucketEmoji(bucket string) string {
	switch bucket {
	case "Critical":
		return "🔴"
	case "High":
		return "🟠"
	case "Medium":
		return "🟡"
	case "Low":
		return "🟢"
	default:
		return "⚪"
	}
}
