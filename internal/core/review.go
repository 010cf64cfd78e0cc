package core

import "time"

// Severity bounds for a review issue. Values outside the range are clamped
// when the LLM response is parsed.
const (
	MinSeverity = 1
	MaxSeverity = 10
)

// Issue is a single review finding for a changed file. The JSON field set
// (description, code_snippet, category, severity) is the external contract
// for the LLM output; line_number is an optional extension used to place the
// finding as an inline pull request comment.
type Issue struct {
	Description string `json:"description"`
	CodeSnippet string `json:"code_snippet"`
	Category    string `json:"category"`
	Severity    int    `json:"severity"`
	LineNumber  int    `json:"line_number,omitempty"`
}

// ClampSeverity forces the severity into the valid range.
func (i *Issue) ClampSeverity() {
	if i.Severity < MinSeverity {
		i.Severity = MinSeverity
	}
	if i.Severity > MaxSeverity {
		i.Severity = MaxSeverity
	}
}

// FileReview holds the issues found for a single changed file.
type FileReview struct {
	Path   string  `json:"path"`
	Issues []Issue `json:"issues"`
}

// StructuredReview is the accumulated result of reviewing one pull request.
// It maps each changed file to its findings and is rebuilt on every run.
type StructuredReview struct {
	Summary string       `json:"summary"`
	Files   []FileReview `json:"files"`
}

// IssueCount returns the total number of issues across all files.
func (r *StructuredReview) IssueCount() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Issues)
	}
	return n
}

// Review is a persisted code review record.
type Review struct {
	ID           int64     `db:"id"`
	RepoFullName string    `db:"repo_full_name"`
	PRNumber     int       `db:"pr_number"`
	HeadSHA      string    `db:"head_sha"`
	ReviewJSON   string    `db:"review_json"`
	CreatedAt    time.Time `db:"created_at"`
}
