package jobs

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffscope/diffscope/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSplitIssuesByDiffLines(t *testing.T) {
	validLineMaps := map[string]map[int]struct{}{
		"internal/api/client.go": {10: {}, 11: {}, 12: {}},
	}

	files := []core.FileReview{
		{
			Path: "internal/api/client.go",
			Issues: []core.Issue{
				{Description: "on diff", LineNumber: 11, Severity: 5},
				{Description: "off diff", LineNumber: 99, Severity: 5},
				{Description: "no line", Severity: 5},
			},
		},
		{
			Path: "./internal/api/client.go",
			Issues: []core.Issue{
				{Description: "prefixed path", LineNumber: 10, Severity: 3},
			},
		},
		{
			Path: "not/in/diff.go",
			Issues: []core.Issue{
				{Description: "unknown file", LineNumber: 1, Severity: 2},
			},
		},
	}

	inline, offDiff := SplitIssuesByDiffLines(testLogger(), files, validLineMaps)

	require.Len(t, inline, 2)
	assert.Equal(t, "internal/api/client.go", inline[0].Path)
	require.Len(t, inline[0].Issues, 1)
	assert.Equal(t, "on diff", inline[0].Issues[0].Description)
	assert.Equal(t, "internal/api/client.go", inline[1].Path, "./ prefix is normalized")

	require.Len(t, offDiff, 2)
	assert.Len(t, offDiff[0].Issues, 2, "off-diff line and missing line both demoted")
	assert.Equal(t, "not/in/diff.go", offDiff[1].Path)
}

func TestSplitIssuesByDiffLines_EmptyLineMaps(t *testing.T) {
	files := []core.FileReview{
		{Path: "a.go", Issues: []core.Issue{{Description: "x", LineNumber: 1}}},
	}

	inline, offDiff := SplitIssuesByDiffLines(testLogger(), files, nil)
	assert.Empty(t, inline)
	require.Len(t, offDiff, 1)
}

func TestValidateEvent(t *testing.T) {
	valid := func() *core.GitHubEvent {
		return &core.GitHubEvent{
			RepoOwner:      "acme",
			RepoName:       "widgets",
			RepoFullName:   "acme/widgets",
			RepoCloneURL:   "https://github.com/acme/widgets.git",
			PRNumber:       7,
			InstallationID: 1234,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*core.GitHubEvent)
		wantErr string
	}{
		{"valid", func(*core.GitHubEvent) {}, ""},
		{"missing owner", func(e *core.GitHubEvent) { e.RepoOwner = "" }, "repository identity"},
		{"missing clone url", func(e *core.GitHubEvent) { e.RepoCloneURL = "" }, "clone URL"},
		{"bad pr number", func(e *core.GitHubEvent) { e.PRNumber = 0 }, "must be positive"},
		{"bad installation", func(e *core.GitHubEvent) { e.InstallationID = 0 }, "installation ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := valid()
			tt.mutate(event)
			err := validateEvent(event)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}

	assert.Error(t, validateEvent(nil))
}
