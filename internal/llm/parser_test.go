package llm

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseIssues_BareArray(t *testing.T) {
	response := `[
		{"description": "SQL built by string concatenation", "code_snippet": "query := \"SELECT * FROM users WHERE id=\" + id", "category": "security", "severity": 9},
		{"description": "error ignored", "code_snippet": "_ = f.Close()", "category": "error handling", "severity": 4}
	]`

	issues, err := ParseIssues(response, discardLogger())
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, "SQL built by string concatenation", issues[0].Description)
	assert.Equal(t, "security", issues[0].Category)
	assert.Equal(t, 9, issues[0].Severity)
	assert.Equal(t, `query := "SELECT * FROM users WHERE id=" + id`, issues[0].CodeSnippet)
	assert.Equal(t, 4, issues[1].Severity)
}

func TestParseIssues_MarkdownFenceAndProse(t *testing.T) {
	response := "Here is my review of the changes:\n```json\n" +
		`[{"description": "missing nil check", "code_snippet": "p.Name", "category": "bug", "severity": 7}]` +
		"\n```\nLet me know if you need more detail."

	issues, err := ParseIssues(response, discardLogger())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "missing nil check", issues[0].Description)
}

func TestParseIssues_ObjectWrapper(t *testing.T) {
	response := `{"issues": [{"description": "race on counter", "code_snippet": "counter++", "category": "concurrency", "severity": 8}]}`

	issues, err := ParseIssues(response, discardLogger())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "concurrency", issues[0].Category)
}

func TestParseIssues_SeverityClamped(t *testing.T) {
	response := `[
		{"description": "too high", "code_snippet": "a", "category": "style", "severity": 42},
		{"description": "too low", "code_snippet": "b", "category": "style", "severity": 0},
		{"description": "negative", "code_snippet": "c", "category": "style", "severity": -3}
	]`

	issues, err := ParseIssues(response, discardLogger())
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, 10, issues[0].Severity)
	assert.Equal(t, 1, issues[1].Severity)
	assert.Equal(t, 1, issues[2].Severity)
}

func TestParseIssues_SanitizesBadEscapes(t *testing.T) {
	response := `[{"description": "uses \'magic\' value", "code_snippet": "x = 1", "category": "style", "severity": 2}]`

	issues, err := ParseIssues(response, discardLogger())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "uses 'magic' value", issues[0].Description)
}

func TestParseIssues_RawNewlineInString(t *testing.T) {
	response := "[{\"description\": \"line one\nline two\", \"code_snippet\": \"y\", \"category\": \"style\", \"severity\": 3}]"

	issues, err := ParseIssues(response, discardLogger())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "line one\nline two", issues[0].Description)
}

func TestParseIssues_DropsBadElements(t *testing.T) {
	response := `[
		{"description": "kept", "code_snippet": "a", "category": "bug", "severity": 5},
		{"description": "", "code_snippet": "b", "category": "bug", "severity": 5},
		{"description": "bad severity type", "code_snippet": "c", "category": "bug", "severity": "high"}
	]`

	issues, err := ParseIssues(response, discardLogger())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "kept", issues[0].Description)
}

func TestParseIssues_NoPayload(t *testing.T) {
	_, err := ParseIssues("I could not find any problems with this change.", discardLogger())
	assert.Error(t, err)
}

func TestExtractJSON_NestedBrackets(t *testing.T) {
	response := `noise [ {"description": "arr [0] access", "severity": 5} ] trailing`
	got := extractJSON(response)
	assert.Equal(t, `[ {"description": "arr [0] access", "severity": 5} ]`, got)
}
