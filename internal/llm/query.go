package llm

import (
	"strings"

	"github.com/diffscope/diffscope/internal/github"
)

// QueryOptions bounds the output of the diff-to-query engine.
type QueryOptions struct {
	// MaxQueries caps the number of queries generated for one file.
	MaxQueries int
	// MaxQueryLength caps the rune length of a single query.
	MaxQueryLength int
}

// DefaultQueryOptions mirror the config defaults.
var DefaultQueryOptions = QueryOptions{
	MaxQueries:     8,
	MaxQueryLength: 512,
}

// QueriesForFile derives vector-search queries from a file's unified diff
// patch. Each hunk yields at most one query built from its added lines,
// prefixed with the enclosing declaration when the indentation heuristic can
// find one. Queries are deduplicated per file and capped in count and length.
func QueriesForFile(filename, patch string, opts QueryOptions) []string {
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = DefaultQueryOptions.MaxQueries
	}
	if opts.MaxQueryLength <= 0 {
		opts.MaxQueryLength = DefaultQueryOptions.MaxQueryLength
	}

	hunks := github.ParseHunks(patch)

	var queries []string
	seen := make(map[string]struct{})

	for _, hunk := range hunks {
		query := queryForHunk(filename, hunk)
		if query == "" {
			continue
		}
		query = truncateQuery(query, opts.MaxQueryLength)
		if _, dup := seen[query]; dup {
			continue
		}
		seen[query] = struct{}{}
		queries = append(queries, query)
		if len(queries) >= opts.MaxQueries {
			break
		}
	}
	return queries
}

// queryForHunk builds a single query from a hunk's added lines.
func queryForHunk(filename string, hunk github.Hunk) string {
	added := significantAddedLines(hunk)
	if len(added) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("In file ")
	sb.WriteString(filename)

	if scope := enclosingScope(hunk); scope != "" {
		sb.WriteString(", within scope of ")
		sb.WriteString(scope)
	}

	sb.WriteString(": ")
	sb.WriteString(strings.Join(added, " "))
	return sb.String()
}

// significantAddedLines returns the trimmed added lines of a hunk, dropping
// blanks and lines that carry no searchable content.
func significantAddedLines(hunk github.Hunk) []string {
	var out []string
	for _, line := range hunk.AddedLines() {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isNoiseLine(trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// isNoiseLine filters lines that add nothing to a similarity query, like
// lone braces or separators.
func isNoiseLine(trimmed string) bool {
	switch trimmed {
	case "{", "}", "(", ")", "};", ");", "end":
		return true
	}
	return false
}

// enclosingScope scans a hunk's context for the declaration enclosing the
// first added line. A context or removed line is considered enclosing when
// its indentation is strictly shallower than the shallowest added line and
// it looks like a declaration.
func enclosingScope(hunk github.Hunk) string {
	firstAdded := -1
	minAddedIndent := -1
	for i, line := range hunk.Lines {
		if !strings.HasPrefix(line, "+") {
			continue
		}
		content := line[1:]
		if strings.TrimSpace(content) == "" {
			continue
		}
		if firstAdded == -1 {
			firstAdded = i
		}
		indent := indentWidth(content)
		if minAddedIndent == -1 || indent < minAddedIndent {
			minAddedIndent = indent
		}
	}
	if firstAdded == -1 {
		return ""
	}

	// Walk upward from the first added line looking for the nearest
	// shallower declaration.
	for i := firstAdded - 1; i >= 0; i-- {
		line := hunk.Lines[i]
		if line == "" || strings.HasPrefix(line, "+") {
			continue
		}
		content := line[1:]
		if strings.TrimSpace(content) == "" {
			continue
		}
		if indentWidth(content) < minAddedIndent && looksLikeDeclaration(content) {
			return strings.TrimSpace(content)
		}
	}
	return ""
}

// indentWidth measures leading whitespace, counting a tab as four columns.
func indentWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width
		}
	}
	return width
}

// declarationPrefixes covers function/type openers across the indexed
// languages.
var declarationPrefixes = []string{
	"func ", "def ", "class ", "type ", "interface ", "struct ",
	"fn ", "function ", "impl ", "trait ",
	"public ", "private ", "protected ", "static ",
	"async def ", "export function ", "export default function ",
	"export class ", "export const ",
}

// looksLikeDeclaration reports whether a trimmed line opens a function, type,
// or class scope.
func looksLikeDeclaration(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range declarationPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	// Method-like signatures ending in an opening brace or colon.
	if strings.HasSuffix(trimmed, "{") && strings.Contains(trimmed, "(") {
		return true
	}
	if strings.HasSuffix(trimmed, ":") && strings.Contains(trimmed, "(") {
		return true
	}
	return false
}

// truncateQuery cuts a query at a rune boundary.
func truncateQuery(query string, maxLen int) string {
	runes := []rune(query)
	if len(runes) <= maxLen {
		return query
	}
	return string(runes[:maxLen])
}
