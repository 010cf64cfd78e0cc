package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/diffscope/diffscope/internal/core"
)

// ParseIssues extracts the JSON issue array from an LLM response. It
// tolerates the usual quirks: markdown code fences, prose before or after
// the payload, invalid escape sequences, and out-of-range severities.
// Issues that cannot be decoded individually are dropped with a warning
// rather than failing the whole response.
func ParseIssues(response string, logger *slog.Logger) ([]core.Issue, error) {
	payload := extractJSON(response)
	if payload == "" {
		return nil, fmt.Errorf("no JSON payload found in LLM response")
	}

	raw, err := decodeRawIssues(payload)
	if err != nil {
		// Retry once after repairing common escaping mistakes.
		repaired := sanitizeJSON(payload)
		raw, err = decodeRawIssues(repaired)
		if err != nil {
			return nil, fmt.Errorf("failed to decode review JSON: %w", err)
		}
	}

	issues := make([]core.Issue, 0, len(raw))
	for i, msg := range raw {
		var issue core.Issue
		if err := json.Unmarshal(msg, &issue); err != nil {
			logger.Warn("dropping undecodable review issue", "index", i, "error", err)
			continue
		}
		if strings.TrimSpace(issue.Description) == "" {
			logger.Warn("dropping review issue without description", "index", i)
			continue
		}
		issue.ClampSeverity()
		issues = append(issues, issue)
	}
	return issues, nil
}

// decodeRawIssues accepts either a bare array or an object wrapping one
// under a conventional key.
func decodeRawIssues(payload string) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(payload)

	if strings.HasPrefix(trimmed, "[") {
		var raw []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil {
		return nil, err
	}
	for _, key := range []string{"issues", "comments", "review", "findings"} {
		if inner, ok := wrapper[key]; ok {
			var raw []json.RawMessage
			if err := json.Unmarshal(inner, &raw); err != nil {
				return nil, err
			}
			return raw, nil
		}
	}
	return nil, fmt.Errorf("JSON object carries no issue array")
}

// extractJSON locates the JSON payload inside a response that may wrap it in
// code fences or surround it with prose. It returns the outermost bracketed
// region, preferring an array over an object.
func extractJSON(response string) string {
	s := stripCodeFence(strings.TrimSpace(response))

	if region := bracketedRegion(s, '[', ']'); region != "" {
		return region
	}
	return bracketedRegion(s, '{', '}')
}

// bracketedRegion returns the substring from the first open bracket to its
// matching close, tracking string literals so brackets inside values do not
// confuse the scan.
func bracketedRegion(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// stripCodeFence removes a wrapping ```json ... ``` fence when present.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	idx := strings.Index(s, "\n")
	if idx < 0 {
		return s
	}
	inner := s[idx+1:]
	if lastFence := strings.LastIndex(inner, "```"); lastFence >= 0 {
		inner = inner[:lastFence]
	}
	return strings.TrimSpace(inner)
}

// sanitizeJSON repairs mistakes that are invalid JSON but common in LLM
// output: \' escapes, backslashes before unknown letters, and raw newlines
// or tabs inside string values.
func sanitizeJSON(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			sb.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = false
			sb.WriteByte(c)
			continue
		}
		if c == '\\' && i+1 < len(s) {
			next := s[i+1]
			switch next {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				sb.WriteByte(c)
				sb.WriteByte(next)
				i++
			case '\'':
				// \' is not valid JSON; the quote needs no escape.
				sb.WriteByte('\'')
				i++
			default:
				// Unknown escape; double the backslash to keep it literal.
				sb.WriteString(`\\`)
			}
			continue
		}
		switch c {
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
