package github

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeaderRegex = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// Hunk is one contiguous block of a unified diff patch. Lines keep their
// diff prefix (' ', '+', '-') so callers can distinguish context from
// changes.
type Hunk struct {
	// NewStart is the first line number of the hunk on the new side.
	NewStart int
	Lines    []string
}

// AddedLines returns the hunk's added lines with the '+' prefix stripped.
func (h Hunk) AddedLines() []string {
	var added []string
	for _, line := range h.Lines {
		if strings.HasPrefix(line, "+") {
			added = append(added, strings.TrimPrefix(line, "+"))
		}
	}
	return added
}

// ParseHunks splits a file patch into its hunks. Lines before the first
// hunk header and malformed headers are skipped.
func ParseHunks(patch string) []Hunk {
	var hunks []Hunk
	var current *Hunk

	for _, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "@@") {
			if current != nil {
				hunks = append(hunks, *current)
			}
			current = nil

			matches := hunkHeaderRegex.FindStringSubmatch(line)
			if len(matches) < 2 {
				continue
			}
			start, err := strconv.Atoi(matches[1])
			if err != nil {
				continue
			}
			current = &Hunk{NewStart: start}
			continue
		}
		if current != nil {
			current.Lines = append(current.Lines, line)
		}
	}
	if current != nil {
		hunks = append(hunks, *current)
	}
	return hunks
}

// ParseValidLinesFromPatch extracts all line numbers that can receive an
// inline comment in a GitHub PR: the lines present on the new side of the
// diff.
func ParseValidLinesFromPatch(patch string, logger *slog.Logger) map[int]struct{} {
	validLines := make(map[int]struct{})

	currentLine := -1
	for _, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "@@") {
			// Skip malformed hunks; don't number lines from a stale position.
			matches := hunkHeaderRegex.FindStringSubmatch(line)
			if len(matches) < 2 {
				if logger != nil {
					logger.Warn("skipped malformed hunk header", "line", line)
				}
				currentLine = -1
				continue
			}
			start, err := strconv.Atoi(matches[1])
			if err != nil {
				if logger != nil {
					logger.Warn("skipped malformed hunk header", "line", line, "error", err)
				}
				currentLine = -1
				continue
			}
			currentLine = start
			continue
		}

		if currentLine == -1 {
			continue
		}

		switch {
		case strings.HasPrefix(line, "+"), strings.HasPrefix(line, " "):
			validLines[currentLine] = struct{}{}
			currentLine++
		case strings.HasPrefix(line, "-"):
			// Removed lines exist only on the old side.
			continue
		}
	}

	return validLines
}
