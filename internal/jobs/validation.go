package jobs

import (
	"log/slog"
	"strings"

	"github.com/diffscope/diffscope/internal/core"
)

// SplitIssuesByDiffLines checks every issue's line number against the set of
// commentable diff lines. Issues on a valid line are returned per file for
// inline posting; everything else (unknown file, missing or off-diff line)
// goes to the general findings section.
func SplitIssuesByDiffLines(
	logger *slog.Logger,
	files []core.FileReview,
	validLineMaps map[string]map[int]struct{},
) (inline []core.FileReview, offDiff []core.FileReview) {
	for _, file := range files {
		cleanPath := strings.TrimPrefix(file.Path, "./")
		lines, known := validLineMaps[cleanPath]

		var in, off []core.Issue
		for _, issue := range file.Issues {
			switch {
			case !known:
				logger.Warn("moving issue to general findings (file not in diff)",
					"file", file.Path)
				off = append(off, issue)
			case issue.LineNumber == 0:
				off = append(off, issue)
			default:
				if _, ok := lines[issue.LineNumber]; ok {
					in = append(in, issue)
				} else {
					logger.Warn("moving issue to general findings (off-diff line)",
						"file", file.Path, "line", issue.LineNumber)
					off = append(off, issue)
				}
			}
		}

		if len(in) > 0 {
			inline = append(inline, core.FileReview{Path: cleanPath, Issues: in})
		}
		if len(off) > 0 {
			offDiff = append(offDiff, core.FileReview{Path: cleanPath, Issues: off})
		}
	}
	return inline, offDiff
}
