package github

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePatch = `@@ -10,4 +10,6 @@ func process() {
 	existing := 1
+	added := 2
+	more := 3
 	kept := 4
-	removed := 5
 	tail := 6
@@ -30,2 +32,3 @@ func other() {
 	a := 1
+	b := 2
 	c := 3`

func TestParseHunks(t *testing.T) {
	hunks := ParseHunks(samplePatch)
	require.Len(t, hunks, 2)

	assert.Equal(t, 10, hunks[0].NewStart)
	assert.Equal(t, []string{"	added := 2", "	more := 3"}, hunks[0].AddedLines())

	assert.Equal(t, 32, hunks[1].NewStart)
	assert.Equal(t, []string{"	b := 2"}, hunks[1].AddedLines())
}

func TestParseHunksMalformedHeader(t *testing.T) {
	patch := "@@ garbage @@\n+orphan line\n@@ -1,1 +1,2 @@\n context\n+added"
	hunks := ParseHunks(patch)
	require.Len(t, hunks, 1)
	assert.Equal(t, 1, hunks[0].NewStart)
	assert.Equal(t, []string{"added"}, hunks[0].AddedLines())
}

func TestParseValidLinesFromPatch(t *testing.T) {
	logger := slog.Default()
	valid := ParseValidLinesFromPatch(samplePatch, logger)

	// First hunk covers new lines 10..15 minus the removed one.
	for _, line := range []int{10, 11, 12, 13, 14, 32, 33, 34} {
		_, ok := valid[line]
		assert.True(t, ok, "line %d should be commentable", line)
	}

	_, ok := valid[99]
	assert.False(t, ok)
}

func TestParseValidLinesMalformedHeaderResetsCounter(t *testing.T) {
	patch := "@@ -10,2 +10,2 @@\n context\n+added\n@@ garbage @@\n+orphan one\n+orphan two"
	valid := ParseValidLinesFromPatch(patch, nil)

	assert.Equal(t, map[int]struct{}{10: {}, 11: {}}, valid,
		"lines after a malformed header must not be numbered from the previous hunk")
}

func TestParseValidLinesEmptyPatch(t *testing.T) {
	valid := ParseValidLinesFromPatch("", nil)
	assert.Empty(t, valid)
}
