package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scopedPatch = `@@ -10,6 +10,8 @@
 func process(items []string) error {
 	for _, item := range items {
+		if item == "" {
+			continue
+		}
 		handle(item)
 	}
 }`

func TestQueriesForFile_ScopeAttachment(t *testing.T) {
	queries := QueriesForFile("worker.go", scopedPatch, DefaultQueryOptions)

	require.Len(t, queries, 1)
	assert.Contains(t, queries[0], "In file worker.go")
	assert.Contains(t, queries[0], `within scope of func process(items []string) error {`)
	assert.Contains(t, queries[0], `if item == ""`)
	assert.NotContains(t, queries[0], "handle(item)", "context lines must not leak into the query")
}

func TestQueriesForFile_NoScopeWhenTopLevel(t *testing.T) {
	patch := `@@ -1,3 +1,5 @@
 import "fmt"
+
+var maxRetries = 3

 var timeout = 30`

	queries := QueriesForFile("config.go", patch, DefaultQueryOptions)

	require.Len(t, queries, 1)
	assert.NotContains(t, queries[0], "within scope of")
	assert.Contains(t, queries[0], "var maxRetries = 3")
}

func TestQueriesForFile_Dedup(t *testing.T) {
	patch := `@@ -5,3 +5,4 @@
 func a() {
+	log.Println("start")
 }
@@ -15,3 +16,4 @@
 func a() {
+	log.Println("start")
 }`

	queries := QueriesForFile("dup.go", patch, DefaultQueryOptions)
	assert.Len(t, queries, 1)
}

func TestQueriesForFile_CapsCountAndLength(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		sb.WriteString("@@ -1,1 +1,2 @@\n")
		sb.WriteString(" context\n")
		sb.WriteString("+added line number ")
		sb.WriteString(strings.Repeat("x", i+1))
		sb.WriteString("\n")
	}

	opts := QueryOptions{MaxQueries: 3, MaxQueryLength: 40}
	queries := QueriesForFile("big.go", sb.String(), opts)

	require.Len(t, queries, 3)
	for _, q := range queries {
		assert.LessOrEqual(t, len([]rune(q)), 40)
	}
}

func TestQueriesForFile_EmptyAndNoisePatches(t *testing.T) {
	assert.Empty(t, QueriesForFile("a.go", "", DefaultQueryOptions))

	onlyRemovals := `@@ -4,3 +4,2 @@
 keep
-gone
 keep`
	assert.Empty(t, QueriesForFile("a.go", onlyRemovals, DefaultQueryOptions))

	onlyBraces := `@@ -1,2 +1,3 @@
 func x() {
+}
 done`
	assert.Empty(t, QueriesForFile("a.go", onlyBraces, DefaultQueryOptions))
}

func TestLooksLikeDeclaration(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"func process(items []string) error {", true},
		{"def handle(self, event):", true},
		{"class Reviewer:", true},
		{"export function render() {", true},
		{"return nil", false},
		{"x := compute(y)", false},
		{"// a comment", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, looksLikeDeclaration(tt.line), tt.line)
	}
}
