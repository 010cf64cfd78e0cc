// Package ingest walks a repository mirror and chunks its files into
// documents for the vector store.
package ingest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sevigo/goframe/embeddings/sparse"
	"github.com/sevigo/goframe/parsers"
	"github.com/sevigo/goframe/schema"
	"github.com/sevigo/goframe/textsplitter"

	"github.com/diffscope/diffscope/internal/config"
	"github.com/diffscope/diffscope/internal/core"
	"github.com/diffscope/diffscope/internal/llm"
	"github.com/diffscope/diffscope/internal/storage"
)

const (
	indexWorkers      = 8
	maxParentTextLen  = 2000
	docUploadBatchLen = 128
)

// Indexer chunks repository files and upserts them into the vector store.
type Indexer struct {
	cfg            *config.Config
	vectorStore    storage.VectorStore
	parserRegistry parsers.ParserRegistry
	logger         *slog.Logger
}

func NewIndexer(cfg *config.Config, vs storage.VectorStore, registry parsers.ParserRegistry, logger *slog.Logger) *Indexer {
	return &Indexer{
		cfg:            cfg,
		vectorStore:    vs,
		parserRegistry: registry,
		logger:         logger,
	}
}

// IndexRepository walks repoPath, chunks every allowed file, and upserts the
// resulting documents into the collection. Chunk IDs are deterministic, so
// re-running over the same tree updates in place. It returns the number of
// indexed documents.
func (ix *Indexer) IndexRepository(ctx context.Context, repoCfg *core.RepoConfig, repoPath, collectionName string) (int, error) {
	if repoCfg == nil {
		repoCfg = core.DefaultRepoConfig()
	}

	start := time.Now()
	files, err := ix.listFiles(repoPath, repoCfg)
	if err != nil {
		return 0, fmt.Errorf("failed to list repository files: %w", err)
	}

	ix.logger.Info("indexing repository",
		"path", repoPath,
		"collection", collectionName,
		"files", len(files),
	)

	docs := ix.processFilesParallel(ctx, repoPath, files, indexWorkers)

	for i := 0; i < len(docs); i += docUploadBatchLen {
		end := min(i+docUploadBatchLen, len(docs))
		if err := ix.vectorStore.AddDocuments(ctx, collectionName, docs[i:end]); err != nil {
			return 0, fmt.Errorf("failed to add documents to vector store: %w", err)
		}
	}

	ix.logger.Info("repository indexed",
		"collection", collectionName,
		"documents", len(docs),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return len(docs), nil
}

// ResetCollection drops the collection so the next indexing run starts from
// an empty store instead of upserting over stale documents.
func (ix *Indexer) ResetCollection(ctx context.Context, collectionName string) error {
	ix.logger.Info("resetting collection", "collection", collectionName)
	if err := ix.vectorStore.DeleteCollection(ctx, collectionName); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", collectionName, err)
	}
	return nil
}

// listFiles returns the relative paths of indexable files under root,
// applying the extension allow-list and directory excludes.
func (ix *Indexer) listFiles(root string, repoCfg *core.RepoConfig) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && repoCfg.ExcludesDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !repoCfg.AllowsFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	return files, err
}

func (ix *Indexer) processFilesParallel(ctx context.Context, repoPath string, files []string, numWorkers int) []schema.Document {
	if len(files) == 0 {
		return nil
	}

	fileChan := make(chan string, len(files))
	resultChan := make(chan []schema.Document, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range fileChan {
				resultChan <- ix.processFile(ctx, repoPath, file)
			}
		}()
	}

	for _, file := range files {
		fileChan <- file
	}
	close(fileChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var allDocs []schema.Document
	for docs := range resultChan {
		allDocs = append(allDocs, docs...)
	}
	return allDocs
}

// processFile reads, parses, and chunks one file into documents.
func (ix *Indexer) processFile(ctx context.Context, repoPath, file string) []schema.Document {
	fullPath := filepath.Join(repoPath, file)
	contentBytes, err := os.ReadFile(fullPath)
	if err != nil {
		ix.logger.Error("failed to read file, skipping", "file", file, "error", err)
		return nil
	}

	// Oversized files blow the embedding budget and rarely carry focused
	// context; skip them loudly.
	if tokens := llm.EstimateTokens(string(contentBytes)); tokens > ix.cfg.Review.FileTokenBudget {
		ix.logger.Warn("file exceeds token budget, skipping",
			"file", file,
			"estimated_tokens", tokens,
			"budget", ix.cfg.Review.FileTokenBudget,
		)
		return nil
	}

	parser, err := ix.parserRegistry.GetParserForFile(fullPath, nil)
	if err != nil {
		ix.logger.Warn("no suitable parser for file, skipping", "file", file, "error", err)
		return nil
	}

	// Qdrant rejects strings that are not valid UTF-8.
	validContent := strings.ToValidUTF8(string(contentBytes), "")

	chunks, err := parser.Chunk(validContent, file, nil)
	if err != nil {
		ix.logger.Error("failed to chunk file", "file", file, "error", err)
		return nil
	}

	var fileMeta map[string]any
	if meta, err := parser.ExtractMetadata(validContent, fullPath); err == nil {
		fileMeta = make(map[string]any)
		if meta.PackageName != "" {
			fileMeta["package_name"] = meta.PackageName
		}
		if len(meta.Imports) > 0 {
			fileMeta["imports"] = meta.Imports
		}
	}

	var docs []schema.Document
	for _, chunk := range chunks {
		doc := schema.NewDocument(chunk.Content, map[string]any{
			"id":               chunkID(file, chunk.LineStart, chunk.LineEnd),
			"source":           file,
			"identifier":       chunk.Identifier,
			"chunk_type":       chunk.Type,
			"line_start":       chunk.LineStart,
			"line_end":         chunk.LineEnd,
			"parent_id":        chunk.ParentID,
			"full_parent_text": textsplitter.TruncateParentText(chunk.FullParentText, maxParentTextLen),
		})

		for k, v := range fileMeta {
			doc.Metadata[k] = v
		}
		for k, v := range chunk.Annotations {
			doc.Metadata[k] = v
		}
		if isTestFile(file) {
			doc.Metadata["is_test"] = true
		}

		sparseVec, err := sparse.GenerateSparseVector(ctx, chunk.Content)
		if err != nil {
			ix.logger.Warn("failed to generate sparse vector for chunk", "file", file, "error", err)
		} else {
			doc.Sparse = sparseVec
		}

		docs = append(docs, doc)
	}
	return docs
}

// chunkID derives a deterministic UUID-shaped ID from the chunk location so
// re-indexing upserts instead of duplicating.
func chunkID(file string, lineStart, lineEnd int) string {
	h := sha256.New()
	h.Write([]byte(file))
	fmt.Fprintf(h, ":%d:%d", lineStart, lineEnd)
	sum := h.Sum(nil)
	return fmt.Sprintf("%x-%x-%x-%x-%x", sum[0:4], sum[4:6], sum[6:8], sum[8:10], sum[10:16])
}

func isTestFile(path string) bool {
	base := filepath.Base(path)
	switch filepath.Ext(path) {
	case ".go":
		return strings.HasSuffix(base, "_test.go")
	case ".ts", ".js", ".tsx", ".jsx":
		for _, suffix := range []string{".test.ts", ".test.js", ".spec.ts", ".spec.js", ".test.tsx", ".spec.tsx"} {
			if strings.HasSuffix(base, suffix) {
				return true
			}
		}
		return false
	case ".py":
		return strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py")
	case ".java":
		return strings.HasSuffix(base, "Test.java") || strings.HasSuffix(base, "Tests.java")
	}
	return false
}
