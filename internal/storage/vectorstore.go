// Package storage holds the persistence layer: the Qdrant-backed vector
// store for repository context and the Postgres store for review records.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/schema"
	"github.com/sevigo/goframe/vectorstores"
	"github.com/sevigo/goframe/vectorstores/qdrant"
)

// VectorStore is the contract the indexing and retrieval pipeline needs from
// a vector database.
type VectorStore interface {
	AddDocuments(ctx context.Context, collectionName string, docs []schema.Document) error
	SimilaritySearch(ctx context.Context, collectionName, query string, numDocs int) ([]schema.Document, error)
	DeleteCollection(ctx context.Context, collectionName string) error
}

type qdrantVectorStore struct {
	qdrantHost string
	embedder   embeddings.Embedder
	logger     *slog.Logger
}

// NewQdrantVectorStore creates a Qdrant-backed vector store.
func NewQdrantVectorStore(qdrantHost string, embedder embeddings.Embedder, logger *slog.Logger) VectorStore {
	return &qdrantVectorStore{
		qdrantHost: qdrantHost,
		embedder:   embedder,
		logger:     logger,
	}
}

// CollectionNameForRepo derives a stable Qdrant collection name from a repo
// identifier and the embedder model. Reindexing with a different embedder
// must land in a different collection because vector dimensions differ.
func CollectionNameForRepo(repoFullName, embedderModel string) string {
	sum := sha256.Sum256([]byte(repoFullName + "|" + embedderModel))
	sanitized := strings.NewReplacer("/", "_", ".", "_", ":", "_").Replace(strings.ToLower(repoFullName))
	return fmt.Sprintf("repo_%s_%s", sanitized, hex.EncodeToString(sum[:6]))
}

func (q *qdrantVectorStore) getStoreForCollection(collectionName string) (vectorstores.VectorStore, error) {
	if strings.TrimSpace(collectionName) == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}
	return qdrant.New(
		qdrant.WithHost(q.qdrantHost),
		qdrant.WithEmbedder(q.embedder),
		qdrant.WithCollectionName(collectionName),
		qdrant.WithLogger(q.logger),
	)
}

func (q *qdrantVectorStore) AddDocuments(ctx context.Context, collectionName string, docs []schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	store, err := q.getStoreForCollection(collectionName)
	if err != nil {
		return fmt.Errorf("failed to get qdrant store for collection %s: %w", collectionName, err)
	}

	if _, err := store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to add documents to qdrant collection %s: %w", collectionName, err)
	}
	return nil
}

func (q *qdrantVectorStore) SimilaritySearch(ctx context.Context, collectionName, query string, numDocs int) ([]schema.Document, error) {
	store, err := q.getStoreForCollection(collectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get qdrant store for collection %s: %w", collectionName, err)
	}

	return store.SimilaritySearch(ctx, query, numDocs)
}

func (q *qdrantVectorStore) DeleteCollection(ctx context.Context, collectionName string) error {
	store, err := q.getStoreForCollection(collectionName)
	if err != nil {
		return fmt.Errorf("failed to get qdrant store for collection %s: %w", collectionName, err)
	}

	return store.DeleteCollection(ctx, collectionName)
}
