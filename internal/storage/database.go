package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	// postgres driver
	_ "github.com/lib/pq"

	"github.com/diffscope/diffscope/internal/core"
)

// ErrNoReview is returned when a PR has no stored review yet.
var ErrNoReview = errors.New("no review found")

// Store persists review records.
type Store interface {
	SaveReview(ctx context.Context, review *core.Review) error
	GetLatestReviewForPR(ctx context.Context, repoFullName string, prNumber int) (*core.Review, error)
}

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed Store.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

// SaveReview inserts a review record with its per-file JSON payload.
func (s *postgresStore) SaveReview(ctx context.Context, review *core.Review) error {
	query := `INSERT INTO reviews (repo_full_name, pr_number, head_sha, review_json, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, query,
		review.RepoFullName, review.PRNumber, review.HeadSHA, review.ReviewJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save review for %s#%d: %w", review.RepoFullName, review.PRNumber, err)
	}
	return nil
}

// GetLatestReviewForPR returns the most recent review for a pull request.
func (s *postgresStore) GetLatestReviewForPR(ctx context.Context, repoFullName string, prNumber int) (*core.Review, error) {
	query := `
		SELECT id, repo_full_name, pr_number, head_sha, review_json, created_at
		FROM reviews
		WHERE repo_full_name = $1 AND pr_number = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var r core.Review
	err := s.db.GetContext(ctx, &r, query, repoFullName, prNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w for PR %s#%d", ErrNoReview, repoFullName, prNumber)
		}
		return nil, fmt.Errorf("failed to load review for %s#%d: %w", repoFullName, prNumber, err)
	}
	return &r, nil
}
