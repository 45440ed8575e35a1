package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/repogpt/internal/core/qa"
)

// SearchRepository は qa.Repository を実装する PostgreSQL リポジトリ。
type SearchRepository struct {
	q Querier
}

// NewSearchRepository は新しい SearchRepository を返す。
func NewSearchRepository(q Querier) *SearchRepository {
	return &SearchRepository{q: q}
}

var _ qa.Repository = (*SearchRepository)(nil)

func (r *SearchRepository) SimilarFiles(ctx context.Context, projectID uuid.UUID, vector []float32, minSimilarity float64, limit int) ([]*qa.SimilarFile, error) {
	rows, err := r.q.Query(ctx,
		`SELECT file_path, content, summary, 1 - (embedding <=> $1) AS similarity
		 FROM source_file_embeddings
		 WHERE project_id = $2
		   AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) > $3
		 ORDER BY similarity DESC
		 LIMIT $4`,
		pgvector.NewVector(vector), UUIDToPgtype(projectID), minSimilarity, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search similar files: %w", err)
	}
	defer rows.Close()

	var results []*qa.SimilarFile
	for rows.Next() {
		var f qa.SimilarFile
		if err := rows.Scan(&f.FilePath, &f.Content, &f.Summary, &f.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan similar file: %w", err)
		}
		results = append(results, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate similar files: %w", err)
	}
	return results, nil
}
