package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jinford/repogpt/internal/core/commits"
)

// CommitRepository は commits.Repository インターフェースを実装する PostgreSQL リポジトリです
type CommitRepository struct {
	q Querier
}

// NewCommitRepository は新しい CommitRepository を作成します
func NewCommitRepository(q Querier) *CommitRepository {
	return &CommitRepository{q: q}
}

// コンパイル時の型チェック
var _ commits.Repository = (*CommitRepository)(nil)

func (r *CommitRepository) ListCommitsByProject(ctx context.Context, projectID uuid.UUID) ([]*commits.Commit, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, project_id, commit_hash, commit_message, commit_author_name, commit_author_avatar, commit_date, summary, created_at
		 FROM commit_logs
		 WHERE project_id = $1
		 ORDER BY commit_date DESC`,
		UUIDToPgtype(projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}
	defer rows.Close()

	var result []*commits.Commit
	for rows.Next() {
		var (
			id         pgtype.UUID
			pid        pgtype.UUID
			c          commits.Commit
			authoredAt pgtype.Timestamp
			createdAt  pgtype.Timestamp
		)
		if err := rows.Scan(&id, &pid, &c.Hash, &c.Message, &c.AuthorName, &c.AuthorAvatarURL, &authoredAt, &c.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		c.ID = PgtypeToUUID(id)
		c.ProjectID = PgtypeToUUID(pid)
		c.AuthoredAt = PgtypeToTime(authoredAt)
		c.CreatedAt = PgtypeToTime(createdAt)
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}
	return result, nil
}

func (r *CommitRepository) ListHashesByProject(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	rows, err := r.q.Query(ctx,
		`SELECT commit_hash FROM commit_logs WHERE project_id = $1`,
		UUIDToPgtype(projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to list commit hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("failed to scan commit hash: %w", err)
		}
		hashes = append(hashes, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commit hashes: %w", err)
	}
	return hashes, nil
}

// BatchCreateCommits は複数コミットを単一バッチで挿入する。
// 同一ハッシュが既に存在する場合は行を変更しない
func (r *CommitRepository) BatchCreateCommits(ctx context.Context, projectID uuid.UUID, newCommits []*commits.NewCommit) error {
	if len(newCommits) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range newCommits {
		batch.Queue(
			`INSERT INTO commit_logs (project_id, commit_hash, commit_message, commit_author_name, commit_author_avatar, commit_date, summary)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (project_id, commit_hash) DO NOTHING`,
			UUIDToPgtype(projectID), c.Hash, c.Message, c.AuthorName, c.AuthorAvatarURL, TimeToPgtype(c.AuthoredAt), c.Summary)
	}

	results := r.q.SendBatch(ctx, batch)
	defer results.Close()

	for range newCommits {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to batch insert commits: %w", err)
		}
	}
	return nil
}
