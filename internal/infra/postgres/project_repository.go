package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/jinford/repogpt/internal/core/indexing"
)

// ProjectRepository は indexing.Repository インターフェースを実装する PostgreSQL リポジトリです
type ProjectRepository struct {
	q Querier
}

// NewProjectRepository は新しい ProjectRepository を作成します
func NewProjectRepository(q Querier) *ProjectRepository {
	return &ProjectRepository{q: q}
}

// コンパイル時の型チェック
var _ indexing.Repository = (*ProjectRepository)(nil)

const projectColumns = `id, name, owner, repo_name, url, branch, credential, status, created_at, updated_at, archived_at`

func scanProject(row pgx.Row) (*indexing.Project, error) {
	var (
		id         pgtype.UUID
		p          indexing.Project
		credential pgtype.Text
		status     string
		createdAt  pgtype.Timestamp
		updatedAt  pgtype.Timestamp
		archivedAt pgtype.Timestamp
	)
	if err := row.Scan(&id, &p.Name, &p.Owner, &p.RepoName, &p.URL, &p.Branch, &credential, &status, &createdAt, &updatedAt, &archivedAt); err != nil {
		return nil, err
	}
	p.ID = PgtypeToUUID(id)
	p.Credential = PgtextToStringPtr(credential)
	p.Status = indexing.Status(status)
	p.CreatedAt = PgtypeToTime(createdAt)
	p.UpdatedAt = PgtypeToTime(updatedAt)
	p.ArchivedAt = PgtypeToTimePtr(archivedAt)
	return &p, nil
}

// === Project ===

func (r *ProjectRepository) GetProjectByID(ctx context.Context, id uuid.UUID) (mo.Option[*indexing.Project], error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`,
		UUIDToPgtype(id))

	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*indexing.Project](), nil
		}
		return mo.None[*indexing.Project](), fmt.Errorf("failed to get project: %w", err)
	}
	return mo.Some(project), nil
}

func (r *ProjectRepository) GetProjectByName(ctx context.Context, name string) (mo.Option[*indexing.Project], error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE name = $1`,
		name)

	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*indexing.Project](), nil
		}
		return mo.None[*indexing.Project](), fmt.Errorf("failed to get project by name: %w", err)
	}
	return mo.Some(project), nil
}

func (r *ProjectRepository) ListProjects(ctx context.Context) ([]*indexing.Project, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var result []*indexing.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		result = append(result, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return result, nil
}

func (r *ProjectRepository) CreateProject(ctx context.Context, name string, owner string, repoName string, url string, branch string, credential *string) (*indexing.Project, error) {
	row := r.q.QueryRow(ctx,
		`INSERT INTO projects (name, owner, repo_name, url, branch, credential, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+projectColumns,
		name, owner, repoName, url, branch, StringPtrToPgtext(credential), string(indexing.StatusPending))

	project, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

func (r *ProjectRepository) SetProjectStatus(ctx context.Context, id uuid.UUID, status indexing.Status) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE projects SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), UUIDToPgtype(id))
	if err != nil {
		return fmt.Errorf("failed to set project status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

func (r *ProjectRepository) ArchiveProject(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE projects SET archived_at = now(), updated_at = now() WHERE id = $1 AND archived_at IS NULL`,
		UUIDToPgtype(id))
	if err != nil {
		return fmt.Errorf("failed to archive project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project not found or already archived: %s", id)
	}
	return nil
}

// === FileEmbedding ===

func (r *ProjectRepository) CreateFileEmbedding(ctx context.Context, projectID uuid.UUID, filePath string, content string, summary string) (*indexing.FileEmbedding, error) {
	var (
		id        pgtype.UUID
		createdAt pgtype.Timestamp
	)
	err := r.q.QueryRow(ctx,
		`INSERT INTO source_file_embeddings (project_id, file_path, content, summary)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		UUIDToPgtype(projectID), filePath, content, summary).Scan(&id, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create file embedding: %w", err)
	}

	return &indexing.FileEmbedding{
		ID:        PgtypeToUUID(id),
		ProjectID: projectID,
		FilePath:  filePath,
		Content:   content,
		Summary:   summary,
		CreatedAt: PgtypeToTime(createdAt),
	}, nil
}

func (r *ProjectRepository) SetEmbeddingVector(ctx context.Context, id uuid.UUID, vector []float32) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE source_file_embeddings SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(vector), UUIDToPgtype(id))
	if err != nil {
		return fmt.Errorf("failed to set embedding vector: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("file embedding not found: %s", id)
	}
	return nil
}

func (r *ProjectRepository) CountEmbeddingsByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int64
	err := r.q.QueryRow(ctx,
		`SELECT count(*) FROM source_file_embeddings WHERE project_id = $1`,
		UUIDToPgtype(projectID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return int(count), nil
}

func (r *ProjectRepository) DeleteEmbeddingsByProject(ctx context.Context, projectID uuid.UUID) error {
	_, err := r.q.Exec(ctx,
		`DELETE FROM source_file_embeddings WHERE project_id = $1`,
		UUIDToPgtype(projectID))
	if err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return nil
}
