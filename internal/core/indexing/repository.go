package indexing

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Repository はプロジェクトとファイルEmbeddingのデータアクセスを統合する
// インターフェース。テスト時のモック用に消費者側で定義
type Repository interface {
	// Project
	GetProjectByID(ctx context.Context, id uuid.UUID) (mo.Option[*Project], error)
	GetProjectByName(ctx context.Context, name string) (mo.Option[*Project], error)
	ListProjects(ctx context.Context) ([]*Project, error)
	CreateProject(ctx context.Context, name string, owner string, repoName string, url string, branch string, credential *string) (*Project, error)
	SetProjectStatus(ctx context.Context, id uuid.UUID, status Status) error
	ArchiveProject(ctx context.Context, id uuid.UUID) error

	// FileEmbedding
	CreateFileEmbedding(ctx context.Context, projectID uuid.UUID, filePath string, content string, summary string) (*FileEmbedding, error)
	SetEmbeddingVector(ctx context.Context, id uuid.UUID, vector []float32) error
	CountEmbeddingsByProject(ctx context.Context, projectID uuid.UUID) (int, error)
	DeleteEmbeddingsByProject(ctx context.Context, projectID uuid.UUID) error
}
