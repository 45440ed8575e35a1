package commits

import (
	"context"

	"github.com/google/uuid"
)

// Repository はコミットログのデータアクセスを提供するインターフェース
// テスト時のモック用に消費者側で定義
type Repository interface {
	ListCommitsByProject(ctx context.Context, projectID uuid.UUID) ([]*Commit, error)
	ListHashesByProject(ctx context.Context, projectID uuid.UUID) ([]string, error)
	BatchCreateCommits(ctx context.Context, projectID uuid.UUID, commits []*NewCommit) error
}
