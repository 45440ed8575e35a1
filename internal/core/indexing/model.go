package indexing

import (
	"time"

	"github.com/google/uuid"

	"github.com/jinford/repogpt/internal/core/repowalk"
)

// Status はプロジェクトのインデックス作成状態を表す
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
)

// IsTerminal は状態が終端状態かどうかを返す
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransitionTo は1回のインデックス実行内で状態遷移が許可されるか
// どうかを返す。遷移は PENDING → PROCESSING → {COMPLETED, ERROR} の
// 一方向のみ。再インデックスは新しい実行として PROCESSING から始まる
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusError
	default:
		return false
	}
}

// Project はインデックス対象のリポジトリを表す
type Project struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Owner      string     `json:"owner"`
	RepoName   string     `json:"repoName"`
	URL        string     `json:"url"`
	Branch     string     `json:"branch"`
	Credential *string    `json:"-"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

// RepoRef はウォーカーやホストAPIへ渡すリポジトリ参照を構築する
func (p *Project) RepoRef() repowalk.Repo {
	credential := ""
	if p.Credential != nil {
		credential = *p.Credential
	}
	return repowalk.Repo{
		Owner:      p.Owner,
		Name:       p.RepoName,
		URL:        p.URL,
		Branch:     p.Branch,
		Credential: credential,
	}
}

// FileEmbedding はインデックス済みファイルの要約とベクトルを表す
type FileEmbedding struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"projectID"`
	FilePath  string    `json:"filePath"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary"`
	Vector    []float32 `json:"vector,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
