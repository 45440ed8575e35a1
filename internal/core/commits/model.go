package commits

import (
	"time"

	"github.com/google/uuid"
)

// Commit はプロジェクトに記録されたコミットとその要約を表す
type Commit struct {
	ID              uuid.UUID `json:"id"`
	ProjectID       uuid.UUID `json:"projectID"`
	Hash            string    `json:"hash"`
	Message         string    `json:"message"`
	AuthorName      string    `json:"authorName"`
	AuthorAvatarURL string    `json:"authorAvatarURL"`
	AuthoredAt      time.Time `json:"authoredAt"`
	Summary         string    `json:"summary"`
	CreatedAt       time.Time `json:"createdAt"`
}

// CommitInfo はホストAPIから取得したコミットのメタデータを表す
type CommitInfo struct {
	Hash            string
	Message         string
	AuthorName      string
	AuthorAvatarURL string
	AuthoredAt      time.Time
}

// NewCommit はホストAPIのメタデータと要約から永続化前のCommitを作成する
type NewCommit struct {
	Hash            string
	Message         string
	AuthorName      string
	AuthorAvatarURL string
	AuthoredAt      time.Time
	Summary         string
}
