package commits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/repogpt/internal/core/ai"
	"github.com/jinford/repogpt/internal/core/indexing"
	"github.com/jinford/repogpt/internal/core/repowalk"
)

// stubCommitRepo はテスト用のRepository実装
type stubCommitRepo struct {
	mu sync.Mutex

	commits      []*Commit
	batchCalls   int
	batchCreated [][]*NewCommit
}

var _ Repository = (*stubCommitRepo)(nil)

func (r *stubCommitRepo) ListCommitsByProject(_ context.Context, projectID uuid.UUID) ([]*Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits, nil
}

func (r *stubCommitRepo) ListHashesByProject(_ context.Context, _ uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var hashes []string
	for _, c := range r.commits {
		hashes = append(hashes, c.Hash)
	}
	return hashes, nil
}

func (r *stubCommitRepo) BatchCreateCommits(_ context.Context, projectID uuid.UUID, newCommits []*NewCommit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchCalls++
	r.batchCreated = append(r.batchCreated, newCommits)
	for _, nc := range newCommits {
		r.commits = append(r.commits, &Commit{
			ID:              uuid.New(),
			ProjectID:       projectID,
			Hash:            nc.Hash,
			Message:         nc.Message,
			AuthorName:      nc.AuthorName,
			AuthorAvatarURL: nc.AuthorAvatarURL,
			AuthoredAt:      nc.AuthoredAt,
			Summary:         nc.Summary,
		})
	}
	return nil
}

func (r *stubCommitRepo) summaryByHash(hash string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.commits {
		if c.Hash == hash {
			return c.Summary
		}
	}
	return ""
}

// stubProjectStore はテスト用のProjectStore実装
type stubProjectStore struct {
	project *indexing.Project
}

func (s *stubProjectStore) GetProjectByID(_ context.Context, id uuid.UUID) (mo.Option[*indexing.Project], error) {
	if s.project == nil || s.project.ID != id {
		return mo.None[*indexing.Project](), nil
	}
	return mo.Some(s.project), nil
}

func (s *stubProjectStore) ListProjects(_ context.Context) ([]*indexing.Project, error) {
	if s.project == nil {
		return nil, nil
	}
	return []*indexing.Project{s.project}, nil
}

// stubHostAPI はテスト用のHostAPI実装
type stubHostAPI struct {
	mu sync.Mutex

	infos     []*CommitInfo
	diffs     map[string]string
	diffErrs  map[string]error
	listCalls int
}

func (h *stubHostAPI) ListRecentCommits(_ context.Context, _ repowalk.Repo, limit int) ([]*CommitInfo, error) {
	h.mu.Lock()
	h.listCalls++
	h.mu.Unlock()

	infos := h.infos
	if len(infos) > limit {
		infos = infos[:limit]
	}
	out := make([]*CommitInfo, len(infos))
	copy(out, infos)
	return out, nil
}

func (h *stubHostAPI) GetCommitDiff(_ context.Context, _ repowalk.Repo, hash string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err, ok := h.diffErrs[hash]; ok {
		return "", err
	}
	if diff, ok := h.diffs[hash]; ok {
		return diff, nil
	}
	return "+minor change\n", nil
}

// stubDiffSummarizer はテスト用のDiffSummarizer実装
type stubDiffSummarizer struct {
	mu sync.Mutex

	calls      int
	lastDiffs  map[string]string
	returnsNil bool
}

func (s *stubDiffSummarizer) SummarizeCommitDiff(_ context.Context, diff, commitMessage string) ai.CommitSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.lastDiffs == nil {
		s.lastDiffs = make(map[string]string)
	}
	s.lastDiffs[commitMessage] = diff
	if s.returnsNil {
		return ai.CommitSummary{}
	}
	return ai.CommitSummary{Text: "summary of " + commitMessage}
}

func (s *stubDiffSummarizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testProject() *indexing.Project {
	return &indexing.Project{
		ID:       uuid.New(),
		Name:     "app",
		Owner:    "acme",
		RepoName: "app",
		URL:      "https://github.com/acme/app",
		Branch:   "main",
		Status:   indexing.StatusCompleted,
	}
}

func commitInfos(n int, base time.Time) []*CommitInfo {
	infos := make([]*CommitInfo, n)
	for i := range infos {
		infos[i] = &CommitInfo{
			Hash:       fmt.Sprintf("hash%02d", i),
			Message:    fmt.Sprintf("fix: change %02d", i),
			AuthorName: "dev",
			AuthoredAt: base.Add(-time.Duration(i) * time.Hour),
		}
	}
	return infos
}

func TestService_Poll(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("未処理コミットを要約して一括登録する", func(t *testing.T) {
		project := testProject()
		repo := &stubCommitRepo{}
		host := &stubHostAPI{infos: commitInfos(3, base)}
		summarizer := &stubDiffSummarizer{}

		service := NewService(repo, &stubProjectStore{project: project}, host, summarizer)
		inserted, err := service.Poll(context.Background(), project.ID)
		require.NoError(t, err)

		assert.Equal(t, 3, inserted)
		assert.Equal(t, 3, summarizer.callCount())
		// 登録は1回のバッチ書き込みで行われること
		assert.Equal(t, 1, repo.batchCalls)
	})

	t.Run("2回目のポーリングは記録済みコミットを再登録しない", func(t *testing.T) {
		project := testProject()
		repo := &stubCommitRepo{}
		host := &stubHostAPI{infos: commitInfos(3, base)}
		summarizer := &stubDiffSummarizer{}

		service := NewService(repo, &stubProjectStore{project: project}, host, summarizer)

		inserted, err := service.Poll(context.Background(), project.ID)
		require.NoError(t, err)
		require.Equal(t, 3, inserted)

		inserted, err = service.Poll(context.Background(), project.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, inserted)
		assert.Equal(t, 3, summarizer.callCount())
	})

	t.Run("新しいコミットだけが追加で登録される", func(t *testing.T) {
		project := testProject()
		repo := &stubCommitRepo{}
		host := &stubHostAPI{infos: commitInfos(3, base)}
		summarizer := &stubDiffSummarizer{}

		service := NewService(repo, &stubProjectStore{project: project}, host, summarizer)
		_, err := service.Poll(context.Background(), project.ID)
		require.NoError(t, err)

		// 新しいコミットが1件先頭へ追加される
		newest := &CommitInfo{
			Hash:       "hashNew",
			Message:    "feat: new feature",
			AuthorName: "dev",
			AuthoredAt: base.Add(time.Hour),
		}
		host.infos = append([]*CommitInfo{newest}, host.infos...)

		inserted, err := service.Poll(context.Background(), project.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, inserted)
	})

	t.Run("取得件数は上限で打ち切られ著者日時の降順となる", func(t *testing.T) {
		project := testProject()
		repo := &stubCommitRepo{}
		// 昇順で与えても降順に並べ替えて上位のみ処理する
		infos := commitInfos(5, base)
		for i, j := 0, len(infos)-1; i < j; i, j = i+1, j-1 {
			infos[i], infos[j] = infos[j], infos[i]
		}
		host := &stubHostAPI{infos: infos}
		summarizer := &stubDiffSummarizer{}

		service := NewService(repo, &stubProjectStore{project: project}, host, summarizer, WithPollLimit(3))
		inserted, err := service.Poll(context.Background(), project.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, inserted)
	})

	t.Run("初期コミットはAI呼び出しを省略して定型文を登録する", func(t *testing.T) {
		project := testProject()
		repo := &stubCommitRepo{}
		host := &stubHostAPI{infos: []*CommitInfo{
			{Hash: "hash00", Message: "initial commit", AuthoredAt: base},
		}}
		summarizer := &stubDiffSummarizer{}

		service := NewService(repo, &stubProjectStore{project: project}, host, summarizer)
		_, err := service.Poll(context.Background(), project.ID)
		require.NoError(t, err)

		assert.Equal(t, BoilerplateSummary, repo.summaryByHash("hash00"))
		assert.Equal(t, 0, summarizer.callCount())
	})

	t.Run("巨大diffはAI呼び出しを省略して定型文を登録する", func(t *testing.T) {
		project := testProject()
		repo := &stubCommitRepo{}
		host := &stubHostAPI{
			infos: []*CommitInfo{
				{Hash: "hash00", Message: "feat: vendor everything", AuthoredAt: base},
			},
			diffs: map[string]string{
				"hash00": strings.Repeat("+vendored line\n", 4001),
			},
		}
		summarizer := &stubDiffSummarizer{}

		service := NewService(repo, &stubProjectStore{project: project}, host, summarizer)
		_, err := service.Poll(context.Background(), project.ID)
		require.NoError(t, err)

		assert.Equal(t, BoilerplateSummary, repo.summaryByHash("hash00"))
		assert.Equal(t, 0, summarizer.callCount())
	})

	t.Run("バイナリ変更のみのdiffは定型文を登録する", func(t *testing.T) {
		project := testProject()
		repo := &stubCommitRepo{}
		host := &stubHostAPI{
			infos: []*CommitInfo{
				{Hash: "hash00", Message: "add logo", AuthoredAt: base},
			},
			diffs: map[string]string{
				"hash00": "diff --git a/logo.png b/logo.png\nBinary files /dev/null and b/logo.png differ\n",
			},
		}
		summarizer := &stubDiffSummarizer{}

		service := NewService(repo, &stubProjectStore{project: project}, host, summarizer)
		_, err := service.Poll(context.Background(), project.ID)
		require.NoError(t, err)

		assert.Equal(t, BinarySummary, repo.summaryByHash("hash00"))
		assert.Equal(t, 0, summarizer.callCount())
	})

	t.Run("diffは正規化してからAIへ渡される", func(t *testing.T) {
		project := testProject()
		repo := &stubCommitRepo{}
		host := &stubHostAPI{
			infos: []*CommitInfo{
				{Hash: "hash00", Message: "fix: escape", AuthoredAt: base},
			},
			diffs: map[string]string{
				"hash00": "+use `foo` here\r\n",
			},
		}
		summarizer := &stubDiffSummarizer{}

		service := NewService(repo, &stubProjectStore{project: project}, host, summarizer)
		_, err := service.Poll(context.Background(), project.ID)
		require.NoError(t, err)

		assert.Equal(t, "+use \\`foo\\` here", summarizer.lastDiffs["fix: escape"])
	})

	t.Run("diff取得の失敗は他のコミットの要約を妨げない", func(t *testing.T) {
		project := testProject()
		repo := &stubCommitRepo{}
		host := &stubHostAPI{
			infos: commitInfos(3, base),
			diffErrs: map[string]error{
				"hash01": errors.New("fetch failed"),
			},
		}
		summarizer := &stubDiffSummarizer{}

		service := NewService(repo, &stubProjectStore{project: project}, host, summarizer)
		inserted, err := service.Poll(context.Background(), project.ID)
		require.NoError(t, err)

		// 失敗したコミットも縮退した要約付きで登録される
		assert.Equal(t, 3, inserted)
		assert.Equal(t, ai.DegradedCommitSummaryText, repo.summaryByHash("hash01"))
		assert.Equal(t, "summary of fix: change 00", repo.summaryByHash("hash00"))
	})

	t.Run("空の要約は代替テキストへ置き換えられる", func(t *testing.T) {
		project := testProject()
		repo := &stubCommitRepo{}
		host := &stubHostAPI{infos: commitInfos(1, base)}
		summarizer := &stubDiffSummarizer{returnsNil: true}

		service := NewService(repo, &stubProjectStore{project: project}, host, summarizer)
		_, err := service.Poll(context.Background(), project.ID)
		require.NoError(t, err)

		assert.Equal(t, EmptySummaryFallback, repo.summaryByHash("hash00"))
	})

	t.Run("存在しないプロジェクトはエラーを返す", func(t *testing.T) {
		repo := &stubCommitRepo{}
		host := &stubHostAPI{}
		summarizer := &stubDiffSummarizer{}

		service := NewService(repo, &stubProjectStore{}, host, summarizer)
		_, err := service.Poll(context.Background(), uuid.New())
		require.Error(t, err)
	})
}

func TestService_List(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("一覧取得はホストAPIに問い合わせない", func(t *testing.T) {
		project := testProject()
		repo := &stubCommitRepo{}
		host := &stubHostAPI{infos: commitInfos(3, base)}
		summarizer := &stubDiffSummarizer{}

		service := NewService(repo, &stubProjectStore{project: project}, host, summarizer)

		inserted, err := service.Poll(context.Background(), project.ID)
		require.NoError(t, err)
		require.Equal(t, 3, inserted)

		pollCalls := host.listCalls
		listed, err := service.List(context.Background(), project.ID)
		require.NoError(t, err)

		assert.Len(t, listed, 3)
		assert.Equal(t, pollCalls, host.listCalls)
		assert.Equal(t, 3, summarizer.callCount())
	})
}

func TestRefresher_Run(t *testing.T) {
	t.Run("起動直後に1回更新しキャンセルで停止する", func(t *testing.T) {
		project := testProject()
		repo := &stubCommitRepo{}
		host := &stubHostAPI{infos: commitInfos(2, time.Now())}
		summarizer := &stubDiffSummarizer{}
		store := &stubProjectStore{project: project}

		service := NewService(repo, store, host, summarizer)
		refresher := NewRefresher(service, store, WithRefreshInterval(time.Hour))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- refresher.Run(ctx)
		}()

		// 初回更新が反映されるまで待つ
		require.Eventually(t, func() bool {
			commits, err := service.List(context.Background(), project.ID)
			return err == nil && len(commits) == 2
		}, time.Second, 10*time.Millisecond)

		cancel()
		err := <-done
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("アーカイブ済みプロジェクトは更新しない", func(t *testing.T) {
		project := testProject()
		archivedAt := time.Now()
		project.ArchivedAt = &archivedAt

		repo := &stubCommitRepo{}
		host := &stubHostAPI{infos: commitInfos(2, time.Now())}
		summarizer := &stubDiffSummarizer{}
		store := &stubProjectStore{project: project}

		service := NewService(repo, store, host, summarizer)
		refresher := NewRefresher(service, store, WithRefreshInterval(time.Hour))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_ = refresher.Run(ctx)

		commits, err := service.List(context.Background(), project.ID)
		require.NoError(t, err)
		assert.Empty(t, commits)
	})
}
