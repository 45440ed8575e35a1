package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/repogpt/internal/core/repowalk"
)

// stubIndexRepo はテスト用のRepository実装
type stubIndexRepo struct {
	mu sync.Mutex

	statuses       []Status
	statusErr      error
	purgeCalls     int
	embeddings     map[uuid.UUID]*FileEmbedding
	vectors        map[uuid.UUID][]float32
	createErrPaths map[string]error
}

var _ Repository = (*stubIndexRepo)(nil)

func newStubIndexRepo() *stubIndexRepo {
	return &stubIndexRepo{
		embeddings:     make(map[uuid.UUID]*FileEmbedding),
		vectors:        make(map[uuid.UUID][]float32),
		createErrPaths: make(map[string]error),
	}
}

func (r *stubIndexRepo) GetProjectByID(_ context.Context, _ uuid.UUID) (mo.Option[*Project], error) {
	return mo.None[*Project](), nil
}

func (r *stubIndexRepo) GetProjectByName(_ context.Context, _ string) (mo.Option[*Project], error) {
	return mo.None[*Project](), nil
}

func (r *stubIndexRepo) ListProjects(_ context.Context) ([]*Project, error) {
	return nil, nil
}

func (r *stubIndexRepo) CreateProject(_ context.Context, _, _, _, _, _ string, _ *string) (*Project, error) {
	return nil, errors.New("not implemented")
}

func (r *stubIndexRepo) SetProjectStatus(_ context.Context, _ uuid.UUID, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statusErr != nil {
		return r.statusErr
	}
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *stubIndexRepo) ArchiveProject(_ context.Context, _ uuid.UUID) error {
	return nil
}

func (r *stubIndexRepo) CreateFileEmbedding(_ context.Context, projectID uuid.UUID, filePath, content, summary string) (*FileEmbedding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.createErrPaths[filePath]; ok {
		return nil, err
	}
	embedding := &FileEmbedding{
		ID:        uuid.New(),
		ProjectID: projectID,
		FilePath:  filePath,
		Content:   content,
		Summary:   summary,
	}
	r.embeddings[embedding.ID] = embedding
	return embedding, nil
}

func (r *stubIndexRepo) SetEmbeddingVector(_ context.Context, id uuid.UUID, vector []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vectors[id] = vector
	return nil
}

func (r *stubIndexRepo) CountEmbeddingsByProject(_ context.Context, _ uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.embeddings), nil
}

func (r *stubIndexRepo) DeleteEmbeddingsByProject(_ context.Context, _ uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeCalls++
	r.embeddings = make(map[uuid.UUID]*FileEmbedding)
	r.vectors = make(map[uuid.UUID][]float32)
	return nil
}

func (r *stubIndexRepo) lastStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *stubIndexRepo) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var paths []string
	for _, e := range r.embeddings {
		paths = append(paths, e.FilePath)
	}
	return paths
}

// stubWalkerSource はテスト用のWalker実装
type stubWalkerSource struct {
	files []repowalk.File
	err   error
}

func (w *stubWalkerSource) ListFiles(_ context.Context, _ repowalk.Repo) ([]repowalk.File, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.files, nil
}

// stubEmbedder はテスト用のEmbedder実装
type stubEmbedder struct {
	mu sync.Mutex

	summarized []string
	embedErr   map[string]error
	onStart    func(path string)
}

func (e *stubEmbedder) SummarizeFile(_ context.Context, path, _ string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.onStart != nil {
		e.onStart(path)
	}
	e.summarized = append(e.summarized, path)
	return "summary of " + path
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.embedErr[text]; ok {
		return nil, err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func walkFiles(n int) []repowalk.File {
	files := make([]repowalk.File, n)
	for i := range files {
		files[i] = repowalk.File{
			Path:    fmt.Sprintf("file%02d.go", i),
			Content: "package main",
		}
	}
	return files
}

func TestPipeline_Start(t *testing.T) {
	project := &Project{
		ID:       uuid.New(),
		Name:     "app",
		Owner:    "acme",
		RepoName: "app",
		URL:      "https://github.com/acme/app",
		Branch:   "main",
		Status:   StatusPending,
	}

	t.Run("呼び出し時にPROCESSINGへ遷移し既存Embeddingを削除する", func(t *testing.T) {
		repo := newStubIndexRepo()
		walker := &stubWalkerSource{files: walkFiles(1)}
		embedder := &stubEmbedder{}

		pipeline := NewPipeline(repo, walker, embedder, WithBatchInterval(0))
		err := pipeline.Start(context.Background(), project)
		require.NoError(t, err)

		// Start から戻った時点で既に PROCESSING と削除が完了していること
		assert.Equal(t, 1, repo.purgeCalls)
		require.NotEmpty(t, repo.statuses)
		assert.Equal(t, StatusProcessing, repo.statuses[0])

		pipeline.Wait()
	})

	t.Run("全ファイルを処理してCOMPLETEDへ遷移する", func(t *testing.T) {
		repo := newStubIndexRepo()
		walker := &stubWalkerSource{files: walkFiles(25)}
		embedder := &stubEmbedder{}

		pipeline := NewPipeline(repo, walker, embedder, WithBatchInterval(0))
		require.NoError(t, pipeline.Start(context.Background(), project))
		pipeline.Wait()

		assert.Equal(t, StatusCompleted, repo.lastStatus())
		assert.Len(t, repo.embeddings, 25)
		// 全行にベクトルが設定されていること
		assert.Len(t, repo.vectors, 25)
	})

	t.Run("バッチは入力順に直列実行される", func(t *testing.T) {
		repo := newStubIndexRepo()
		files := walkFiles(4)
		walker := &stubWalkerSource{files: files}

		// 後続バッチのファイルが開始した時点で先行バッチが完了していること
		var violation bool
		embedder := &stubEmbedder{}
		embedder.onStart = func(path string) {
			if path == files[2].Path || path == files[3].Path {
				done := map[string]bool{}
				for _, p := range embedder.summarized {
					done[p] = true
				}
				if !done[files[0].Path] || !done[files[1].Path] {
					violation = true
				}
			}
		}

		pipeline := NewPipeline(repo, walker, embedder, WithBatchSize(2), WithBatchInterval(0))
		require.NoError(t, pipeline.Start(context.Background(), project))
		pipeline.Wait()

		assert.False(t, violation, "先行バッチの完了前に後続バッチが開始された")
		assert.Equal(t, StatusCompleted, repo.lastStatus())
	})

	t.Run("個別ファイルの失敗はバッチ全体を中断しない", func(t *testing.T) {
		repo := newStubIndexRepo()
		walker := &stubWalkerSource{files: walkFiles(3)}
		embedder := &stubEmbedder{
			embedErr: map[string]error{
				"summary of file01.go": errors.New("embed failed"),
			},
		}

		pipeline := NewPipeline(repo, walker, embedder, WithBatchInterval(0))
		require.NoError(t, pipeline.Start(context.Background(), project))
		pipeline.Wait()

		assert.Equal(t, StatusCompleted, repo.lastStatus())
		paths := repo.paths()
		assert.Len(t, paths, 2)
		assert.NotContains(t, paths, "file01.go")
	})

	t.Run("リポジトリの走査失敗はERRORへ遷移する", func(t *testing.T) {
		repo := newStubIndexRepo()
		walker := &stubWalkerSource{err: errors.New("listing failed")}
		embedder := &stubEmbedder{}

		pipeline := NewPipeline(repo, walker, embedder, WithBatchInterval(0))
		require.NoError(t, pipeline.Start(context.Background(), project))
		pipeline.Wait()

		assert.Equal(t, StatusError, repo.lastStatus())
		assert.Empty(t, repo.embeddings)
	})

	t.Run("ステータス更新の失敗はStartがエラーを返す", func(t *testing.T) {
		repo := newStubIndexRepo()
		repo.statusErr = errors.New("db down")
		walker := &stubWalkerSource{files: walkFiles(1)}
		embedder := &stubEmbedder{}

		pipeline := NewPipeline(repo, walker, embedder, WithBatchInterval(0))
		err := pipeline.Start(context.Background(), project)
		require.Error(t, err)
	})
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusError, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusError, StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s→%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}
