package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/repogpt/internal/core/repowalk"
)

const (
	// DefaultBatchSize は1バッチあたりの処理ファイル数
	DefaultBatchSize = 10
	// DefaultBatchInterval はバッチ間の待機時間
	// レートリミッタへの瞬間的な負荷を平準化するための値
	DefaultBatchInterval = 500 * time.Millisecond
)

// Walker はリポジトリのファイル一覧を取得するインターフェース
type Walker interface {
	ListFiles(ctx context.Context, repo repowalk.Repo) ([]repowalk.File, error)
}

// Embedder はファイルの要約生成とベクトル化を行うインターフェース
type Embedder interface {
	SummarizeFile(ctx context.Context, path, content string) string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Pipeline はリポジトリの走査・要約・ベクトル化・永続化を統括する
type Pipeline struct {
	repo     Repository
	walker   Walker
	embedder Embedder

	batchSize     int
	batchInterval time.Duration
	logger        *slog.Logger

	wg sync.WaitGroup
}

type pipelineOptions struct {
	batchSize     int
	batchInterval time.Duration
	logger        *slog.Logger
}

// PipelineOption は Pipeline のオプション設定
type PipelineOption func(*pipelineOptions)

// WithBatchSize は1バッチあたりの処理ファイル数を上書きする
func WithBatchSize(n int) PipelineOption {
	return func(o *pipelineOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithBatchInterval はバッチ間の待機時間を上書きする
func WithBatchInterval(d time.Duration) PipelineOption {
	return func(o *pipelineOptions) {
		if d >= 0 {
			o.batchInterval = d
		}
	}
}

// WithPipelineLogger は Pipeline にロガーを設定する
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(o *pipelineOptions) {
		o.logger = logger
	}
}

// NewPipeline は新しいPipelineを作成する
func NewPipeline(repo Repository, walker Walker, embedder Embedder, opts ...PipelineOption) *Pipeline {
	options := pipelineOptions{
		batchSize:     DefaultBatchSize,
		batchInterval: DefaultBatchInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Pipeline{
		repo:          repo,
		walker:        walker,
		embedder:      embedder,
		batchSize:     options.batchSize,
		batchInterval: options.batchInterval,
		logger:        options.logger,
	}
}

// Start はプロジェクトのインデックス作成を開始する
// 状態を PROCESSING へ遷移させ、過去のEmbeddingを削除した後、
// バックグラウンドで処理を継続する。呼び出し元には即座に制御が戻り、
// 完了は状態カラムでのみ観測できる
func (p *Pipeline) Start(ctx context.Context, project *Project) error {
	if err := p.repo.SetProjectStatus(ctx, project.ID, StatusProcessing); err != nil {
		return fmt.Errorf("ステータスの更新に失敗: %w", err)
	}

	// 再インデックス時に古い行が検索に混入しないよう事前に削除する
	if err := p.repo.DeleteEmbeddingsByProject(ctx, project.ID); err != nil {
		return fmt.Errorf("既存Embeddingの削除に失敗: %w", err)
	}

	repo := project.RepoRef()

	// 呼び出し元のキャンセルから切り離して完走させる
	bgCtx := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(bgCtx, project.ID, repo)
	}()

	return nil
}

// Wait は進行中のバックグラウンド処理の完了を待つ
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) run(ctx context.Context, projectID uuid.UUID, repo repowalk.Repo) {
	files, err := p.walker.ListFiles(ctx, repo)
	if err != nil {
		p.logger.Error("リポジトリの走査に失敗。プロジェクトをERRORへ遷移します",
			"projectID", projectID,
			"error", err,
		)
		p.fail(ctx, projectID)
		return
	}

	p.logger.Info("インデックス作成を開始",
		"projectID", projectID,
		"files", len(files),
	)

	// バッチは入力順に直列実行し、バッチ内のみファンアウトする
	for start := 0; start < len(files); start += p.batchSize {
		end := start + p.batchSize
		if end > len(files) {
			end = len(files)
		}

		p.processBatch(ctx, projectID, files[start:end])

		if end < len(files) && p.batchInterval > 0 {
			select {
			case <-time.After(p.batchInterval):
			case <-ctx.Done():
				p.fail(ctx, projectID)
				return
			}
		}
	}

	if err := p.repo.SetProjectStatus(ctx, projectID, StatusCompleted); err != nil {
		p.logger.Error("ステータスの更新に失敗",
			"projectID", projectID,
			"error", err,
		)
		return
	}

	p.logger.Info("インデックス作成が完了", "projectID", projectID)
}

// processBatch はバッチ内のファイルを並行処理する
// 個別ファイルの失敗はバッチ全体を中断しない
func (p *Pipeline) processBatch(ctx context.Context, projectID uuid.UUID, files []repowalk.File) {
	var wg sync.WaitGroup
	for _, file := range files {
		wg.Add(1)
		go func(file repowalk.File) {
			defer wg.Done()
			if err := p.processFile(ctx, projectID, file); err != nil {
				p.logger.Warn("ファイルのインデックス作成に失敗。スキップします",
					"projectID", projectID,
					"path", file.Path,
					"error", err,
				)
			}
		}(file)
	}
	wg.Wait()
}

// processFile は1ファイルの要約・ベクトル化・永続化を行う
func (p *Pipeline) processFile(ctx context.Context, projectID uuid.UUID, file repowalk.File) error {
	// 要約の失敗は空文字列として続行する
	summary := p.embedder.SummarizeFile(ctx, file.Path, file.Content)

	vector, err := p.embedder.Embed(ctx, summary)
	if err != nil {
		return fmt.Errorf("ベクトル化に失敗: %w", err)
	}

	embedding, err := p.repo.CreateFileEmbedding(ctx, projectID, file.Path, file.Content, summary)
	if err != nil {
		return fmt.Errorf("Embeddingの保存に失敗: %w", err)
	}

	if err := p.repo.SetEmbeddingVector(ctx, embedding.ID, vector); err != nil {
		return fmt.Errorf("ベクトルの保存に失敗: %w", err)
	}

	return nil
}

func (p *Pipeline) fail(ctx context.Context, projectID uuid.UUID) {
	if err := p.repo.SetProjectStatus(ctx, projectID, StatusError); err != nil {
		p.logger.Error("ステータスの更新に失敗",
			"projectID", projectID,
			"error", err,
		)
	}
}
