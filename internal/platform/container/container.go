package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/repogpt/internal/core/ai"
	"github.com/jinford/repogpt/internal/core/commits"
	"github.com/jinford/repogpt/internal/core/indexing"
	"github.com/jinford/repogpt/internal/core/qa"
	"github.com/jinford/repogpt/internal/core/ratelimit"
	"github.com/jinford/repogpt/internal/core/repowalk"
	"github.com/jinford/repogpt/internal/infra/gemini"
	"github.com/jinford/repogpt/internal/infra/git"
	"github.com/jinford/repogpt/internal/infra/github"
	"github.com/jinford/repogpt/internal/infra/openai"
	"github.com/jinford/repogpt/internal/infra/postgres"
	"github.com/jinford/repogpt/internal/platform/database"
	"github.com/jinford/repogpt/pkg/config"
)

// 外部AI APIのレート制限。能力ごとに独立したバケットを共有する
const (
	generationCapacity        = 50
	generationRefillPerMinute = 50
	embeddingCapacity         = 100
	embeddingRefillPerMinute  = 100
)

// defaultLocalUserID はCLI利用時の固定ローカルユーザーID
const defaultLocalUserID = "6a9f11d4-3c70-4f5a-9a46-3a1f0f1d8a21"

// ServiceContainer はアプリケーションの依存関係を保持する。
type ServiceContainer struct {
	AI        *ai.Service
	Walker    *repowalk.Walker
	Pipeline  *indexing.Pipeline
	Commits   *commits.Service
	Refresher *commits.Refresher
	QA        *qa.Service

	Projects indexing.Repository
	Ledger   *postgres.LedgerRepository
	UserID   uuid.UUID

	logger *slog.Logger
	pool   *pgxpool.Pool
}

type containerOptions struct {
	logger     *slog.Logger
	generator  ai.Generator
	fileSource repowalk.FileSource
	hostAPI    commits.HostAPI
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerGenerator はAI Generatorを差し替える
func WithContainerGenerator(gen ai.Generator) ContainerOption {
	return func(opts *containerOptions) {
		opts.generator = gen
	}
}

// WithContainerFileSource はリポジトリのファイル取得元を差し替える
func WithContainerFileSource(source repowalk.FileSource) ContainerOption {
	return func(opts *containerOptions) {
		opts.fileSource = source
	}
}

// WithContainerHostAPI はコミット取得用のホストAPIを差し替える
func WithContainerHostAPI(host commits.HostAPI) ContainerOption {
	return func(opts *containerOptions) {
		opts.hostAPI = host
	}
}

// NewContainer は設定からコンテナを生成する。
// スキーマ移行もここで適用する
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	pool, err := database.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}

	if err := postgres.ApplyMigrations(ctx, pool, cfg.AI.EmbeddingDimension); err != nil {
		pool.Close()
		return nil, fmt.Errorf("スキーマ移行に失敗しました: %w", err)
	}

	c, err := NewContainerWithPool(ctx, cfg, pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

// NewContainerWithPool は既存のコネクションプールを受け取りコンテナを生成する。
func NewContainerWithPool(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// Generator（Gemini / OpenAI）
	generator := options.generator
	if generator == nil {
		var err error
		generator, err = newGenerator(ctx, cfg.AI)
		if err != nil {
			return nil, err
		}
	}

	// レートリミッターは能力ごとにプロセス全体で共有する
	genLimiter := ratelimit.NewBucket(generationCapacity, generationRefillPerMinute)
	embedLimiter := ratelimit.NewBucket(embeddingCapacity, embeddingRefillPerMinute)
	aiService := ai.NewService(generator, genLimiter, embedLimiter, ai.WithLogger(options.logger))

	// FileSource / HostAPI
	githubClient := github.NewClient(cfg.GitHub.Token)
	fileSource := options.fileSource
	if fileSource == nil {
		if cfg.Indexing.SourceProvider == "git" {
			fileSource = git.NewSource(cfg.Git.CloneDir, git.WithSSHKey(cfg.Git.SSHKeyPath, cfg.Git.SSHPassword))
		} else {
			fileSource = githubClient
		}
	}
	hostAPI := options.hostAPI
	if hostAPI == nil {
		hostAPI = githubClient
	}

	// Repository (PostgreSQL)
	projectRepo := postgres.NewProjectRepository(pool)
	commitRepo := postgres.NewCommitRepository(pool)
	searchRepo := postgres.NewSearchRepository(pool)
	ledger := postgres.NewLedgerRepository(pool)

	// Walker
	walker := repowalk.NewWalker(
		fileSource,
		repowalk.WithFetchConcurrency(cfg.Indexing.FetchConcurrency),
		repowalk.WithWalkerLogger(options.logger),
	)

	// IndexingPipeline
	pipeline := indexing.NewPipeline(
		projectRepo,
		walker,
		aiService,
		indexing.WithBatchSize(cfg.Indexing.BatchSize),
		indexing.WithBatchInterval(cfg.Indexing.BatchInterval),
		indexing.WithPipelineLogger(options.logger),
	)

	// CommitSummarizer
	commitService := commits.NewService(
		commitRepo,
		projectRepo,
		hostAPI,
		aiService,
		commits.WithPollLimit(cfg.Commits.PollLimit),
		commits.WithLogger(options.logger),
	)
	refresher := commits.NewRefresher(
		commitService,
		projectRepo,
		commits.WithRefreshInterval(cfg.Commits.RefreshInterval),
		commits.WithRefresherLogger(options.logger),
	)

	// RetrievalQA
	qaService := qa.NewService(searchRepo, aiService, ledger, qa.WithLogger(options.logger))

	// ローカルユーザー
	userID, err := resolveUserID(cfg.User.ID)
	if err != nil {
		return nil, err
	}
	if err := ledger.EnsureUser(ctx, userID, cfg.User.InitialCredits); err != nil {
		return nil, fmt.Errorf("ユーザー初期化に失敗しました: %w", err)
	}

	return &ServiceContainer{
		AI:        aiService,
		Walker:    walker,
		Pipeline:  pipeline,
		Commits:   commitService,
		Refresher: refresher,
		QA:        qaService,
		Projects:  projectRepo,
		Ledger:    ledger,
		UserID:    userID,
		logger:    options.logger,
		pool:      pool,
	}, nil
}

// newGenerator は設定に応じてAIプロバイダを初期化する
func newGenerator(ctx context.Context, cfg config.AIConfig) (ai.Generator, error) {
	switch cfg.Provider {
	case "openai":
		var opts []openai.GeneratorOption
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.EmbeddingModel != "" {
			opts = append(opts, openai.WithEmbeddingModel(cfg.EmbeddingModel))
		}
		if cfg.EmbeddingDimension > 0 {
			opts = append(opts, openai.WithEmbeddingDimension(cfg.EmbeddingDimension))
		}
		gen, err := openai.NewGenerator(cfg.OpenAIAPIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("OpenAIクライアント初期化に失敗しました: %w", err)
		}
		return gen, nil
	case "gemini", "":
		var opts []gemini.GeneratorOption
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		if cfg.EmbeddingModel != "" {
			opts = append(opts, gemini.WithEmbeddingModel(cfg.EmbeddingModel))
		}
		if cfg.EmbeddingDimension > 0 {
			opts = append(opts, gemini.WithEmbeddingDimension(cfg.EmbeddingDimension))
		}
		gen, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("Geminiクライアント初期化に失敗しました: %w", err)
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("未対応のAIプロバイダです: %s", cfg.Provider)
	}
}

func resolveUserID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.MustParse(defaultLocalUserID), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("REPOGPT_USER_ID が不正です: %w", err)
	}
	return id, nil
}

// Close は内部リソースを解放する。
func (c *ServiceContainer) Close() {
	if c == nil {
		return
	}
	// 実行中のインデックス作成を待ってから接続を閉じる
	if c.Pipeline != nil {
		c.Pipeline.Wait()
	}
	if c.pool != nil {
		c.pool.Close()
	}
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Pool はデータベース接続プールを返す。
func (c *ServiceContainer) Pool() *pgxpool.Pool {
	if c == nil {
		return nil
	}
	return c.pool
}
