package commits

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/repogpt/internal/core/ai"
	"github.com/jinford/repogpt/internal/core/indexing"
	"github.com/jinford/repogpt/internal/core/repowalk"
)

// DefaultPollLimit は1回のポーリングで取得する最新コミット数
const DefaultPollLimit = 10

// HostAPI はリポジトリホストからコミット情報を取得するインターフェース
type HostAPI interface {
	ListRecentCommits(ctx context.Context, repo repowalk.Repo, limit int) ([]*CommitInfo, error)
	GetCommitDiff(ctx context.Context, repo repowalk.Repo, hash string) (string, error)
}

// DiffSummarizer はコミットdiffの自然言語要約を生成するインターフェース
type DiffSummarizer interface {
	SummarizeCommitDiff(ctx context.Context, diff, commitMessage string) ai.CommitSummary
}

// ProjectStore はプロジェクトの参照を提供するインターフェース
type ProjectStore interface {
	GetProjectByID(ctx context.Context, id uuid.UUID) (mo.Option[*indexing.Project], error)
	ListProjects(ctx context.Context) ([]*indexing.Project, error)
}

// Service は未処理コミットの取得・分類・要約・記録を統括する
type Service struct {
	repo       Repository
	projects   ProjectStore
	host       HostAPI
	summarizer DiffSummarizer
	pollLimit  int
	logger     *slog.Logger
}

type serviceOptions struct {
	pollLimit int
	logger    *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithPollLimit は1回のポーリングで取得するコミット数を上書きする
func WithPollLimit(n int) ServiceOption {
	return func(o *serviceOptions) {
		if n > 0 {
			o.pollLimit = n
		}
	}
}

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService は新しいServiceを作成する
func NewService(repo Repository, projects ProjectStore, host HostAPI, summarizer DiffSummarizer, opts ...ServiceOption) *Service {
	options := serviceOptions{
		pollLimit: DefaultPollLimit,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Service{
		repo:       repo,
		projects:   projects,
		host:       host,
		summarizer: summarizer,
		pollLimit:  options.pollLimit,
		logger:     options.logger,
	}
}

// Poll はプロジェクトの最新コミットを取得し、未記録のものだけを要約して
// 一括登録する。個別コミットの要約失敗は他のコミットを妨げず、登録は
// 全要約の解決後に1回のバッチ書き込みで行う。登録件数を返す
func (s *Service) Poll(ctx context.Context, projectID uuid.UUID) (int, error) {
	projectOpt, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("プロジェクトの取得に失敗: %w", err)
	}
	project, ok := projectOpt.Get()
	if !ok {
		return 0, fmt.Errorf("プロジェクトが見つかりません: %s", projectID)
	}

	repo := project.RepoRef()

	infos, err := s.host.ListRecentCommits(ctx, repo, s.pollLimit)
	if err != nil {
		return 0, fmt.Errorf("コミット一覧の取得に失敗: %w", err)
	}

	// ホスト側の並び順に依存せず、著者日時の降順で上位のみを対象とする
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].AuthoredAt.After(infos[j].AuthoredAt)
	})
	if len(infos) > s.pollLimit {
		infos = infos[:s.pollLimit]
	}

	unseen, err := s.filterUnseen(ctx, projectID, infos)
	if err != nil {
		return 0, err
	}
	if len(unseen) == 0 {
		return 0, nil
	}

	// 各コミットの要約を並行実行する。失敗はコミット単位で隔離される
	summaries := make([]string, len(unseen))
	var wg sync.WaitGroup
	for i, info := range unseen {
		wg.Add(1)
		go func(i int, info *CommitInfo) {
			defer wg.Done()
			summaries[i] = s.summarizeCommit(ctx, repo, info)
		}(i, info)
	}
	wg.Wait()

	newCommits := make([]*NewCommit, len(unseen))
	for i, info := range unseen {
		newCommits[i] = &NewCommit{
			Hash:            info.Hash,
			Message:         info.Message,
			AuthorName:      info.AuthorName,
			AuthorAvatarURL: info.AuthorAvatarURL,
			AuthoredAt:      info.AuthoredAt,
			Summary:         summaries[i],
		}
	}

	if err := s.repo.BatchCreateCommits(ctx, projectID, newCommits); err != nil {
		return 0, fmt.Errorf("コミットログの登録に失敗: %w", err)
	}

	s.logger.Info("コミットログを更新",
		"projectID", projectID,
		"inserted", len(newCommits),
	)
	return len(newCommits), nil
}

// List はプロジェクトの記録済みコミットを返す
func (s *Service) List(ctx context.Context, projectID uuid.UUID) ([]*Commit, error) {
	return s.repo.ListCommitsByProject(ctx, projectID)
}

// filterUnseen は記録済みハッシュと突き合わせて未処理のコミットのみ返す
func (s *Service) filterUnseen(ctx context.Context, projectID uuid.UUID, infos []*CommitInfo) ([]*CommitInfo, error) {
	hashes, err := s.repo.ListHashesByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("記録済みハッシュの取得に失敗: %w", err)
	}

	seen := make(map[string]struct{}, len(hashes))
	for _, hash := range hashes {
		seen[hash] = struct{}{}
	}

	var unseen []*CommitInfo
	for _, info := range infos {
		if _, ok := seen[info.Hash]; !ok {
			unseen = append(unseen, info)
		}
	}
	return unseen, nil
}

// summarizeCommit は1コミットのdiffを取得・分類し要約テキストを決定する
// 失敗してもエラーを返さず、定型の要約テキストへ縮退する
func (s *Service) summarizeCommit(ctx context.Context, repo repowalk.Repo, info *CommitInfo) string {
	diff, err := s.host.GetCommitDiff(ctx, repo, info.Hash)
	if err != nil {
		s.logger.Warn("コミットdiffの取得に失敗",
			"hash", info.Hash,
			"error", err,
		)
		return ai.DegradedCommitSummaryText
	}

	// 初期コミットと巨大diffはAI呼び出しを省略して定型文を返す
	if isInitialCommit(info.Message) || isLargeDiff(diff) {
		return BoilerplateSummary
	}

	normalized := normalizeDiff(diff)

	if isBinaryDiff(normalized) {
		return BinarySummary
	}

	result := s.summarizer.SummarizeCommitDiff(ctx, normalized, info.Message)
	if result.Text == "" {
		return EmptySummaryFallback
	}
	return result.Text
}
