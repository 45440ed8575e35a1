package ai

import (
	"context"
	"log/slog"

	"github.com/jinford/repogpt/internal/core/retry"
)

const (
	// maxFileSummaryChars はファイル要約に渡すソースコードの最大文字数
	// トークンコストを抑えるため、超過分は切り捨てる
	maxFileSummaryChars = 10000

	// DegradedCommitSummaryText は要約に失敗したコミットへ保存する固定文
	DegradedCommitSummaryText = "Error summarizing commit"
)

// CommitSummary はコミット差分要約の結果を表すタグ付き型
// Degradedがtrueの場合、Textは正規の要約ではなく固定のプレースホルダーで
// ある。呼び出し側は文字列比較ではなくこのフラグで分岐すること
type CommitSummary struct {
	Text     string
	Degraded bool
}

// Service は生成・Embedding上流をリトライとレート制限付きで呼び出す
// アプリケーション向けのラッパー。能力ごとに別々のレートリミッターを共有する
type Service struct {
	gen          Generator
	genLimiter   retry.Limiter
	embedLimiter retry.Limiter
	retryCfg     retry.Config
	logger       *slog.Logger
}

type serviceOptions struct {
	retryCfg retry.Config
	logger   *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithRetryConfig はリトライ設定を上書きする
func WithRetryConfig(cfg retry.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.retryCfg = cfg
	}
}

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService は新しいServiceを作成する
// genLimiter は生成系、embedLimiter はEmbedding系のレートリミッター
func NewService(gen Generator, genLimiter, embedLimiter retry.Limiter, opts ...ServiceOption) *Service {
	options := serviceOptions{
		retryCfg: retry.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Service{
		gen:          gen,
		genLimiter:   genLimiter,
		embedLimiter: embedLimiter,
		retryCfg:     options.retryCfg,
		logger:       options.logger,
	}
}

// SummarizeFile はソースファイルの短い要約を生成する
// 回復不可能な失敗は内部で握りつぶし、空文字列を返す（要約が空でも
// ファイルはEmbedding対象として処理を継続する）
func (s *Service) SummarizeFile(ctx context.Context, path, content string) string {
	code := truncateRunes(content, maxFileSummaryChars)

	summary, err := retry.Do(ctx, s.genLimiter, s.retryCfg, func(ctx context.Context) (string, error) {
		return s.gen.GenerateText(ctx, fileSummarySystemPrompt, buildFileSummaryPrompt(path, code))
	})
	if err != nil {
		s.logger.Warn("ファイル要約の生成に失敗。空の要約で続行します",
			"path", path,
			"error", err,
		)
		return ""
	}

	return summary
}

// SummarizeCommitDiff はコミット差分の自然言語要約を生成する
// 回復不可能な失敗時はエラーを返さず、Degradedフラグ付きの固定文を返す
// （1件の遅延・故障がポーリング全体を塞がないようにするため）
func (s *Service) SummarizeCommitDiff(ctx context.Context, diff, commitMessage string) CommitSummary {
	summary, err := retry.Do(ctx, s.genLimiter, s.retryCfg, func(ctx context.Context) (string, error) {
		return s.gen.GenerateText(ctx, commitDiffSystemPrompt, buildCommitDiffPrompt(diff, commitMessage))
	})
	if err != nil {
		s.logger.Warn("コミット差分要約の生成に失敗",
			"commitMessage", commitMessage,
			"error", err,
		)
		return CommitSummary{Text: DegradedCommitSummaryText, Degraded: true}
	}

	return CommitSummary{Text: summary}
}

// StreamText は回答をストリーミング生成する
// リトライの対象はストリームの開始まで。開始後の失敗はリトライしない
func (s *Service) StreamText(ctx context.Context, prompt string) (Stream, error) {
	return retry.Do(ctx, s.genLimiter, s.retryCfg, func(ctx context.Context) (Stream, error) {
		return s.gen.StreamText(ctx, prompt)
	})
}

// Embed はテキストの固定次元ベクトルを生成する
// 要約と異なり、失敗は呼び出し元へ伝播する（その処理単位にとって致命的）
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	return retry.Do(ctx, s.embedLimiter, s.retryCfg, func(ctx context.Context) ([]float32, error) {
		return s.gen.Embed(ctx, text)
	})
}

// Dimension はEmbeddingベクトルの次元数を返す
func (s *Service) Dimension() int {
	return s.gen.Dimension()
}

// truncateRunes は文字列を指定された文字数に切り詰める
func truncateRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
