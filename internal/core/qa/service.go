package qa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jinford/repogpt/internal/core/ai"
	"github.com/jinford/repogpt/internal/core/credit"
)

const (
	// SimilarityThreshold はコンテキストに採用する最低コサイン類似度
	SimilarityThreshold = 0.5
	// MaxContextFiles はコンテキストへ詰めるファイルの最大数
	MaxContextFiles = 10
)

// Generator はストリーミング生成と質問のベクトル化を行うインターフェース
type Generator interface {
	StreamText(ctx context.Context, prompt string) (ai.Stream, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service は質問応答のビジネスロジックを提供する
type Service struct {
	repo   Repository
	gen    Generator
	ledger credit.Ledger
	logger *slog.Logger
}

type serviceOptions struct {
	logger *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService は新しいServiceを作成する
func NewService(repo Repository, gen Generator, ledger credit.Ledger, opts ...ServiceOption) *Service {
	options := serviceOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Service{
		repo:   repo,
		gen:    gen,
		ledger: ledger,
		logger: options.logger,
	}
}

// Ask は質問に対してプロジェクトのEmbeddingを検索し、回答をストリーミング
// 生成する。回答のOutputはトークン単位で届き、Costはストリーム完了後に
// 確定する。購読を打ち切ってもコストの精算は完了まで進む
func (s *Service) Ask(ctx context.Context, userID, projectID uuid.UUID, question string) (*Answer, error) {
	if question == "" {
		return nil, errors.New("質問が空です")
	}

	vector, err := s.gen.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("質問のベクトル化に失敗: %w", err)
	}

	files, err := s.repo.SimilarFiles(ctx, projectID, vector, SimilarityThreshold, MaxContextFiles)
	if err != nil {
		return nil, fmt.Errorf("類似ファイルの検索に失敗: %w", err)
	}

	// 検索層の実装に依らず閾値と上限を再適用する
	filtered := make([]*SimilarFile, 0, len(files))
	for _, file := range files {
		if file.Similarity > SimilarityThreshold {
			filtered = append(filtered, file)
		}
		if len(filtered) == MaxContextFiles {
			break
		}
	}

	s.logger.Info("類似ファイルを検索",
		"projectID", projectID,
		"hits", len(filtered),
	)

	prompt := buildAnswerPrompt(question, filtered)

	// 購読破棄後も生成と精算を完走させるため、呼び出し元のキャンセル
	// から切り離す
	streamCtx := context.WithoutCancel(ctx)
	stream, err := s.gen.StreamText(streamCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("回答の生成開始に失敗: %w", err)
	}

	references := make([]*Reference, 0, len(filtered))
	for _, file := range filtered {
		references = append(references, &Reference{
			FilePath:   file.FilePath,
			Content:    file.Content,
			Summary:    file.Summary,
			Similarity: file.Similarity,
		})
	}

	output := make(chan string)
	costCh := make(chan CostUsage, 1)
	answer := &Answer{
		Output:     output,
		References: references,
		Cost:       costCh,
		done:       make(chan struct{}),
	}

	go s.pump(streamCtx, stream, prompt, userID, output, costCh, answer.done)

	return answer, nil
}

// pump は上流ストリームを読み切り、購読者への転送とコスト精算を行う
// 購読者がCloseした後も上流は最後まで読み進め、使用量を確定させる
func (s *Service) pump(
	ctx context.Context,
	stream ai.Stream,
	prompt string,
	userID uuid.UUID,
	output chan<- string,
	costCh chan<- CostUsage,
	done <-chan struct{},
) {
	defer close(costCh)

	var completion strings.Builder
	subscribed := true
	var streamErr error

	for {
		token, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			streamErr = err
			break
		}

		completion.WriteString(token)

		if subscribed {
			select {
			case output <- token:
			case <-done:
				subscribed = false
			}
		}
	}
	close(output)

	if streamErr != nil {
		s.logger.Warn("ストリームの読み取りに失敗。最低コストを適用します",
			"error", streamErr,
		)
		costCh <- CostUsage{EstimatedCost: MinAnswerCost}
		return
	}

	usage := stream.Usage()
	if usage.TotalTokens == 0 {
		usage.PromptTokens = countTokens(prompt)
		usage.CompletionTokens = countTokens(completion.String())
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	cost := EstimateCost(usage.TotalTokens)
	if err := s.ledger.Debit(ctx, userID, cost); err != nil {
		s.logger.Warn("クレジットの減算に失敗",
			"userID", userID,
			"cost", cost,
			"error", err,
		)
	}

	costCh <- CostUsage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		EstimatedCost:    cost,
	}
}
