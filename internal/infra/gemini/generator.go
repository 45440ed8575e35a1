package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"google.golang.org/genai"

	"github.com/jinford/repogpt/internal/core/ai"
	"github.com/jinford/repogpt/internal/core/retry"
)

const (
	// DefaultModel はデフォルトで使用するGeminiモデル
	DefaultModel = "gemini-2.0-flash"
	// DefaultEmbeddingModel はモデル未指定時のEmbeddingモデル
	DefaultEmbeddingModel = "text-embedding-004"
	// DefaultEmbeddingDimension はEmbeddingベクトルのデフォルト次元
	DefaultEmbeddingDimension = 768
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("Gemini API key not set: please set GEMINI_API_KEY environment variable")

// Generator は Gemini API を使用した ai.Generator 実装
type Generator struct {
	client         *genai.Client
	model          string
	embeddingModel string
	dimension      int
}

type generatorOptions struct {
	model          string
	embeddingModel string
	dimension      int
}

// GeneratorOption は Generator のオプション設定
type GeneratorOption func(*generatorOptions)

// WithModel は生成モデル名を上書きする
func WithModel(model string) GeneratorOption {
	return func(o *generatorOptions) {
		o.model = model
	}
}

// WithEmbeddingModel はEmbeddingモデル名を上書きする
func WithEmbeddingModel(model string) GeneratorOption {
	return func(o *generatorOptions) {
		o.embeddingModel = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) GeneratorOption {
	return func(o *generatorOptions) {
		o.dimension = dimension
	}
}

// NewGenerator は新しい Generator を作成する
func NewGenerator(ctx context.Context, apiKey string, opts ...GeneratorOption) (*Generator, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := generatorOptions{
		model:          DefaultModel,
		embeddingModel: DefaultEmbeddingModel,
		dimension:      DefaultEmbeddingDimension,
	}
	for _, opt := range opts {
		opt(&options)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの作成に失敗: %w", err)
	}

	return &Generator{
		client:         client,
		model:          options.model,
		embeddingModel: options.embeddingModel,
		dimension:      options.dimension,
	}, nil
}

// インターフェース実装の確認
var _ ai.Generator = (*Generator)(nil)

// GenerateText はシステムプロンプトとユーザープロンプトからテキストを生成する
func (g *Generator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				genai.NewPartFromText(systemPrompt),
			},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", wrapError(err)
	}

	return result.Text(), nil
}

// StreamText は回答をストリーミング生成する
func (g *Generator) StreamText(ctx context.Context, prompt string) (ai.Stream, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	seq := g.client.Models.GenerateContentStream(ctx, g.model, contents, nil)
	next, stop := iter.Pull2(seq)

	return &contentStream{next: next, stop: stop}, nil
}

// Embed はテキストのEmbeddingベクトルを生成する
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	config := &genai.EmbedContentConfig{}
	if g.dimension > 0 {
		config.OutputDimensionality = genai.Ptr(int32(g.dimension))
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, config)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}

	return result.Embeddings[0].Values, nil
}

// Dimension はEmbeddingベクトルの次元数を返す
func (g *Generator) Dimension() int {
	return g.dimension
}

// contentStream は genai のストリームイテレータを ai.Stream へ適合させる
type contentStream struct {
	next  func() (*genai.GenerateContentResponse, error, bool)
	stop  func()
	usage ai.Usage
}

var _ ai.Stream = (*contentStream)(nil)

func (s *contentStream) Recv() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			s.stop()
			return "", io.EOF
		}
		if err != nil {
			s.stop()
			return "", wrapError(err)
		}

		// 使用量はチャンクごとに累積値で届くため常に上書きする
		if resp.UsageMetadata != nil {
			s.usage = ai.Usage{
				PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
			}
		}

		if text := resp.Text(); text != "" {
			return text, nil
		}
	}
}

func (s *contentStream) Usage() ai.Usage {
	return s.usage
}

// wrapError はGemini APIのエラーをHTTPステータス付きのエラーへ変換する
func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &retry.StatusError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return err
}
