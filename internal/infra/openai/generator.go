package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/repogpt/internal/core/ai"
	"github.com/jinford/repogpt/internal/core/retry"
)

const (
	// DefaultModel はデフォルトで使用するOpenAIモデル
	DefaultModel = "gpt-4o-mini"
	// DefaultEmbeddingModel はモデル未指定時のEmbeddingモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

// Generator は OpenAI API を使用した ai.Generator 実装
type Generator struct {
	client         openai.Client
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
func NewGenerator(apiKey string, opts ...GeneratorOption) (*Generator, error) {
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

	return &Generator{
		client:         openai.NewClient(option.WithAPIKey(apiKey)),
		model:          options.model,
		embeddingModel: options.embeddingModel,
		dimension:      options.dimension,
	}, nil
}

// インターフェース実装の確認
var _ ai.Generator = (*Generator)(nil)

// GenerateText はシステムプロンプトとユーザープロンプトからテキストを生成する
func (g *Generator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapError(err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	return completion.Choices[0].Message.Content, nil
}

// StreamText は回答をストリーミング生成する
func (g *Generator) StreamText(ctx context.Context, prompt string) (ai.Stream, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}

	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, wrapError(err)
	}

	return &chatStream{stream: stream}, nil
}

// Embed はテキストのEmbeddingベクトルを生成する
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(g.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if g.dimension > 0 {
		params.Dimensions = openai.Int(int64(g.dimension))
	}

	resp, err := g.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

// Dimension はEmbeddingベクトルの次元数を返す
func (g *Generator) Dimension() int {
	return g.dimension
}

// chatStream は openai のSSEストリームを ai.Stream へ適合させる
type chatStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	usage  ai.Usage
}

var _ ai.Stream = (*chatStream)(nil)

func (s *chatStream) Recv() (string, error) {
	for s.stream.Next() {
		chunk := s.stream.Current()

		// 使用量は最終チャンクに含まれる
		if chunk.Usage.TotalTokens > 0 {
			s.usage = ai.Usage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			}
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			return chunk.Choices[0].Delta.Content, nil
		}
	}

	if err := s.stream.Err(); err != nil {
		return "", wrapError(err)
	}
	return "", io.EOF
}

func (s *chatStream) Usage() ai.Usage {
	return s.usage
}

// wrapError はOpenAI APIのエラーをHTTPステータス付きのエラーへ変換する
func wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &retry.StatusError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return err
}
