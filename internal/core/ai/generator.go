package ai

import (
	"context"
)

// Usage は生成呼び出しのトークン使用量を表す
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Stream はストリーミング生成の読み取りインターフェース
// Recvはテキスト断片を順に返し、終端でio.EOFを返す。
// Usageは終端到達後にのみ有効な値を返す（取得できない場合はゼロ値）。
type Stream interface {
	Recv() (string, error)
	Usage() Usage
}

// Generator は生成AI上流との通信インターフェース
// インフラ層（gemini / openai）が実装する。失敗はHTTPステータス相当の
// retry.StatusError に写像されることを前提とする
type Generator interface {
	// GenerateText はシステム・ユーザープロンプトからテキストを生成する
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// StreamText はプロンプトからストリーミング生成を開始する
	StreamText(ctx context.Context, prompt string) (Stream, error)

	// Embed はテキストの固定次元ベクトルを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension はEmbeddingベクトルの次元数を返す
	Dimension() int
}
