package qa

import (
	"context"

	"github.com/google/uuid"
)

// SimilarFile は類似検索で得られたファイルと類似度を表す
type SimilarFile struct {
	FilePath   string
	Content    string
	Summary    string
	Similarity float64
}

// Repository はベクトル類似検索を提供するインターフェース
// テスト時のモック用に消費者側で定義
type Repository interface {
	// SimilarFiles はコサイン類似度が閾値を超えるファイルを
	// 類似度の降順で最大limit件返す
	SimilarFiles(ctx context.Context, projectID uuid.UUID, vector []float32, minSimilarity float64, limit int) ([]*SimilarFile, error)
}
