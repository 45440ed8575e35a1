package qa

import (
	"math"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// MinAnswerCost は1回の質問応答に課金する最低クレジット数
	MinAnswerCost = 10

	costPerThousandTokens = 4.5

	fallbackEncoding = "cl100k_base"
)

// EstimateCost は総トークン数から推定コストを算出する
// 1000トークン単位で切り上げた上で単価を掛け、下限値を適用する
func EstimateCost(totalTokens int) float64 {
	cost := math.Ceil(float64(totalTokens)/1000) * costPerThousandTokens
	if cost < MinAnswerCost {
		return MinAnswerCost
	}
	return cost
}

// countTokens は上流が使用量を返さなかった場合のフォールバックとして
// テキストのトークン数を概算する
func countTokens(text string) int {
	enc, err := tiktoken.GetEncoding(fallbackEncoding)
	if err != nil {
		// エンコーダが使えない場合は1トークン≒4文字で近似する
		return len([]rune(text)) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
