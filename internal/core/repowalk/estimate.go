package repowalk

import "math"

const (
	// MinQuoteCredits は見積もりの下限クレジット数
	MinQuoteCredits = 587

	smallRepoThreshold = 2000
	largeRepoThreshold = 8000

	smallRepoRate   = 1.5
	largeRepoRate   = 0.8
	defaultRepoRate = 1.2
)

// QuoteCredits はファイル数からインデックス作成に必要なクレジット数を
// 見積もる。小規模リポジトリは割高、大規模リポジトリは割安のレートを
// 適用し、切り上げ後に下限値を適用する
func QuoteCredits(fileCount int) int {
	rate := defaultRepoRate
	switch {
	case fileCount < smallRepoThreshold:
		rate = smallRepoRate
	case fileCount >= largeRepoThreshold:
		rate = largeRepoRate
	}

	credits := int(math.Ceil(float64(fileCount) * rate))
	if credits < MinQuoteCredits {
		credits = MinQuoteCredits
	}
	return credits
}
