package commits

import (
	"regexp"
	"strings"
)

const (
	// BoilerplateSummary は初期コミット・巨大コミットに割り当てる定型要約
	BoilerplateSummary = "Initial repository setup with project structure and base files."
	// BinarySummary はバイナリ変更のみのdiffに割り当てる定型要約
	BinarySummary = "Binary file changes detected.  Summary not available."
	// EmptySummaryFallback はAIが空文字列を返した場合の代替テキスト
	EmptySummaryFallback = "No summary available"

	// largeDiffAddedLines は巨大diffとみなす追加行マーカー数の閾値
	largeDiffAddedLines = 4000
	minDiffAddedLines   = 2

	binaryDiffMarker = "Binary files /dev/null and"
)

var initCommitPattern = regexp.MustCompile(`(?i)\b(init|initial commit)\b`)

// isInitialCommit はコミットメッセージが初期コミットを示すかどうかを返す
func isInitialCommit(message string) bool {
	return initCommitPattern.MatchString(message)
}

// isLargeDiff はdiffの追加行マーカー数が閾値を超えるかどうかを返す
func isLargeDiff(diff string) bool {
	count := 0
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+") {
			count++
			if count > largeDiffAddedLines {
				break
			}
		}
	}
	return count > largeDiffAddedLines && count > minDiffAddedLines
}

// isBinaryDiff はdiffがバイナリファイルの変更を含むかどうかを返す
func isBinaryDiff(diff string) bool {
	return strings.Contains(diff, binaryDiffMarker)
}

// normalizeDiff は改行コードをLFへ統一し、前後の空白を除去し、
// 孤立したバッククォートをエスケープする
func normalizeDiff(diff string) string {
	normalized := strings.ReplaceAll(diff, "\r\n", "\n")
	normalized = strings.TrimSpace(normalized)
	return escapeLoneBackticks(normalized)
}

// escapeLoneBackticks は前後が共にバッククォートでないバッククォートのみ
// エスケープする。連続するバッククォート(コードフェンス等)は保持する
func escapeLoneBackticks(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i, r := range runes {
		if r == '`' {
			prevIsTick := i > 0 && runes[i-1] == '`'
			nextIsTick := i < len(runes)-1 && runes[i+1] == '`'
			if !prevIsTick && !nextIsTick {
				b.WriteString("\\`")
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
