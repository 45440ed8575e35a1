package commits

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsInitialCommit(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    bool
	}{
		{name: "initを含む", message: "init", want: true},
		{name: "initial commitを含む", message: "Initial commit", want: true},
		{name: "大文字小文字を無視する", message: "INIT project", want: true},
		{name: "文中のinitial commitにも一致する", message: "chore: initial commit of scaffolding", want: true},
		{name: "単語境界のないinitには一致しない", message: "reinitialize the cache", want: false},
		{name: "通常のメッセージには一致しない", message: "fix: handle nil pointer", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isInitialCommit(tt.message))
		})
	}
}

func TestIsLargeDiff(t *testing.T) {
	t.Run("追加行マーカーが閾値を超えると巨大diff", func(t *testing.T) {
		diff := strings.Repeat("+added line\n", 4001)
		assert.True(t, isLargeDiff(diff))
	})

	t.Run("閾値ちょうどは巨大diffではない", func(t *testing.T) {
		diff := strings.Repeat("+added line\n", 4000)
		assert.False(t, isLargeDiff(diff))
	})

	t.Run("少量の追加行は巨大diffではない", func(t *testing.T) {
		diff := "+line1\n+line2\n-removed\n context\n"
		assert.False(t, isLargeDiff(diff))
	})
}

func TestIsBinaryDiff(t *testing.T) {
	assert.True(t, isBinaryDiff("diff --git a/logo.png b/logo.png\nBinary files /dev/null and b/logo.png differ\n"))
	assert.False(t, isBinaryDiff("+package main\n"))
}

func TestNormalizeDiff(t *testing.T) {
	t.Run("CRLFをLFへ統一し前後の空白を除去する", func(t *testing.T) {
		got := normalizeDiff("  +line1\r\n+line2\r\n  ")
		assert.Equal(t, "+line1\n+line2", got)
	})

	t.Run("孤立したバッククォートをエスケープする", func(t *testing.T) {
		got := normalizeDiff("use `fmt.Println` here")
		assert.Equal(t, "use \\`fmt.Println\\` here", got)
	})

	t.Run("連続するバッククォートは保持する", func(t *testing.T) {
		got := normalizeDiff("```go\ncode\n```")
		assert.Equal(t, "```go\ncode\n```", got)
	})
}
