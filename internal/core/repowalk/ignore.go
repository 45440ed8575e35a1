package repowalk

import (
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnorePatterns はインデックス対象外とする固定のノイズパターン
// ロックファイル、ビルド成果物、minify済み・mapファイル、VCSメタデータなど
var defaultIgnorePatterns = []string{
	"package-lock.json",
	"pnpm-lock.yaml",
	"yarn.lock",
	"bun.lock",
	"go.sum",
	".eslintrc.json",
	"postcss.config.mjs",
	".DS_Store",
	".git",
	".svn",
	"node_modules",
	"vendor",
	"dist",
	"build",
	"coverage",
	"*.min.js",
	"*.map",
}

// Matcher は除外パターンのマッチングを提供する
type Matcher struct {
	patterns *gitignore.GitIgnore
}

// NewMatcher は固定の除外パターンを持つMatcherを作成する
func NewMatcher() *Matcher {
	return &Matcher{
		patterns: gitignore.CompileIgnoreLines(defaultIgnorePatterns...),
	}
}

// NewMatcherWithPatterns は追加パターンを含むMatcherを作成する
func NewMatcherWithPatterns(extra ...string) *Matcher {
	patterns := append(append([]string{}, defaultIgnorePatterns...), extra...)
	return &Matcher{
		patterns: gitignore.CompileIgnoreLines(patterns...),
	}
}

// ShouldIgnore はパスが除外対象かどうかを判定する
func (m *Matcher) ShouldIgnore(path string) bool {
	if m.patterns == nil {
		return false
	}
	return m.patterns.MatchesPath(path)
}
