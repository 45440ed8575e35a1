package repowalk

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteCredits(t *testing.T) {
	tests := []struct {
		name      string
		fileCount int
		want      int
	}{
		{name: "小規模リポジトリは1.5倍", fileCount: 1500, want: 2250},
		{name: "小規模リポジトリその2", fileCount: 500, want: 750},
		{name: "極小リポジトリは下限値を適用", fileCount: 100, want: MinQuoteCredits},
		{name: "ファイル数ゼロも下限値", fileCount: 0, want: MinQuoteCredits},
		{name: "中規模リポジトリは1.2倍", fileCount: 3000, want: 3600},
		{name: "中規模の端数は切り上げ", fileCount: 2001, want: 2402},
		{name: "大規模リポジトリは0.8倍", fileCount: 10000, want: 8000},
		{name: "閾値ちょうどは大規模扱い", fileCount: 8000, want: 6400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuoteCredits(tt.fileCount))
		})
	}
}

func TestWalker_EstimateFileCount(t *testing.T) {
	t.Run("サブディレクトリを含めた総ファイル数を返す", func(t *testing.T) {
		source := newStubFileSource()
		source.dirs[""] = []Entry{
			{Path: "README.md", Type: EntryTypeFile},
			{Path: "cmd", Type: EntryTypeDir},
			{Path: "internal", Type: EntryTypeDir},
		}
		source.dirs["cmd"] = []Entry{
			{Path: "cmd/main.go", Type: EntryTypeFile},
		}
		source.dirs["internal"] = []Entry{
			{Path: "internal/a.go", Type: EntryTypeFile},
			{Path: "internal/b.go", Type: EntryTypeFile},
			{Path: "internal/deep", Type: EntryTypeDir},
		}
		source.dirs["internal/deep"] = []Entry{
			{Path: "internal/deep/c.go", Type: EntryTypeFile},
		}

		walker := NewWalker(source)
		count, err := walker.EstimateFileCount(context.Background(), Repo{Owner: "acme", Name: "app"})
		require.NoError(t, err)
		assert.Equal(t, 5, count)
	})

	t.Run("多数のサブディレクトリを並列に集計する", func(t *testing.T) {
		source := newStubFileSource()
		var root []Entry
		for i := 0; i < 30; i++ {
			dir := fmt.Sprintf("pkg%02d", i)
			root = append(root, Entry{Path: dir, Type: EntryTypeDir})
			source.dirs[dir] = []Entry{
				{Path: dir + "/a.go", Type: EntryTypeFile},
				{Path: dir + "/b.go", Type: EntryTypeFile},
			}
		}
		source.dirs[""] = root

		walker := NewWalker(source)
		count, err := walker.EstimateFileCount(context.Background(), Repo{Owner: "acme", Name: "app"})
		require.NoError(t, err)
		assert.Equal(t, 60, count)
	})

	t.Run("サブディレクトリの取得失敗は0件として全体を継続する", func(t *testing.T) {
		source := newStubFileSource()
		source.dirs[""] = []Entry{
			{Path: "a.go", Type: EntryTypeFile},
			{Path: "ok", Type: EntryTypeDir},
			{Path: "broken", Type: EntryTypeDir},
		}
		source.dirs["ok"] = []Entry{
			{Path: "ok/b.go", Type: EntryTypeFile},
			{Path: "ok/c.go", Type: EntryTypeFile},
		}
		// broken は dirs へ登録せず取得失敗を再現する

		walker := NewWalker(source)
		count, err := walker.EstimateFileCount(context.Background(), Repo{Owner: "acme", Name: "app"})
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("ルートディレクトリの取得失敗はエラーを返す", func(t *testing.T) {
		source := newStubFileSource()

		walker := NewWalker(source)
		_, err := walker.EstimateFileCount(context.Background(), Repo{Owner: "acme", Name: "app"})
		require.Error(t, err)
	})
}
