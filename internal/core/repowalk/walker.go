package repowalk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-enry/go-enry/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultFetchConcurrency はファイル内容取得の同時実行数の上限
	// ホストAPIのレート制限を尊重するための値
	DefaultFetchConcurrency = 5
)

// Walker はリポジトリツリーを走査してファイルを収集する
type Walker struct {
	source      FileSource
	ignore      *Matcher
	concurrency int64
	logger      *slog.Logger
}

type walkerOptions struct {
	ignore      *Matcher
	concurrency int64
	logger      *slog.Logger
}

// WalkerOption は Walker のオプション設定
type WalkerOption func(*walkerOptions)

// WithIgnoreMatcher は除外パターンのMatcherを上書きする
func WithIgnoreMatcher(m *Matcher) WalkerOption {
	return func(o *walkerOptions) {
		o.ignore = m
	}
}

// WithFetchConcurrency は内容取得の同時実行数を上書きする
func WithFetchConcurrency(n int) WalkerOption {
	return func(o *walkerOptions) {
		if n > 0 {
			o.concurrency = int64(n)
		}
	}
}

// WithWalkerLogger は Walker にロガーを設定する
func WithWalkerLogger(logger *slog.Logger) WalkerOption {
	return func(o *walkerOptions) {
		o.logger = logger
	}
}

// NewWalker は新しいWalkerを作成する
func NewWalker(source FileSource, opts ...WalkerOption) *Walker {
	options := walkerOptions{
		ignore:      NewMatcher(),
		concurrency: DefaultFetchConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Walker{
		source:      source,
		ignore:      options.ignore,
		concurrency: options.concurrency,
		logger:      options.logger,
	}
}

// ListFiles はリポジトリツリーを再帰的に走査し、除外パターンに一致しない
// 全ファイルを（パス, 内容）のペアとして返す。内容の取得は同時実行数で
// 有界化され、個別ファイルの取得失敗・バイナリファイルはスキップされる
func (w *Walker) ListFiles(ctx context.Context, repo Repo) ([]File, error) {
	paths, err := w.enumerate(ctx, repo, "")
	if err != nil {
		return nil, fmt.Errorf("リポジトリツリーの走査に失敗: %w", err)
	}

	w.logger.Info("リポジトリツリーを走査",
		"repo", repo.Owner+"/"+repo.Name,
		"files", len(paths),
	)

	// ツリー順を保ったまま、有界な並列度で内容を取得する
	results := make([]*File, len(paths))
	sem := semaphore.NewWeighted(w.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i, path := range paths {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			content, err := w.source.GetFileContent(gctx, repo, path)
			if err != nil {
				// 個別ファイルの取得失敗はスキップして続行
				w.logger.Warn("ファイル内容の取得に失敗。スキップします",
					"path", path,
					"error", err,
				)
				return nil
			}

			if enry.IsBinary(content) {
				w.logger.Debug("バイナリファイルをスキップ", "path", path)
				return nil
			}

			results[i] = &File{Path: path, Content: string(content)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files := make([]File, 0, len(results))
	for _, f := range results {
		if f != nil {
			files = append(files, *f)
		}
	}
	return files, nil
}

// enumerate はディレクトリを再帰的に列挙し、除外されないファイルパスを
// ツリー順で返す
func (w *Walker) enumerate(ctx context.Context, repo Repo, path string) ([]string, error) {
	entries, err := w.source.ListDirectory(ctx, repo, path)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if w.ignore.ShouldIgnore(entry.Path) {
			continue
		}

		switch entry.Type {
		case EntryTypeFile:
			paths = append(paths, entry.Path)
		case EntryTypeDir:
			children, err := w.enumerate(ctx, repo, entry.Path)
			if err != nil {
				return nil, err
			}
			paths = append(paths, children...)
		}
	}
	return paths, nil
}

// EstimateFileCount は内容を取得せずにリポジトリのファイル数を概算する
// サブディレクトリは並列に集計され、個別ディレクトリの取得失敗は全体を
// 中断せず0件として扱う（コスト見積もり専用の軽量パス）
func (w *Walker) EstimateFileCount(ctx context.Context, repo Repo) (int, error) {
	entries, err := w.source.ListDirectory(ctx, repo, "")
	if err != nil {
		return 0, fmt.Errorf("ルートディレクトリの取得に失敗: %w", err)
	}
	return w.countEntries(ctx, repo, entries), nil
}

// countEntries はエントリ一覧からファイル数を数える
// ディレクトリはファンアウトして並列集計する
func (w *Walker) countEntries(ctx context.Context, repo Repo, entries []Entry) int {
	count := 0
	var dirs []string

	for _, entry := range entries {
		switch entry.Type {
		case EntryTypeDir:
			dirs = append(dirs, entry.Path)
		default:
			count++
		}
	}

	if len(dirs) == 0 {
		return count
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, dir := range dirs {
		wg.Add(1)
		go func(dir string) {
			defer wg.Done()

			children, err := w.source.ListDirectory(ctx, repo, dir)
			if err != nil {
				// 見積もり用途のため部分的な失敗は許容する
				w.logger.Warn("ディレクトリの集計に失敗。0件として扱います",
					"dir", dir,
					"error", err,
				)
				return
			}

			sub := w.countEntries(ctx, repo, children)
			mu.Lock()
			count += sub
			mu.Unlock()
		}(dir)
	}
	wg.Wait()

	return count
}
