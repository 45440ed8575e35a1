package repowalk

import (
	"context"
	"fmt"
	"strings"

	giturls "github.com/whilp/git-urls"
)

// Repo は走査対象のリポジトリを表す
type Repo struct {
	// Owner はリポジトリのオーナー名
	Owner string
	// Name はリポジトリ名
	Name string
	// URL は元のリポジトリURL
	URL string
	// Credential はプライベートリポジトリ用のアクセストークン（省略可）
	Credential string
	// Branch は対象ブランチ（空の場合はホスト側のデフォルト）
	Branch string
}

// EntryType はディレクトリエントリの種別
type EntryType string

const (
	EntryTypeFile EntryType = "file"
	EntryTypeDir  EntryType = "dir"
)

// Entry はリポジトリツリーの1エントリを表す
type Entry struct {
	Path string
	Type EntryType
}

// File は取得済みのファイル（パスと内容のペア）を表す
type File struct {
	Path    string
	Content string
}

// FileSource はリポジトリホストAPIへのアクセスインターフェース
// インフラ層（github / git）が実装する
type FileSource interface {
	// ListDirectory は指定パス直下のエントリ一覧を返す
	ListDirectory(ctx context.Context, repo Repo, path string) ([]Entry, error)

	// GetFileContent は指定パスのファイル内容を返す
	GetFileContent(ctx context.Context, repo Repo, path string) ([]byte, error)
}

// ParseRepoURL はリポジトリURLをパースしてRepoを構築する
// 例: https://github.com/user/repo -> Owner=user, Name=repo
func ParseRepoURL(rawURL, credential, branch string) (Repo, error) {
	u, err := giturls.Parse(rawURL)
	if err != nil {
		return Repo{}, fmt.Errorf("リポジトリURLのパースに失敗: %w", err)
	}

	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("リポジトリURLからowner/repoを特定できません: %s", rawURL)
	}

	return Repo{
		Owner:      parts[0],
		Name:       parts[1],
		URL:        rawURL,
		Credential: credential,
		Branch:     branch,
	}, nil
}
