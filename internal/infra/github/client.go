package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v66/github"

	"github.com/jinford/repogpt/internal/core/commits"
	"github.com/jinford/repogpt/internal/core/repowalk"
	"github.com/jinford/repogpt/internal/core/retry"
)

// Client は GitHub REST API を使用したリポジトリホストクライアント
// リポジトリごとのアクセストークンが指定された場合はそちらを優先する
type Client struct {
	defaultToken string
}

// NewClient は新しい Client を作成する
// token はプライベートリポジトリへのアクセスに使用する。空でもよい
func NewClient(token string) *Client {
	return &Client{defaultToken: token}
}

// インターフェース実装の確認
var (
	_ repowalk.FileSource = (*Client)(nil)
	_ commits.HostAPI     = (*Client)(nil)
)

// ListDirectory はリポジトリ内のディレクトリ直下のエントリを列挙する
func (c *Client) ListDirectory(ctx context.Context, repo repowalk.Repo, path string) ([]repowalk.Entry, error) {
	api := c.apiFor(repo)
	opts := &gh.RepositoryContentGetOptions{Ref: repo.Branch}

	_, dirContents, _, err := api.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, opts)
	if err != nil {
		return nil, wrapError(fmt.Errorf("ディレクトリの取得に失敗 %q: %w", path, err))
	}
	if dirContents == nil {
		return nil, fmt.Errorf("ディレクトリではありません: %q", path)
	}

	entries := make([]repowalk.Entry, 0, len(dirContents))
	for _, content := range dirContents {
		var entryType repowalk.EntryType
		switch content.GetType() {
		case "file":
			entryType = repowalk.EntryTypeFile
		case "dir":
			entryType = repowalk.EntryTypeDir
		default:
			// submodule や symlink は走査の対象外
			continue
		}
		entries = append(entries, repowalk.Entry{
			Path: content.GetPath(),
			Type: entryType,
		})
	}
	return entries, nil
}

// GetFileContent はファイルの内容を取得する
func (c *Client) GetFileContent(ctx context.Context, repo repowalk.Repo, path string) ([]byte, error) {
	api := c.apiFor(repo)
	opts := &gh.RepositoryContentGetOptions{Ref: repo.Branch}

	fileContent, _, _, err := api.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, opts)
	if err != nil {
		return nil, wrapError(fmt.Errorf("ファイルの取得に失敗 %q: %w", path, err))
	}
	if fileContent == nil {
		return nil, fmt.Errorf("ファイルではありません: %q", path)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("ファイル内容のデコードに失敗 %q: %w", path, err)
	}
	return []byte(content), nil
}

// ListRecentCommits は最新コミットのメタデータを最大limit件取得する
func (c *Client) ListRecentCommits(ctx context.Context, repo repowalk.Repo, limit int) ([]*commits.CommitInfo, error) {
	api := c.apiFor(repo)
	opts := &gh.CommitsListOptions{
		SHA:         repo.Branch,
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	repoCommits, _, err := api.Repositories.ListCommits(ctx, repo.Owner, repo.Name, opts)
	if err != nil {
		return nil, wrapError(fmt.Errorf("コミット一覧の取得に失敗: %w", err))
	}

	infos := make([]*commits.CommitInfo, 0, len(repoCommits))
	for _, rc := range repoCommits {
		infos = append(infos, &commits.CommitInfo{
			Hash:            rc.GetSHA(),
			Message:         rc.GetCommit().GetMessage(),
			AuthorName:      rc.GetCommit().GetAuthor().GetName(),
			AuthorAvatarURL: rc.GetAuthor().GetAvatarURL(),
			AuthoredAt:      rc.GetCommit().GetAuthor().GetDate().Time,
		})
	}
	return infos, nil
}

// GetCommitDiff はコミットのdiffをunified diff形式で取得する
func (c *Client) GetCommitDiff(ctx context.Context, repo repowalk.Repo, hash string) (string, error) {
	api := c.apiFor(repo)

	diff, _, err := api.Repositories.GetCommitRaw(ctx, repo.Owner, repo.Name, hash, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", wrapError(fmt.Errorf("コミットdiffの取得に失敗 %q: %w", hash, err))
	}
	return diff, nil
}

// apiFor はリポジトリに応じた認証付きAPIクライアントを返す
func (c *Client) apiFor(repo repowalk.Repo) *gh.Client {
	token := c.defaultToken
	if repo.Credential != "" {
		token = repo.Credential
	}
	if token == "" {
		return gh.NewClient(nil)
	}
	return gh.NewClient(nil).WithAuthToken(token)
}

// wrapError はGitHub APIのエラーをHTTPステータス付きのエラーへ変換する
// リトライ層がステータスコードで再試行可否を判定できるようにする
func wrapError(err error) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &retry.StatusError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
			Err:        err,
		}
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &retry.StatusError{
			StatusCode: http.StatusTooManyRequests,
			Message:    rateErr.Message,
			Err:        err,
		}
	}

	return err
}
