package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	giturls "github.com/whilp/git-urls"

	"github.com/jinford/repogpt/internal/core/repowalk"
)

// Source はローカルクローンを介してリポジトリのツリーを読むFileSource実装
// ホストAPIへ到達できない環境や、APIレート制限を避けたい場合に使用する
type Source struct {
	cacheDir    string
	sshKeyPath  string
	sshPassword string

	mu sync.Mutex
}

type sourceOptions struct {
	sshKeyPath  string
	sshPassword string
}

// SourceOption は Source のオプション設定
type SourceOption func(*sourceOptions)

// WithSSHKey はSSH認証に使用する鍵ファイルを設定する
func WithSSHKey(keyPath, password string) SourceOption {
	return func(o *sourceOptions) {
		o.sshKeyPath = keyPath
		o.sshPassword = password
	}
}

// NewSource は新しい Source を作成する
// cacheDir 配下にリポジトリごとのクローンを保持する
func NewSource(cacheDir string, opts ...SourceOption) *Source {
	options := sourceOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &Source{
		cacheDir:    cacheDir,
		sshKeyPath:  options.sshKeyPath,
		sshPassword: options.sshPassword,
	}
}

// インターフェース実装の確認
var _ repowalk.FileSource = (*Source)(nil)

// ListDirectory はディレクトリ直下のエントリを列挙する
func (s *Source) ListDirectory(ctx context.Context, repo repowalk.Repo, path string) ([]repowalk.Entry, error) {
	tree, err := s.treeFor(ctx, repo)
	if err != nil {
		return nil, err
	}

	if path != "" {
		tree, err = tree.Tree(path)
		if err != nil {
			return nil, fmt.Errorf("ディレクトリの取得に失敗 %q: %w", path, err)
		}
	}

	entries := make([]repowalk.Entry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		entryPath := entry.Name
		if path != "" {
			entryPath = path + "/" + entry.Name
		}

		switch entry.Mode {
		case filemode.Dir:
			entries = append(entries, repowalk.Entry{Path: entryPath, Type: repowalk.EntryTypeDir})
		case filemode.Regular, filemode.Executable:
			entries = append(entries, repowalk.Entry{Path: entryPath, Type: repowalk.EntryTypeFile})
		default:
			// submodule や symlink は走査の対象外
		}
	}
	return entries, nil
}

// GetFileContent はファイルの内容を取得する
func (s *Source) GetFileContent(ctx context.Context, repo repowalk.Repo, path string) ([]byte, error) {
	tree, err := s.treeFor(ctx, repo)
	if err != nil {
		return nil, err
	}

	file, err := tree.File(path)
	if err != nil {
		return nil, fmt.Errorf("ファイルの取得に失敗 %q: %w", path, err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("ファイル内容の読み取りに失敗 %q: %w", path, err)
	}
	return []byte(content), nil
}

// treeFor はブランチ先端コミットのツリーを返す
// クローンが存在しない場合は作成し、存在する場合はフェッチして更新する
func (s *Source) treeFor(ctx context.Context, repo repowalk.Repo) (*object.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gitRepo, err := s.cloneOrFetch(ctx, repo)
	if err != nil {
		return nil, err
	}

	hash, err := s.resolveRef(gitRepo, repo.Branch)
	if err != nil {
		return nil, err
	}

	commit, err := gitRepo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("コミットの取得に失敗: %w", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("ツリーの取得に失敗: %w", err)
	}
	return tree, nil
}

func (s *Source) cloneOrFetch(ctx context.Context, repo repowalk.Repo) (*git.Repository, error) {
	dir, err := s.cloneDir(repo.URL)
	if err != nil {
		return nil, err
	}

	auth, err := s.auth(repo)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		gitRepo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:  repo.URL,
			Auth: auth,
		})
		if err != nil {
			return nil, fmt.Errorf("クローンに失敗: %w", err)
		}
		return gitRepo, nil
	}

	gitRepo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("リポジトリのオープンに失敗: %w", err)
	}

	remote, err := gitRepo.Remote("origin")
	if err != nil {
		return nil, fmt.Errorf("リモートの取得に失敗: %w", err)
	}

	err = remote.FetchContext(ctx, &git.FetchOptions{Auth: auth})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return nil, fmt.Errorf("フェッチに失敗: %w", err)
	}

	return gitRepo, nil
}

// cloneDir はGit URLからキャッシュディレクトリ内のパスを決定する
func (s *Source) cloneDir(gitURL string) (string, error) {
	u, err := giturls.Parse(gitURL)
	if err != nil {
		return "", fmt.Errorf("Git URLの解析に失敗: %w", err)
	}

	hostname := u.Hostname()
	if hostname == "" {
		hostname = u.Host
	}

	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")

	return filepath.Join(s.cacheDir, hostname, path), nil
}

// auth はリポジトリに応じた認証方法を返す
// アクセストークンが指定されていればHTTP Basic認証、なければSSH鍵を使う
func (s *Source) auth(repo repowalk.Repo) (transport.AuthMethod, error) {
	if repo.Credential != "" {
		return &githttp.BasicAuth{
			Username: "token",
			Password: repo.Credential,
		}, nil
	}

	if s.sshKeyPath == "" {
		return nil, nil
	}
	if _, err := os.Stat(s.sshKeyPath); os.IsNotExist(err) {
		return nil, nil
	}

	auth, err := ssh.NewPublicKeysFromFile("git", s.sshKeyPath, s.sshPassword)
	if err != nil {
		return nil, fmt.Errorf("SSH鍵の読み込みに失敗: %w", err)
	}
	return auth, nil
}

func (s *Source) resolveRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	if ref == "" {
		ref = "HEAD"
	}

	branchRef, err := repo.Reference(plumbing.NewBranchReferenceName(ref), true)
	if err == nil {
		return branchRef.Hash(), nil
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", ref), true)
	if err == nil {
		return remoteRef.Hash(), nil
	}

	tagRef, err := repo.Reference(plumbing.NewTagReferenceName(ref), true)
	if err == nil {
		return tagRef.Hash(), nil
	}

	if ref == "HEAD" {
		headRef, err := repo.Head()
		if err == nil {
			return headRef.Hash(), nil
		}
	}

	hash := plumbing.NewHash(ref)
	if !hash.IsZero() {
		if _, err := repo.CommitObject(hash); err == nil {
			return hash, nil
		}
	}

	return plumbing.ZeroHash, fmt.Errorf("参照を解決できません: %s", ref)
}
