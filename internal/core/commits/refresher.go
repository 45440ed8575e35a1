package commits

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRefreshInterval はコミットログの定期更新間隔
const DefaultRefreshInterval = 5 * time.Minute

// Refresher は全プロジェクトのコミットログを定期的に更新する
// 閲覧時の都度ポーリングを置き換えるバックグラウンドワーカー
type Refresher struct {
	service  *Service
	projects ProjectStore
	interval time.Duration
	logger   *slog.Logger
}

type refresherOptions struct {
	interval time.Duration
	logger   *slog.Logger
}

// RefresherOption は Refresher のオプション設定
type RefresherOption func(*refresherOptions)

// WithRefreshInterval は更新間隔を上書きする
func WithRefreshInterval(d time.Duration) RefresherOption {
	return func(o *refresherOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithRefresherLogger は Refresher にロガーを設定する
func WithRefresherLogger(logger *slog.Logger) RefresherOption {
	return func(o *refresherOptions) {
		o.logger = logger
	}
}

// NewRefresher は新しいRefresherを作成する
func NewRefresher(service *Service, projects ProjectStore, opts ...RefresherOption) *Refresher {
	options := refresherOptions{
		interval: DefaultRefreshInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Refresher{
		service:  service,
		projects: projects,
		interval: options.interval,
		logger:   options.logger,
	}
}

// Run はコンテキストがキャンセルされるまで定期更新を続ける
// 起動直後に1回更新し、以降は一定間隔で繰り返す
func (r *Refresher) Run(ctx context.Context) error {
	r.refreshAll(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refreshAll(ctx)
		}
	}
}

// refreshAll は全プロジェクトを順番にポーリングする
// 個別プロジェクトの失敗は他のプロジェクトの更新を妨げない
func (r *Refresher) refreshAll(ctx context.Context) {
	projects, err := r.projects.ListProjects(ctx)
	if err != nil {
		r.logger.Error("プロジェクト一覧の取得に失敗", "error", err)
		return
	}

	for _, project := range projects {
		if project.ArchivedAt != nil {
			continue
		}
		// インデックス未完了のプロジェクトも対象とする
		// コミットログはインデックスと独立して更新できる
		inserted, err := r.service.Poll(ctx, project.ID)
		if err != nil {
			r.logger.Warn("コミットログの更新に失敗",
				"projectID", project.ID,
				"error", err,
			)
			continue
		}
		if inserted > 0 {
			r.logger.Info("コミットログを更新",
				"projectID", project.ID,
				"inserted", inserted,
			)
		}
	}
}
