package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repogpt/cmd/repogpt/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}

	app := &cli.Command{
		Name:  "repogpt",
		Usage: "GitHubリポジトリのインデックス作成と質問応答システム",
		Commands: []*cli.Command{
			{
				Name:  "project",
				Usage: "プロジェクト管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "create",
						Usage: "プロジェクトを登録してインデックス作成を開始",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "name",
								Usage:    "プロジェクト名",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "url",
								Usage:    "GitHubリポジトリURL",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "branch",
								Usage: "対象ブランチ（省略時はリモートのデフォルトブランチ）",
							},
							&cli.StringFlag{
								Name:  "token",
								Usage: "プライベートリポジトリ用のアクセストークン",
							},
						},
						Action: commands.ProjectCreateAction,
					},
					{
						Name:   "list",
						Usage:  "プロジェクト一覧を表示",
						Flags:  []cli.Flag{envFlag},
						Action: commands.ProjectListAction,
					},
					{
						Name:  "show",
						Usage: "プロジェクト詳細を表示",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "name",
								Usage:    "プロジェクト名",
								Required: true,
							},
						},
						Action: commands.ProjectShowAction,
					},
					{
						Name:  "index",
						Usage: "既存プロジェクトを再インデックス",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "name",
								Usage:    "プロジェクト名",
								Required: true,
							},
						},
						Action: commands.ProjectIndexAction,
					},
					{
						Name:  "archive",
						Usage: "プロジェクトをアーカイブ",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "name",
								Usage:    "プロジェクト名",
								Required: true,
							},
						},
						Action: commands.ProjectArchiveAction,
					},
				},
			},
			{
				Name:  "commits",
				Usage: "コミット要約コマンド",
				Commands: []*cli.Command{
					{
						Name:  "poll",
						Usage: "未処理コミットを取得して要約",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "project",
								Usage:    "プロジェクト名",
								Required: true,
							},
						},
						Action: commands.CommitsPollAction,
					},
					{
						Name:  "list",
						Usage: "記録済みコミットの一覧を表示",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{
								Name:     "project",
								Usage:    "プロジェクト名",
								Required: true,
							},
						},
						Action: commands.CommitsListAction,
					},
					{
						Name:   "watch",
						Usage:  "全プロジェクトのコミットを定期的に監視",
						Flags:  []cli.Flag{envFlag},
						Action: commands.CommitsWatchAction,
					},
				},
			},
			{
				Name:  "ask",
				Usage: "プロジェクトに質問してストリーミングで回答を受け取る",
				Flags: []cli.Flag{
					envFlag,
					&cli.StringFlag{
						Name:     "project",
						Usage:    "プロジェクト名",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "question",
						Usage:    "質問文",
						Required: true,
					},
				},
				Action: commands.AskAction,
			},
			{
				Name:  "quota",
				Usage: "リポジトリのインデックスに必要なクレジットを見積もる",
				Flags: []cli.Flag{
					envFlag,
					&cli.StringFlag{
						Name:     "url",
						Usage:    "GitHubリポジトリURL",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "branch",
						Usage: "対象ブランチ",
					},
					&cli.StringFlag{
						Name:  "token",
						Usage: "プライベートリポジトリ用のアクセストークン",
					},
				},
				Action: commands.QuotaAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
