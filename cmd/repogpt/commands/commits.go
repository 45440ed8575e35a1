package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/repogpt/internal/core/commits"
)

// CommitsPollAction は未処理コミットを取得して要約する
func CommitsPollAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	name := cmd.String("project")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	project, err := findProjectByName(ctx, appCtx, name)
	if err != nil {
		return err
	}

	inserted, err := appCtx.Container.Commits.Poll(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("コミットの取得に失敗: %w", err)
	}

	fmt.Printf("新規コミット %d 件を要約しました\n", inserted)
	return nil
}

// CommitsListAction は記録済みコミットの一覧を表示する
func CommitsListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	name := cmd.String("project")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	project, err := findProjectByName(ctx, appCtx, name)
	if err != nil {
		return err
	}

	listed, err := appCtx.Container.Commits.List(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("コミット一覧の取得に失敗: %w", err)
	}

	if len(listed) == 0 {
		fmt.Println("記録済みコミットはありません")
		return nil
	}

	renderCommitsTable(listed)
	return nil
}

// CommitsWatchAction は全プロジェクトのコミットを定期的に監視する
// シグナルを受け取るまで動き続ける
func CommitsWatchAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	fmt.Println("コミット監視を開始しました (Ctrl+C で終了)")

	err = appCtx.Container.Refresher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Println("コミット監視を終了しました")
		return nil
	}
	return err
}

// renderCommitsTable はテーブル形式でコミット一覧を表示します
func renderCommitsTable(listed []*commits.Commit) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Hash", "Author", "Message", "Summary", "Date")

	for _, c := range listed {
		table.Append(
			truncateString(c.Hash, 9),
			c.AuthorName,
			truncateString(c.Message, 40),
			truncateString(c.Summary, 50),
			c.AuthoredAt.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
}
