package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/repogpt/internal/core/credit"
	"github.com/jinford/repogpt/internal/core/indexing"
	"github.com/jinford/repogpt/internal/core/repowalk"
)

// ProjectCreateAction はプロジェクトを登録してインデックス作成を開始する
func ProjectCreateAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	name := cmd.String("name")
	url := cmd.String("url")
	branch := cmd.String("branch")
	token := cmd.String("token")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	repo, err := repowalk.ParseRepoURL(url, token, branch)
	if err != nil {
		return err
	}

	c := appCtx.Container

	// 事前見積もり: ファイル数からクレジットを算出し、残高を検証する
	fileCount, err := c.Walker.EstimateFileCount(ctx, repo)
	if err != nil {
		return fmt.Errorf("ファイル数の見積もりに失敗: %w", err)
	}
	quote := repowalk.QuoteCredits(fileCount)

	balance, err := c.Ledger.Balance(ctx, c.UserID)
	if err != nil {
		return fmt.Errorf("残高の取得に失敗: %w", err)
	}
	if err := credit.CheckAffordable(balance, quote); err != nil {
		return fmt.Errorf("必要クレジット %d に対して残高が %.1f しかありません: %w", quote, balance, err)
	}

	var credential *string
	if token != "" {
		credential = &token
	}
	project, err := c.Projects.CreateProject(ctx, name, repo.Owner, repo.Name, url, branch, credential)
	if err != nil {
		return fmt.Errorf("プロジェクトの作成に失敗: %w", err)
	}

	fmt.Printf("プロジェクト %s を作成しました (見積もり: %d ファイル / %d クレジット)\n", project.Name, fileCount, quote)

	// インデックス作成はバックグラウンドで進む
	if err := c.Pipeline.Start(ctx, project); err != nil {
		return fmt.Errorf("インデックス作成の開始に失敗: %w", err)
	}
	fmt.Println("インデックス作成を開始しました")

	// 直近コミットの要約は失敗してもプロジェクト作成を妨げない
	if inserted, err := c.Commits.Poll(ctx, project.ID); err != nil {
		appCtx.Logger().Warn("コミット要約に失敗", "error", err)
	} else {
		fmt.Printf("コミット %d 件を要約しました\n", inserted)
	}

	if err := c.Ledger.Debit(ctx, c.UserID, float64(quote)); err != nil {
		return fmt.Errorf("クレジットの精算に失敗: %w", err)
	}

	// CLIではインデックス完了まで待機して結果を報告する
	c.Pipeline.Wait()
	return printProjectStatus(ctx, appCtx, project.Name)
}

// ProjectListAction はプロジェクト一覧を表示する
func ProjectListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	projects, err := appCtx.Container.Projects.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("プロジェクト一覧の取得に失敗: %w", err)
	}

	if len(projects) == 0 {
		fmt.Println("プロジェクトはありません")
		return nil
	}

	renderProjectsTable(projects)
	return nil
}

// ProjectShowAction はプロジェクトの詳細を表示する
func ProjectShowAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	name := cmd.String("name")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	return printProjectStatus(ctx, appCtx, name)
}

// ProjectIndexAction は既存プロジェクトを再インデックスする
func ProjectIndexAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	name := cmd.String("name")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	c := appCtx.Container
	project, err := findProjectByName(ctx, appCtx, name)
	if err != nil {
		return err
	}

	if err := c.Pipeline.Start(ctx, project); err != nil {
		return fmt.Errorf("インデックス作成の開始に失敗: %w", err)
	}
	fmt.Println("インデックス作成を開始しました")

	c.Pipeline.Wait()
	return printProjectStatus(ctx, appCtx, name)
}

// ProjectArchiveAction はプロジェクトをアーカイブする
func ProjectArchiveAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	name := cmd.String("name")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	project, err := findProjectByName(ctx, appCtx, name)
	if err != nil {
		return err
	}

	if err := appCtx.Container.Projects.ArchiveProject(ctx, project.ID); err != nil {
		return fmt.Errorf("プロジェクトのアーカイブに失敗: %w", err)
	}

	fmt.Printf("プロジェクト %s をアーカイブしました\n", name)
	return nil
}

func findProjectByName(ctx context.Context, appCtx *AppContext, name string) (*indexing.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("--name は必須です")
	}
	found, err := appCtx.Container.Projects.GetProjectByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗: %w", err)
	}
	project, ok := found.Get()
	if !ok {
		return nil, fmt.Errorf("プロジェクトが見つかりません: %s", name)
	}
	return project, nil
}

func printProjectStatus(ctx context.Context, appCtx *AppContext, name string) error {
	project, err := findProjectByName(ctx, appCtx, name)
	if err != nil {
		return err
	}

	count, err := appCtx.Container.Projects.CountEmbeddingsByProject(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("インデックス件数の取得に失敗: %w", err)
	}

	fmt.Printf("\n=== プロジェクト詳細 ===\n\n")
	fmt.Printf("ID:             %s\n", project.ID)
	fmt.Printf("Name:           %s\n", project.Name)
	fmt.Printf("Repository:     %s/%s\n", project.Owner, project.RepoName)
	fmt.Printf("URL:            %s\n", project.URL)
	if project.Branch != "" {
		fmt.Printf("Branch:         %s\n", project.Branch)
	}
	fmt.Printf("Status:         %s\n", project.Status)
	fmt.Printf("Indexed Files:  %d\n", count)
	fmt.Printf("Created At:     %s\n", project.CreatedAt.Format("2006-01-02 15:04:05"))
	if project.ArchivedAt != nil {
		fmt.Printf("Archived At:    %s\n", project.ArchivedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// renderProjectsTable はテーブル形式でプロジェクト一覧を表示します
func renderProjectsTable(projects []*indexing.Project) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "Repository", "Branch", "Status", "Archived", "Created At")

	for _, p := range projects {
		archived := ""
		if p.ArchivedAt != nil {
			archived = "yes"
		}
		table.Append(
			p.Name,
			truncateString(p.Owner+"/"+p.RepoName, 40),
			p.Branch,
			string(p.Status),
			archived,
			p.CreatedAt.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
}
