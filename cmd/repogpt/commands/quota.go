package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repogpt/internal/core/repowalk"
)

// QuotaAction はリポジトリのインデックスに必要なクレジットを見積もる
func QuotaAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
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
	fileCount, err := c.Walker.EstimateFileCount(ctx, repo)
	if err != nil {
		return fmt.Errorf("ファイル数の見積もりに失敗: %w", err)
	}

	quote := repowalk.QuoteCredits(fileCount)
	balance, err := c.Ledger.Balance(ctx, c.UserID)
	if err != nil {
		return fmt.Errorf("残高の取得に失敗: %w", err)
	}

	fmt.Printf("ファイル数:       %d\n", fileCount)
	fmt.Printf("必要クレジット:   %d\n", quote)
	fmt.Printf("現在の残高:       %.1f\n", balance)
	if balance < float64(quote) {
		fmt.Println("残高が不足しています")
	}
	return nil
}
