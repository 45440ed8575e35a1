package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// AskAction はプロジェクトに対する質問へストリーミングで回答する
func AskAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	name := cmd.String("project")
	question := cmd.String("question")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	project, err := findProjectByName(ctx, appCtx, name)
	if err != nil {
		return err
	}

	c := appCtx.Container
	answer, err := c.QA.Ask(ctx, c.UserID, project.ID, question)
	if err != nil {
		return fmt.Errorf("回答の生成に失敗: %w", err)
	}
	defer answer.Close()

	for token := range answer.Output {
		fmt.Print(token)
	}
	fmt.Println()

	if len(answer.References) > 0 {
		fmt.Println("\n--- 参照ファイル ---")
		for _, ref := range answer.References {
			fmt.Printf("  %s (類似度 %.2f)\n", ref.FilePath, ref.Similarity)
		}
	}

	// コストはストリーム完了後に1件だけ届く
	usage := <-answer.Cost
	fmt.Printf("\nトークン使用量: %d (prompt %d / completion %d)\n",
		usage.TotalTokens, usage.PromptTokens, usage.CompletionTokens)
	fmt.Printf("消費クレジット: %.1f\n", usage.EstimatedCost)

	return nil
}
