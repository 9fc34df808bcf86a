package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	coresearch "github.com/jinford/protocol-rag/internal/core/search"
)

// IndexAction はベクトルストアを構築（または再利用）するコマンドのアクション
func IndexAction(ctx context.Context, cmd *cli.Command) error {
	force := cmd.Bool("force")

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	initializer := appCtx.Container.SearchInitializer

	var retriever *coresearch.Retriever
	if force {
		retriever, err = initializer.Rebuild(ctx)
	} else {
		retriever, err = initializer.Initialize(ctx)
	}
	if err != nil {
		appCtx.Logger().Error("インデックスに失敗しました", "error", err, "force", force)
		return err
	}

	count, err := appCtx.Container.Store.Count(ctx)
	if err != nil {
		return fmt.Errorf("チャンク数の取得に失敗: %w", err)
	}

	fmt.Fprintf(output(cmd), "チャンク数: %d (top-k: %d)\n", count, retriever.TopK())
	return nil
}
