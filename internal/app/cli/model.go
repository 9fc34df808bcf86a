package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// ModelPullAction はモデルファイルをローカルに用意するコマンドのアクション
func ModelPullAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	path, err := appCtx.Container.GeneratorInitializer.EnsureModel(ctx)
	if err != nil {
		appCtx.Logger().Error("モデルの取得に失敗しました", "error", err)
		return err
	}

	fmt.Fprintln(output(cmd), path)
	return nil
}
