package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	coreask "github.com/jinford/protocol-rag/internal/core/ask"
	"github.com/jinford/protocol-rag/internal/platform/container"
)

const answerRule = "-----------------------------------"

// AskAction は質問応答コマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	return NewAskAction()(ctx, cmd)
}

// NewAskAction はコンテナのオプションを差し込んだ質問応答アクションを返す
func NewAskAction(opts ...container.ContainerOption) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		showSources := cmd.Bool("show-sources")
		envFile := cmd.String("env")

		// 引用符なしで渡された複数語も1つの質問として扱う。省略時はデフォルトの質問
		question := strings.Join(cmd.Args().Slice(), " ")

		appCtx, err := NewAppContext(ctx, envFile, opts...)
		if err != nil {
			return err
		}
		defer appCtx.Close()

		result, err := executeAsk(ctx, appCtx, question)
		if err != nil {
			appCtx.Logger().Error("質問応答に失敗しました", "error", err)
			return err
		}

		printAnswer(output(cmd), result, showSources)
		return nil
	}
}

// executeAsk はストアとモデルを用意してから質問応答を実行する
func executeAsk(ctx context.Context, appCtx *AppContext, question string) (*coreask.AskResult, error) {
	c := appCtx.Container

	appCtx.Logger().Info("initializing retriever")
	retriever, err := c.SearchInitializer.Initialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("Retriever の初期化に失敗: %w", err)
	}

	appCtx.Logger().Info("initializing generator")
	generator, err := c.GeneratorInitializer.Initialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("Generator の初期化に失敗: %w", err)
	}

	result, err := c.NewAskService(retriever, generator).Ask(ctx, coreask.AskParams{Question: question})
	if err != nil {
		return nil, err
	}

	appCtx.Logger().Info("質問応答処理完了",
		"answerLength", len(result.Answer),
		"sources", len(result.Sources),
		"dropped", result.Dropped,
	)
	return result, nil
}

func printAnswer(w io.Writer, result *coreask.AskResult, showSources bool) {
	fmt.Fprintln(w, answerRule)
	fmt.Fprintln(w, result.Answer)
	fmt.Fprintln(w, answerRule)

	if showSources && len(result.Sources) > 0 {
		fmt.Fprintln(w, "\n--- 参照ソース ---")
		for i, source := range result.Sources {
			fmt.Fprintf(w, "[%d] %s (p.%d #%d) スコア: %.4f\n",
				i+1,
				source.Source,
				source.Page,
				source.Ordinal,
				source.Score,
			)
			fmt.Fprintln(w, "    "+excerpt(source.Excerpt, excerptRunes))
		}
	}
}
