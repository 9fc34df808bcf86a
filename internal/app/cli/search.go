package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	coresearch "github.com/jinford/protocol-rag/internal/core/search"
)

const excerptRunes = 200

// SearchAction は生成を行わずに検索結果だけを表示するコマンドのアクション
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	query := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("検索クエリを指定してください")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	retriever, err := appCtx.Container.SearchInitializer.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("Retriever の初期化に失敗: %w", err)
	}

	results, err := retriever.Search(ctx, query)
	if err != nil {
		appCtx.Logger().Error("検索に失敗しました", "error", err)
		return err
	}

	printResults(output(cmd), results)
	return nil
}

func printResults(w io.Writer, results []*coresearch.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "該当するチャンクはありません")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "[%d] p.%d #%d スコア: %.4f\n", i+1, r.Chunk.Page, r.Chunk.Ordinal, r.Score)
		fmt.Fprintln(w, excerpt(r.Content(), excerptRunes))
		fmt.Fprintln(w)
	}
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
