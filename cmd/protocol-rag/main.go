package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/protocol-rag/internal/app/cli"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "protocol-rag",
		Usage: "臨床プロトコルPDFに対する RAG 質問応答ツール",
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "プロトコルを検索してローカルLLMで回答を生成",
				ArgsUsage: "[質問文]",
				Flags: []cli.Flag{
					envFlag(),
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "参照したチャンクのページとスコアを表示",
					},
				},
				Action: appcli.AskAction,
			},
			{
				Name:  "index",
				Usage: "ベクトルストアを構築（既存なら再利用）",
				Flags: []cli.Flag{
					envFlag(),
					&cli.BoolFlag{
						Name:  "force",
						Usage: "既存のストアを破棄して再構築",
					},
				},
				Action: appcli.IndexAction,
			},
			{
				Name:      "search",
				Usage:     "回答を生成せずに関連チャンクを表示",
				ArgsUsage: "<クエリ>",
				Flags: []cli.Flag{
					envFlag(),
				},
				Action: appcli.SearchAction,
			},
			{
				Name:      "patient",
				Usage:     "患者記録（スタブ）を表示",
				ArgsUsage: "<患者ID>",
				Flags: []cli.Flag{
					envFlag(),
				},
				Action: appcli.PatientAction,
			},
			{
				Name:  "model",
				Usage: "モデル管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "pull",
						Usage: "モデルファイルが無ければダウンロード",
						Flags: []cli.Flag{
							envFlag(),
						},
						Action: appcli.ModelPullAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
