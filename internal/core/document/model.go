package document

import "context"

// Document はロード済みの文書を表す
type Document struct {
	Source string  // 読み込み元のパス
	Pages  []*Page // ページ順に並んだ本文
}

// Page は文書の1ページ分のテキストを表す
type Page struct {
	Number int    // 1始まりのページ番号
	Text   string // 抽出したプレーンテキスト
}

// Loader は文書ファイルを読み込むインターフェース
type Loader interface {
	Load(ctx context.Context, path string) (*Document, error)
}
