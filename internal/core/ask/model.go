package ask

// DefaultQuestion は質問が省略された場合に使う質問文
const DefaultQuestion = "Qual é o manejo imediato para sepse?"

// AskParams は質問応答のパラメータを表す
type AskParams struct {
	Question string // ユーザーの質問文（空なら DefaultQuestion）
}

// AskResult は質問応答の結果を表す
type AskResult struct {
	Question string            // 実際に使った質問文
	Answer   string            // LLMによる回答
	Sources  []SourceReference // 参照したチャンク
	Dropped  int               // プロンプト長の制約で除外したチャンク数
}

// SourceReference は回答の根拠となったチャンクへの参照を表す
type SourceReference struct {
	Source  string  // 文書のパス
	Page    int     // ページ番号（1始まり）
	Ordinal int     // 文書内のチャンク番号
	Score   float64 // 関連度スコア
	Excerpt string  // 本文
}
