package ask

import (
	"strings"

	"github.com/jinford/protocol-rag/internal/core/search"
)

// ContextSeparator はプロンプト内でチャンク同士を区切る文字列
const ContextSeparator = "\n---\n"

// NotFoundAnswer はコンテキストで答えられない場合にモデルへ指示する定型文
const NotFoundAnswer = "Não consegui encontrar o protocolo exato para essa conduta."

// Llama-3 のチャットテンプレート。{context} と {question} の位置で分割して持つ
const (
	promptHeader = "<|begin_of_text|><|start_header_id|>system<|end_header_id|>\n" +
		"Você é um assistente médico especialista, treinado em protocolos internos.\n" +
		"Sua função é usar APENAS o CONTEXTO de protocolo fornecido abaixo para responder de forma clara à PERGUNTA.\n" +
		"Se a pergunta não for respondida pelo contexto, diga '" + NotFoundAnswer + "'\n" +
		"<|eot_id|>\n" +
		"\n" +
		"<|start_header_id|>user<|end_header_id|>\n" +
		"CONTEXTO:\n"
	promptQuestion = "\n\nPERGUNTA: "
	promptFooter   = "\n<|eot_id|>\n" +
		"\n" +
		"<|start_header_id|>assistant<|end_header_id|>\n"
)

// TokenCounter はプロンプトのトークン数を数えるインターフェース
type TokenCounter interface {
	CountTokens(text string) int
}

// BuildPrompt は固定テンプレートにコンテキストと質問を埋め込む
// 値は一度だけ差し込むため、コンテキスト中のプレースホルダ風の文字列は置換されない
func BuildPrompt(question, context string) string {
	var sb strings.Builder
	sb.Grow(len(promptHeader) + len(context) + len(promptQuestion) + len(question) + len(promptFooter))
	sb.WriteString(promptHeader)
	sb.WriteString(context)
	sb.WriteString(promptQuestion)
	sb.WriteString(question)
	sb.WriteString(promptFooter)
	return sb.String()
}

// JoinContext は検索結果の本文を区切り文字で連結する
func JoinContext(results []*search.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content())
	}
	return strings.Join(parts, ContextSeparator)
}

// FitToBudget はプロンプトが budget トークンに収まるまで末尾（類似度の低い側）の結果を外す
// budget が0以下なら制限しない
func FitToBudget(question string, results []*search.SearchResult, counter TokenCounter, budget int) []*search.SearchResult {
	if counter == nil || budget <= 0 {
		return results
	}
	kept := results
	for len(kept) > 0 && counter.CountTokens(BuildPrompt(question, JoinContext(kept))) > budget {
		kept = kept[:len(kept)-1]
	}
	return kept
}
