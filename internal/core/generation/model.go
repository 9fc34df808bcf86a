package generation

import (
	"context"
	"path/filepath"
)

const (
	// DefaultTemperature はサンプリング温度
	DefaultTemperature = 0.7
	// DefaultMaxTokens は1回の生成で出力する最大トークン数
	DefaultMaxTokens = 2048
	// DefaultContextWindow はモデルのコンテキスト長
	DefaultContextWindow = 4096
)

// Generator はプロンプトから回答テキストを生成するインターフェース
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelHub はモデルファイルの取得元を表す
type ModelHub interface {
	// Download は repoID の filename を destDir に保存し、そのパスを返す
	// 既存のファイルは上書きする
	Download(ctx context.Context, repoID, filename, destDir string) (string, error)
}

// ModelSpec は取得するモデルファイルを表す
type ModelSpec struct {
	RepoID   string
	Filename string
	Dir      string
}

// Path はモデルファイルのローカルパスを返す
func (m ModelSpec) Path() string {
	return filepath.Join(m.Dir, m.Filename)
}

// Settings は生成時のパラメータ
type Settings struct {
	Temperature   float64
	MaxTokens     int
	ContextWindow int
}

// DefaultSettings はデフォルトの生成パラメータを返す
func DefaultSettings() Settings {
	return Settings{
		Temperature:   DefaultTemperature,
		MaxTokens:     DefaultMaxTokens,
		ContextWindow: DefaultContextWindow,
	}
}

// PromptBudget はプロンプトに使えるトークン数を返す
func (s Settings) PromptBudget() int {
	return s.ContextWindow - s.MaxTokens
}

// GeneratorFactory はローカルのモデルファイルから Generator を組み立てる
type GeneratorFactory func(modelPath string, settings Settings) (Generator, error)
