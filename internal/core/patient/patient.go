package patient

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/mo"
	"gopkg.in/yaml.v3"
)

//go:embed records.yaml
var recordsYAML []byte

// ErrNotFound は患者記録が存在しない場合のエラー
var ErrNotFound = errors.New("patient not found")

// Record は患者記録を表す
type Record struct {
	ID    string   `yaml:"id"`
	Lines []string `yaml:"lines"`
}

// Text は記録を表示用の定型テキストに整形する
func (r Record) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Prontuário de %s:", r.ID)
	for _, line := range r.Lines {
		sb.WriteString("\n  - ")
		sb.WriteString(line)
	}
	return sb.String()
}

// records は起動時に一度だけ読み込む静的な記録
var records = mustLoad(recordsYAML)

func mustLoad(data []byte) map[string]Record {
	var list []Record
	if err := yaml.Unmarshal(data, &list); err != nil {
		panic(fmt.Sprintf("patient: invalid embedded records: %v", err))
	}
	out := make(map[string]Record, len(list))
	for _, r := range list {
		out[r.ID] = r
	}
	return out
}

// Lookup は患者IDから記録を引く
func Lookup(id string) mo.Option[Record] {
	r, ok := records[id]
	if !ok {
		return mo.None[Record]()
	}
	return mo.Some(r)
}

// Get は患者IDから記録を引き、存在しなければ ErrNotFound を返す
func Get(id string) (Record, error) {
	r, ok := Lookup(id).Get()
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// FetchPatientData は患者IDに対応する記録のテキストを返す
// 見つからない場合も定型のメッセージを返し、エラーにはしない
func FetchPatientData(id string) string {
	if r, ok := Lookup(id).Get(); ok {
		return r.Text()
	}
	return fmt.Sprintf("Paciente %s não encontrado ou sem dados urgentes.", id)
}
