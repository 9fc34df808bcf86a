package ask

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/protocol-rag/internal/core/search"
)

type stubRetriever struct {
	query   string
	results []*search.SearchResult
	err     error
}

func (r *stubRetriever) Search(ctx context.Context, query string) ([]*search.SearchResult, error) {
	r.query = query
	return r.results, r.err
}

type stubGenerator struct {
	prompt string
	answer string
	err    error
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.answer, g.err
}

func TestAskService_DefaultQuestionAndPromptAssembly(t *testing.T) {
	retriever := &stubRetriever{results: []*search.SearchResult{
		result("Coletar lactato.", 0.9),
		result("Iniciar antibiótico na primeira hora.", 0.8),
	}}
	generator := &stubGenerator{answer: "  Coletar lactato e iniciar antibiótico.\n"}

	var logs bytes.Buffer
	svc := NewAskService(retriever, generator, WithAskLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	res, err := svc.Ask(context.Background(), AskParams{})
	require.NoError(t, err)

	assert.Equal(t, DefaultQuestion, retriever.query)
	assert.Equal(t, DefaultQuestion, res.Question)
	assert.Equal(t, "Coletar lactato e iniciar antibiótico.", res.Answer)
	assert.Contains(t, generator.prompt, "Coletar lactato.\n---\nIniciar antibiótico na primeira hora.")
	assert.Contains(t, generator.prompt, "PERGUNTA: "+DefaultQuestion)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, 0.9, res.Sources[0].Score)
	assert.Contains(t, logs.String(), "count=2")
}

func TestAskService_TrimsContextToBudget(t *testing.T) {
	retriever := &stubRetriever{results: []*search.SearchResult{
		result(strings.Repeat("a", 100), 0.9),
		result(strings.Repeat("b", 100), 0.8),
	}}
	generator := &stubGenerator{answer: "ok"}
	budget := runeCounter{}.CountTokens(BuildPrompt("q", "")) + 150

	svc := NewAskService(retriever, generator,
		WithAskLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		WithPromptBudget(runeCounter{}, budget),
	)
	res, err := svc.Ask(context.Background(), AskParams{Question: "q"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Dropped)
	assert.Len(t, res.Sources, 1)
	assert.NotContains(t, generator.prompt, "bbb")
}

func TestAskService_NoResultsStillAsksModel(t *testing.T) {
	generator := &stubGenerator{answer: NotFoundAnswer}
	svc := NewAskService(&stubRetriever{}, generator, WithAskLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	res, err := svc.Ask(context.Background(), AskParams{Question: "Qual a dose de dipirona?"})
	require.NoError(t, err)
	assert.Equal(t, NotFoundAnswer, res.Answer)
	assert.Contains(t, generator.prompt, "CONTEXTO:\n\n\nPERGUNTA:")
}

func TestAskService_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	_, err := NewAskService(&stubRetriever{err: boom}, &stubGenerator{}, WithAskLogger(logger)).
		Ask(context.Background(), AskParams{Question: "q"})
	assert.ErrorIs(t, err, boom)

	_, err = NewAskService(&stubRetriever{}, &stubGenerator{err: boom}, WithAskLogger(logger)).
		Ask(context.Background(), AskParams{Question: "q"})
	assert.ErrorIs(t, err, boom)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "ação", preview("ação", 50))
	assert.Equal(t, "aç", preview("ação", 2))
}
