package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/legalrag/internal/model"
	"github.com/xxxsen/legalrag/internal/pkg/requestid"
	"github.com/xxxsen/legalrag/internal/rag"
	"github.com/xxxsen/legalrag/internal/repo"
)

func answered() *model.Answer {
	return &model.Answer{
		Text:       "Two months [Source 1].",
		Sources:    []model.Source{{Title: "Housing Act", Confidence: 0.9}},
		Confidence: 0.9,
		Outcome:    model.OutcomeAnswered,
	}
}

func TestQAServiceCachesStatelessQuestions(t *testing.T) {
	asker := &stubAsker{answer: answered()}
	audit := repo.NewMemoryQALogRepo(10)
	svc := NewQAService(asker, audit, QAOptions{CacheSize: 8, CacheTTL: time.Minute})
	ctx := context.Background()

	first, err := svc.Ask(ctx, rag.Question{Text: "  How long is notice? "})
	require.NoError(t, err)
	first.Sources[0].Title = "mutated"

	second, err := svc.Ask(ctx, rag.Question{Text: "How long is notice?"})
	require.NoError(t, err)
	require.Equal(t, "Housing Act", second.Sources[0].Title)
	require.Equal(t, 1, asker.calls)
	require.Equal(t, "How long is notice?", asker.last.Text)

	_, err = svc.Ask(ctx, rag.Question{Text: "How long is notice?", History: []model.HistoryMessage{{Speaker: "user", Message: "hi"}}})
	require.NoError(t, err)
	require.Equal(t, 2, asker.calls)

	logs, err := audit.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
}

func TestQAServiceDoesNotCacheDegraded(t *testing.T) {
	degraded := answered()
	degraded.Outcome = model.OutcomeDegraded
	asker := &stubAsker{answer: degraded}
	svc := NewQAService(asker, nil, QAOptions{CacheSize: 8, CacheTTL: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := svc.Ask(context.Background(), rag.Question{Text: "q"})
		require.NoError(t, err)
	}
	require.Equal(t, 2, asker.calls)
}

func TestQAServiceRejectsBadInput(t *testing.T) {
	asker := &stubAsker{answer: answered()}
	svc := NewQAService(asker, nil, QAOptions{MaxQuestionChars: 10})
	_, err := svc.Ask(context.Background(), rag.Question{Text: "   "})
	require.ErrorIs(t, err, rag.ErrInvalidInput)
	_, err = svc.Ask(context.Background(), rag.Question{Text: strings.Repeat("é", 11)})
	require.ErrorIs(t, err, rag.ErrInvalidInput)
	_, err = svc.Ask(context.Background(), rag.Question{Text: strings.Repeat("é", 10)})
	require.NoError(t, err)
	require.Equal(t, 1, asker.calls)
}

func TestQAServiceAuditRecordsRequestAndSurvivesFailure(t *testing.T) {
	audit := repo.NewMemoryQALogRepo(10)
	svc := NewQAService(&stubAsker{answer: rag.Refusal()}, audit, QAOptions{})
	ctx := requestid.With(context.Background(), "req-1")
	answer, err := svc.Ask(ctx, rag.Question{Text: "Who won the 1966 World Cup?"})
	require.NoError(t, err)
	require.Equal(t, rag.RefusalMessage, answer.Text)

	logs, err := audit.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "req-1", logs[0].RequestID)
	require.Equal(t, model.OutcomeRefused, logs[0].Outcome)
	require.Empty(t, logs[0].Sources)

	svc = NewQAService(&stubAsker{answer: answered()}, failingAudit{}, QAOptions{})
	_, err = svc.Ask(ctx, rag.Question{Text: "q"})
	require.NoError(t, err)
}

func TestQAServicePropagatesPipelineErrors(t *testing.T) {
	svc := NewQAService(&stubAsker{err: rag.ErrEmbeddingFailure}, repo.NewMemoryQALogRepo(1), QAOptions{})
	_, err := svc.Ask(context.Background(), rag.Question{Text: "q"})
	require.ErrorIs(t, err, rag.ErrEmbeddingFailure)
}

func TestAuditServiceClampsLimit(t *testing.T) {
	audit := repo.NewMemoryQALogRepo(1000)
	for i := 0; i < 600; i++ {
		require.NoError(t, audit.Create(context.Background(), &model.QALog{ID: "x"}))
	}
	svc := NewAuditService(audit)
	items, err := svc.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, defaultAuditLimit)
	items, err = svc.ListRecent(context.Background(), 10000)
	require.NoError(t, err)
	require.Len(t, items, maxAuditLimit)
}
