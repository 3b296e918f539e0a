package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/legalrag/internal/ai"
	"github.com/xxxsen/legalrag/internal/model"
	"github.com/xxxsen/legalrag/internal/rag"
)

type countingEmbedder struct {
	next  ai.IEmbedder
	name  string
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls.Add(1)
	return c.next.Embed(ctx, text, taskType)
}

func (c *countingEmbedder) ModelName() string {
	if c.name != "" {
		return c.name
	}
	return c.next.ModelName()
}

func newLocalEmbedder(t *testing.T, name string) *countingEmbedder {
	t.Helper()
	p, err := ai.NewProvider("local", map[string]interface{}{"dimension": 64})
	require.NoError(t, err)
	return &countingEmbedder{next: ai.NewEmbedder(p, "hash"), name: name}
}

type fixedEmbedder struct {
	vec  []float32
	name string
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return f.vec, nil
}

func (f *fixedEmbedder) ModelName() string { return f.name }

type replyGenerator struct {
	reply string
	err   error
	calls atomic.Int32
}

func (g *replyGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	return g.reply, g.err
}

type stubAsker struct {
	answer *model.Answer
	err    error
	calls  int
	last   rag.Question
}

func (s *stubAsker) Ask(ctx context.Context, q rag.Question) (*model.Answer, error) {
	s.calls++
	s.last = q
	if s.err != nil {
		return nil, s.err
	}
	return s.answer.Clone(), nil
}

type failingAudit struct{}

func (failingAudit) Create(ctx context.Context, item *model.QALog) error {
	return errors.New("audit store down")
}

func (failingAudit) ListRecent(ctx context.Context, limit int) ([]model.QALog, error) {
	return nil, errors.New("audit store down")
}
