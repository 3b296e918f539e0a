package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/legalrag/internal/ai"
	"github.com/xxxsen/legalrag/internal/model"
)

type Question struct {
	Text    string
	Context string
	History []model.HistoryMessage
}

type Config struct {
	Retriever RetrieverConfig
	// HistoryWindow is the number of recent turns in the prompt. Zero means
	// DefaultHistoryWindow, a negative value leaves history out.
	HistoryWindow int
	SnippetLength int
	// Dimension is the corpus embedding size D. Zero skips the check.
	Dimension int
}

// Pipeline answers questions strictly from retrieved sources. It holds no
// per-query state and is safe for concurrent use.
type Pipeline struct {
	embedder  ai.IEmbedder
	retriever *Retriever
	generator ai.IGenerator
	matcher   *KeywordMatcher
	composer  *Composer
	cfg       Config
}

type Option func(*Pipeline)

func WithKeywordMatcher(m *KeywordMatcher) Option {
	return func(p *Pipeline) {
		p.matcher = m
	}
}

func NewPipeline(embedder ai.IEmbedder, reader CorpusReader, generator ai.IGenerator, cfg Config, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	retriever, err := NewRetriever(reader, cfg.Retriever)
	if err != nil {
		return nil, err
	}
	cfg.Retriever = retriever.Config()
	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = DefaultSnippetLength
	}
	if cfg.HistoryWindow == 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	p := &Pipeline{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		composer:  NewComposer(cfg.HistoryWindow),
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) Ask(ctx context.Context, q Question) (*model.Answer, error) {
	question := strings.TrimSpace(q.Text)
	if question == "" || !utf8.ValidString(question) {
		return nil, ErrInvalidInput
	}
	logger := logutil.GetLogger(ctx)

	chunks, err := p.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		logger.Info("no source above threshold, refusing", zap.Float64("threshold", p.cfg.Retriever.Threshold))
		return Refusal(), nil
	}

	prompt := p.composer.Compose(question, q.Context, chunks, q.History)
	raw, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrGenerationFailure, ctx.Err())
		}
		logger.Error("generation failed, answering with sources only", zap.Int("sources", len(chunks)), zap.Error(err))
		return assemble(ApologyMessage, chunks, p.cfg.SnippetLength, model.OutcomeDegraded), nil
	}
	text := strings.TrimSpace(raw)
	if text == "" || !utf8.ValidString(text) {
		logger.Warn("generator returned unusable output, using fallback text")
		text = FallbackMessage
	}
	answer := assemble(text, chunks, p.cfg.SnippetLength, model.OutcomeAnswered)
	logger.Info("question answered", zap.Int("sources", len(answer.Sources)), zap.Float64("confidence", answer.Confidence))
	return answer, nil
}

func (p *Pipeline) retrieve(ctx context.Context, question string) ([]model.ScoredChunk, error) {
	vec, err := p.embedder.Embed(ctx, question, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", ErrEmbeddingFailure)
	}
	if p.cfg.Dimension > 0 && len(vec) != p.cfg.Dimension {
		return nil, fmt.Errorf("%w: %w: embedder returned %d, corpus uses %d", ErrConfiguration, ErrDimensionMismatch, len(vec), p.cfg.Dimension)
	}
	modelName := p.embedder.ModelName()

	switch stage := p.matcher.Match(question).(type) {
	case LocalMatch:
		chunks, err := p.retriever.Retrieve(ctx, vec, modelName, Filter{Categories: stage.Categories})
		if err != nil {
			return nil, err
		}
		if len(chunks) > 0 {
			logutil.GetLogger(ctx).Debug("keyword stage narrowed retrieval",
				zap.Strings("keywords", stage.Keywords),
				zap.Int("matches", len(chunks)),
			)
			return chunks, nil
		}
	case NeedsRetrieval:
	}
	return p.retriever.Retrieve(ctx, vec, modelName, Filter{})
}
