package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/legalrag/internal/model"
)

const (
	DefaultThreshold      = 0.7
	DefaultTopK           = 5
	defaultCandidateLimit = 50
)

// Filter narrows the corpus. An empty Categories slice means all categories.
// A non-empty EmbeddingModel keeps only chunks embedded by that model; stores
// must apply it before any candidate limit. DocumentID scopes the listing to
// one document.
type Filter struct {
	Categories     []model.Category
	EmbeddingModel string
	DocumentID     string
}

// CorpusReader lists chunks ordered by insertion (Seq ascending).
type CorpusReader interface {
	ListChunks(ctx context.Context, filter Filter) ([]model.Chunk, error)
}

// CandidateSearcher is implemented by stores with a vector index. The
// retriever re-scores its candidates exactly, so it only has to return a
// superset of the true top matches.
type CandidateSearcher interface {
	SearchCandidates(ctx context.Context, query []float32, filter Filter, limit int) ([]model.Chunk, error)
}

type RetrieverConfig struct {
	Threshold float64 `json:"threshold"`
	TopK      int     `json:"top_k"`
	// CandidateLimit bounds the index pre-selection when the reader is a
	// CandidateSearcher. Zero disables the index and scans the corpus.
	CandidateLimit int `json:"candidate_limit"`
	// AllowModelMismatch admits chunks embedded by another model version.
	// Only meant for a re-embedding migration window.
	AllowModelMismatch bool `json:"allow_model_mismatch"`
}

func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		Threshold:      DefaultThreshold,
		TopK:           DefaultTopK,
		CandidateLimit: defaultCandidateLimit,
	}
}

type Retriever struct {
	reader CorpusReader
	cfg    RetrieverConfig
}

func NewRetriever(reader CorpusReader, cfg RetrieverConfig) (*Retriever, error) {
	if reader == nil {
		return nil, fmt.Errorf("corpus reader is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Threshold < -1 || cfg.Threshold >= 1 {
		return nil, fmt.Errorf("retriever threshold must be within [-1, 1), got %v", cfg.Threshold)
	}
	return &Retriever{reader: reader, cfg: cfg}, nil
}

func (r *Retriever) Config() RetrieverConfig {
	return r.cfg
}

// Retrieve returns at most TopK chunks whose similarity to query exceeds the
// threshold. queryModel is the embedding model tag of query.
func (r *Retriever) Retrieve(ctx context.Context, query []float32, queryModel string, filter Filter) ([]model.ScoredChunk, error) {
	if !r.cfg.AllowModelMismatch && queryModel != "" {
		filter.EmbeddingModel = queryModel
	}
	corpus, err := r.load(ctx, query, filter)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrRetrievalFailure, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailure, err)
	}
	corpus = r.compatible(ctx, corpus, queryModel)
	sort.SliceStable(corpus, func(i, j int) bool {
		return corpus[i].Seq < corpus[j].Seq
	})
	res, err := Rank(query, corpus, r.cfg.Threshold, r.cfg.TopK)
	if err != nil {
		if errors.Is(err, ErrDimensionMismatch) {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailure, err)
	}
	return res, nil
}

func (r *Retriever) load(ctx context.Context, query []float32, filter Filter) ([]model.Chunk, error) {
	if searcher, ok := r.reader.(CandidateSearcher); ok && r.cfg.CandidateLimit > 0 {
		limit := r.cfg.CandidateLimit
		if limit < r.cfg.TopK {
			limit = r.cfg.TopK
		}
		return searcher.SearchCandidates(ctx, query, filter, limit)
	}
	return r.reader.ListChunks(ctx, filter)
}

func (r *Retriever) compatible(ctx context.Context, corpus []model.Chunk, queryModel string) []model.Chunk {
	if r.cfg.AllowModelMismatch || queryModel == "" {
		return corpus
	}
	out := make([]model.Chunk, 0, len(corpus))
	skipped := 0
	for _, c := range corpus {
		if c.EmbeddingModel != queryModel {
			skipped++
			continue
		}
		out = append(out, c)
	}
	if skipped > 0 {
		logutil.GetLogger(ctx).Warn("chunks skipped: embedding model mismatch",
			zap.String("query_model", queryModel),
			zap.Int("skipped", skipped),
		)
	}
	return out
}
