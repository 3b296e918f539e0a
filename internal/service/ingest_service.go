package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/legalrag/internal/ai"
	"github.com/xxxsen/legalrag/internal/filestore"
	"github.com/xxxsen/legalrag/internal/model"
	appErr "github.com/xxxsen/legalrag/internal/pkg/errors"
	"github.com/xxxsen/legalrag/internal/rag"
)

const (
	defaultEmbedConcurrency = 4
	maxDocumentListLimit    = 200
)

type IngestRequest struct {
	// ID replaces an existing document when set.
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Category string `json:"category"`
	Content  string `json:"content"`
}

type IngestOptions struct {
	MaxInputChars    int
	EmbedConcurrency int
	Chunker          ai.ChunkerConfig
}

type IngestService struct {
	corpus        CorpusStore
	embedder      ai.IEmbedder
	archive       filestore.Store
	chunker       *ai.Chunker
	maxInputChars int
	concurrency   int
	now           func() time.Time
}

// NewIngestService builds the corpus writer. archive may be nil.
func NewIngestService(corpus CorpusStore, embedder ai.IEmbedder, archive filestore.Store, opts IngestOptions) *IngestService {
	concurrency := opts.EmbedConcurrency
	if concurrency <= 0 {
		concurrency = defaultEmbedConcurrency
	}
	return &IngestService{
		corpus:        corpus,
		embedder:      embedder,
		archive:       archive,
		chunker:       ai.NewChunker(opts.Chunker),
		maxInputChars: opts.MaxInputChars,
		concurrency:   concurrency,
		now:           time.Now,
	}
}

func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*model.Document, error) {
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if title == "" || content == "" || !utf8.ValidString(content) || !utf8.ValidString(title) {
		return nil, fmt.Errorf("%w: title and content are required", appErr.ErrInvalid)
	}
	category, err := model.ParseCategory(req.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", appErr.ErrInvalid, err)
	}
	logger := logutil.GetLogger(ctx)

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = newID()
	}
	sum := sha256.Sum256([]byte(content))
	contentHash := hex.EncodeToString(sum[:])
	now := s.now().Unix()

	existing, err := s.corpus.GetDocument(ctx, id)
	switch {
	case err == nil:
		if existing.ContentHash == contentHash && existing.Title == title && existing.URL == req.URL && existing.Category == category {
			current, err := s.embeddedWithActiveModel(ctx, id)
			if err != nil {
				return nil, err
			}
			if current {
				logger.Info("document unchanged, skip ingest", zap.String("doc_id", id))
				return existing, nil
			}
			logger.Info("embedding model changed, re-ingest document", zap.String("doc_id", id), zap.String("model", s.embedder.ModelName()))
		}
	case !appErr.IsNotFound(err):
		return nil, fmt.Errorf("load document: %w", err)
	}

	sections := s.chunker.Chunk(ctx, content)
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: document has no text", appErr.ErrInvalid)
	}
	chunks, err := s.embedSections(ctx, id, title, req.URL, category, sections, now)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		ID:          id,
		Title:       title,
		URL:         req.URL,
		Category:    category,
		ContentHash: contentHash,
		Ctime:       now,
		Mtime:       now,
	}
	if existing != nil {
		doc.Ctime = existing.Ctime
	}
	if s.archive != nil {
		doc.SourceKey = filestore.SourceKey(id)
		if err := filestore.SaveText(ctx, s.archive, doc.SourceKey, content); err != nil {
			return nil, fmt.Errorf("archive document: %w", err)
		}
	}
	if err := s.corpus.ReplaceDocument(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	logger.Info("document ingested",
		zap.String("doc_id", id),
		zap.String("category", string(category)),
		zap.Int("chunks", len(chunks)),
	)
	return doc, nil
}

// embeddedWithActiveModel reports whether every stored chunk of the document
// carries the active embedder's model tag.
func (s *IngestService) embeddedWithActiveModel(ctx context.Context, docID string) (bool, error) {
	chunks, err := s.corpus.ListChunks(ctx, rag.Filter{DocumentID: docID})
	if err != nil {
		return false, fmt.Errorf("load document chunks: %w", err)
	}
	if len(chunks) == 0 {
		return false, nil
	}
	modelName := s.embedder.ModelName()
	for _, c := range chunks {
		if c.EmbeddingModel != modelName {
			return false, nil
		}
	}
	return true, nil
}

func (s *IngestService) embedSections(ctx context.Context, docID, title, url string, category model.Category, sections []ai.Section, now int64) ([]model.Chunk, error) {
	modelName := s.embedder.ModelName()
	chunks := make([]model.Chunk, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, sec := range sections {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, s.truncate(sec.Content), ai.TaskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("embed section %d: %w", sec.Position, err)
			}
			if len(vec) == 0 {
				return fmt.Errorf("embed section %d: empty vector", sec.Position)
			}
			chunks[i] = model.Chunk{
				ID:             newID(),
				DocumentID:     docID,
				Title:          chunkTitle(title, sec.Heading),
				URL:            url,
				Category:       category,
				Content:        sec.Content,
				Embedding:      vec,
				EmbeddingModel: modelName,
				Position:       sec.Position,
				Ctime:          now,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	dim := len(chunks[0].Embedding)
	for _, c := range chunks[1:] {
		if len(c.Embedding) != dim {
			return nil, fmt.Errorf("%w: embedder returned mixed dimensions %d and %d", rag.ErrDimensionMismatch, dim, len(c.Embedding))
		}
	}
	return chunks, nil
}

func (s *IngestService) truncate(text string) string {
	if s.maxInputChars <= 0 || utf8.RuneCountInString(text) <= s.maxInputChars {
		return text
	}
	return string([]rune(text)[:s.maxInputChars])
}

func chunkTitle(title, heading string) string {
	if heading == "" || strings.EqualFold(heading, title) {
		return title
	}
	return title + " - " + heading
}

func (s *IngestService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return appErr.ErrInvalid
	}
	return s.corpus.DeleteDocument(ctx, id)
}

func (s *IngestService) Get(ctx context.Context, id string) (*model.Document, error) {
	return s.corpus.GetDocument(ctx, id)
}

func (s *IngestService) List(ctx context.Context, limit, offset int) ([]model.Document, error) {
	if limit <= 0 || limit > maxDocumentListLimit {
		limit = maxDocumentListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.corpus.ListDocuments(ctx, limit, offset)
}

// ReembedStale re-embeds up to batch chunks whose model tag differs from the
// active embedder and reports how many were updated.
func (s *IngestService) ReembedStale(ctx context.Context, batch int) (int, error) {
	modelName := s.embedder.ModelName()
	stale, err := s.corpus.ListStale(ctx, modelName, batch)
	if err != nil {
		return 0, fmt.Errorf("list stale chunks: %w", err)
	}
	updated := 0
	for _, c := range stale {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		vec, err := s.embedder.Embed(ctx, s.truncate(c.Content), ai.TaskRetrievalDocument)
		if err != nil {
			return updated, fmt.Errorf("re-embed chunk %s: %w", c.ID, err)
		}
		if len(vec) == 0 {
			return updated, fmt.Errorf("re-embed chunk %s: empty vector", c.ID)
		}
		if len(c.Embedding) > 0 && len(vec) != len(c.Embedding) {
			return updated, fmt.Errorf("%w: re-embed chunk %s: got %d-d vector, stored %d-d", rag.ErrDimensionMismatch, c.ID, len(vec), len(c.Embedding))
		}
		if err := s.corpus.UpdateEmbedding(ctx, c.ID, vec, modelName); err != nil {
			if errors.Is(err, appErr.ErrNotFound) {
				// removed by a concurrent re-ingest
				continue
			}
			return updated, fmt.Errorf("update chunk %s: %w", c.ID, err)
		}
		updated++
	}
	if updated > 0 {
		logutil.GetLogger(ctx).Info("stale chunks re-embedded", zap.String("model", modelName), zap.Int("count", updated))
	}
	return updated, nil
}

// VerifyDimension fails when the corpus holds vectors whose size differs from
// the configured dimension. An empty corpus always passes.
func VerifyDimension(ctx context.Context, corpus CorpusStore, dimension int) error {
	if dimension <= 0 {
		return nil
	}
	dims, err := corpus.Dimensions(ctx)
	if err != nil {
		return fmt.Errorf("read corpus dimensions: %w", err)
	}
	for _, d := range dims {
		if d != dimension {
			return fmt.Errorf("%w: %w: corpus holds %d-d vectors, configured %d", rag.ErrConfiguration, rag.ErrDimensionMismatch, d, dimension)
		}
	}
	return nil
}
