package service

import (
	"context"

	"github.com/xxxsen/legalrag/internal/model"
	"github.com/xxxsen/legalrag/internal/rag"
)

// CorpusStore is implemented by repo.CorpusRepo and repo.MemoryCorpusRepo.
type CorpusStore interface {
	rag.CorpusReader
	ReplaceDocument(ctx context.Context, doc *model.Document, chunks []model.Chunk) error
	DeleteDocument(ctx context.Context, id string) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]model.Document, error)
	Dimensions(ctx context.Context) ([]int, error)
	ListStale(ctx context.Context, modelName string, limit int) ([]model.Chunk, error)
	UpdateEmbedding(ctx context.Context, chunkID string, embedding []float32, modelName string) error
}

type AuditStore interface {
	Create(ctx context.Context, item *model.QALog) error
	ListRecent(ctx context.Context, limit int) ([]model.QALog, error)
}

type Asker interface {
	Ask(ctx context.Context, q rag.Question) (*model.Answer, error)
}
