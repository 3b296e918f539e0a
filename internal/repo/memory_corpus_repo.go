package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/xxxsen/legalrag/internal/model"
	appErr "github.com/xxxsen/legalrag/internal/pkg/errors"
	"github.com/xxxsen/legalrag/internal/rag"
)

// MemoryCorpusRepo keeps the corpus in process. Writers publish a fresh chunk
// snapshot, so a reader holding the previous one is never affected.
type MemoryCorpusRepo struct {
	mu      sync.RWMutex
	docs    map[string]model.Document
	chunks  []model.Chunk
	nextSeq int64
}

func NewMemoryCorpusRepo() *MemoryCorpusRepo {
	return &MemoryCorpusRepo{docs: make(map[string]model.Document)}
}

func (r *MemoryCorpusRepo) ReplaceDocument(ctx context.Context, doc *model.Document, chunks []model.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]model.Chunk, 0, len(r.chunks)+len(chunks))
	for _, c := range r.chunks {
		if c.DocumentID != doc.ID {
			next = append(next, c)
		}
	}
	for _, c := range chunks {
		r.nextSeq++
		c.Seq = r.nextSeq
		c.DocumentID = doc.ID
		c.Embedding = cloneVector(c.Embedding)
		next = append(next, c)
	}
	stored := *doc
	if old, ok := r.docs[doc.ID]; ok {
		stored.Ctime = old.Ctime
	}
	stored.ChunkCount = len(chunks)
	r.docs[doc.ID] = stored
	r.chunks = next
	doc.ChunkCount = len(chunks)
	return nil
}

func (r *MemoryCorpusRepo) DeleteDocument(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return appErr.ErrNotFound
	}
	delete(r.docs, id)
	next := make([]model.Chunk, 0, len(r.chunks))
	for _, c := range r.chunks {
		if c.DocumentID != id {
			next = append(next, c)
		}
	}
	r.chunks = next
	return nil
}

func (r *MemoryCorpusRepo) snapshot() []model.Chunk {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chunks
}

// ListChunks returns chunk copies in Seq order. Embedding slices are shared
// and must be treated as read-only.
func (r *MemoryCorpusRepo) ListChunks(ctx context.Context, filter rag.Filter) ([]model.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := r.snapshot()
	out := make([]model.Chunk, 0, len(snap))
	for _, c := range snap {
		if !filterAllows(filter, c) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryCorpusRepo) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &doc, nil
}

func (r *MemoryCorpusRepo) ListDocuments(ctx context.Context, limit, offset int) ([]model.Document, error) {
	r.mu.RLock()
	docs := make([]model.Document, 0, len(r.docs))
	for _, d := range r.docs {
		docs = append(docs, d)
	}
	r.mu.RUnlock()
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Mtime != docs[j].Mtime {
			return docs[i].Mtime > docs[j].Mtime
		}
		return docs[i].ID < docs[j].ID
	})
	if offset >= len(docs) {
		return []model.Document{}, nil
	}
	docs = docs[offset:]
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (r *MemoryCorpusRepo) Dimensions(ctx context.Context) ([]int, error) {
	seen := make(map[int]struct{})
	for _, c := range r.snapshot() {
		seen[len(c.Embedding)] = struct{}{}
	}
	dims := make([]int, 0, len(seen))
	for d := range seen {
		dims = append(dims, d)
	}
	sort.Ints(dims)
	return dims, nil
}

func (r *MemoryCorpusRepo) ListStale(ctx context.Context, modelName string, limit int) ([]model.Chunk, error) {
	out := make([]model.Chunk, 0)
	for _, c := range r.snapshot() {
		if limit > 0 && len(out) >= limit {
			break
		}
		if c.EmbeddingModel != modelName {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MemoryCorpusRepo) UpdateEmbedding(ctx context.Context, chunkID string, embedding []float32, modelName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.chunks {
		if c.ID != chunkID {
			continue
		}
		next := make([]model.Chunk, len(r.chunks))
		copy(next, r.chunks)
		next[i].Embedding = cloneVector(embedding)
		next[i].EmbeddingModel = modelName
		r.chunks = next
		return nil
	}
	return appErr.ErrNotFound
}

func filterAllows(filter rag.Filter, chunk model.Chunk) bool {
	if filter.DocumentID != "" && chunk.DocumentID != filter.DocumentID {
		return false
	}
	if filter.EmbeddingModel != "" && chunk.EmbeddingModel != filter.EmbeddingModel {
		return false
	}
	if len(filter.Categories) == 0 {
		return true
	}
	for _, c := range filter.Categories {
		if c == chunk.Category {
			return true
		}
	}
	return false
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
