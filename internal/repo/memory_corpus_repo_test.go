package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/legalrag/internal/model"
	appErr "github.com/xxxsen/legalrag/internal/pkg/errors"
	"github.com/xxxsen/legalrag/internal/rag"
)

func testChunks(docID string, n int, category model.Category, modelName string) []model.Chunk {
	out := make([]model.Chunk, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Chunk{
			ID:             fmt.Sprintf("%s-%d", docID, i),
			Title:          docID,
			Category:       category,
			Content:        fmt.Sprintf("chunk %d of %s", i, docID),
			Embedding:      []float32{float32(i), 1},
			EmbeddingModel: modelName,
			Position:       i,
		})
	}
	return out
}

func TestMemoryCorpusRepo_ReplaceKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryCorpusRepo()
	require.NoError(t, r.ReplaceDocument(ctx, &model.Document{ID: "a", Category: model.CategoryStatute}, testChunks("a", 2, model.CategoryStatute, "m1")))
	require.NoError(t, r.ReplaceDocument(ctx, &model.Document{ID: "b", Category: model.CategoryGuide}, testChunks("b", 2, model.CategoryGuide, "m1")))

	chunks, err := r.ListChunks(ctx, rag.Filter{})
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	for i := 1; i < len(chunks); i++ {
		require.Less(t, chunks[i-1].Seq, chunks[i].Seq)
	}

	require.NoError(t, r.ReplaceDocument(ctx, &model.Document{ID: "a", Category: model.CategoryStatute}, testChunks("a", 1, model.CategoryStatute, "m1")))
	chunks, err = r.ListChunks(ctx, rag.Filter{})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.Equal(t, "b-0", chunks[0].ID)
	require.Equal(t, "a-0", chunks[2].ID)

	doc, err := r.GetDocument(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, doc.ChunkCount)
}

func TestMemoryCorpusRepo_FilterAndDelete(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryCorpusRepo()
	require.NoError(t, r.ReplaceDocument(ctx, &model.Document{ID: "a"}, testChunks("a", 2, model.CategoryStatute, "m1")))
	require.NoError(t, r.ReplaceDocument(ctx, &model.Document{ID: "b"}, testChunks("b", 3, model.CategoryCaseLaw, "m1")))

	chunks, err := r.ListChunks(ctx, rag.Filter{Categories: []model.Category{model.CategoryCaseLaw}})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	require.NoError(t, r.DeleteDocument(ctx, "b"))
	require.ErrorIs(t, r.DeleteDocument(ctx, "b"), appErr.ErrNotFound)
	_, err = r.GetDocument(ctx, "b")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	chunks, err = r.ListChunks(ctx, rag.Filter{})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
}

func TestMemoryCorpusRepo_CallerMutationDoesNotLeak(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryCorpusRepo()
	input := testChunks("a", 1, model.CategoryGuide, "m1")
	require.NoError(t, r.ReplaceDocument(ctx, &model.Document{ID: "a"}, input))
	input[0].Embedding[0] = 42

	chunks, err := r.ListChunks(ctx, rag.Filter{})
	require.NoError(t, err)
	require.Equal(t, float32(0), chunks[0].Embedding[0])
}

func TestMemoryCorpusRepo_StaleAndUpdate(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryCorpusRepo()
	require.NoError(t, r.ReplaceDocument(ctx, &model.Document{ID: "a"}, testChunks("a", 3, model.CategoryGuide, "old")))

	stale, err := r.ListStale(ctx, "new", 2)
	require.NoError(t, err)
	require.Len(t, stale, 2)

	before, err := r.ListChunks(ctx, rag.Filter{})
	require.NoError(t, err)
	require.NoError(t, r.UpdateEmbedding(ctx, "a-0", []float32{9, 9, 9}, "new"))
	require.ErrorIs(t, r.UpdateEmbedding(ctx, "missing", nil, "new"), appErr.ErrNotFound)

	require.Equal(t, "old", before[0].EmbeddingModel)
	after, err := r.ListChunks(ctx, rag.Filter{})
	require.NoError(t, err)
	require.Equal(t, "new", after[0].EmbeddingModel)
	require.Equal(t, before[0].Seq, after[0].Seq)

	dims, err := r.Dimensions(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, dims)

	stale, err = r.ListStale(ctx, "new", 10)
	require.NoError(t, err)
	require.Len(t, stale, 2)
}

func TestMemoryCorpusRepo_ListDocumentsPaging(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryCorpusRepo()
	for i := 0; i < 5; i++ {
		doc := &model.Document{ID: fmt.Sprintf("d%d", i), Mtime: int64(i)}
		require.NoError(t, r.ReplaceDocument(ctx, doc, nil))
	}
	docs, err := r.ListDocuments(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "d3", docs[0].ID)
	require.Equal(t, "d2", docs[1].ID)

	docs, err = r.ListDocuments(ctx, 10, 10)
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestMemoryCorpusRepo_ReadersSeeWholeDocuments(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryCorpusRepo()
	require.NoError(t, r.ReplaceDocument(ctx, &model.Document{ID: "a"}, testChunks("a", 4, model.CategoryGuide, "m1")))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			n := 4
			if i%2 == 0 {
				n = 8
			}
			_ = r.ReplaceDocument(ctx, &model.Document{ID: "a"}, testChunks("a", n, model.CategoryGuide, "m1"))
		}
		close(stop)
	}()
	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		chunks, err := r.ListChunks(ctx, rag.Filter{})
		require.NoError(t, err)
		require.Contains(t, []int{4, 8}, len(chunks))
	}
}

func TestMemoryCorpusRepo_FilterByEmbeddingModel(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryCorpusRepo()
	require.NoError(t, r.ReplaceDocument(ctx, &model.Document{ID: "old"}, testChunks("old", 3, model.CategoryGuide, "m1")))
	require.NoError(t, r.ReplaceDocument(ctx, &model.Document{ID: "new"}, testChunks("new", 1, model.CategoryGuide, "m2")))

	chunks, err := r.ListChunks(ctx, rag.Filter{EmbeddingModel: "m2"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "new-0", chunks[0].ID)

	chunks, err = r.ListChunks(ctx, rag.Filter{EmbeddingModel: "m2", Categories: []model.Category{model.CategoryStatute}})
	require.NoError(t, err)
	require.Empty(t, chunks)
}
