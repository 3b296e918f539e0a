package rag

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	"github.com/xxxsen/legalrag/internal/model"
)

const testModel = "test/embed-v1"

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   atomic.Int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) ModelName() string {
	return testModel
}

type fakeGenerator struct {
	reply   string
	err     error
	calls   atomic.Int32
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeReader struct {
	chunks []model.Chunk
	err    error
	calls  atomic.Int32
}

func (f *fakeReader) ListChunks(ctx context.Context, filter Filter) ([]model.Chunk, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Chunk, 0, len(f.chunks))
	for _, c := range f.chunks {
		if len(filter.Categories) > 0 && !containsCategory(filter.Categories, c.Category) {
			continue
		}
		if filter.EmbeddingModel != "" && c.EmbeddingModel != filter.EmbeddingModel {
			continue
		}
		if filter.DocumentID != "" && c.DocumentID != filter.DocumentID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func containsCategory(list []model.Category, c model.Category) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}

var errProvider = errors.New("provider exploded")

// unitAt returns a 2-d unit vector whose cosine with (1, 0) is sim.
func unitAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func chunkAt(id string, seq int64, sim float64) model.Chunk {
	return model.Chunk{
		ID:             id,
		DocumentID:     "doc-" + id,
		Seq:            seq,
		Title:          "Title " + id,
		URL:            "https://example.org/" + id,
		Category:       model.CategoryGuide,
		Content:        "Content of " + id,
		Embedding:      unitAt(sim),
		EmbeddingModel: testModel,
	}
}
