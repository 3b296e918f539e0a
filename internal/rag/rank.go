package rag

import (
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/legalrag/internal/model"
)

// corpora at or below this size are scored on the calling goroutine
const parallelScoreCutoff = 4096

// Rank scores every chunk against query, keeps those strictly above
// threshold and returns at most topK, highest first. Equal scores keep
// their corpus order.
func Rank(query []float32, corpus []model.Chunk, threshold float64, topK int) ([]model.ScoredChunk, error) {
	if topK <= 0 || len(corpus) == 0 {
		return []model.ScoredChunk{}, nil
	}
	scores, err := scoreAll(query, corpus)
	if err != nil {
		return nil, err
	}
	matches := make([]model.ScoredChunk, 0, topK)
	for i, score := range scores {
		if score > threshold {
			matches = append(matches, model.ScoredChunk{Chunk: corpus[i], Similarity: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func scoreAll(query []float32, corpus []model.Chunk) ([]float64, error) {
	scores := make([]float64, len(corpus))
	workers := runtime.GOMAXPROCS(0)
	if len(corpus) <= parallelScoreCutoff || workers < 2 {
		return scores, scoreRange(query, corpus, scores, 0, len(corpus))
	}
	var g errgroup.Group
	step := (len(corpus) + workers - 1) / workers
	for start := 0; start < len(corpus); start += step {
		end := start + step
		if end > len(corpus) {
			end = len(corpus)
		}
		g.Go(func() error {
			return scoreRange(query, corpus, scores, start, end)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func scoreRange(query []float32, corpus []model.Chunk, scores []float64, start, end int) error {
	for i := start; i < end; i++ {
		score, err := CosineSimilarity(query, corpus[i].Embedding)
		if err != nil {
			return err
		}
		scores[i] = score
	}
	return nil
}
