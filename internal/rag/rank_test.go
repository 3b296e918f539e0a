package rag

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/legalrag/internal/model"
)

func TestRank_FiltersAndOrders(t *testing.T) {
	corpus := []model.Chunk{
		chunkAt("low", 1, 0.6),
		chunkAt("high", 2, 0.9),
		chunkAt("mid", 3, 0.75),
	}
	res, err := Rank([]float32{1, 0}, corpus, 0.7, 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, "high", res[0].ID)
	require.Equal(t, "mid", res[1].ID)
	require.InDelta(t, 0.9, res[0].Similarity, 1e-6)
	require.InDelta(t, 0.75, res[1].Similarity, 1e-6)
}

func TestRank_ThresholdIsExclusive(t *testing.T) {
	corpus := []model.Chunk{
		{ID: "exact", Embedding: []float32{1, 0}},
	}
	res, err := Rank([]float32{1, 0}, corpus, 1.0, 5)
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestRank_StableForTies(t *testing.T) {
	corpus := []model.Chunk{
		{ID: "a", Embedding: []float32{2, 0}},
		{ID: "b", Embedding: []float32{0, 1}},
		{ID: "c", Embedding: []float32{5, 0}},
		{ID: "d", Embedding: []float32{1, 0}},
	}
	res, err := Rank([]float32{1, 0}, corpus, 0.5, 5)
	require.NoError(t, err)
	ids := make([]string, 0, len(res))
	for _, r := range res {
		ids = append(ids, r.ID)
	}
	require.Equal(t, []string{"a", "c", "d"}, ids)
}

func TestRank_TopKBound(t *testing.T) {
	corpus := make([]model.Chunk, 0, 20)
	for i := 0; i < 20; i++ {
		corpus = append(corpus, chunkAt(fmt.Sprintf("c%d", i), int64(i), 0.8+float64(i)/200))
	}
	res, err := Rank([]float32{1, 0}, corpus, 0.7, 5)
	require.NoError(t, err)
	require.Len(t, res, 5)
	require.Equal(t, "c19", res[0].ID)
}

func TestRank_ZeroVectorsExcluded(t *testing.T) {
	corpus := []model.Chunk{{ID: "zero", Embedding: []float32{0, 0}}}
	res, err := Rank([]float32{1, 0}, corpus, -0.5, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, 0.0, res[0].Similarity)

	res, err = Rank([]float32{0, 0}, corpus, 0.7, 5)
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestRank_EmptyCorpus(t *testing.T) {
	res, err := Rank([]float32{1, 0}, nil, 0.7, 5)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Empty(t, res)
}

func TestRank_DimensionMismatch(t *testing.T) {
	corpus := []model.Chunk{{ID: "x", Embedding: []float32{1, 0, 0}}}
	_, err := Rank([]float32{1, 0}, corpus, 0.7, 5)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestRank_PropertiesOnRandomCorpora(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		size := rnd.Intn(parallelScoreCutoff * 2)
		corpus := make([]model.Chunk, size)
		for i := range corpus {
			corpus[i] = model.Chunk{
				ID:        fmt.Sprintf("%d", i),
				Embedding: []float32{rnd.Float32()*2 - 1, rnd.Float32()*2 - 1, rnd.Float32()*2 - 1},
			}
		}
		query := []float32{rnd.Float32(), rnd.Float32(), rnd.Float32()}
		threshold := rnd.Float64()*1.6 - 0.8
		topK := 1 + rnd.Intn(10)

		res, err := Rank(query, corpus, threshold, topK)
		require.NoError(t, err)
		require.LessOrEqual(t, len(res), topK)
		for i, r := range res {
			require.Greater(t, r.Similarity, threshold)
			if i > 0 {
				require.GreaterOrEqual(t, res[i-1].Similarity, r.Similarity)
			}
		}
	}
}
