package ai

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalProviderEmbed(t *testing.T) {
	p, err := NewProvider("local", map[string]interface{}{"dimension": 64})
	require.NoError(t, err)
	ctx := context.Background()

	a, err := p.Embed(ctx, "hash", "Notice period for eviction", TaskRetrievalDocument)
	require.NoError(t, err)
	require.Len(t, a, 64)
	b, err := p.Embed(ctx, "hash", "notice PERIOD, for eviction!", TaskRetrievalQuery)
	require.NoError(t, err)
	require.Equal(t, a, b)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	require.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	empty, err := p.Embed(ctx, "hash", "   ", TaskRetrievalQuery)
	require.NoError(t, err)
	require.Len(t, empty, 64)

	_, err = p.Generate(ctx, "hash", "q", DefaultDecodingConfig())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestLocalProviderDefaultDimension(t *testing.T) {
	p, err := NewProvider("LOCAL", nil)
	require.NoError(t, err)
	v, err := p.Embed(context.Background(), "hash", "x", TaskRetrievalQuery)
	require.NoError(t, err)
	require.Len(t, v, defaultLocalDimension)

	_, err = NewProvider("nope", nil)
	require.Error(t, err)
}
