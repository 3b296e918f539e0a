package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingPurger struct {
	cutoff int64
}

func (p *recordingPurger) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	p.cutoff = cutoff
	return 3, nil
}

type recordingReembedder struct {
	batch int
}

func (r *recordingReembedder) ReembedStale(ctx context.Context, batch int) (int, error) {
	r.batch = batch
	return batch, nil
}

func TestRetentionJobCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	p := &recordingPurger{}
	j := NewQALogCleanupJob(p, 7)
	j.now = func() time.Time { return now }
	require.Equal(t, "qa_log_cleanup", j.Name())
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.AddDate(0, 0, -7).Unix(), p.cutoff)

	require.Equal(t, "embedding_cache_cleanup", NewEmbeddingCacheCleanupJob(nil, 0).Name())
	require.NoError(t, NewEmbeddingCacheCleanupJob(nil, 0).Run(context.Background()))
}

func TestStaleEmbeddingJob(t *testing.T) {
	r := &recordingReembedder{}
	j := NewStaleEmbeddingJob(r, 0)
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, 100, r.batch)
}
