package job

import "context"

type Reembedder interface {
	ReembedStale(ctx context.Context, batch int) (int, error)
}

// StaleEmbeddingJob moves chunks embedded by an older model onto the active
// one, one batch per run.
type StaleEmbeddingJob struct {
	reembedder Reembedder
	batch      int
}

func NewStaleEmbeddingJob(reembedder Reembedder, batch int) *StaleEmbeddingJob {
	if batch <= 0 {
		batch = 100
	}
	return &StaleEmbeddingJob{reembedder: reembedder, batch: batch}
}

func (j *StaleEmbeddingJob) Name() string {
	return "stale_embedding"
}

func (j *StaleEmbeddingJob) Run(ctx context.Context) error {
	_, err := j.reembedder.ReembedStale(ctx, j.batch)
	return err
}
