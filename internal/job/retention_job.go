package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Purger deletes rows created before cutoff (unix seconds).
type Purger interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// RetentionJob purges rows older than maxAgeDays from one table.
type RetentionJob struct {
	name       string
	purger     Purger
	maxAgeDays int
	now        func() time.Time
}

func NewEmbeddingCacheCleanupJob(purger Purger, maxAgeDays int) *RetentionJob {
	return newRetentionJob("embedding_cache_cleanup", purger, maxAgeDays)
}

func NewQALogCleanupJob(purger Purger, maxAgeDays int) *RetentionJob {
	return newRetentionJob("qa_log_cleanup", purger, maxAgeDays)
}

func newRetentionJob(name string, purger Purger, maxAgeDays int) *RetentionJob {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	return &RetentionJob{name: name, purger: purger, maxAgeDays: maxAgeDays, now: time.Now}
}

func (j *RetentionJob) Name() string {
	return j.name
}

func (j *RetentionJob) Run(ctx context.Context) error {
	if j.purger == nil {
		return nil
	}
	cutoff := j.now().Add(-time.Duration(j.maxAgeDays) * 24 * time.Hour).Unix()
	removed, err := j.purger.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("expired rows purged", zap.String("job", j.name), zap.Int64("removed", removed))
	return nil
}
