package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/legalrag/internal/ai"
	"github.com/xxxsen/legalrag/internal/model"
)

// Store is a persistent vector cache, usually repo.EmbeddingCacheRepo.
type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

// WithStore consults store before e and writes fresh vectors back. Store
// failures are logged and never fail the embedding.
func WithStore(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &storeEmbedder{next: e, store: store}
}

type storeEmbedder struct {
	next  ai.IEmbedder
	store Store
}

func (s *storeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	logger := logutil.GetLogger(ctx)
	key := NewKey(s.next.ModelName(), taskType, text)
	values, ok, err := s.store.Get(ctx, key.Model, key.TaskType, key.ContentHash)
	switch {
	case err != nil:
		logger.Warn("read embedding cache failed", zap.Error(err))
	case ok && len(values) > 0:
		logger.Debug("embedding cache hit", zap.String("layer", "store"), zap.String("task_type", taskType))
		return values, nil
	}
	res, err := s.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return res, nil
	}
	if err := s.store.Save(ctx, &model.EmbeddingCache{
		ModelName:   key.Model,
		TaskType:    key.TaskType,
		ContentHash: key.ContentHash,
		Embedding:   res,
		Ctime:       time.Now().Unix(),
	}); err != nil {
		logger.Warn("write embedding cache failed", zap.Error(err))
	}
	return res, nil
}

func (s *storeEmbedder) ModelName() string {
	return s.next.ModelName()
}
