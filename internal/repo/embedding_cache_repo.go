package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/legalrag/internal/model"
	"github.com/xxxsen/legalrag/internal/pkg/dbutil"
)

// EmbeddingCacheRepo persists vectors so re-ingesting unchanged text and
// restarting the service do not call the provider again.
type EmbeddingCacheRepo struct {
	db *sql.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

// Get reports ok=false on a miss.
func (r *EmbeddingCacheRepo) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	where := map[string]interface{}{
		"model_name":   modelName,
		"task_type":    taskType,
		"content_hash": contentHash,
	}
	sqlStr, args, err := builder.BuildSelect("embedding_cache", where, []string{"embedding"})
	if err != nil {
		return nil, false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var vec pgvector.Vector
	switch err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&vec); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return vec.Slice(), true, nil
}

// Save upserts item; a later write for the same key refreshes ctime.
func (r *EmbeddingCacheRepo) Save(ctx context.Context, item *model.EmbeddingCache) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (model_name, task_type, content_hash, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (model_name, task_type, content_hash)
		DO UPDATE SET embedding = EXCLUDED.embedding, ctime = EXCLUDED.ctime`,
		item.ModelName, item.TaskType, item.ContentHash, pgvector.NewVector(item.Embedding), item.Ctime,
	)
	return err
}

func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("embedding_cache", map[string]interface{}{"ctime <": cutoff})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
