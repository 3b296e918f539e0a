package repo

import (
	"context"
	"sync"

	"github.com/xxxsen/legalrag/internal/model"
)

const defaultMemoryQALogCapacity = 1000

// MemoryQALogRepo keeps the newest audit entries up to a fixed capacity.
type MemoryQALogRepo struct {
	mu       sync.Mutex
	capacity int
	items    []model.QALog
}

func NewMemoryQALogRepo(capacity int) *MemoryQALogRepo {
	if capacity <= 0 {
		capacity = defaultMemoryQALogCapacity
	}
	return &MemoryQALogRepo{capacity: capacity}
}

func (r *MemoryQALogRepo) Create(ctx context.Context, item *model.QALog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *item
	stored.Sources = append([]model.Source(nil), item.Sources...)
	r.items = append(r.items, stored)
	if over := len(r.items) - r.capacity; over > 0 {
		r.items = append([]model.QALog(nil), r.items[over:]...)
	}
	return nil
}

func (r *MemoryQALogRepo) ListRecent(ctx context.Context, limit int) ([]model.QALog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.QALog, 0, limit)
	for i := len(r.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.items[i])
	}
	return out, nil
}

func (r *MemoryQALogRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.items[:0:0]
	for _, item := range r.items {
		if item.Ctime >= cutoff {
			kept = append(kept, item)
		}
	}
	removed := int64(len(r.items) - len(kept))
	r.items = kept
	return removed, nil
}
