package service

import (
	"context"

	"github.com/xxxsen/legalrag/internal/model"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

func (s *AuditService) ListRecent(ctx context.Context, limit int) ([]model.QALog, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	return s.store.ListRecent(ctx, limit)
}
