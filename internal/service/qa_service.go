package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/legalrag/internal/model"
	"github.com/xxxsen/legalrag/internal/pkg/requestid"
	"github.com/xxxsen/legalrag/internal/rag"
)

type QAOptions struct {
	MaxQuestionChars int
	// CacheSize of zero disables the answer cache.
	CacheSize int
	CacheTTL  time.Duration
}

type QAService struct {
	asker    Asker
	audit    AuditStore
	cache    *expirable.LRU[string, *model.Answer]
	maxChars int
	now      func() time.Time
}

func NewQAService(asker Asker, audit AuditStore, opts QAOptions) *QAService {
	s := &QAService{
		asker:    asker,
		audit:    audit,
		maxChars: opts.MaxQuestionChars,
		now:      time.Now,
	}
	if opts.CacheSize > 0 && opts.CacheTTL > 0 {
		s.cache = expirable.NewLRU[string, *model.Answer](opts.CacheSize, nil, opts.CacheTTL)
	}
	return s
}

// Ask answers q and records the result in the audit log. Identical
// stateless questions are served from the answer cache.
func (s *QAService) Ask(ctx context.Context, q rag.Question) (*model.Answer, error) {
	text, err := s.cleanQuestion(q.Text)
	if err != nil {
		return nil, err
	}
	q.Text = text
	logger := logutil.GetLogger(ctx).With(zap.String("request_id", requestid.From(ctx)))

	key, cacheable := s.cacheKey(q)
	if cacheable {
		if cached, ok := s.cache.Get(key); ok {
			logger.Debug("answer cache hit")
			s.record(ctx, q, cached)
			return cached.Clone(), nil
		}
	}

	answer, err := s.asker.Ask(ctx, q)
	if err != nil {
		logger.Error("ask question failed", zap.Error(err))
		return nil, err
	}
	if cacheable && answer.Outcome != model.OutcomeDegraded {
		s.cache.Add(key, answer.Clone())
	}
	s.record(ctx, q, answer)
	return answer, nil
}

func (s *QAService) cleanQuestion(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || !utf8.ValidString(trimmed) {
		return "", rag.ErrInvalidInput
	}
	if s.maxChars > 0 && utf8.RuneCountInString(trimmed) > s.maxChars {
		return "", fmt.Errorf("%w: question longer than %d characters", rag.ErrInvalidInput, s.maxChars)
	}
	return trimmed, nil
}

// cacheKey only covers questions without history, whose answer depends on
// the question and context alone.
func (s *QAService) cacheKey(q rag.Question) (string, bool) {
	if s.cache == nil || len(q.History) > 0 {
		return "", false
	}
	hash := sha256.Sum256([]byte(q.Text + "\x00" + strings.TrimSpace(q.Context)))
	return "answer:" + hex.EncodeToString(hash[:]), true
}

func (s *QAService) record(ctx context.Context, q rag.Question, answer *model.Answer) {
	if s.audit == nil {
		return
	}
	entry := &model.QALog{
		ID:         newID(),
		RequestID:  requestid.From(ctx),
		Question:   q.Text,
		Answer:     answer.Text,
		Sources:    append([]model.Source(nil), answer.Sources...),
		Confidence: answer.Confidence,
		Outcome:    answer.Outcome,
		Ctime:      s.now().Unix(),
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		logutil.GetLogger(ctx).Warn("write audit log failed", zap.String("qa_log_id", entry.ID), zap.Error(err))
	}
}
