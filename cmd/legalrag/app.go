package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/legalrag/internal/ai"
	"github.com/xxxsen/legalrag/internal/config"
	"github.com/xxxsen/legalrag/internal/db"
	"github.com/xxxsen/legalrag/internal/embedcache"
	"github.com/xxxsen/legalrag/internal/filestore"
	"github.com/xxxsen/legalrag/internal/model"
	"github.com/xxxsen/legalrag/internal/rag"
	"github.com/xxxsen/legalrag/internal/repo"
	"github.com/xxxsen/legalrag/internal/service"
)

const memoryAuditCapacity = 10000

type auditRepo interface {
	service.AuditStore
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// app holds every wired component. Commands use the parts they need.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	corpus     service.CorpusStore
	audit      auditRepo
	embedCache *repo.EmbeddingCacheRepo
	pipeline   *rag.Pipeline
	qa         *service.QAService
	auditSvc   *service.AuditService
	ingest     *service.IngestService
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.initStores(ctx); err != nil {
		return nil, err
	}
	providers, err := a.providers()
	if err != nil {
		return nil, err
	}
	embedder := a.buildEmbedder(providers)
	generator, err := a.buildGenerator(providers)
	if err != nil {
		return nil, err
	}
	if err := service.VerifyDimension(ctx, a.corpus, cfg.AI.EmbeddingDimension); err != nil {
		return nil, err
	}

	var opts []rag.Option
	if cfg.RAG.KeywordRouting {
		rules, err := keywordRules(cfg.RAG.KeywordRules)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rag.WithKeywordMatcher(rag.NewKeywordMatcher(rules)))
	}
	a.pipeline, err = rag.NewPipeline(embedder, a.corpus, generator, rag.Config{
		Retriever: rag.RetrieverConfig{
			Threshold:          *cfg.RAG.Threshold,
			TopK:               cfg.RAG.TopK,
			CandidateLimit:     cfg.RAG.CandidateLimit,
			AllowModelMismatch: cfg.RAG.AllowModelMismatch,
		},
		HistoryWindow: cfg.RAG.HistoryWindow,
		SnippetLength: cfg.RAG.SnippetLength,
		Dimension:     cfg.AI.EmbeddingDimension,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	archive, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}
	a.qa = service.NewQAService(a.pipeline, a.audit, service.QAOptions{
		MaxQuestionChars: cfg.RAG.MaxQuestionChars,
		CacheSize:        cfg.Cache.AnswerLRUSize,
		CacheTTL:         time.Duration(cfg.Cache.AnswerTTLSec) * time.Second,
	})
	a.auditSvc = service.NewAuditService(a.audit)
	a.ingest = service.NewIngestService(a.corpus, embedder, archive, service.IngestOptions{
		MaxInputChars: cfg.AI.MaxInputChars,
	})
	return a, nil
}

func (a *app) initStores(ctx context.Context) error {
	if a.cfg.Corpus.Type == config.CorpusTypeMemory {
		a.corpus = repo.NewMemoryCorpusRepo()
		a.audit = repo.NewMemoryQALogRepo(memoryAuditCapacity)
		logutil.GetLogger(ctx).Warn("using in-memory corpus, data is lost on exit")
		return nil
	}
	conn, err := db.Open(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return fmt.Errorf("migrations: %w", err)
	}
	a.db = conn
	a.corpus = repo.NewCorpusRepo(conn)
	a.audit = repo.NewQALogRepo(conn)
	if a.cfg.Cache.EmbeddingDB {
		a.embedCache = repo.NewEmbeddingCacheRepo(conn)
	}
	return nil
}

func (a *app) providers() (map[string]ai.IProvider, error) {
	out := make(map[string]ai.IProvider, len(a.cfg.AI.Providers))
	for _, p := range a.cfg.AI.Providers {
		provider, err := ai.NewProvider(p.Type, p.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", p.Name, err)
		}
		out[p.Name] = provider
	}
	return out, nil
}

func (a *app) guardConfig(name string) ai.GuardConfig {
	g := a.cfg.AI.Guard
	return ai.GuardConfig{
		Name:              name,
		Timeout:           time.Duration(a.cfg.AI.Timeout) * time.Second,
		RequestsPerSecond: g.RequestsPerSecond,
		Burst:             g.Burst,
		BreakerFailures:   g.BreakerFailures,
		BreakerCooldown:   time.Duration(g.BreakerCooldownSec) * time.Second,
	}
}

func (a *app) buildEmbedder(providers map[string]ai.IProvider) ai.IEmbedder {
	entries := make([]ai.EmbedderEntry, 0, len(a.cfg.AI.Embedders))
	for _, m := range a.cfg.AI.Embedders {
		name := m.Provider + "/" + m.Model
		e := ai.GuardEmbedder(ai.NewEmbedder(providers[m.Provider], m.Model), a.guardConfig(name))
		entries = append(entries, ai.EmbedderEntry{Name: name, Embedder: e})
	}
	embedder := ai.NewGroupEmbedder(entries)
	if a.embedCache != nil {
		embedder = embedcache.WithStore(embedder, a.embedCache)
	}
	ttl := time.Duration(a.cfg.Cache.EmbeddingLRUTTLSec) * time.Second
	return embedcache.WithLRU(embedder, a.cfg.Cache.EmbeddingLRUSize, ttl)
}

func (a *app) buildGenerator(providers map[string]ai.IProvider) (ai.IGenerator, error) {
	decoding := a.cfg.AI.Decoding.WithDefaults()
	entries := make([]ai.GeneratorEntry, 0, len(a.cfg.AI.Generators))
	for _, m := range a.cfg.AI.Generators {
		name := m.Provider + "/" + m.Model
		gen, err := ai.NewGenerator(providers[m.Provider], m.Model, decoding)
		if err != nil {
			return nil, fmt.Errorf("init generator %s: %w", name, err)
		}
		entries = append(entries, ai.GeneratorEntry{Name: name, Generator: ai.GuardGenerator(gen, a.guardConfig(name))})
	}
	return ai.NewGroupGenerator(entries), nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func keywordRules(items []config.KeywordRuleConfig) ([]rag.KeywordRule, error) {
	if len(items) == 0 {
		return rag.DefaultKeywordRules(), nil
	}
	rules := make([]rag.KeywordRule, 0, len(items))
	for _, item := range items {
		category, err := model.ParseCategory(item.Category)
		if err != nil {
			return nil, fmt.Errorf("rag.keyword_rules: %w", err)
		}
		rules = append(rules, rag.KeywordRule{Category: category, Keywords: item.Keywords})
	}
	return rules, nil
}
