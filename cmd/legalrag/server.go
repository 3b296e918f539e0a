package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/legalrag/internal/handler"
	"github.com/xxxsen/legalrag/internal/job"
	"github.com/xxxsen/legalrag/internal/middleware"
	"github.com/xxxsen/legalrag/internal/schedule"
)

func runServer(a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("corpus", cfg.Corpus.Type),
		zap.String("file_store", cfg.FileStore.Type),
	)

	deps := handler.RouterDeps{
		QA:             handler.NewQAHandler(a.qa, a.auditSvc),
		Documents:      handler.NewDocumentHandler(a.ingest),
		AskPerMinute:   cfg.HTTP.RateLimitPerMin,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.HTTP.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler, err := newScheduler(a)
	if err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func newScheduler(a *app) (*schedule.CronScheduler, error) {
	s := a.cfg.Schedule
	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewQALogCleanupJob(a.audit, s.QALogMaxAgeDay), s.QALogCleanup); err != nil {
		return nil, err
	}
	if err := scheduler.AddJob(job.NewStaleEmbeddingJob(a.ingest, s.StaleEmbeddingBatch), s.StaleEmbedding); err != nil {
		return nil, err
	}
	if a.embedCache != nil {
		if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(a.embedCache, s.EmbeddingCacheMaxAgeDay), s.EmbeddingCacheCleanup); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}

