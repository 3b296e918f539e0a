package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/legalrag/internal/middleware"
	"github.com/xxxsen/legalrag/internal/pkg/response"
)

type RouterDeps struct {
	QA             *QAHandler
	Documents      *DocumentHandler
	AskPerMinute   int
	MaxUploadBytes int64
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok", "time": time.Now().Unix()})
	})

	qa := api.Group("/qa")
	qa.POST("/ask", middleware.RateLimit(deps.AskPerMinute), deps.QA.Ask)
	qa.GET("/logs", deps.QA.Logs)

	docs := api.Group("/documents")
	docs.POST("", middleware.BodyLimit(deps.MaxUploadBytes), deps.Documents.Create)
	docs.POST("/upload", middleware.BodyLimit(deps.MaxUploadBytes), deps.Documents.Upload)
	docs.GET("", deps.Documents.List)
	docs.GET("/:id", deps.Documents.Get)
	docs.DELETE("/:id", deps.Documents.Delete)
}
