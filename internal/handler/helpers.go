package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/legalrag/internal/ai"
	"github.com/xxxsen/legalrag/internal/pkg/errcode"
	appErr "github.com/xxxsen/legalrag/internal/pkg/errors"
	"github.com/xxxsen/legalrag/internal/pkg/response"
	"github.com/xxxsen/legalrag/internal/rag"
)

// Users only learn that answering failed; the log keeps the cause.
const msgAnswerFailed = "could not get an answer, please try again"

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, rag.ErrInvalidInput):
		response.Error(c, errcode.ErrInvalid, msgAnswerFailed)
	case errors.Is(err, rag.ErrConfiguration):
		response.Error(c, errcode.ErrMisconfigured, msgAnswerFailed)
	case errors.Is(err, rag.ErrEmbeddingFailure):
		response.Error(c, errcode.ErrEmbeddingFailed, msgAnswerFailed)
	case errors.Is(err, rag.ErrRetrievalFailure):
		response.Error(c, errcode.ErrRetrievalFailed, msgAnswerFailed)
	case errors.Is(err, rag.ErrGenerationFailure):
		response.Error(c, errcode.ErrGenerationFailed, msgAnswerFailed)
	case errors.Is(err, ai.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai provider unavailable")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrTooLarge):
		response.Error(c, errcode.ErrInvalidFile, "document too large")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
