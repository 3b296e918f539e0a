package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/legalrag/internal/model"
	"github.com/xxxsen/legalrag/internal/pkg/errcode"
	"github.com/xxxsen/legalrag/internal/pkg/response"
	"github.com/xxxsen/legalrag/internal/rag"
	"github.com/xxxsen/legalrag/internal/service"
)

type QAHandler struct {
	qa    *service.QAService
	audit *service.AuditService
}

func NewQAHandler(qa *service.QAService, audit *service.AuditService) *QAHandler {
	return &QAHandler{qa: qa, audit: audit}
}

type askRequest struct {
	Question string                 `json:"question"`
	Context  string                 `json:"context"`
	History  []model.HistoryMessage `json:"history"`
}

func (h *QAHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, msgAnswerFailed)
		return
	}
	answer, err := h.qa.Ask(c.Request.Context(), rag.Question{
		Text:    req.Question,
		Context: req.Context,
		History: req.History,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}

func (h *QAHandler) Logs(c *gin.Context) {
	logs, err := h.audit.ListRecent(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Items(c, logs)
}
