package handler

import (
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/legalrag/internal/pkg/errcode"
	"github.com/xxxsen/legalrag/internal/pkg/response"
	"github.com/xxxsen/legalrag/internal/service"
	"github.com/xxxsen/legalrag/internal/source"
)

type DocumentHandler struct {
	ingest *service.IngestService
}

func NewDocumentHandler(ingest *service.IngestService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest}
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req service.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, err := h.ingest.Ingest(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

// Upload ingests a multipart "file" (pdf, markdown or text). The title
// defaults to the file name.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "read upload failed")
		return
	}
	defer f.Close()
	text, err := source.Extract(fh.Filename, f, fh.Size)
	if err != nil {
		handleError(c, err)
		return
	}
	req := service.IngestRequest{
		ID:       c.PostForm("id"),
		Title:    c.PostForm("title"),
		URL:      c.PostForm("url"),
		Category: c.PostForm("category"),
		Content:  text,
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
	}
	doc, err := h.ingest.Ingest(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.ingest.List(c.Request.Context(), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Items(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.ingest.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.ingest.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("id")})
}
