package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/legalrag/internal/ai"
	"github.com/xxxsen/legalrag/internal/handler"
	"github.com/xxxsen/legalrag/internal/middleware"
	"github.com/xxxsen/legalrag/internal/pkg/errcode"
	"github.com/xxxsen/legalrag/internal/rag"
	"github.com/xxxsen/legalrag/internal/repo"
	"github.com/xxxsen/legalrag/internal/service"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"message"`
	Data json.RawMessage `json:"data"`
}

type cannedGenerator struct {
	reply string
	err   error
}

func (g cannedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.reply, g.err
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return nil, ai.ErrUnavailable
}

func (failingEmbedder) ModelName() string { return "broken" }

func setupRouter(t *testing.T, embedder ai.IEmbedder, gen ai.IGenerator) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if embedder == nil {
		p, err := ai.NewProvider("local", map[string]interface{}{"dimension": 64})
		require.NoError(t, err)
		embedder = ai.NewEmbedder(p, "hash")
	}
	corpus := repo.NewMemoryCorpusRepo()
	audit := repo.NewMemoryQALogRepo(100)
	pipeline, err := rag.NewPipeline(embedder, corpus, gen, rag.Config{Retriever: rag.DefaultRetrieverConfig()})
	require.NoError(t, err)

	deps := handler.RouterDeps{
		QA:        handler.NewQAHandler(service.NewQAService(pipeline, audit, service.QAOptions{MaxQuestionChars: 500}), service.NewAuditService(audit)),
		Documents: handler.NewDocumentHandler(service.NewIngestService(corpus, embedder, nil, service.IngestOptions{})),
	}
	engine := gin.New()
	engine.Use(middleware.RequestID())
	handler.RegisterRoutes(engine.Group("/api/v1"), deps)
	return engine
}

func call(t *testing.T, h http.Handler, method, path string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var out envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

const notice = "Tenants must receive two months notice before eviction."

func TestIngestAskAndAudit(t *testing.T) {
	router := setupRouter(t, nil, cannedGenerator{reply: "Two months [Source 1]."})

	res := call(t, router, http.MethodPost, "/api/v1/documents", map[string]string{
		"title": "Tenancy guide", "category": "guide", "content": notice,
	})
	require.Equal(t, 0, res.Code)
	var doc struct {
		ID         string `json:"id"`
		ChunkCount int    `json:"chunk_count"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &doc))
	require.Equal(t, 1, doc.ChunkCount)

	res = call(t, router, http.MethodPost, "/api/v1/qa/ask", map[string]string{"question": notice})
	require.Equal(t, 0, res.Code)
	var answer struct {
		Text    string `json:"text"`
		Outcome string `json:"outcome"`
		Sources []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &answer))
	require.Equal(t, "Two months [Source 1].", answer.Text)
	require.Equal(t, "answered", answer.Outcome)
	require.Len(t, answer.Sources, 1)
	require.Equal(t, notice, answer.Sources[0].Snippet)

	res = call(t, router, http.MethodGet, "/api/v1/qa/logs?limit=5", nil)
	require.Equal(t, 0, res.Code)
	var logs struct {
		Items []struct {
			Outcome string `json:"outcome"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &logs))
	require.Len(t, logs.Items, 1)

	res = call(t, router, http.MethodDelete, "/api/v1/documents/"+doc.ID, nil)
	require.Equal(t, 0, res.Code)
	res = call(t, router, http.MethodGet, "/api/v1/documents/"+doc.ID, nil)
	require.Equal(t, errcode.ErrNotFound, res.Code)
}

func TestAskRefusalIsSuccess(t *testing.T) {
	router := setupRouter(t, nil, cannedGenerator{reply: "unused"})
	res := call(t, router, http.MethodPost, "/api/v1/qa/ask", map[string]string{"question": "Who won the 1966 World Cup?"})
	require.Equal(t, 0, res.Code)
	var answer struct {
		Text       string        `json:"text"`
		Sources    []interface{} `json:"sources"`
		Confidence float64       `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &answer))
	require.Equal(t, rag.RefusalMessage, answer.Text)
	require.NotNil(t, answer.Sources)
	require.Empty(t, answer.Sources)
	require.Equal(t, 0.0, answer.Confidence)
}

func TestAskErrorsUseGenericMessage(t *testing.T) {
	router := setupRouter(t, nil, cannedGenerator{})
	res := call(t, router, http.MethodPost, "/api/v1/qa/ask", map[string]string{"question": "   "})
	require.Equal(t, errcode.ErrInvalid, res.Code)
	require.Equal(t, "could not get an answer, please try again", res.Msg)

	router = setupRouter(t, failingEmbedder{}, cannedGenerator{})
	res = call(t, router, http.MethodPost, "/api/v1/qa/ask", map[string]string{"question": "Can I be evicted?"})
	require.Equal(t, errcode.ErrEmbeddingFailed, res.Code)
	require.Equal(t, "could not get an answer, please try again", res.Msg)
}

func TestIngestRejectsUnknownCategory(t *testing.T) {
	router := setupRouter(t, nil, cannedGenerator{})
	res := call(t, router, http.MethodPost, "/api/v1/documents", map[string]string{
		"title": "x", "category": "blog", "content": "y",
	})
	require.Equal(t, errcode.ErrInvalid, res.Code)
}

func TestHealthz(t *testing.T) {
	router := setupRouter(t, nil, cannedGenerator{})
	res := call(t, router, http.MethodGet, "/api/v1/healthz", nil)
	require.Equal(t, 0, res.Code)
}

func TestUploadMarkdown(t *testing.T) {
	router := setupRouter(t, nil, cannedGenerator{reply: "ok"})

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("category", "statute"))
	part, err := form.CreateFormFile("file", "housing-act.md")
	require.NoError(t, err)
	_, err = part.Write([]byte("# Housing Act\n\n" + notice))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	var res envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &res))
	require.Equal(t, 0, res.Code)
	var doc struct {
		Title    string `json:"title"`
		Category string `json:"category"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &doc))
	require.Equal(t, "housing-act", doc.Title)
	require.Equal(t, "statute", doc.Category)

	res = call(t, router, http.MethodPost, "/api/v1/documents/upload", nil)
	require.Equal(t, errcode.ErrInvalidFile, res.Code)
}
