// Package handler provides the HTTP handlers of the apiserver.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragops/internal/apiserver/biz"
	"github.com/kart-io/ragops/pkg/errors"
	"github.com/kart-io/ragops/pkg/llm"
	"github.com/kart-io/ragops/pkg/response"
)

// RAGHandler handles search, ingestion and chat requests.
type RAGHandler struct {
	service     biz.Service
	defaultTopK int
}

// NewRAGHandler creates a handler over the given service.
func NewRAGHandler(service biz.Service, defaultTopK int) *RAGHandler {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &RAGHandler{
		service:     service,
		defaultTopK: defaultTopK,
	}
}

// SearchRequest is the body of the search endpoints. K and UseEmbeddings are
// pointers so an absent field can fall back to defaults while explicit
// invalid values still reach validation.
type SearchRequest struct {
	Query         string            `json:"query" binding:"required"`
	K             *int              `json:"k,omitempty"`
	UseEmbeddings *bool             `json:"use_embeddings,omitempty"`
	Filters       map[string]string `json:"filters,omitempty"`
}

func (h *RAGHandler) queryRequest(req *SearchRequest) *biz.QueryRequest {
	k := h.defaultTopK
	if req.K != nil {
		k = *req.K
	}
	useEmbeddings := true
	if req.UseEmbeddings != nil {
		useEmbeddings = *req.UseEmbeddings
	}
	return &biz.QueryRequest{
		Query:         req.Query,
		K:             k,
		UseEmbeddings: useEmbeddings,
		Filters:       req.Filters,
	}
}

// Search answers a question with retrieved context.
func (h *RAGHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteResponse(c, errors.ErrInvalidRequest.WithMessage(err.Error()), nil)
		return
	}

	result, err := h.service.Query(c.Request.Context(), h.queryRequest(&req))
	response.WriteResponse(c, err, result)
}

// SearchChunks retrieves chunks without generating an answer.
func (h *RAGHandler) SearchChunks(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteResponse(c, errors.ErrInvalidRequest.WithMessage(err.Error()), nil)
		return
	}

	result, err := h.service.SearchChunks(c.Request.Context(), h.queryRequest(&req))
	response.WriteResponse(c, err, result)
}

// SearchDirect runs a keyword search over whole documents.
func (h *RAGHandler) SearchDirect(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteResponse(c, errors.ErrInvalidRequest.WithMessage(err.Error()), nil)
		return
	}

	k := h.defaultTopK
	if req.K != nil {
		k = *req.K
	}
	result, err := h.service.SearchDocuments(c.Request.Context(), req.Query, k)
	response.WriteResponse(c, err, result)
}

// SearchRerank retrieves chunks and re-scores them by cosine similarity.
func (h *RAGHandler) SearchRerank(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteResponse(c, errors.ErrInvalidRequest.WithMessage(err.Error()), nil)
		return
	}

	result, err := h.service.SearchRerank(c.Request.Context(), h.queryRequest(&req))
	response.WriteResponse(c, err, result)
}

// IngestRequest is the body of the ingest endpoint.
type IngestRequest struct {
	Documents []*biz.IngestDocument `json:"documents" binding:"required"`
}

// Ingest indexes a batch of documents.
func (h *RAGHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteResponse(c, errors.ErrInvalidRequest.WithMessage(err.Error()), nil)
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), req.Documents)
	response.WriteResponse(c, err, result)
}

// DeleteDocument removes a document and its chunks.
func (h *RAGHandler) DeleteDocument(c *gin.Context) {
	documentID := c.Param("id")
	err := h.service.DeleteDocument(c.Request.Context(), documentID)
	response.WriteResponse(c, err, gin.H{"deleted": documentID})
}

// ChatRequest is the body of the chat passthrough endpoint.
type ChatRequest struct {
	Messages []llm.Message `json:"messages" binding:"required"`
}

// Chat forwards a conversation to the chat provider.
func (h *RAGHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteResponse(c, errors.ErrInvalidRequest.WithMessage(err.Error()), nil)
		return
	}

	reply, err := h.service.Chat(c.Request.Context(), req.Messages)
	if err != nil {
		response.WriteResponse(c, err, nil)
		return
	}
	response.WriteResponse(c, nil, gin.H{"reply": reply})
}

// Stats reports index counts, cache state and pipeline metrics.
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	response.WriteResponse(c, err, stats)
}

// Healthz reports liveness plus embedding provider readiness. The process
// is alive either way, so a degraded probe answers 503 with detail instead
// of the unified error envelope.
func (h *RAGHandler) Healthz(c *gin.Context) {
	if err := h.service.Probe(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"reason": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
