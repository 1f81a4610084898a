// Package router registers the apiserver HTTP routes.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragops/internal/apiserver/biz"
	"github.com/kart-io/ragops/internal/apiserver/handler"
)

// Register mounts all API routes on the engine.
func Register(engine *gin.Engine, service biz.Service, defaultTopK int) {
	h := handler.NewRAGHandler(service, defaultTopK)

	engine.GET("/healthz", h.Healthz)

	v1 := engine.Group("/v1")
	{
		v1.POST("/search", h.Search)
		v1.POST("/search/chunks", h.SearchChunks)
		v1.POST("/search/direct", h.SearchDirect)
		v1.POST("/search/rerank", h.SearchRerank)
		v1.POST("/ingest", h.Ingest)
		v1.DELETE("/documents/:id", h.DeleteDocument)
		v1.POST("/chat", h.Chat)
		v1.GET("/stats", h.Stats)
	}
}
