package api

import (
	"github.com/cankoe/request-tester/internal/history"
	"github.com/cankoe/request-tester/internal/proxy"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the engine with recovery, request logging and all routes.
func NewRouter(svc *proxy.Service, store history.Store) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())
	RegisterRoutes(r, svc, store)
	return r
}

// RegisterRoutes registers all top-level domain routes.
func RegisterRoutes(r *gin.Engine, svc *proxy.Service, store history.Store) {
	r.StaticFile("/docs/openapi.yml", "./docs/openapi.yml")
	r.GET("/healthz", healthHandler(store))

	group := r.Group("/api")
	{
		group.POST("/request", proxyRequestHandler(svc))

		group.GET("/history", listHistoryHandler(store))
		group.GET("/history/:id", getHistoryHandler(store))
		group.DELETE("/history/:id", deleteHistoryHandler(store))
		group.DELETE("/history", clearHistoryHandler(store))
	}
}
