package api

import (
	"github.com/gin-gonic/gin"

	"papernotes/internal/notes_service/service"
)

// NewRouter builds the service's HTTP surface.
func NewRouter(svc *service.Service) *gin.Engine {
	router := gin.Default()
	handler := NewHandler(svc)

	api := router.Group("/api/v1")
	{
		api.POST("/ingest", handler.ingest)
		api.POST("/notes/start", handler.startNotes)
		api.GET("/notes/status/:job_id", handler.jobStatus)
		api.POST("/chat/start", handler.startChat)
		api.GET("/chat/status/:session_id", handler.chatStatus)
		api.POST("/chat/stream/:session_id", handler.chatStream)
		api.POST("/search", handler.search)
	}
	return router
}
