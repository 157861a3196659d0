package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"papernotes/internal/jobs"
	"papernotes/internal/notes_service/service"
)

// Handler exposes the notes service over REST.
type Handler struct {
	service *service.Service
}

// NewHandler creates the HTTP handler set.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

type indexKeyRequest struct {
	IndexKey string `json:"index_key" binding:"required"`
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
}

type messageRequest struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) ingest(c *gin.Context) {
	var req indexKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, documentID, started, err := h.service.Ingest(c.Request.Context(), req.IndexKey)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"job_id":      jobID,
		"document_id": documentID,
		"started":     started,
	})
}

func (h *Handler) startNotes(c *gin.Context) {
	var req indexKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, documentID, started, err := h.service.StartNotes(c.Request.Context(), req.IndexKey)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"job_id":      jobID,
		"document_id": documentID,
		"started":     started,
	})
}

func (h *Handler) jobStatus(c *gin.Context) {
	rec := h.service.JobStatus(c.Param("job_id"))
	status := http.StatusOK
	if rec.Status == jobs.StatusNotFound {
		status = http.StatusNotFound
	}
	c.JSON(status, rec)
}

func (h *Handler) startChat(c *gin.Context) {
	var req indexKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.InitChat(c.Request.Context(), req.IndexKey)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) chatStatus(c *gin.Context) {
	session, rec, err := h.service.ChatStatus(c.Param("session_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":  session.ID,
		"document_id": session.DocumentID,
		"status":      rec.Status,
	})
}

// chatStream answers one message over server-sent events. Session lookup and
// ingestion priming happen before the stream starts, so a missing session is
// still a clean 404.
func (h *Handler) chatStream(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream, err := h.service.SendMessage(c.Request.Context(), c.Param("session_id"), req.Message)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		delta, ok := <-stream
		if !ok {
			c.SSEvent("done", "")
			return false
		}
		c.SSEvent("message", delta)
		return true
	})
}

func (h *Handler) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	papers, err := h.service.SearchPapers(c.Request.Context(), req.Query)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": papers})
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrUnknownPaper):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
