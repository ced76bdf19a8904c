package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"servex_backend/internal/services"
)

// SessionHandler drives the start and end of service.
type SessionHandler struct {
	sessionService services.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(ss services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: ss}
}

func (h *SessionHandler) StartService(c *gin.Context) {
	session, err := h.sessionService.StartService(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "start service")
		return
	}
	c.JSON(http.StatusCreated, session)
}

// EndService archives the running session with its metrics and clears live orders.
func (h *SessionHandler) EndService(c *gin.Context) {
	session, err := h.sessionService.EndService(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "end service")
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	session, err := h.sessionService.ActiveSession(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "fetch active session")
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) GetSessions(c *gin.Context) {
	sessions, err := h.sessionService.ArchivedSessions(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "fetch archived sessions")
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *SessionHandler) GetLiveMetrics(c *gin.Context) {
	metrics, err := h.sessionService.LiveMetrics(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "compute live metrics")
		return
	}
	c.JSON(http.StatusOK, metrics)
}
