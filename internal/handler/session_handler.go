package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/dto"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/service"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/middleware"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/response"
)

// SessionHandler handles session management HTTP requests
type SessionHandler struct {
	sessions service.SessionService
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Get returns the session the request rode in on
// GET /api/v1/session
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok || sessionID == "" {
		c.JSON(http.StatusUnauthorized, response.Error(response.ErrCodeSessionNotFound, "No session on this request"))
		return
	}

	session, err := h.sessions.Load(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}
	if session == nil {
		c.JSON(http.StatusUnauthorized, response.Error(response.ErrCodeSessionNotFound, "Session not found or expired"))
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.FromSession(session)))
}

// Update merges partial fields onto the current session
// PATCH /api/v1/session
func (h *SessionHandler) Update(c *gin.Context) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok || sessionID == "" {
		c.JSON(http.StatusUnauthorized, response.Error(response.ErrCodeSessionNotFound, "No session on this request"))
		return
	}

	var req dto.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	session, err := h.sessions.Update(c.Request.Context(), sessionID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImmutableField):
			c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeUnprocessableEntity, "Session identity fields cannot be changed"))
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusUnauthorized, response.Error(response.ErrCodeSessionNotFound, "Session not found or expired"))
		default:
			c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.FromSession(session)))
}

// Delete ends the current session (logout). Deleting an already-gone
// session succeeds.
// DELETE /api/v1/session
func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok || sessionID == "" {
		c.JSON(http.StatusOK, response.Success(gin.H{"message": "Session ended"}))
		return
	}

	if err := h.sessions.Delete(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"message": "Session ended"}))
}
