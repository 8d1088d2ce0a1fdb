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

// ClientHandler handles winery account HTTP requests
type ClientHandler struct {
	clients service.ClientService
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(clients service.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

// Get returns the session's client account
// GET /api/v1/client
func (h *ClientHandler) Get(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	client, err := h.clients.GetByID(c.Request.Context(), clientID)
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Client not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.FromClient(client)))
}

// Update updates the client profile
// PUT /api/v1/client
func (h *ClientHandler) Update(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	var req dto.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	client, err := h.clients.Update(c.Request.Context(), clientID, &req)
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Client not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.FromClient(client)))
}

// CompleteSetup marks onboarding finished, unlocking operational routes
// POST /api/v1/client/setup-complete
func (h *ClientHandler) CompleteSetup(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	var req dto.CompleteSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	client, err := h.clients.CompleteSetup(c.Request.Context(), clientID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientNotFound):
			c.JSON(http.StatusNotFound, response.NotFound("Client not found"))
		case errors.Is(err, service.ErrProgramRequired):
			c.JSON(http.StatusConflict, response.Error(response.ErrCodeConflict, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.FromClient(client)))
}
