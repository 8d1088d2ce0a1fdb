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

// StageHandler handles club program and tier ladder HTTP requests
type StageHandler struct {
	stages        service.StageService
	qualification service.QualificationService
}

// NewStageHandler creates a new StageHandler
func NewStageHandler(stages service.StageService, qualification service.QualificationService) *StageHandler {
	return &StageHandler{stages: stages, qualification: qualification}
}

// GetProgram returns the client's club program
// GET /api/v1/program
func (h *StageHandler) GetProgram(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	program, err := h.stages.GetProgram(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}
	if program == nil {
		c.JSON(http.StatusNotFound, response.NotFound("No club program configured"))
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromProgram(program)))
}

// CreateProgram creates the club program on first call and returns the
// existing one afterwards
// POST /api/v1/program
func (h *StageHandler) CreateProgram(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	var req dto.CreateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	program, err := h.stages.EnsureProgram(c.Request.Context(), clientID, &req)
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Client not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(dto.FromProgram(program)))
}

// UpdateProgram updates program metadata
// PUT /api/v1/program
func (h *StageHandler) UpdateProgram(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	var req dto.UpdateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	program, err := h.stages.UpdateProgram(c.Request.Context(), clientID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientNotFound):
			c.JSON(http.StatusNotFound, response.NotFound("Client not found"))
		case errors.Is(err, service.ErrNoProgram):
			c.JSON(http.StatusNotFound, response.NotFound("No club program configured"))
		default:
			c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromProgram(program)))
}

// ListStages returns the tier ladder ascending by stage_order
// GET /api/v1/stages
func (h *StageHandler) ListStages(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	activeOnly := c.Query("active_only") == "true"
	stages, err := h.stages.ListStages(c.Request.Context(), clientID, activeOnly)
	if err != nil {
		if errors.Is(err, service.ErrNoProgram) {
			c.JSON(http.StatusOK, response.Success(&dto.StageListResponse{Stages: []*dto.StageResponse{}}))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	out := &dto.StageListResponse{Stages: make([]*dto.StageResponse, 0, len(stages)), Total: len(stages)}
	for _, s := range stages {
		out.Stages = append(out.Stages, dto.FromStage(s))
	}
	c.JSON(http.StatusOK, response.Success(out))
}

// CreateStage adds a tier to the ladder
// POST /api/v1/stages
func (h *StageHandler) CreateStage(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	var req dto.CreateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	stage, err := h.stages.CreateStage(c.Request.Context(), clientID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoProgram):
			c.JSON(http.StatusConflict, response.Error(response.ErrCodeConflict, "Create the club program before adding tiers"))
		case errors.Is(err, service.ErrStageOrderTaken):
			c.JSON(http.StatusConflict, response.Error(response.ErrCodeDuplicateEntry, err.Error()))
		case errors.Is(err, service.ErrClientNotFound):
			c.JSON(http.StatusNotFound, response.NotFound("Client not found"))
		default:
			c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		}
		return
	}
	c.JSON(http.StatusCreated, response.Success(dto.FromStage(stage)))
}

// GetStage returns one tier within the client's scope
// GET /api/v1/stages/:id
func (h *StageHandler) GetStage(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	stage, err := h.stages.GetStage(c.Request.Context(), clientID, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrStageNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("Stage not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromStage(stage)))
}

// UpdateStage applies a partial tier update
// PUT /api/v1/stages/:id
func (h *StageHandler) UpdateStage(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	var req dto.UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	stage, err := h.stages.UpdateStage(c.Request.Context(), clientID, c.Param("id"), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStageNotFound):
			c.JSON(http.StatusNotFound, response.NotFound("Stage not found"))
		case errors.Is(err, service.ErrStageOrderTaken):
			c.JSON(http.StatusConflict, response.Error(response.ErrCodeDuplicateEntry, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromStage(stage)))
}

// DeleteStage retires a tier. Tiers with open enrollments soft-
// deactivate instead of disappearing, so historical memberships keep
// their reference.
// DELETE /api/v1/stages/:id
func (h *StageHandler) DeleteStage(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	if err := h.stages.DeleteStage(c.Request.Context(), clientID, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, service.ErrStageNotFound):
			c.JSON(http.StatusNotFound, response.NotFound("Stage not found"))
		case errors.Is(err, service.ErrStageInUse):
			c.JSON(http.StatusConflict, response.Error(response.ErrCodeConflict, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"message": "Stage retired"}))
}

// PreviewQualification answers a what-if qualification request
// POST /api/v1/qualification/preview
func (h *StageHandler) PreviewQualification(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	var req dto.QualificationPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.qualification.Preview(c.Request.Context(), clientID, &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromQualification(result)))
}
