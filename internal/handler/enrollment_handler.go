package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/crm"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/dto"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/service"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/middleware"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/response"
)

// EnrollmentHandler handles club membership HTTP requests
type EnrollmentHandler struct {
	enrollments service.EnrollmentService
}

// NewEnrollmentHandler creates a new EnrollmentHandler
func NewEnrollmentHandler(enrollments service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Enroll places a customer into a club stage
// POST /api/v1/enrollments
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	enrollment, err := h.enrollments.Enroll(c.Request.Context(), clientID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(dto.FromEnrollment(enrollment)))
}

// List returns a page of the client's enrollments
// GET /api/v1/enrollments
func (h *EnrollmentHandler) List(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	status := c.Query("status")

	enrollments, total, err := h.enrollments.List(c.Request.Context(), clientID, page, limit, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	out := make([]*dto.EnrollmentResponse, 0, len(enrollments))
	for _, e := range enrollments {
		out = append(out, dto.FromEnrollment(e))
	}
	c.JSON(http.StatusOK, response.Paginated(out, page, limit, int64(total)))
}

// Get returns one enrollment within the client's scope
// GET /api/v1/enrollments/:id
func (h *EnrollmentHandler) Get(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	enrollment, err := h.enrollments.GetByID(c.Request.Context(), clientID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromEnrollment(enrollment)))
}

// Upgrade moves an enrollment to a higher tier
// POST /api/v1/enrollments/:id/upgrade
func (h *EnrollmentHandler) Upgrade(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	var req dto.UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	enrollment, err := h.enrollments.Upgrade(c.Request.Context(), clientID, c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromEnrollment(enrollment)))
}

// Cancel ends a membership on the platform and locally
// POST /api/v1/enrollments/:id/cancel
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	enrollment, err := h.enrollments.Cancel(c.Request.Context(), clientID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.FromEnrollment(enrollment)))
}

// RunSync re-drives incomplete enrollment workflows through the same
// idempotent platform calls. An external scheduler hits this endpoint.
// POST /api/v1/sync/run
func (h *EnrollmentHandler) RunSync(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	report, err := h.enrollments.ResumePending(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(report))
}

// respondError maps enrollment and provider errors onto the envelope
func (h *EnrollmentHandler) respondError(c *gin.Context, err error) {
	var platformErr *crm.PlatformError
	switch {
	case errors.Is(err, service.ErrEnrollmentNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Enrollment not found"))
	case errors.Is(err, service.ErrClientNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Client not found"))
	case errors.Is(err, service.ErrStageNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Stage not found"))
	case errors.Is(err, service.ErrNoProgram):
		c.JSON(http.StatusConflict, response.Error(response.ErrCodeConflict, err.Error()))
	case errors.Is(err, service.ErrAlreadyEnrolled):
		c.JSON(http.StatusConflict, response.Error(response.ErrCodeDuplicateEntry, err.Error()))
	case errors.Is(err, service.ErrNotQualified):
		c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeTierNotQualified, err.Error()))
	case errors.Is(err, service.ErrNotAnUpgrade),
		errors.Is(err, service.ErrAddressRequired),
		errors.Is(err, service.ErrEnrollmentClosed),
		errors.Is(err, service.ErrEnrollmentSyncing):
		c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeUnprocessableEntity, err.Error()))
	case errors.Is(err, service.ErrSyncIncomplete):
		// The local row exists; the resume pass finishes the platform
		// side. Tell the caller the work was accepted, not lost.
		c.JSON(http.StatusAccepted, response.Error(response.ErrCodeServiceUnavailable, err.Error()))
	case errors.Is(err, crm.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, response.Error(response.ErrCodeRateLimited, "Platform rate limited, retry shortly"))
	case errors.Is(err, crm.ErrAuthenticationFailed):
		c.JSON(http.StatusUnauthorized, response.Error(response.ErrCodeAuthenticationFailed, "Platform credentials rejected, reconnect your account"))
	case errors.Is(err, crm.ErrNotImplemented):
		c.JSON(http.StatusNotImplemented, response.Error(response.ErrCodeNotImplemented, err.Error()))
	case errors.As(err, &platformErr):
		c.JSON(http.StatusInternalServerError, response.Error(response.ErrCodePlatformError, platformErr.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
	}
}
