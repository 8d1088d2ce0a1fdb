package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/database"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/redis"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/response"
)

// HealthHandler handles health and readiness probes
type HealthHandler struct {
	db      *database.PostgresDB
	redis   *redis.Client
	version string
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *database.PostgresDB, redisClient *redis.Client, version string) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, version: version}
}

// Health handles liveness checks
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(gin.H{
		"status":  "ok",
		"version": h.version,
	}))
}

// Ready handles readiness checks, verifying the backing stores answer
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	ready := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["database"] = "unreachable"
			ready = false
		} else {
			checks["database"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			checks["redis"] = "unreachable"
			ready = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, response.ServiceUnavailable("Dependencies unavailable"))
		return
	}
	c.JSON(http.StatusOK, response.Success(checks))
}
