package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/service"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/middleware"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/response"
)

// RequireSetupComplete blocks operational routes until the client has
// finished onboarding. The embedded app reads SETUP_REQUIRED and sends
// the operator into the setup wizard.
func RequireSetupComplete(clients service.ClientService) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, ok := middleware.GetClientID(c)
		if !ok || clientID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized(""))
			return
		}

		client, err := clients.GetByID(c.Request.Context(), clientID)
		if err != nil {
			if errors.Is(err, service.ErrClientNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("No account for this session"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.InternalError("Failed to load client"))
			return
		}
		if !client.IsOperational() {
			c.AbortWithStatusJSON(http.StatusConflict, response.SetupRequired(""))
			return
		}

		c.Next()
	}
}
