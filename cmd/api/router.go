package main

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/di"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/handler"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/middleware"
)

// setupRouter wires the HTTP surface: probes, auth flows, the webhook
// ingress, and the session-scoped API the embedded admin app talks to.
func setupRouter(c *di.Container) *gin.Engine {
	cfg := c.Cfg
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		r.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	r.Use(middleware.CORS())

	// Probes
	r.GET("/health", c.HealthHandler.Health)
	r.GET("/ready", c.HealthHandler.Ready)

	// Platform authorization, reachable without a session
	auth := r.Group("/auth")
	{
		auth.GET("/install", c.AuthHandler.Install)
		auth.GET("/callback", c.AuthHandler.Callback)
		auth.POST("/session", c.AuthHandler.Exchange)
	}

	// Session-scoped API for the embedded admin app
	sessionCfg := &middleware.SessionConfig{
		Resolver:       c.SessionResolver(),
		BypassEnabled:  cfg.Session.BypassEnabled,
		BypassClientID: cfg.Session.BypassClientID,
		BypassTenant:   cfg.Session.BypassTenant,
	}
	r.POST("/auth/logout", middleware.SessionMiddleware(sessionCfg), c.SessionHandler.Delete)

	// Webhook ingress, trusted by tenant lookup rather than session.
	// Rate limited per tenant so one noisy winery cannot starve the rest.
	webhookLimit := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.Webhook.RateLimitRPS,
		BurstSize:         cfg.Webhook.RateLimitBurst,
		KeyFunc: func(gc *gin.Context) string {
			if tenant := gc.GetHeader("X-Shopify-Shop-Domain"); tenant != "" {
				return tenant
			}
			return gc.ClientIP()
		},
	}
	webhooks := r.Group("/webhooks", middleware.RateLimiter(webhookLimit))
	{
		webhooks.GET("/c7", c.WebhookHandler.Ack)
		webhooks.POST("/c7", c.WebhookHandler.Commerce7)
		webhooks.GET("/shopify", c.WebhookHandler.Ack)
		webhooks.POST("/shopify", c.WebhookHandler.Shopify)
	}

	api := r.Group("/api/v1", middleware.SessionMiddleware(sessionCfg))
	if c.AuditLogger != nil {
		api.Use(middleware.AuditMiddleware(c.AuditLogger))
	}
	{
		api.GET("/session", c.SessionHandler.Get)
		api.PATCH("/session", c.SessionHandler.Update)
		api.DELETE("/session", c.SessionHandler.Delete)

		// Setup routes stay reachable before onboarding completes
		api.GET("/client", c.ClientHandler.Get)
		api.PUT("/client", c.ClientHandler.Update)
		api.POST("/client/setup-complete", c.ClientHandler.CompleteSetup)
		api.GET("/program", c.StageHandler.GetProgram)
		api.POST("/program", c.StageHandler.CreateProgram)
		api.PUT("/program", c.StageHandler.UpdateProgram)
		api.GET("/stages", c.StageHandler.ListStages)
		api.POST("/stages", c.StageHandler.CreateStage)
		api.GET("/stages/:id", c.StageHandler.GetStage)
		api.PUT("/stages/:id", c.StageHandler.UpdateStage)
		api.DELETE("/stages/:id", c.StageHandler.DeleteStage)

		// Operational routes gate on completed setup
		operational := api.Group("", handler.RequireSetupComplete(c.ClientService))
		{
			operational.POST("/qualification/preview", c.StageHandler.PreviewQualification)
			operational.POST("/enrollments", c.EnrollmentHandler.Enroll)
			operational.GET("/enrollments", c.EnrollmentHandler.List)
			operational.GET("/enrollments/:id", c.EnrollmentHandler.Get)
			operational.POST("/enrollments/:id/upgrade", c.EnrollmentHandler.Upgrade)
			operational.POST("/enrollments/:id/cancel", c.EnrollmentHandler.Cancel)
			operational.POST("/sync/run", c.EnrollmentHandler.RunSync)
			operational.GET("/webhooks/recent", c.WebhookHandler.ListRecent)
		}
	}

	return r
}
