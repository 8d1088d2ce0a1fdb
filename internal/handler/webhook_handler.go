package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/dto"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/service"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/middleware"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/response"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/telemetry"
)

// maxWebhookBody bounds the delivery body read into memory.
const maxWebhookBody = 1 << 20

// WebhookHandler handles inbound platform webhook deliveries
type WebhookHandler struct {
	webhooks service.WebhookService
	outcomes *telemetry.Counter
}

// NewWebhookHandler creates a new WebhookHandler. The outcome counter
// is optional; a nil counter disables metrics without branching at
// every call site.
func NewWebhookHandler(webhooks service.WebhookService) *WebhookHandler {
	h := &WebhookHandler{webhooks: webhooks}
	if counter, err := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "webhook_deliveries_total",
		Description: "Inbound webhook deliveries by platform and disposition",
	}); err == nil {
		h.outcomes = counter
	}
	return h
}

// Ack answers platform verification pings
// GET /webhooks/c7, GET /webhooks/shopify
func (h *WebhookHandler) Ack(c *gin.Context) {
	c.JSON(http.StatusOK, dto.AckOK("libero-vino webhook endpoint"))
}

// Commerce7 handles a Commerce7 webhook delivery
// POST /webhooks/c7
func (h *WebhookHandler) Commerce7(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.AckError("unreadable body"))
		return
	}

	outcome := h.webhooks.ProcessCommerce7(c.Request.Context(), c.Request, body)
	h.respond(c, domain.CRMTypeCommerce7, outcome)
}

// Shopify handles a Shopify webhook delivery
// POST /webhooks/shopify
func (h *WebhookHandler) Shopify(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.AckError("unreadable body"))
		return
	}

	outcome := h.webhooks.ProcessShopify(c.Request.Context(), c.Request, body)
	h.respond(c, domain.CRMTypeShopify, outcome)
}

// ListRecent retrieves the newest delivery journal rows for the
// session's client
// GET /api/v1/webhooks/recent
func (h *WebhookHandler) ListRecent(c *gin.Context) {
	clientID, ok := middleware.GetClientID(c)
	if !ok || clientID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return
	}

	records, err := h.webhooks.ListRecent(c.Request.Context(), clientID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"deliveries": records}))
}

// respond maps the ingestion disposition onto the HTTP status contract:
// 200 processed or intentionally ignored, 400 malformed/unmapped, 403
// untrusted tenant, 500 processing failure (platform retries on 5xx).
func (h *WebhookHandler) respond(c *gin.Context, crmType string, outcome service.WebhookOutcome) {
	if h.outcomes != nil {
		h.outcomes.Inc(c.Request.Context(),
			telemetry.CRMTypeAttr(crmType),
			telemetry.ErrorTypeAttr(outcome.Disposition),
		)
	}

	switch outcome.Disposition {
	case domain.WebhookDispositionProcessed:
		c.JSON(http.StatusOK, dto.AckOK("processed"))
	case domain.WebhookDispositionSuppressed:
		// Self-triggered events are a success, not an error; the write
		// that caused them was our own.
		c.JSON(http.StatusOK, dto.AckOK("ignored self-triggered event"))
	case domain.WebhookDispositionUnknownTenant:
		c.JSON(http.StatusForbidden, dto.AckError("unknown tenant"))
	case domain.WebhookDispositionUnmapped:
		c.JSON(http.StatusBadRequest, dto.AckError("unrecognized event type"))
	case domain.WebhookDispositionMalformed:
		c.JSON(http.StatusBadRequest, dto.AckError("malformed delivery"))
	default:
		msg := "webhook processing failed"
		if outcome.Err != nil {
			msg = outcome.Err.Error()
		}
		c.JSON(http.StatusInternalServerError, dto.AckError(msg))
	}
}
