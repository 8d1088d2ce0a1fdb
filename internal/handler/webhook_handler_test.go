package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubWebhookService returns a canned outcome regardless of delivery
type stubWebhookService struct {
	outcome service.WebhookOutcome
	calls   int
}

func (s *stubWebhookService) ProcessCommerce7(ctx context.Context, r *http.Request, body []byte) service.WebhookOutcome {
	s.calls++
	return s.outcome
}

func (s *stubWebhookService) ProcessShopify(ctx context.Context, r *http.Request, body []byte) service.WebhookOutcome {
	s.calls++
	return s.outcome
}

func (s *stubWebhookService) ListRecent(ctx context.Context, clientID string, limit int) ([]*domain.WebhookEventRecord, error) {
	return nil, nil
}

func webhookRouter(svc service.WebhookService) *gin.Engine {
	h := NewWebhookHandler(svc)
	r := gin.New()
	r.GET("/webhooks/c7", h.Ack)
	r.POST("/webhooks/c7", h.Commerce7)
	r.POST("/webhooks/shopify", h.Shopify)
	return r
}

func TestWebhookHandler_DispositionStatusContract(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		err         error
		wantStatus  int
		wantSuccess bool
	}{
		{"processed", domain.WebhookDispositionProcessed, nil, http.StatusOK, true},
		{"suppressed self-trigger is a success", domain.WebhookDispositionSuppressed, nil, http.StatusOK, true},
		{"unknown tenant", domain.WebhookDispositionUnknownTenant, errors.New("no active client"), http.StatusForbidden, false},
		{"unmapped event", domain.WebhookDispositionUnmapped, errors.New("no topic"), http.StatusBadRequest, false},
		{"malformed body", domain.WebhookDispositionMalformed, errors.New("bad json"), http.StatusBadRequest, false},
		{"processing failure retries on 5xx", domain.WebhookDispositionFailed, errors.New("provider down"), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubWebhookService{outcome: service.WebhookOutcome{
				Disposition: tt.disposition,
				Err:         tt.err,
			}}
			router := webhookRouter(svc)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/webhooks/c7", strings.NewReader(`{}`))
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			wantField := `"success":true`
			if !tt.wantSuccess {
				wantField = `"success":false`
			}
			if !strings.Contains(w.Body.String(), wantField) {
				t.Errorf("expected body to contain %s, got %s", wantField, w.Body.String())
			}
			if svc.calls != 1 {
				t.Errorf("expected 1 pipeline call, got %d", svc.calls)
			}
		})
	}
}

func TestWebhookHandler_GetReturnsStaticAck(t *testing.T) {
	svc := &stubWebhookService{}
	router := webhookRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/webhooks/c7", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.calls != 0 {
		t.Errorf("verification ping must not enter the pipeline, got %d calls", svc.calls)
	}
	if !strings.Contains(w.Body.String(), `"success":true`) {
		t.Errorf("expected ack body, got %s", w.Body.String())
	}
}

func TestWebhookHandler_ShopifyRouteUsesShopifyPipeline(t *testing.T) {
	svc := &stubWebhookService{outcome: service.WebhookOutcome{
		Disposition: domain.WebhookDispositionProcessed,
	}}
	router := webhookRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify", strings.NewReader(`{}`))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.calls != 1 {
		t.Errorf("expected 1 pipeline call, got %d", svc.calls)
	}
}
