package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/crm"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/dto"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/repository"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/config"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/logger"
)

const (
	commerce7SecretHeader   = "X-Webhook-Secret"
	shopifyShopDomainHeader = "X-Shopify-Shop-Domain"
	shopifyTopicHeader      = "X-Shopify-Topic"
)

// WebhookOutcome is what ingestion decided about one delivery. The
// handler maps dispositions onto HTTP statuses; platforms retry purely
// on status.
type WebhookOutcome struct {
	Disposition string
	Topic       domain.WebhookTopic
	ClientID    string
	TenantShop  string
	User        string
	Err         error
}

// WebhookService defines the interface for inbound webhook ingestion
type WebhookService interface {
	// ProcessCommerce7 runs a Commerce7 delivery through the pipeline:
	// shared secret, envelope parse, tenant auth, self-trigger
	// suppression, topic mapping, dispatch
	ProcessCommerce7(ctx context.Context, r *http.Request, body []byte) WebhookOutcome
	// ProcessShopify runs a Shopify delivery through the pipeline:
	// tenant auth, HMAC validation, topic mapping, dispatch
	ProcessShopify(ctx context.Context, r *http.Request, body []byte) WebhookOutcome
	// ListRecent retrieves the newest journal rows for a client
	ListRecent(ctx context.Context, clientID string, limit int) ([]*domain.WebhookEventRecord, error)
}

// webhookService implements WebhookService
type webhookService struct {
	cfg         config.WebhookConfig
	clients     repository.ClientRepository
	journal     repository.WebhookEventRepository
	providers   ProviderFactory
	enrollments EnrollmentService
	publisher   EventPublisher
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(cfg config.WebhookConfig, clients repository.ClientRepository, journal repository.WebhookEventRepository, providers ProviderFactory, enrollments EnrollmentService, publisher EventPublisher) WebhookService {
	return &webhookService{
		cfg:         cfg,
		clients:     clients,
		journal:     journal,
		providers:   providers,
		enrollments: enrollments,
		publisher:   publisher,
	}
}

// ProcessCommerce7 runs a Commerce7 delivery through the pipeline
func (s *webhookService) ProcessCommerce7(ctx context.Context, r *http.Request, body []byte) WebhookOutcome {
	if s.cfg.SharedSecret != "" {
		got := r.Header.Get(commerce7SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.SharedSecret)) != 1 {
			logger.WarnCtx(ctx, "webhook shared secret mismatch",
				zap.String("crm_type", domain.CRMTypeCommerce7))
			return s.finish(ctx, domain.CRMTypeCommerce7, WebhookOutcome{
				Disposition: domain.WebhookDispositionUnknownTenant,
				Err:         errors.New("shared secret mismatch"),
			})
		}
	}

	var env domain.Commerce7Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return s.finish(ctx, domain.CRMTypeCommerce7, WebhookOutcome{
			Disposition: domain.WebhookDispositionMalformed,
			Err:         fmt.Errorf("undecodable envelope: %w", err),
		})
	}
	if env.Object == "" || env.Action == "" || env.TenantID == "" {
		return s.finish(ctx, domain.CRMTypeCommerce7, WebhookOutcome{
			Disposition: domain.WebhookDispositionMalformed,
			TenantShop:  env.TenantID,
			Err:         errors.New("envelope missing object, action, or tenantId"),
		})
	}

	client, err := s.clients.GetByTenant(ctx, domain.CRMTypeCommerce7, env.TenantID)
	if err != nil {
		return s.finish(ctx, domain.CRMTypeCommerce7, WebhookOutcome{
			Disposition: domain.WebhookDispositionFailed,
			TenantShop:  env.TenantID,
			Err:         fmt.Errorf("failed to look up tenant: %w", err),
		})
	}
	if client == nil || !client.IsActive {
		logger.WarnCtx(ctx, "webhook from unknown tenant",
			zap.String("crm_type", domain.CRMTypeCommerce7),
			zap.String("tenant_shop", env.TenantID))
		return s.finish(ctx, domain.CRMTypeCommerce7, WebhookOutcome{
			Disposition: domain.WebhookDispositionUnknownTenant,
			TenantShop:  env.TenantID,
			Err:         errors.New("no active client for tenant"),
		})
	}

	if s.suppressedUser(env.User) {
		logger.InfoCtx(ctx, "webhook suppressed as self-triggered",
			zap.String("client_id", client.ID),
			zap.String("crm_type", domain.CRMTypeCommerce7))
		return s.finish(ctx, domain.CRMTypeCommerce7, WebhookOutcome{
			Disposition: domain.WebhookDispositionSuppressed,
			ClientID:    client.ID,
			TenantShop:  env.TenantID,
			User:        env.User,
		})
	}

	topic, ok := domain.TopicForCommerce7(env.Object, env.Action)
	if !ok {
		logger.WarnCtx(ctx, "webhook event not mapped",
			zap.String("client_id", client.ID),
			zap.String("object", env.Object),
			zap.String("action", env.Action))
		return s.finish(ctx, domain.CRMTypeCommerce7, WebhookOutcome{
			Disposition: domain.WebhookDispositionUnmapped,
			ClientID:    client.ID,
			TenantShop:  env.TenantID,
			User:        env.User,
			Err:         fmt.Errorf("no topic for %s:%s", env.Object, env.Action),
		})
	}

	event := &domain.WebhookEvent{
		Topic:      topic,
		CRMType:    domain.CRMTypeCommerce7,
		TenantShop: env.TenantID,
		User:       env.User,
		Payload:    env.Payload,
		ReceivedAt: time.Now(),
	}
	return s.dispatch(ctx, client, event, env.User)
}

// ProcessShopify runs a Shopify delivery through the pipeline
func (s *webhookService) ProcessShopify(ctx context.Context, r *http.Request, body []byte) WebhookOutcome {
	shop := strings.TrimSpace(r.Header.Get(shopifyShopDomainHeader))
	if shop == "" {
		return s.finish(ctx, domain.CRMTypeShopify, WebhookOutcome{
			Disposition: domain.WebhookDispositionMalformed,
			Err:         fmt.Errorf("delivery carries no %s header", shopifyShopDomainHeader),
		})
	}

	client, err := s.clients.GetByTenant(ctx, domain.CRMTypeShopify, shop)
	if err != nil {
		return s.finish(ctx, domain.CRMTypeShopify, WebhookOutcome{
			Disposition: domain.WebhookDispositionFailed,
			TenantShop:  shop,
			Err:         fmt.Errorf("failed to look up tenant: %w", err),
		})
	}
	if client == nil || !client.IsActive {
		logger.WarnCtx(ctx, "webhook from unknown tenant",
			zap.String("crm_type", domain.CRMTypeShopify),
			zap.String("tenant_shop", shop))
		return s.finish(ctx, domain.CRMTypeShopify, WebhookOutcome{
			Disposition: domain.WebhookDispositionUnknownTenant,
			TenantShop:  shop,
			Err:         errors.New("no active client for tenant"),
		})
	}

	provider, err := s.providers.ProviderFor(ctx, client)
	if err != nil {
		return s.finish(ctx, domain.CRMTypeShopify, WebhookOutcome{
			Disposition: domain.WebhookDispositionFailed,
			ClientID:    client.ID,
			TenantShop:  shop,
			Err:         err,
		})
	}
	if err := provider.ValidateWebhook(r, body); err != nil {
		logger.WarnCtx(ctx, "webhook signature rejected",
			zap.String("client_id", client.ID),
			zap.String("crm_type", domain.CRMTypeShopify),
			zap.Error(err))
		return s.finish(ctx, domain.CRMTypeShopify, WebhookOutcome{
			Disposition: domain.WebhookDispositionUnknownTenant,
			ClientID:    client.ID,
			TenantShop:  shop,
			Err:         err,
		})
	}

	topicHeader := r.Header.Get(shopifyTopicHeader)
	topic, ok := domain.TopicForShopify(topicHeader)
	if !ok {
		logger.WarnCtx(ctx, "webhook event not mapped",
			zap.String("client_id", client.ID),
			zap.String("topic", topicHeader))
		return s.finish(ctx, domain.CRMTypeShopify, WebhookOutcome{
			Disposition: domain.WebhookDispositionUnmapped,
			ClientID:    client.ID,
			TenantShop:  shop,
			Err:         fmt.Errorf("no topic for %q", topicHeader),
		})
	}

	if len(body) > 0 && !json.Valid(body) {
		return s.finish(ctx, domain.CRMTypeShopify, WebhookOutcome{
			Disposition: domain.WebhookDispositionMalformed,
			ClientID:    client.ID,
			TenantShop:  shop,
			Topic:       topic,
			Err:         errors.New("payload is not valid JSON"),
		})
	}

	event := &domain.WebhookEvent{
		Topic:      topic,
		CRMType:    domain.CRMTypeShopify,
		TenantShop: shop,
		Payload:    body,
		ReceivedAt: time.Now(),
	}
	return s.dispatch(ctx, client, event, "")
}

// dispatch hands a normalized event to the provider and drives the
// order-qualification hook on orders/create
func (s *webhookService) dispatch(ctx context.Context, client *domain.Client, event *domain.WebhookEvent, user string) WebhookOutcome {
	provider, err := s.providers.ProviderFor(ctx, client)
	if err != nil {
		return s.finish(ctx, event.CRMType, WebhookOutcome{
			Disposition: domain.WebhookDispositionFailed,
			Topic:       event.Topic,
			ClientID:    client.ID,
			TenantShop:  event.TenantShop,
			User:        user,
			Err:         err,
		})
	}

	if err := provider.ProcessWebhook(ctx, event); err != nil {
		logger.ErrorCtx(ctx, "webhook processing failed",
			zap.String("client_id", client.ID),
			zap.String("topic", string(event.Topic)),
			zap.Error(err))
		return s.finish(ctx, event.CRMType, WebhookOutcome{
			Disposition: domain.WebhookDispositionFailed,
			Topic:       event.Topic,
			ClientID:    client.ID,
			TenantShop:  event.TenantShop,
			User:        user,
			Err:         err,
		})
	}

	if event.Topic == domain.TopicOrdersCreate {
		s.qualifyFromOrder(ctx, client, event)
	}

	return s.finish(ctx, event.CRMType, WebhookOutcome{
		Disposition: domain.WebhookDispositionProcessed,
		Topic:       event.Topic,
		ClientID:    client.ID,
		TenantShop:  event.TenantShop,
		User:        user,
	})
}

// qualifyFromOrder runs the order total through tier qualification. A
// failure here never fails the delivery: the order itself was already
// reconciled, and the platform must not redeliver it.
func (s *webhookService) qualifyFromOrder(ctx context.Context, client *domain.Client, event *domain.WebhookEvent) {
	platformCustomerID, total, err := crm.OrderSignal(event)
	if err != nil {
		logger.WarnCtx(ctx, "order signal extraction failed",
			zap.String("client_id", client.ID),
			zap.Error(err))
		return
	}
	if platformCustomerID == "" {
		return
	}
	if err := s.enrollments.HandleOrderPlaced(ctx, client, platformCustomerID, total); err != nil {
		logger.ErrorCtx(ctx, "order qualification failed",
			zap.String("client_id", client.ID),
			zap.Error(err))
	}
}

// suppressedUser reports whether the event originated from one of this
// service's own integration accounts
func (s *webhookService) suppressedUser(user string) bool {
	if user == "" {
		return false
	}
	for _, email := range s.cfg.IntegrationEmails {
		if strings.EqualFold(strings.TrimSpace(email), strings.TrimSpace(user)) {
			return true
		}
	}
	return false
}

// finish journals the delivery and publishes the ingestion event before
// returning the outcome unchanged
func (s *webhookService) finish(ctx context.Context, crmType string, outcome WebhookOutcome) WebhookOutcome {
	record := &domain.WebhookEventRecord{
		ID:          uuid.New().String(),
		ClientID:    outcome.ClientID,
		CRMType:     crmType,
		TenantShop:  outcome.TenantShop,
		Topic:       string(outcome.Topic),
		User:        outcome.User,
		Disposition: outcome.Disposition,
		ReceivedAt:  time.Now(),
	}
	if outcome.Err != nil {
		record.Error = outcome.Err.Error()
	}
	if err := s.journal.Record(ctx, record); err != nil {
		logger.WarnCtx(ctx, "failed to journal webhook delivery",
			zap.String("crm_type", crmType),
			zap.Error(err))
	}

	s.publisher.PublishAsync(ctx, dto.TopicWebhookReceived, &dto.WebhookReceivedEvent{
		EventType:   dto.TopicWebhookReceived,
		ClientID:    outcome.ClientID,
		CRMType:     crmType,
		Topic:       string(outcome.Topic),
		Disposition: outcome.Disposition,
		Timestamp:   time.Now(),
	})
	return outcome
}

// ListRecent retrieves the newest journal rows for a client
func (s *webhookService) ListRecent(ctx context.Context, clientID string, limit int) ([]*domain.WebhookEventRecord, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.journal.ListRecent(ctx, clientID, limit)
}
