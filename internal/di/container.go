package di

import (
	"context"
	"net/http"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/crm"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/handler"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/notify"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/repository"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/service"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/sync"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/config"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/database"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/events"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/middleware"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/redis"
)

// Container holds all dependencies for the service
type Container struct {
	// Infrastructure
	Cfg       *config.Config
	DB        *database.PostgresDB
	Redis     *redis.Client
	Publisher *events.Publisher

	// Repositories
	SessionRepo    repository.SessionRepository
	ClientRepo     repository.ClientRepository
	ProgramRepo    repository.ClubProgramRepository
	StageRepo      repository.ClubStageRepository
	CustomerRepo   repository.CustomerRepository
	EnrollmentRepo repository.EnrollmentRepository
	WebhookRepo    repository.WebhookEventRepository

	// Collaborators
	Workflows *sync.StateMachine
	Notifier  notify.Notifier
	Providers service.ProviderFactory

	// Services
	SessionService       service.SessionService
	ClientService        service.ClientService
	StageService         service.StageService
	QualificationService service.QualificationService
	EnrollmentService    service.EnrollmentService
	WebhookService       service.WebhookService

	// Handlers
	HealthHandler     *handler.HealthHandler
	AuthHandler       *handler.AuthHandler
	SessionHandler    *handler.SessionHandler
	ClientHandler     *handler.ClientHandler
	StageHandler      *handler.StageHandler
	EnrollmentHandler *handler.EnrollmentHandler
	WebhookHandler    *handler.WebhookHandler

	// Middleware collaborators
	AuditLogger *middleware.AuditLogger
}

// ContainerConfig contains configuration for building the container.
// DB and Redis may be nil, in which case the in-memory repositories
// back the service (development bypass and tests). A nil Publisher is
// replaced with a no-op one.
type ContainerConfig struct {
	Cfg       *config.Config
	DB        *database.PostgresDB
	Redis     *redis.Client
	Publisher *events.Publisher
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		Cfg:       cfg.Cfg,
		DB:        cfg.DB,
		Redis:     cfg.Redis,
		Publisher: cfg.Publisher,
	}
	if c.Publisher == nil {
		c.Publisher, _ = events.NewPublisher(nil)
	}

	// Repositories
	if c.DB != nil {
		pool := c.DB.Pool()
		c.ClientRepo = repository.NewPostgresClientRepository(pool)
		c.ProgramRepo = repository.NewPostgresClubProgramRepository(pool)
		c.StageRepo = repository.NewPostgresClubStageRepository(pool)
		c.CustomerRepo = repository.NewPostgresCustomerRepository(pool)
		c.EnrollmentRepo = repository.NewPostgresEnrollmentRepository(pool)
		c.WebhookRepo = repository.NewPostgresWebhookEventRepository(pool)
		c.Workflows = sync.NewStateMachine(sync.NewPostgresStateStore(pool))
		c.AuditLogger = middleware.NewAuditLogger(middleware.DefaultAuditConfig(pool))
	} else {
		c.ClientRepo = repository.NewMemoryClientRepository()
		c.ProgramRepo = repository.NewMemoryClubProgramRepository()
		c.StageRepo = repository.NewMemoryClubStageRepository()
		c.CustomerRepo = repository.NewMemoryCustomerRepository()
		c.EnrollmentRepo = repository.NewMemoryEnrollmentRepository()
		c.WebhookRepo = repository.NewMemoryWebhookEventRepository()
		c.Workflows = sync.NewStateMachine(sync.NewMemoryStateStore())
	}
	if c.Redis != nil {
		c.SessionRepo = repository.NewRedisSessionRepository(c.Redis, c.Cfg.Session.TTL)
	} else {
		c.SessionRepo = repository.NewMemorySessionRepository()
	}

	// Collaborators
	c.Notifier = notify.New(notify.Config{
		Mode:    c.Cfg.Notify.Mode,
		URL:     c.Cfg.Notify.URL,
		Timeout: c.Cfg.Notify.Timeout,
	}, c.Publisher)
	c.Providers = service.NewProviderFactory(service.PlatformCredentials{
		Commerce7AppID:      c.Cfg.Commerce7.AppID,
		Commerce7AppSecret:  c.Cfg.Commerce7.SecretKey,
		Commerce7BaseURL:    c.Cfg.Commerce7.APIBaseURL,
		ShopifyAPIKey:       c.Cfg.Shopify.APIKey,
		ShopifyAPISecret:    c.Cfg.Shopify.APISecret,
		ShopifyScopes:       c.Cfg.Shopify.Scopes,
		WebhookSharedSecret: c.Cfg.Webhook.SharedSecret,
	}, crm.Dependencies{
		Clients:     c.ClientRepo,
		Customers:   c.CustomerRepo,
		Programs:    c.ProgramRepo,
		Stages:      c.StageRepo,
		Enrollments: c.EnrollmentRepo,
	})

	// Services
	c.SessionService = service.NewSessionService(c.SessionRepo)
	c.ClientService = service.NewClientService(c.ClientRepo, c.ProgramRepo, c.Publisher)
	c.StageService = service.NewStageService(c.ClientRepo, c.ProgramRepo, c.StageRepo, c.EnrollmentRepo, c.Providers)
	c.QualificationService = service.NewQualificationService(c.ProgramRepo, c.StageRepo, c.CustomerRepo)
	c.EnrollmentService = service.NewEnrollmentService(service.EnrollmentServiceDeps{
		Clients:     c.ClientRepo,
		Programs:    c.ProgramRepo,
		Stages:      c.StageRepo,
		Customers:   c.CustomerRepo,
		Enrollments: c.EnrollmentRepo,
		Providers:   c.Providers,
		Workflows:   c.Workflows,
		Qualifier:   c.QualificationService,
		Publisher:   c.Publisher,
		Notifier:    c.Notifier,
	})
	c.WebhookService = service.NewWebhookService(
		c.Cfg.Webhook,
		c.ClientRepo,
		c.WebhookRepo,
		c.Providers,
		c.EnrollmentService,
		c.Publisher,
	)

	// Handlers
	version := c.Cfg.App.Version
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis, version)
	c.AuthHandler = handler.NewAuthHandler(c.Cfg, c.ClientService, c.SessionService, nil)
	c.SessionHandler = handler.NewSessionHandler(c.SessionService)
	c.ClientHandler = handler.NewClientHandler(c.ClientService)
	c.StageHandler = handler.NewStageHandler(c.StageService, c.QualificationService)
	c.EnrollmentHandler = handler.NewEnrollmentHandler(c.EnrollmentService)
	c.WebhookHandler = handler.NewWebhookHandler(c.WebhookService)

	return c
}

// SessionResolver adapts the session service to the middleware seam
func (c *Container) SessionResolver() middleware.SessionResolver {
	return middleware.SessionResolverFunc(func(ctx context.Context, r *http.Request) (*middleware.ResolvedSession, error) {
		session, err := c.SessionService.ResolveFromRequest(ctx, r, "")
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, nil
		}
		return &middleware.ResolvedSession{
			ID:         session.ID,
			ClientID:   session.ClientID,
			TenantShop: session.TenantShop,
			CRMType:    session.CRMType,
		}, nil
	})
}

// Close releases container-held resources
func (c *Container) Close() {
	if c.AuditLogger != nil {
		_ = c.AuditLogger.Close()
	}
}
