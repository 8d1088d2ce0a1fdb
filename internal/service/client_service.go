package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/dto"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/repository"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/logger"
)

var (
	ErrClientNotFound = errors.New("client not found")
	// ErrProgramRequired means setup completion referenced a club program
	// that does not exist or belongs to another client
	ErrProgramRequired = errors.New("a club program is required to complete setup")
)

// InstallInput carries the platform identity captured at install time
type InstallInput struct {
	CRMType     string
	TenantShop  string
	OrgName     string
	OwnerEmail  string
	AccessToken string
	Scope       string
}

// ClientService defines the interface for winery account management
type ClientService interface {
	// EnsureInstalled finds or creates the client bound to a platform
	// identity. Returns created=true when a new account was made;
	// re-installs reactivate the existing row.
	EnsureInstalled(ctx context.Context, input InstallInput) (client *domain.Client, created bool, err error)
	// GetByID retrieves a client by ID
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	// GetByTenant retrieves the client for a platform identity, nil when
	// none exists
	GetByTenant(ctx context.Context, crmType, tenantShop string) (*domain.Client, error)
	// Update updates the client profile
	Update(ctx context.Context, id string, req *dto.UpdateClientRequest) (*domain.Client, error)
	// CompleteSetup marks onboarding finished once a club program exists
	CompleteSetup(ctx context.Context, id string, req *dto.CompleteSetupRequest) (*domain.Client, error)
	// Deactivate marks the client uninstalled, keeping the row for
	// audit history and re-install
	Deactivate(ctx context.Context, id string) error
}

// clientService implements ClientService
type clientService struct {
	clients   repository.ClientRepository
	programs  repository.ClubProgramRepository
	publisher EventPublisher
}

// NewClientService creates a new ClientService
func NewClientService(clients repository.ClientRepository, programs repository.ClubProgramRepository, publisher EventPublisher) ClientService {
	return &clientService{
		clients:   clients,
		programs:  programs,
		publisher: publisher,
	}
}

// EnsureInstalled finds or creates the client bound to a platform identity
func (s *clientService) EnsureInstalled(ctx context.Context, input InstallInput) (*domain.Client, bool, error) {
	if !domain.ValidCRMType(input.CRMType) {
		return nil, false, errors.New("invalid crm_type")
	}
	if input.TenantShop == "" {
		return nil, false, errors.New("tenant_shop is required")
	}

	existing, err := s.clients.GetByTenant(ctx, input.CRMType, input.TenantShop)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		changed := false
		if !existing.IsActive {
			// Re-install of a previously uninstalled account
			existing.IsActive = true
			changed = true
		}
		if input.AccessToken != "" && input.AccessToken != existing.AccessToken {
			existing.AccessToken = input.AccessToken
			changed = true
		}
		if input.Scope != "" && input.Scope != existing.Scope {
			existing.Scope = input.Scope
			changed = true
		}
		if input.OrgName != "" && existing.OrgName == "" {
			existing.OrgName = input.OrgName
			changed = true
		}
		if input.OwnerEmail != "" && existing.OwnerEmail == "" {
			existing.OwnerEmail = input.OwnerEmail
			changed = true
		}
		if changed {
			existing.UpdatedAt = time.Now()
			if err := s.clients.Update(ctx, existing); err != nil {
				return nil, false, err
			}
		}
		return existing, false, nil
	}

	now := time.Now()
	client := &domain.Client{
		ID:          uuid.New().String(),
		CRMType:     input.CRMType,
		TenantShop:  input.TenantShop,
		OrgName:     input.OrgName,
		OwnerEmail:  input.OwnerEmail,
		AccessToken: input.AccessToken,
		Scope:       input.Scope,
		Settings:    make(map[string]any),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.clients.Create(ctx, client); err != nil {
		return nil, false, err
	}

	logger.InfoCtx(ctx, "client installed",
		zap.String("client_id", client.ID),
		zap.String("crm_type", client.CRMType),
		zap.String("tenant_shop", client.TenantShop),
	)
	s.publisher.PublishAsync(ctx, dto.TopicClientInstalled, &dto.ClientLifecycleEvent{
		EventType:  dto.TopicClientInstalled,
		ClientID:   client.ID,
		CRMType:    client.CRMType,
		TenantShop: client.TenantShop,
		Timestamp:  now,
	})

	return client, true, nil
}

// GetByID retrieves a client by ID
func (s *clientService) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// GetByTenant retrieves the client for a platform identity
func (s *clientService) GetByTenant(ctx context.Context, crmType, tenantShop string) (*domain.Client, error) {
	return s.clients.GetByTenant(ctx, crmType, tenantShop)
}

// Update updates the client profile
func (s *clientService) Update(ctx context.Context, id string, req *dto.UpdateClientRequest) (*domain.Client, error) {
	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, ErrClientNotFound
	}

	if req.OrgName != nil {
		client.OrgName = *req.OrgName
	}
	if req.OwnerEmail != nil {
		client.OwnerEmail = *req.OwnerEmail
	}
	if req.Settings != nil {
		client.Settings = req.Settings
	}
	client.UpdatedAt = time.Now()

	if err := s.clients.Update(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// CompleteSetup marks onboarding finished. The referenced club program
// must exist and belong to this client; operational routes stay gated
// until then.
func (s *clientService) CompleteSetup(ctx context.Context, id string, req *dto.CompleteSetupRequest) (*domain.Client, error) {
	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, ErrClientNotFound
	}

	program, err := s.programs.GetByID(ctx, req.ClubProgramID)
	if err != nil {
		return nil, err
	}
	if program == nil || program.ClientID != client.ID {
		return nil, ErrProgramRequired
	}

	if client.SetupComplete {
		return client, nil
	}

	client.SetupComplete = true
	client.UpdatedAt = time.Now()
	if err := s.clients.Update(ctx, client); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "client setup completed", zap.String("client_id", client.ID))
	return client, nil
}

// Deactivate marks the client uninstalled
func (s *clientService) Deactivate(ctx context.Context, id string) error {
	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if client == nil {
		return ErrClientNotFound
	}
	if !client.IsActive {
		return nil
	}

	client.Deactivate()
	client.AccessToken = ""
	if err := s.clients.Update(ctx, client); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "client deactivated", zap.String("client_id", client.ID))
	s.publisher.PublishAsync(ctx, dto.TopicClientUninstalled, &dto.ClientLifecycleEvent{
		EventType:  dto.TopicClientUninstalled,
		ClientID:   client.ID,
		CRMType:    client.CRMType,
		TenantShop: client.TenantShop,
		Timestamp:  time.Now(),
	})
	return nil
}
