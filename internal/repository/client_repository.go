package repository

import (
	"context"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// ClientRepository defines the interface for client (tenant) data access
type ClientRepository interface {
	// Create creates a new client
	Create(ctx context.Context, client *domain.Client) error
	// GetByID retrieves a client by ID
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	// GetByTenant retrieves the client bound to a platform identity.
	// (crm_type, tenant_shop) is unique, so at most one row matches.
	GetByTenant(ctx context.Context, crmType, tenantShop string) (*domain.Client, error)
	// Update updates a client
	Update(ctx context.Context, client *domain.Client) error
	// SoftDelete soft deletes a client
	SoftDelete(ctx context.Context, id string) error
}
