package repository

import (
	"context"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// CustomerRepository defines the interface for the local customer mirror
type CustomerRepository interface {
	// Upsert inserts or refreshes a customer keyed by
	// (client_id, platform_customer_id). Webhook redeliveries hit this
	// path, so it must converge rather than duplicate.
	Upsert(ctx context.Context, customer *domain.Customer) error
	// GetByID retrieves a customer by local ID
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	// GetByPlatformID retrieves a customer by its platform identity
	GetByPlatformID(ctx context.Context, clientID, platformCustomerID string) (*domain.Customer, error)
	// GetByEmail retrieves a customer by email within a client
	GetByEmail(ctx context.Context, clientID, email string) (*domain.Customer, error)
	// DeleteByPlatformID removes the local mirror row; missing rows are
	// not an error
	DeleteByPlatformID(ctx context.Context, clientID, platformCustomerID string) error
}
