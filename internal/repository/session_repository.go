package repository

import (
	"context"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// Session hash field names. Updates write individual fields so two
// concurrent partial updates (duplicate admin tabs) end up
// last-write-wins per field, never whole-record overwrites.
const (
	SessionFieldClientID    = "client_id"
	SessionFieldTenantShop  = "tenant_shop"
	SessionFieldCRMType     = "crm_type"
	SessionFieldUserName    = "user_name"
	SessionFieldUserEmail   = "user_email"
	SessionFieldAccessToken = "access_token"
	SessionFieldScope       = "scope"
	SessionFieldExpiresAt   = "expires_at"
	SessionFieldTheme       = "theme"
	SessionFieldCreatedAt   = "created_at"
	SessionFieldUpdatedAt   = "updated_at"
)

// SessionRepository defines the interface for session storage
type SessionRepository interface {
	// Create persists a new session under the store's TTL
	Create(ctx context.Context, session *domain.Session) error
	// GetByID retrieves a session, returning nil, nil on a miss
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// UpdateFields writes only the named fields from session
	UpdateFields(ctx context.Context, session *domain.Session, fields []string) error
	// Delete removes a session; deleting a missing session is not an error
	Delete(ctx context.Context, id string) error
}

// copyField copies one named session field from src to dst. Both store
// implementations use it so field-update semantics cannot drift apart.
func copyField(dst, src *domain.Session, field string) {
	switch field {
	case SessionFieldClientID:
		dst.ClientID = src.ClientID
	case SessionFieldTenantShop:
		dst.TenantShop = src.TenantShop
	case SessionFieldCRMType:
		dst.CRMType = src.CRMType
	case SessionFieldUserName:
		dst.UserName = src.UserName
	case SessionFieldUserEmail:
		dst.UserEmail = src.UserEmail
	case SessionFieldAccessToken:
		dst.AccessToken = src.AccessToken
	case SessionFieldScope:
		dst.Scope = src.Scope
	case SessionFieldExpiresAt:
		dst.ExpiresAt = src.ExpiresAt
	case SessionFieldTheme:
		dst.Theme = src.Theme
	case SessionFieldCreatedAt:
		dst.CreatedAt = src.CreatedAt
	case SessionFieldUpdatedAt:
		dst.UpdatedAt = src.UpdatedAt
	}
}
