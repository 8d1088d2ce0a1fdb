package dto

import (
	"time"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// CreateSessionRequest represents the data captured when a platform
// admin user opens the app
type CreateSessionRequest struct {
	CRMType     string     `json:"crm_type" binding:"required,oneof=commerce7 shopify"`
	TenantShop  string     `json:"tenant_shop" binding:"required"`
	UserName    string     `json:"user_name,omitempty"`
	UserEmail   string     `json:"user_email,omitempty"`
	AccessToken string     `json:"access_token,omitempty"`
	Scope       string     `json:"scope,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Theme       string     `json:"theme,omitempty"`
}

// UpdateSessionRequest is a partial session update. Only non-nil fields
// are merged onto the stored record; id, client_id, tenant_shop and
// crm_type are immutable and rejected when present.
type UpdateSessionRequest struct {
	UserName    *string    `json:"user_name,omitempty"`
	UserEmail   *string    `json:"user_email,omitempty"`
	AccessToken *string    `json:"access_token,omitempty"`
	Scope       *string    `json:"scope,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Theme       *string    `json:"theme,omitempty"`

	// Immutable fields, accepted in the shape so attempts to change them
	// fail loudly instead of being silently dropped.
	ID         *string `json:"id,omitempty"`
	ClientID   *string `json:"client_id,omitempty"`
	TenantShop *string `json:"tenant_shop,omitempty"`
	CRMType    *string `json:"crm_type,omitempty"`
}

// TouchesImmutable reports whether the request tries to change a field
// that is fixed at session creation.
func (r *UpdateSessionRequest) TouchesImmutable() bool {
	return r.ID != nil || r.ClientID != nil || r.TenantShop != nil || r.CRMType != nil
}

// SessionResponse represents a session returned to the embedded app.
// The access token never leaves the server.
type SessionResponse struct {
	ID         string     `json:"id"`
	ClientID   string     `json:"client_id"`
	TenantShop string     `json:"tenant_shop"`
	CRMType    string     `json:"crm_type"`
	UserName   string     `json:"user_name,omitempty"`
	UserEmail  string     `json:"user_email,omitempty"`
	Scope      string     `json:"scope,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Theme      string     `json:"theme,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FromSession converts a domain Session to SessionResponse
func FromSession(s *domain.Session) *SessionResponse {
	return &SessionResponse{
		ID:         s.ID,
		ClientID:   s.ClientID,
		TenantShop: s.TenantShop,
		CRMType:    s.CRMType,
		UserName:   s.UserName,
		UserEmail:  s.UserEmail,
		Scope:      s.Scope,
		ExpiresAt:  s.ExpiresAt,
		Theme:      s.Theme,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}
