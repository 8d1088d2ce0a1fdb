package dto

import (
	"time"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// UpdateClientRequest represents a client profile update
type UpdateClientRequest struct {
	OrgName    *string        `json:"org_name,omitempty"`
	OwnerEmail *string        `json:"owner_email,omitempty" binding:"omitempty,email"`
	Settings   map[string]any `json:"settings,omitempty"`
}

// CompleteSetupRequest marks onboarding finished. The club program must
// already exist so operational routes have something to serve.
type CompleteSetupRequest struct {
	ClubProgramID string `json:"club_program_id" binding:"required"`
}

// ClientResponse represents a client returned to the embedded app
type ClientResponse struct {
	ID            string         `json:"id"`
	CRMType       string         `json:"crm_type"`
	TenantShop    string         `json:"tenant_shop"`
	OrgName       string         `json:"org_name,omitempty"`
	OwnerEmail    string         `json:"owner_email,omitempty"`
	SetupComplete bool           `json:"setup_complete"`
	Settings      map[string]any `json:"settings,omitempty"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// FromClient converts a domain Client to ClientResponse
func FromClient(c *domain.Client) *ClientResponse {
	return &ClientResponse{
		ID:            c.ID,
		CRMType:       c.CRMType,
		TenantShop:    c.TenantShop,
		OrgName:       c.OrgName,
		OwnerEmail:    c.OwnerEmail,
		SetupComplete: c.SetupComplete,
		Settings:      c.Settings,
		IsActive:      c.IsActive,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
