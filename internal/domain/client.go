package domain

import (
	"time"
)

// Client represents one winery's account, tied to exactly one external
// platform identity. (crm_type, tenant_shop) is unique across the table.
type Client struct {
	ID            string         `json:"id"`
	CRMType       string         `json:"crm_type"` // commerce7, shopify
	TenantShop    string         `json:"tenant_shop"`
	OrgName       string         `json:"org_name,omitempty"`
	OwnerEmail    string         `json:"owner_email,omitempty"`
	AccessToken   string         `json:"-"`
	Scope         string         `json:"scope,omitempty"`
	SetupComplete bool           `json:"setup_complete"`
	Settings      map[string]any `json:"settings,omitempty"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     *time.Time     `json:"deleted_at,omitempty"` // Soft delete support
}

// IsOperational reports whether the client may use the app's club
// features. Routes beyond setup are gated on this.
func (c *Client) IsOperational() bool {
	return c.IsActive && c.SetupComplete && c.DeletedAt == nil
}

// Deactivate marks the client inactive, e.g. on app uninstall. The row
// is kept for re-install and audit history.
func (c *Client) Deactivate() {
	c.IsActive = false
	c.SetupComplete = false
	c.UpdatedAt = time.Now()
}
