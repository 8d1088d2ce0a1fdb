package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/ids"
)

// CRMType constants. A client record is bound to exactly one platform
// for its whole life; crm_type never changes after creation.
const (
	CRMTypeCommerce7 = "commerce7"
	CRMTypeShopify   = "shopify"
)

// ValidCRMType reports whether t names a supported platform.
func ValidCRMType(t string) bool {
	return t == CRMTypeCommerce7 || t == CRMTypeShopify
}

// Session is one admin user's authenticated window into the app. The app
// runs inside the platform's admin iframe where third-party cookies are
// blocked, so the session ID travels as a `session` query parameter on
// every request instead of a cookie.
type Session struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	TenantShop  string     `json:"tenant_shop"`
	CRMType     string     `json:"crm_type"` // commerce7, shopify
	UserName    string     `json:"user_name,omitempty"`
	UserEmail   string     `json:"user_email,omitempty"`
	AccessToken string     `json:"-"`
	Scope       string     `json:"scope,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Theme       string     `json:"theme,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsExpired reports whether the session's platform credential has lapsed.
// Sessions without an expiry never expire on their own; they live until
// deleted or evicted by the store's TTL.
func (s *Session) IsExpired() bool {
	return s.ExpiresAt != nil && time.Now().After(*s.ExpiresAt)
}

// Subdomain prefixes used to route requests to the right platform.
// c7.<domain> serves Commerce7 tenants, shp.<domain> serves Shopify.
const (
	subdomainCommerce7 = "c7."
	subdomainShopify   = "shp."
)

// InferCRMTypeFromHost maps a request Host onto a platform by its
// subdomain prefix. Returns "" when the host carries no platform prefix
// (local and dev deployments), in which case callers fall back to an
// explicit query parameter.
func InferCRMTypeFromHost(host string) string {
	h := strings.ToLower(host)
	switch {
	case strings.HasPrefix(h, subdomainCommerce7):
		return CRMTypeCommerce7
	case strings.HasPrefix(h, subdomainShopify):
		return CRMTypeShopify
	default:
		return ""
	}
}

// NewSessionID builds a session ID of the form
// sess_{c7|shp}_{tenantSlug}_{ULID}. The platform and tenant tokens make
// an ID traceable during support work; the ULID suffix makes it globally
// unique and time-ordered in the store.
func NewSessionID(crmType, tenantShop string) string {
	platform := "c7"
	if crmType == CRMTypeShopify {
		platform = "shp"
	}
	return fmt.Sprintf("sess_%s_%s_%s", platform, TenantSlug(tenantShop), ids.New())
}

// TenantSlug condenses a tenant identifier into the short token embedded
// in session IDs, e.g. "silver-oak-cellars" -> "silveroak",
// "ridge-wines.myshopify.com" -> "ridgewines". The slug makes a session
// ID traceable to its tenant in logs and stores without being guessable
// on its own; uniqueness comes from the ULID suffix.
func TenantSlug(tenantShop string) string {
	s := strings.ToLower(tenantShop)
	if i := strings.IndexByte(s, '.'); i > 0 {
		s = s[:i]
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	slug := b.String()
	if len(slug) > 12 {
		slug = slug[:12]
	}
	if slug == "" {
		slug = "tenant"
	}
	return slug
}
