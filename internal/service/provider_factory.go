package service

import (
	"context"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/crm"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// ProviderFactory builds the CRM provider bound to one client. Services
// depend on this seam so tests can hand back fakes without touching
// platform credentials.
type ProviderFactory interface {
	ProviderFor(ctx context.Context, client *domain.Client) (crm.Provider, error)
}

// PlatformCredentials carries the app-level secrets shared by every
// tenant on a platform. Per-tenant material (the Shopify shop token)
// comes from the client row at build time.
type PlatformCredentials struct {
	Commerce7AppID     string
	Commerce7AppSecret string
	Commerce7BaseURL   string

	ShopifyAPIKey    string
	ShopifyAPISecret string
	ShopifyScopes    string

	WebhookSharedSecret string
}

// crmProviderFactory implements ProviderFactory over crm.NewProvider
type crmProviderFactory struct {
	creds PlatformCredentials
	deps  crm.Dependencies
}

// NewProviderFactory creates the production provider factory
func NewProviderFactory(creds PlatformCredentials, deps crm.Dependencies) ProviderFactory {
	return &crmProviderFactory{creds: creds, deps: deps}
}

// ProviderFor builds the provider for the client's platform identity
func (f *crmProviderFactory) ProviderFor(ctx context.Context, client *domain.Client) (crm.Provider, error) {
	cfg := crm.ProviderConfig{
		CRMType:    client.CRMType,
		TenantShop: client.TenantShop,
	}

	switch client.CRMType {
	case domain.CRMTypeCommerce7:
		cfg.Credentials = crm.Credentials{
			AppID:         f.creds.Commerce7AppID,
			AppSecret:     f.creds.Commerce7AppSecret,
			WebhookSecret: f.creds.WebhookSharedSecret,
		}
		cfg.BaseURL = f.creds.Commerce7BaseURL
	case domain.CRMTypeShopify:
		cfg.Credentials = crm.Credentials{
			AppID:       f.creds.ShopifyAPIKey,
			APISecret:   f.creds.ShopifyAPISecret,
			AccessToken: client.AccessToken,
		}
		cfg.Scopes = f.creds.ShopifyScopes
	}

	return crm.NewProvider(cfg, f.deps)
}
