package crm

import (
	"fmt"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// NewProvider constructs the provider for one tenant. Each call returns
// an independent instance bound to (crmType, tenantShop, credentials);
// there is no process-wide registry, so tests construct fakes or real
// providers directly without global setup.
func NewProvider(cfg ProviderConfig, deps Dependencies) (Provider, error) {
	if cfg.TenantShop == "" {
		return nil, fmt.Errorf("tenant shop is required")
	}
	if deps.Doer == nil {
		deps.Doer = NewRESTClient(0)
	}

	switch cfg.CRMType {
	case domain.CRMTypeCommerce7:
		if cfg.Credentials.AppID == "" || cfg.Credentials.AppSecret == "" {
			return nil, fmt.Errorf("commerce7 requires app credentials")
		}
		return NewCommerce7Provider(cfg, deps), nil
	case domain.CRMTypeShopify:
		return NewShopifyProvider(cfg, deps), nil
	default:
		return nil, fmt.Errorf("unsupported crm type %q", cfg.CRMType)
	}
}
