package crm

import (
	"testing"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

func TestNewProvider(t *testing.T) {
	c7Creds := Credentials{AppID: "app", AppSecret: "secret"}

	t.Run("commerce7", func(t *testing.T) {
		p, err := NewProvider(ProviderConfig{
			CRMType:     domain.CRMTypeCommerce7,
			TenantShop:  "silver-oak",
			Credentials: c7Creds,
		}, Dependencies{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := p.(*Commerce7Provider); !ok {
			t.Errorf("expected *Commerce7Provider, got %T", p)
		}
		if p.Name() != domain.CRMTypeCommerce7 {
			t.Errorf("expected name commerce7, got %s", p.Name())
		}
	})

	t.Run("shopify", func(t *testing.T) {
		p, err := NewProvider(ProviderConfig{
			CRMType:    domain.CRMTypeShopify,
			TenantShop: "ridge-wines.myshopify.com",
		}, Dependencies{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := p.(*ShopifyProvider); !ok {
			t.Errorf("expected *ShopifyProvider, got %T", p)
		}
	})

	t.Run("missing tenant", func(t *testing.T) {
		if _, err := NewProvider(ProviderConfig{CRMType: domain.CRMTypeCommerce7, Credentials: c7Creds}, Dependencies{}); err == nil {
			t.Error("expected error without tenant shop")
		}
	})

	t.Run("commerce7 without app credentials", func(t *testing.T) {
		if _, err := NewProvider(ProviderConfig{CRMType: domain.CRMTypeCommerce7, TenantShop: "silver-oak"}, Dependencies{}); err == nil {
			t.Error("expected error without app credentials")
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		if _, err := NewProvider(ProviderConfig{CRMType: "bigcommerce", TenantShop: "x"}, Dependencies{}); err == nil {
			t.Error("expected error for unsupported crm type")
		}
	})

	t.Run("independent instances per tenant", func(t *testing.T) {
		a, _ := NewProvider(ProviderConfig{CRMType: domain.CRMTypeCommerce7, TenantShop: "tenant-a", Credentials: c7Creds}, Dependencies{})
		b, _ := NewProvider(ProviderConfig{CRMType: domain.CRMTypeCommerce7, TenantShop: "tenant-b", Credentials: c7Creds}, Dependencies{})
		if a == b {
			t.Error("expected distinct provider instances per tenant")
		}
	})
}
