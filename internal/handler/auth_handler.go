package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/crm"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/dto"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/service"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/config"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/response"
)

// ProviderBuilder constructs a provider before any client row exists,
// which is the situation every install flow starts in.
type ProviderBuilder func(crmType, tenantShop string) (crm.Provider, error)

// DefaultProviderBuilder builds providers from the configured app
// credentials.
func DefaultProviderBuilder(cfg *config.Config) ProviderBuilder {
	return func(crmType, tenantShop string) (crm.Provider, error) {
		pc := crm.ProviderConfig{CRMType: crmType, TenantShop: tenantShop}
		switch crmType {
		case domain.CRMTypeCommerce7:
			pc.Credentials = crm.Credentials{
				AppID:         cfg.Commerce7.AppID,
				AppSecret:     cfg.Commerce7.SecretKey,
				WebhookSecret: cfg.Webhook.SharedSecret,
			}
			pc.BaseURL = cfg.Commerce7.APIBaseURL
		case domain.CRMTypeShopify:
			pc.Credentials = crm.Credentials{
				AppID:     cfg.Shopify.APIKey,
				APISecret: cfg.Shopify.APISecret,
			}
			pc.Scopes = cfg.Shopify.Scopes
		}
		return crm.NewProvider(pc, crm.Dependencies{})
	}
}

// AuthHandler handles platform authorization: install, OAuth callback,
// and embedded-app token exchange. Successful flows end in a session
// whose ID rides the URL back into the iframe.
type AuthHandler struct {
	cfg      *config.Config
	clients  service.ClientService
	sessions service.SessionService
	build    ProviderBuilder
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(cfg *config.Config, clients service.ClientService, sessions service.SessionService, build ProviderBuilder) *AuthHandler {
	if build == nil {
		build = DefaultProviderBuilder(cfg)
	}
	return &AuthHandler{cfg: cfg, clients: clients, sessions: sessions, build: build}
}

// exchangeRequest is the embedded-app authentication body. The token is
// a Commerce7 account token or a Shopify App Bridge session token.
type exchangeRequest struct {
	CRMType    string `json:"crm_type" binding:"omitempty,oneof=commerce7 shopify"`
	TenantShop string `json:"tenant_shop" binding:"required"`
	Token      string `json:"token" binding:"required"`
}

// Install begins an app install
// GET /auth/install?crm=...&shop=...
func (h *AuthHandler) Install(c *gin.Context) {
	crmType := h.resolveCRMType(c)
	if crmType == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("Cannot determine platform; pass crm=commerce7 or crm=shopify"))
		return
	}

	tenant := c.Query("shop")
	if tenant == "" {
		tenant = c.Query("tenant")
	}
	if tenant == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("A shop or tenant identifier is required"))
		return
	}

	provider, err := h.build(crmType, tenant)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	grant, err := provider.AuthorizeInstall(c.Request.Context(), crm.InstallParams{
		Shop:        tenant,
		RedirectURI: h.callbackURL(),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeAuthenticationFailed, err.Error()))
		return
	}

	// Shopify needs the merchant's consent screen; Commerce7 installs
	// complete without a browser hop.
	if grant.RedirectURL != "" {
		c.Redirect(http.StatusFound, grant.RedirectURL)
		return
	}
	h.finishInstall(c, crmType, tenant, grant)
}

// Callback completes an OAuth install
// GET /auth/callback?code=...&shop=...&state=...&hmac=...
func (h *AuthHandler) Callback(c *gin.Context) {
	shop := c.Query("shop")
	if shop == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("Callback carries no shop"))
		return
	}

	provider, err := h.build(domain.CRMTypeShopify, shop)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	grant, err := provider.AuthorizeInstall(c.Request.Context(), crm.InstallParams{
		Code:        c.Query("code"),
		State:       c.Query("state"),
		Shop:        shop,
		RedirectURI: h.callbackURL(),
		RawQuery:    c.Request.URL.RawQuery,
	})
	if err != nil {
		if errors.Is(err, crm.ErrAuthenticationFailed) {
			c.JSON(http.StatusUnauthorized, response.Error(response.ErrCodeAuthenticationFailed, "Platform rejected the authorization"))
			return
		}
		c.JSON(http.StatusBadGateway, response.Error(response.ErrCodePlatformError, err.Error()))
		return
	}

	h.finishInstall(c, domain.CRMTypeShopify, shop, grant)
}

// Exchange authenticates an embedded-app token and mints a session for
// it. This is how every admin page load becomes an authenticated
// context without cookies.
// POST /auth/session
func (h *AuthHandler) Exchange(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	crmType := req.CRMType
	if crmType == "" {
		crmType = h.resolveCRMType(c)
	}
	if !domain.ValidCRMType(crmType) {
		c.JSON(http.StatusBadRequest, response.BadRequest("Cannot determine platform; pass crm_type"))
		return
	}

	client, err := h.clients.GetByTenant(c.Request.Context(), crmType, req.TenantShop)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}
	if client == nil || !client.IsActive {
		c.JSON(http.StatusForbidden, response.UnknownTenant(""))
		return
	}

	provider, err := h.build(crmType, req.TenantShop)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	auth, err := provider.Authenticate(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, crm.ErrAuthenticationFailed) {
			c.JSON(http.StatusUnauthorized, response.Error(response.ErrCodeAuthenticationFailed, "Platform token rejected, reconnect your account"))
			return
		}
		c.JSON(http.StatusBadGateway, response.Error(response.ErrCodePlatformError, err.Error()))
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), client.ID, &dto.CreateSessionRequest{
		CRMType:     crmType,
		TenantShop:  req.TenantShop,
		UserName:    auth.UserName,
		UserEmail:   auth.UserEmail,
		AccessToken: auth.AccessToken,
		Scope:       auth.Scope,
		ExpiresAt:   auth.ExpiresAt,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(gin.H{
		"session":        dto.FromSession(session),
		"setup_complete": client.SetupComplete,
	}))
}

// finishInstall ensures the client row, mints the first session, and
// sends the browser back into the embedded app with the session on the
// URL.
func (h *AuthHandler) finishInstall(c *gin.Context, crmType, tenant string, grant *crm.InstallGrant) {
	client, created, err := h.clients.EnsureInstalled(c.Request.Context(), service.InstallInput{
		CRMType:     crmType,
		TenantShop:  tenant,
		AccessToken: grant.AccessToken,
		Scope:       grant.Scope,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), client.ID, &dto.CreateSessionRequest{
		CRMType:     crmType,
		TenantShop:  tenant,
		AccessToken: grant.AccessToken,
		Scope:       grant.Scope,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	target := h.cfg.App.BaseURL + "/?" + url.Values{
		"session": {session.ID},
	}.Encode()
	if created || !client.SetupComplete {
		target += "&setup=1"
	}
	c.Redirect(http.StatusFound, target)
}

// resolveCRMType reads the explicit crm parameter, falling back to the
// Host subdomain convention (c7. or shp.).
func (h *AuthHandler) resolveCRMType(c *gin.Context) string {
	if crmType := c.Query(service.CRMQueryParam); domain.ValidCRMType(crmType) {
		return crmType
	}
	return domain.InferCRMTypeFromHost(c.Request.Host)
}

// callbackURL is where OAuth flows land back on this service
func (h *AuthHandler) callbackURL() string {
	return h.cfg.App.BaseURL + "/auth/callback"
}
