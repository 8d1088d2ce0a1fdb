package crm

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/thanhpk/randstr"
	"golang.org/x/oauth2"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

const shopifyAPIVersion = "2025-07"

// Header carrying Shopify's webhook body signature.
const shopifyHmacHeader = "X-Shopify-Hmac-Sha256"

// ShopifyProvider speaks the Shopify Admin REST API. Install runs the
// OAuth authorization-code flow; API calls carry the per-shop access
// token; inbound webhooks and OAuth callbacks are verified against the
// app's API secret. Shopify has no native wine-club object, so club,
// discount, and membership operations report ErrNotImplemented.
type ShopifyProvider struct {
	cfg  ProviderConfig
	deps Dependencies
	base string
}

// NewShopifyProvider builds a provider bound to one shop.
func NewShopifyProvider(cfg ProviderConfig, deps Dependencies) *ShopifyProvider {
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s/admin/api/%s", cfg.TenantShop, shopifyAPIVersion)
	}
	return &ShopifyProvider{
		cfg:  cfg,
		deps: deps,
		base: strings.TrimRight(base, "/"),
	}
}

func (p *ShopifyProvider) Name() string {
	return domain.CRMTypeShopify
}

// shopifyMoney converts a Shopify decimal-string money field to
// currency units. This is the only place that conversion happens.
func shopifyMoney(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// headers returns the auth headers every Admin API call carries.
func (p *ShopifyProvider) headers() http.Header {
	h := http.Header{}
	h.Set("X-Shopify-Access-Token", p.cfg.Credentials.AccessToken)
	return h
}

// --- wire shapes ---

type shopifyAddress struct {
	ID           int64  `json:"id,omitempty"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2,omitempty"`
	City         string `json:"city"`
	ProvinceCode string `json:"province_code,omitempty"`
	Zip          string `json:"zip"`
	CountryCode  string `json:"country_code"`
	Default      bool   `json:"default"`
}

func (a *shopifyAddress) toDomain() domain.Address {
	return domain.Address{
		ID:         formatShopifyID(a.ID),
		Address1:   a.Address1,
		Address2:   a.Address2,
		City:       a.City,
		State:      a.ProvinceCode,
		Zip:        a.Zip,
		CountryISO: a.CountryCode,
		IsDefault:  a.Default,
	}
}

func shopifyAddressBody(address domain.Address) *shopifyAddress {
	return &shopifyAddress{
		Address1:     address.Address1,
		Address2:     address.Address2,
		City:         address.City,
		ProvinceCode: address.State,
		Zip:          address.Zip,
		CountryCode:  address.CountryISO,
		Default:      address.IsDefault,
	}
}

type shopifyCustomer struct {
	ID         int64            `json:"id,omitempty"`
	Email      string           `json:"email"`
	FirstName  string           `json:"first_name,omitempty"`
	LastName   string           `json:"last_name,omitempty"`
	Phone      string           `json:"phone,omitempty"`
	TotalSpent string           `json:"total_spent,omitempty"`
	Currency   string           `json:"currency,omitempty"`
	Addresses  []shopifyAddress `json:"addresses,omitempty"`
}

func (c *shopifyCustomer) toDomain() *domain.Customer {
	return &domain.Customer{
		PlatformCustomerID: formatShopifyID(c.ID),
		Email:              c.Email,
		FirstName:          c.FirstName,
		LastName:           c.LastName,
		Phone:              c.Phone,
		LTV:                shopifyMoney(c.TotalSpent),
		Currency:           c.Currency,
	}
}

func shopifyCustomerBody(input CustomerInput) *shopifyCustomer {
	return &shopifyCustomer{
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
	}
}

// Shopify wraps every REST resource in a named envelope.
type shopifyCustomerEnvelope struct {
	Customer shopifyCustomer `json:"customer"`
}

type shopifyCustomerListEnvelope struct {
	Customers []shopifyCustomer `json:"customers"`
}

type shopifyAddressListEnvelope struct {
	Addresses []shopifyAddress `json:"addresses"`
}

type shopifyAddressEnvelope struct {
	CustomerAddress shopifyAddress `json:"customer_address"`
}

type shopifyOrderCustomer struct {
	ID int64 `json:"id"`
}

type shopifyOrder struct {
	Customer   *shopifyOrderCustomer `json:"customer,omitempty"`
	TotalPrice string                `json:"total_price"`
}

type shopifyWebhook struct {
	ID      int64  `json:"id,omitempty"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format,omitempty"`
}

type shopifyWebhookEnvelope struct {
	Webhook shopifyWebhook `json:"webhook"`
}

type shopifyWebhookListEnvelope struct {
	Webhooks []shopifyWebhook `json:"webhooks"`
}

func formatShopifyID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// --- identity ---

// shopifySessionClaims are the App Bridge session token claims this
// system cares about. dest names the shop the token was minted for.
type shopifySessionClaims struct {
	Dest string `json:"dest"`
	jwt.RegisteredClaims
}

// Authenticate verifies an App Bridge session token: HS256 signature
// with the app's API secret, audience equal to the app's API key, and a
// dest claim naming this provider's shop.
func (p *ShopifyProvider) Authenticate(ctx context.Context, token string) (*AuthResult, error) {
	if token == "" {
		return nil, fmt.Errorf("shopify: empty session token: %w", ErrAuthenticationFailed)
	}

	claims := &shopifySessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(p.cfg.Credentials.APISecret), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithAudience(p.cfg.Credentials.AppID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("shopify session token rejected: %w", ErrAuthenticationFailed)
	}

	shop := strings.TrimSuffix(strings.TrimPrefix(claims.Dest, "https://"), "/")
	if !strings.EqualFold(shop, p.cfg.TenantShop) {
		return nil, fmt.Errorf("shopify session token for wrong shop: %w", ErrAuthenticationFailed)
	}

	result := &AuthResult{
		UserName:    claims.Subject,
		AccessToken: p.cfg.Credentials.AccessToken,
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		result.ExpiresAt = &exp
	}
	return result, nil
}

func (p *ShopifyProvider) oauthConfig(shop, redirectURI string) *oauth2.Config {
	var scopes []string
	if p.cfg.Scopes != "" {
		scopes = strings.Split(p.cfg.Scopes, ",")
	}
	return &oauth2.Config{
		ClientID:     p.cfg.Credentials.AppID,
		ClientSecret: p.cfg.Credentials.APISecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   fmt.Sprintf("https://%s/admin/oauth/authorize", shop),
			TokenURL:  fmt.Sprintf("https://%s/admin/oauth/access_token", shop),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizeInstall runs the OAuth authorization-code flow. Without a
// code it returns the consent-screen redirect; with one it verifies the
// callback HMAC and exchanges the code for the shop's offline token.
func (p *ShopifyProvider) AuthorizeInstall(ctx context.Context, params InstallParams) (*InstallGrant, error) {
	shop := params.Shop
	if shop == "" {
		shop = p.cfg.TenantShop
	}
	if !ValidShopDomain(shop) {
		return nil, fmt.Errorf("invalid shopify shop domain %q", shop)
	}
	conf := p.oauthConfig(shop, params.RedirectURI)

	if params.Code == "" {
		state := params.State
		if state == "" {
			state = randstr.Hex(16)
		}
		return &InstallGrant{RedirectURL: conf.AuthCodeURL(state)}, nil
	}

	if err := verifyShopifyQueryHMAC(params.RawQuery, p.cfg.Credentials.APISecret); err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: doerTransport{p.deps.Doer}})
	tok, err := conf.Exchange(ctx, params.Code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("shopify rejected authorization code: %w", ErrAuthenticationFailed)
		}
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	grant := &InstallGrant{AccessToken: tok.AccessToken}
	if scope, ok := tok.Extra("scope").(string); ok {
		grant.Scope = scope
	}
	return grant, nil
}

// doerTransport adapts the provider Doer into the http.RoundTripper the
// oauth2 package wants, keeping the token exchange interceptable in
// tests.
type doerTransport struct {
	doer Doer
}

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.doer.Do(req)
}

// ValidShopDomain reports whether shop looks like a *.myshopify.com
// domain. Install requests carry attacker-controlled shop values, so
// anything else is rejected before a redirect is built from it.
func ValidShopDomain(shop string) bool {
	shop = strings.ToLower(shop)
	if !strings.HasSuffix(shop, ".myshopify.com") {
		return false
	}
	name := strings.TrimSuffix(shop, ".myshopify.com")
	if name == "" {
		return false
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}

// verifyShopifyQueryHMAC checks the hmac parameter Shopify appends to
// OAuth callbacks: hex HMAC-SHA256 over the remaining query parameters
// sorted and joined with &.
func verifyShopifyQueryHMAC(rawQuery, secret string) error {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return fmt.Errorf("unparseable callback query: %w", ErrAuthenticationFailed)
	}
	provided := values.Get("hmac")
	if provided == "" {
		return fmt.Errorf("callback carries no hmac: %w", ErrAuthenticationFailed)
	}
	values.Del("hmac")
	values.Del("signature")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+strings.Join(values[k], ","))
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	expected := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return fmt.Errorf("callback hmac mismatch: %w", ErrAuthenticationFailed)
	}
	return nil
}

// --- customers ---

func (p *ShopifyProvider) GetCustomer(ctx context.Context, platformCustomerID string) (*domain.Customer, error) {
	var env shopifyCustomerEnvelope
	endpoint := p.base + "/customers/" + url.PathEscape(platformCustomerID) + ".json"
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &env); err != nil {
		return nil, err
	}
	return env.Customer.toDomain(), nil
}

// GetCustomersWithLTV pages through the shop's customers. The REST
// listing is cursor-paged, so page numbers are emulated by chaining
// since_id batches.
func (p *ShopifyProvider) GetCustomersWithLTV(ctx context.Context, page, limit int) ([]*domain.Customer, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 250 {
		limit = 50
	}

	var batch []shopifyCustomer
	sinceID := int64(0)
	for i := 0; i < page; i++ {
		endpoint := fmt.Sprintf("%s/customers.json?limit=%d", p.base, limit)
		if sinceID > 0 {
			endpoint += fmt.Sprintf("&since_id=%d", sinceID)
		}
		var env shopifyCustomerListEnvelope
		if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &env); err != nil {
			return nil, err
		}
		batch = env.Customers
		if len(batch) == 0 {
			break
		}
		sinceID = batch[len(batch)-1].ID
	}

	customers := make([]*domain.Customer, 0, len(batch))
	for i := range batch {
		customers = append(customers, batch[i].toDomain())
	}
	return customers, nil
}

func (p *ShopifyProvider) CreateCustomer(ctx context.Context, input CustomerInput) (*domain.Customer, error) {
	body := map[string]*shopifyCustomer{"customer": shopifyCustomerBody(input)}
	var env shopifyCustomerEnvelope
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPost, p.base+"/customers.json", p.headers(), body, &env); err != nil {
		return nil, err
	}
	return env.Customer.toDomain(), nil
}

func (p *ShopifyProvider) UpsertCustomer(ctx context.Context, input CustomerInput) (*domain.Customer, error) {
	existing, err := p.FindCustomerByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return p.CreateCustomer(ctx, input)
	}

	body := map[string]*shopifyCustomer{"customer": shopifyCustomerBody(input)}
	var env shopifyCustomerEnvelope
	endpoint := p.base + "/customers/" + url.PathEscape(existing.PlatformCustomerID) + ".json"
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPut, endpoint, p.headers(), body, &env); err != nil {
		return nil, err
	}
	return env.Customer.toDomain(), nil
}

func (p *ShopifyProvider) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	if email == "" {
		return nil, nil
	}

	var env shopifyCustomerListEnvelope
	endpoint := p.base + "/customers/search.json?query=" + url.QueryEscape("email:"+email)
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &env); err != nil {
		return nil, err
	}

	for i := range env.Customers {
		if strings.EqualFold(env.Customers[i].Email, email) {
			return env.Customers[i].toDomain(), nil
		}
	}
	return nil, nil
}

// CreateCustomerWithAddress creates the customer with its default
// address inline, one REST call, so no partial state can be left behind.
func (p *ShopifyProvider) CreateCustomerWithAddress(ctx context.Context, input CustomerInput, address domain.Address) (*domain.Customer, error) {
	customer := shopifyCustomerBody(input)
	addr := shopifyAddressBody(address)
	addr.Default = true
	customer.Addresses = []shopifyAddress{*addr}

	body := map[string]*shopifyCustomer{"customer": customer}
	var env shopifyCustomerEnvelope
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPost, p.base+"/customers.json", p.headers(), body, &env); err != nil {
		return nil, err
	}
	return env.Customer.toDomain(), nil
}

func (p *ShopifyProvider) ListCustomerAddresses(ctx context.Context, platformCustomerID string) ([]domain.Address, error) {
	var env shopifyAddressListEnvelope
	endpoint := p.base + "/customers/" + url.PathEscape(platformCustomerID) + "/addresses.json"
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &env); err != nil {
		return nil, err
	}

	addresses := make([]domain.Address, 0, len(env.Addresses))
	for i := range env.Addresses {
		addresses = append(addresses, env.Addresses[i].toDomain())
	}
	return addresses, nil
}

func (p *ShopifyProvider) CreateCustomerAddress(ctx context.Context, platformCustomerID string, address domain.Address) (*domain.Address, error) {
	body := map[string]*shopifyAddress{"address": shopifyAddressBody(address)}
	var env shopifyAddressEnvelope
	endpoint := p.base + "/customers/" + url.PathEscape(platformCustomerID) + "/addresses.json"
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPost, endpoint, p.headers(), body, &env); err != nil {
		return nil, err
	}
	result := env.CustomerAddress.toDomain()
	return &result, nil
}

// ListCustomerPaymentMethods is not available over the Admin REST API;
// Shopify exposes stored payment methods through GraphQL only.
func (p *ShopifyProvider) ListCustomerPaymentMethods(ctx context.Context, platformCustomerID string) ([]domain.PaymentMethod, error) {
	return nil, fmt.Errorf("shopify payment methods: %w", ErrNotImplemented)
}

// --- discounts and clubs ---
//
// Shopify has no club or tier-discount object matching the wine-club
// model. These report ErrNotImplemented until the price-rules mapping
// lands.

func (p *ShopifyProvider) GetDiscount(ctx context.Context, discountID string) (*Discount, error) {
	return nil, fmt.Errorf("shopify discounts: %w", ErrNotImplemented)
}

func (p *ShopifyProvider) CreateDiscount(ctx context.Context, input DiscountInput) (*Discount, error) {
	return nil, fmt.Errorf("shopify discounts: %w", ErrNotImplemented)
}

func (p *ShopifyProvider) UpdateDiscount(ctx context.Context, discountID string, input DiscountInput) (*Discount, error) {
	return nil, fmt.Errorf("shopify discounts: %w", ErrNotImplemented)
}

func (p *ShopifyProvider) DeleteDiscount(ctx context.Context, discountID string) error {
	return fmt.Errorf("shopify discounts: %w", ErrNotImplemented)
}

func (p *ShopifyProvider) AddCustomerToDiscount(ctx context.Context, discountID, platformCustomerID string) error {
	return fmt.Errorf("shopify discounts: %w", ErrNotImplemented)
}

func (p *ShopifyProvider) RemoveCustomerFromDiscount(ctx context.Context, discountID, platformCustomerID string) error {
	return fmt.Errorf("shopify discounts: %w", ErrNotImplemented)
}

func (p *ShopifyProvider) UpsertClub(ctx context.Context, input ClubInput) (*Club, error) {
	return nil, fmt.Errorf("shopify clubs: %w", ErrNotImplemented)
}

func (p *ShopifyProvider) CreateClubMembership(ctx context.Context, input MembershipInput) (*Membership, error) {
	return nil, fmt.Errorf("shopify club memberships: %w", ErrNotImplemented)
}

func (p *ShopifyProvider) CancelClubMembership(ctx context.Context, membershipID string) error {
	return fmt.Errorf("shopify club memberships: %w", ErrNotImplemented)
}

// --- webhooks ---

// ValidateWebhook checks Shopify's body signature: base64 HMAC-SHA256
// of the raw body with the app's API secret.
func (p *ShopifyProvider) ValidateWebhook(r *http.Request, body []byte) error {
	secret := p.cfg.Credentials.APISecret
	if secret == "" {
		return fmt.Errorf("shopify webhook validation requires the api secret: %w", ErrAuthenticationFailed)
	}

	provided := r.Header.Get(shopifyHmacHeader)
	if provided == "" {
		return fmt.Errorf("delivery carries no %s header: %w", shopifyHmacHeader, ErrAuthenticationFailed)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return fmt.Errorf("webhook hmac mismatch: %w", ErrAuthenticationFailed)
	}
	return nil
}

// ProcessWebhook reconciles local rows from one normalized event.
func (p *ShopifyProvider) ProcessWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	client, err := p.deps.Clients.GetByTenant(ctx, domain.CRMTypeShopify, event.TenantShop)
	if err != nil {
		return fmt.Errorf("failed to load client for shop: %w", err)
	}
	if client == nil {
		return fmt.Errorf("no client registered for shop %s", event.TenantShop)
	}

	switch event.Topic {
	case domain.TopicCustomersUpdate:
		return p.reconcileCustomer(ctx, client, event.Payload)
	case domain.TopicCustomersDelete:
		var c shopifyCustomer
		if err := json.Unmarshal(event.Payload, &c); err != nil {
			return fmt.Errorf("undecodable customer payload: %w", err)
		}
		return p.deps.Customers.DeleteByPlatformID(ctx, client.ID, formatShopifyID(c.ID))
	case domain.TopicOrdersCreate:
		return p.refreshCustomerFromOrder(ctx, client, event.Payload)
	case domain.TopicAppUninstalled:
		return p.deactivateClient(ctx, client)
	default:
		return nil
	}
}

func (p *ShopifyProvider) reconcileCustomer(ctx context.Context, client *domain.Client, payload json.RawMessage) error {
	var c shopifyCustomer
	if err := json.Unmarshal(payload, &c); err != nil {
		return fmt.Errorf("undecodable customer payload: %w", err)
	}
	if c.ID == 0 {
		return fmt.Errorf("customer payload carries no id")
	}

	customer := c.toDomain()
	customer.ClientID = client.ID

	// Redacted payloads omit total_spent; keep the stored snapshot.
	if c.TotalSpent == "" {
		existing, err := p.deps.Customers.GetByPlatformID(ctx, client.ID, customer.PlatformCustomerID)
		if err != nil {
			return fmt.Errorf("failed to load customer mirror: %w", err)
		}
		if existing != nil {
			customer.LTV = existing.LTV
			customer.Currency = existing.Currency
		}
	}

	customer.PrepareForUpsert()
	return p.deps.Customers.Upsert(ctx, customer)
}

func (p *ShopifyProvider) refreshCustomerFromOrder(ctx context.Context, client *domain.Client, payload json.RawMessage) error {
	var order shopifyOrder
	if err := json.Unmarshal(payload, &order); err != nil {
		return fmt.Errorf("undecodable order payload: %w", err)
	}
	if order.Customer == nil || order.Customer.ID == 0 {
		// Guest checkout; nothing to reconcile.
		return nil
	}

	fresh, err := p.GetCustomer(ctx, formatShopifyID(order.Customer.ID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to refresh customer: %w", err)
	}
	fresh.ClientID = client.ID
	fresh.PrepareForUpsert()
	return p.deps.Customers.Upsert(ctx, fresh)
}

// deactivateClient handles app/uninstalled: the shop's token is revoked
// platform-side the moment the app is removed, so the client row is
// deactivated and its dead token dropped. The row survives for
// re-install and history.
func (p *ShopifyProvider) deactivateClient(ctx context.Context, client *domain.Client) error {
	if !client.IsActive {
		return nil
	}
	client.Deactivate()
	client.AccessToken = ""
	return p.deps.Clients.Update(ctx, client)
}

func (p *ShopifyProvider) RegisterWebhook(ctx context.Context, topic domain.WebhookTopic, callbackURL string) (string, error) {
	body := map[string]*shopifyWebhook{"webhook": {
		Topic:   string(topic),
		Address: callbackURL,
		Format:  "json",
	}}
	var env shopifyWebhookEnvelope
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPost, p.base+"/webhooks.json", p.headers(), body, &env); err != nil {
		return "", err
	}
	return formatShopifyID(env.Webhook.ID), nil
}

func (p *ShopifyProvider) ListWebhooks(ctx context.Context) ([]RegisteredWebhook, error) {
	var env shopifyWebhookListEnvelope
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, p.base+"/webhooks.json", p.headers(), nil, &env); err != nil {
		return nil, err
	}

	hooks := make([]RegisteredWebhook, 0, len(env.Webhooks))
	for _, w := range env.Webhooks {
		hooks = append(hooks, RegisteredWebhook{
			ID:      formatShopifyID(w.ID),
			Topic:   w.Topic,
			Address: w.Address,
		})
	}
	return hooks, nil
}

func (p *ShopifyProvider) DeleteWebhook(ctx context.Context, webhookID string) error {
	endpoint := p.base + "/webhooks/" + url.PathEscape(webhookID) + ".json"
	err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodDelete, endpoint, p.headers(), nil, nil)
	return ignoreNotFound(err)
}
