package crm

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

const defaultCommerce7BaseURL = "https://api.commerce7.com/v1"

// Header carrying the optional shared secret configured on the
// Commerce7 developer portal for outbound webhooks.
const commerce7SecretHeader = "X-Webhook-Secret"

// Commerce7Provider speaks the Commerce7 Admin API. Authentication is
// app-level Basic auth plus a tenant header; there is no per-tenant
// token. All Commerce7 money fields arrive in cents and are normalized
// through centsToUnits before leaving this file.
type Commerce7Provider struct {
	cfg  ProviderConfig
	deps Dependencies
	base string
}

// NewCommerce7Provider builds a provider bound to one tenant.
func NewCommerce7Provider(cfg ProviderConfig, deps Dependencies) *Commerce7Provider {
	base := cfg.BaseURL
	if base == "" {
		base = defaultCommerce7BaseURL
	}
	return &Commerce7Provider{
		cfg:  cfg,
		deps: deps,
		base: strings.TrimRight(base, "/"),
	}
}

func (p *Commerce7Provider) Name() string {
	return domain.CRMTypeCommerce7
}

// centsToUnits converts a Commerce7 money amount to currency units.
// This is the only place that conversion happens; everything local to
// this system is already in currency units.
func centsToUnits(cents int64) float64 {
	return float64(cents) / 100
}

// headers returns the auth headers every Commerce7 API call carries.
func (p *Commerce7Provider) headers() http.Header {
	h := http.Header{}
	basic := base64.StdEncoding.EncodeToString([]byte(p.cfg.Credentials.AppID + ":" + p.cfg.Credentials.AppSecret))
	h.Set("Authorization", "Basic "+basic)
	h.Set("Tenant", p.cfg.TenantShop)
	return h
}

// --- wire shapes ---

type c7Email struct {
	Email string `json:"email"`
}

type c7Phone struct {
	Phone string `json:"phone"`
}

type c7OrderInformation struct {
	LifetimeValue int64 `json:"lifetimeValue"` // cents
	OrderCount    int   `json:"orderCount"`
}

type c7Customer struct {
	ID               string              `json:"id"`
	FirstName        string              `json:"firstName"`
	LastName         string              `json:"lastName"`
	Emails           []c7Email           `json:"emails,omitempty"`
	Phones           []c7Phone           `json:"phones,omitempty"`
	OrderInformation *c7OrderInformation `json:"orderInformation,omitempty"`
}

func (c *c7Customer) toDomain() *domain.Customer {
	customer := &domain.Customer{
		PlatformCustomerID: c.ID,
		FirstName:          c.FirstName,
		LastName:           c.LastName,
	}
	if len(c.Emails) > 0 {
		customer.Email = c.Emails[0].Email
	}
	if len(c.Phones) > 0 {
		customer.Phone = c.Phones[0].Phone
	}
	if c.OrderInformation != nil {
		customer.LTV = centsToUnits(c.OrderInformation.LifetimeValue)
	}
	return customer
}

func c7CustomerBody(input CustomerInput) *c7Customer {
	body := &c7Customer{
		FirstName: input.FirstName,
		LastName:  input.LastName,
	}
	if input.Email != "" {
		body.Emails = []c7Email{{Email: input.Email}}
	}
	if input.Phone != "" {
		body.Phones = []c7Phone{{Phone: input.Phone}}
	}
	return body
}

type c7CustomerList struct {
	Customers []c7Customer `json:"customers"`
	Total     int          `json:"total"`
}

type c7Address struct {
	ID          string `json:"id,omitempty"`
	Address     string `json:"address"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"stateCode,omitempty"`
	ZipCode     string `json:"zipCode"`
	CountryCode string `json:"countryCode"`
	IsDefault   bool   `json:"isDefault"`
}

func (a *c7Address) toDomain() domain.Address {
	return domain.Address{
		ID:         a.ID,
		Address1:   a.Address,
		Address2:   a.Address2,
		City:       a.City,
		State:      a.StateCode,
		Zip:        a.ZipCode,
		CountryISO: a.CountryCode,
		IsDefault:  a.IsDefault,
	}
}

func c7AddressBody(address domain.Address) *c7Address {
	return &c7Address{
		Address:     address.Address1,
		Address2:    address.Address2,
		City:        address.City,
		StateCode:   address.State,
		ZipCode:     address.Zip,
		CountryCode: address.CountryISO,
		IsDefault:   address.IsDefault,
	}
}

type c7AddressList struct {
	Addresses []c7Address `json:"addresses"`
}

type c7CreditCard struct {
	ID               string `json:"id"`
	CardBrand        string `json:"cardBrand,omitempty"`
	MaskedCardNumber string `json:"maskedCardNumber,omitempty"`
	ExpiryMo         int    `json:"expiryMo,omitempty"`
	ExpiryYr         int    `json:"expiryYr,omitempty"`
	IsDefault        bool   `json:"isDefault"`
}

func (c *c7CreditCard) toDomain() domain.PaymentMethod {
	last4 := c.MaskedCardNumber
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}
	return domain.PaymentMethod{
		ID:          c.ID,
		Brand:       c.CardBrand,
		Last4:       last4,
		ExpiryMonth: c.ExpiryMo,
		ExpiryYear:  c.ExpiryYr,
		IsDefault:   c.IsDefault,
	}
}

type c7CreditCardList struct {
	CreditCards []c7CreditCard `json:"creditCards"`
}

type c7Promotion struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	PercentOff float64 `json:"percentOff,omitempty"`
	Status     string  `json:"status,omitempty"`
}

func (pr *c7Promotion) toDiscount() *Discount {
	return &Discount{
		ID:         pr.ID,
		Title:      pr.Title,
		Percentage: pr.PercentOff,
		Active:     !strings.EqualFold(pr.Status, "Archived"),
	}
}

type c7Club struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
}

type c7ClubList struct {
	Clubs []c7Club `json:"clubs"`
	Total int      `json:"total"`
}

type c7ClubMembership struct {
	ID         string `json:"id,omitempty"`
	ClubID     string `json:"clubId"`
	CustomerID string `json:"customerId"`
	Status     string `json:"status,omitempty"`
}

func (m *c7ClubMembership) toMembership() *Membership {
	return &Membership{
		ID:         m.ID,
		ClubID:     m.ClubID,
		CustomerID: m.CustomerID,
		Status:     strings.ToLower(m.Status),
	}
}

type c7ClubMembershipList struct {
	ClubMemberships []c7ClubMembership `json:"clubMemberships"`
	Total           int                `json:"total"`
}

type c7Order struct {
	CustomerID    string `json:"customerId"`
	Total         int64  `json:"total"`         // cents
	TotalAfterTip int64  `json:"totalAfterTip"` // cents
}

type c7AccountUser struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type c7Webhook struct {
	ID     string `json:"id,omitempty"`
	Object string `json:"object"`
	Action string `json:"action"`
	URL    string `json:"url"`
}

type c7WebhookList struct {
	Webhooks []c7Webhook `json:"webhooks"`
}

// c7SubscriptionForTopic maps a normalized topic back to the Commerce7
// (object, action) pair used when registering webhooks.
func c7SubscriptionForTopic(topic domain.WebhookTopic) (object, action string, ok bool) {
	switch topic {
	case domain.TopicCustomersUpdate:
		return "Customer", "Update", true
	case domain.TopicCustomersDelete:
		return "Customer", "Delete", true
	case domain.TopicOrdersCreate:
		return "Order", "Create", true
	case domain.TopicClubUpdate:
		return "Club", "Update", true
	case domain.TopicClubDelete:
		return "Club", "Delete", true
	case domain.TopicClubMembershipUpdate:
		return "Club Membership", "Update", true
	case domain.TopicClubMembershipDelete:
		return "Club Membership", "Delete", true
	default:
		return "", "", false
	}
}

// --- identity ---

// Authenticate resolves the acting admin user behind an account-level
// token handed to the embedded app by the Commerce7 admin.
func (p *Commerce7Provider) Authenticate(ctx context.Context, token string) (*AuthResult, error) {
	if token == "" {
		return nil, fmt.Errorf("commerce7: empty token: %w", ErrAuthenticationFailed)
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set("Tenant", p.cfg.TenantShop)

	var user c7AccountUser
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, p.base+"/account/user", h, nil, &user); err != nil {
		return nil, err
	}

	return &AuthResult{
		UserName:    strings.TrimSpace(user.FirstName + " " + user.LastName),
		UserEmail:   user.Email,
		AccessToken: token,
	}, nil
}

// AuthorizeInstall completes a Commerce7 marketplace install. Commerce7
// apps authenticate with app credentials on every call, so no per-tenant
// token or browser hop is involved; the install only has to name the
// tenant.
func (p *Commerce7Provider) AuthorizeInstall(ctx context.Context, params InstallParams) (*InstallGrant, error) {
	if params.Shop == "" {
		return nil, fmt.Errorf("commerce7 install requires a tenant identifier")
	}
	return &InstallGrant{}, nil
}

// --- customers ---

func (p *Commerce7Provider) GetCustomer(ctx context.Context, platformCustomerID string) (*domain.Customer, error) {
	var c c7Customer
	endpoint := p.base + "/customer/" + url.PathEscape(platformCustomerID)
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &c); err != nil {
		return nil, err
	}
	return c.toDomain(), nil
}

func (p *Commerce7Provider) GetCustomersWithLTV(ctx context.Context, page, limit int) ([]*domain.Customer, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 50
	}

	var list c7CustomerList
	endpoint := fmt.Sprintf("%s/customer?page=%d&limit=%d", p.base, page, limit)
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &list); err != nil {
		return nil, err
	}

	customers := make([]*domain.Customer, 0, len(list.Customers))
	for i := range list.Customers {
		customers = append(customers, list.Customers[i].toDomain())
	}
	return customers, nil
}

func (p *Commerce7Provider) CreateCustomer(ctx context.Context, input CustomerInput) (*domain.Customer, error) {
	var created c7Customer
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPost, p.base+"/customer", p.headers(), c7CustomerBody(input), &created); err != nil {
		return nil, err
	}
	return created.toDomain(), nil
}

func (p *Commerce7Provider) UpsertCustomer(ctx context.Context, input CustomerInput) (*domain.Customer, error) {
	existing, err := p.FindCustomerByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return p.CreateCustomer(ctx, input)
	}

	var updated c7Customer
	endpoint := p.base + "/customer/" + url.PathEscape(existing.PlatformCustomerID)
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPut, endpoint, p.headers(), c7CustomerBody(input), &updated); err != nil {
		return nil, err
	}
	return updated.toDomain(), nil
}

func (p *Commerce7Provider) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	if email == "" {
		return nil, nil
	}

	var list c7CustomerList
	endpoint := p.base + "/customer?q=" + url.QueryEscape(email)
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &list); err != nil {
		return nil, err
	}

	// The q search is fuzzy; only an exact email match counts.
	for i := range list.Customers {
		c := &list.Customers[i]
		for _, e := range c.Emails {
			if strings.EqualFold(e.Email, email) {
				return c.toDomain(), nil
			}
		}
	}
	return nil, nil
}

// CreateCustomerWithAddress creates the customer and its default
// address as one logical operation. When the address write fails the
// fresh customer is removed again so retries start clean.
func (p *Commerce7Provider) CreateCustomerWithAddress(ctx context.Context, input CustomerInput, address domain.Address) (*domain.Customer, error) {
	customer, err := p.CreateCustomer(ctx, input)
	if err != nil {
		return nil, err
	}

	address.IsDefault = true
	if _, err := p.CreateCustomerAddress(ctx, customer.PlatformCustomerID, address); err != nil {
		endpoint := p.base + "/customer/" + url.PathEscape(customer.PlatformCustomerID)
		_ = doJSON(ctx, p.deps.Doer, p.Name(), http.MethodDelete, endpoint, p.headers(), nil, nil)
		return nil, fmt.Errorf("failed to create customer address: %w", err)
	}
	return customer, nil
}

func (p *Commerce7Provider) ListCustomerAddresses(ctx context.Context, platformCustomerID string) ([]domain.Address, error) {
	var list c7AddressList
	endpoint := p.base + "/customer/" + url.PathEscape(platformCustomerID) + "/address"
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &list); err != nil {
		return nil, err
	}

	addresses := make([]domain.Address, 0, len(list.Addresses))
	for i := range list.Addresses {
		addresses = append(addresses, list.Addresses[i].toDomain())
	}
	return addresses, nil
}

func (p *Commerce7Provider) CreateCustomerAddress(ctx context.Context, platformCustomerID string, address domain.Address) (*domain.Address, error) {
	var created c7Address
	endpoint := p.base + "/customer/" + url.PathEscape(platformCustomerID) + "/address"
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPost, endpoint, p.headers(), c7AddressBody(address), &created); err != nil {
		return nil, err
	}
	result := created.toDomain()
	return &result, nil
}

func (p *Commerce7Provider) ListCustomerPaymentMethods(ctx context.Context, platformCustomerID string) ([]domain.PaymentMethod, error) {
	var list c7CreditCardList
	endpoint := p.base + "/customer/" + url.PathEscape(platformCustomerID) + "/credit-card"
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &list); err != nil {
		return nil, err
	}

	methods := make([]domain.PaymentMethod, 0, len(list.CreditCards))
	for i := range list.CreditCards {
		methods = append(methods, list.CreditCards[i].toDomain())
	}
	return methods, nil
}

// --- discounts ---

func (p *Commerce7Provider) GetDiscount(ctx context.Context, discountID string) (*Discount, error) {
	var promo c7Promotion
	endpoint := p.base + "/promotion/" + url.PathEscape(discountID)
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &promo); err != nil {
		return nil, err
	}
	return promo.toDiscount(), nil
}

func (p *Commerce7Provider) CreateDiscount(ctx context.Context, input DiscountInput) (*Discount, error) {
	body := &c7Promotion{Title: input.Title, PercentOff: input.Percentage}
	var created c7Promotion
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPost, p.base+"/promotion", p.headers(), body, &created); err != nil {
		return nil, err
	}
	return created.toDiscount(), nil
}

func (p *Commerce7Provider) UpdateDiscount(ctx context.Context, discountID string, input DiscountInput) (*Discount, error) {
	body := &c7Promotion{Title: input.Title, PercentOff: input.Percentage}
	var updated c7Promotion
	endpoint := p.base + "/promotion/" + url.PathEscape(discountID)
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPut, endpoint, p.headers(), body, &updated); err != nil {
		return nil, err
	}
	return updated.toDiscount(), nil
}

func (p *Commerce7Provider) DeleteDiscount(ctx context.Context, discountID string) error {
	endpoint := p.base + "/promotion/" + url.PathEscape(discountID)
	err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodDelete, endpoint, p.headers(), nil, nil)
	return ignoreNotFound(err)
}

func (p *Commerce7Provider) AddCustomerToDiscount(ctx context.Context, discountID, platformCustomerID string) error {
	body := map[string]string{"customerId": platformCustomerID}
	endpoint := p.base + "/promotion/" + url.PathEscape(discountID) + "/customer"
	err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPost, endpoint, p.headers(), body, nil)
	if isConflict(err) {
		// Already attached; redeliveries land here.
		return nil
	}
	return err
}

func (p *Commerce7Provider) RemoveCustomerFromDiscount(ctx context.Context, discountID, platformCustomerID string) error {
	endpoint := p.base + "/promotion/" + url.PathEscape(discountID) + "/customer/" + url.PathEscape(platformCustomerID)
	err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodDelete, endpoint, p.headers(), nil, nil)
	return ignoreNotFound(err)
}

// --- clubs ---

// UpsertClub converges on one platform club. A known platform ID is
// looked up and retitled when needed; otherwise the title is searched
// before creating, so redeliveries and re-saves never spawn duplicates.
func (p *Commerce7Provider) UpsertClub(ctx context.Context, input ClubInput) (*Club, error) {
	if input.PlatformClubID != "" {
		endpoint := p.base + "/club/" + url.PathEscape(input.PlatformClubID)
		var existing c7Club
		err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &existing)
		switch {
		case err == nil:
			if existing.Title == input.Title {
				return &Club{ID: existing.ID, Title: existing.Title}, nil
			}
			var updated c7Club
			body := &c7Club{Title: input.Title}
			if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPut, endpoint, p.headers(), body, &updated); err != nil {
				return nil, err
			}
			return &Club{ID: updated.ID, Title: updated.Title}, nil
		case errors.Is(err, ErrNotFound):
			// Club was removed platform-side; fall through and recreate.
		default:
			return nil, err
		}
	}

	var list c7ClubList
	endpoint := p.base + "/club?q=" + url.QueryEscape(input.Title)
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &list); err != nil {
		return nil, err
	}
	for i := range list.Clubs {
		if list.Clubs[i].Title == input.Title {
			return &Club{ID: list.Clubs[i].ID, Title: list.Clubs[i].Title}, nil
		}
	}

	var created c7Club
	body := &c7Club{Title: input.Title}
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPost, p.base+"/club", p.headers(), body, &created); err != nil {
		return nil, err
	}
	return &Club{ID: created.ID, Title: created.Title}, nil
}

// CreateClubMembership enrolls the customer, returning the existing
// membership when one is already open for (club, customer).
func (p *Commerce7Provider) CreateClubMembership(ctx context.Context, input MembershipInput) (*Membership, error) {
	var list c7ClubMembershipList
	endpoint := fmt.Sprintf("%s/club-membership?clubId=%s&customerId=%s",
		p.base, url.QueryEscape(input.ClubID), url.QueryEscape(input.PlatformCustomerID))
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, endpoint, p.headers(), nil, &list); err != nil {
		return nil, err
	}
	for i := range list.ClubMemberships {
		m := &list.ClubMemberships[i]
		if !strings.EqualFold(m.Status, "Cancelled") {
			return m.toMembership(), nil
		}
	}

	body := &c7ClubMembership{ClubID: input.ClubID, CustomerID: input.PlatformCustomerID}
	var created c7ClubMembership
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPost, p.base+"/club-membership", p.headers(), body, &created); err != nil {
		return nil, err
	}
	return created.toMembership(), nil
}

func (p *Commerce7Provider) CancelClubMembership(ctx context.Context, membershipID string) error {
	endpoint := p.base + "/club-membership/" + url.PathEscape(membershipID)
	err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodDelete, endpoint, p.headers(), nil, nil)
	return ignoreNotFound(err)
}

// --- webhooks ---

// ValidateWebhook checks the shared secret configured on the Commerce7
// developer portal. Commerce7 does not sign webhook bodies; without a
// configured secret, trust rests on tenant auth in the ingestion
// pipeline.
func (p *Commerce7Provider) ValidateWebhook(r *http.Request, body []byte) error {
	secret := p.cfg.Credentials.WebhookSecret
	if secret == "" {
		return nil
	}
	got := r.Header.Get(commerce7SecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
		return fmt.Errorf("commerce7 webhook secret mismatch: %w", ErrAuthenticationFailed)
	}
	return nil
}

// ProcessWebhook reconciles local rows from one normalized event. Every
// write converges on the platform state, so redeliveries are harmless.
func (p *Commerce7Provider) ProcessWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	client, err := p.deps.Clients.GetByTenant(ctx, domain.CRMTypeCommerce7, event.TenantShop)
	if err != nil {
		return fmt.Errorf("failed to load client for tenant: %w", err)
	}
	if client == nil {
		return fmt.Errorf("no client registered for tenant %s", event.TenantShop)
	}

	switch event.Topic {
	case domain.TopicCustomersUpdate:
		return p.reconcileCustomer(ctx, client, event.Payload)
	case domain.TopicCustomersDelete:
		var c c7Customer
		if err := json.Unmarshal(event.Payload, &c); err != nil {
			return fmt.Errorf("undecodable customer payload: %w", err)
		}
		return p.deps.Customers.DeleteByPlatformID(ctx, client.ID, c.ID)
	case domain.TopicOrdersCreate:
		return p.refreshCustomerFromOrder(ctx, client, event.Payload)
	case domain.TopicClubUpdate, domain.TopicClubDelete:
		return p.reconcileClub(ctx, client, event.Topic, event.Payload)
	case domain.TopicClubMembershipUpdate, domain.TopicClubMembershipDelete:
		return p.reconcileMembership(ctx, client, event.Topic, event.Payload)
	default:
		// Topics outside this platform's interest are not an error.
		return nil
	}
}

// reconcileCustomer mirrors a platform customer change. Webhook payloads
// may omit order information; the stored LTV is carried forward rather
// than zeroed when that happens.
func (p *Commerce7Provider) reconcileCustomer(ctx context.Context, client *domain.Client, payload json.RawMessage) error {
	var c c7Customer
	if err := json.Unmarshal(payload, &c); err != nil {
		return fmt.Errorf("undecodable customer payload: %w", err)
	}
	if c.ID == "" {
		return fmt.Errorf("customer payload carries no id")
	}

	customer := c.toDomain()
	customer.ClientID = client.ID

	if c.OrderInformation == nil {
		existing, err := p.deps.Customers.GetByPlatformID(ctx, client.ID, c.ID)
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

// refreshCustomerFromOrder re-fetches the ordering customer so the LTV
// snapshot includes the new order before any qualification runs.
func (p *Commerce7Provider) refreshCustomerFromOrder(ctx context.Context, client *domain.Client, payload json.RawMessage) error {
	var order c7Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return fmt.Errorf("undecodable order payload: %w", err)
	}
	if order.CustomerID == "" {
		// Guest checkout; nothing to reconcile.
		return nil
	}

	fresh, err := p.GetCustomer(ctx, order.CustomerID)
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

func (p *Commerce7Provider) reconcileClub(ctx context.Context, client *domain.Client, topic domain.WebhookTopic, payload json.RawMessage) error {
	var club c7Club
	if err := json.Unmarshal(payload, &club); err != nil {
		return fmt.Errorf("undecodable club payload: %w", err)
	}

	program, err := p.deps.Programs.GetByClientID(ctx, client.ID)
	if err != nil {
		return fmt.Errorf("failed to load club program: %w", err)
	}
	if program == nil || program.PlatformClubID != club.ID {
		// Not the club this program is bound to.
		return nil
	}

	switch topic {
	case domain.TopicClubDelete:
		program.IsActive = false
	case domain.TopicClubUpdate:
		if club.Title == "" || club.Title == program.Name {
			return nil
		}
		program.Name = club.Title
	}
	return p.deps.Programs.Update(ctx, program)
}

func (p *Commerce7Provider) reconcileMembership(ctx context.Context, client *domain.Client, topic domain.WebhookTopic, payload json.RawMessage) error {
	var m c7ClubMembership
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("undecodable club membership payload: %w", err)
	}
	if m.ID == "" {
		return fmt.Errorf("club membership payload carries no id")
	}

	enrollment, err := p.deps.Enrollments.GetByPlatformMembershipID(ctx, client.ID, m.ID)
	if err != nil {
		return fmt.Errorf("failed to load enrollment: %w", err)
	}
	if enrollment == nil {
		// Membership managed outside this app.
		return nil
	}

	ended := topic == domain.TopicClubMembershipDelete || strings.EqualFold(m.Status, "Cancelled")
	if !ended || !enrollment.IsOpen() {
		return nil
	}
	if err := enrollment.Cancel(); err != nil {
		return nil
	}
	return p.deps.Enrollments.Update(ctx, enrollment)
}

func (p *Commerce7Provider) RegisterWebhook(ctx context.Context, topic domain.WebhookTopic, callbackURL string) (string, error) {
	object, action, ok := c7SubscriptionForTopic(topic)
	if !ok {
		return "", fmt.Errorf("topic %s has no commerce7 subscription", topic)
	}

	body := &c7Webhook{Object: object, Action: action, URL: callbackURL}
	var created c7Webhook
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodPost, p.base+"/webhook", p.headers(), body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (p *Commerce7Provider) ListWebhooks(ctx context.Context) ([]RegisteredWebhook, error) {
	var list c7WebhookList
	if err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodGet, p.base+"/webhook", p.headers(), nil, &list); err != nil {
		return nil, err
	}

	hooks := make([]RegisteredWebhook, 0, len(list.Webhooks))
	for _, w := range list.Webhooks {
		name := w.Object + "/" + w.Action
		if topic, ok := domain.TopicForCommerce7(w.Object, w.Action); ok {
			name = string(topic)
		}
		hooks = append(hooks, RegisteredWebhook{ID: w.ID, Topic: name, Address: w.URL})
	}
	return hooks, nil
}

func (p *Commerce7Provider) DeleteWebhook(ctx context.Context, webhookID string) error {
	endpoint := p.base + "/webhook/" + url.PathEscape(webhookID)
	err := doJSON(ctx, p.deps.Doer, p.Name(), http.MethodDelete, endpoint, p.headers(), nil, nil)
	return ignoreNotFound(err)
}

// --- shared helpers ---

// ignoreNotFound treats a platform 404 as success, which makes deletes
// and cancels idempotent under webhook redelivery.
func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func isConflict(err error) bool {
	var pe *PlatformError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusConflict
}
