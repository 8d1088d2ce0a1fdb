package service

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/crm"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/notify"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/events"
)

// MockCRMProvider is an in-memory crm.Provider for service tests. Each
// concern has an error knob; a non-nil value makes that group of calls
// fail. Membership creation mirrors the platform contract: idempotent
// on (club, customer) while the membership is not cancelled.
type MockCRMProvider struct {
	mu sync.RWMutex

	PlatformName string

	Customers   map[string]*domain.Customer
	Addresses   map[string][]domain.Address
	Clubs       map[string]*crm.Club
	Memberships map[string]*crm.Membership
	Discounts   map[string]*crm.Discount
	Attached    map[string]map[string]bool
	Processed   []*domain.WebhookEvent

	AuthErr       error
	CustomerErr   error
	ClubErr       error
	MembershipErr error
	DiscountErr   error
	ProcessErr    error
	ValidateErr   error
}

// NewMockCRMProvider creates a new MockCRMProvider
func NewMockCRMProvider() *MockCRMProvider {
	return &MockCRMProvider{
		PlatformName: domain.CRMTypeCommerce7,
		Customers:    make(map[string]*domain.Customer),
		Addresses:    make(map[string][]domain.Address),
		Clubs:        make(map[string]*crm.Club),
		Memberships:  make(map[string]*crm.Membership),
		Discounts:    make(map[string]*crm.Discount),
		Attached:     make(map[string]map[string]bool),
	}
}

// SeedCustomer registers a platform customer the mock will serve
func (p *MockCRMProvider) SeedCustomer(customer *domain.Customer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Customers[customer.PlatformCustomerID] = customer
}

// MembershipFor returns the non-cancelled membership held by a platform
// customer, nil when none exists
func (p *MockCRMProvider) MembershipFor(platformCustomerID string) *crm.Membership {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.Memberships {
		if m.CustomerID == platformCustomerID && m.Status != "Cancelled" {
			return m
		}
	}
	return nil
}

// DiscountAttached reports whether a customer is on a discount
func (p *MockCRMProvider) DiscountAttached(discountID, platformCustomerID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Attached[discountID][platformCustomerID]
}

func (p *MockCRMProvider) Name() string {
	if p.PlatformName == "" {
		return domain.CRMTypeCommerce7
	}
	return p.PlatformName
}

func (p *MockCRMProvider) Authenticate(ctx context.Context, token string) (*crm.AuthResult, error) {
	if p.AuthErr != nil {
		return nil, p.AuthErr
	}
	return &crm.AuthResult{
		UserName:    "Mock User",
		UserEmail:   "mock@winery.test",
		AccessToken: token,
	}, nil
}

func (p *MockCRMProvider) AuthorizeInstall(ctx context.Context, params crm.InstallParams) (*crm.InstallGrant, error) {
	if p.AuthErr != nil {
		return nil, p.AuthErr
	}
	return &crm.InstallGrant{AccessToken: "mock-access-token", Scope: "read_customers"}, nil
}

func (p *MockCRMProvider) GetCustomer(ctx context.Context, platformCustomerID string) (*domain.Customer, error) {
	if p.CustomerErr != nil {
		return nil, p.CustomerErr
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	customer, ok := p.Customers[platformCustomerID]
	if !ok {
		return nil, crm.ErrNotFound
	}
	copied := *customer
	return &copied, nil
}

func (p *MockCRMProvider) GetCustomersWithLTV(ctx context.Context, page, limit int) ([]*domain.Customer, error) {
	if p.CustomerErr != nil {
		return nil, p.CustomerErr
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*domain.Customer, 0, len(p.Customers))
	for _, customer := range p.Customers {
		copied := *customer
		out = append(out, &copied)
	}
	return out, nil
}

func (p *MockCRMProvider) CreateCustomer(ctx context.Context, input crm.CustomerInput) (*domain.Customer, error) {
	if p.CustomerErr != nil {
		return nil, p.CustomerErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	customer := &domain.Customer{
		PlatformCustomerID: uuid.New().String(),
		Email:              input.Email,
		FirstName:          input.FirstName,
		LastName:           input.LastName,
		Phone:              input.Phone,
	}
	p.Customers[customer.PlatformCustomerID] = customer
	copied := *customer
	return &copied, nil
}

func (p *MockCRMProvider) UpsertCustomer(ctx context.Context, input crm.CustomerInput) (*domain.Customer, error) {
	if existing, err := p.FindCustomerByEmail(ctx, input.Email); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}
	return p.CreateCustomer(ctx, input)
}

func (p *MockCRMProvider) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	if p.CustomerErr != nil {
		return nil, p.CustomerErr
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, customer := range p.Customers {
		if strings.EqualFold(customer.Email, email) {
			copied := *customer
			return &copied, nil
		}
	}
	return nil, nil
}

func (p *MockCRMProvider) CreateCustomerWithAddress(ctx context.Context, input crm.CustomerInput, address domain.Address) (*domain.Customer, error) {
	customer, err := p.CreateCustomer(ctx, input)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Addresses[customer.PlatformCustomerID] = append(p.Addresses[customer.PlatformCustomerID], address)
	return customer, nil
}

func (p *MockCRMProvider) ListCustomerAddresses(ctx context.Context, platformCustomerID string) ([]domain.Address, error) {
	if p.CustomerErr != nil {
		return nil, p.CustomerErr
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]domain.Address(nil), p.Addresses[platformCustomerID]...), nil
}

func (p *MockCRMProvider) CreateCustomerAddress(ctx context.Context, platformCustomerID string, address domain.Address) (*domain.Address, error) {
	if p.CustomerErr != nil {
		return nil, p.CustomerErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	address.ID = uuid.New().String()
	p.Addresses[platformCustomerID] = append(p.Addresses[platformCustomerID], address)
	return &address, nil
}

func (p *MockCRMProvider) ListCustomerPaymentMethods(ctx context.Context, platformCustomerID string) ([]domain.PaymentMethod, error) {
	if p.CustomerErr != nil {
		return nil, p.CustomerErr
	}
	return []domain.PaymentMethod{}, nil
}

func (p *MockCRMProvider) GetDiscount(ctx context.Context, discountID string) (*crm.Discount, error) {
	if p.DiscountErr != nil {
		return nil, p.DiscountErr
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	discount, ok := p.Discounts[discountID]
	if !ok {
		return nil, crm.ErrNotFound
	}
	copied := *discount
	return &copied, nil
}

func (p *MockCRMProvider) CreateDiscount(ctx context.Context, input crm.DiscountInput) (*crm.Discount, error) {
	if p.DiscountErr != nil {
		return nil, p.DiscountErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	discount := &crm.Discount{
		ID:         uuid.New().String(),
		Title:      input.Title,
		Percentage: input.Percentage,
		Active:     true,
	}
	p.Discounts[discount.ID] = discount
	copied := *discount
	return &copied, nil
}

func (p *MockCRMProvider) UpdateDiscount(ctx context.Context, discountID string, input crm.DiscountInput) (*crm.Discount, error) {
	if p.DiscountErr != nil {
		return nil, p.DiscountErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	discount, ok := p.Discounts[discountID]
	if !ok {
		return nil, crm.ErrNotFound
	}
	discount.Title = input.Title
	discount.Percentage = input.Percentage
	copied := *discount
	return &copied, nil
}

func (p *MockCRMProvider) DeleteDiscount(ctx context.Context, discountID string) error {
	if p.DiscountErr != nil {
		return p.DiscountErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Discounts, discountID)
	delete(p.Attached, discountID)
	return nil
}

func (p *MockCRMProvider) AddCustomerToDiscount(ctx context.Context, discountID, platformCustomerID string) error {
	if p.DiscountErr != nil {
		return p.DiscountErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Attached[discountID] == nil {
		p.Attached[discountID] = make(map[string]bool)
	}
	p.Attached[discountID][platformCustomerID] = true
	return nil
}

func (p *MockCRMProvider) RemoveCustomerFromDiscount(ctx context.Context, discountID, platformCustomerID string) error {
	if p.DiscountErr != nil {
		return p.DiscountErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Attached[discountID], platformCustomerID)
	return nil
}

// UpsertClub keeps a single club per title, handing back the existing
// ID on re-upsert
func (p *MockCRMProvider) UpsertClub(ctx context.Context, input crm.ClubInput) (*crm.Club, error) {
	if p.ClubErr != nil {
		return nil, p.ClubErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if input.PlatformClubID != "" {
		if club, ok := p.Clubs[input.PlatformClubID]; ok {
			club.Title = input.Title
			copied := *club
			return &copied, nil
		}
	}
	for _, club := range p.Clubs {
		if club.Title == input.Title {
			copied := *club
			return &copied, nil
		}
	}
	club := &crm.Club{ID: uuid.New().String(), Title: input.Title}
	p.Clubs[club.ID] = club
	copied := *club
	return &copied, nil
}

func (p *MockCRMProvider) CreateClubMembership(ctx context.Context, input crm.MembershipInput) (*crm.Membership, error) {
	if p.MembershipErr != nil {
		return nil, p.MembershipErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.Memberships {
		if m.ClubID == input.ClubID && m.CustomerID == input.PlatformCustomerID && m.Status != "Cancelled" {
			copied := *m
			return &copied, nil
		}
	}
	membership := &crm.Membership{
		ID:         uuid.New().String(),
		ClubID:     input.ClubID,
		CustomerID: input.PlatformCustomerID,
		Status:     "Active",
	}
	p.Memberships[membership.ID] = membership
	copied := *membership
	return &copied, nil
}

func (p *MockCRMProvider) CancelClubMembership(ctx context.Context, membershipID string) error {
	if p.MembershipErr != nil {
		return p.MembershipErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.Memberships[membershipID]; ok {
		m.Status = "Cancelled"
	}
	return nil
}

func (p *MockCRMProvider) ValidateWebhook(r *http.Request, body []byte) error {
	return p.ValidateErr
}

func (p *MockCRMProvider) ProcessWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	if p.ProcessErr != nil {
		return p.ProcessErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Processed = append(p.Processed, event)
	return nil
}

func (p *MockCRMProvider) RegisterWebhook(ctx context.Context, topic domain.WebhookTopic, callbackURL string) (string, error) {
	return uuid.New().String(), nil
}

func (p *MockCRMProvider) ListWebhooks(ctx context.Context) ([]crm.RegisteredWebhook, error) {
	return []crm.RegisteredWebhook{}, nil
}

func (p *MockCRMProvider) DeleteWebhook(ctx context.Context, webhookID string) error {
	return nil
}

// MockProviderFactory hands every client the same provider instance
type MockProviderFactory struct {
	Provider *MockCRMProvider
	Err      error
}

// NewMockProviderFactory creates a factory over a fresh mock provider
func NewMockProviderFactory() *MockProviderFactory {
	return &MockProviderFactory{Provider: NewMockCRMProvider()}
}

func (f *MockProviderFactory) ProviderFor(ctx context.Context, client *domain.Client) (crm.Provider, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Provider, nil
}

// PublishedEvent is one event captured by MockEventPublisher
type PublishedEvent struct {
	Topic string
	Event events.Event
}

// MockEventPublisher records published events instead of producing to
// Kafka
type MockEventPublisher struct {
	mu           sync.RWMutex
	Events       []PublishedEvent
	FailureError error
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (p *MockEventPublisher) Publish(ctx context.Context, topic string, event events.Event) error {
	if p.FailureError != nil {
		return p.FailureError
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, PublishedEvent{Topic: topic, Event: event})
	return nil
}

func (p *MockEventPublisher) PublishAsync(ctx context.Context, topic string, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, PublishedEvent{Topic: topic, Event: event})
}

// EventsFor returns the captured events published to a topic
func (p *MockEventPublisher) EventsFor(topic string) []events.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []events.Event
	for _, published := range p.Events {
		if published.Topic == topic {
			out = append(out, published.Event)
		}
	}
	return out
}

// MockNotification is one send captured by MockNotifier
type MockNotification struct {
	ClientID   string
	CustomerID string
	Kind       notify.Kind
}

// MockNotifier records notification sends
type MockNotifier struct {
	mu           sync.RWMutex
	Sent         []MockNotification
	FailureError error
}

// NewMockNotifier creates a new MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (n *MockNotifier) Send(ctx context.Context, clientID, customerID string, kind notify.Kind) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, MockNotification{ClientID: clientID, CustomerID: customerID, Kind: kind})
	if n.FailureError != nil {
		return n.FailureError
	}
	return nil
}

// KindsSent returns the notification kinds in send order
func (n *MockNotifier) KindsSent() []notify.Kind {
	n.mu.RLock()
	defer n.mu.RUnlock()
	kinds := make([]notify.Kind, 0, len(n.Sent))
	for _, sent := range n.Sent {
		kinds = append(kinds, sent.Kind)
	}
	return kinds
}
