package crm

import (
	"context"
	"net/http"
	"time"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/repository"
)

// Credentials carries the secrets a provider instance is bound to.
// AppID is the app's public identifier on either platform. Commerce7
// pairs it with AppSecret as Basic auth on every call; Shopify pairs it
// with APISecret for OAuth, HMAC checks, and session tokens, plus a
// per-shop AccessToken once installed.
type Credentials struct {
	AppID     string
	AppSecret string
	// Shopify per-shop OAuth token and app secret
	AccessToken string
	APISecret   string
	// Optional shared secret expected on inbound webhook deliveries
	WebhookSecret string
}

// ProviderConfig selects and parameterizes one provider instance.
type ProviderConfig struct {
	CRMType     string
	TenantShop  string
	Credentials Credentials
	// Scopes requested at install, Shopify only
	Scopes string
	// BaseURL overrides the platform API root, used in tests
	BaseURL string
}

// Dependencies are the local collaborators a provider writes through
// while reconciling webhooks. Doer defaults to the production REST
// client when nil.
type Dependencies struct {
	Doer        Doer
	Clients     repository.ClientRepository
	Customers   repository.CustomerRepository
	Programs    repository.ClubProgramRepository
	Stages      repository.ClubStageRepository
	Enrollments repository.EnrollmentRepository
}

// AuthResult is the platform identity a successful Authenticate yields
type AuthResult struct {
	UserName    string
	UserEmail   string
	AccessToken string
	Scope       string
	ExpiresAt   *time.Time
}

// InstallParams carries the platform callback values of an app install
type InstallParams struct {
	Code        string
	State       string
	Shop        string
	RedirectURI string
	// Raw query for HMAC verification on platforms that sign callbacks
	RawQuery string
}

// InstallGrant is the outcome of AuthorizeInstall. RedirectURL is set
// when the platform still needs a browser hop; AccessToken when the
// install completed.
type InstallGrant struct {
	RedirectURL string
	AccessToken string
	Scope       string
}

// CustomerInput is the platform-agnostic shape for customer writes
type CustomerInput struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// DiscountInput is the platform-agnostic shape for discount writes
type DiscountInput struct {
	Title      string
	Percentage float64
}

// Discount is a platform promotion tied to a club stage
type Discount struct {
	ID         string
	Title      string
	Percentage float64
	Active     bool
}

// ClubInput identifies the club to upsert. StageNames lets platforms
// that model tiers inside the club carry the ladder across.
type ClubInput struct {
	PlatformClubID string
	Title          string
	StageNames     []string
}

// Club is the platform-side club object
type Club struct {
	ID    string
	Title string
}

// MembershipInput identifies a club membership by its logical key
// (club, customer). Creation is idempotent on that key.
type MembershipInput struct {
	ClubID             string
	PlatformCustomerID string
	StageName          string
}

// Membership is the platform-side club membership record
type Membership struct {
	ID         string
	ClubID     string
	CustomerID string
	Status     string
}

// RegisteredWebhook is one platform-side webhook subscription
type RegisteredWebhook struct {
	ID      string
	Topic   string
	Address string
}

// Provider is the single capability interface over the supported
// commerce platforms. Everything above the crm package speaks this
// interface; platform quirks (auth scheme, money units, webhook
// signatures) stay inside the implementations.
//
// Every operation that writes platform state is idempotent on its
// logical key, because webhook deliveries are at-least-once and the
// platform retries on 5xx.
type Provider interface {
	// Name returns the platform identifier
	Name() string

	// Authenticate verifies a platform credential and yields the
	// acting user's identity
	Authenticate(ctx context.Context, token string) (*AuthResult, error)
	// AuthorizeInstall begins or completes an app install
	AuthorizeInstall(ctx context.Context, params InstallParams) (*InstallGrant, error)

	// GetCustomer fetches one customer with a normalized LTV
	GetCustomer(ctx context.Context, platformCustomerID string) (*domain.Customer, error)
	// GetCustomersWithLTV pages through customers, LTV normalized to
	// currency units from the platform's order history
	GetCustomersWithLTV(ctx context.Context, page, limit int) ([]*domain.Customer, error)
	// CreateCustomer creates a platform customer
	CreateCustomer(ctx context.Context, input CustomerInput) (*domain.Customer, error)
	// UpsertCustomer creates or updates by email
	UpsertCustomer(ctx context.Context, input CustomerInput) (*domain.Customer, error)
	// FindCustomerByEmail returns nil, nil when no customer matches
	FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	// CreateCustomerWithAddress creates customer and default address as
	// one logical operation; a customer is never left address-less
	CreateCustomerWithAddress(ctx context.Context, input CustomerInput, address domain.Address) (*domain.Customer, error)

	// ListCustomerAddresses lists a customer's addresses
	ListCustomerAddresses(ctx context.Context, platformCustomerID string) ([]domain.Address, error)
	// CreateCustomerAddress adds an address to a customer
	CreateCustomerAddress(ctx context.Context, platformCustomerID string, address domain.Address) (*domain.Address, error)
	// ListCustomerPaymentMethods lists stored payment profiles
	ListCustomerPaymentMethods(ctx context.Context, platformCustomerID string) ([]domain.PaymentMethod, error)

	// GetDiscount fetches one discount
	GetDiscount(ctx context.Context, discountID string) (*Discount, error)
	// CreateDiscount creates a discount
	CreateDiscount(ctx context.Context, input DiscountInput) (*Discount, error)
	// UpdateDiscount updates a discount
	UpdateDiscount(ctx context.Context, discountID string, input DiscountInput) (*Discount, error)
	// DeleteDiscount deletes a discount
	DeleteDiscount(ctx context.Context, discountID string) error
	// AddCustomerToDiscount attaches a customer; already-attached is success
	AddCustomerToDiscount(ctx context.Context, discountID, platformCustomerID string) error
	// RemoveCustomerFromDiscount detaches a customer; not-attached is success
	RemoveCustomerFromDiscount(ctx context.Context, discountID, platformCustomerID string) error

	// UpsertClub creates or updates the platform club, idempotent on
	// the club's identity
	UpsertClub(ctx context.Context, input ClubInput) (*Club, error)
	// CreateClubMembership enrolls a customer, idempotent on
	// (club, customer): a second call returns the existing membership
	CreateClubMembership(ctx context.Context, input MembershipInput) (*Membership, error)
	// CancelClubMembership ends a membership; already-cancelled is success
	CancelClubMembership(ctx context.Context, membershipID string) error

	// ValidateWebhook checks the delivery's platform signature or
	// shared secret before the body is trusted
	ValidateWebhook(r *http.Request, body []byte) error
	// ProcessWebhook reconciles local state from a normalized event
	ProcessWebhook(ctx context.Context, event *domain.WebhookEvent) error
	// RegisterWebhook subscribes the callback URL to a topic
	RegisterWebhook(ctx context.Context, topic domain.WebhookTopic, callbackURL string) (string, error)
	// ListWebhooks lists this app's subscriptions
	ListWebhooks(ctx context.Context) ([]RegisteredWebhook, error)
	// DeleteWebhook removes a subscription
	DeleteWebhook(ctx context.Context, webhookID string) error
}
