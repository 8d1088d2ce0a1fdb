package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer is the local mirror of a platform customer. LTV is a
// currency-normalized snapshot computed from platform order history;
// webhook reconciliation and enrollment flows keep it fresh.
type Customer struct {
	ID                 string    `json:"id"`
	ClientID           string    `json:"client_id"`
	PlatformCustomerID string    `json:"platform_customer_id"`
	Email              string    `json:"email"`
	FirstName          string    `json:"first_name,omitempty"`
	LastName           string    `json:"last_name,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	LTV                float64   `json:"ltv"`
	Currency           string    `json:"currency,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PrepareForUpsert stamps a local identity and timestamps onto a
// platform-fetched customer. When the (client, platform customer) row
// already exists, the upsert keeps the stored identity and this one is
// discarded.
func (c *Customer) PrepareForUpsert() {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

// FullName joins the name parts, tolerating either being empty.
func (c *Customer) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// Address is a platform-side customer address. Addresses are not
// mirrored locally; they pass through provider calls only.
type Address struct {
	ID         string `json:"id,omitempty"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	Zip        string `json:"zip"`
	CountryISO string `json:"country_iso"`
	IsDefault  bool   `json:"is_default"`
}

// PaymentMethod is a platform-side stored payment profile. Only display
// fields cross this boundary; raw card data never does.
type PaymentMethod struct {
	ID          string `json:"id"`
	Brand       string `json:"brand,omitempty"`
	Last4       string `json:"last4,omitempty"`
	ExpiryMonth int    `json:"expiry_month,omitempty"`
	ExpiryYear  int    `json:"expiry_year,omitempty"`
	IsDefault   bool   `json:"is_default"`
}
