package dto

import (
	"time"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// EnrollRequest represents a request to enroll a customer into a club
// stage. Customer fields create the platform customer when no
// platform_customer_id is supplied; an address is required in that case
// so the platform never ends up with an address-less club member.
type EnrollRequest struct {
	ClubStageID        string   `json:"club_stage_id" binding:"required"`
	PlatformCustomerID string   `json:"platform_customer_id,omitempty"`
	Email              string   `json:"email,omitempty" binding:"omitempty,email"`
	FirstName          string   `json:"first_name,omitempty"`
	LastName           string   `json:"last_name,omitempty"`
	Phone              string   `json:"phone,omitempty"`
	Address            *Address `json:"address,omitempty"`
	PurchaseAmount     *float64 `json:"purchase_amount,omitempty" binding:"omitempty,gte=0"`
	SkipQualification  bool     `json:"skip_qualification,omitempty"`
}

// Address mirrors domain.Address for request binding
type Address struct {
	Address1   string `json:"address1" binding:"required"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state,omitempty"`
	Zip        string `json:"zip" binding:"required"`
	CountryISO string `json:"country_iso" binding:"required,len=2"`
}

// ToDomain converts the bound address to its domain shape
func (a *Address) ToDomain() domain.Address {
	return domain.Address{
		Address1:   a.Address1,
		Address2:   a.Address2,
		City:       a.City,
		State:      a.State,
		Zip:        a.Zip,
		CountryISO: a.CountryISO,
		IsDefault:  true,
	}
}

// UpgradeRequest represents a request to move an enrollment to a higher
// tier. The target must pass the same threshold test used for automatic
// qualification unless the operator forces it.
type UpgradeRequest struct {
	TargetStageID  string   `json:"target_stage_id" binding:"required"`
	PurchaseAmount *float64 `json:"purchase_amount,omitempty" binding:"omitempty,gte=0"`
	Force          bool     `json:"force,omitempty"`
}

// EnrollmentResponse represents an enrollment returned to the embedded app
type EnrollmentResponse struct {
	ID                   string     `json:"id"`
	ClientID             string     `json:"client_id"`
	CustomerID           string     `json:"customer_id"`
	ClubStageID          string     `json:"club_stage_id"`
	PlatformMembershipID string     `json:"platform_membership_id,omitempty"`
	Status               string     `json:"status"`
	QualifiedByPurchase  bool       `json:"qualified_by_purchase"`
	QualifiedByLTV       bool       `json:"qualified_by_ltv"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// FromEnrollment converts a domain Enrollment to EnrollmentResponse
func FromEnrollment(e *domain.Enrollment) *EnrollmentResponse {
	return &EnrollmentResponse{
		ID:                   e.ID,
		ClientID:             e.ClientID,
		CustomerID:           e.CustomerID,
		ClubStageID:          e.ClubStageID,
		PlatformMembershipID: e.PlatformMembershipID,
		Status:               e.Status,
		QualifiedByPurchase:  e.QualifiedByPurchase,
		QualifiedByLTV:       e.QualifiedByLTV,
		StartedAt:            e.StartedAt,
		ExpiresAt:            e.ExpiresAt,
		CancelledAt:          e.CancelledAt,
		CreatedAt:            e.CreatedAt,
	}
}

// EnrollmentListResponse represents a page of enrollments
type EnrollmentListResponse struct {
	Enrollments []*EnrollmentResponse `json:"enrollments"`
	Total       int                   `json:"total"`
}
