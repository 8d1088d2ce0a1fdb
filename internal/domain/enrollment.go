package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Enrollment statuses
const (
	EnrollmentStatusPending   = "pending"
	EnrollmentStatusActive    = "active"
	EnrollmentStatusExpired   = "expired"
	EnrollmentStatusCancelled = "cancelled"
)

// Enrollment is a customer's membership in one club stage. The platform
// holds the authoritative membership record; this row tracks the local
// view plus which signal qualified the customer at enrollment time.
type Enrollment struct {
	ID                   string     `json:"id"`
	ClientID             string     `json:"client_id"`
	CustomerID           string     `json:"customer_id"`
	ClubStageID          string     `json:"club_stage_id"`
	PlatformMembershipID string     `json:"platform_membership_id,omitempty"`
	Status               string     `json:"status"` // pending, active, expired, cancelled
	QualifiedByPurchase  bool       `json:"qualified_by_purchase"`
	QualifiedByLTV       bool       `json:"qualified_by_ltv"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NewEnrollment creates a pending enrollment. It becomes active once the
// platform membership exists.
func NewEnrollment(clientID, customerID, clubStageID string) (*Enrollment, error) {
	if clientID == "" {
		return nil, errors.New("client_id is required")
	}
	if customerID == "" {
		return nil, errors.New("customer_id is required")
	}
	if clubStageID == "" {
		return nil, errors.New("club_stage_id is required")
	}

	now := time.Now()
	return &Enrollment{
		ID:          uuid.New().String(),
		ClientID:    clientID,
		CustomerID:  customerID,
		ClubStageID: clubStageID,
		Status:      EnrollmentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Activate records the platform membership and starts the term.
// durationMonths of zero means an open-ended membership.
func (e *Enrollment) Activate(platformMembershipID string, durationMonths int) error {
	if e.Status != EnrollmentStatusPending {
		return errors.New("enrollment can only be activated from pending status")
	}
	if platformMembershipID == "" {
		return errors.New("platform_membership_id is required")
	}

	now := time.Now()
	e.PlatformMembershipID = platformMembershipID
	e.Status = EnrollmentStatusActive
	e.StartedAt = &now
	if durationMonths > 0 {
		expires := now.AddDate(0, durationMonths, 0)
		e.ExpiresAt = &expires
	}
	e.UpdatedAt = now
	return nil
}

// Cancel ends the membership. Pending enrollments may be cancelled too,
// e.g. when the platform-side creation ultimately fails.
func (e *Enrollment) Cancel() error {
	if e.Status != EnrollmentStatusPending && e.Status != EnrollmentStatusActive {
		return errors.New("enrollment is already finished")
	}

	now := time.Now()
	e.Status = EnrollmentStatusCancelled
	e.CancelledAt = &now
	e.UpdatedAt = now
	return nil
}

// Expire closes an active membership whose term has run out.
func (e *Enrollment) Expire() error {
	if e.Status != EnrollmentStatusActive {
		return errors.New("only active enrollments can expire")
	}

	e.Status = EnrollmentStatusExpired
	e.UpdatedAt = time.Now()
	return nil
}

// IsOpen reports whether the enrollment still occupies a club seat.
func (e *Enrollment) IsOpen() bool {
	return e.Status == EnrollmentStatusPending || e.Status == EnrollmentStatusActive
}

// IsFinal reports whether the enrollment reached a terminal status.
func (e *Enrollment) IsFinal() bool {
	return e.Status == EnrollmentStatusExpired || e.Status == EnrollmentStatusCancelled
}
