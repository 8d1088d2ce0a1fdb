package repository

import (
	"context"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// EnrollmentRepository defines the interface for enrollment data access
type EnrollmentRepository interface {
	// Create creates a new enrollment
	Create(ctx context.Context, enrollment *domain.Enrollment) error
	// GetByID retrieves an enrollment by ID
	GetByID(ctx context.Context, id string) (*domain.Enrollment, error)
	// GetOpenByCustomer retrieves a customer's pending or active
	// enrollment; a customer holds at most one open seat
	GetOpenByCustomer(ctx context.Context, clientID, customerID string) (*domain.Enrollment, error)
	// GetByPlatformMembershipID retrieves the enrollment mapped to a
	// platform membership, used by webhook reconciliation
	GetByPlatformMembershipID(ctx context.Context, clientID, platformMembershipID string) (*domain.Enrollment, error)
	// ListByClient retrieves a client's enrollments with pagination and
	// an optional status filter
	ListByClient(ctx context.Context, clientID string, page, limit int, status string) ([]*domain.Enrollment, int, error)
	// Update updates an enrollment
	Update(ctx context.Context, enrollment *domain.Enrollment) error
	// CountOpenByStage counts open enrollments referencing a stage,
	// which gates stage deactivation
	CountOpenByStage(ctx context.Context, stageID string) (int, error)
}
