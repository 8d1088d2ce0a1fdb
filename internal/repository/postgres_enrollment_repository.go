package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// PostgresEnrollmentRepository implements EnrollmentRepository using PostgreSQL
type PostgresEnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEnrollmentRepository creates a new PostgresEnrollmentRepository
func NewPostgresEnrollmentRepository(pool *pgxpool.Pool) *PostgresEnrollmentRepository {
	return &PostgresEnrollmentRepository{pool: pool}
}

const enrollmentColumns = `id, client_id, customer_id, club_stage_id,
	       COALESCE(platform_membership_id, '') as platform_membership_id, status,
	       qualified_by_purchase, qualified_by_ltv, started_at, expires_at, cancelled_at,
	       created_at, updated_at`

// Create creates a new enrollment
func (r *PostgresEnrollmentRepository) Create(ctx context.Context, enrollment *domain.Enrollment) error {
	query := `
		INSERT INTO enrollments (id, client_id, customer_id, club_stage_id, platform_membership_id,
		                         status, qualified_by_purchase, qualified_by_ltv, started_at,
		                         expires_at, cancelled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		enrollment.ID,
		enrollment.ClientID,
		enrollment.CustomerID,
		enrollment.ClubStageID,
		nullStringOrValue(enrollment.PlatformMembershipID),
		enrollment.Status,
		enrollment.QualifiedByPurchase,
		enrollment.QualifiedByLTV,
		enrollment.StartedAt,
		enrollment.ExpiresAt,
		enrollment.CancelledAt,
		enrollment.CreatedAt,
		enrollment.UpdatedAt,
	)
	return err
}

// GetByID retrieves an enrollment by ID
func (r *PostgresEnrollmentRepository) GetByID(ctx context.Context, id string) (*domain.Enrollment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM enrollments
		WHERE id = $1
	`, enrollmentColumns)
	return r.scanEnrollment(r.pool.QueryRow(ctx, query, id))
}

// GetOpenByCustomer retrieves a customer's pending or active enrollment
func (r *PostgresEnrollmentRepository) GetOpenByCustomer(ctx context.Context, clientID, customerID string) (*domain.Enrollment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM enrollments
		WHERE client_id = $1 AND customer_id = $2 AND status IN ('pending', 'active')
		ORDER BY created_at DESC
		LIMIT 1
	`, enrollmentColumns)
	return r.scanEnrollment(r.pool.QueryRow(ctx, query, clientID, customerID))
}

// GetByPlatformMembershipID retrieves the enrollment mapped to a platform membership
func (r *PostgresEnrollmentRepository) GetByPlatformMembershipID(ctx context.Context, clientID, platformMembershipID string) (*domain.Enrollment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM enrollments
		WHERE client_id = $1 AND platform_membership_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, enrollmentColumns)
	return r.scanEnrollment(r.pool.QueryRow(ctx, query, clientID, platformMembershipID))
}

func (r *PostgresEnrollmentRepository) scanEnrollment(row pgx.Row) (*domain.Enrollment, error) {
	enrollment := &domain.Enrollment{}
	err := row.Scan(
		&enrollment.ID,
		&enrollment.ClientID,
		&enrollment.CustomerID,
		&enrollment.ClubStageID,
		&enrollment.PlatformMembershipID,
		&enrollment.Status,
		&enrollment.QualifiedByPurchase,
		&enrollment.QualifiedByLTV,
		&enrollment.StartedAt,
		&enrollment.ExpiresAt,
		&enrollment.CancelledAt,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return enrollment, nil
}

// ListByClient retrieves a client's enrollments with pagination and an
// optional status filter
func (r *PostgresEnrollmentRepository) ListByClient(ctx context.Context, clientID string, page, limit int, status string) ([]*domain.Enrollment, int, error) {
	whereClause := "WHERE client_id = $1"
	args := []any{clientID}
	argIndex := 2

	if status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM enrollments %s", whereClause)
	var totalCount int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	query := fmt.Sprintf(`
		SELECT %s
		FROM enrollments
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, enrollmentColumns, whereClause, argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	enrollments := make([]*domain.Enrollment, 0)
	for rows.Next() {
		enrollment := &domain.Enrollment{}
		err := rows.Scan(
			&enrollment.ID,
			&enrollment.ClientID,
			&enrollment.CustomerID,
			&enrollment.ClubStageID,
			&enrollment.PlatformMembershipID,
			&enrollment.Status,
			&enrollment.QualifiedByPurchase,
			&enrollment.QualifiedByLTV,
			&enrollment.StartedAt,
			&enrollment.ExpiresAt,
			&enrollment.CancelledAt,
			&enrollment.CreatedAt,
			&enrollment.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		enrollments = append(enrollments, enrollment)
	}

	return enrollments, totalCount, rows.Err()
}

// Update updates an enrollment
func (r *PostgresEnrollmentRepository) Update(ctx context.Context, enrollment *domain.Enrollment) error {
	query := `
		UPDATE enrollments
		SET club_stage_id = $2, platform_membership_id = $3, status = $4,
		    qualified_by_purchase = $5, qualified_by_ltv = $6, started_at = $7,
		    expires_at = $8, cancelled_at = $9, updated_at = $10
		WHERE id = $1
	`
	enrollment.UpdatedAt = time.Now()
	result, err := r.pool.Exec(ctx, query,
		enrollment.ID,
		enrollment.ClubStageID,
		nullStringOrValue(enrollment.PlatformMembershipID),
		enrollment.Status,
		enrollment.QualifiedByPurchase,
		enrollment.QualifiedByLTV,
		enrollment.StartedAt,
		enrollment.ExpiresAt,
		enrollment.CancelledAt,
		enrollment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("enrollment not found")
	}
	return nil
}

// CountOpenByStage counts open enrollments referencing a stage
func (r *PostgresEnrollmentRepository) CountOpenByStage(ctx context.Context, stageID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM enrollments
		WHERE club_stage_id = $1 AND status IN ('pending', 'active')
	`
	var count int
	err := r.pool.QueryRow(ctx, query, stageID).Scan(&count)
	return count, err
}
