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

// PostgresClubProgramRepository implements ClubProgramRepository using PostgreSQL
type PostgresClubProgramRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresClubProgramRepository creates a new PostgresClubProgramRepository
func NewPostgresClubProgramRepository(pool *pgxpool.Pool) *PostgresClubProgramRepository {
	return &PostgresClubProgramRepository{pool: pool}
}

const programColumns = `id, client_id, name, COALESCE(description, '') as description,
	       COALESCE(platform_club_id, '') as platform_club_id, is_active, created_at, updated_at, deleted_at`

// Create creates a new club program
func (r *PostgresClubProgramRepository) Create(ctx context.Context, program *domain.ClubProgram) error {
	query := `
		INSERT INTO club_programs (id, client_id, name, description, platform_club_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		program.ID,
		program.ClientID,
		program.Name,
		nullStringOrValue(program.Description),
		nullStringOrValue(program.PlatformClubID),
		program.IsActive,
		program.CreatedAt,
		program.UpdatedAt,
	)
	return err
}

// GetByID retrieves a program by ID
func (r *PostgresClubProgramRepository) GetByID(ctx context.Context, id string) (*domain.ClubProgram, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM club_programs
		WHERE id = $1 AND deleted_at IS NULL
	`, programColumns)
	return r.scanProgram(r.pool.QueryRow(ctx, query, id))
}

// GetByClientID retrieves a client's active program
func (r *PostgresClubProgramRepository) GetByClientID(ctx context.Context, clientID string) (*domain.ClubProgram, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM club_programs
		WHERE client_id = $1 AND is_active = true AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, programColumns)
	return r.scanProgram(r.pool.QueryRow(ctx, query, clientID))
}

func (r *PostgresClubProgramRepository) scanProgram(row pgx.Row) (*domain.ClubProgram, error) {
	program := &domain.ClubProgram{}
	err := row.Scan(
		&program.ID,
		&program.ClientID,
		&program.Name,
		&program.Description,
		&program.PlatformClubID,
		&program.IsActive,
		&program.CreatedAt,
		&program.UpdatedAt,
		&program.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return program, nil
}

// Update updates a program
func (r *PostgresClubProgramRepository) Update(ctx context.Context, program *domain.ClubProgram) error {
	query := `
		UPDATE club_programs
		SET name = $2, description = $3, platform_club_id = $4, is_active = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
	`
	program.UpdatedAt = time.Now()
	result, err := r.pool.Exec(ctx, query,
		program.ID,
		program.Name,
		nullStringOrValue(program.Description),
		nullStringOrValue(program.PlatformClubID),
		program.IsActive,
		program.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("club program not found or already deleted")
	}
	return nil
}

// PostgresClubStageRepository implements ClubStageRepository using PostgreSQL
type PostgresClubStageRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresClubStageRepository creates a new PostgresClubStageRepository
func NewPostgresClubStageRepository(pool *pgxpool.Pool) *PostgresClubStageRepository {
	return &PostgresClubStageRepository{pool: pool}
}

const stageColumns = `id, club_program_id, name, stage_order, min_purchase_amount, min_ltv_amount,
	       duration_months, discount_percent,
	       COALESCE(platform_discount_id, '') as platform_discount_id,
	       is_active, created_at, updated_at, deleted_at`

// Create creates a new stage
func (r *PostgresClubStageRepository) Create(ctx context.Context, stage *domain.ClubStage) error {
	query := `
		INSERT INTO club_stages (id, club_program_id, name, stage_order, min_purchase_amount,
		                         min_ltv_amount, duration_months, discount_percent,
		                         platform_discount_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		stage.ID,
		stage.ClubProgramID,
		stage.Name,
		stage.StageOrder,
		stage.MinPurchaseAmount,
		stage.MinLtvAmount,
		stage.DurationMonths,
		stage.DiscountPercent,
		nullStringOrValue(stage.PlatformDiscountID),
		stage.IsActive,
		stage.CreatedAt,
		stage.UpdatedAt,
	)
	return err
}

// GetByID retrieves a stage by ID
func (r *PostgresClubStageRepository) GetByID(ctx context.Context, id string) (*domain.ClubStage, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM club_stages
		WHERE id = $1 AND deleted_at IS NULL
	`, stageColumns)

	stage := &domain.ClubStage{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&stage.ID,
		&stage.ClubProgramID,
		&stage.Name,
		&stage.StageOrder,
		&stage.MinPurchaseAmount,
		&stage.MinLtvAmount,
		&stage.DurationMonths,
		&stage.DiscountPercent,
		&stage.PlatformDiscountID,
		&stage.IsActive,
		&stage.CreatedAt,
		&stage.UpdatedAt,
		&stage.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return stage, nil
}

// ListByProgram retrieves a program's stages ordered ascending by stage_order
func (r *PostgresClubStageRepository) ListByProgram(ctx context.Context, programID string, activeOnly bool) ([]*domain.ClubStage, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM club_stages
		WHERE club_program_id = $1 AND deleted_at IS NULL
	`, stageColumns)
	if activeOnly {
		query += " AND is_active = true"
	}
	query += " ORDER BY stage_order ASC"

	rows, err := r.pool.Query(ctx, query, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]*domain.ClubStage, 0)
	for rows.Next() {
		stage := &domain.ClubStage{}
		err := rows.Scan(
			&stage.ID,
			&stage.ClubProgramID,
			&stage.Name,
			&stage.StageOrder,
			&stage.MinPurchaseAmount,
			&stage.MinLtvAmount,
			&stage.DurationMonths,
			&stage.DiscountPercent,
			&stage.PlatformDiscountID,
			&stage.IsActive,
			&stage.CreatedAt,
			&stage.UpdatedAt,
			&stage.DeletedAt,
		)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// Update updates a stage
func (r *PostgresClubStageRepository) Update(ctx context.Context, stage *domain.ClubStage) error {
	query := `
		UPDATE club_stages
		SET name = $2, stage_order = $3, min_purchase_amount = $4, min_ltv_amount = $5,
		    duration_months = $6, discount_percent = $7, platform_discount_id = $8,
		    is_active = $9, updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL
	`
	stage.UpdatedAt = time.Now()
	result, err := r.pool.Exec(ctx, query,
		stage.ID,
		stage.Name,
		stage.StageOrder,
		stage.MinPurchaseAmount,
		stage.MinLtvAmount,
		stage.DurationMonths,
		stage.DiscountPercent,
		nullStringOrValue(stage.PlatformDiscountID),
		stage.IsActive,
		stage.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("club stage not found or already deleted")
	}
	return nil
}

// SoftDelete soft deletes a stage by setting deleted_at timestamp
func (r *PostgresClubStageRepository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE club_stages
		SET deleted_at = $2, is_active = false
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("club stage not found or already deleted")
	}
	return nil
}

// ActiveOrderTaken checks whether another active stage of the program
// already holds the given stage_order
func (r *PostgresClubStageRepository) ActiveOrderTaken(ctx context.Context, programID string, stageOrder int, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM club_stages
			WHERE club_program_id = $1 AND stage_order = $2 AND is_active = true
			  AND deleted_at IS NULL AND id <> $3
		)
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query, programID, stageOrder, excludeID).Scan(&exists)
	return exists, err
}
