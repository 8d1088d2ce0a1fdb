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

// PostgresClientRepository implements ClientRepository using PostgreSQL
type PostgresClientRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresClientRepository creates a new PostgresClientRepository
func NewPostgresClientRepository(pool *pgxpool.Pool) *PostgresClientRepository {
	return &PostgresClientRepository{pool: pool}
}

const clientColumns = `id, crm_type, tenant_shop, COALESCE(org_name, '') as org_name,
	       COALESCE(owner_email, '') as owner_email, COALESCE(access_token, '') as access_token,
	       COALESCE(scope, '') as scope, setup_complete, COALESCE(settings, '{}'::jsonb) as settings,
	       is_active, created_at, updated_at, deleted_at`

// Create creates a new client
func (r *PostgresClientRepository) Create(ctx context.Context, client *domain.Client) error {
	query := `
		INSERT INTO clients (id, crm_type, tenant_shop, org_name, owner_email, access_token, scope,
		                     setup_complete, settings, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		client.ID,
		client.CRMType,
		client.TenantShop,
		nullStringOrValue(client.OrgName),
		nullStringOrValue(client.OwnerEmail),
		nullStringOrValue(client.AccessToken),
		nullStringOrValue(client.Scope),
		client.SetupComplete,
		client.Settings,
		client.IsActive,
		client.CreatedAt,
		client.UpdatedAt,
	)
	return err
}

// GetByID retrieves a client by ID
func (r *PostgresClientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM clients
		WHERE id = $1 AND deleted_at IS NULL
	`, clientColumns)
	return r.scanClient(r.pool.QueryRow(ctx, query, id))
}

// GetByTenant retrieves the client bound to a platform identity
func (r *PostgresClientRepository) GetByTenant(ctx context.Context, crmType, tenantShop string) (*domain.Client, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM clients
		WHERE crm_type = $1 AND tenant_shop = $2 AND deleted_at IS NULL
	`, clientColumns)
	return r.scanClient(r.pool.QueryRow(ctx, query, crmType, tenantShop))
}

func (r *PostgresClientRepository) scanClient(row pgx.Row) (*domain.Client, error) {
	client := &domain.Client{}
	err := row.Scan(
		&client.ID,
		&client.CRMType,
		&client.TenantShop,
		&client.OrgName,
		&client.OwnerEmail,
		&client.AccessToken,
		&client.Scope,
		&client.SetupComplete,
		&client.Settings,
		&client.IsActive,
		&client.CreatedAt,
		&client.UpdatedAt,
		&client.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return client, nil
}

// Update updates a client
func (r *PostgresClientRepository) Update(ctx context.Context, client *domain.Client) error {
	query := `
		UPDATE clients
		SET org_name = $2, owner_email = $3, access_token = $4, scope = $5,
		    setup_complete = $6, settings = $7, is_active = $8, updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL
	`
	client.UpdatedAt = time.Now()
	result, err := r.pool.Exec(ctx, query,
		client.ID,
		nullStringOrValue(client.OrgName),
		nullStringOrValue(client.OwnerEmail),
		nullStringOrValue(client.AccessToken),
		nullStringOrValue(client.Scope),
		client.SetupComplete,
		client.Settings,
		client.IsActive,
		client.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("client not found or already deleted")
	}
	return nil
}

// SoftDelete soft deletes a client by setting deleted_at timestamp
func (r *PostgresClientRepository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE clients
		SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("client not found or already deleted")
	}
	return nil
}

// nullStringOrValue returns nil for empty strings, otherwise returns the value
func nullStringOrValue(s string) any {
	if s == "" {
		return nil
	}
	return s
}
