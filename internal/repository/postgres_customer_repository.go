package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// PostgresCustomerRepository implements CustomerRepository using PostgreSQL
type PostgresCustomerRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCustomerRepository creates a new PostgresCustomerRepository
func NewPostgresCustomerRepository(pool *pgxpool.Pool) *PostgresCustomerRepository {
	return &PostgresCustomerRepository{pool: pool}
}

const customerColumns = `id, client_id, platform_customer_id, email,
	       COALESCE(first_name, '') as first_name, COALESCE(last_name, '') as last_name,
	       COALESCE(phone, '') as phone, ltv, COALESCE(currency, '') as currency,
	       created_at, updated_at`

// Upsert inserts or refreshes a customer keyed by (client_id, platform_customer_id)
func (r *PostgresCustomerRepository) Upsert(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, client_id, platform_customer_id, email, first_name, last_name,
		                       phone, ltv, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (client_id, platform_customer_id) DO UPDATE
		SET email = EXCLUDED.email,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    phone = EXCLUDED.phone,
		    ltv = EXCLUDED.ltv,
		    currency = EXCLUDED.currency,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		customer.ID,
		customer.ClientID,
		customer.PlatformCustomerID,
		customer.Email,
		nullStringOrValue(customer.FirstName),
		nullStringOrValue(customer.LastName),
		nullStringOrValue(customer.Phone),
		customer.LTV,
		nullStringOrValue(customer.Currency),
		customer.CreatedAt,
		customer.UpdatedAt,
	)
	return err
}

// GetByID retrieves a customer by local ID
func (r *PostgresCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM customers
		WHERE id = $1
	`, customerColumns)
	return r.scanCustomer(r.pool.QueryRow(ctx, query, id))
}

// GetByPlatformID retrieves a customer by its platform identity
func (r *PostgresCustomerRepository) GetByPlatformID(ctx context.Context, clientID, platformCustomerID string) (*domain.Customer, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM customers
		WHERE client_id = $1 AND platform_customer_id = $2
	`, customerColumns)
	return r.scanCustomer(r.pool.QueryRow(ctx, query, clientID, platformCustomerID))
}

// GetByEmail retrieves a customer by email within a client
func (r *PostgresCustomerRepository) GetByEmail(ctx context.Context, clientID, email string) (*domain.Customer, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM customers
		WHERE client_id = $1 AND LOWER(email) = LOWER($2)
	`, customerColumns)
	return r.scanCustomer(r.pool.QueryRow(ctx, query, clientID, email))
}

func (r *PostgresCustomerRepository) scanCustomer(row pgx.Row) (*domain.Customer, error) {
	customer := &domain.Customer{}
	err := row.Scan(
		&customer.ID,
		&customer.ClientID,
		&customer.PlatformCustomerID,
		&customer.Email,
		&customer.FirstName,
		&customer.LastName,
		&customer.Phone,
		&customer.LTV,
		&customer.Currency,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return customer, nil
}

// DeleteByPlatformID removes the local mirror row
func (r *PostgresCustomerRepository) DeleteByPlatformID(ctx context.Context, clientID, platformCustomerID string) error {
	query := `DELETE FROM customers WHERE client_id = $1 AND platform_customer_id = $2`
	_, err := r.pool.Exec(ctx, query, clientID, platformCustomerID)
	return err
}
