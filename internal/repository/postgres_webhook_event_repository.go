package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// PostgresWebhookEventRepository implements WebhookEventRepository using PostgreSQL
type PostgresWebhookEventRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresWebhookEventRepository creates a new PostgresWebhookEventRepository
func NewPostgresWebhookEventRepository(pool *pgxpool.Pool) *PostgresWebhookEventRepository {
	return &PostgresWebhookEventRepository{pool: pool}
}

// Record appends one journal row for an inbound delivery
func (r *PostgresWebhookEventRepository) Record(ctx context.Context, record *domain.WebhookEventRecord) error {
	query := `
		INSERT INTO webhook_events (id, client_id, crm_type, tenant_shop, topic, platform_user,
		                            disposition, error, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		record.ID,
		nullStringOrValue(record.ClientID),
		record.CRMType,
		nullStringOrValue(record.TenantShop),
		nullStringOrValue(record.Topic),
		nullStringOrValue(record.User),
		record.Disposition,
		nullStringOrValue(record.Error),
		record.ReceivedAt,
	)
	return err
}

// ListRecent retrieves the newest journal rows for a client
func (r *PostgresWebhookEventRepository) ListRecent(ctx context.Context, clientID string, limit int) ([]*domain.WebhookEventRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT id, COALESCE(client_id, '') as client_id, crm_type,
		       COALESCE(tenant_shop, '') as tenant_shop, COALESCE(topic, '') as topic,
		       COALESCE(platform_user, '') as platform_user, disposition,
		       COALESCE(error, '') as error, received_at
		FROM webhook_events
		WHERE client_id = $1
		ORDER BY received_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*domain.WebhookEventRecord, 0)
	for rows.Next() {
		record := &domain.WebhookEventRecord{}
		err := rows.Scan(
			&record.ID,
			&record.ClientID,
			&record.CRMType,
			&record.TenantShop,
			&record.Topic,
			&record.User,
			&record.Disposition,
			&record.Error,
			&record.ReceivedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
