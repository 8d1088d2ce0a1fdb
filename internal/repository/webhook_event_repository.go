package repository

import (
	"context"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// WebhookEventRepository defines the interface for the webhook delivery
// journal. Journal rows support operator debugging; they are never read
// on the hot path and never used for deduplication.
type WebhookEventRepository interface {
	// Record appends one journal row for an inbound delivery
	Record(ctx context.Context, record *domain.WebhookEventRecord) error
	// ListRecent retrieves the newest journal rows for a client
	ListRecent(ctx context.Context, clientID string, limit int) ([]*domain.WebhookEventRecord, error)
}
