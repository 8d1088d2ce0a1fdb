package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/redis"
)

// RedisSessionRepository implements SessionRepository on a Redis hash
// per session. Field-level HSET writes give the per-field
// last-write-wins behavior concurrent tabs need; TTL handles abandoned
// sessions without a reaper.
type RedisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionRepository creates a new RedisSessionRepository
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) *RedisSessionRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionRepository{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return "session:" + id
}

// Create persists a new session under the configured TTL
func (r *RedisSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	key := sessionKey(session.ID)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, encodeSession(session))
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// GetByID retrieves a session, returning nil, nil on a miss
func (r *RedisSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	values, err := r.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return decodeSession(id, values), nil
}

// UpdateFields writes only the named fields and refreshes the TTL
func (r *RedisSessionRepository) UpdateFields(ctx context.Context, session *domain.Session, fields []string) error {
	if len(fields) == 0 {
		return nil
	}

	values := make(map[string]string, len(fields))
	all := encodeSession(session)
	for _, f := range fields {
		if v, ok := all[f]; ok {
			values[f] = v
		}
	}

	key := sessionKey(session.ID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, values)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Delete removes a session; deleting a missing session is not an error
func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// encodeSession flattens a session onto hash fields. Times travel as
// RFC 3339; an unset expiry is stored as the empty string.
func encodeSession(s *domain.Session) map[string]string {
	expiresAt := ""
	if s.ExpiresAt != nil {
		expiresAt = s.ExpiresAt.Format(time.RFC3339Nano)
	}
	return map[string]string{
		SessionFieldClientID:    s.ClientID,
		SessionFieldTenantShop:  s.TenantShop,
		SessionFieldCRMType:     s.CRMType,
		SessionFieldUserName:    s.UserName,
		SessionFieldUserEmail:   s.UserEmail,
		SessionFieldAccessToken: s.AccessToken,
		SessionFieldScope:       s.Scope,
		SessionFieldExpiresAt:   expiresAt,
		SessionFieldTheme:       s.Theme,
		SessionFieldCreatedAt:   s.CreatedAt.Format(time.RFC3339Nano),
		SessionFieldUpdatedAt:   s.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func decodeSession(id string, values map[string]string) *domain.Session {
	s := &domain.Session{
		ID:          id,
		ClientID:    values[SessionFieldClientID],
		TenantShop:  values[SessionFieldTenantShop],
		CRMType:     values[SessionFieldCRMType],
		UserName:    values[SessionFieldUserName],
		UserEmail:   values[SessionFieldUserEmail],
		AccessToken: values[SessionFieldAccessToken],
		Scope:       values[SessionFieldScope],
		Theme:       values[SessionFieldTheme],
	}
	if v := values[SessionFieldExpiresAt]; v != "" {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			s.ExpiresAt = &ts
		}
	}
	if v := values[SessionFieldCreatedAt]; v != "" {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			s.CreatedAt = ts
		}
	}
	if v := values[SessionFieldUpdatedAt]; v != "" {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			s.UpdatedAt = ts
		}
	}
	return s
}
