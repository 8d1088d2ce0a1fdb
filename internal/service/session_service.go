package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/dto"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/repository"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/logger"
)

var (
	// ErrSessionNotFound means an operation targeted a session that does
	// not exist. Absence during Load or ResolveFromRequest is NOT this
	// error; those return nil, nil.
	ErrSessionNotFound = errors.New("session not found")
	// ErrImmutableField means an update tried to change a field fixed at
	// session creation
	ErrImmutableField = errors.New("session field is immutable")
)

// CRMQueryParam is the explicit platform selector used when the Host
// carries no platform subdomain (local and dev deployments).
const CRMQueryParam = "crm"

// SessionService defines the interface for URL-token session management
type SessionService interface {
	// Create persists a new session for a client's admin user
	Create(ctx context.Context, clientID string, req *dto.CreateSessionRequest) (*domain.Session, error)
	// Load retrieves a session; a missing session is nil, nil, never an error
	Load(ctx context.Context, id string) (*domain.Session, error)
	// Update merges non-nil fields onto a stored session
	Update(ctx context.Context, id string, req *dto.UpdateSessionRequest) (*domain.Session, error)
	// Delete removes a session; deleting a missing session succeeds
	Delete(ctx context.Context, id string) error
	// ResolveFromRequest resolves the request's session parameter to a
	// session; nil, nil means "not authenticated"
	ResolveFromRequest(ctx context.Context, r *http.Request, crmTypeHint string) (*domain.Session, error)
}

// sessionService implements SessionService
type sessionService struct {
	sessions repository.SessionRepository
}

// NewSessionService creates a new SessionService
func NewSessionService(sessions repository.SessionRepository) SessionService {
	return &sessionService{sessions: sessions}
}

// Create persists a new session for a client's admin user
func (s *sessionService) Create(ctx context.Context, clientID string, req *dto.CreateSessionRequest) (*domain.Session, error) {
	if clientID == "" {
		return nil, errors.New("client_id is required")
	}
	if !domain.ValidCRMType(req.CRMType) {
		return nil, errors.New("invalid crm_type")
	}

	now := time.Now()
	session := &domain.Session{
		ID:          domain.NewSessionID(req.CRMType, req.TenantShop),
		ClientID:    clientID,
		TenantShop:  req.TenantShop,
		CRMType:     req.CRMType,
		UserName:    req.UserName,
		UserEmail:   req.UserEmail,
		AccessToken: req.AccessToken,
		Scope:       req.Scope,
		ExpiresAt:   req.ExpiresAt,
		Theme:       req.Theme,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "session created",
		zap.String("client_id", clientID),
		zap.String("crm_type", req.CRMType),
	)
	return session, nil
}

// Load retrieves a session by ID. A missing or expired session is a
// normal nil, nil outcome so callers can branch on "not authenticated"
// without error plumbing.
func (s *sessionService) Load(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, nil
	}

	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil || session.IsExpired() {
		return nil, nil
	}
	return session, nil
}

// Update merges the non-nil fields of req onto the stored session.
// Immutable fields (id, client_id, tenant_shop, crm_type) are rejected
// outright rather than silently dropped.
func (s *sessionService) Update(ctx context.Context, id string, req *dto.UpdateSessionRequest) (*domain.Session, error) {
	if req.TouchesImmutable() {
		return nil, ErrImmutableField
	}

	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	fields := make([]string, 0, 7)
	if req.UserName != nil {
		session.UserName = *req.UserName
		fields = append(fields, repository.SessionFieldUserName)
	}
	if req.UserEmail != nil {
		session.UserEmail = *req.UserEmail
		fields = append(fields, repository.SessionFieldUserEmail)
	}
	if req.AccessToken != nil {
		session.AccessToken = *req.AccessToken
		fields = append(fields, repository.SessionFieldAccessToken)
	}
	if req.Scope != nil {
		session.Scope = *req.Scope
		fields = append(fields, repository.SessionFieldScope)
	}
	if req.ExpiresAt != nil {
		session.ExpiresAt = req.ExpiresAt
		fields = append(fields, repository.SessionFieldExpiresAt)
	}
	if req.Theme != nil {
		session.Theme = *req.Theme
		fields = append(fields, repository.SessionFieldTheme)
	}
	if len(fields) == 0 {
		return session, nil
	}

	session.UpdatedAt = time.Now()
	fields = append(fields, repository.SessionFieldUpdatedAt)

	if err := s.sessions.UpdateFields(ctx, session, fields); err != nil {
		return nil, err
	}
	return session, nil
}

// Delete removes a session. Deleting a missing session is a success:
// logout must never fail because the session already lapsed.
func (s *sessionService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.sessions.Delete(ctx, id)
}

// ResolveFromRequest resolves the `session` query parameter into a
// session. crmTypeHint pins the expected platform; when empty, the Host
// subdomain decides, with the `crm` query parameter as fallback. A
// platform mismatch resolves to nil, nil the same as an unknown ID, so
// a Commerce7 token never authenticates a Shopify surface.
func (s *sessionService) ResolveFromRequest(ctx context.Context, r *http.Request, crmTypeHint string) (*domain.Session, error) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	expected := crmTypeHint
	if expected == "" {
		expected = domain.InferCRMTypeFromHost(r.Host)
	}
	if expected == "" {
		expected = r.URL.Query().Get(CRMQueryParam)
	}
	if expected != "" && session.CRMType != expected {
		logger.WarnCtx(ctx, "session platform mismatch",
			zap.String("client_id", session.ClientID),
			zap.String("expected", expected),
			zap.String("actual", session.CRMType),
		)
		return nil, nil
	}

	return session, nil
}
