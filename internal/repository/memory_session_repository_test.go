package repository

import (
	"context"
	"testing"
	"time"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

func testSession() *domain.Session {
	now := time.Now().Truncate(time.Second)
	return &domain.Session{
		ID:         "sess_c7_silveroak_01ABC",
		ClientID:   "client-123",
		TenantShop: "silver-oak",
		CRMType:    domain.CRMTypeCommerce7,
		UserName:   "Tasting Room",
		UserEmail:  "owner@silveroak.example",
		Scope:      "admin",
		Theme:      "light",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMemorySessionRepository_RoundTrip(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()
	session := testSession()

	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Unexpected create error: %v", err)
	}

	loaded, err := repo.GetByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("Unexpected load error: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected session, got nil")
	}
	if *loaded != *session {
		t.Errorf("Loaded session differs from stored: got %+v, want %+v", loaded, session)
	}
}

func TestMemorySessionRepository_MissReturnsNilNil(t *testing.T) {
	repo := NewMemorySessionRepository()

	loaded, err := repo.GetByID(context.Background(), "sess_c7_nowhere_000")
	if err != nil {
		t.Fatalf("Miss must not be an error, got: %v", err)
	}
	if loaded != nil {
		t.Errorf("Expected nil for missing session, got %+v", loaded)
	}
}

func TestMemorySessionRepository_DeleteIdempotent(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()
	session := testSession()

	repo.Create(ctx, session)

	if err := repo.Delete(ctx, session.ID); err != nil {
		t.Fatalf("Unexpected delete error: %v", err)
	}

	loaded, err := repo.GetByID(ctx, session.ID)
	if err != nil || loaded != nil {
		t.Errorf("Expected nil, nil after delete, got %+v, %v", loaded, err)
	}

	// Second delete of the same ID must also succeed
	if err := repo.Delete(ctx, session.ID); err != nil {
		t.Errorf("Delete should be idempotent, got: %v", err)
	}
}

func TestMemorySessionRepository_UpdateFields(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()
	session := testSession()
	repo.Create(ctx, session)

	patch := *session
	patch.UserName = "Cellar Door"
	patch.Theme = "dark"
	patch.UserEmail = "ignored@silveroak.example"

	// Only the named fields may change.
	err := repo.UpdateFields(ctx, &patch, []string{SessionFieldUserName, SessionFieldTheme})
	if err != nil {
		t.Fatalf("Unexpected update error: %v", err)
	}

	loaded, _ := repo.GetByID(ctx, session.ID)
	if loaded.UserName != "Cellar Door" {
		t.Errorf("Expected user_name Cellar Door, got %s", loaded.UserName)
	}
	if loaded.Theme != "dark" {
		t.Errorf("Expected theme dark, got %s", loaded.Theme)
	}
	if loaded.UserEmail != session.UserEmail {
		t.Errorf("Unnamed field changed: got %s, want %s", loaded.UserEmail, session.UserEmail)
	}
}

func TestMemorySessionRepository_ConcurrentFieldMerge(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()
	session := testSession()
	repo.Create(ctx, session)

	// Two tabs write disjoint fields; both writes must survive.
	patchA := *session
	patchA.UserName = "Tab A"
	patchB := *session
	patchB.Theme = "dark"

	done := make(chan error, 2)
	go func() {
		done <- repo.UpdateFields(ctx, &patchA, []string{SessionFieldUserName})
	}()
	go func() {
		done <- repo.UpdateFields(ctx, &patchB, []string{SessionFieldTheme})
	}()
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Unexpected update error: %v", err)
		}
	}

	loaded, _ := repo.GetByID(ctx, session.ID)
	if loaded.UserName != "Tab A" {
		t.Errorf("Expected user_name Tab A, got %s", loaded.UserName)
	}
	if loaded.Theme != "dark" {
		t.Errorf("Expected theme dark, got %s", loaded.Theme)
	}
}

func TestSessionEncodeDecode(t *testing.T) {
	session := testSession()
	expires := time.Now().Add(2 * time.Hour).Truncate(time.Millisecond)
	session.ExpiresAt = &expires
	session.AccessToken = "shpat_secret"

	decoded := decodeSession(session.ID, encodeSession(session))

	if decoded.ID != session.ID || decoded.ClientID != session.ClientID {
		t.Errorf("Identity fields lost: %+v", decoded)
	}
	if decoded.AccessToken != "shpat_secret" {
		t.Errorf("Expected access token to survive, got %q", decoded.AccessToken)
	}
	if decoded.ExpiresAt == nil || !decoded.ExpiresAt.Equal(expires) {
		t.Errorf("Expected expires_at %v, got %v", expires, decoded.ExpiresAt)
	}
	if !decoded.CreatedAt.Equal(session.CreatedAt) {
		t.Errorf("Expected created_at %v, got %v", session.CreatedAt, decoded.CreatedAt)
	}

	// Unset expiry must decode back to nil.
	session.ExpiresAt = nil
	decoded = decodeSession(session.ID, encodeSession(session))
	if decoded.ExpiresAt != nil {
		t.Errorf("Expected nil expires_at, got %v", decoded.ExpiresAt)
	}
}
