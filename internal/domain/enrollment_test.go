package domain

import (
	"testing"
)

func TestNewEnrollment(t *testing.T) {
	tests := []struct {
		name        string
		clientID    string
		customerID  string
		clubStageID string
		wantErr     bool
	}{
		{
			name:        "valid enrollment",
			clientID:    "client-123",
			customerID:  "customer-123",
			clubStageID: "stage-123",
			wantErr:     false,
		},
		{
			name:        "missing client_id",
			clientID:    "",
			customerID:  "customer-123",
			clubStageID: "stage-123",
			wantErr:     true,
		},
		{
			name:        "missing customer_id",
			clientID:    "client-123",
			customerID:  "",
			clubStageID: "stage-123",
			wantErr:     true,
		},
		{
			name:        "missing club_stage_id",
			clientID:    "client-123",
			customerID:  "customer-123",
			clubStageID: "",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enrollment, err := NewEnrollment(tt.clientID, tt.customerID, tt.clubStageID)

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}

			if enrollment.ID == "" {
				t.Error("Expected enrollment ID to be set")
			}
			if enrollment.Status != EnrollmentStatusPending {
				t.Errorf("Expected status pending, got %s", enrollment.Status)
			}
			if !enrollment.IsOpen() {
				t.Error("New enrollment should be open")
			}
		})
	}
}

func TestEnrollment_Activate(t *testing.T) {
	enrollment, _ := NewEnrollment("client-123", "customer-123", "stage-123")

	err := enrollment.Activate("platform-mem-1", 12)
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	if enrollment.Status != EnrollmentStatusActive {
		t.Errorf("Expected status active, got %s", enrollment.Status)
	}
	if enrollment.PlatformMembershipID != "platform-mem-1" {
		t.Errorf("Expected platform_membership_id platform-mem-1, got %s", enrollment.PlatformMembershipID)
	}
	if enrollment.StartedAt == nil {
		t.Error("Expected started_at to be set")
	}
	if enrollment.ExpiresAt == nil {
		t.Error("Expected expires_at to be set for a 12 month term")
	}

	// Should fail if called again
	err = enrollment.Activate("platform-mem-2", 12)
	if err == nil {
		t.Error("Expected error when activating twice")
	}
}

func TestEnrollment_Activate_OpenEnded(t *testing.T) {
	enrollment, _ := NewEnrollment("client-123", "customer-123", "stage-123")

	if err := enrollment.Activate("platform-mem-1", 0); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if enrollment.ExpiresAt != nil {
		t.Error("Zero duration should leave expires_at unset")
	}
}

func TestEnrollment_Activate_RequiresMembershipID(t *testing.T) {
	enrollment, _ := NewEnrollment("client-123", "customer-123", "stage-123")

	if err := enrollment.Activate("", 12); err == nil {
		t.Error("Expected error for empty platform_membership_id")
	}
	if enrollment.Status != EnrollmentStatusPending {
		t.Errorf("Failed activation should leave status pending, got %s", enrollment.Status)
	}
}

func TestEnrollment_Cancel(t *testing.T) {
	// Cancel from active
	enrollment, _ := NewEnrollment("client-123", "customer-123", "stage-123")
	enrollment.Activate("platform-mem-1", 12)

	if err := enrollment.Cancel(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if enrollment.Status != EnrollmentStatusCancelled {
		t.Errorf("Expected status cancelled, got %s", enrollment.Status)
	}
	if enrollment.CancelledAt == nil {
		t.Error("Expected cancelled_at to be set")
	}

	// Should fail if called again
	if err := enrollment.Cancel(); err == nil {
		t.Error("Expected error when cancelling a finished enrollment")
	}

	// Cancel from pending is allowed
	enrollment2, _ := NewEnrollment("client-123", "customer-456", "stage-123")
	if err := enrollment2.Cancel(); err != nil {
		t.Errorf("Unexpected error cancelling pending enrollment: %v", err)
	}
}

func TestEnrollment_Expire(t *testing.T) {
	enrollment, _ := NewEnrollment("client-123", "customer-123", "stage-123")

	// Should fail from pending
	if err := enrollment.Expire(); err == nil {
		t.Error("Expected error expiring a pending enrollment")
	}

	enrollment.Activate("platform-mem-1", 12)
	if err := enrollment.Expire(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if enrollment.Status != EnrollmentStatusExpired {
		t.Errorf("Expected status expired, got %s", enrollment.Status)
	}
	if !enrollment.IsFinal() {
		t.Error("Expired enrollment should be final")
	}
	if enrollment.IsOpen() {
		t.Error("Expired enrollment should not be open")
	}
}
