package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/events"
)

func TestHTTPNotifierSend(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/notifications" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	notifier := NewHTTPNotifier(server.URL, 5*time.Second)
	err := notifier.Send(context.Background(), "client-1", "cust-1", KindEnrollmentWelcome)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got["client_id"] != "client-1" {
		t.Errorf("expected client_id 'client-1', got '%s'", got["client_id"])
	}
	if got["customer_id"] != "cust-1" {
		t.Errorf("expected customer_id 'cust-1', got '%s'", got["customer_id"])
	}
	if got["kind"] != string(KindEnrollmentWelcome) {
		t.Errorf("expected kind '%s', got '%s'", KindEnrollmentWelcome, got["kind"])
	}
}

func TestHTTPNotifierSendServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error": "template missing"}`))
	}))
	defer server.Close()

	notifier := NewHTTPNotifier(server.URL, 5*time.Second)
	err := notifier.Send(context.Background(), "client-1", "cust-1", KindMembershipUpgraded)
	if err == nil {
		t.Fatal("expected error when service reports failure")
	}
}

func TestHTTPNotifierSendBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewHTTPNotifier(server.URL, 5*time.Second)
	err := notifier.Send(context.Background(), "client-1", "cust-1", KindEnrollmentWelcome)
	if err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestKafkaNotifierDisabledPublisher(t *testing.T) {
	publisher, err := events.NewPublisher(nil)
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}

	notifier := NewKafkaNotifier(publisher)
	if err := notifier.Send(context.Background(), "client-1", "cust-1", KindEnrollmentWelcome); err != nil {
		t.Fatalf("Send through disabled publisher should be a no-op, got %v", err)
	}
}

func TestNoOpNotifier(t *testing.T) {
	notifier := NewNoOpNotifier()
	if err := notifier.Send(context.Background(), "client-1", "cust-1", KindMembershipCancelled); err != nil {
		t.Fatalf("no-op Send returned %v", err)
	}
}

func TestNewSelectsMode(t *testing.T) {
	publisher, _ := events.NewPublisher(nil)

	tests := []struct {
		mode string
		want string
	}{
		{"http", "*notify.HTTPNotifier"},
		{"kafka", "*notify.KafkaNotifier"},
		{"noop", "*notify.NoOpNotifier"},
		{"", "*notify.NoOpNotifier"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			n := New(Config{Mode: tt.mode, URL: "http://localhost:8090"}, publisher)
			var got string
			switch n.(type) {
			case *HTTPNotifier:
				got = "*notify.HTTPNotifier"
			case *KafkaNotifier:
				got = "*notify.KafkaNotifier"
			case *NoOpNotifier:
				got = "*notify.NoOpNotifier"
			}
			if got != tt.want {
				t.Errorf("New(%q) = %s, want %s", tt.mode, got, tt.want)
			}
		})
	}
}
