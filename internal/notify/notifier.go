// Package notify is the boundary to the member-communications provider.
// The service decides WHEN a member should hear about something; how the
// message is rendered and delivered lives behind Notifier.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/events"
)

// Kind names the communication to send
type Kind string

const (
	KindEnrollmentWelcome   Kind = "enrollment_welcome"
	KindMembershipUpgraded  Kind = "membership_upgraded"
	KindMembershipCancelled Kind = "membership_cancelled"
)

// Notifier sends one member communication. Failures are reported but
// callers treat them as non-fatal; a missed welcome email never rolls
// back an enrollment.
type Notifier interface {
	Send(ctx context.Context, clientID, customerID string, kind Kind) error
}

// Config selects and configures the Notifier implementation
type Config struct {
	Mode    string // http, kafka, noop
	URL     string
	Timeout time.Duration
}

// New builds the Notifier for the configured mode. Unknown modes fall
// back to the no-op notifier.
func New(cfg Config, publisher *events.Publisher) Notifier {
	switch cfg.Mode {
	case "http":
		return NewHTTPNotifier(cfg.URL, cfg.Timeout)
	case "kafka":
		return NewKafkaNotifier(publisher)
	default:
		return NewNoOpNotifier()
	}
}

// HTTPNotifier delivers notification requests to a communications
// service over HTTP
type HTTPNotifier struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPNotifier creates a new HTTP notifier
func NewHTTPNotifier(baseURL string, timeout time.Duration) *HTTPNotifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPNotifier{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the notification request to the communications service
func (n *HTTPNotifier) Send(ctx context.Context, clientID, customerID string, kind Kind) error {
	body, err := json.Marshal(map[string]string{
		"client_id":   clientID,
		"customer_id": customerID,
		"kind":        string(kind),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/notifications", n.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	var apiResponse struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !apiResponse.Success {
		return fmt.Errorf("notification service error: %s", apiResponse.Error)
	}

	return nil
}

// notificationRequestedEvent is the Kafka shape of a notification request
type notificationRequestedEvent struct {
	EventType  string    `json:"event_type"`
	ClientID   string    `json:"client_id"`
	CustomerID string    `json:"customer_id"`
	Kind       string    `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *notificationRequestedEvent) Key() string {
	return e.CustomerID
}

// TopicNotificationRequested carries notification requests to the
// communications consumer
const TopicNotificationRequested = "notification.requested"

// KafkaNotifier hands notification requests to a communications
// consumer through the event bus
type KafkaNotifier struct {
	publisher *events.Publisher
}

// NewKafkaNotifier creates a new Kafka notifier
func NewKafkaNotifier(publisher *events.Publisher) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher}
}

// Send publishes the notification request
func (n *KafkaNotifier) Send(ctx context.Context, clientID, customerID string, kind Kind) error {
	return n.publisher.Publish(ctx, TopicNotificationRequested, &notificationRequestedEvent{
		EventType:  TopicNotificationRequested,
		ClientID:   clientID,
		CustomerID: customerID,
		Kind:       string(kind),
		Timestamp:  time.Now(),
	})
}

// NoOpNotifier is used when no communications provider is configured
// and in tests
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new no-op notifier
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Send does nothing
func (n *NoOpNotifier) Send(ctx context.Context, clientID, customerID string, kind Kind) error {
	return nil
}
