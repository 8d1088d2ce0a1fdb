package dto

import (
	"time"
)

// Topic names for club lifecycle events
const (
	TopicMemberEnrolled    = "member.enrolled"
	TopicMembershipChanged = "membership.changed"
	TopicWebhookReceived   = "webhook.received"
	TopicClientInstalled   = "client.installed"
	TopicClientUninstalled = "client.uninstalled"
)

// MembershipChange represents what happened to a membership
type MembershipChange string

const (
	MembershipChangeUpgraded  MembershipChange = "upgraded"
	MembershipChangeCancelled MembershipChange = "cancelled"
	MembershipChangeExpired   MembershipChange = "expired"
)

// MemberEnrolledEvent is published when a customer joins a club stage
type MemberEnrolledEvent struct {
	EventType           string    `json:"event_type"`
	ClientID            string    `json:"client_id"`
	CustomerID          string    `json:"customer_id"`
	EnrollmentID        string    `json:"enrollment_id"`
	ClubStageID         string    `json:"club_stage_id"`
	StageName           string    `json:"stage_name,omitempty"`
	QualifiedByPurchase bool      `json:"qualified_by_purchase"`
	QualifiedByLTV      bool      `json:"qualified_by_ltv"`
	Timestamp           time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *MemberEnrolledEvent) Key() string {
	return e.CustomerID
}

// MembershipChangedEvent is published when an enrollment is upgraded,
// cancelled, or expires
type MembershipChangedEvent struct {
	EventType    string           `json:"event_type"`
	ClientID     string           `json:"client_id"`
	CustomerID   string           `json:"customer_id"`
	EnrollmentID string           `json:"enrollment_id"`
	FromStageID  string           `json:"from_stage_id,omitempty"`
	ToStageID    string           `json:"to_stage_id,omitempty"`
	Change       MembershipChange `json:"change"`
	Timestamp    time.Time        `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *MembershipChangedEvent) Key() string {
	return e.CustomerID
}

// WebhookReceivedEvent is published after a delivery clears the
// ingestion pipeline, whatever its disposition
type WebhookReceivedEvent struct {
	EventType   string    `json:"event_type"`
	ClientID    string    `json:"client_id,omitempty"`
	CRMType     string    `json:"crm_type"`
	Topic       string    `json:"topic,omitempty"`
	Disposition string    `json:"disposition"` // processed, suppressed, rejected, failed
	Timestamp   time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *WebhookReceivedEvent) Key() string {
	return e.ClientID
}

// ClientLifecycleEvent is published on install and uninstall
type ClientLifecycleEvent struct {
	EventType  string    `json:"event_type"`
	ClientID   string    `json:"client_id"`
	CRMType    string    `json:"crm_type"`
	TenantShop string    `json:"tenant_shop"`
	Timestamp  time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *ClientLifecycleEvent) Key() string {
	return e.ClientID
}
