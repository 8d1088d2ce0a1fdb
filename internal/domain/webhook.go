package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// WebhookTopic is a normalized, closed-set event name. Platform-specific
// envelopes are mapped onto these before any business logic runs;
// everything downstream of ingestion speaks topics only.
type WebhookTopic string

const (
	TopicCustomersUpdate      WebhookTopic = "customers/update"
	TopicCustomersDelete      WebhookTopic = "customers/delete"
	TopicOrdersCreate         WebhookTopic = "orders/create"
	TopicClubUpdate           WebhookTopic = "club/update"
	TopicClubDelete           WebhookTopic = "club/delete"
	TopicClubMembershipUpdate WebhookTopic = "club-membership/update"
	TopicClubMembershipDelete WebhookTopic = "club-membership/delete"
	TopicAppUninstalled       WebhookTopic = "app/uninstalled"
)

// Commerce7Envelope is Commerce7's native delivery shape. User is the
// email of the platform account whose action produced the event; it
// drives self-trigger suppression.
type Commerce7Envelope struct {
	Object   string          `json:"object"`
	Action   string          `json:"action"`
	Payload  json.RawMessage `json:"payload"`
	TenantID string          `json:"tenantId"`
	User     string          `json:"user"`
}

// commerce7Topics maps normalized (object, action) pairs onto topics.
// Pairs outside this table are rejected at ingestion with a 400: an
// unmapped pair may represent platform behavior the system does not yet
// reconcile, and accepting it silently risks undetected data drift.
var commerce7Topics = map[string]WebhookTopic{
	"customer:update":        TopicCustomersUpdate,
	"customer:delete":        TopicCustomersDelete,
	"order:create":           TopicOrdersCreate,
	"club:update":            TopicClubUpdate,
	"club:delete":            TopicClubDelete,
	"club-membership:update": TopicClubMembershipUpdate,
	"club-membership:delete": TopicClubMembershipDelete,
}

// TopicForCommerce7 resolves the normalized topic for a Commerce7
// (object, action) pair. Matching is case-insensitive and tolerates the
// platform's spaced object names ("Club Membership").
func TopicForCommerce7(object, action string) (WebhookTopic, bool) {
	key := normalizeC7(object) + ":" + normalizeC7(action)
	topic, ok := commerce7Topics[key]
	return topic, ok
}

func normalizeC7(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

// shopifyTopics is the subset of Shopify webhook topics this system
// subscribes to. Shopify already names topics in the normalized form.
var shopifyTopics = map[string]WebhookTopic{
	"customers/update": TopicCustomersUpdate,
	"customers/delete": TopicCustomersDelete,
	"orders/create":    TopicOrdersCreate,
	"app/uninstalled":  TopicAppUninstalled,
}

// TopicForShopify resolves a Shopify topic header value against the
// closed set.
func TopicForShopify(header string) (WebhookTopic, bool) {
	topic, ok := shopifyTopics[strings.ToLower(strings.TrimSpace(header))]
	return topic, ok
}

// WebhookEvent is the normalized event handed to a provider once
// parsing, tenant auth, and topic mapping have all passed. Payload stays
// raw JSON; each provider decodes it per topic.
type WebhookEvent struct {
	Topic      WebhookTopic    `json:"topic"`
	CRMType    string          `json:"crm_type"`
	TenantShop string          `json:"tenant_shop"`
	User       string          `json:"user,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Webhook dispositions recorded in the delivery journal. The journal is
// for operator debugging only; deduplication comes from idempotent
// provider writes, not from journal lookups.
const (
	WebhookDispositionProcessed     = "processed"
	WebhookDispositionSuppressed    = "suppressed"
	WebhookDispositionUnknownTenant = "unknown_tenant"
	WebhookDispositionUnmapped      = "unmapped"
	WebhookDispositionMalformed     = "malformed"
	WebhookDispositionFailed        = "failed"
)

// WebhookEventRecord is one journal row per inbound delivery.
type WebhookEventRecord struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id,omitempty"`
	CRMType     string    `json:"crm_type"`
	TenantShop  string    `json:"tenant_shop,omitempty"`
	Topic       string    `json:"topic,omitempty"`
	User        string    `json:"user,omitempty"`
	Disposition string    `json:"disposition"`
	Error       string    `json:"error,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}
