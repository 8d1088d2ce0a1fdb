package dto

// WebhookAck is the body returned to the platform for webhook
// deliveries. Platforms decide whether to retry purely on HTTP status,
// so the shape stays minimal and stable.
type WebhookAck struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AckOK acknowledges a processed (or intentionally ignored) delivery
func AckOK(message string) WebhookAck {
	return WebhookAck{Success: true, Message: message}
}

// AckError reports a rejected or failed delivery
func AckError(err string) WebhookAck {
	return WebhookAck{Success: false, Error: err}
}
